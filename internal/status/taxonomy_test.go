package status

import (
	"errors"
	"strings"
	"testing"
)

func sampleTaxonomy(t *testing.T) *Taxonomy {
	t.Helper()
	tax, err := NewTaxonomyFrom("", []Status{
		{Name: "Backlog", ID: "10000", CategoryName: CategoryToDo, CategoryID: "2"},
		{Name: "Selected for Development", ID: "10001", CategoryName: CategoryToDo, CategoryID: "2"},
		{Name: "In Progress", ID: "3", CategoryName: CategoryInProgress, CategoryID: "4"},
		{Name: "Review", ID: "10011", CategoryName: CategoryInProgress, CategoryID: "4"},
		{Name: "Done", ID: "10002", CategoryName: CategoryDone, CategoryID: "3"},
	})
	if err != nil {
		t.Fatalf("NewTaxonomyFrom() error: %v", err)
	}
	return tax
}

func TestRegister_ProjectScoping(t *testing.T) {
	global := Status{Name: "foo", ID: "1", CategoryName: "cfoo", CategoryID: "2"}
	project := Status{Name: "foo", ID: "1", CategoryName: "cfoo", CategoryID: "2", ProjectID: "100"}
	other := Status{Name: "foo", ID: "1", CategoryName: "cfoo", CategoryID: "2", ProjectID: "101"}

	tests := []struct {
		name       string
		register   []Status
		wantProjID []string
	}{
		{"registers a status", []Status{global}, []string{""}},
		{"ignores another project's status", []Status{other}, nil},
		{"project replaces global", []Status{global, project}, []string{"100"}},
		{"global never replaces project", []Status{project, global}, []string{"100"}},
		{"duplicate global is a no-op", []Status{global, global}, []string{""}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tax := NewTaxonomy("100")
			for _, s := range tc.register {
				if err := tax.Register(s); err != nil {
					t.Fatalf("Register(%s) error: %v", s, err)
				}
			}
			all := tax.All()
			if len(all) != len(tc.wantProjID) {
				t.Fatalf("len(All()) = %d, want %d", len(all), len(tc.wantProjID))
			}
			for i, s := range all {
				if s.ProjectID != tc.wantProjID[i] {
					t.Errorf("All()[%d].ProjectID = %q, want %q", i, s.ProjectID, tc.wantProjID[i])
				}
			}
		})
	}
}

func TestRegister_CategoryConflict(t *testing.T) {
	tax := NewTaxonomy("100")
	if err := tax.Register(Status{Name: "foo", ID: "1", CategoryName: "cfoo", CategoryID: "2"}); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	err := tax.Register(Status{Name: "foo", ID: "1", CategoryName: "cfoo2", CategoryID: "3"})
	var conflict *CategoryConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("Register() error = %v, want CategoryConflictError", err)
	}
	if !strings.HasPrefix(err.Error(), "Redefining status category") {
		t.Errorf("error = %q, want prefix %q", err.Error(), "Redefining status category")
	}
}

func TestResolve(t *testing.T) {
	tax := sampleTaxonomy(t)

	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"Done", "10002", true},
		{"10002", "10002", true},
		{"3", "3", true},
		{"done", "", false},
		{"Missing", "", false},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			s, ok := tax.Resolve(tc.in)
			if ok != tc.wantOK {
				t.Fatalf("Resolve(%q) ok = %v, want %v", tc.in, ok, tc.wantOK)
			}
			if s.ID != tc.want {
				t.Errorf("Resolve(%q).ID = %q, want %q", tc.in, s.ID, tc.want)
			}
		})
	}
}

func TestResolve_NameBeforeID(t *testing.T) {
	tax, _ := NewTaxonomyFrom("", []Status{
		{Name: "A", ID: "B", CategoryName: CategoryToDo},
		{Name: "B", ID: "2", CategoryName: CategoryDone},
	})
	s, _ := tax.Resolve("B")
	if s.Name != "B" {
		t.Errorf("Resolve(B).Name = %q, want %q", s.Name, "B")
	}
}

func TestExpand(t *testing.T) {
	tax, _ := NewTaxonomyFrom("", []Status{
		{Name: "Done", ID: "10002", CategoryName: CategoryDone, CategoryID: "3"},
	})

	got, err := tax.Expand([]string{"Done"}, nil)
	if err != nil {
		t.Fatalf("Expand() error: %v", err)
	}
	if len(got) != 1 || got[0] != tax.All()[0] {
		t.Errorf("Expand([Done]) = %v, want [%v]", got, tax.All()[0])
	}

	_, err = tax.Expand([]string{"Missing"}, nil)
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("Expand([Missing]) error = %v, want NotFoundError", err)
	}
	want := `Status not found: Missing. Possible statuses are: "Done":"10002"`
	if err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
}

func TestExpand_OrderDedupAndFallback(t *testing.T) {
	tax := sampleTaxonomy(t)

	var missing []string
	got, err := tax.Expand([]string{"Review", "Gone", "10011", "Backlog"}, func(n string) {
		missing = append(missing, n)
	})
	if err != nil {
		t.Fatalf("Expand() error: %v", err)
	}

	var names []string
	for _, s := range got {
		names = append(names, s.Name)
	}
	if strings.Join(names, ",") != "Review,Backlog" {
		t.Errorf("Expand() names = %v, want [Review Backlog]", names)
	}
	if len(missing) != 1 || missing[0] != "Gone" {
		t.Errorf("onMissing got %v, want [Gone]", missing)
	}
}

func TestFilterByCategory(t *testing.T) {
	tax := sampleTaxonomy(t)

	tests := []struct {
		name      string
		category  string
		including []string
		excluding []string
		want      string
	}{
		{"todo", CategoryToDo, nil, nil, "Backlog,Selected for Development"},
		{"in progress", CategoryInProgress, nil, nil, "In Progress,Review"},
		{"done including review", CategoryDone, []string{"Review"}, nil, "Review,Done"},
		{"todo excluding backlog", CategoryToDo, nil, []string{"Backlog"}, "Selected for Development"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tax.FilterByCategory(tc.category, tc.including, tc.excluding)
			if err != nil {
				t.Fatalf("FilterByCategory() error: %v", err)
			}
			if strings.Join(got, ",") != tc.want {
				t.Errorf("FilterByCategory() = %v, want %s", got, tc.want)
			}
		})
	}

	if _, err := tax.Done([]string{"Nope"}, nil); err == nil {
		t.Error("Done() with unknown include should fail")
	}
}

func TestParseStatuses(t *testing.T) {
	data := []byte(`[
		{"id": "10000", "name": "Backlog", "statusCategory": {"id": 2, "name": "To Do"}},
		{"id": "3", "name": "In Progress", "statusCategory": {"id": 4, "name": "In Progress"},
		 "scope": {"type": "PROJECT", "project": {"id": "10005"}}}
	]`)

	got, err := ParseStatuses(data)
	if err != nil {
		t.Fatalf("ParseStatuses() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	want := Status{Name: "In Progress", ID: "3", CategoryName: "In Progress", CategoryID: "4", ProjectID: "10005"}
	if got[1] != want {
		t.Errorf("ParseStatuses()[1] = %v, want %v", got[1], want)
	}
	if !got[0].Global() {
		t.Error("first status should be global")
	}
}
