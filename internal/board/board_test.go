package board

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

const kanbanConfig = `{
  "id": 1,
  "name": "Team board",
  "type": "kanban",
  "columnConfig": {"columns": [
    {"name": "Backlog", "statuses": [{"id": "10000"}]},
    {"name": "Ready", "statuses": [{"id": "10001"}]},
    {"name": "Empty", "statuses": []},
    {"name": "In Progress", "statuses": [{"id": "3"}, {"id": "4"}], "max": 3},
    {"name": "Done", "statuses": [{"id": 10002}]}
  ]}
}`

func TestParse_Kanban(t *testing.T) {
	b, err := Parse([]byte(kanbanConfig))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !b.Kanban() || b.Scrum() {
		t.Errorf("Kanban() = %v, Scrum() = %v", b.Kanban(), b.Scrum())
	}
	if !reflect.DeepEqual(b.BacklogStatusIDs, []string{"10000"}) {
		t.Errorf("BacklogStatusIDs = %v", b.BacklogStatusIDs)
	}

	var names []string
	for _, c := range b.Columns {
		names = append(names, c.Name)
	}
	if want := []string{"Ready", "In Progress", "Done"}; !reflect.DeepEqual(names, want) {
		t.Errorf("visible columns = %v, want %v", names, want)
	}
	if b.Columns[1].Max == nil || *b.Columns[1].Max != 3 {
		t.Errorf("In Progress max = %v", b.Columns[1].Max)
	}
}

func TestColumnIndex(t *testing.T) {
	b, err := Parse([]byte(kanbanConfig))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		id     string
		want   int
		wantOK bool
	}{
		{"10001", 0, true},
		{"4", 1, true},
		{"10002", 2, true},
		{"10000", -1, false},
		{"999", -1, false},
	}
	for _, tc := range tests {
		got, ok := b.ColumnIndex(tc.id)
		if got != tc.want || ok != tc.wantOK {
			t.Errorf("ColumnIndex(%s) = %d, %v, want %d, %v", tc.id, got, ok, tc.want, tc.wantOK)
		}
	}
	if !b.InBacklog("10000") || b.InBacklog("3") {
		t.Error("InBacklog() mismatch")
	}
}

func TestParse_KanbanWithoutBacklog(t *testing.T) {
	data := `{"id": 2, "type": "kanban", "columnConfig": {"columns": [{"name": "Todo", "statuses": [{"id": "1"}]}]}}`
	_, err := Parse([]byte(data))
	if err == nil || !strings.Contains(err.Error(), "Expected first column to be called Backlog") {
		t.Errorf("Parse() error = %v", err)
	}
}

func TestParse_Scrum(t *testing.T) {
	data := `{"id": 3, "type": "scrum", "columnConfig": {"columns": [{"name": "Todo", "statuses": [{"id": "1"}]}]}}`
	b, err := Parse([]byte(data))
	if err != nil {
		t.Fatal(err)
	}
	if len(b.BacklogStatusIDs) != 0 {
		t.Errorf("BacklogStatusIDs = %v, want empty", b.BacklogStatusIDs)
	}
	if len(b.Columns) != 1 || b.Columns[0].Name != "Todo" {
		t.Errorf("Columns = %v", b.Columns)
	}
}

func TestSelect(t *testing.T) {
	one := &Board{ID: 1}
	two := &Board{ID: 2}

	tests := []struct {
		name    string
		boards  []*Board
		id      int
		want    *Board
		wantErr string
	}{
		{"explicit id", []*Board{one, two}, 2, two, ""},
		{"single board", []*Board{one}, 0, one, ""},
		{"none", nil, 0, nil, "we couldn't find any configuration files"},
		{"ambiguous", []*Board{two, one}, 0, nil, "following board ids and this is ambiguous: [1 2]"},
		{"unknown id", []*Board{one}, 9, nil, "board 9 not found"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Select(tc.boards, tc.id)
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("Select() error = %v, want %q", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Select() error = %v", err)
			}
			if got != tc.want {
				t.Errorf("Select() = %v, want %v", got, tc.want)
			}
		})
	}

	_, err := Select([]*Board{one, two}, 0)
	var selErr *SelectionError
	if !errors.As(err, &selErr) || len(selErr.Candidates) != 2 {
		t.Errorf("Select() error type = %T", err)
	}
}
