package issue

import (
	"testing"
)

func TestArena_AddAndOrder(t *testing.T) {
	a := NewArena()
	for _, key := range []string{"SP-10", "SP-2", "SP-7"} {
		if err := a.Add(New(snapshot(key), nil)); err != nil {
			t.Fatalf("Add(%s) error = %v", key, err)
		}
	}
	if err := a.Add(New(snapshot("SP-2"), nil)); err == nil {
		t.Error("Add() should reject duplicate key")
	}

	if a.Len() != 3 {
		t.Errorf("Len() = %d, want 3", a.Len())
	}
	if got := a.Issues()[0].Key; got != "SP-10" {
		t.Errorf("Issues()[0] = %s, want insertion order", got)
	}

	sorted := a.SortedByKeyNumber()
	want := []string{"SP-2", "SP-7", "SP-10"}
	for i, h := range sorted {
		if h.Key != want[i] {
			t.Errorf("SortedByKeyNumber()[%d] = %s, want %s", i, h.Key, want[i])
		}
	}
}

func TestArena_Link(t *testing.T) {
	a := NewArena()
	parent := snapshot("SP-1")
	parent.SubtaskKeys = []string{"SP-2", "OTHER-9"}
	child := snapshot("SP-3")
	child.ParentKey = "SP-1"

	for _, s := range []Snapshot{parent, snapshot("SP-2"), child} {
		if err := a.Add(New(s, nil)); err != nil {
			t.Fatal(err)
		}
	}
	a.Link()

	subs := a.Subtasks("SP-1")
	if len(subs) != 1 || subs[0].Key != "SP-2" {
		t.Errorf("Subtasks(SP-1) = %v, want [SP-2]", subs)
	}
	if p, ok := a.Parent("SP-2"); !ok || p.Key != "SP-1" {
		t.Errorf("Parent(SP-2) = %v, %v", p, ok)
	}
	if p, ok := a.Parent("SP-3"); !ok || p.Key != "SP-1" {
		t.Errorf("Parent(SP-3) = %v, %v", p, ok)
	}
	if err := a.LinkSubtask("SP-1", "MISSING-1"); err == nil {
		t.Error("LinkSubtask() should reject unknown subtask")
	}
}

func TestArena_StalledOnDate(t *testing.T) {
	build := func(subtaskActive bool) *Arena {
		a := NewArena()
		parent := snapshot("SP-1")
		parent.SubtaskKeys = []string{"SP-2"}
		_ = a.Add(New(parent, nil))

		var changes []ChangeEvent
		if subtaskActive {
			changes = append(changes, statusChange("2022-01-08", "Backlog", "Doing"))
		}
		_ = a.Add(New(snapshot("SP-2"), changes))
		a.Link()
		return a
	}

	tests := []struct {
		name          string
		subtaskActive bool
		date          string
		want          bool
	}{
		{"recent activity", false, "2022-01-03", false},
		{"idle past threshold", false, "2022-01-10", true},
		{"active subtask", true, "2022-01-10", false},
		{"before last update", false, "2021-12-01", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := build(tc.subtaskActive)
			if got := a.StalledOnDate("SP-1", at(tc.date), 5); got != tc.want {
				t.Errorf("StalledOnDate(%s) = %v, want %v", tc.date, got, tc.want)
			}
		})
	}
}

func TestArena_CyclicSubtasksTerminate(t *testing.T) {
	a := NewArena()
	_ = a.Add(New(snapshot("SP-1"), nil))
	_ = a.Add(New(snapshot("SP-2"), nil))
	_ = a.LinkSubtask("SP-1", "SP-2")
	_ = a.LinkSubtask("SP-2", "SP-1")

	if !a.StalledOnDate("SP-1", at("2022-02-01"), 5) {
		t.Error("StalledOnDate() = false, want true")
	}
	if _, ok := a.LastActivity("SP-1", at("2022-02-01")); !ok {
		t.Error("LastActivity() should be set")
	}
}

func TestArena_LastActivity(t *testing.T) {
	a := NewArena()
	parent := snapshot("SP-1")
	parent.SubtaskKeys = []string{"SP-2"}
	_ = a.Add(New(parent, []ChangeEvent{statusChange("2022-01-02", "Backlog", "Doing")}))
	_ = a.Add(New(snapshot("SP-2"), []ChangeEvent{
		statusChange("2022-01-08", "Backlog", "Doing"),
		statusChange("2022-01-20", "Doing", "Done"),
	}))
	a.Link()

	got, ok := a.LastActivity("SP-1", at("2022-01-10"))
	if !ok || !got.Equal(at("2022-01-08")) {
		t.Errorf("LastActivity() = %v, %v, want 2022-01-08", got, ok)
	}
	if _, ok := a.LastActivity("SP-1", at("2021-12-01")); ok {
		t.Error("LastActivity() before all changes should be unset")
	}
}
