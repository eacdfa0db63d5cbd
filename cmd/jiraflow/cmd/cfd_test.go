package cmd

import (
	"testing"
	"time"

	"github.com/kiracore/jiraflow/internal/board"
	"github.com/kiracore/jiraflow/internal/issue"
	"github.com/kiracore/jiraflow/internal/status"
)

func TestCumulativeFlow(t *testing.T) {
	tax, err := status.NewTaxonomyFrom("", []status.Status{
		{Name: "Backlog", ID: "1", CategoryName: status.CategoryToDo},
		{Name: "Doing", ID: "3", CategoryName: status.CategoryInProgress},
		{Name: "Done", ID: "5", CategoryName: status.CategoryDone},
	})
	if err != nil {
		t.Fatalf("NewTaxonomyFrom() error = %v", err)
	}
	b := &board.Board{
		Columns: []board.Column{
			{Name: "Doing", StatusIDs: []string{"3"}},
			{Name: "Done", StatusIDs: []string{"5"}},
		},
		BacklogStatusIDs: []string{"1"},
	}
	day := func(d, h int) time.Time { return time.Date(2022, 3, d, h, 0, 0, 0, time.UTC) }
	move := func(at time.Time, from, to string) issue.ChangeEvent {
		return issue.ChangeEvent{Time: at, Field: issue.FieldStatus, FieldName: "status", OldValue: from, Value: to}
	}

	backlog := status.Status{Name: "Backlog", ID: "1", CategoryName: status.CategoryToDo}
	issues := []*issue.History{
		issue.New(issue.Snapshot{Key: "P-1", Created: day(1, 9), Updated: day(3, 9), Status: backlog}, []issue.ChangeEvent{
			move(day(2, 10), "Backlog", "Doing"),
			move(day(3, 10), "Doing", "Done"),
		}),
		issue.New(issue.Snapshot{Key: "P-2", Created: day(2, 9), Updated: day(2, 9), Status: backlog}, nil),
	}

	days := cumulativeFlow(issues, b, tax, day(1, 0), day(3, 23), time.UTC)
	if len(days) != 3 {
		t.Fatalf("cumulativeFlow() returned %d days, want 3", len(days))
	}

	want := []map[string]int{
		{backlogBucket: 1},
		{backlogBucket: 1, "Doing": 1},
		{backlogBucket: 1, "Done": 1},
	}
	for i, w := range want {
		for bucket, n := range w {
			if got := days[i].Counts[bucket]; got != n {
				t.Errorf("day %d %s = %d, want %d", i+1, bucket, got, n)
			}
		}
		if got := days[i].Counts["Done"] + days[i].Counts["Doing"] + days[i].Counts[backlogBucket]; got != sum(w) {
			t.Errorf("day %d total = %d, want %d", i+1, got, sum(w))
		}
	}

	if got := cfdBuckets(b); len(got) != 3 || got[0] != backlogBucket {
		t.Errorf("cfdBuckets() = %v, want backlog first", got)
	}
}

func sum(m map[string]int) int {
	n := 0
	for _, v := range m {
		n += v
	}
	return n
}
