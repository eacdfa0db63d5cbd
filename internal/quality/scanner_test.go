package quality

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/kiracore/jiraflow/internal/board"
	"github.com/kiracore/jiraflow/internal/cycletime"
	"github.com/kiracore/jiraflow/internal/issue"
	"github.com/kiracore/jiraflow/internal/status"
)

var testStatuses = []status.Status{
	{Name: "Backlog", ID: "10000", CategoryName: status.CategoryToDo},
	{Name: "Ready", ID: "10001", CategoryName: status.CategoryToDo},
	{Name: "Doing", ID: "3", CategoryName: status.CategoryInProgress},
	{Name: "Review", ID: "4", CategoryName: status.CategoryInProgress},
	{Name: "Done", ID: "10002", CategoryName: status.CategoryDone},
	{Name: "Archived", ID: "20000", CategoryName: status.CategoryDone},
}

func testBoard() *board.Board {
	return &board.Board{
		ID:   1,
		Type: board.TypeKanban,
		Columns: []board.Column{
			{Name: "Ready", StatusIDs: []string{"10001"}},
			{Name: "Doing", StatusIDs: []string{"3"}},
			{Name: "Review", StatusIDs: []string{"4"}},
			{Name: "Done", StatusIDs: []string{"10002"}},
		},
		BacklogStatusIDs: []string{"10000"},
	}
}

var idOf = map[string]string{}

func init() {
	for _, s := range testStatuses {
		idOf[s.Name] = s.ID
	}
}

func at(s string) time.Time {
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	panic("bad time " + s)
}

type builder struct {
	snap    issue.Snapshot
	changes []issue.ChangeEvent
	prev    string
}

func newIssue(key string) *builder {
	return &builder{
		snap: issue.Snapshot{
			Key:      key,
			Summary:  "Summary of " + key,
			Created:  at("2022-01-01"),
			Updated:  at("2022-01-01"),
			Status:   status.Status{Name: "Backlog", ID: "10000"},
			Exported: true,
		},
		prev: "Backlog",
	}
}

func (b *builder) createdIn(name string) *builder {
	b.snap.Status = status.Status{Name: name, ID: idOf[name]}
	b.prev = name
	return b
}

func (b *builder) moveTo(when, name string) *builder {
	b.changes = append(b.changes, issue.ChangeEvent{
		Time:       at(when),
		Field:      issue.FieldStatus,
		FieldName:  "status",
		OldValue:   b.prev,
		OldValueID: idOf[b.prev],
		Value:      name,
		ValueID:    idOf[name],
	})
	b.prev = name
	b.snap.Status = status.Status{Name: name, ID: idOf[name]}
	return b
}

func (b *builder) resolve(when string) *builder {
	b.changes = append(b.changes, issue.ChangeEvent{
		Time: at(when), Field: issue.FieldResolution, FieldName: "resolution", Value: "Done",
	})
	return b
}

func (b *builder) subtasks(keys ...string) *builder {
	b.snap.SubtaskKeys = keys
	return b
}

func (b *builder) build() *issue.History {
	return issue.New(b.snap, b.changes)
}

func testPolicy() cycletime.Policy {
	return cycletime.Func{
		StartFn: func(h *issue.History) (time.Time, bool) { return h.FirstTimeInStatus("Doing", "Review") },
		StopFn:  func(h *issue.History) (time.Time, bool) { return h.FirstResolution() },
	}
}

func scan(t *testing.T, truncations map[string]Truncation, issues ...*issue.History) *Report {
	t.Helper()
	tax, err := status.NewTaxonomyFrom("", testStatuses)
	if err != nil {
		t.Fatal(err)
	}
	arena := issue.NewArena()
	for _, h := range issues {
		if err := arena.Add(h); err != nil {
			t.Fatal(err)
		}
	}
	arena.Link()

	s := &Scanner{
		Board:       testBoard(),
		Taxonomy:    tax,
		Policy:      testPolicy(),
		Issues:      arena,
		Truncations: truncations,
		Workers:     2,
	}
	report, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	return report
}

func details(r *Report, key Key) []string {
	var out []string
	for _, f := range r.ProblemsFor(key) {
		out = append(out, f.Detail)
	}
	return out
}

func TestScan_CleanIssue(t *testing.T) {
	h := newIssue("SP-1").
		moveTo("2022-01-02", "Doing").
		moveTo("2022-01-03", "Done").
		resolve("2022-01-03").
		build()

	r := scan(t, nil, h)
	if got := r.WithProblems(); len(got) != 0 {
		t.Errorf("WithProblems() = %v, want none", got[0].Problems)
	}
	if !r.Entries[0].StartedOK || !r.Entries[0].Started.Equal(at("2022-01-02")) {
		t.Errorf("Started = %v", r.Entries[0].Started)
	}
}

func TestScan_CompletedButNotStarted(t *testing.T) {
	withChange := newIssue("SP-1").moveTo("2022-01-03", "Done").resolve("2022-01-03").build()
	withoutChange := newIssue("SP-2").resolve("2022-01-04").build()

	got := details(scan(t, nil, withChange, withoutChange), CompletedButNotStarted)
	want := []string{
		"Status changed from Backlog to Done on 2022-01-03 00:00:00 +0000.",
		"No status changes found at the time that this item was marked completed.",
	}
	if len(got) != len(want) {
		t.Fatalf("details = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("detail[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestScan_StatusChangesAfterDone(t *testing.T) {
	h := newIssue("SP-1").
		moveTo("2022-01-02", "Doing").
		resolve("2022-01-03").
		moveTo("2022-01-04", "Done").
		build()

	got := details(scan(t, nil, h), StatusChangesAfterDone)
	want := "This item was done on 2022-01-03 00:00:00 +0000 but status changes continued after that." +
		" Status change to Done on 2022-01-04 00:00:00 +0000."
	if len(got) != 1 || got[0] != want {
		t.Errorf("details = %q, want %q", got, want)
	}
}

func TestScan_BackwardsMovement(t *testing.T) {
	h := newIssue("SP-1").
		moveTo("2022-01-02", "Review").
		moveTo("2022-01-03", "Doing").
		moveTo("2022-01-04", "Ready").
		build()

	r := scan(t, nil, h)
	if got := details(r, BackwardsThroughStatuses); len(got) != 1 || got[0] != "Moved from Review to Doing on 2022-01-03" {
		t.Errorf("backwards through statuses = %q", got)
	}
	want := "Moved from Doing to Ready on 2022-01-04, crossing from category In Progress to To Do."
	if got := details(r, BackwardsThroughCategories); len(got) != 1 || got[0] != want {
		t.Errorf("backwards through categories = %q, want %q", got, want)
	}
}

func TestScan_StatusNotOnBoard(t *testing.T) {
	h := newIssue("SP-1").
		moveTo("2022-01-02", "Archived").
		moveTo("2022-01-03", "Foo").
		moveTo("2022-01-04", "Backlog").
		build()

	got := details(scan(t, nil, h), StatusNotOnBoard)
	want := []string{
		"Status Archived is not on the board",
		"Status Foo cannot be found at all. Was it deleted?",
	}
	if len(got) != len(want) {
		t.Fatalf("details = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("detail[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestScan_BackwardsAfterOffBoardResets(t *testing.T) {
	h := newIssue("SP-1").
		moveTo("2022-01-02", "Review").
		moveTo("2022-01-03", "Archived").
		moveTo("2022-01-04", "Doing").
		build()

	r := scan(t, nil, h)
	if got := r.ProblemsFor(BackwardsThroughStatuses); len(got) != 0 {
		t.Errorf("unexpected backwards report after off-board status: %v", got)
	}
}

func TestScan_CreatedInWrongStatus(t *testing.T) {
	h := newIssue("SP-1").createdIn("Doing").build()

	got := details(scan(t, nil, h), CreatedInWrongStatus)
	if len(got) != 1 || got[0] != "Issue was created in Doing status on 2022-01-01" {
		t.Errorf("details = %q", got)
	}
}

func TestScan_CreatedInWrongStatus_NoBacklog(t *testing.T) {
	tax, _ := status.NewTaxonomyFrom("", testStatuses)
	arena := issue.NewArena()
	_ = arena.Add(newIssue("SP-1").createdIn("Doing").build())

	b := testBoard()
	b.Type = board.TypeScrum
	b.BacklogStatusIDs = nil
	r, err := (&Scanner{Board: b, Taxonomy: tax, Policy: testPolicy(), Issues: arena}).Scan(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got := r.ProblemsFor(CreatedInWrongStatus); len(got) != 0 {
		t.Errorf("rule should be skipped without backlog, got %v", got)
	}
}

func TestScan_StoppedBeforeStarted(t *testing.T) {
	h := newIssue("SP-1").resolve("2022-01-02").moveTo("2022-01-05", "Doing").build()

	got := details(scan(t, nil, h), StoppedBeforeStarted)
	want := "The stopped time '2022-01-02 00:00:00 +0000' is before the started time '2022-01-05 00:00:00 +0000'"
	if len(got) != 1 || got[0] != want {
		t.Errorf("details = %q, want %q", got, want)
	}
}

func TestScan_UnstartedParentWithStartedSubtask(t *testing.T) {
	parent := newIssue("SP-1").subtasks("SP-2", "SP-3").build()
	started := newIssue("SP-2").moveTo("2022-01-02", "Doing")
	started.snap.Summary = strings.Repeat("x", 60)
	notStarted := newIssue("SP-3").build()

	got := details(scan(t, nil, parent, started.build(), notStarted), IssueNotStartedButSubtasksHave)
	want := `Started subtask: SP-2 (Doing) "` + strings.Repeat("x", 50) + `"`
	if len(got) != 1 || got[0] != want {
		t.Errorf("details = %q, want %q", got, want)
	}
}

func TestScan_DiscardedChanges(t *testing.T) {
	tests := []struct {
		name  string
		start string
		want  []string
	}{
		{"multi day", "2022-01-01T10:00:00", []string{"Started: 2022-01-01, Discarded: 2022-01-05, Ignored: 5 days"}},
		{"same day suppressed", "2022-01-05T01:00:00", nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newIssue("SP-1").build()
			tr := map[string]Truncation{"SP-1": {OriginalStart: at(tc.start), Cutoff: at("2022-01-05T12:00:00")}}
			got := details(scan(t, tr, h), DiscardedChanges)
			if len(got) != len(tc.want) || (len(got) == 1 && got[0] != tc.want[0]) {
				t.Errorf("details = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestScan_EntriesOrderedByKeyNumber(t *testing.T) {
	r := scan(t, nil, newIssue("SP-10").build(), newIssue("SP-9").build(), newIssue("SP-100").build())
	var keys []string
	for _, e := range r.Entries {
		keys = append(keys, e.Key)
	}
	if strings.Join(keys, ",") != "SP-9,SP-10,SP-100" {
		t.Errorf("order = %v", keys)
	}
}

func TestScan_Cancelled(t *testing.T) {
	tax, _ := status.NewTaxonomyFrom("", testStatuses)
	arena := issue.NewArena()
	_ = arena.Add(newIssue("SP-1").build())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &Scanner{Board: testBoard(), Taxonomy: tax, Policy: testPolicy(), Issues: arena}
	if _, err := s.Scan(ctx); err == nil {
		t.Error("Scan() with cancelled context should fail")
	}
}
