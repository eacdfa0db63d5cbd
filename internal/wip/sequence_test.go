package wip

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/kiracore/jiraflow/internal/cycletime"
	"github.com/kiracore/jiraflow/internal/issue"
)

func at(s string) time.Time {
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	panic("bad time " + s)
}

func newIssue(key string) *issue.History {
	created := at("2021-10-01")
	return issue.New(issue.Snapshot{Key: key, Created: created, Updated: created}, nil)
}

type stub map[string][2]string

// policy returns fixed start/stop times per key; "" means unset
func (s stub) policy() cycletime.Policy {
	lookup := func(idx int) issue.TimeFunc {
		return func(h *issue.History) (time.Time, bool) {
			v, ok := s[h.Key]
			if !ok || v[idx] == "" {
				return time.Time{}, false
			}
			return at(v[idx]), true
		}
	}
	return cycletime.Func{StartFn: lookup(0), StopFn: lookup(1)}
}

func keys(list []*issue.History) []string {
	out := []string{}
	for _, h := range list {
		out = append(out, h.Key)
	}
	return out
}

func TestBuildSequence(t *testing.T) {
	sp1, sp10, sp2 := newIssue("SP-1"), newIssue("SP-10"), newIssue("SP-2")
	p := stub{
		"SP-1":  {"2021-10-10", ""},
		"SP-10": {"2021-10-05", "2021-10-12"},
	}.policy()

	got := BuildSequence([]*issue.History{sp1, sp10, sp2}, p)
	if len(got) != 3 {
		t.Fatalf("BuildSequence() = %d events, want 3", len(got))
	}
	want := []struct {
		key    string
		action Action
		time   string
	}{
		{"SP-10", Start, "2021-10-05"},
		{"SP-1", Start, "2021-10-10"},
		{"SP-10", Stop, "2021-10-12"},
	}
	for i, w := range want {
		if got[i].Issue.Key != w.key || got[i].Action != w.action || !got[i].Time.Equal(at(w.time)) {
			t.Errorf("event[%d] = %s %s %v, want %s %s %s", i, got[i].Issue.Key, got[i].Action, got[i].Time, w.key, w.action, w.time)
		}
	}

	backwards := stub{"SP-1": {"2021-10-12", "2021-10-10"}}.policy()
	if got := BuildSequence([]*issue.History{sp1}, backwards); len(got) != 0 {
		t.Errorf("BuildSequence() with stop before start = %d events, want 0", len(got))
	}

	if got := BuildSequence(nil, p); len(got) != 0 {
		t.Errorf("BuildSequence(nil) = %v", got)
	}
}

func TestSweep(t *testing.T) {
	sp1, sp2, sp10 := newIssue("SP-1"), newIssue("SP-2"), newIssue("SP-10")
	events := []Event{
		{at("2021-10-10"), Start, sp1},
		{at("2021-10-10"), Start, sp2},
		{at("2021-10-12"), Start, sp10},
		{at("2021-10-14"), Stop, sp10},
	}

	got, err := Sweep(events)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}

	want := []struct {
		time    string
		active  []string
		removed []string
	}{
		{"2021-10-10", []string{"SP-1", "SP-2"}, []string{}},
		{"2021-10-12", []string{"SP-1", "SP-10", "SP-2"}, []string{}},
		{"2021-10-14", []string{"SP-1", "SP-2"}, []string{"SP-10"}},
	}
	if len(got) != len(want) {
		t.Fatalf("Sweep() = %d transitions, want %d", len(got), len(want))
	}
	for i, w := range want {
		if !got[i].Time.Equal(at(w.time)) {
			t.Errorf("transition[%d].Time = %v, want %s", i, got[i].Time, w.time)
		}
		if a := keys(got[i].Active); !reflect.DeepEqual(a, w.active) {
			t.Errorf("transition[%d].Active = %v, want %v", i, a, w.active)
		}
		if r := keys(got[i].Removed); !reflect.DeepEqual(r, w.removed) {
			t.Errorf("transition[%d].Removed = %v, want %v", i, r, w.removed)
		}
	}
}

func TestSweep_ActiveSetMatchesIntervals(t *testing.T) {
	issues := []*issue.History{newIssue("A-1"), newIssue("A-2"), newIssue("A-3"), newIssue("A-4"), newIssue("A-5")}
	times := stub{
		"A-1": {"2021-10-01", "2021-10-05"},
		"A-2": {"2021-10-03", ""},
		"A-3": {"2021-10-05", "2021-10-05"},
		"A-4": {"2021-10-02", "2021-10-09"},
		"A-5": {"2021-10-12", "2021-10-10"},
	}

	got, err := Sweep(BuildSequence(issues, times.policy()))
	if err != nil {
		t.Fatal(err)
	}
	for _, tr := range got {
		var want []string
		for _, h := range issues {
			v := times[h.Key]
			if at(v[0]).After(tr.Time) {
				continue
			}
			if v[1] != "" && !at(v[1]).After(tr.Time) {
				continue
			}
			want = append(want, h.Key)
		}
		if want == nil {
			want = []string{}
		}
		if a := keys(tr.Active); !reflect.DeepEqual(a, want) {
			t.Errorf("at %v Active = %v, want %v", tr.Time, a, want)
		}
	}
}

func TestSweep_Empty(t *testing.T) {
	got, err := Sweep(nil)
	if err != nil || len(got) != 0 {
		t.Errorf("Sweep(nil) = %v, %v", got, err)
	}
}

func TestSweep_UnexpectedAction(t *testing.T) {
	_, err := Sweep([]Event{{at("2021-10-10"), "foo", newIssue("SP-1")}})
	var actionErr *UnexpectedActionError
	if !errors.As(err, &actionErr) || err.Error() != "Unexpected action foo" {
		t.Errorf("Sweep() error = %v", err)
	}
}
