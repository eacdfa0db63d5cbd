// Package quality scans issue histories for data anomalies that would
// make derived flow metrics untrustworthy.
package quality

import (
	"time"

	"github.com/kiracore/jiraflow/internal/issue"
)

// Key identifies an anomaly rule
type Key string

const (
	CompletedButNotStarted         Key = "completed_but_not_started"
	StatusChangesAfterDone         Key = "status_changes_after_done"
	StatusNotOnBoard               Key = "status_not_on_board"
	BackwardsThroughStatuses       Key = "backwords_through_statuses"
	BackwardsThroughCategories     Key = "backwards_through_status_categories"
	CreatedInWrongStatus           Key = "created_in_wrong_status"
	StoppedBeforeStarted           Key = "stopped_before_started"
	IssueNotStartedButSubtasksHave Key = "issue_not_started_but_subtasks_have"
	DiscardedChanges               Key = "discarded_changes"
)

// Keys lists every rule key in report order
var Keys = []Key{
	CompletedButNotStarted,
	StatusChangesAfterDone,
	StatusNotOnBoard,
	BackwardsThroughStatuses,
	BackwardsThroughCategories,
	CreatedInWrongStatus,
	StoppedBeforeStarted,
	IssueNotStartedButSubtasksHave,
	DiscardedChanges,
}

// Problem is one anomaly report. Statuses names the statuses the detail
// mentions so renderers can highlight them.
type Problem struct {
	Key      Key      `json:"key"`
	Detail   string   `json:"detail"`
	Statuses []string `json:"statuses,omitempty"`
}

// Entry collects the problems found on one issue
type Entry struct {
	Issue     *issue.History `json:"-"`
	Key       string         `json:"issue"`
	Started   time.Time      `json:"started"`
	StartedOK bool           `json:"started_ok"`
	Stopped   time.Time      `json:"stopped"`
	StoppedOK bool           `json:"stopped_ok"`
	Problems  []Problem      `json:"problems"`
}

func (e *Entry) report(key Key, detail string, statuses ...string) {
	e.Problems = append(e.Problems, Problem{Key: key, Detail: detail, Statuses: statuses})
}

// Finding pairs an issue with one problem detail
type Finding struct {
	Issue  *issue.History
	Detail string
}

// Report is the result of one scan
type Report struct {
	Entries []*Entry
}

// WithProblems returns the entries that have at least one problem
func (r *Report) WithProblems() []*Entry {
	var out []*Entry
	for _, e := range r.Entries {
		if len(e.Problems) > 0 {
			out = append(out, e)
		}
	}
	return out
}

// ProblemsFor returns every finding for one rule key, in issue order
func (r *Report) ProblemsFor(key Key) []Finding {
	var out []Finding
	for _, e := range r.Entries {
		for _, p := range e.Problems {
			if p.Key == key {
				out = append(out, Finding{Issue: e.Issue, Detail: p.Detail})
			}
		}
	}
	return out
}

// Counts returns the number of problems per rule key
func (r *Report) Counts() map[Key]int {
	counts := make(map[Key]int)
	for _, e := range r.Entries {
		for _, p := range e.Problems {
			counts[p.Key]++
		}
	}
	return counts
}
