package quality

import (
	"time"

	"github.com/kiracore/jiraflow/internal/board"
	"github.com/kiracore/jiraflow/internal/cycletime"
	"github.com/kiracore/jiraflow/internal/issue"
	"github.com/kiracore/jiraflow/internal/status"
)

// BacklogToken in a status_becomes list stands for the board's backlog statuses
const BacklogToken = ":backlog"

// CutoffFunc returns the instant before which an issue's history is discarded
type CutoffFunc func(h *issue.History) (time.Time, bool)

// StatusBecomes cuts at the last status change into any of names
func StatusBecomes(names ...string) CutoffFunc {
	return func(h *issue.History) (time.Time, bool) {
		var cutoff time.Time
		found := false
		for _, c := range h.Changes() {
			if c.MatchesStatus(names) {
				cutoff, found = c.Time, true
			}
		}
		return cutoff, found
	}
}

// FixedCutoff cuts every issue at t
func FixedCutoff(t time.Time) CutoffFunc {
	return func(*issue.History) (time.Time, bool) { return t, true }
}

// ExpandBacklogToken replaces BacklogToken with the names of the board's
// backlog statuses. Unknown backlog ids are skipped.
func ExpandBacklogToken(names []string, b *board.Board, tax *status.Taxonomy) []string {
	var out []string
	for _, n := range names {
		if n != BacklogToken {
			out = append(out, n)
			continue
		}
		backlog, _ := tax.Expand(b.BacklogStatusIDs, func(string) {})
		for _, s := range backlog {
			out = append(out, s.Name)
		}
	}
	return out
}

// Discard drops changes at or before each issue's cutoff, replacing the
// issue in the arena. Issues whose cycle time had already started by the
// cutoff get a Truncation.
func Discard(arena *issue.Arena, cutoff CutoffFunc, policy cycletime.Policy) map[string]Truncation {
	truncations := make(map[string]Truncation)
	for _, h := range arena.Issues() {
		at, ok := cutoff(h)
		if !ok {
			continue
		}
		if started, ok := policy.Started(h); ok && !started.After(at) {
			truncations[h.Key] = Truncation{OriginalStart: started, Cutoff: at}
		}
		_ = arena.Replace(h.WithoutChangesBefore(at))
	}
	return truncations
}
