package quality

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kiracore/jiraflow/internal/board"
	"github.com/kiracore/jiraflow/internal/cycletime"
	"github.com/kiracore/jiraflow/internal/issue"
	"github.com/kiracore/jiraflow/internal/status"
)

const (
	timeLayout = "2006-01-02 15:04:05 -0700"
	dateLayout = "2006-01-02"

	summaryLimit = 50
)

// Truncation records that history before Cutoff was discarded from an
// issue whose cycle time originally started at OriginalStart.
type Truncation struct {
	OriginalStart time.Time `json:"original_start"`
	Cutoff        time.Time `json:"cutoff"`
}

// Scanner runs every anomaly rule over the issues of one board
type Scanner struct {
	Board       *board.Board
	Taxonomy    *status.Taxonomy
	Policy      cycletime.Policy
	Issues      *issue.Arena
	Truncations map[string]Truncation
	// Workers bounds parallel scanning. Zero means unbounded.
	Workers int
}

// Scan evaluates every issue. Entries are ordered by key number.
func (s *Scanner) Scan(ctx context.Context) (*Report, error) {
	if s.Board == nil || s.Taxonomy == nil || s.Policy == nil || s.Issues == nil {
		return nil, fmt.Errorf("scanner requires board, taxonomy, policy and issues")
	}

	backlog, _ := s.Taxonomy.Expand(s.Board.BacklogStatusIDs, func(string) {})
	backlogNames := make([]string, 0, len(backlog))
	for _, st := range backlog {
		backlogNames = append(backlogNames, st.Name)
	}

	issues := s.Issues.SortedByKeyNumber()
	entries := make([]*Entry, len(issues))

	g, ctx := errgroup.WithContext(ctx)
	if s.Workers > 0 {
		g.SetLimit(s.Workers)
	}
	for i, h := range issues {
		i, h := i, h
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			entries[i] = s.scanIssue(h, backlogNames)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to scan issues: %w", err)
	}

	return &Report{Entries: entries}, nil
}

func (s *Scanner) scanIssue(h *issue.History, backlogNames []string) *Entry {
	e := &Entry{Issue: h, Key: h.Key}
	e.Started, e.StartedOK = s.Policy.Started(h)
	e.Stopped, e.StoppedOK = s.Policy.Stopped(h)

	s.completedWithoutStart(e)
	s.statusChangeAfterDone(e)
	s.backwardsMovement(e, backlogNames)
	s.wrongCreationStatus(e)
	s.stoppedBeforeStarted(e)
	s.unstartedWithStartedSubtasks(e)
	s.discardedData(e)
	return e
}

func (s *Scanner) completedWithoutStart(e *Entry) {
	if !e.StoppedOK || e.StartedOK {
		return
	}

	var parts, names []string
	for _, c := range e.Issue.Changes() {
		if c.IsStatus() && c.Time.Equal(e.Stopped) {
			parts = append(parts, fmt.Sprintf("Status changed from %s to %s on %s.",
				c.OldValue, c.Value, c.Time.Format(timeLayout)))
			names = append(names, c.OldValue, c.Value)
		}
	}
	if len(parts) == 0 {
		e.report(CompletedButNotStarted, "No status changes found at the time that this item was marked completed.")
		return
	}
	e.report(CompletedButNotStarted, strings.Join(parts, " "), names...)
}

func (s *Scanner) statusChangeAfterDone(e *Entry) {
	if !e.StoppedOK {
		return
	}

	var b strings.Builder
	var names []string
	for _, c := range e.Issue.Changes() {
		if c.IsStatus() && c.Time.After(e.Stopped) {
			fmt.Fprintf(&b, " Status change to %s on %s.", c.Value, c.Time.Format(timeLayout))
			names = append(names, c.Value)
		}
	}
	if len(names) == 0 {
		return
	}
	detail := fmt.Sprintf("This item was done on %s but status changes continued after that.%s",
		e.Stopped.Format(timeLayout), b.String())
	e.report(StatusChangesAfterDone, detail, names...)
}

func (s *Scanner) categoryOf(name string) string {
	if st, ok := s.Taxonomy.FindByName(name); ok {
		return st.CategoryName
	}
	return ""
}

func (s *Scanner) backwardsMovement(e *Entry, backlogNames []string) {
	lastIndex := -1
	for _, c := range e.Issue.Changes() {
		if !c.IsStatus() {
			continue
		}

		index, onBoard := s.Board.ColumnIndex(c.ValueID)
		switch {
		case !onBoard:
			if contains(backlogNames, c.Value) {
				break
			}
			detail := fmt.Sprintf("Status %s is not on the board", c.Value)
			if _, known := s.Taxonomy.Resolve(c.Value); !known {
				detail = fmt.Sprintf("Status %s cannot be found at all. Was it deleted?", c.Value)
			}
			e.report(StatusNotOnBoard, detail, c.Value)
		case c.OldValue == "":
		case index < lastIndex:
			oldCat, newCat := s.categoryOf(c.OldValue), s.categoryOf(c.Value)
			date := c.Time.Format(dateLayout)
			if oldCat == newCat {
				e.report(BackwardsThroughStatuses,
					fmt.Sprintf("Moved from %s to %s on %s", c.OldValue, c.Value, date),
					c.OldValue, c.Value)
			} else {
				e.report(BackwardsThroughCategories,
					fmt.Sprintf("Moved from %s to %s on %s, crossing from category %s to %s.",
						c.OldValue, c.Value, date, oldCat, newCat),
					c.OldValue, c.Value)
			}
		}
		lastIndex = index
	}
}

func (s *Scanner) wrongCreationStatus(e *Entry) {
	if len(s.Board.BacklogStatusIDs) == 0 {
		return
	}
	for _, c := range e.Issue.Changes() {
		if !c.IsStatus() {
			continue
		}
		if !s.Board.InBacklog(c.ValueID) {
			e.report(CreatedInWrongStatus,
				fmt.Sprintf("Issue was created in %s status on %s", c.Value, c.Time.Format(dateLayout)),
				c.Value)
		}
		return
	}
}

func (s *Scanner) stoppedBeforeStarted(e *Entry) {
	if !e.StartedOK || !e.StoppedOK || !e.Stopped.Before(e.Started) {
		return
	}
	e.report(StoppedBeforeStarted, fmt.Sprintf("The stopped time '%s' is before the started time '%s'",
		e.Stopped.Format(timeLayout), e.Started.Format(timeLayout)))
}

func (s *Scanner) unstartedWithStartedSubtasks(e *Entry) {
	if e.StartedOK {
		return
	}

	var labels, names []string
	for _, sub := range s.Issues.Subtasks(e.Issue.Key) {
		if _, ok := s.Policy.Started(sub); !ok {
			continue
		}
		labels = append(labels, fmt.Sprintf("Started subtask: %s (%s) %s",
			sub.Key, sub.Status.Name, strconv.Quote(truncate(sub.Summary, summaryLimit))))
		names = append(names, sub.Status.Name)
	}
	if len(labels) == 0 {
		return
	}
	e.report(IssueNotStartedButSubtasksHave, strings.Join(labels, "\n"), names...)
}

func (s *Scanner) discardedData(e *Entry) {
	tr, ok := s.Truncations[e.Issue.Key]
	if !ok {
		return
	}
	start, cutoff := issue.Date(tr.OriginalStart), issue.Date(tr.Cutoff)
	days := issue.DaysBetween(start, cutoff) + 1
	if days == 1 {
		return
	}
	e.report(DiscardedChanges, fmt.Sprintf("Started: %s, Discarded: %s, Ignored: %s",
		start.Format(dateLayout), cutoff.Format(dateLayout), labelDays(days)))
}

func labelDays(n int) string {
	if n == 1 {
		return "1 day"
	}
	return strconv.Itoa(n) + " days"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
