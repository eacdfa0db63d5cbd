package sprint

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kiracore/jiraflow/internal/cycletime"
	"github.com/kiracore/jiraflow/internal/issue"
)

// Action is the kind of a sprint change record
type Action string

const (
	EnterSprint  Action = "enter_sprint"
	LeaveSprint  Action = "leave_sprint"
	StoryPoints  Action = "story_points"
	IssueStopped Action = "issue_stopped"
)

// Change is one event that moves an issue's contribution to a sprint.
// Value is the signed point delta and Points the estimate at that moment.
type Change struct {
	Time     time.Time
	Action   Action
	Value    float64
	Points   float64
	IssueKey string
}

// DataPoint is one step of a burndown series
type DataPoint struct {
	Time   time.Time `json:"time"`
	Points float64   `json:"points"`
	Label  string    `json:"label"`
}

// Series is the burndown of one sprint
type Series struct {
	Sprint Sprint      `json:"sprint"`
	Points []DataPoint `json:"points"`
}

// IssueChanges walks one issue's history and returns its change records
// for sp. An issue never in the sprint yields none.
func IssueChanges(h *issue.History, sp Sprint, policy cycletime.Policy) []Change {
	completed, hasCompleted := policy.Stopped(h)

	var (
		points         float64
		inSprint, ever bool
		stoppedTracked bool
		out            []Change
	)
	for _, c := range h.Changes() {
		var action Action
		var value float64

		switch {
		case c.IsSprint():
			now := containsID(issue.SprintIDs(c.ValueID), sp.ID)
			if !inSprint && now {
				action, value, ever = EnterSprint, points, true
			} else if inSprint && !now {
				action, value = LeaveSprint, -points
			}
			inSprint = now
		case c.IsStoryPoints() && (!hasCompleted || c.Time.Before(completed)):
			old := parsePoints(c.OldValue)
			points = parsePoints(c.Value)
			action, value = StoryPoints, points-old
		case hasCompleted && !stoppedTracked && c.Time.Equal(completed):
			stoppedTracked = true
			action, value = IssueStopped, -points
		}

		if action == "" {
			continue
		}
		out = append(out, Change{Time: c.Time, Action: action, Value: value, Points: points, IssueKey: h.Key})
	}

	if !ever {
		return nil
	}
	return out
}

// Reconstruct builds the burndown series of sp across issues
func Reconstruct(issues []*issue.History, sp Sprint, policy cycletime.Policy) ([]DataPoint, error) {
	var changes []Change
	for _, h := range issues {
		changes = append(changes, IssueChanges(h, sp, policy)...)
	}
	sort.SliceStable(changes, func(i, j int) bool {
		return changes[i].Time.Before(changes[j].Time)
	})
	return sweep(changes, sp)
}

func sweep(changes []Change, sp Sprint) ([]DataPoint, error) {
	var (
		total   float64
		started bool
		data    []DataPoint
	)
	currentlyIn := make(map[string]bool)

	startPoint := func() {
		data = append(data, DataPoint{
			Time:   sp.Start,
			Points: total,
			Label:  "Sprint started with " + formatPoints(total) + " points",
		})
		started = true
	}

	for _, c := range changes {
		if !started && !c.Time.Before(sp.Start) {
			startPoint()
		}

		switch c.Action {
		case EnterSprint:
			currentlyIn[c.IssueKey] = true
			total += c.Points
		case LeaveSprint:
			delete(currentlyIn, c.IssueKey)
			total -= c.Points
		}

		if c.Time.Before(sp.Start) || (sp.Closed() && c.Time.After(sp.Completed)) {
			continue
		}

		var message string
		switch c.Action {
		case StoryPoints:
			if !currentlyIn[c.IssueKey] {
				continue
			}
			total += c.Value
			message = fmt.Sprintf("Story points changed from %s points to %s points",
				formatPoints(c.Points-c.Value), formatPoints(c.Points))
		case EnterSprint:
			message = "Added to sprint with " + formatPoints(c.Points) + " points"
		case LeaveSprint:
			message = "Removed from sprint with " + formatPoints(c.Points) + " points"
		case IssueStopped:
			total -= c.Points
			message = "Completed with " + formatPoints(c.Points) + " points"
			delete(currentlyIn, c.IssueKey)
		default:
			return nil, fmt.Errorf("Unexpected action: %s", c.Action)
		}

		data = append(data, DataPoint{Time: c.Time, Points: total, Label: c.IssueKey + " " + message})
	}

	if !started {
		startPoint()
	}
	if sp.Closed() {
		data = append(data, DataPoint{
			Time:   sp.Completed,
			Points: total,
			Label:  "Sprint ended with " + formatPoints(total) + " points unfinished",
		})
	}
	return data, nil
}

// ReconstructAll builds every sprint's series concurrently, bounded by
// workers (zero means unbounded). Output order follows sprints.
func ReconstructAll(ctx context.Context, issues []*issue.History, sprints []Sprint, policy cycletime.Policy, workers int) ([]Series, error) {
	out := make([]Series, len(sprints))
	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, sp := range sprints {
		i, sp := i, sp
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			points, err := Reconstruct(issues, sp, policy)
			if err != nil {
				return fmt.Errorf("sprint %s: %w", sp.Name, err)
			}
			out[i] = Series{Sprint: sp, Points: points}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func parsePoints(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func formatPoints(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func containsID(ids []int, id int) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
