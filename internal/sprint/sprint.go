// Package sprint reconstructs story-point burndown series for sprints.
package sprint

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/kiracore/jiraflow/internal/issue"
)

const (
	StateFuture = "future"
	StateActive = "active"
	StateClosed = "closed"
)

// Sprint is one sprint of a scrum board. Completed is zero while the
// sprint is still running.
type Sprint struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	State     string    `json:"state"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Completed time.Time `json:"completed"`
}

// Closed reports whether the sprint has a completion time
func (s Sprint) Closed() bool {
	return !s.Completed.IsZero()
}

// Started reports whether the sprint has a start time
func (s Sprint) Started() bool {
	return !s.Start.IsZero()
}

// Overlaps reports whether the sprint ran at any point within [from, to]
func (s Sprint) Overlaps(from, to time.Time) bool {
	if !s.Started() || s.Start.After(to) {
		return false
	}
	finish := s.End
	if s.Closed() {
		finish = s.Completed
	}
	return finish.IsZero() || !finish.Before(from)
}

type rawSprints struct {
	Values []struct {
		ID           int    `json:"id"`
		Name         string `json:"name"`
		State        string `json:"state"`
		StartDate    string `json:"startDate"`
		EndDate      string `json:"endDate"`
		CompleteDate string `json:"completeDate"`
	} `json:"values"`
}

// Parse decodes one page of the Jira agile sprint listing
func Parse(data []byte, loc *time.Location) ([]Sprint, error) {
	var raw rawSprints
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode sprints: %w", err)
	}

	sprints := make([]Sprint, 0, len(raw.Values))
	for _, v := range raw.Values {
		s := Sprint{ID: v.ID, Name: v.Name, State: v.State}
		for _, f := range []struct {
			in  string
			out *time.Time
		}{
			{v.StartDate, &s.Start},
			{v.EndDate, &s.End},
			{v.CompleteDate, &s.Completed},
		} {
			if f.in == "" {
				continue
			}
			t, err := issue.ParseTime(f.in, loc)
			if err != nil {
				return nil, fmt.Errorf("sprint %d: %w", v.ID, err)
			}
			*f.out = t
		}
		sprints = append(sprints, s)
	}
	return sprints, nil
}
