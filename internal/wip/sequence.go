// Package wip reconstructs work in progress over time from cycle-time
// start and stop events.
package wip

import (
	"fmt"
	"sort"
	"time"

	"github.com/kiracore/jiraflow/internal/cycletime"
	"github.com/kiracore/jiraflow/internal/issue"
)

// Action is the kind of a sequence event
type Action string

const (
	Start Action = "start"
	Stop  Action = "stop"
)

// UnexpectedActionError is returned when a sequence holds an unknown action
type UnexpectedActionError struct {
	Action Action
}

func (e *UnexpectedActionError) Error() string {
	return fmt.Sprintf("Unexpected action %s", e.Action)
}

// Event is one start or stop of an issue
type Event struct {
	Time   time.Time
	Action Action
	Issue  *issue.History
}

// Transition is the active set at one instant plus the issues that left
// it at that instant. Both lists are ordered by key.
type Transition struct {
	Time    time.Time
	Active  []*issue.History
	Removed []*issue.History
}

// BuildSequence returns the start and stop events of issues ordered by
// time. Ties keep input order. Issues with neither time are left out, as
// are issues that stop before they start.
func BuildSequence(issues []*issue.History, policy cycletime.Policy) []Event {
	var events []Event
	for _, h := range issues {
		started, hasStart := policy.Started(h)
		stopped, hasStop := policy.Stopped(h)
		if hasStart && hasStop && stopped.Before(started) {
			continue
		}
		if hasStart {
			events = append(events, Event{Time: started, Action: Start, Issue: h})
		}
		if hasStop {
			events = append(events, Event{Time: stopped, Action: Stop, Issue: h})
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Time.Before(events[j].Time)
	})
	return events
}

// Sweep replays events and emits one Transition per distinct timestamp.
// Events must already be ordered by time.
func Sweep(events []Event) ([]Transition, error) {
	active := make(map[string]*issue.History)
	var out []Transition

	for i := 0; i < len(events); {
		now := events[i].Time
		removed := make(map[string]*issue.History)

		for ; i < len(events) && events[i].Time.Equal(now); i++ {
			e := events[i]
			switch e.Action {
			case Start:
				active[e.Issue.Key] = e.Issue
				delete(removed, e.Issue.Key)
			case Stop:
				if _, ok := active[e.Issue.Key]; ok {
					delete(active, e.Issue.Key)
					removed[e.Issue.Key] = e.Issue
				}
			default:
				return nil, &UnexpectedActionError{Action: e.Action}
			}
		}

		out = append(out, Transition{Time: now, Active: byKey(active), Removed: byKey(removed)})
	}
	return out, nil
}

func byKey(set map[string]*issue.History) []*issue.History {
	out := make([]*issue.History, 0, len(set))
	for _, h := range set {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
