package wip

import (
	"errors"
	"sort"
	"time"

	"github.com/kiracore/jiraflow/internal/cycletime"
	"github.com/kiracore/jiraflow/internal/issue"
)

// ErrNoGroupingRules is returned when daily grouping has no rules function
var ErrNoGroupingRules = errors.New("grouping_rules must be set")

// GroupingRules is the group an issue falls in on one day
type GroupingRules struct {
	Label         string `json:"label"`
	Color         string `json:"color"`
	GroupPriority int    `json:"group_priority"`
	Ignore        bool   `json:"ignore,omitempty"`
}

// Group is a distinct (label, color) pair
type Group struct {
	Label string `json:"label"`
	Color string `json:"color"`
}

// Group returns the rules' display group
func (r GroupingRules) Group() Group {
	return Group{Label: r.Label, Color: r.Color}
}

// GroupingFunc fills rules for issue h on date. Setting Ignore drops the
// issue from that day.
type GroupingFunc func(h *issue.History, date time.Time, rules *GroupingRules)

// Grouped is one issue's group on one day
type Grouped struct {
	Issue *issue.History
	Rules GroupingRules
}

// Day is every active issue on one calendar date
type Day struct {
	Date   time.Time
	Issues []Grouped
}

type span struct {
	issue      *issue.History
	start, end time.Time
	open       bool
}

// DailyGroups assigns a group to every issue active on each date from
// from through to. An issue stopped but never started counts from from.
// Days with no issues are omitted.
func DailyGroups(issues []*issue.History, policy cycletime.Policy, from, to time.Time, fn GroupingFunc) ([]Day, error) {
	from, to = issue.Date(from), issue.Date(to)

	var spans []span
	for _, h := range issues {
		started, hasStart := policy.Started(h)
		stopped, hasStop := policy.Stopped(h)
		if !hasStart && !hasStop {
			continue
		}
		s := span{issue: h, start: from, open: !hasStop}
		if hasStart {
			s.start = issue.Date(started)
		}
		if hasStop {
			s.end = issue.Date(stopped)
		}
		spans = append(spans, s)
	}
	if len(spans) == 0 {
		return nil, nil
	}
	if fn == nil {
		return nil, ErrNoGroupingRules
	}

	var days []Day
	for date := from; !date.After(to); date = date.AddDate(0, 0, 1) {
		var grouped []Grouped
		for _, s := range spans {
			if s.start.After(date) || (!s.open && s.end.Before(date)) {
				continue
			}
			var rules GroupingRules
			fn(s.issue, date, &rules)
			if rules.Ignore {
				continue
			}
			grouped = append(grouped, Grouped{Issue: s.issue, Rules: rules})
		}
		if len(grouped) == 0 {
			continue
		}
		sort.SliceStable(grouped, func(i, j int) bool {
			return grouped[i].Rules.GroupPriority < grouped[j].Rules.GroupPriority
		})
		days = append(days, Day{Date: date, Issues: grouped})
	}
	return days, nil
}

// PossibleGroups returns the distinct groups used across days, ordered by
// group priority and then first appearance.
func PossibleGroups(days []Day) []Group {
	type seen struct {
		rules GroupingRules
		order int
	}
	index := make(map[Group]seen)
	for _, d := range days {
		for _, g := range d.Issues {
			if _, ok := index[g.Rules.Group()]; !ok {
				index[g.Rules.Group()] = seen{rules: g.Rules, order: len(index)}
			}
		}
	}

	all := make([]seen, 0, len(index))
	for _, s := range index {
		all = append(all, s)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].rules.GroupPriority != all[j].rules.GroupPriority {
			return all[i].rules.GroupPriority < all[j].rules.GroupPriority
		}
		return all[i].order < all[j].order
	})

	out := make([]Group, 0, len(all))
	for _, s := range all {
		out = append(out, s.rules.Group())
	}
	return out
}
