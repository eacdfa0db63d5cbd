package wip

import (
	"fmt"
	"time"

	"github.com/kiracore/jiraflow/internal/cycletime"
	"github.com/kiracore/jiraflow/internal/issue"
)

// Conditions a grouping rule can match on
const (
	WhenCompleted = "completed"
	WhenExpedited = "expedited"
	WhenBlocked   = "blocked"
	WhenStalled   = "stalled"
	WhenStarted   = "started"
	WhenAny       = "any"
)

// Rule maps a condition to the group an issue gets when it holds.
// Rules are tried in order and the first match wins.
type Rule struct {
	When          string `yaml:"when" mapstructure:"when" json:"when"`
	Label         string `yaml:"label" mapstructure:"label" json:"label"`
	Color         string `yaml:"color" mapstructure:"color" json:"color"`
	GroupPriority int    `yaml:"group_priority" mapstructure:"group_priority" json:"group_priority"`
	Ignore        bool   `yaml:"ignore" mapstructure:"ignore" json:"ignore"`
}

// Env is what grouping conditions are evaluated against
type Env struct {
	Issues           *issue.Arena
	Policy           cycletime.Policy
	ExpeditedNames   []string
	StalledThreshold int
}

// DefaultRules tags each active issue as expedited, blocked, stalled or
// active and ignores completed ones.
var DefaultRules = []Rule{
	{When: WhenCompleted, Ignore: true},
	{When: WhenExpedited, Label: "Expedited", Color: "red", GroupPriority: 1},
	{When: WhenBlocked, Label: "Blocked", Color: "#FF7400", GroupPriority: 2},
	{When: WhenStalled, Label: "Stalled", Color: "orange", GroupPriority: 3},
	{When: WhenStarted, Label: "Active", Color: "lightgray", GroupPriority: 4},
	{When: WhenAny, Label: "Start date unknown", Color: "white", GroupPriority: 5},
}

// CheckRules reports the first rule with an unknown condition
func CheckRules(rules []Rule) error {
	for i, r := range rules {
		switch r.When {
		case WhenCompleted, WhenExpedited, WhenBlocked, WhenStalled, WhenStarted, WhenAny:
		default:
			return fmt.Errorf("grouping rule %d: unknown condition %q", i+1, r.When)
		}
	}
	return nil
}

// Grouping compiles rules into a GroupingFunc. Issues matching no rule
// are ignored.
func Grouping(rules []Rule, env Env) (GroupingFunc, error) {
	if len(rules) == 0 {
		return nil, ErrNoGroupingRules
	}
	if err := CheckRules(rules); err != nil {
		return nil, err
	}

	return func(h *issue.History, date time.Time, out *GroupingRules) {
		for _, r := range rules {
			if !env.holds(r.When, h, date) {
				continue
			}
			*out = GroupingRules{Label: r.Label, Color: r.Color, GroupPriority: r.GroupPriority, Ignore: r.Ignore}
			return
		}
		out.Ignore = true
	}, nil
}

// BlockedStalled is Grouping over DefaultRules
func BlockedStalled(env Env) GroupingFunc {
	fn, _ := Grouping(DefaultRules, env)
	return fn
}

func (env Env) holds(when string, h *issue.History, date time.Time) bool {
	switch when {
	case WhenCompleted:
		stopped, ok := env.Policy.Stopped(h)
		return ok && !issue.Date(stopped).After(date)
	case WhenExpedited:
		return h.ExpeditedOnDate(date, env.ExpeditedNames)
	case WhenBlocked:
		return h.BlockedOnDate(date)
	case WhenStalled:
		if env.Issues == nil {
			return false
		}
		return env.Issues.StalledOnDate(h.Key, date, env.StalledThreshold)
	case WhenStarted:
		_, ok := env.Policy.Started(h)
		return ok
	case WhenAny:
		return true
	}
	return false
}
