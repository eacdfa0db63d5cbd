// Package cycletime decides when an issue started and stopped.
package cycletime

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kiracore/jiraflow/internal/issue"
	"github.com/kiracore/jiraflow/internal/status"
)

// ErrNoRules is returned when a project has no start or stop rule
var ErrNoRules = errors.New("cycletime rules must define both start and stop")

// Policy reports the start and stop instants of an issue
type Policy interface {
	Started(h *issue.History) (time.Time, bool)
	Stopped(h *issue.History) (time.Time, bool)
}

// Func adapts two plain functions to a Policy
type Func struct {
	StartFn issue.TimeFunc
	StopFn  issue.TimeFunc
}

func (f Func) Started(h *issue.History) (time.Time, bool) {
	if f.StartFn == nil {
		return time.Time{}, false
	}
	return f.StartFn(h)
}

func (f Func) Stopped(h *issue.History) (time.Time, bool) {
	if f.StopFn == nil {
		return time.Time{}, false
	}
	return f.StopFn(h)
}

// Rule kinds
const (
	KindCreated                       = "created"
	KindFirstTimeInStatus             = "first_time_in_status"
	KindFirstTimeNotInStatus          = "first_time_not_in_status"
	KindStillInStatus                 = "still_in_status"
	KindStillInStatusCategory         = "still_in_status_category"
	KindCurrentlyInStatus             = "currently_in_status"
	KindCurrentlyInStatusCategory     = "currently_in_status_category"
	KindFirstTimeInStatusCategory     = "first_time_in_status_category"
	KindFirstStatusChangeAfterCreated = "first_status_change_after_created"
	KindFirstResolution               = "first_resolution"
	KindLastResolution                = "last_resolution"
)

type kindInfo struct {
	needsArgs bool
	category  bool
}

var kinds = map[string]kindInfo{
	KindCreated:                       {},
	KindFirstTimeInStatus:             {needsArgs: true},
	KindFirstTimeNotInStatus:          {needsArgs: true},
	KindStillInStatus:                 {needsArgs: true},
	KindStillInStatusCategory:         {needsArgs: true, category: true},
	KindCurrentlyInStatus:             {needsArgs: true},
	KindCurrentlyInStatusCategory:     {needsArgs: true, category: true},
	KindFirstTimeInStatusCategory:     {needsArgs: true, category: true},
	KindFirstStatusChangeAfterCreated: {},
	KindFirstResolution:               {},
	KindLastResolution:                {},
}

// KnownKind reports whether kind names a supported rule
func KnownKind(kind string) bool {
	_, ok := kinds[kind]
	return ok
}

// Rule is one configured time extractor
type Rule struct {
	Kind string   `yaml:"kind" mapstructure:"kind" json:"kind"`
	Args []string `yaml:"args,omitempty" mapstructure:"args" json:"args,omitempty"`
}

func (r Rule) String() string {
	if len(r.Args) == 0 {
		return r.Kind
	}
	return fmt.Sprintf("%s(%s)", r.Kind, strings.Join(r.Args, ", "))
}

// Rules is the start and stop configuration of a project
type Rules struct {
	Start Rule `yaml:"start" mapstructure:"start" json:"start"`
	Stop  Rule `yaml:"stop" mapstructure:"stop" json:"stop"`
}

// Check validates rule kinds and arguments. When tax is non-empty, status
// arguments must name known statuses.
func (r Rules) Check(tax *status.Taxonomy) error {
	if r.Start.Kind == "" || r.Stop.Kind == "" {
		return ErrNoRules
	}
	for _, rule := range []struct {
		which string
		rule  Rule
	}{{"start", r.Start}, {"stop", r.Stop}} {
		if err := rule.rule.check(tax); err != nil {
			return fmt.Errorf("%s rule: %w", rule.which, err)
		}
	}
	return nil
}

func (r Rule) check(tax *status.Taxonomy) error {
	info, ok := kinds[r.Kind]
	if !ok {
		return fmt.Errorf("unknown cycletime rule %q", r.Kind)
	}
	if info.needsArgs && len(r.Args) == 0 {
		return fmt.Errorf("rule %q needs at least one argument", r.Kind)
	}
	if info.category {
		for _, c := range r.Args {
			switch c {
			case status.CategoryToDo, status.CategoryInProgress, status.CategoryDone:
			default:
				return fmt.Errorf("rule %q: unknown status category %q", r.Kind, c)
			}
		}
		return nil
	}
	if info.needsArgs && tax != nil && !tax.Empty() {
		if _, err := tax.Expand(r.Args, nil); err != nil {
			return fmt.Errorf("rule %q: %w", r.Kind, err)
		}
	}
	return nil
}

// RulePolicy evaluates configured Rules against a status taxonomy
type RulePolicy struct {
	rules Rules
	start issue.TimeFunc
	stop  issue.TimeFunc
}

// NewPolicy checks rules and compiles them into a Policy
func NewPolicy(rules Rules, tax *status.Taxonomy) (*RulePolicy, error) {
	if err := rules.Check(tax); err != nil {
		return nil, err
	}
	return &RulePolicy{
		rules: rules,
		start: compile(rules.Start, tax),
		stop:  compile(rules.Stop, tax),
	}, nil
}

func (p *RulePolicy) Started(h *issue.History) (time.Time, bool) { return p.start(h) }
func (p *RulePolicy) Stopped(h *issue.History) (time.Time, bool) { return p.stop(h) }

// Rules returns the configuration the policy was built from
func (p *RulePolicy) Rules() Rules { return p.rules }

func compile(r Rule, tax *status.Taxonomy) issue.TimeFunc {
	names := r.Args
	if tax != nil && !tax.Empty() {
		// status rules accept ids as well as names
		if expanded, err := tax.Expand(r.Args, nil); err == nil {
			names = make([]string, 0, len(expanded))
			for _, s := range expanded {
				names = append(names, s.Name)
			}
		}
	}

	switch r.Kind {
	case KindCreated:
		return func(h *issue.History) (time.Time, bool) { return h.Created, true }
	case KindFirstTimeInStatus:
		return func(h *issue.History) (time.Time, bool) { return h.FirstTimeInStatus(names...) }
	case KindFirstTimeNotInStatus:
		return func(h *issue.History) (time.Time, bool) { return h.FirstTimeNotInStatus(names...) }
	case KindStillInStatus:
		return func(h *issue.History) (time.Time, bool) { return h.StillInStatus(names...) }
	case KindCurrentlyInStatus:
		return func(h *issue.History) (time.Time, bool) { return h.CurrentlyInStatus(names...) }
	case KindStillInStatusCategory:
		return ignoreErr(func(h *issue.History) (time.Time, bool, error) {
			return h.StillInStatusCategory(tax, r.Args...)
		})
	case KindCurrentlyInStatusCategory:
		return ignoreErr(func(h *issue.History) (time.Time, bool, error) {
			return h.CurrentlyInStatusCategory(tax, r.Args...)
		})
	case KindFirstTimeInStatusCategory:
		return ignoreErr(func(h *issue.History) (time.Time, bool, error) {
			return h.FirstTimeInStatusCategory(tax, r.Args...)
		})
	case KindFirstStatusChangeAfterCreated:
		return (*issue.History).FirstStatusChangeAfterCreated
	case KindFirstResolution:
		return (*issue.History).FirstResolution
	case KindLastResolution:
		return (*issue.History).LastResolution
	}
	return func(*issue.History) (time.Time, bool) { return time.Time{}, false }
}

// ignoreErr maps an evaluation failure (an unknown status) to "not set"
func ignoreErr(fn func(*issue.History) (time.Time, bool, error)) issue.TimeFunc {
	return func(h *issue.History) (time.Time, bool) {
		t, ok, err := fn(h)
		if err != nil {
			return time.Time{}, false
		}
		return t, ok
	}
}
