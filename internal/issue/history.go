package issue

import (
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/kiracore/jiraflow/internal/status"
)

// Value is a named field value with its stable id
type Value struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// FixVersion is a release an issue is scheduled for
type FixVersion struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Released    bool   `json:"released"`
	ReleaseDate string `json:"release_date,omitempty"`
}

// Link is an issue link as seen from this issue
type Link struct {
	Type      string `json:"type"`
	Direction string `json:"direction"` // inward or outward
	Label     string `json:"label"`
	OtherKey  string `json:"other_key"`
}

// Snapshot is the current field state of an issue
type Snapshot struct {
	Key         string        `json:"key"`
	Self        string        `json:"self,omitempty"`
	Summary     string        `json:"summary"`
	Type        string        `json:"type"`
	Created     time.Time     `json:"created"`
	Updated     time.Time     `json:"updated"`
	Status      status.Status `json:"status"`
	Priority    Value         `json:"priority"`
	Resolution  string        `json:"resolution,omitempty"`
	Labels      []string      `json:"labels,omitempty"`
	Assignee    string        `json:"assignee,omitempty"`
	Creator     string        `json:"creator,omitempty"`
	Components  []string      `json:"components,omitempty"`
	FixVersions []FixVersion  `json:"fix_versions,omitempty"`
	Links       []Link        `json:"links,omitempty"`
	SubtaskKeys []string      `json:"subtask_keys,omitempty"`
	ParentKey   string        `json:"parent_key,omitempty"`

	// Exported is false when the issue was not downloaded from a tracker
	Exported       bool `json:"exported"`
	InInitialQuery bool `json:"in_initial_query"`
}

// History is one issue's frozen, time-ordered change sequence
type History struct {
	Snapshot
	changes []ChangeEvent
}

// New builds a History: it sorts changes and fabricates the leading
// status and priority events that describe the issue at creation.
func New(snap Snapshot, changes []ChangeEvent) *History {
	sorted := make([]ChangeEvent, len(changes))
	copy(sorted, changes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return before(sorted[i], sorted[j])
	})

	var synthetic []ChangeEvent
	for _, f := range []Field{FieldStatus, FieldPriority} {
		if c, ok := fabricate(snap, sorted, f); ok {
			synthetic = append(synthetic, c)
		}
	}

	return &History{
		Snapshot: snap,
		changes:  append(synthetic, sorted...),
	}
}

func fabricate(snap Snapshot, sorted []ChangeEvent, f Field) (ChangeEvent, bool) {
	c := ChangeEvent{
		Time:       snap.Created,
		Field:      f,
		FieldName:  f.String(),
		Author:     snap.Creator,
		Artificial: true,
	}
	// changes recorded before creation still come after the initial value
	if len(sorted) > 0 && sorted[0].Time.Before(c.Time) {
		c.Time = sorted[0].Time
	}

	first, found := firstOf(sorted, f)
	switch {
	case found && first.Artificial:
		// already fabricated
		return ChangeEvent{}, false
	case found:
		c.Value, c.ValueID = first.OldValue, first.OldValueID
	case f == FieldStatus:
		c.Value, c.ValueID = snap.Status.Name, snap.Status.ID
	case f == FieldPriority:
		c.Value, c.ValueID = snap.Priority.Name, snap.Priority.ID
	}

	// the field started empty, there is no initial value to record
	if c.Value == "" && c.ValueID == "" {
		return ChangeEvent{}, false
	}
	return c, true
}

func firstOf(changes []ChangeEvent, f Field) (ChangeEvent, bool) {
	for _, c := range changes {
		if c.Is(f) {
			return c, true
		}
	}
	return ChangeEvent{}, false
}

// Changes returns the ordered change sequence. Callers must not modify it.
func (h *History) Changes() []ChangeEvent {
	return h.changes
}

// WithoutChangesBefore returns a copy of h without changes at or before cutoff
func (h *History) WithoutChangesBefore(cutoff time.Time) *History {
	kept := make([]ChangeEvent, 0, len(h.changes))
	for _, c := range h.changes {
		if c.Time.After(cutoff) {
			kept = append(kept, c)
		}
	}
	return &History{Snapshot: h.Snapshot, changes: kept}
}

var keyNumberRegex = regexp.MustCompile(`-(\d+)$`)

// KeyNumber returns the numeric suffix of the key (ABC-123 -> 123), or 0
func (h *History) KeyNumber() int {
	return KeyNumber(h.Key)
}

// KeyNumber returns the numeric suffix of an issue key, or 0
func KeyNumber(key string) int {
	m := keyNumberRegex.FindStringSubmatch(key)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

var selfHostRegex = regexp.MustCompile(`^(https?://[^/]+)/`)

// URL returns the browse URL derived from the REST self link
func (h *History) URL() string {
	m := selfHostRegex.FindStringSubmatch(h.Self)
	if m == nil {
		return ""
	}
	return m[1] + "/browse/" + h.Key
}

// Artificial reports whether the issue did not come from a tracker export
func (h *History) Artificial() bool {
	return !h.Exported
}

// Expedited reports whether the current priority is one of names
func (h *History) Expedited(names []string) bool {
	return h.Priority.Name != "" && contains(names, h.Priority.Name)
}

func (h *History) String() string {
	return "Issue(" + strconv.Quote(h.Key) + ")"
}
