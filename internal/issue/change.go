package issue

import (
	"fmt"
	"time"
)

// ChangeEvent is one observed or synthesized field transition.
// Empty OldValue, OldValueID and ValueID mean the value was absent.
type ChangeEvent struct {
	Time       time.Time `json:"time"`
	Field      Field     `json:"-"`
	FieldName  string    `json:"field"`
	OldValue   string    `json:"old_value,omitempty"`
	Value      string    `json:"value"`
	OldValueID string    `json:"old_value_id,omitempty"`
	ValueID    string    `json:"value_id,omitempty"`
	Author     string    `json:"author,omitempty"`
	Artificial bool      `json:"artificial"`
}

// Is reports whether the event changes field f
func (c ChangeEvent) Is(f Field) bool {
	return c.Field == f
}

func (c ChangeEvent) IsStatus() bool      { return c.Is(FieldStatus) }
func (c ChangeEvent) IsResolution() bool  { return c.Is(FieldResolution) }
func (c ChangeEvent) IsFlagged() bool     { return c.Is(FieldFlagged) }
func (c ChangeEvent) IsSprint() bool      { return c.Is(FieldSprint) }
func (c ChangeEvent) IsStoryPoints() bool { return c.Is(FieldStoryPoints) }
func (c ChangeEvent) IsPriority() bool    { return c.Is(FieldPriority) }
func (c ChangeEvent) IsComment() bool     { return c.Is(FieldComment) }

// MatchesStatus reports whether this is a status change into one of names
func (c ChangeEvent) MatchesStatus(names []string) bool {
	return c.IsStatus() && contains(names, c.Value)
}

func (c ChangeEvent) String() string {
	art := ""
	if c.Artificial {
		art = ", artificial"
	}
	return fmt.Sprintf("ChangeEvent(%s, %q -> %q, %s%s)",
		c.Field, c.OldValue, c.Value, c.Time.Format(time.RFC3339), art)
}

// before orders events by time. A resolution change sorts after a
// non-resolution change at the same instant.
func before(a, b ChangeEvent) bool {
	if !a.Time.Equal(b.Time) {
		return a.Time.Before(b.Time)
	}
	return !a.IsResolution() && b.IsResolution()
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
