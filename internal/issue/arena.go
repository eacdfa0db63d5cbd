package issue

import (
	"fmt"
	"sort"
	"time"
)

// Arena owns every issue of a run, keyed by issue key.
// Parent and subtask relations are stored as keys, never as pointers,
// so malformed cyclic input cannot trap a traversal.
type Arena struct {
	issues   map[string]*History
	order    []string
	subtasks map[string][]string
	parents  map[string]string
}

// NewArena creates an empty arena
func NewArena() *Arena {
	return &Arena{
		issues:   make(map[string]*History),
		subtasks: make(map[string][]string),
		parents:  make(map[string]string),
	}
}

// Add stores an issue. Keys must be unique.
func (a *Arena) Add(h *History) error {
	if _, exists := a.issues[h.Key]; exists {
		return fmt.Errorf("duplicate issue key %s", h.Key)
	}
	a.issues[h.Key] = h
	a.order = append(a.order, h.Key)
	return nil
}

// Replace swaps in a new History for an existing key
func (a *Arena) Replace(h *History) error {
	if _, exists := a.issues[h.Key]; !exists {
		return fmt.Errorf("unknown issue key %s", h.Key)
	}
	a.issues[h.Key] = h
	return nil
}

// Get returns the issue with key
func (a *Arena) Get(key string) (*History, bool) {
	h, ok := a.issues[key]
	return h, ok
}

// Len returns the number of issues
func (a *Arena) Len() int {
	return len(a.order)
}

// Issues returns all issues in insertion order
func (a *Arena) Issues() []*History {
	out := make([]*History, 0, len(a.order))
	for _, k := range a.order {
		out = append(out, a.issues[k])
	}
	return out
}

// SortedByKeyNumber returns all issues ordered by numeric key suffix
func (a *Arena) SortedByKeyNumber() []*History {
	out := a.Issues()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].KeyNumber() < out[j].KeyNumber()
	})
	return out
}

// LinkSubtask records child as a subtask of parent. Both must be present.
func (a *Arena) LinkSubtask(parentKey, childKey string) error {
	if _, ok := a.issues[parentKey]; !ok {
		return fmt.Errorf("unknown parent %s", parentKey)
	}
	if _, ok := a.issues[childKey]; !ok {
		return fmt.Errorf("unknown subtask %s", childKey)
	}
	if contains(a.subtasks[parentKey], childKey) {
		return nil
	}
	a.subtasks[parentKey] = append(a.subtasks[parentKey], childKey)
	a.parents[childKey] = parentKey
	return nil
}

// Link wires relations declared in issue snapshots (subtask keys and
// parent keys). References to issues outside the arena are skipped.
func (a *Arena) Link() {
	for _, key := range a.order {
		h := a.issues[key]
		for _, sub := range h.SubtaskKeys {
			if _, ok := a.issues[sub]; ok {
				_ = a.LinkSubtask(key, sub)
			}
		}
		if h.ParentKey != "" {
			if _, ok := a.issues[h.ParentKey]; ok {
				a.parents[key] = h.ParentKey
			}
		}
	}
}

// Subtasks returns the subtasks of key in link order
func (a *Arena) Subtasks(key string) []*History {
	var out []*History
	for _, k := range a.subtasks[key] {
		out = append(out, a.issues[k])
	}
	return out
}

// Parent returns the parent of key if it is in the arena
func (a *Arena) Parent(key string) (*History, bool) {
	p, ok := a.parents[key]
	if !ok {
		return nil, false
	}
	return a.Get(p)
}

// StalledOnDate reports whether key saw no activity for threshold days
// before date. Every subtask must be stalled too.
func (a *Arena) StalledOnDate(key string, date time.Time, threshold int) bool {
	return a.stalled(key, Date(date), threshold, map[string]bool{})
}

func (a *Arena) stalled(key string, date time.Time, threshold int, visited map[string]bool) bool {
	h, ok := a.issues[key]
	if !ok || visited[key] {
		return true
	}
	visited[key] = true

	if h.activeWithin(date, threshold) {
		return false
	}
	for _, sub := range a.subtasks[key] {
		if !a.stalled(sub, date, threshold, visited) {
			return false
		}
	}

	updated := Date(h.Updated)
	if date.Before(updated) {
		return false
	}
	return DaysBetween(updated, date) >= threshold
}

// LastActivity returns the latest change at or before now across key and
// its subtasks. It is unset only when now precedes all of key's changes.
func (a *Arena) LastActivity(key string, now time.Time) (time.Time, bool) {
	return a.lastActivity(key, now, map[string]bool{})
}

func (a *Arena) lastActivity(key string, now time.Time, visited map[string]bool) (time.Time, bool) {
	h, ok := a.issues[key]
	if !ok || visited[key] {
		return time.Time{}, false
	}
	visited[key] = true

	result, ok := h.latestChangeAtOrBefore(now)
	if !ok {
		return time.Time{}, false
	}
	for _, sub := range a.subtasks[key] {
		if t, ok := a.lastActivity(sub, now, visited); ok && t.After(result) {
			result = t
		}
	}
	return result, true
}
