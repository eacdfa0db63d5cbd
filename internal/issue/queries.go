package issue

import (
	"time"

	"github.com/kiracore/jiraflow/internal/status"
)

// TimeFunc extracts an optional timestamp from an issue
type TimeFunc func(*History) (time.Time, bool)

// FirstTimeInStatus returns when the issue first entered one of names
func (h *History) FirstTimeInStatus(names ...string) (time.Time, bool) {
	for _, c := range h.changes {
		if c.MatchesStatus(names) {
			return c.Time, true
		}
	}
	return time.Time{}, false
}

// FirstTimeNotInStatus returns the first status change into anything but names
func (h *History) FirstTimeNotInStatus(names ...string) (time.Time, bool) {
	for _, c := range h.changes {
		if c.IsStatus() && !contains(names, c.Value) {
			return c.Time, true
		}
	}
	return time.Time{}, false
}

func (h *History) stillIn(match func(ChangeEvent) (bool, error)) (time.Time, bool, error) {
	var since time.Time
	found := false
	for _, c := range h.changes {
		if !c.IsStatus() {
			continue
		}
		ok, err := match(c)
		if err != nil {
			return time.Time{}, false, err
		}
		if ok && !found {
			since, found = c.Time, true
		} else if !ok && found {
			since, found = time.Time{}, false
		}
	}
	return since, found, nil
}

// StillInStatus returns when the issue most recently entered one of names,
// provided it has stayed within names ever since.
func (h *History) StillInStatus(names ...string) (time.Time, bool) {
	t, ok, _ := h.stillIn(func(c ChangeEvent) (bool, error) {
		return contains(names, c.Value), nil
	})
	return t, ok
}

// StillInStatusCategory is StillInStatus keyed on status category names
func (h *History) StillInStatusCategory(tax *status.Taxonomy, categories ...string) (time.Time, bool, error) {
	return h.stillIn(func(c ChangeEvent) (bool, error) {
		s, err := tax.MustFindByName(c.Value)
		if err != nil {
			return false, err
		}
		return contains(categories, s.CategoryName), nil
	})
}

// MostRecentStatusChange returns the last status change event
func (h *History) MostRecentStatusChange() (ChangeEvent, bool) {
	for i := len(h.changes) - 1; i >= 0; i-- {
		if h.changes[i].IsStatus() {
			return h.changes[i], true
		}
	}
	return ChangeEvent{}, false
}

// StatusAt returns the last status change at or before t
func (h *History) StatusAt(t time.Time) (ChangeEvent, bool) {
	var last ChangeEvent
	found := false
	for _, c := range h.changes {
		if c.Time.After(t) {
			break
		}
		if c.IsStatus() {
			last, found = c, true
		}
	}
	return last, found
}

// CurrentlyInStatus reports whether the latest status change is into one
// of names and if so returns its time.
func (h *History) CurrentlyInStatus(names ...string) (time.Time, bool) {
	c, ok := h.MostRecentStatusChange()
	if !ok || !c.MatchesStatus(names) {
		return time.Time{}, false
	}
	return c.Time, true
}

// CurrentlyInStatusCategory is CurrentlyInStatus keyed on category names
func (h *History) CurrentlyInStatusCategory(tax *status.Taxonomy, categories ...string) (time.Time, bool, error) {
	c, ok := h.MostRecentStatusChange()
	if !ok {
		return time.Time{}, false, nil
	}
	s, err := tax.MustFindByName(c.Value)
	if err != nil {
		return time.Time{}, false, err
	}
	if !contains(categories, s.CategoryName) {
		return time.Time{}, false, nil
	}
	return c.Time, true, nil
}

// FirstTimeInStatusCategory returns the first status change into one of categories
func (h *History) FirstTimeInStatusCategory(tax *status.Taxonomy, categories ...string) (time.Time, bool, error) {
	for _, c := range h.changes {
		if !c.IsStatus() {
			continue
		}
		s, err := tax.MustFindByName(c.Value)
		if err != nil {
			return time.Time{}, false, err
		}
		if contains(categories, s.CategoryName) {
			return c.Time, true, nil
		}
	}
	return time.Time{}, false, nil
}

// FirstStatusChangeAfterCreated returns the first observed status change
func (h *History) FirstStatusChangeAfterCreated() (time.Time, bool) {
	for _, c := range h.changes {
		if c.IsStatus() && !c.Artificial {
			return c.Time, true
		}
	}
	return time.Time{}, false
}

// FirstResolution returns the time of the first resolution change
func (h *History) FirstResolution() (time.Time, bool) {
	for _, c := range h.changes {
		if c.IsResolution() {
			return c.Time, true
		}
	}
	return time.Time{}, false
}

// LastResolution returns the time of the last resolution change
func (h *History) LastResolution() (time.Time, bool) {
	for i := len(h.changes) - 1; i >= 0; i-- {
		if h.changes[i].IsResolution() {
			return h.changes[i].Time, true
		}
	}
	return time.Time{}, false
}

// BlockedPercentage returns the share of [start, end] spent flagged.
// An unflag with no preceding flag is ignored. The result is undefined
// (false) when either bound is missing or the window is empty.
func (h *History) BlockedPercentage(startFn, endFn TimeFunc) (float64, bool) {
	started, ok := startFn(h)
	if !ok {
		return 0, false
	}
	finished, ok := endFn(h)
	if !ok {
		return 0, false
	}
	window := finished.Sub(started)
	if window <= 0 {
		return 0, false
	}

	var blocked time.Duration
	var since time.Time
	flagged := false
	for _, c := range h.changes {
		if !c.IsFlagged() {
			continue
		}
		if c.Value != "" {
			since, flagged = c.Time, true
			continue
		}
		if !flagged {
			continue
		}
		if !c.Time.Before(started) {
			from, to := since, c.Time
			if from.Before(started) {
				from = started
			}
			if to.After(finished) {
				to = finished
			}
			if to.After(from) {
				blocked += to.Sub(from)
			}
		}
		flagged = false
	}

	return float64(blocked) * 100 / float64(window), true
}

// BlockedOnDate reports whether the issue was flagged at any point on date.
// A flag still set at the end of history blocks every date from its start.
func (h *History) BlockedOnDate(date time.Time) bool {
	date = Date(date)
	var start time.Time
	flagged := false
	for _, c := range h.changes {
		if !c.IsFlagged() {
			continue
		}
		if c.Value != "" {
			start, flagged = Date(c.Time), true
			continue
		}
		if !flagged {
			continue
		}
		if inDateRange(date, start, Date(c.Time)) {
			return true
		}
		flagged = false
	}
	return flagged && !date.Before(start)
}

// ExpeditedOnDate reports whether the priority was one of names on date
func (h *History) ExpeditedOnDate(date time.Time, names []string) bool {
	date = Date(date)
	var start time.Time
	expedited := false
	for _, c := range h.changes {
		if !c.IsPriority() {
			continue
		}
		if contains(names, c.Value) {
			if !expedited {
				start, expedited = Date(c.Time), true
			}
			continue
		}
		if expedited && inDateRange(date, start, Date(c.Time)) {
			return true
		}
		expedited = false
	}
	return expedited && !start.After(date)
}

// activeWithin reports whether any change happened on a day within
// threshold days before date (changes after date are ignored).
func (h *History) activeWithin(date time.Time, threshold int) bool {
	for _, c := range h.changes {
		cd := Date(c.Time)
		if cd.After(date) {
			continue
		}
		if DaysBetween(cd, date) < threshold {
			return true
		}
	}
	return false
}

// latestChangeAtOrBefore returns the latest change time not after now
func (h *History) latestChangeAtOrBefore(now time.Time) (time.Time, bool) {
	for i := len(h.changes) - 1; i >= 0; i-- {
		if !h.changes[i].Time.After(now) {
			return h.changes[i].Time, true
		}
	}
	return time.Time{}, false
}
