package status

import (
	"fmt"
	"sort"
	"strings"
)

// Standard Jira status category names
const (
	CategoryToDo       = "To Do"
	CategoryInProgress = "In Progress"
	CategoryDone       = "Done"
)

// Status is one workflow status as known to the tracker
type Status struct {
	Name         string `json:"name" yaml:"name"`
	ID           string `json:"id" yaml:"id"`
	CategoryName string `json:"category_name" yaml:"category_name"`
	CategoryID   string `json:"category_id" yaml:"category_id"`
	ProjectID    string `json:"project_id,omitempty" yaml:"project_id,omitempty"` // empty means global
}

// Global reports whether the status is shared by all projects
func (s Status) Global() bool {
	return s.ProjectID == ""
}

func (s Status) String() string {
	return fmt.Sprintf("Status(name=%q, id=%q, category_name=%q, category_id=%q, project_id=%q)",
		s.Name, s.ID, s.CategoryName, s.CategoryID, s.ProjectID)
}

// NotFoundError is returned when a status name or id cannot be resolved
type NotFoundError struct {
	Name  string
	Known []Status
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Status not found: %s. Possible statuses are: %s", e.Name, knownList(e.Known))
}

// CategoryConflictError is returned when a (name, id) pair would change category
type CategoryConflictError struct {
	Existing Status
	New      Status
}

func (e *CategoryConflictError) Error() string {
	return fmt.Sprintf("Redefining status category for %s from %q to %q",
		e.New, e.Existing.CategoryName, e.New.CategoryName)
}

func knownList(statuses []Status) string {
	seen := make(map[string]bool)
	var pairs []string
	for _, s := range statuses {
		p := fmt.Sprintf("%q:%q", s.Name, s.ID)
		if seen[p] {
			continue
		}
		seen[p] = true
		pairs = append(pairs, p)
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ", ")
}
