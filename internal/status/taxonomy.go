package status

// Taxonomy is the registry of statuses known to one project.
//
// Lookups are exact. A name may have a global definition and a project
// override; the override wins. The taxonomy is not safe for concurrent
// Register calls but may be shared freely once populated.
type Taxonomy struct {
	projectID string
	list      []Status
}

// NewTaxonomy creates an empty taxonomy scoped to projectID (empty for none)
func NewTaxonomy(projectID string) *Taxonomy {
	return &Taxonomy{projectID: projectID}
}

// NewTaxonomyFrom builds a taxonomy and registers every status in order
func NewTaxonomyFrom(projectID string, statuses []Status) (*Taxonomy, error) {
	t := NewTaxonomy(projectID)
	for _, s := range statuses {
		if err := t.Register(s); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// ProjectID returns the project the taxonomy is scoped to
func (t *Taxonomy) ProjectID() string {
	return t.projectID
}

// Register adds a status, applying project precedence rules.
// It fails if an existing (name, id) pair would change category.
func (t *Taxonomy) Register(s Status) error {
	if !s.Global() && t.projectID != "" && s.ProjectID != t.projectID {
		return nil
	}

	for _, e := range t.list {
		if e.Name == s.Name && e.ID == s.ID &&
			(e.CategoryName != s.CategoryName || e.CategoryID != s.CategoryID) {
			return &CategoryConflictError{Existing: e, New: s}
		}
	}

	for i, e := range t.list {
		if e.Name != s.Name {
			continue
		}
		switch {
		case e.Global() && !s.Global():
			t.list[i] = s
			return nil
		case !e.Global() && s.Global():
			return nil
		case e.ID == s.ID:
			return nil
		}
	}

	t.list = append(t.list, s)
	return nil
}

// Resolve finds a status by exact name, then by exact id
func (t *Taxonomy) Resolve(nameOrID string) (Status, bool) {
	for _, s := range t.list {
		if s.Name == nameOrID {
			return s, true
		}
	}
	for _, s := range t.list {
		if s.ID == nameOrID {
			return s, true
		}
	}
	return Status{}, false
}

// FindByName finds a status by exact name only
func (t *Taxonomy) FindByName(name string) (Status, bool) {
	for _, s := range t.list {
		if s.Name == name {
			return s, true
		}
	}
	return Status{}, false
}

// MustFindByName is FindByName returning a NotFoundError when absent
func (t *Taxonomy) MustFindByName(name string) (Status, error) {
	if s, ok := t.FindByName(name); ok {
		return s, nil
	}
	return Status{}, &NotFoundError{Name: name, Known: t.All()}
}

// Expand resolves each name or id in order, skipping duplicates.
// Unresolved entries are passed to onMissing when it is non-nil,
// otherwise Expand fails with a NotFoundError.
func (t *Taxonomy) Expand(namesOrIDs []string, onMissing func(string)) ([]Status, error) {
	var result []Status
	for _, n := range namesOrIDs {
		s, ok := t.Resolve(n)
		if !ok {
			if onMissing != nil {
				onMissing(n)
				continue
			}
			return nil, &NotFoundError{Name: n, Known: t.All()}
		}
		if containsStatus(result, s) {
			continue
		}
		result = append(result, s)
	}
	return result, nil
}

// FilterByCategory returns the names of statuses in category, plus
// including, minus excluding.
func (t *Taxonomy) FilterByCategory(category string, including, excluding []string) ([]string, error) {
	inc, err := t.Expand(including, nil)
	if err != nil {
		return nil, err
	}
	exc, err := t.Expand(excluding, nil)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var names []string
	for _, s := range t.list {
		keep := s.CategoryName == category || hasName(inc, s.Name)
		if hasName(exc, s.Name) {
			keep = false
		}
		if keep && !seen[s.Name] {
			seen[s.Name] = true
			names = append(names, s.Name)
		}
	}
	return names, nil
}

// ToDo returns the names of "To Do" statuses
func (t *Taxonomy) ToDo(including, excluding []string) ([]string, error) {
	return t.FilterByCategory(CategoryToDo, including, excluding)
}

// InProgress returns the names of "In Progress" statuses
func (t *Taxonomy) InProgress(including, excluding []string) ([]string, error) {
	return t.FilterByCategory(CategoryInProgress, including, excluding)
}

// Done returns the names of "Done" statuses
func (t *Taxonomy) Done(including, excluding []string) ([]string, error) {
	return t.FilterByCategory(CategoryDone, including, excluding)
}

// All returns a copy of the registered statuses in insertion order
func (t *Taxonomy) All() []Status {
	out := make([]Status, len(t.list))
	copy(out, t.list)
	return out
}

func (t *Taxonomy) Len() int {
	return len(t.list)
}

// Empty reports whether nothing has been registered
func (t *Taxonomy) Empty() bool {
	return len(t.list) == 0
}

func containsStatus(list []Status, s Status) bool {
	for _, e := range list {
		if e == s {
			return true
		}
	}
	return false
}

func hasName(list []Status, name string) bool {
	for _, s := range list {
		if s.Name == name {
			return true
		}
	}
	return false
}
