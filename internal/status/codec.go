package status

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// rawID accepts ids encoded as either JSON strings or numbers
type rawID string

func (r *rawID) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*r = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*r = rawID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id %s", string(data))
	}
	if i, err := n.Int64(); err == nil {
		*r = rawID(strconv.FormatInt(i, 10))
		return nil
	}
	*r = rawID(n.String())
	return nil
}

type rawStatus struct {
	ID             rawID  `json:"id"`
	Name           string `json:"name"`
	StatusCategory struct {
		ID   rawID  `json:"id"`
		Name string `json:"name"`
	} `json:"statusCategory"`
	Scope *struct {
		Project *struct {
			ID rawID `json:"id"`
		} `json:"project"`
	} `json:"scope"`
}

func (r rawStatus) toStatus() Status {
	s := Status{
		Name:         r.Name,
		ID:           string(r.ID),
		CategoryName: r.StatusCategory.Name,
		CategoryID:   string(r.StatusCategory.ID),
	}
	if r.Scope != nil && r.Scope.Project != nil {
		s.ProjectID = string(r.Scope.Project.ID)
	}
	return s
}

// ParseStatuses decodes a Jira status list (GET /rest/api/2/status)
func ParseStatuses(data []byte) ([]Status, error) {
	var raw []rawStatus
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode statuses: %w", err)
	}
	out := make([]Status, 0, len(raw))
	for _, r := range raw {
		out = append(out, r.toStatus())
	}
	return out, nil
}

// ParseStatus decodes a single Jira status object
func ParseStatus(data []byte) (Status, error) {
	var r rawStatus
	if err := json.Unmarshal(data, &r); err != nil {
		return Status{}, fmt.Errorf("failed to decode status: %w", err)
	}
	return r.toStatus(), nil
}
