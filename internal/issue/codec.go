package issue

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kiracore/jiraflow/internal/status"
)

// ParseOptions controls how raw issue JSON is decoded
type ParseOptions struct {
	// Location is applied to every timestamp. Defaults to UTC.
	Location *time.Location
	// ParentLinkFields are custom field ids that may hold the parent key
	ParentLinkFields []string
}

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
	*r = rawID(n.String())
	return nil
}

type rawUser struct {
	DisplayName string `json:"displayName"`
	Name        string `json:"name"`
}

type rawKeyRef struct {
	Key string `json:"key"`
}

type rawIssue struct {
	Key       string          `json:"key"`
	Self      string          `json:"self"`
	Fields    json.RawMessage `json:"fields"`
	Changelog *struct {
		Histories []struct {
			Created string   `json:"created"`
			Author  *rawUser `json:"author"`
			Items   []struct {
				Field      string  `json:"field"`
				FieldID    string  `json:"fieldId"`
				From       *string `json:"from"`
				FromString *string `json:"fromString"`
				To         *string `json:"to"`
				ToString   *string `json:"toString"`
			} `json:"items"`
		} `json:"histories"`
	} `json:"changelog"`
	Exporter *struct {
		InInitialQuery *bool `json:"in_initial_query"`
	} `json:"exporter"`
}

type rawFields struct {
	Created   string `json:"created"`
	Updated   string `json:"updated"`
	Summary   string `json:"summary"`
	IssueType *struct {
		Name string `json:"name"`
	} `json:"issuetype"`
	Status   json.RawMessage `json:"status"`
	Priority *struct {
		ID   rawID  `json:"id"`
		Name string `json:"name"`
	} `json:"priority"`
	Resolution *struct {
		Name string `json:"name"`
	} `json:"resolution"`
	Labels     []string `json:"labels"`
	Assignee   *rawUser `json:"assignee"`
	Creator    *rawUser `json:"creator"`
	Components []struct {
		Name string `json:"name"`
	} `json:"components"`
	FixVersions []struct {
		ID          rawID  `json:"id"`
		Name        string `json:"name"`
		Released    bool   `json:"released"`
		ReleaseDate string `json:"releaseDate"`
	} `json:"fixVersions"`
	IssueLinks []struct {
		Type struct {
			Name    string `json:"name"`
			Inward  string `json:"inward"`
			Outward string `json:"outward"`
		} `json:"type"`
		InwardIssue  *rawKeyRef `json:"inwardIssue"`
		OutwardIssue *rawKeyRef `json:"outwardIssue"`
	} `json:"issuelinks"`
	Subtasks []rawKeyRef `json:"subtasks"`
	Parent   *rawKeyRef  `json:"parent"`
	Epic     *rawKeyRef  `json:"epic"`
	Comment  *struct {
		Comments []struct {
			ID      rawID    `json:"id"`
			Body    string   `json:"body"`
			Created string   `json:"created"`
			Author  *rawUser `json:"author"`
		} `json:"comments"`
	} `json:"comment"`
}

var timeFormats = []string{
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05.000Z",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05Z",
	time.RFC3339,
	time.RFC3339Nano,
}

// ParseTime parses a Jira timestamp in any of the formats the API emits
func ParseTime(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range timeFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t.In(loc), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// Parse decodes one Jira issue (REST v2 with expand=changelog)
func Parse(data []byte, opts ParseOptions) (*History, error) {
	var raw rawIssue
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode issue: %w", err)
	}
	if raw.Key == "" {
		return nil, fmt.Errorf("issue has no key")
	}

	var f rawFields
	if len(raw.Fields) > 0 {
		if err := json.Unmarshal(raw.Fields, &f); err != nil {
			return nil, fmt.Errorf("failed to decode fields of %s: %w", raw.Key, err)
		}
	}

	snap, err := buildSnapshot(raw, f, opts)
	if err != nil {
		return nil, err
	}

	var changes []ChangeEvent
	if raw.Changelog != nil {
		for _, hist := range raw.Changelog.Histories {
			at, err := ParseTime(hist.Created, opts.Location)
			if err != nil {
				return nil, fmt.Errorf("%s: changelog: %w", raw.Key, err)
			}
			author := authorName(hist.Author)
			for _, item := range hist.Items {
				changes = append(changes, ChangeEvent{
					Time:       at,
					Field:      ParseField(item.Field),
					FieldName:  item.Field,
					OldValue:   deref(item.FromString),
					Value:      deref(item.ToString),
					OldValueID: deref(item.From),
					ValueID:    deref(item.To),
					Author:     author,
				})
			}
		}
	}

	if f.Comment != nil {
		for _, c := range f.Comment.Comments {
			at, err := ParseTime(c.Created, opts.Location)
			if err != nil {
				return nil, fmt.Errorf("%s: comment: %w", raw.Key, err)
			}
			changes = append(changes, ChangeEvent{
				Time:      at,
				Field:     FieldComment,
				FieldName: "comment",
				Value:     c.Body,
				ValueID:   string(c.ID),
				Author:    authorName(c.Author),
			})
		}
	}

	return New(snap, changes), nil
}

func buildSnapshot(raw rawIssue, f rawFields, opts ParseOptions) (Snapshot, error) {
	snap := Snapshot{
		Key:      raw.Key,
		Self:     raw.Self,
		Summary:  f.Summary,
		Labels:   f.Labels,
		Exported: raw.Exporter != nil,
	}
	snap.InInitialQuery = raw.Exporter == nil || raw.Exporter.InInitialQuery == nil || *raw.Exporter.InInitialQuery

	var err error
	if snap.Created, err = ParseTime(f.Created, opts.Location); err != nil {
		return snap, fmt.Errorf("%s: created: %w", raw.Key, err)
	}
	if f.Updated != "" {
		if snap.Updated, err = ParseTime(f.Updated, opts.Location); err != nil {
			return snap, fmt.Errorf("%s: updated: %w", raw.Key, err)
		}
	} else {
		snap.Updated = snap.Created
	}

	if len(f.Status) > 0 && !bytes.Equal(f.Status, []byte("null")) {
		if snap.Status, err = status.ParseStatus(f.Status); err != nil {
			return snap, fmt.Errorf("%s: %w", raw.Key, err)
		}
	}
	if f.IssueType != nil {
		snap.Type = f.IssueType.Name
	}
	if f.Priority != nil {
		snap.Priority = Value{ID: string(f.Priority.ID), Name: f.Priority.Name}
	}
	if f.Resolution != nil {
		snap.Resolution = f.Resolution.Name
	}
	if f.Assignee != nil {
		snap.Assignee = f.Assignee.DisplayName
	}
	if f.Creator != nil {
		snap.Creator = f.Creator.DisplayName
	}
	for _, c := range f.Components {
		snap.Components = append(snap.Components, c.Name)
	}
	for _, v := range f.FixVersions {
		snap.FixVersions = append(snap.FixVersions, FixVersion{
			ID: string(v.ID), Name: v.Name, Released: v.Released, ReleaseDate: v.ReleaseDate,
		})
	}
	for _, l := range f.IssueLinks {
		switch {
		case l.InwardIssue != nil:
			snap.Links = append(snap.Links, Link{Type: l.Type.Name, Direction: "inward", Label: l.Type.Inward, OtherKey: l.InwardIssue.Key})
		case l.OutwardIssue != nil:
			snap.Links = append(snap.Links, Link{Type: l.Type.Name, Direction: "outward", Label: l.Type.Outward, OtherKey: l.OutwardIssue.Key})
		}
	}
	for _, s := range f.Subtasks {
		snap.SubtaskKeys = append(snap.SubtaskKeys, s.Key)
	}

	snap.ParentKey = parentKey(raw.Fields, f, opts.ParentLinkFields)
	return snap, nil
}

// parentKey tries the parent field, then epic, then custom link fields
func parentKey(fields json.RawMessage, f rawFields, custom []string) string {
	if f.Parent != nil && f.Parent.Key != "" {
		return f.Parent.Key
	}
	if f.Epic != nil && f.Epic.Key != "" {
		return f.Epic.Key
	}
	if len(custom) == 0 || len(fields) == 0 {
		return ""
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(fields, &all); err != nil {
		return ""
	}
	for _, name := range custom {
		v, ok := all[name]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil && s != "" {
			return s
		}
		var ref rawKeyRef
		if err := json.Unmarshal(v, &ref); err == nil && ref.Key != "" {
			return ref.Key
		}
	}
	return ""
}

func authorName(u *rawUser) string {
	switch {
	case u == nil:
		return "Unknown author"
	case u.DisplayName != "":
		return u.DisplayName
	case u.Name != "":
		return u.Name
	default:
		return "Unknown author"
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// SprintIDs splits a sprint change's raw id list ("12, 13") into ints
func SprintIDs(raw string) []int {
	var ids []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if id, err := strconv.Atoi(part); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}
