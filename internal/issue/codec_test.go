package issue

import (
	"reflect"
	"testing"
	"time"
)

const sampleIssue = `{
  "key": "SP-12",
  "self": "https://example.atlassian.net/rest/api/2/issue/10012",
  "fields": {
    "created": "2022-01-01T09:00:00.000+0000",
    "updated": "2022-01-05T09:00:00.000+0000",
    "summary": "Add login",
    "issuetype": {"name": "Story"},
    "status": {"id": "10002", "name": "Done", "statusCategory": {"id": 3, "name": "Done"}},
    "priority": {"id": "3", "name": "Medium"},
    "resolution": {"name": "Fixed"},
    "labels": ["auth"],
    "creator": {"displayName": "Alice"},
    "subtasks": [{"key": "SP-13"}],
    "customfield_10014": "SP-1",
    "comment": {"comments": [
      {"id": 77, "body": "looks good", "created": "2022-01-04T12:00:00.000+0000", "author": {"displayName": "Bob"}}
    ]}
  },
  "changelog": {"histories": [
    {"created": "2022-01-03T10:00:00.000+0000", "author": {"displayName": "Bob"}, "items": [
      {"field": "status", "from": "3", "fromString": "Doing", "to": "10002", "toString": "Done"},
      {"field": "resolution", "from": null, "fromString": null, "to": "1", "toString": "Fixed"}
    ]},
    {"created": "2022-01-02T10:00:00.000+0000", "items": [
      {"field": "status", "from": "10000", "fromString": "Backlog", "to": "3", "toString": "Doing"}
    ]}
  ]},
  "exporter": {"in_initial_query": false}
}`

func TestParse(t *testing.T) {
	h, err := Parse([]byte(sampleIssue), ParseOptions{ParentLinkFields: []string{"customfield_10014"}})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if h.Key != "SP-12" || h.Summary != "Add login" || h.Type != "Story" {
		t.Errorf("snapshot = %+v", h.Snapshot)
	}
	if h.Status.Name != "Done" || h.Status.CategoryName != "Done" {
		t.Errorf("Status = %+v", h.Status)
	}
	if h.ParentKey != "SP-1" {
		t.Errorf("ParentKey = %q, want SP-1", h.ParentKey)
	}
	if !reflect.DeepEqual(h.SubtaskKeys, []string{"SP-13"}) {
		t.Errorf("SubtaskKeys = %v", h.SubtaskKeys)
	}
	if !h.Exported || h.InInitialQuery {
		t.Errorf("Exported = %v, InInitialQuery = %v", h.Exported, h.InInitialQuery)
	}
	if h.URL() != "https://example.atlassian.net/browse/SP-12" {
		t.Errorf("URL() = %q", h.URL())
	}

	var fields []Field
	for _, c := range h.Changes() {
		fields = append(fields, c.Field)
	}
	want := []Field{FieldStatus, FieldPriority, FieldStatus, FieldStatus, FieldResolution, FieldComment}
	if !reflect.DeepEqual(fields, want) {
		t.Fatalf("fields = %v, want %v", fields, want)
	}

	first := h.Changes()[0]
	if !first.Artificial || first.Value != "Backlog" || first.ValueID != "10000" {
		t.Errorf("synthetic status = %+v", first)
	}
	doing := h.Changes()[2]
	if doing.Author != "Unknown author" || doing.OldValueID != "10000" || doing.ValueID != "3" {
		t.Errorf("change = %+v", doing)
	}
	comment := h.Changes()[5]
	if comment.Value != "looks good" || comment.ValueID != "77" || comment.Artificial {
		t.Errorf("comment = %+v", comment)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{`},
		{"missing key", `{"fields": {"created": "2022-01-01T00:00:00Z"}}`},
		{"bad created", `{"key": "A-1", "fields": {"created": "yesterday"}}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse([]byte(tc.data), ParseOptions{}); err == nil {
				t.Error("Parse() error = nil, want error")
			}
		})
	}
}

func TestParseTime_Location(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	got, err := ParseTime("2022-01-02T02:00:00.000+0000", loc)
	if err != nil {
		t.Fatal(err)
	}
	if got.Location() != loc || got.Day() != 1 {
		t.Errorf("ParseTime() = %v, want previous day in %v", got, loc)
	}
}

func TestSprintIDs(t *testing.T) {
	tests := []struct {
		in   string
		want []int
	}{
		{"", nil},
		{"12", []int{12}},
		{"12, 13", []int{12, 13}},
		{"12,x,14", []int{12, 14}},
	}
	for _, tc := range tests {
		if got := SprintIDs(tc.in); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("SprintIDs(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
