package issue

import "strings"

// Field identifies which tracker field a change event touches.
// The set is closed: anything unrecognised is FieldOther.
type Field int

const (
	FieldOther Field = iota
	FieldStatus
	FieldResolution
	FieldFlagged
	FieldSprint
	FieldStoryPoints
	FieldPriority
	FieldComment
)

var fieldNames = map[Field]string{
	FieldOther:       "other",
	FieldStatus:      "status",
	FieldResolution:  "resolution",
	FieldFlagged:     "flagged",
	FieldSprint:      "sprint",
	FieldStoryPoints: "story_points",
	FieldPriority:    "priority",
	FieldComment:     "comment",
}

func (f Field) String() string {
	if name, ok := fieldNames[f]; ok {
		return name
	}
	return "other"
}

// ParseField classifies a Jira changelog field name
func ParseField(name string) Field {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "status":
		return FieldStatus
	case "resolution":
		return FieldResolution
	case "flagged":
		return FieldFlagged
	case "sprint":
		return FieldSprint
	case "story points", "story point estimate", "story_points":
		return FieldStoryPoints
	case "priority":
		return FieldPriority
	case "comment":
		return FieldComment
	default:
		return FieldOther
	}
}
