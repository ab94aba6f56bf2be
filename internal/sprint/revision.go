package sprint

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Azure DevOps field reference names consumed by the engine.
const (
	FieldIterationPath = "System.IterationPath"
	FieldStoryPoints   = "Microsoft.VSTS.Scheduling.StoryPoints"
	FieldState         = "System.State"
	FieldWorkItemType  = "System.WorkItemType"
	FieldChangedDate   = "System.ChangedDate"
	FieldTitle         = "System.Title"
)

const (
	// StateClosed marks a finished work item.
	StateClosed = "Closed"
	// StateRemoved marks a work item cut from scope.
	StateRemoved = "Removed"
)

// RawRevision is a work item snapshot as returned by the revisions API.
type RawRevision struct {
	ID     int            `json:"id"`
	Rev    int            `json:"rev"`
	URL    string         `json:"url,omitempty"`
	Fields map[string]any `json:"fields"`
}

// Revision is the canonical record of a work item at one point in its history.
type Revision struct {
	ItemID     int       `json:"id"`
	Ordinal    int       `json:"rev"`
	SprintPath string    `json:"iterationPath"`
	Points     float64   `json:"storyPoints"`
	State      string    `json:"state"`
	ItemType   string    `json:"workItemType,omitempty"`
	Title      string    `json:"title,omitempty"`
	URL        string    `json:"url,omitempty"`
	Timestamp  time.Time `json:"changedDate"`
}

// IsClosed reports whether the revision is in the Closed state.
func (r Revision) IsClosed() bool {
	return r.State == StateClosed
}

// IsRemoved reports whether the revision is in the Removed state.
func (r Revision) IsRemoved() bool {
	return r.State == StateRemoved
}

// Normalize maps a raw revision onto the canonical record.
// Missing or malformed fields degrade to zero values.
func Normalize(raw RawRevision) Revision {
	return Revision{
		ItemID:     raw.ID,
		Ordinal:    raw.Rev,
		SprintPath: stringField(raw.Fields, FieldIterationPath),
		Points:     pointsField(raw.Fields, FieldStoryPoints),
		State:      stringField(raw.Fields, FieldState),
		ItemType:   stringField(raw.Fields, FieldWorkItemType),
		Title:      stringField(raw.Fields, FieldTitle),
		URL:        browserURL(raw.URL),
		Timestamp:  timeField(raw.Fields, FieldChangedDate),
	}
}

// NormalizeAll normalizes a batch of raw revisions, preserving order.
func NormalizeAll(raws []RawRevision) []Revision {
	out := make([]Revision, 0, len(raws))
	for _, raw := range raws {
		out = append(out, Normalize(raw))
	}
	return out
}

func stringField(fields map[string]any, key string) string {
	v, ok := fields[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func pointsField(fields map[string]any, key string) float64 {
	var f float64
	switch v := fields[key].(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		f, _ = v.Float64()
	case string:
		f, _ = strconv.ParseFloat(strings.TrimSpace(v), 64)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}

func timeField(fields map[string]any, key string) time.Time {
	switch v := fields[key].(type) {
	case time.Time:
		return v
	case string:
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

// browserURL turns a REST resource link into the work item's edit page.
func browserURL(apiURL string) string {
	u := strings.Replace(apiURL, "/_apis/wit/workItems/", "/_workitems/edit/", 1)
	if i := strings.Index(u, "/revisions/"); i >= 0 {
		u = u[:i]
	}
	return u
}
