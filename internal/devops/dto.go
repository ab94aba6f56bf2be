package devops

import "time"

// listResponse is the envelope of every Azure DevOps collection endpoint.
type listResponse[T any] struct {
	Count int `json:"count"`
	Value []T `json:"value"`
}

// Team is a project team.
type Team struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// TeamIteration is an iteration subscribed to by a team.
type TeamIteration struct {
	ID         string              `json:"id"`
	Name       string              `json:"name"`
	Path       string              `json:"path"`
	Attributes IterationAttributes `json:"attributes"`
}

// IterationAttributes carries the iteration dates. Unscheduled iterations
// have no dates.
type IterationAttributes struct {
	StartDate  *time.Time `json:"startDate"`
	FinishDate *time.Time `json:"finishDate"`
	TimeFrame  string     `json:"timeFrame"`
}

// WorkItemType is a process work item type with its field definitions.
type WorkItemType struct {
	Name          string              `json:"name"`
	ReferenceName string              `json:"referenceName"`
	Fields        []WorkItemTypeField `json:"fields"`
}

// WorkItemTypeField is a field reference on a work item type.
type WorkItemTypeField struct {
	Name          string `json:"name"`
	ReferenceName string `json:"referenceName"`
}

// WorkItemReference is one row of a flat WIQL result.
type WorkItemReference struct {
	ID  int    `json:"id"`
	URL string `json:"url"`
}

type wiqlRequest struct {
	Query string `json:"query"`
}

type wiqlResponse struct {
	QueryType string              `json:"queryType"`
	WorkItems []WorkItemReference `json:"workItems"`
}

// WorkItemDTO is a work item or one of its revisions.
type WorkItemDTO struct {
	ID     int            `json:"id"`
	Rev    int            `json:"rev"`
	Fields map[string]any `json:"fields"`
	URL    string         `json:"url"`
}
