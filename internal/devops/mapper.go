package devops

import (
	"time"

	"sprint-history/internal/sprint"
)

// ToRawRevisions maps revision DTOs onto the engine's input shape.
func ToRawRevisions(dtos []WorkItemDTO) []sprint.RawRevision {
	raws := make([]sprint.RawRevision, 0, len(dtos))
	for _, dto := range dtos {
		raws = append(raws, sprint.RawRevision{
			ID:     dto.ID,
			Rev:    dto.Rev,
			URL:    dto.URL,
			Fields: dto.Fields,
		})
	}
	return raws
}

// ToIteration maps a team iteration onto the engine's iteration bounds.
// Unscheduled iterations get zero dates.
func ToIteration(ti TeamIteration) sprint.Iteration {
	it := sprint.Iteration{
		ID:   ti.ID,
		Name: ti.Name,
		Path: ti.Path,
	}
	if ti.Attributes.StartDate != nil {
		it.Start = ti.Attributes.StartDate.UTC()
	}
	if ti.Attributes.FinishDate != nil {
		it.Finish = ti.Attributes.FinishDate.UTC()
	}
	return it
}

// IterationSummary is the list view of a team iteration.
type IterationSummary struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Path      string     `json:"path"`
	StartDate *time.Time `json:"startDate,omitempty"`
	EndDate   *time.Time `json:"finishDate,omitempty"`
	TimeFrame string     `json:"timeFrame,omitempty"`
}

// SummarizeIterations flattens iteration attributes for tool responses.
func SummarizeIterations(iterations []TeamIteration) []IterationSummary {
	out := make([]IterationSummary, 0, len(iterations))
	for _, ti := range iterations {
		out = append(out, IterationSummary{
			ID:        ti.ID,
			Name:      ti.Name,
			Path:      ti.Path,
			StartDate: ti.Attributes.StartDate,
			EndDate:   ti.Attributes.FinishDate,
			TimeFrame: ti.Attributes.TimeFrame,
		})
	}
	return out
}
