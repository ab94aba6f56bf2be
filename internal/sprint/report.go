package sprint

import (
	"time"
)

// ItemHistory is the full revision history of one work item.
type ItemHistory struct {
	ItemID    int        `json:"id"`
	Revisions []Revision `json:"revisions"`
}

// Iteration identifies the target sprint and its calendar bounds.
type Iteration struct {
	ID     string    `json:"id"`
	Name   string    `json:"name"`
	Path   string    `json:"path"`
	Start  time.Time `json:"startDate"`
	Finish time.Time `json:"finishDate"`
}

// Summary condenses a report for table headers and tool responses.
type Summary struct {
	ItemCount         int     `json:"itemCount"`
	StartTotal        float64 `json:"startTotal"`
	EndTotal          float64 `json:"endTotal"`
	TotalAdded        float64 `json:"totalAdded"`
	TotalSubtracted   float64 `json:"totalSubtracted"`
	PreSprintChanges  int     `json:"preSprintChanges"`
	PostSprintChanges int     `json:"postSprintChanges"`
	NeedsReview       int     `json:"needsReview"`
}

// Report is the outcome of one evaluation of a sprint.
type Report struct {
	Iteration    Iteration    `json:"iteration"`
	Events       []PointDelta `json:"events"`
	Daily        DailySeries  `json:"daily"`
	DailyHistory DailySeries  `json:"dailyHistory"`
	Summary      Summary      `json:"summary"`
}

// Analyze reconstructs the point history of a sprint from raw item histories.
func Analyze(histories []ItemHistory, it Iteration, cal Calendar) Report {
	spans := make([][]Revision, 0, len(histories))
	for _, h := range histories {
		if span := SelectRelevant(h.Revisions, it.Path); len(span) > 0 {
			spans = append(spans, span)
		}
	}

	events := CompactAndClassify(spans, it.Path)
	deltas := ComputeDeltas(events)

	return Report{
		Iteration:    it,
		Events:       deltas,
		Daily:        cal.Iteration(deltas, it.Start, it.Finish),
		DailyHistory: cal.History(deltas),
		Summary:      summarize(deltas, len(spans), it, cal),
	}
}

func summarize(deltas []PointDelta, items int, it Iteration, cal Calendar) Summary {
	s := Summary{ItemCount: items}

	var start, finish time.Time
	if !it.Start.IsZero() {
		start = cal.Boundary(it.Start)
	}
	if !it.Finish.IsZero() {
		finish = cal.Boundary(it.Finish)
	}

	for _, d := range deltas {
		s.TotalAdded += d.Added
		s.TotalSubtracted += d.Subtracted
		s.EndTotal = d.RunningTotal
		if d.NeedsReview {
			s.NeedsReview++
		}

		day := cal.day(d.Event.Timestamp)
		if !start.IsZero() && day.Before(start) {
			s.PreSprintChanges++
			s.StartTotal = d.RunningTotal
		}
		if !finish.IsZero() && day.After(finish) {
			s.PostSprintChanges++
		}
	}
	return s
}

// ChangesWithin returns the deltas whose event date lies inside the
// iteration, in order.
func (r Report) ChangesWithin(cal Calendar) []PointDelta {
	if r.Iteration.Start.IsZero() || r.Iteration.Finish.IsZero() {
		return r.Events
	}
	start := cal.Boundary(r.Iteration.Start)
	finish := cal.Boundary(r.Iteration.Finish)

	var within []PointDelta
	for _, d := range r.Events {
		day := cal.day(d.Event.Timestamp)
		if !day.Before(start) && !day.After(finish) {
			within = append(within, d)
		}
	}
	return within
}
