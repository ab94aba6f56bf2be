package visuals

import (
	"time"

	"sprint-history/internal/sprint"
)

func at(day, hour int) time.Time {
	return time.Date(2024, 3, day, hour, 0, 0, 0, time.UTC)
}

func rev(id, ord int, path string, points float64, state string, ts time.Time) sprint.Revision {
	return sprint.Revision{
		ItemID:     id,
		Ordinal:    ord,
		SprintPath: path,
		Points:     points,
		State:      state,
		Title:      "Item " + string(rune('A'+id-1)),
		Timestamp:  ts,
	}
}

// sampleReport is a five day sprint with one change before it and one after:
// +3 on Mar 2, +2 on Mar 5, +2 on Mar 6, -5 on Mar 7 and -2 on Mar 10.
func sampleReport(today time.Time) (sprint.Report, sprint.Calendar) {
	histories := []sprint.ItemHistory{
		{ItemID: 1, Revisions: []sprint.Revision{
			rev(1, 1, "S1", 3, "New", at(2, 9)),
			rev(1, 2, "S1", 5, "Active", at(5, 9)),
			rev(1, 3, "S1", 5, sprint.StateClosed, at(7, 9)),
		}},
		{ItemID: 2, Revisions: []sprint.Revision{
			rev(2, 1, "S1", 2, "New", at(6, 9)),
			rev(2, 2, "S2", 2, "New", at(10, 9)),
		}},
	}
	it := sprint.Iteration{
		ID:     "it-1",
		Name:   "Sprint 1",
		Path:   "S1",
		Start:  at(4, 0),
		Finish: at(8, 0),
	}
	cal := sprint.Calendar{Today: today}
	return sprint.Analyze(histories, it, cal), cal
}

// lateNightReport has a single change at 23:30 UTC the evening before the
// sprint starts, which is already the first sprint day at UTC+2.
func lateNightReport() (sprint.Report, sprint.Calendar) {
	histories := []sprint.ItemHistory{
		{ItemID: 1, Revisions: []sprint.Revision{
			rev(1, 1, "S1", 3, "New", time.Date(2024, 3, 3, 23, 30, 0, 0, time.UTC)),
		}},
	}
	it := sprint.Iteration{ID: "it-1", Name: "Sprint 1", Path: "S1", Start: at(4, 0), Finish: at(8, 0)}
	cal := sprint.Calendar{Location: time.FixedZone("UTC+2", 2*60*60), Today: at(30, 0)}
	return sprint.Analyze(histories, it, cal), cal
}
