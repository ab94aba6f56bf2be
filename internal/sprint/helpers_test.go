package sprint

import "time"

var day0 = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

func rev(id, ord int, path string, points float64, state string, at time.Time) Revision {
	return Revision{
		ItemID:     id,
		Ordinal:    ord,
		SprintPath: path,
		Points:     points,
		State:      state,
		Timestamp:  at,
	}
}

func hours(h int) time.Time {
	return day0.Add(time.Duration(h) * time.Hour)
}

func days(d int) time.Time {
	return day0.AddDate(0, 0, d)
}
