package sprint

import (
	"encoding/json"
	"time"
)

// DateLayout is the label format of calendar dates.
const DateLayout = "2006-01-02"

// DailyPoint is the running total at the end of one calendar day.
// A nil Value means no data is known for that day yet.
type DailyPoint struct {
	Date  time.Time `json:"-"`
	Value *float64  `json:"value"`
}

// Label returns the date as YYYY-MM-DD.
func (p DailyPoint) Label() string {
	return p.Date.Format(DateLayout)
}

func (p DailyPoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Date  string   `json:"date"`
		Value *float64 `json:"value"`
	}{p.Label(), p.Value})
}

// DailySeries is an ordered run of consecutive calendar days.
type DailySeries []DailyPoint

// Labels returns the date labels of the series.
func (s DailySeries) Labels() []string {
	labels := make([]string, len(s))
	for i, p := range s {
		labels[i] = p.Label()
	}
	return labels
}

// Values returns the series values with nil for absent days.
func (s DailySeries) Values() []*float64 {
	values := make([]*float64, len(s))
	for i, p := range s {
		values[i] = p.Value
	}
	return values
}

// Calendar projects running totals onto daily calendars.
// A nil Location means UTC; a zero Today means the current time.
type Calendar struct {
	Location *time.Location
	Today    time.Time
}

// Iteration projects deltas onto the days from start to finish inclusive.
// Iteration boundaries are stored at UTC midnight, so their UTC calendar date
// is used.
func (c Calendar) Iteration(deltas []PointDelta, start, finish time.Time) DailySeries {
	if start.IsZero() || finish.IsZero() {
		return nil
	}
	return c.project(deltas, c.Boundary(start), c.Boundary(finish))
}

// History projects deltas onto the days from the first to the last event.
func (c Calendar) History(deltas []PointDelta) DailySeries {
	if len(deltas) == 0 {
		return nil
	}
	from := c.day(deltas[0].Event.Timestamp)
	to := c.day(deltas[len(deltas)-1].Event.Timestamp)
	return c.project(deltas, from, to)
}

func (c Calendar) project(deltas []PointDelta, from, to time.Time) DailySeries {
	if len(deltas) == 0 || from.After(to) {
		return nil
	}

	// The last event of a day is its representative total.
	totals := make(map[string]float64)
	var days []time.Time
	for _, d := range deltas {
		day := c.day(d.Event.Timestamp)
		key := day.Format(DateLayout)
		if _, seen := totals[key]; !seen {
			days = append(days, day)
		}
		totals[key] = d.RunningTotal
	}

	today := c.day(c.now())
	var series DailySeries
	for day, i := from, 0; !day.After(to); day, i = day.AddDate(0, 0, 1), i+1 {
		var value *float64
		switch total, ok := totals[day.Format(DateLayout)]; {
		case ok:
			value = ptr(total)
		case i == 0:
			value = ptr(carryIn(days, totals, from))
		case !day.After(today) && series[i-1].Value != nil:
			value = ptr(*series[i-1].Value)
		}
		series = append(series, DailyPoint{Date: day, Value: value})
	}
	return series
}

// carryIn returns the total of the latest event day before start, or zero.
func carryIn(days []time.Time, totals map[string]float64, start time.Time) float64 {
	var (
		latest time.Time
		found  bool
	)
	for _, day := range days {
		if day.Before(start) && (!found || day.After(latest)) {
			latest = day
			found = true
		}
	}
	if !found {
		return 0
	}
	return totals[latest.Format(DateLayout)]
}

// Day returns midnight of t's calendar date in the calendar's location.
func (c Calendar) Day(t time.Time) time.Time {
	return c.day(t)
}

// In returns t in the calendar's location, the one its day is counted in.
func (c Calendar) In(t time.Time) time.Time {
	return t.In(c.loc())
}

// Boundary returns the calendar date of an iteration boundary, which is
// stored at UTC midnight.
func (c Calendar) Boundary(t time.Time) time.Time {
	return c.civilDate(t.UTC())
}

// Now returns the current time, or Today when set.
func (c Calendar) Now() time.Time {
	return c.now()
}

func (c Calendar) loc() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

func (c Calendar) now() time.Time {
	if c.Today.IsZero() {
		return time.Now()
	}
	return c.Today
}

// day truncates t to midnight of its calendar date in the calendar's location.
func (c Calendar) day(t time.Time) time.Time {
	return c.civilDate(t.In(c.loc()))
}

// civilDate keeps t's year, month and day as read in t's own location.
func (c Calendar) civilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.loc())
}

func ptr(v float64) *float64 {
	return &v
}
