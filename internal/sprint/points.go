package sprint

// Direction of an event's contribution to the running total.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
	Flat Direction = "flat"
)

// Arrow returns the symbol shown next to the running total.
func (d Direction) Arrow() string {
	switch d {
	case Up:
		return "↑"
	case Down:
		return "↓"
	default:
		return ""
	}
}

// PointDelta is the point contribution of one change event.
type PointDelta struct {
	Event          ChangeEvent `json:"event"`
	Added          float64     `json:"added"`
	Subtracted     float64     `json:"subtracted"`
	ShowAdded      bool        `json:"showAdded"`
	ShowSubtracted bool        `json:"showSubtracted"`
	RunningTotal   float64     `json:"runningTotal"`
	Direction      Direction   `json:"direction"`
	NeedsReview    bool        `json:"needsReview,omitempty"`
}

// Net is the signed change applied to the running total.
func (d PointDelta) Net() float64 {
	return d.Added - d.Subtracted
}

// ComputeDeltas applies the point policy to every event in order and
// accumulates the running total from zero.
func ComputeDeltas(events []ChangeEvent) []PointDelta {
	deltas := make([]PointDelta, 0, len(events))
	total := 0.0
	for _, e := range events {
		d := computeDelta(e)
		total += d.Net()
		d.RunningTotal = total
		deltas = append(deltas, d)
	}
	return deltas
}

func computeDelta(e ChangeEvent) PointDelta {
	d := PointDelta{Event: e}

	current := e.Points
	prior, _ := e.PreviousPoints()
	closed := e.IsClosed()
	priorClosed := e.Previous != nil && e.Previous.IsClosed()
	pointsChanged := e.Kind.Has(PointsChanged)

	if closed {
		d.Subtracted = current
		d.ShowSubtracted = true
	}
	if e.Kind.Has(Added) {
		d.Added = current
		d.ShowAdded = true
	}
	if e.Kind.Has(Reopened) {
		d.Added = current
		d.ShowAdded = true
	}
	if e.Kind.Has(Removed) {
		d.Subtracted = current
		d.ShowSubtracted = true
		if closed && priorClosed {
			// Already taken off the total when it closed.
			d.Subtracted = 0
		} else if pointsChanged {
			d.Added = current
			d.ShowAdded = true
			d.Subtracted += prior
		}
	}
	if pointsChanged {
		switch {
		case !d.ShowAdded && !d.ShowSubtracted:
			d.Added = current
			d.Subtracted = prior
			d.ShowAdded = true
			d.ShowSubtracted = true
		case closed:
			d.Added = current
			d.ShowAdded = true
			d.ShowSubtracted = true
			if priorClosed {
				// Off the total since it closed; a re-estimate nets to zero.
				d.Subtracted = current
			} else {
				d.Subtracted += prior
			}
		}
	}

	switch {
	case d.Added > d.Subtracted:
		d.Direction = Up
	case d.Added < d.Subtracted:
		d.Direction = Down
	default:
		d.Direction = Flat
	}

	d.NeedsReview = needsReview(e.Kind, closed)
	return d
}

// needsReview flags kind combinations the point policy does not cover
// unambiguously.
func needsReview(kind ChangeKind, closed bool) bool {
	switch {
	case kind.Has(Unknown):
		return true
	case kind.Has(Removed | Reopened):
		return true
	case closed && kind.Has(Removed|PointsChanged):
		return true
	}
	return false
}
