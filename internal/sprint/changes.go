package sprint

import (
	"encoding/json"
	"slices"
	"strings"
)

// ChangeKind is a set of change flags; one event may carry several.
type ChangeKind uint8

const (
	Added ChangeKind = 1 << iota
	Removed
	Reopened
	Closed
	PointsChanged
	Unknown
)

var kindNames = []struct {
	kind ChangeKind
	name string
}{
	{Added, "Added"},
	{Removed, "Removed"},
	{Reopened, "Reopened"},
	{Closed, "Closed"},
	{PointsChanged, "Points Changed"},
	{Unknown, "Unknown"},
}

// Has reports whether all flags in f are set.
func (k ChangeKind) Has(f ChangeKind) bool {
	return f != 0 && k&f == f
}

// Names lists the set flags in display order.
func (k ChangeKind) Names() []string {
	var names []string
	for _, kn := range kindNames {
		if k.Has(kn.kind) {
			names = append(names, kn.name)
		}
	}
	return names
}

func (k ChangeKind) String() string {
	return strings.Join(k.Names(), ", ")
}

func (k ChangeKind) MarshalJSON() ([]byte, error) {
	names := k.Names()
	if names == nil {
		names = []string{}
	}
	return json.Marshal(names)
}

func (k *ChangeKind) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	*k = 0
	for _, n := range names {
		for _, kn := range kindNames {
			if kn.name == n {
				*k |= kn.kind
			}
		}
	}
	return nil
}

// ChangeEvent is a classified transition of one item.
type ChangeEvent struct {
	Revision
	Kind     ChangeKind `json:"change"`
	Previous *Revision  `json:"previous,omitempty"`
}

// PreviousPoints returns the points of the prior kept revision, if any.
func (e ChangeEvent) PreviousPoints() (float64, bool) {
	if e.Previous == nil {
		return 0, false
	}
	return e.Previous.Points, true
}

// CompactAndClassify merges the relevant spans of all items into one
// chronological stream, drops revisions that change nothing of interest and
// classifies what is left.
func CompactAndClassify(spans [][]Revision, sprintPath string) []ChangeEvent {
	var flat []Revision
	for _, span := range spans {
		flat = append(flat, span...)
	}

	// Stable: revisions sharing a timestamp keep their relative order.
	slices.SortStableFunc(flat, func(a, b Revision) int {
		return a.Timestamp.Compare(b.Timestamp)
	})

	kept := compact(flat)

	events := make([]ChangeEvent, 0, len(kept))
	lastByItem := make(map[int]Revision)
	for _, rev := range kept {
		var prev *Revision
		if p, ok := lastByItem[rev.ItemID]; ok {
			prev = &p
		}
		events = append(events, ChangeEvent{
			Revision: rev,
			Kind:     classify(rev, prev, sprintPath),
			Previous: prev,
		})
		if prev == nil || rev.Ordinal >= prev.Ordinal {
			lastByItem[rev.ItemID] = rev
		}
	}
	return events
}

func compact(revisions []Revision) []Revision {
	var kept []Revision
	for _, rev := range revisions {
		if len(kept) == 0 || isInteresting(rev, kept[len(kept)-1]) {
			kept = append(kept, rev)
		}
	}
	return kept
}

// isInteresting reports whether cur differs from prev in any tracked field.
// A points change on a closed item does not count on its own.
func isInteresting(cur, prev Revision) bool {
	switch {
	case cur.ItemID != prev.ItemID:
		return true
	case cur.IsClosed() != prev.IsClosed():
		return true
	case cur.Points != prev.Points && !cur.IsClosed():
		return true
	case cur.IsRemoved() != prev.IsRemoved():
		return true
	case cur.SprintPath != prev.SprintPath:
		return true
	}
	return false
}

func classify(cur Revision, prev *Revision, sprintPath string) ChangeKind {
	if prev == nil {
		return Added
	}

	var kind ChangeKind
	if prev.SprintPath != cur.SprintPath {
		if cur.SprintPath == sprintPath {
			kind |= Added
		} else {
			kind |= Removed
		}
	} else if prev.IsRemoved() && !cur.IsRemoved() {
		kind |= Reopened
	} else if !prev.IsRemoved() && cur.IsRemoved() {
		kind |= Removed
	}

	if prev.IsClosed() != cur.IsClosed() {
		if cur.IsClosed() {
			kind |= Closed
		} else {
			kind |= Reopened
		}
	}

	if prev.Points != cur.Points {
		kind |= PointsChanged
	}

	if kind == 0 {
		kind = Unknown
	}
	return kind
}
