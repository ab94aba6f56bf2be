package sprint

import (
	"cmp"
	"slices"
)

// SelectRelevant returns the span of an item's revisions that belongs to the
// given sprint. The span starts at the first revision assigned to the sprint.
// If the item later leaves the sprint, the span ends with the revision that
// follows the last one still assigned to it (the exit revision).
// Items never assigned to the sprint yield nil.
func SelectRelevant(revisions []Revision, sprintPath string) []Revision {
	ordered := slices.Clone(revisions)
	slices.SortStableFunc(ordered, func(a, b Revision) int {
		return cmp.Compare(a.Ordinal, b.Ordinal)
	})

	first := slices.IndexFunc(ordered, func(r Revision) bool {
		return r.SprintPath == sprintPath
	})
	if first < 0 {
		return nil
	}

	candidates := ordered[first:]
	last := lastIndexInSprint(candidates, sprintPath)

	// Still in the sprint at the newest revision: nothing to cut.
	if last == len(candidates)-1 {
		return candidates
	}

	return candidates[:last+2]
}

func lastIndexInSprint(revisions []Revision, sprintPath string) int {
	for i := len(revisions) - 1; i >= 0; i-- {
		if revisions[i].SprintPath == sprintPath {
			return i
		}
	}
	return -1
}
