package devops

import (
	"fmt"
	"slices"
	"strings"

	"sprint-history/internal/sprint"
)

// DefaultWorkItemType is queried when no additional types are configured.
const DefaultWorkItemType = "User Story"

// BuildIterationQuery returns the WIQL selecting every work item that was
// ever assigned to the iteration path. Types in exclude are filtered out;
// when include is empty only User Stories are selected.
func BuildIterationQuery(path string, exclude, include []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Select [System.Id] From WorkItems Where EVER ([%s] = '%s')", sprint.FieldIterationPath, quote(path))

	for _, name := range exclude {
		fmt.Fprintf(&b, " AND ([%s] <> '%s')", sprint.FieldWorkItemType, quote(name))
	}

	if len(include) == 0 {
		include = []string{DefaultWorkItemType}
	}
	b.WriteString(" AND (")
	for i, name := range include {
		if i > 0 {
			b.WriteString(" OR ")
		}
		fmt.Fprintf(&b, "([%s] = '%s')", sprint.FieldWorkItemType, quote(name))
	}
	b.WriteString(")")

	return b.String()
}

// quote escapes a WIQL string literal.
func quote(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// TypesWithoutStoryPoints returns the names of work item types that have no
// story points field.
func TypesWithoutStoryPoints(types []WorkItemType) []string {
	var names []string
	for _, t := range types {
		hasPoints := slices.ContainsFunc(t.Fields, func(f WorkItemTypeField) bool {
			return f.ReferenceName == sprint.FieldStoryPoints
		})
		if !hasPoints {
			names = append(names, t.Name)
		}
	}
	return names
}

// TypesWithStoryPoints returns the names of work item types that carry a
// story points field, i.e. the valid choices for additional types.
func TypesWithStoryPoints(types []WorkItemType) []string {
	excluded := TypesWithoutStoryPoints(types)
	var names []string
	for _, t := range types {
		if !slices.Contains(excluded, t.Name) {
			names = append(names, t.Name)
		}
	}
	return names
}

// CurrentIteration returns the iteration the team is currently in.
func CurrentIteration(iterations []TeamIteration) (TeamIteration, error) {
	for _, it := range iterations {
		if strings.EqualFold(it.Attributes.TimeFrame, "current") {
			return it, nil
		}
	}
	return TeamIteration{}, fmt.Errorf("no current iteration: %w", ErrIterationNotFound)
}

// FindIteration resolves an iteration by id, name or path. "current" selects
// the current iteration.
func FindIteration(iterations []TeamIteration, ref string) (TeamIteration, error) {
	if ref == "" || strings.EqualFold(ref, "current") {
		return CurrentIteration(iterations)
	}
	for _, it := range iterations {
		if it.ID == ref || strings.EqualFold(it.Name, ref) || strings.EqualFold(it.Path, ref) {
			return it, nil
		}
	}
	return TeamIteration{}, fmt.Errorf("iteration %q: %w", ref, ErrIterationNotFound)
}

// FindTeam resolves a team by id or case-insensitive name.
func FindTeam(teams []Team, ref string) (Team, error) {
	for _, t := range teams {
		if t.ID == ref || strings.EqualFold(t.Name, ref) {
			return t, nil
		}
	}
	return Team{}, fmt.Errorf("team %q: %w", ref, ErrTeamNotFound)
}
