package engine

import (
	"fmt"
	"math/rand"
	"time"

	"sprint-history/internal/revlog"
	"sprint-history/internal/sprint"
)

// Iteration paths of the generated project.
const (
	BacklogPath = `Mock\Backlog`
	SprintPath  = `Mock\Sprint 1`
	NextPath    = `Mock\Sprint 2`
)

var estimates = []float64{1, 2, 3, 5, 8}

type GeneratorConfig struct {
	Scenario   string // "stable", "churn" or "late"
	Count      int
	SprintDays int
	Now        time.Time
	Seed       int64
}

type mockItem struct {
	rev sprint.Revision
}

// change records the next revision of the item, at least one hour after the
// previous one.
func (m *mockItem) change(at time.Time, mutate func(r *sprint.Revision)) sprint.Revision {
	if !at.After(m.rev.Timestamp) {
		at = m.rev.Timestamp.Add(time.Hour)
	}
	mutate(&m.rev)
	m.rev.Ordinal++
	m.rev.Timestamp = at
	return m.rev
}

// Generate builds a sprint that ended yesterday and the revision histories of
// its work items. The same seed always yields the same data.
func Generate(cfg GeneratorConfig) (sprint.Iteration, []sprint.Revision) {
	if cfg.Now.IsZero() {
		cfg.Now = time.Now()
	}
	if cfg.SprintDays <= 0 {
		cfg.SprintDays = 10
	}
	rng := rand.New(rand.NewSource(cfg.Seed))

	today := time.Date(cfg.Now.Year(), cfg.Now.Month(), cfg.Now.Day(), 0, 0, 0, 0, time.UTC)
	finish := today.AddDate(0, 0, -1)
	start := finish.AddDate(0, 0, -(cfg.SprintDays - 1))
	it := sprint.Iteration{
		ID:     "mock-sprint-1",
		Name:   "Sprint 1",
		Path:   SprintPath,
		Start:  start,
		Finish: finish,
	}

	sprintDay := func() time.Time {
		return start.AddDate(0, 0, rng.Intn(cfg.SprintDays)).Add(time.Duration(9+rng.Intn(8)) * time.Hour)
	}

	closeRate := 0.6
	if cfg.Scenario == "stable" {
		closeRate = 0.8
	}

	var revisions []sprint.Revision
	for i := 0; i < cfg.Count; i++ {
		item := &mockItem{rev: sprint.Revision{
			ItemID:     i + 1,
			Ordinal:    1,
			SprintPath: BacklogPath,
			Points:     estimates[rng.Intn(len(estimates))],
			State:      "New",
			ItemType:   "User Story",
			Title:      fmt.Sprintf("Mock story %d", i+1),
			Timestamp:  start.AddDate(0, 0, -5).Add(time.Duration(i) * time.Minute),
		}}
		revisions = append(revisions, item.rev)

		// 1. Planning, or a late addition during the sprint
		joined := start.AddDate(0, 0, -1).Add(time.Duration(9*60+i) * time.Minute)
		if cfg.Scenario == "late" && rng.Float64() < 0.3 {
			joined = sprintDay()
		}
		revisions = append(revisions, item.change(joined, func(r *sprint.Revision) {
			r.SprintPath = SprintPath
		}))

		// 2. Scope churn
		if cfg.Scenario == "churn" {
			if rng.Float64() < 0.3 {
				revisions = append(revisions, item.change(sprintDay(), func(r *sprint.Revision) {
					r.Points = estimates[rng.Intn(len(estimates))]
				}))
			}
			if rng.Float64() < 0.2 {
				revisions = append(revisions, item.change(sprintDay(), func(r *sprint.Revision) {
					r.SprintPath = NextPath
				}))
				continue
			}
		}

		// 3. Work and completion
		if rng.Float64() >= closeRate {
			continue
		}
		done := sprintDay()
		revisions = append(revisions, item.change(done.Add(-4*time.Hour), func(r *sprint.Revision) {
			r.State = "Active"
		}))
		revisions = append(revisions, item.change(done, func(r *sprint.Revision) {
			r.State = sprint.StateClosed
		}))

		// Re-estimated after closing, which must not move the total
		if cfg.Scenario == "late" && rng.Float64() < 0.15 {
			revisions = append(revisions, item.change(done.Add(2*time.Hour), func(r *sprint.Revision) {
				r.Points++
			}))
		}
	}

	return it, revisions
}

// Save writes the revisions as a revision cache partition with its iteration.
func Save(outDir string, sourceID string, it sprint.Iteration, revisions []sprint.Revision) error {
	store := revlog.NewStore()
	store.Append(sourceID, revisions)
	if err := store.Save(outDir, sourceID); err != nil {
		return err
	}
	return revlog.SaveIteration(outDir, sourceID, it)
}
