package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"sprint-history/cmd/mockgen/engine"
)

func main() {
	scenario := flag.String("scenario", "stable", "Scenario to generate: stable, churn, late")
	outDir := flag.String("out", "./.cache", "Output directory for mock files")
	count := flag.Int("count", 30, "Number of work items to generate")
	days := flag.Int("days", 10, "Sprint length in days")
	seed := flag.Int64("seed", time.Now().UnixNano(), "Random seed")
	flag.Parse()

	cfg := engine.GeneratorConfig{
		Scenario:   *scenario,
		Count:      *count,
		SprintDays: *days,
		Now:        time.Now(),
		Seed:       *seed,
	}

	fmt.Printf("Generating scenario '%s' (Items: %d, Days: %d) to %s...\n", cfg.Scenario, cfg.Count, cfg.SprintDays, *outDir)

	it, revisions := engine.Generate(cfg)

	sourceID := "MOCK_" + cfg.Scenario
	if err := engine.Save(*outDir, sourceID, it, revisions); err != nil {
		fmt.Printf("Failed to save mock data: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Done. Replay with: sprint-history history --replay %s/%s\n", *outDir, sourceID)
}
