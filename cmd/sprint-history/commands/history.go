package commands

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"sprint-history/internal/devops"
	"sprint-history/internal/revlog"
	"sprint-history/internal/settings"
	"sprint-history/internal/sprint"
	"sprint-history/internal/visuals"

	"github.com/pkg/browser"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var historyOpts struct {
	team      string
	iteration string
	view      string
	chart     string
	replay    string
	open      bool
	cached    bool
	refresh   bool
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the story point history of a sprint",
	Example: `  sprint-history history --team "Team A"
  sprint-history history --team "Team A" --iteration "Sprint 12" --view complete --open
  sprint-history history --replay ./.cache/MOCK_churn`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	f := historyCmd.Flags()
	f.StringVar(&historyOpts.team, "team", "", "team name or id (default: the team saved in settings)")
	f.StringVar(&historyOpts.iteration, "iteration", "current", "iteration id, name or path, or current")
	f.StringVar(&historyOpts.view, "view", string(visuals.ViewDaily), "daily (changes during the sprint) or complete (every change)")
	f.StringVar(&historyOpts.chart, "chart", "", "write the HTML charts to this file")
	f.BoolVar(&historyOpts.open, "open", false, "open the HTML charts in the browser")
	f.BoolVar(&historyOpts.cached, "cached", false, "reuse cached revisions regardless of their age")
	f.BoolVar(&historyOpts.refresh, "refresh", false, "ignore cached revisions and fetch them again")
	f.StringVar(&historyOpts.replay, "replay", "", "analyze a revision cache partition (path without .jsonl) instead of querying Azure DevOps")
	historyCmd.MarkFlagsMutuallyExclusive("cached", "refresh")
	// A replayed partition already pins the team, iteration and data.
	for _, name := range []string{"team", "iteration", "cached", "refresh"} {
		historyCmd.MarkFlagsMutuallyExclusive("replay", name)
	}
}

func runHistory(cmd *cobra.Command, args []string) error {
	view, err := visuals.ParseView(historyOpts.view)
	if err != nil {
		return err
	}

	cal := sprint.Calendar{Location: cfg.Location}
	var report sprint.Report
	var team string
	if historyOpts.replay != "" {
		report, err = replay(historyOpts.replay, cal)
	} else {
		team, report, err = fetch(cmd.Context(), cal)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if err := visuals.RenderSummary(out, report); err != nil {
		return err
	}
	if err := visuals.RenderEventTable(out, report, view, cal); err != nil {
		return err
	}

	chart := historyOpts.chart
	if chart == "" && historyOpts.open {
		chart = filepath.Join(cfg.ChartDir, visuals.ChartFileName(team, report.Iteration.Name))
	}
	if chart == "" {
		return nil
	}
	if err := visuals.WriteHTML(chart, report, cal); err != nil {
		return err
	}
	fmt.Fprintf(out, "Chart written to %s\n", chart)

	if historyOpts.open {
		if err := browser.OpenFile(chart); err != nil {
			log.Warn().Err(err).Str("path", chart).Msg("Failed to open chart in browser")
		}
	}
	return nil
}

// fetch resolves the team iteration and analyzes its revisions from Azure DevOps.
func fetch(ctx context.Context, cal sprint.Calendar) (string, sprint.Report, error) {
	if err := cfg.Validate(); err != nil {
		return "", sprint.Report{}, err
	}
	client := devops.NewClient(cfg.DevOps)

	st, err := settings.Load(cfg.SettingsDir, cfg.DevOps.Project)
	if err != nil {
		return "", sprint.Report{}, err
	}
	teamRef := historyOpts.team
	if teamRef == "" {
		teamRef = st.SelectedTeam
	}
	if teamRef == "" {
		return "", sprint.Report{}, fmt.Errorf("no team given: pass --team or save a team in the settings")
	}

	teams, err := client.GetTeams(ctx)
	if err != nil {
		return "", sprint.Report{}, fmt.Errorf("failed to list teams: %w", err)
	}
	team, err := devops.FindTeam(teams, teamRef)
	if err != nil {
		return "", sprint.Report{}, err
	}
	iterations, err := client.GetTeamIterations(ctx, team.Name)
	if err != nil {
		return "", sprint.Report{}, fmt.Errorf("failed to list iterations of team %s: %w", team.Name, err)
	}
	ti, err := devops.FindIteration(iterations, historyOpts.iteration)
	if err != nil {
		return "", sprint.Report{}, err
	}
	it := devops.ToIteration(ti)

	ttl := cfg.CacheTTL
	if historyOpts.cached {
		ttl = time.Duration(math.MaxInt64)
	}
	provider := newProvider(client, ttl)
	if historyOpts.refresh {
		if err := provider.Invalidate(ctx, it, st); err != nil {
			log.Warn().Err(err).Msg("Failed to drop cached revisions")
		}
	}

	histories, err := provider.Hydrate(ctx, it, st)
	if err != nil {
		return "", sprint.Report{}, err
	}
	return team.Name, sprint.Analyze(histories, it, cal), nil
}

// replay analyzes a cache partition written by a previous run or by mockgen.
func replay(path string, cal sprint.Calendar) (sprint.Report, error) {
	dir, sourceID := filepath.Split(strings.TrimSuffix(path, ".jsonl"))
	if dir == "" {
		dir = "."
	}

	store := revlog.NewStore()
	if err := store.Load(dir, sourceID); err != nil {
		return sprint.Report{}, err
	}
	if store.Count(sourceID) == 0 {
		return sprint.Report{}, fmt.Errorf("no revisions found for %s in %s", sourceID, dir)
	}
	it, err := revlog.LoadIteration(dir, sourceID)
	if err != nil {
		return sprint.Report{}, err
	}

	log.Info().Str("source", sourceID).Str("iteration", it.Path).Msg("Replaying cached revisions")
	return sprint.Analyze(store.Histories(sourceID), it, cal), nil
}
