package mcp

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"sprint-history/internal/devops"
	"sprint-history/internal/settings"
	"sprint-history/internal/sprint"
	"sprint-history/internal/visuals"

	"github.com/rs/zerolog/log"
)

// ErrNoTeam is returned when a call names no team and none is saved.
var ErrNoTeam = errors.New("no team given and no team saved in settings; call list_teams and pass one")

// sprintTarget is a resolved team iteration together with the settings it
// is analyzed under.
type sprintTarget struct {
	team      devops.Team
	iteration sprint.Iteration
	settings  settings.Settings
}

func (s *Server) loadSettings() (settings.Settings, error) {
	return settings.Load(s.cfg.SettingsDir, s.cfg.DevOps.Project)
}

func (s *Server) resolveTeam(ctx context.Context, ref string, st settings.Settings) (devops.Team, error) {
	if ref == "" {
		ref = st.SelectedTeam
	}
	if ref == "" {
		return devops.Team{}, ErrNoTeam
	}

	teams, err := s.client.GetTeams(ctx)
	if err != nil {
		return devops.Team{}, fmt.Errorf("failed to list teams: %w", err)
	}
	return devops.FindTeam(teams, ref)
}

// resolveSprint finds the team and iteration a tool call refers to.
func (s *Server) resolveSprint(ctx context.Context, teamRef, iterationRef string) (*sprintTarget, error) {
	st, err := s.loadSettings()
	if err != nil {
		return nil, err
	}

	team, err := s.resolveTeam(ctx, teamRef, st)
	if err != nil {
		return nil, err
	}

	iterations, err := s.client.GetTeamIterations(ctx, team.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to list iterations of team %s: %w", team.Name, err)
	}
	ti, err := devops.FindIteration(iterations, iterationRef)
	if err != nil {
		return nil, err
	}

	log.Debug().Str("team", team.Name).Str("iteration", ti.Path).Msg("Resolved sprint")
	return &sprintTarget{
		team:      team,
		iteration: devops.ToIteration(ti),
		settings:  st,
	}, nil
}

// analyze hydrates the revision histories of a sprint and runs the engine.
func (s *Server) analyze(ctx context.Context, target *sprintTarget, refresh bool) (sprint.Report, error) {
	if refresh {
		if err := s.provider.Invalidate(ctx, target.iteration, target.settings); err != nil {
			log.Warn().Err(err).Str("iteration", target.iteration.Path).Msg("Failed to drop cached revisions")
		}
	}

	histories, err := s.provider.Hydrate(ctx, target.iteration, target.settings)
	if err != nil {
		return sprint.Report{}, err
	}
	report := sprint.Analyze(histories, target.iteration, s.calendar())
	for _, d := range report.Events {
		if d.NeedsReview {
			log.Warn().
				Int("item", d.Event.ItemID).
				Int("rev", d.Event.Ordinal).
				Str("change", d.Event.Kind.String()).
				Msg("Change needs review")
		}
	}
	return report, nil
}

func (s *Server) calendar() sprint.Calendar {
	return sprint.Calendar{Location: s.cfg.Location}
}

func (s *Server) chartPath(target *sprintTarget) string {
	return filepath.Join(s.cfg.ChartDir, visuals.ChartFileName(target.team.Name, target.iteration.Name))
}
