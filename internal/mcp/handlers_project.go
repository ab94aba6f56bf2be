package mcp

import (
	"context"
	"fmt"

	"sprint-history/internal/devops"
	"sprint-history/internal/settings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *Server) handleListTeams(ctx context.Context, _ *mcpsdk.CallToolRequest, _ ListTeamsInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	teams, err := s.client.GetTeams(ctx)
	if err != nil {
		return errorResult(fmt.Errorf("failed to list teams: %w", err))
	}
	return jsonResult(map[string]any{
		"project": s.cfg.DevOps.Project,
		"teams":   teams,
	})
}

func (s *Server) handleListIterations(ctx context.Context, _ *mcpsdk.CallToolRequest, input TeamInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	st, err := s.loadSettings()
	if err != nil {
		return errorResult(err)
	}
	team, err := s.resolveTeam(ctx, input.Team, st)
	if err != nil {
		return errorResult(err)
	}

	iterations, err := s.client.GetTeamIterations(ctx, team.Name)
	if err != nil {
		return errorResult(fmt.Errorf("failed to list iterations of team %s: %w", team.Name, err))
	}
	return jsonResult(map[string]any{
		"team":       team.Name,
		"iterations": devops.SummarizeIterations(iterations),
	})
}

func (s *Server) handleGetSettings(ctx context.Context, _ *mcpsdk.CallToolRequest, _ GetSettingsInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	st, err := s.loadSettings()
	if err != nil {
		return errorResult(err)
	}

	types, err := s.client.GetWorkItemTypes(ctx)
	if err != nil {
		return errorResult(fmt.Errorf("failed to load work item types: %w", err))
	}

	return jsonResult(map[string]any{
		"settings":       st,
		"includedTypes":  st.IncludedTypes(),
		"availableTypes": devops.TypesWithStoryPoints(types),
	})
}

func (s *Server) handleSaveSettings(ctx context.Context, _ *mcpsdk.CallToolRequest, input SaveSettingsInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	st := settings.Settings{
		ShowAdditionalWorkItemTypes: input.ShowAdditionalWorkItemTypes,
		AdditionalWorkItemTypes:     input.AdditionalWorkItemTypes,
	}

	if len(st.AdditionalWorkItemTypes) > 0 {
		types, err := s.client.GetWorkItemTypes(ctx)
		if err != nil {
			return errorResult(fmt.Errorf("failed to load work item types: %w", err))
		}
		if err := st.Validate(devops.TypesWithStoryPoints(types)); err != nil {
			return errorResult(err)
		}
	}

	if input.SelectedTeam != "" {
		team, err := s.resolveTeam(ctx, input.SelectedTeam, st)
		if err != nil {
			return errorResult(err)
		}
		st.SelectedTeam = team.Name
	}

	if err := settings.Save(s.cfg.SettingsDir, s.cfg.DevOps.Project, st); err != nil {
		return errorResult(err)
	}
	return jsonResult(map[string]any{
		"settings":      st,
		"includedTypes": st.IncludedTypes(),
	})
}
