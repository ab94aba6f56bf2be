package mcp

import (
	"context"
	"fmt"

	"sprint-history/internal/sprint"
	"sprint-history/internal/visuals"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
)

type analysisResponse struct {
	Team      string              `json:"team"`
	Iteration sprint.Iteration    `json:"iteration"`
	View      visuals.View        `json:"view"`
	Summary   sprint.Summary      `json:"summary"`
	Events    []sprint.PointDelta `json:"events"`
	Daily     sprint.DailySeries  `json:"daily"`
	Charts    []string            `json:"charts,omitempty"`
	Warnings  []string            `json:"warnings,omitempty"`
}

func (s *Server) handleAnalyzeHistory(ctx context.Context, _ *mcpsdk.CallToolRequest, input AnalyzeInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	view, err := visuals.ParseView(input.View)
	if err != nil {
		return errorResult(err)
	}

	target, err := s.resolveSprint(ctx, input.Team, input.Iteration)
	if err != nil {
		return errorResult(err)
	}
	report, err := s.analyze(ctx, target, input.Refresh)
	if err != nil {
		return errorResult(err)
	}

	resp := analysisResponse{
		Team:      target.team.Name,
		Iteration: report.Iteration,
		View:      view,
		Summary:   report.Summary,
		Events:    report.Events,
		Daily:     report.DailyHistory,
	}
	if view == visuals.ViewDaily {
		resp.Events = report.ChangesWithin(s.calendar())
		resp.Daily = report.Daily
	}
	if resp.Events == nil {
		resp.Events = []sprint.PointDelta{}
	}

	if report.Iteration.Start.IsZero() || report.Iteration.Finish.IsZero() {
		resp.Warnings = append(resp.Warnings, "The iteration has no start or finish date; the daily sprint view is empty.")
	}
	if report.Summary.NeedsReview > 0 {
		resp.Warnings = append(resp.Warnings, fmt.Sprintf("%d change(s) combine flags the point rules do not cover unambiguously; check them manually.", report.Summary.NeedsReview))
	}

	if input.Mermaid || s.cfg.EnableMermaidCharts {
		title := fmt.Sprintf("%s: Story Points per Day", report.Iteration.Name)
		if chart := visuals.GenerateDailyChart(title, resp.Daily); chart != "" {
			resp.Charts = append(resp.Charts, chart)
		}
		if chart := visuals.GenerateChangeChart(resp.Events); chart != "" {
			resp.Charts = append(resp.Charts, chart)
		}
	}

	return jsonResult(resp)
}

func (s *Server) handleListSprintItems(ctx context.Context, _ *mcpsdk.CallToolRequest, input SprintInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	target, err := s.resolveSprint(ctx, input.Team, input.Iteration)
	if err != nil {
		return errorResult(err)
	}

	items, err := s.provider.CurrentItems(ctx, target.iteration, target.settings)
	if err != nil {
		return errorResult(err)
	}

	inSprint := 0
	points := 0.0
	for _, item := range items {
		if item.SprintPath == target.iteration.Path {
			inSprint++
			points += item.Points
		}
	}

	return jsonResult(map[string]any{
		"team":           target.team.Name,
		"iteration":      target.iteration,
		"items":          items,
		"itemsInSprint":  inSprint,
		"pointsInSprint": points,
		"itemsMovedOut":  len(items) - inSprint,
		"includedTypes":  target.settings.IncludedTypes(),
	})
}

func (s *Server) handleRenderChart(ctx context.Context, _ *mcpsdk.CallToolRequest, input ChartInput) (*mcpsdk.CallToolResult, ToolOutput, error) {
	target, err := s.resolveSprint(ctx, input.Team, input.Iteration)
	if err != nil {
		return errorResult(err)
	}
	report, err := s.analyze(ctx, target, false)
	if err != nil {
		return errorResult(err)
	}

	path := s.chartPath(target)
	if err := visuals.WriteHTML(path, report, s.calendar()); err != nil {
		return errorResult(err)
	}
	log.Info().Str("path", path).Msg("Sprint chart written")

	opened := false
	if input.Open {
		if err := s.openFile(path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Failed to open chart in browser")
		} else {
			opened = true
		}
	}

	return jsonResult(map[string]any{
		"path":    path,
		"opened":  opened,
		"summary": report.Summary,
	})
}
