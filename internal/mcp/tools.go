package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"sprint-history/internal/visuals"

	"github.com/google/jsonschema-go/jsonschema"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
)

// Tool names.
const (
	ToolListTeams         = "list_teams"
	ToolListIterations    = "list_iterations"
	ToolGetSettings       = "get_settings"
	ToolSaveSettings      = "save_settings"
	ToolAnalyzeHistory    = "analyze_sprint_history"
	ToolListSprintItems   = "list_sprint_work_items"
	ToolRenderSprintChart = "render_sprint_chart"
)

// ListTeamsInput takes no arguments.
type ListTeamsInput struct{}

// TeamInput selects a team.
type TeamInput struct {
	Team string `json:"team,omitempty" jsonschema:"team name or id (default: the team saved in settings)"`
}

// GetSettingsInput takes no arguments.
type GetSettingsInput struct{}

// SaveSettingsInput replaces the project settings.
type SaveSettingsInput struct {
	ShowAdditionalWorkItemTypes bool     `json:"showAdditionalWorkItemTypes" jsonschema:"analyze the additional work item types instead of User Story only"`
	AdditionalWorkItemTypes     []string `json:"additionalWorkItemTypes,omitempty" jsonschema:"work item types to analyze; each must have a story points field"`
	SelectedTeam                string   `json:"selectedTeam,omitempty" jsonschema:"team used when a tool call names none"`
}

// SprintInput selects a team iteration.
type SprintInput struct {
	Team      string `json:"team,omitempty" jsonschema:"team name or id (default: the team saved in settings)"`
	Iteration string `json:"iteration,omitempty" jsonschema:"iteration id, name or path, or current (default: current)"`
}

// AnalyzeInput is the input of analyze_sprint_history.
type AnalyzeInput struct {
	Team      string `json:"team,omitempty" jsonschema:"team name or id (default: the team saved in settings)"`
	Iteration string `json:"iteration,omitempty" jsonschema:"iteration id, name or path, or current (default: current)"`
	View      string `json:"view,omitempty" jsonschema:"daily shows changes during the sprint, complete shows every change (default: daily)"`
	Mermaid   bool   `json:"mermaid,omitempty" jsonschema:"include Mermaid charts of the daily totals"`
	Refresh   bool   `json:"refresh,omitempty" jsonschema:"ignore cached revisions and fetch them again"`
}

// ChartInput is the input of render_sprint_chart.
type ChartInput struct {
	Team      string `json:"team,omitempty" jsonschema:"team name or id (default: the team saved in settings)"`
	Iteration string `json:"iteration,omitempty" jsonschema:"iteration id, name or path, or current (default: current)"`
	Open      bool   `json:"open,omitempty" jsonschema:"open the chart in the default browser"`
}

// ToolOutput wraps the structured result of every tool.
type ToolOutput struct {
	Data any `json:"data"`
}

func (s *Server) registerTools() {
	addTool(s, &mcpsdk.Tool{
		Name:        ToolListTeams,
		Description: "List the teams of the Azure DevOps project.",
	}, s.handleListTeams)

	addTool(s, &mcpsdk.Tool{
		Name:        ToolListIterations,
		Description: "List the iterations of a team with their dates and time frame (past, current, future).",
	}, s.handleListIterations)

	addTool(s, &mcpsdk.Tool{
		Name:        ToolGetSettings,
		Description: "Get the project settings and the work item types that can be analyzed.",
	}, s.handleGetSettings)

	addTool(s, &mcpsdk.Tool{
		Name:        ToolSaveSettings,
		Description: "Save the project settings: the selected team and the additional work item types to analyze.",
	}, s.handleSaveSettings)

	addTool(s, &mcpsdk.Tool{
		Name: ToolAnalyzeHistory,
		Description: "Reconstruct the story point history of a sprint from work item revisions. " +
			"Returns every scope change (added, removed, reopened, closed, re-estimated) with the running total, " +
			"the daily totals and a summary.",
		InputSchema: analyzeSchema(),
	}, s.handleAnalyzeHistory)

	addTool(s, &mcpsdk.Tool{
		Name:        ToolListSprintItems,
		Description: "List the current state of every work item ever assigned to a sprint.",
	}, s.handleListSprintItems)

	addTool(s, &mcpsdk.Tool{
		Name:        ToolRenderSprintChart,
		Description: "Render the sprint history charts to an HTML file and optionally open it in the browser.",
	}, s.handleRenderChart)
}

func addTool[In any](s *Server, tool *mcpsdk.Tool, handler mcpsdk.ToolHandlerFor[In, ToolOutput]) {
	mcpsdk.AddTool(s.inner, tool, withLogging(tool.Name, handler))
	s.trackTool(tool.Name)
}

// withLogging records the outcome and duration of every tool call.
func withLogging[In any](name string, handler mcpsdk.ToolHandlerFor[In, ToolOutput]) mcpsdk.ToolHandlerFor[In, ToolOutput] {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input In) (*mcpsdk.CallToolResult, ToolOutput, error) {
		start := time.Now()
		result, output, err := handler(ctx, req, input)

		event := log.Info()
		if err != nil || (result != nil && result.IsError) {
			event = log.Warn()
		}
		event.Str("tool", name).Dur("elapsed", time.Since(start)).Msg("Tool call finished")
		return result, output, err
	}
}

// analyzeSchema restricts the view argument to the known views.
func analyzeSchema() *jsonschema.Schema {
	schema, err := jsonschema.For[AnalyzeInput](nil)
	if err != nil {
		panic(fmt.Sprintf("analyze input schema: %v", err))
	}
	if view, ok := schema.Properties["view"]; ok {
		view.Enum = []any{string(visuals.ViewDaily), string(visuals.ViewComplete)}
	}
	return schema
}

// errorResult reports a failed call to the client without failing the session.
func errorResult(err error) (*mcpsdk.CallToolResult, ToolOutput, error) {
	log.Error().Err(err).Msg("Tool call failed")
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: err.Error()},
		},
		IsError: true,
	}, ToolOutput{}, nil
}

func jsonResult(value any) (*mcpsdk.CallToolResult, ToolOutput, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return errorResult(fmt.Errorf("encode result: %w", err))
	}
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: string(data)},
		},
	}, ToolOutput{Data: value}, nil
}
