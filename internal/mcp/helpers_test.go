package mcp

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"sprint-history/internal/config"
	"sprint-history/internal/devops"
	"sprint-history/internal/revlog"
	"sprint-history/internal/sprint"
)

type fakeClient struct {
	mu         sync.Mutex
	queries    []string
	teams      []devops.Team
	iterations map[string][]devops.TeamIteration
	types      []devops.WorkItemType
	revisions  map[int][]devops.WorkItemDTO
	failTeams  bool
}

func (f *fakeClient) GetTeams(ctx context.Context) ([]devops.Team, error) {
	if f.failTeams {
		return nil, errors.New("Azure DevOps authentication failed (401)")
	}
	return f.teams, nil
}

func (f *fakeClient) GetTeamIterations(ctx context.Context, team string) ([]devops.TeamIteration, error) {
	return f.iterations[team], nil
}

func (f *fakeClient) GetWorkItemTypes(ctx context.Context) ([]devops.WorkItemType, error) {
	return f.types, nil
}

func (f *fakeClient) QueryByWiql(ctx context.Context, query string) ([]devops.WorkItemReference, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	return []devops.WorkItemReference{{ID: 1}, {ID: 2}}, nil
}

func (f *fakeClient) GetWorkItems(ctx context.Context, ids []int) ([]devops.WorkItemDTO, error) {
	var out []devops.WorkItemDTO
	for _, id := range ids {
		revs := f.revisions[id]
		out = append(out, revs[len(revs)-1])
	}
	return out, nil
}

func (f *fakeClient) GetRevisions(ctx context.Context, id int) ([]devops.WorkItemDTO, error) {
	return f.revisions[id], nil
}

func (f *fakeClient) lastQuery() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queries) == 0 {
		return ""
	}
	return f.queries[len(f.queries)-1]
}

const sprintPath = `Proj\Sprint 1`

func dto(id, rev int, path string, points float64, day int) devops.WorkItemDTO {
	return devops.WorkItemDTO{
		ID:  id,
		Rev: rev,
		Fields: map[string]any{
			sprint.FieldIterationPath: path,
			sprint.FieldStoryPoints:   points,
			sprint.FieldState:         "New",
			sprint.FieldTitle:         "Story",
			sprint.FieldChangedDate:   time.Date(2024, 3, day, 10, 0, 0, 0, time.UTC).Format(time.RFC3339),
		},
	}
}

func newFake() *fakeClient {
	start := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	finish := time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC)
	points := []devops.WorkItemTypeField{{ReferenceName: sprint.FieldStoryPoints}}

	return &fakeClient{
		teams: []devops.Team{{ID: "t-1", Name: "Team A"}, {ID: "t-2", Name: "Team B"}},
		iterations: map[string][]devops.TeamIteration{
			"Team A": {
				{ID: "it-0", Name: "Sprint 0", Path: `Proj\Sprint 0`, Attributes: devops.IterationAttributes{TimeFrame: "past"}},
				{ID: "it-1", Name: "Sprint 1", Path: sprintPath, Attributes: devops.IterationAttributes{
					StartDate:  &start,
					FinishDate: &finish,
					TimeFrame:  "current",
				}},
			},
		},
		types: []devops.WorkItemType{
			{Name: "User Story", Fields: points},
			{Name: "Bug", Fields: points},
			{Name: "Task"},
		},
		// +3 on Mar 4, re-estimated to 5 on Mar 5, +2 on Mar 6.
		revisions: map[int][]devops.WorkItemDTO{
			1: {dto(1, 1, sprintPath, 3, 4), dto(1, 2, sprintPath, 5, 5)},
			2: {dto(2, 1, `Proj\Sprint 0`, 2, 1), dto(2, 2, sprintPath, 2, 6)},
		},
	}
}

func newTestServer(t *testing.T, client devops.Client) *Server {
	t.Helper()
	cfg := &config.AppConfig{
		DevOps:      devops.Config{Project: "Proj"},
		SettingsDir: t.TempDir(),
		ChartDir:    t.TempDir(),
		Location:    time.UTC,
	}
	provider := revlog.NewProvider(client, revlog.NewStore(), revlog.Options{Concurrency: 2})
	return NewServer(cfg, client, provider, "test")
}
