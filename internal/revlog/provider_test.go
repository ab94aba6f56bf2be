package revlog

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"sprint-history/internal/devops"
	"sprint-history/internal/settings"
	"sprint-history/internal/sprint"
)

type fakeClient struct {
	mu        sync.Mutex
	queries   []string
	refs      []devops.WorkItemReference
	revisions map[int][]devops.WorkItemDTO
	revCalls  atomic.Int32
	failItem  int
	types     []devops.WorkItemType
}

func (f *fakeClient) GetTeams(ctx context.Context) ([]devops.Team, error) { return nil, nil }

func (f *fakeClient) GetTeamIterations(ctx context.Context, team string) ([]devops.TeamIteration, error) {
	return nil, nil
}

func (f *fakeClient) GetWorkItemTypes(ctx context.Context) ([]devops.WorkItemType, error) {
	return f.types, nil
}

func (f *fakeClient) QueryByWiql(ctx context.Context, query string) ([]devops.WorkItemReference, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	return f.refs, nil
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
	f.revCalls.Add(1)
	if id == f.failItem {
		return nil, errors.New("boom")
	}
	return f.revisions[id], nil
}

func dto(id, rev int, path string, points float64, day int) devops.WorkItemDTO {
	return devops.WorkItemDTO{
		ID:  id,
		Rev: rev,
		Fields: map[string]any{
			sprint.FieldIterationPath: path,
			sprint.FieldStoryPoints:   points,
			sprint.FieldState:         "New",
			sprint.FieldChangedDate:   time.Date(2024, 3, day, 10, 0, 0, 0, time.UTC).Format(time.RFC3339),
		},
	}
}

func newFake() *fakeClient {
	return &fakeClient{
		refs: []devops.WorkItemReference{{ID: 1}, {ID: 2}, {ID: 3}},
		revisions: map[int][]devops.WorkItemDTO{
			1: {dto(1, 1, "S1", 3, 4), dto(1, 2, "S1", 5, 5)},
			2: {dto(2, 1, "S0", 2, 1), dto(2, 2, "S1", 2, 6)},
			3: {dto(3, 1, "S1", 1, 4)},
		},
		types: []devops.WorkItemType{
			{Name: "User Story", Fields: []devops.WorkItemTypeField{{ReferenceName: sprint.FieldStoryPoints}}},
			{Name: "Task"},
		},
	}
}

var testIteration = sprint.Iteration{ID: "it-1", Name: "Sprint 1", Path: "S1"}

func TestProvider_Hydrate(t *testing.T) {
	fake := newFake()
	p := NewProvider(fake, NewStore(), Options{Concurrency: 2})

	histories, err := p.Hydrate(context.Background(), testIteration, settings.Settings{})
	if err != nil {
		t.Fatalf("Hydrate failed: %v", err)
	}
	if len(histories) != 3 {
		t.Fatalf("Expected 3 histories, got %d", len(histories))
	}
	if histories[1].ItemID != 2 || histories[1].Revisions[1].SprintPath != "S1" {
		t.Errorf("Unexpected history %+v", histories[1])
	}

	want := devops.BuildIterationQuery("S1", []string{"Task"}, []string{"User Story"})
	if len(fake.queries) != 1 || fake.queries[0] != want {
		t.Errorf("Unexpected queries %v", fake.queries)
	}

	report := sprint.Analyze(histories, testIteration, sprint.Calendar{})
	if report.Summary.EndTotal != 8 {
		t.Errorf("Expected end total 8, got %v", report.Summary.EndTotal)
	}
}

func TestProvider_HydrateUsesFreshCache(t *testing.T) {
	dir := t.TempDir()
	fake := newFake()
	opts := Options{CacheDir: dir, CacheTTL: time.Hour, Concurrency: 4}

	if _, err := NewProvider(fake, NewStore(), opts).Hydrate(context.Background(), testIteration, settings.Settings{}); err != nil {
		t.Fatalf("Hydrate failed: %v", err)
	}
	calls := fake.revCalls.Load()

	// A new provider (new process) reuses the file written by the first one.
	histories, err := NewProvider(fake, NewStore(), opts).Hydrate(context.Background(), testIteration, settings.Settings{})
	if err != nil {
		t.Fatalf("Hydrate failed: %v", err)
	}
	if fake.revCalls.Load() != calls {
		t.Errorf("Expected no refetch, got %d extra calls", fake.revCalls.Load()-calls)
	}
	if len(histories) != 3 {
		t.Errorf("Expected 3 cached histories, got %d", len(histories))
	}

	// Different settings use a different partition.
	other := settings.Settings{ShowAdditionalWorkItemTypes: true, AdditionalWorkItemTypes: []string{"Bug"}}
	if _, err := NewProvider(fake, NewStore(), opts).Hydrate(context.Background(), testIteration, other); err != nil {
		t.Fatalf("Hydrate failed: %v", err)
	}
	if fake.revCalls.Load() == calls {
		t.Error("Expected a refetch for different settings")
	}
}

func TestProvider_HydrateError(t *testing.T) {
	fake := newFake()
	fake.failItem = 2
	p := NewProvider(fake, NewStore(), Options{Concurrency: 3})

	_, err := p.Hydrate(context.Background(), testIteration, settings.Settings{})
	if err == nil {
		t.Fatal("Expected error")
	}
	if !strings.Contains(err.Error(), "work item 2") {
		t.Errorf("Expected error to name the item, got %v", err)
	}
}

func TestProvider_CurrentItemsAndInvalidate(t *testing.T) {
	dir := t.TempDir()
	fake := newFake()
	p := NewProvider(fake, NewStore(), Options{CacheDir: dir, CacheTTL: time.Hour})

	items, err := p.CurrentItems(context.Background(), testIteration, settings.Settings{})
	if err != nil {
		t.Fatalf("CurrentItems failed: %v", err)
	}
	if len(items) != 3 || items[0].Points != 5 {
		t.Errorf("Unexpected items %+v", items)
	}

	if _, err := p.Hydrate(context.Background(), testIteration, settings.Settings{}); err != nil {
		t.Fatal(err)
	}
	if err := p.Invalidate(context.Background(), testIteration, settings.Settings{}); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	query, _ := p.Query(context.Background(), testIteration, settings.Settings{})
	if _, ok := CacheAge(dir, SourceID(testIteration.ID, query)); ok {
		t.Error("Expected cache file to be removed")
	}
}

func TestSourceID(t *testing.T) {
	a := SourceID("it", "q1")
	if a != SourceID("it", "q1") {
		t.Error("SourceID is not stable")
	}
	if a == SourceID("it", "q2") {
		t.Error("Different queries share a source")
	}
}
