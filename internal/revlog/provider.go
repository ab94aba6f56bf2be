package revlog

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"sprint-history/internal/devops"
	"sprint-history/internal/settings"
	"sprint-history/internal/sprint"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Provider fetches sprint revision histories and keeps them cached.
type Provider struct {
	client      devops.Client
	store       *Store
	cacheDir    string
	cacheTTL    time.Duration
	concurrency int
}

// Options tune a Provider. Zero values mean no disk cache, no reuse and
// sequential fetching.
type Options struct {
	CacheDir    string
	CacheTTL    time.Duration
	Concurrency int
}

func NewProvider(client devops.Client, store *Store, opts Options) *Provider {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &Provider{
		client:      client,
		store:       store,
		cacheDir:    opts.CacheDir,
		cacheTTL:    opts.CacheTTL,
		concurrency: opts.Concurrency,
	}
}

// SourceID identifies the cache partition of an iteration queried with the
// given WIQL. Changing the included types therefore never reuses stale data.
func SourceID(iterationID, query string) string {
	h := fnv.New32a()
	h.Write([]byte(query))
	return fmt.Sprintf("%s-%08x", iterationID, h.Sum32())
}

// Query builds the WIQL for an iteration under the given settings, excluding
// work item types that carry no story points.
func (p *Provider) Query(ctx context.Context, it sprint.Iteration, s settings.Settings) (string, error) {
	types, err := p.client.GetWorkItemTypes(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load work item types: %w", err)
	}
	return devops.BuildIterationQuery(it.Path, devops.TypesWithoutStoryPoints(types), s.IncludedTypes()), nil
}

// Hydrate returns the revision histories of every work item ever assigned
// to the iteration. A cache younger than the TTL is reused as is.
func (p *Provider) Hydrate(ctx context.Context, it sprint.Iteration, s settings.Settings) ([]sprint.ItemHistory, error) {
	query, err := p.Query(ctx, it, s)
	if err != nil {
		return nil, err
	}
	sourceID := SourceID(it.ID, query)

	// 1. Try the cache
	if p.cacheDir != "" && p.cacheTTL > 0 {
		if age, ok := CacheAge(p.cacheDir, sourceID); ok && age < p.cacheTTL {
			revisions, err := readCache(p.cacheDir, sourceID)
			if err != nil {
				log.Warn().Err(err).Str("source", sourceID).Msg("Hydrate: Failed to load cache")
			} else if len(revisions) > 0 {
				log.Debug().Str("source", sourceID).Dur("age", age).Msg("Hydrate: Using cached revisions")
				return p.store.Replace(sourceID, revisions), nil
			}
		}
	}

	// 2. Find the items
	refs, err := p.client.QueryByWiql(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("work item query for %s failed: %w", it.Path, err)
	}
	log.Info().Str("iteration", it.Path).Int("items", len(refs)).Msg("Starting hydration process")

	// 3. Fetch every item's revisions
	results := make([][]sprint.Revision, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, ref := range refs {
		g.Go(func() error {
			dtos, err := p.client.GetRevisions(gctx, ref.ID)
			if err != nil {
				return fmt.Errorf("revisions of work item %d: %w", ref.ID, err)
			}
			results[i] = sprint.NormalizeAll(devops.ToRawRevisions(dtos))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("hydration failed: %w", err)
	}

	var all []sprint.Revision
	for _, revisions := range results {
		all = append(all, revisions...)
	}
	histories := p.store.Replace(sourceID, all)

	// 4. Save to cache
	if p.cacheDir != "" {
		if err := p.store.Save(p.cacheDir, sourceID); err != nil {
			log.Warn().Err(err).Str("source", sourceID).Msg("Hydrate: Failed to save cache")
		}
		if err := SaveIteration(p.cacheDir, sourceID, it); err != nil {
			log.Warn().Err(err).Str("source", sourceID).Msg("Hydrate: Failed to save iteration")
		}
	}

	log.Info().Int("items", len(refs)).Int("revisions", len(all)).Msg("Hydration complete")
	return histories, nil
}

// CurrentItems returns the latest state of every work item ever assigned to
// the iteration.
func (p *Provider) CurrentItems(ctx context.Context, it sprint.Iteration, s settings.Settings) ([]sprint.Revision, error) {
	query, err := p.Query(ctx, it, s)
	if err != nil {
		return nil, err
	}
	refs, err := p.client.QueryByWiql(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("work item query for %s failed: %w", it.Path, err)
	}

	ids := make([]int, len(refs))
	for i, ref := range refs {
		ids[i] = ref.ID
	}
	dtos, err := p.client.GetWorkItems(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load work items: %w", err)
	}
	return sprint.NormalizeAll(devops.ToRawRevisions(dtos)), nil
}

// Invalidate drops the cached revisions of an iteration under the given
// settings so the next Hydrate fetches fresh data. Work item responses the
// client keeps in memory are dropped as well.
func (p *Provider) Invalidate(ctx context.Context, it sprint.Iteration, s settings.Settings) error {
	query, err := p.Query(ctx, it, s)
	if err != nil {
		return err
	}
	sourceID := SourceID(it.ID, query)
	p.store.Clear(sourceID)
	if dropper, ok := p.client.(devops.CacheDropper); ok {
		dropper.DropWorkItemCache()
	}
	if p.cacheDir == "" {
		return nil
	}
	return DeleteCache(p.cacheDir, sourceID)
}
