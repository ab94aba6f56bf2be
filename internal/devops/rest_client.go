package devops

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	apiVersion = "7.1"

	// The work items endpoint accepts at most this many ids per call.
	maxBatchIDs = 200
	// Page size for the revisions endpoint.
	revisionPageSize = 200
)

type restClient struct {
	cfg        Config
	httpClient *http.Client

	throttleMutex sync.Mutex
	lastRequest   time.Time

	// Session Cache
	cache      map[string]*cacheEntry
	cacheMutex sync.Mutex
}

type cacheEntry struct {
	Value       any
	Expiration  time.Time
	AccessCount int
	OriginalTTL time.Duration
}

// NewRESTClient creates a client against the Azure DevOps REST API.
func NewRESTClient(cfg Config) Client {
	cfg.OrganizationURL = strings.TrimRight(cfg.OrganizationURL, "/")
	return &restClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 90 * time.Second,
		},
		cache: make(map[string]*cacheEntry),
	}
}

func (c *restClient) getFromCache(key string) (any, bool) {
	c.cacheMutex.Lock()
	defer c.cacheMutex.Unlock()

	entry, ok := c.cache[key]
	if !ok {
		log.Debug().Str("key", key).Msg("Cache miss")
		return nil, false
	}

	if time.Now().After(entry.Expiration) {
		delete(c.cache, key)
		log.Debug().Str("key", key).Msg("Cache entry expired")
		return nil, false
	}
	log.Debug().Str("key", key).Msg("Cache hit")

	// Sliding window extension
	if entry.AccessCount < 6 {
		entry.Expiration = time.Now().Add(entry.OriginalTTL)
		entry.AccessCount++
		log.Trace().Str("key", key).Int("count", entry.AccessCount).Msg("Extended cache TTL")
	}

	return entry.Value, true
}

func (c *restClient) addToCache(key string, value any, ttl time.Duration) {
	c.cacheMutex.Lock()
	defer c.cacheMutex.Unlock()

	c.cache[key] = &cacheEntry{
		Value:       value,
		Expiration:  time.Now().Add(ttl),
		OriginalTTL: ttl,
		AccessCount: 1,
	}
	log.Debug().Str("key", key).Dur("ttl", ttl).Msg("Added to cache")
}

// Cache key prefixes of work item data, as opposed to project metadata.
var workItemCachePrefixes = []string{"wiql:", "workitems:", "revisions:"}

func (c *restClient) DropWorkItemCache() int {
	c.cacheMutex.Lock()
	defer c.cacheMutex.Unlock()

	dropped := 0
	for key := range c.cache {
		for _, prefix := range workItemCachePrefixes {
			if strings.HasPrefix(key, prefix) {
				delete(c.cache, key)
				dropped++
				break
			}
		}
	}
	log.Debug().Int("entries", dropped).Msg("Dropped cached work item data")
	return dropped
}

// throttle spaces out bulk requests. Metadata requests (teams, iterations,
// types) only record their time so the setup phase is not delayed.
func (c *restClient) throttle(ctx context.Context, isMetadata bool) error {
	c.throttleMutex.Lock()
	defer c.throttleMutex.Unlock()

	if isMetadata || c.cfg.RequestDelay <= 0 {
		c.lastRequest = time.Now()
		return nil
	}

	elapsed := time.Since(c.lastRequest)
	if elapsed < c.cfg.RequestDelay {
		wait := c.cfg.RequestDelay - elapsed
		log.Trace().Dur("wait", wait).Msg("Throttling Azure DevOps request")
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	c.lastRequest = time.Now()
	return nil
}

func (c *restClient) projectURL(path string, params url.Values) string {
	return c.buildURL(url.PathEscape(c.cfg.Project)+"/"+path, params)
}

func (c *restClient) buildURL(path string, params url.Values) string {
	if params == nil {
		params = url.Values{}
	}
	params.Set("api-version", apiVersion)
	return fmt.Sprintf("%s/%s?%s", c.cfg.OrganizationURL, path, params.Encode())
}

// do performs one request and decodes a JSON response into out.
func (c *restClient) do(ctx context.Context, method, target, what string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", what, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.Token != "" {
		req.SetBasicAuth("", c.cfg.Token)
	}

	log.Debug().Str("method", method).Str("url", target).Msg("Azure DevOps request")
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", what, err)
	}
	defer resp.Body.Close()
	log.Trace().Int("status", resp.StatusCode).Dur("elapsed", time.Since(start)).Msg("Azure DevOps response")

	if resp.StatusCode != http.StatusOK {
		return statusError(resp, what)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", what, err)
	}
	return nil
}

func statusError(resp *http.Response, what string) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("Azure DevOps authentication failed (%d) for %s. Please check ADO_TOKEN and its scopes.", resp.StatusCode, what)
	case http.StatusNotFound:
		return fmt.Errorf("%s not found (404)", what)
	case http.StatusTooManyRequests:
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			return fmt.Errorf("Azure DevOps rate limit exceeded (429). Retry after %s seconds.", retryAfter)
		}
		return fmt.Errorf("Azure DevOps rate limit exceeded (429).")
	default:
		return fmt.Errorf("Azure DevOps API returned status %d for %s", resp.StatusCode, what)
	}
}

func (c *restClient) GetTeams(ctx context.Context) ([]Team, error) {
	cacheKey := "teams"
	if val, ok := c.getFromCache(cacheKey); ok {
		return val.([]Team), nil
	}

	if err := c.throttle(ctx, true); err != nil {
		return nil, err
	}

	target := c.buildURL("_apis/projects/"+url.PathEscape(c.cfg.Project)+"/teams", nil)
	var result listResponse[Team]
	if err := c.do(ctx, http.MethodGet, target, "teams of project "+c.cfg.Project, nil, &result); err != nil {
		return nil, err
	}

	c.addToCache(cacheKey, result.Value, 5*time.Minute)
	return result.Value, nil
}

func (c *restClient) GetTeamIterations(ctx context.Context, team string) ([]TeamIteration, error) {
	cacheKey := "iterations:" + team
	if val, ok := c.getFromCache(cacheKey); ok {
		return val.([]TeamIteration), nil
	}

	if err := c.throttle(ctx, true); err != nil {
		return nil, err
	}

	path := url.PathEscape(c.cfg.Project) + "/" + url.PathEscape(team) + "/_apis/work/teamsettings/iterations"
	target := c.buildURL(path, nil)
	var result listResponse[TeamIteration]
	if err := c.do(ctx, http.MethodGet, target, "iterations of team "+team, nil, &result); err != nil {
		return nil, err
	}

	c.addToCache(cacheKey, result.Value, 5*time.Minute)
	return result.Value, nil
}

func (c *restClient) GetWorkItemTypes(ctx context.Context) ([]WorkItemType, error) {
	cacheKey := "workitemtypes"
	if val, ok := c.getFromCache(cacheKey); ok {
		return val.([]WorkItemType), nil
	}

	if err := c.throttle(ctx, true); err != nil {
		return nil, err
	}

	var result listResponse[WorkItemType]
	if err := c.do(ctx, http.MethodGet, c.projectURL("_apis/wit/workitemtypes", nil), "work item types", nil, &result); err != nil {
		return nil, err
	}

	c.addToCache(cacheKey, result.Value, 30*time.Minute)
	return result.Value, nil
}

func (c *restClient) QueryByWiql(ctx context.Context, query string) ([]WorkItemReference, error) {
	cacheKey := "wiql:" + query
	if val, ok := c.getFromCache(cacheKey); ok {
		return val.([]WorkItemReference), nil
	}

	if err := c.throttle(ctx, false); err != nil {
		return nil, err
	}

	log.Info().Msg("Querying work items from Azure DevOps")
	log.Debug().Str("wiql", query).Msg("WIQL details")

	var result wiqlResponse
	if err := c.do(ctx, http.MethodPost, c.projectURL("_apis/wit/wiql", nil), "WIQL query", wiqlRequest{Query: query}, &result); err != nil {
		return nil, err
	}

	c.addToCache(cacheKey, result.WorkItems, 10*time.Minute)
	return result.WorkItems, nil
}

// GetWorkItems fetches the current state of the given items, in batches of
// at most 200 ids.
func (c *restClient) GetWorkItems(ctx context.Context, ids []int) ([]WorkItemDTO, error) {
	var items []WorkItemDTO
	for start := 0; start < len(ids); start += maxBatchIDs {
		end := min(start+maxBatchIDs, len(ids))
		batch, err := c.getWorkItemBatch(ctx, ids[start:end])
		if err != nil {
			return nil, err
		}
		items = append(items, batch...)
	}
	return items, nil
}

func (c *restClient) getWorkItemBatch(ctx context.Context, ids []int) ([]WorkItemDTO, error) {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	joined := strings.Join(parts, ",")

	cacheKey := "workitems:" + joined
	if val, ok := c.getFromCache(cacheKey); ok {
		return val.([]WorkItemDTO), nil
	}

	if err := c.throttle(ctx, false); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("ids", joined)
	var result listResponse[WorkItemDTO]
	if err := c.do(ctx, http.MethodGet, c.projectURL("_apis/wit/workitems", params), "work items", nil, &result); err != nil {
		return nil, err
	}

	c.addToCache(cacheKey, result.Value, 10*time.Minute)
	return result.Value, nil
}

// GetRevisions fetches every revision of a work item, oldest first.
func (c *restClient) GetRevisions(ctx context.Context, id int) ([]WorkItemDTO, error) {
	cacheKey := fmt.Sprintf("revisions:%d", id)
	if val, ok := c.getFromCache(cacheKey); ok {
		return val.([]WorkItemDTO), nil
	}

	var revisions []WorkItemDTO
	for skip := 0; ; skip += revisionPageSize {
		if err := c.throttle(ctx, false); err != nil {
			return nil, err
		}

		params := url.Values{}
		params.Set("$top", strconv.Itoa(revisionPageSize))
		params.Set("$skip", strconv.Itoa(skip))
		target := c.projectURL(fmt.Sprintf("_apis/wit/workItems/%d/revisions", id), params)

		var page listResponse[WorkItemDTO]
		if err := c.do(ctx, http.MethodGet, target, fmt.Sprintf("revisions of work item %d", id), nil, &page); err != nil {
			return nil, err
		}
		revisions = append(revisions, page.Value...)
		if len(page.Value) < revisionPageSize {
			break
		}
	}

	log.Debug().Int("id", id).Int("revisions", len(revisions)).Msg("Fetched work item revisions")
	c.addToCache(cacheKey, revisions, 10*time.Minute)
	return revisions, nil
}
