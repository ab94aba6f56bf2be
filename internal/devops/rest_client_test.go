package devops

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewRESTClient(Config{
		OrganizationURL: srv.URL + "/",
		Project:         "My Project",
		Token:           "secret",
	})
}

func TestRESTClient_AuthAndTeams(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		user, pass, ok := r.BasicAuth()
		if !ok || user != "" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.EscapedPath() != "/_apis/projects/My%20Project/teams" {
			t.Errorf("Unexpected path %s", r.URL.EscapedPath())
		}
		if r.URL.Query().Get("api-version") != apiVersion {
			t.Errorf("Missing api-version")
		}
		fmt.Fprint(w, `{"count":2,"value":[{"id":"t1","name":"Alpha"},{"id":"t2","name":"Beta"}]}`)
	})

	ctx := context.Background()
	teams, err := client.GetTeams(ctx)
	if err != nil {
		t.Fatalf("GetTeams failed: %v", err)
	}
	if len(teams) != 2 || teams[1].Name != "Beta" {
		t.Errorf("Unexpected teams %+v", teams)
	}

	// Second call is served from the cache.
	if _, err := client.GetTeams(ctx); err != nil {
		t.Fatalf("GetTeams failed: %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("Expected 1 request, got %d", n)
	}
}

func TestRESTClient_TeamIterations(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.EscapedPath() != "/My%20Project/Alpha%20Team/_apis/work/teamsettings/iterations" {
			t.Errorf("Unexpected path %s", r.URL.EscapedPath())
		}
		fmt.Fprint(w, `{"count":2,"value":[
			{"id":"i1","name":"Sprint 1","path":"P\\Sprint 1","attributes":{"startDate":"2024-03-04T00:00:00Z","finishDate":"2024-03-15T00:00:00Z","timeFrame":"past"}},
			{"id":"i2","name":"Backlog","path":"P\\Backlog","attributes":{"startDate":null,"finishDate":null,"timeFrame":"future"}}
		]}`)
	})

	iterations, err := client.GetTeamIterations(context.Background(), "Alpha Team")
	if err != nil {
		t.Fatalf("GetTeamIterations failed: %v", err)
	}
	if len(iterations) != 2 {
		t.Fatalf("Expected 2 iterations, got %d", len(iterations))
	}
	if iterations[0].Attributes.StartDate == nil || iterations[0].Attributes.StartDate.Day() != 4 {
		t.Errorf("Start date not decoded: %+v", iterations[0].Attributes)
	}
	if iterations[1].Attributes.StartDate != nil {
		t.Errorf("Expected nil start date for unscheduled iteration")
	}
}

func TestRESTClient_Wiql(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		var body wiqlRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("Bad body: %v", err)
		}
		if !strings.Contains(body.Query, "EVER") {
			t.Errorf("Unexpected query %q", body.Query)
		}
		fmt.Fprint(w, `{"queryType":"flat","workItems":[{"id":1,"url":"u1"},{"id":7,"url":"u7"}]}`)
	})

	refs, err := client.QueryByWiql(context.Background(), BuildIterationQuery(`P\S1`, nil, nil))
	if err != nil {
		t.Fatalf("QueryByWiql failed: %v", err)
	}
	if len(refs) != 2 || refs[1].ID != 7 {
		t.Errorf("Unexpected refs %+v", refs)
	}
}

func TestRESTClient_GetWorkItemsChunks(t *testing.T) {
	var batches []int
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		ids := strings.Split(r.URL.Query().Get("ids"), ",")
		batches = append(batches, len(ids))
		var values []string
		for _, id := range ids {
			values = append(values, fmt.Sprintf(`{"id":%s,"rev":1,"fields":{}}`, id))
		}
		fmt.Fprintf(w, `{"count":%d,"value":[%s]}`, len(values), strings.Join(values, ","))
	})

	ids := make([]int, 450)
	for i := range ids {
		ids[i] = i + 1
	}
	items, err := client.GetWorkItems(context.Background(), ids)
	if err != nil {
		t.Fatalf("GetWorkItems failed: %v", err)
	}
	if len(items) != 450 {
		t.Errorf("Expected 450 items, got %d", len(items))
	}
	if len(batches) != 3 || batches[0] != 200 || batches[2] != 50 {
		t.Errorf("Unexpected batches %v", batches)
	}
}

func TestRESTClient_RevisionsPaging(t *testing.T) {
	const total = 250
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/_apis/wit/workItems/42/revisions") {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		skip, _ := strconv.Atoi(r.URL.Query().Get("$skip"))
		top, _ := strconv.Atoi(r.URL.Query().Get("$top"))
		var values []string
		for rev := skip + 1; rev <= min(skip+top, total); rev++ {
			values = append(values, fmt.Sprintf(`{"id":42,"rev":%d,"fields":{"Microsoft.VSTS.Scheduling.StoryPoints":3}}`, rev))
		}
		fmt.Fprintf(w, `{"count":%d,"value":[%s]}`, len(values), strings.Join(values, ","))
	})

	revs, err := client.GetRevisions(context.Background(), 42)
	if err != nil {
		t.Fatalf("GetRevisions failed: %v", err)
	}
	if len(revs) != total || revs[total-1].Rev != total {
		t.Errorf("Expected %d revisions, got %d", total, len(revs))
	}

	raws := ToRawRevisions(revs)
	if raws[0].ID != 42 || raws[0].Fields["Microsoft.VSTS.Scheduling.StoryPoints"] != 3.0 {
		t.Errorf("Unexpected raw revision %+v", raws[0])
	}
}

func TestRESTClient_StatusErrors(t *testing.T) {
	tests := []struct {
		status int
		header string
		want   string
	}{
		{http.StatusUnauthorized, "", "authentication failed"},
		{http.StatusForbidden, "", "authentication failed"},
		{http.StatusNotFound, "", "not found"},
		{http.StatusTooManyRequests, "30", "Retry after 30 seconds"},
		{http.StatusInternalServerError, "", "status 500"},
	}

	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.status), func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if tt.header != "" {
					w.Header().Set("Retry-After", tt.header)
				}
				w.WriteHeader(tt.status)
			})
			_, err := client.GetWorkItemTypes(context.Background())
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestRESTClient_ThrottleHonoursContext(t *testing.T) {
	c := NewRESTClient(Config{RequestDelay: time.Hour}).(*restClient)
	c.lastRequest = time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.throttle(ctx, false); err != context.Canceled {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if err := c.throttle(ctx, true); err != nil {
		t.Errorf("Metadata requests are not throttled, got %v", err)
	}
}

func TestRESTClient_CacheSlidingWindow(t *testing.T) {
	c := NewRESTClient(Config{}).(*restClient)
	c.addToCache("k", 1, time.Minute)
	for range 10 {
		if _, ok := c.getFromCache("k"); !ok {
			t.Fatal("Expected cache hit")
		}
	}
	if got := c.cache["k"].AccessCount; got != 6 {
		t.Errorf("Expected access count capped at 6, got %d", got)
	}

	c.cache["k"].Expiration = time.Now().Add(-time.Second)
	if _, ok := c.getFromCache("k"); ok {
		t.Error("Expected expired entry to miss")
	}
}

func TestRESTClient_DropWorkItemCache(t *testing.T) {
	c := NewRESTClient(Config{}).(*restClient)
	for _, key := range []string{"teams", "iterations:Alpha", "workitemtypes", "wiql:SELECT", "workitems:1,2", "revisions:7"} {
		c.addToCache(key, 1, time.Minute)
	}

	var dropper CacheDropper = c
	if n := dropper.DropWorkItemCache(); n != 3 {
		t.Errorf("Expected 3 dropped entries, got %d", n)
	}
	for _, key := range []string{"teams", "iterations:Alpha", "workitemtypes"} {
		if _, ok := c.getFromCache(key); !ok {
			t.Errorf("Metadata entry %q was dropped", key)
		}
	}
	for _, key := range []string{"wiql:SELECT", "workitems:1,2", "revisions:7"} {
		if _, ok := c.getFromCache(key); ok {
			t.Errorf("Work item entry %q survived", key)
		}
	}
}
