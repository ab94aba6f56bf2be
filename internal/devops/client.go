package devops

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrTeamNotFound is returned when a team name or id matches no team.
	ErrTeamNotFound = errors.New("team not found")
	// ErrIterationNotFound is returned when an iteration id matches no team iteration.
	ErrIterationNotFound = errors.New("iteration not found")
)

// Client is the interface for interacting with Azure DevOps.
type Client interface {
	GetTeams(ctx context.Context) ([]Team, error)
	GetTeamIterations(ctx context.Context, team string) ([]TeamIteration, error)
	GetWorkItemTypes(ctx context.Context) ([]WorkItemType, error)
	QueryByWiql(ctx context.Context, query string) ([]WorkItemReference, error)
	GetWorkItems(ctx context.Context, ids []int) ([]WorkItemDTO, error)
	GetRevisions(ctx context.Context, id int) ([]WorkItemDTO, error)
}

// CacheDropper is implemented by clients that keep work item responses in
// memory. DropWorkItemCache forgets every cached query result, work item and
// revision list so the next calls reach Azure DevOps. Metadata stays cached.
type CacheDropper interface {
	DropWorkItemCache() int
}

// Config holds the connection settings for an Azure DevOps project.
type Config struct {
	// OrganizationURL is e.g. https://dev.azure.com/contoso
	OrganizationURL string
	Project         string

	// Personal Access Token, sent as basic auth with an empty user name.
	Token string

	// Minimum spacing between consecutive API calls. Zero disables throttling.
	RequestDelay time.Duration
}

// NewClient creates a new Azure DevOps REST client.
func NewClient(cfg Config) Client {
	return NewRESTClient(cfg)
}
