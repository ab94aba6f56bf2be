package mcp

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"sprint-history/internal/config"
	"sprint-history/internal/devops"
	"sprint-history/internal/revlog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/pkg/browser"
	"github.com/rs/zerolog/log"
)

const serverName = "sprint-history"

// Server exposes sprint history analysis as MCP tools.
type Server struct {
	cfg      *config.AppConfig
	client   devops.Client
	provider *revlog.Provider
	inner    *mcpsdk.Server

	mu    sync.RWMutex
	tools []string

	// openFile shows a rendered chart to the user.
	openFile func(path string) error
}

// NewServer creates a new MCP server with all tools registered.
func NewServer(cfg *config.AppConfig, client devops.Client, provider *revlog.Provider, version string) *Server {
	inner := mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    serverName,
		Version: version,
	}, nil)

	s := &Server{
		cfg:      cfg,
		client:   client,
		provider: provider,
		inner:    inner,
		openFile: browser.OpenFile,
	}
	s.registerTools()
	return s
}

// Serve runs the server over stdio until the client disconnects or ctx is
// cancelled.
func (s *Server) Serve(ctx context.Context) error {
	log.Info().Strs("tools", s.ToolNames()).Msg("MCP server listening on stdio")
	return s.RunWithTransport(ctx, &mcpsdk.StdioTransport{})
}

// RunWithTransport runs the server on the given transport.
func (s *Server) RunWithTransport(ctx context.Context, transport mcpsdk.Transport) error {
	if err := s.inner.Run(ctx, transport); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

// ToolNames returns the sorted names of all registered tools.
func (s *Server) ToolNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, len(s.tools))
	copy(names, s.tools)
	sort.Strings(names)
	return names
}

func (s *Server) trackTool(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tools = append(s.tools, name)
}
