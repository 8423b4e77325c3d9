package mcp

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/treeindex/internal/indexer"
	"github.com/dshills/treeindex/internal/scheduler"
	"github.com/dshills/treeindex/internal/storage"
	"github.com/dshills/treeindex/pkg/types"
)

const (
	// ServerName is the MCP server name
	ServerName = "treeindex"
)

// ServerVersion is the version reported to clients; set from the build
var ServerVersion = "dev"

// Controller is the part of the scheduler the tools drive
type Controller interface {
	Projects() []types.Project
	Project(id string) (types.Project, bool)
	Trigger(ctx context.Context, projectID, source string) (*indexer.Statistics, error)
	Busy(projectID string) bool
	Upcoming() []scheduler.Upcoming
	GuardScope() string
}

var _ Controller = (*scheduler.Scheduler)(nil)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp     *server.MCPServer
	ctrl    Controller
	history storage.Storage
	logger  *slog.Logger
}

// NewServer creates a new MCP server instance. history may be nil, in which
// case sync_status reports no runs.
func NewServer(ctrl Controller, history storage.Storage, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		mcp: server.NewMCPServer(
			ServerName,
			ServerVersion,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
		ctrl:    ctrl,
		history: history,
		logger:  logger.With(slog.String("component", "mcp")),
	}
	s.registerTools()
	return s
}

// Serve speaks MCP over in and out (normally stdin and stdout) until ctx is
// cancelled or in is closed
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Info("mcp server listening on stdio")
	stdio := server.NewStdioServer(s.mcp)
	err := stdio.Listen(ctx, in, out)
	if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(listProjectsTool(), s.handleListProjects)
	s.mcp.AddTool(syncProjectTool(), s.handleSyncProject)
	s.mcp.AddTool(syncStatusTool(), s.handleSyncStatus)
}
