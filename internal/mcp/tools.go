package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/treeindex/internal/indexer"
	"github.com/dshills/treeindex/internal/scheduler"
	"github.com/dshills/treeindex/internal/storage"
)

// MCP error codes
const (
	ErrorCodeInvalidParams   = -32602 // Invalid method parameters
	ErrorCodeInternalError   = -32603 // Internal JSON-RPC error
	ErrorCodeProjectNotFound = -32001 // No project with that id is configured
	ErrorCodeSyncInProgress  = -32002 // Guard held by another run
)

const (
	defaultStatusLimit = 10
	maxStatusLimit     = 100
	maxReportedErrors  = 5
)

// handleListProjects handles the list_projects tool invocation
func (s *Server) handleListProjects(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	next := make(map[string]time.Time)
	for _, u := range s.ctrl.Upcoming() {
		next[u.ProjectID] = u.Next
	}

	projects := make([]interface{}, 0)
	for _, p := range s.ctrl.Projects() {
		entry := map[string]interface{}{
			"id":       p.ID,
			"root":     p.Root,
			"schedule": p.Schedule,
			"running":  s.ctrl.Busy(p.ID),
		}
		if t, ok := next[p.ID]; ok && !t.IsZero() {
			entry["next_run"] = t.Format(time.RFC3339)
		}

		if s.history != nil {
			last, err := s.history.LastRun(ctx, p.ID)
			switch {
			case err == nil:
				entry["last_run"] = runSummary(last)
			case !errors.Is(err, storage.ErrNotFound):
				s.logger.Warn("failed to load last run",
					"project", p.ID,
					"error", err)
			}
		}
		projects = append(projects, entry)
	}

	response := map[string]interface{}{
		"guard":    s.ctrl.GuardScope(),
		"projects": projects,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSyncProject handles the sync_project tool invocation
func (s *Server) handleSyncProject(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	projectID, ok := args["project_id"].(string)
	if !ok || projectID == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "project_id parameter is required", map[string]interface{}{
			"param":  "project_id",
			"reason": "missing or empty",
		})
	}

	stats, err := s.ctrl.Trigger(ctx, projectID, storage.SourceManual)
	switch {
	case errors.Is(err, scheduler.ErrUnknownProject):
		return nil, newMCPError(ErrorCodeProjectNotFound, "project not found", map[string]interface{}{
			"project_id": projectID,
		})
	case errors.Is(err, scheduler.ErrRunInProgress):
		return nil, newMCPError(ErrorCodeSyncInProgress, "a sync is already running", map[string]interface{}{
			"project_id": projectID,
			"guard":      s.ctrl.GuardScope(),
		})
	case err != nil && !errors.Is(err, indexer.ErrPartialSync):
		return nil, newMCPError(ErrorCodeInternalError, "sync failed", map[string]interface{}{
			"project_id": projectID,
			"error":      err.Error(),
		})
	}

	status := storage.StatusSucceeded
	if err != nil {
		status = storage.StatusPartial
	}

	response := map[string]interface{}{
		"project_id": projectID,
		"status":     status,
	}
	if stats != nil {
		response["records"] = stats.Records
		response["records_skipped"] = stats.Skipped
		response["batches"] = stats.Batches
		response["failed_batches"] = stats.FailedBatches
		response["deletion_ok"] = stats.DeletionOK
		response["duration_ms"] = stats.Duration.Milliseconds()

		if len(stats.ErrorMessages) > 0 {
			// Include first few errors
			errorCount := len(stats.ErrorMessages)
			if errorCount > maxReportedErrors {
				response["errors"] = stats.ErrorMessages[:maxReportedErrors]
				response["error_count"] = errorCount
			} else {
				response["errors"] = stats.ErrorMessages
			}
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSyncStatus handles the sync_status tool invocation
func (s *Server) handleSyncStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		args = map[string]interface{}{}
	}

	projectID := getStringDefault(args, "project_id", "")
	if projectID != "" {
		if _, ok := s.ctrl.Project(projectID); !ok {
			return nil, newMCPError(ErrorCodeProjectNotFound, "project not found", map[string]interface{}{
				"project_id": projectID,
			})
		}
	}

	limit := getIntDefault(args, "limit", defaultStatusLimit)
	if limit < 1 || limit > maxStatusLimit {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	runs := make([]interface{}, 0)
	if s.history != nil {
		list, err := s.history.ListRuns(ctx, projectID, limit)
		if err != nil {
			return nil, newMCPError(ErrorCodeInternalError, "failed to load sync history", map[string]interface{}{
				"error": err.Error(),
			})
		}
		for _, run := range list {
			runs = append(runs, runSummary(run))
		}
	}

	response := map[string]interface{}{
		"runs": runs,
	}
	if projectID != "" {
		response["project_id"] = projectID
		response["running"] = s.ctrl.Busy(projectID)
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

func runSummary(run *storage.SyncRun) map[string]interface{} {
	summary := map[string]interface{}{
		"project_id":  run.ProjectID,
		"status":      run.Status,
		"source":      run.Source,
		"started_at":  run.StartedAt.UTC().Format(time.RFC3339),
		"duration_ms": run.Duration().Milliseconds(),
	}
	if run.Status != storage.StatusSkipped {
		summary["records"] = run.Records
		summary["records_skipped"] = run.RecordsSkipped
		summary["batches"] = run.Batches
		summary["failed_batches"] = run.FailedBatches
		summary["deletion_ok"] = run.DeletionOK
	}
	if run.Error != "" {
		summary["error"] = run.Error
	}
	return summary
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
