package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// listProjectsTool returns the tool definition for list_projects
func listProjectsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_projects",
		Description: "List the directory trees kept in sync with the search index, their schedules and last run",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// syncProjectTool returns the tool definition for sync_project
func syncProjectTool() mcp.Tool {
	return mcp.Tool{
		Name:        "sync_project",
		Description: "Walk a project's directory tree now and synchronize it into the search index. Fails if a sync holding the same guard is already running.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"project_id": map[string]interface{}{
					"type":        "string",
					"description": "Id of a configured project (see list_projects)",
				},
			},
			Required: []string{"project_id"},
		},
	}
}

// syncStatusTool returns the tool definition for sync_status
func syncStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "sync_status",
		Description: "Show recent sync runs, newest first, including skipped triggers",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"project_id": map[string]interface{}{
					"type":        "string",
					"description": "Only show runs of this project; omit for all projects",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of runs to return (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
			},
		},
	}
}
