// Package mcp implements the Model Context Protocol (MCP) control surface of
// treeindex.
//
// The server exposes three tools so an assistant or operator can inspect and
// drive the scheduler without waiting for the next cron firing:
//   - list_projects: configured projects, schedules, next and last run
//   - sync_project: run one project's sync now
//   - sync_status: recent runs from the run history
//
// # Basic Usage
//
// The MCP server is started alongside the scheduler:
//
//	treeindex serve --mcp
//
// It then reads JSON-RPC messages from stdin and writes responses to stdout.
// Logs go to stderr so they never interleave with protocol traffic.
//
// # Tool: sync_project
//
//	Request:
//	{
//	  "name": "sync_project",
//	  "arguments": {"project_id": "docs"}
//	}
//
//	Response:
//	{
//	  "project_id": "docs",
//	  "status": "succeeded",
//	  "records": 1204,
//	  "batches": 1,
//	  "failed_batches": 0,
//	  "deletion_ok": true,
//	  "duration_ms": 412
//	}
//
// A manual trigger takes the same guard as cron firings. When the guard is
// held the call fails with ErrorCodeSyncInProgress and nothing is walked or
// written. A run whose batches or deletion pass partly failed is not an
// error: it is reported with status "partial" and its first error messages.
//
// # Error Codes
//
//	-32602  invalid parameters
//	-32603  internal error (root unavailable, run failed)
//	-32001  project not found
//	-32002  sync already in progress
package mcp
