package search

import (
	"context"

	"github.com/dshills/treeindex/pkg/types"
)

// Backend is the subset of a search engine that the sync pipeline needs.
// Every mutating call returns once the engine has applied (or rejected) the
// change.
type Backend interface {
	// Health returns nil when the engine is reachable and available
	Health(ctx context.Context) error

	// Index schema
	EnsureIndex(ctx context.Context, index, primaryKey string) error
	FilterableAttributes(ctx context.Context, index string) ([]string, error)
	SetFilterableAttributes(ctx context.Context, index string, attrs []string) error
	SortableAttributes(ctx context.Context, index string) ([]string, error)
	SetSortableAttributes(ctx context.Context, index string, attrs []string) error
	SetNonSeparatorTokens(ctx context.Context, index string, tokens []string) error

	// Documents
	UpsertDocuments(ctx context.Context, index string, docs []types.Record, primaryKey string) error
	DeleteDocuments(ctx context.Context, index string, filter Filter) error
}
