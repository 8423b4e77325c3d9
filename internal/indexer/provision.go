package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
)

// Index schema applied by Provision
var (
	FilterableAttributes = []string{
		"path", "name", "kind", "size_bytes", "modified_at",
		"is_hidden", "preview", "project_id", "last_seen_at",
	}
	SortableAttributes = []string{"path", "name", "size_bytes", "modified_at"}

	// Characters kept inside tokens so paths and file names stay searchable as written
	NonSeparatorTokens = []string{
		".", "/", `\`, "@", "#", "$", "%", "^", "&", "*",
		"(", ")", "-", "_", "+", "=", " ",
	}
)

// Provision ensures the index exists and carries the attribute and tokenizer
// settings runs depend on. Every step is attempted; failures are logged and
// returned joined.
func (idx *Indexer) Provision(ctx context.Context) error {
	log := idx.logger.With(slog.String("index", idx.indexName))
	var errs []error

	if err := idx.backend.EnsureIndex(ctx, idx.indexName, PrimaryKey); err != nil {
		log.Error("ensure index failed", slog.String("error", err.Error()))
		errs = append(errs, fmt.Errorf("ensure index: %w", err))
	}

	if err := idx.ensureAttributes(ctx, log, "filterable",
		idx.backend.FilterableAttributes, idx.backend.SetFilterableAttributes, FilterableAttributes); err != nil {
		errs = append(errs, err)
	}
	if err := idx.ensureAttributes(ctx, log, "sortable",
		idx.backend.SortableAttributes, idx.backend.SetSortableAttributes, SortableAttributes); err != nil {
		errs = append(errs, err)
	}

	if err := idx.backend.SetNonSeparatorTokens(ctx, idx.indexName, NonSeparatorTokens); err != nil {
		log.Error("set non-separator tokens failed", slog.String("error", err.Error()))
		errs = append(errs, fmt.Errorf("set non-separator tokens: %w", err))
	}

	return errors.Join(errs...)
}

type (
	getAttrs func(ctx context.Context, index string) ([]string, error)
	setAttrs func(ctx context.Context, index string, attrs []string) error
)

// ensureAttributes adds any of want missing from the index's current list.
// Attributes configured by someone else are kept.
func (idx *Indexer) ensureAttributes(ctx context.Context, log *slog.Logger, kind string, get getAttrs, set setAttrs, want []string) error {
	have, err := get(ctx, idx.indexName)
	if err != nil {
		log.Warn("read attributes failed", slog.String("kind", kind), slog.String("error", err.Error()))
		have = nil
	}

	missing := make([]string, 0, len(want))
	for _, a := range want {
		if !slices.Contains(have, a) {
			missing = append(missing, a)
		}
	}
	if len(missing) == 0 {
		log.Debug("attributes up to date", slog.String("kind", kind))
		return nil
	}

	attrs := append(slices.Clone(have), missing...)
	if err := set(ctx, idx.indexName, attrs); err != nil {
		log.Error("set attributes failed", slog.String("kind", kind), slog.String("error", err.Error()))
		return fmt.Errorf("set %s attributes: %w", kind, err)
	}
	log.Info("attributes updated", slog.String("kind", kind), slog.Any("added", missing))
	return nil
}
