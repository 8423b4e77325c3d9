package search

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/dshills/treeindex/pkg/types"
)

// Memory is an in-process Backend. It is used for dry runs and tests and
// mirrors the engine rules the sync pipeline depends on: upserts replace by
// primary key and deletions may only filter on filterable attributes.
type Memory struct {
	mu      sync.RWMutex
	indexes map[string]*memoryIndex

	// FailUpsert, when set, is consulted before each upsert; a non-nil
	// result fails that call
	FailUpsert func(index string, docs []types.Record) error
}

type memoryIndex struct {
	primaryKey    string
	docs          map[string]map[string]interface{}
	filterable    []string
	sortable      []string
	nonSeparators []string
}

var _ Backend = (*Memory)(nil)

// NewMemory creates an empty in-memory backend
func NewMemory() *Memory {
	return &Memory{indexes: make(map[string]*memoryIndex)}
}

func (m *Memory) Health(ctx context.Context) error {
	return ctx.Err()
}

func (m *Memory) EnsureIndex(ctx context.Context, index, primaryKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensure(index, primaryKey)
	return nil
}

func (m *Memory) ensure(index, primaryKey string) *memoryIndex {
	idx, ok := m.indexes[index]
	if !ok {
		idx = &memoryIndex{primaryKey: primaryKey, docs: make(map[string]map[string]interface{})}
		m.indexes[index] = idx
	}
	if idx.primaryKey == "" {
		idx.primaryKey = primaryKey
	}
	return idx
}

func (m *Memory) lookup(index string) (*memoryIndex, error) {
	idx, ok := m.indexes[index]
	if !ok {
		return nil, &APIError{Status: 404, Code: codeIndexNotFound, Message: fmt.Sprintf("Index `%s` not found.", index)}
	}
	return idx, nil
}

func (m *Memory) FilterableAttributes(ctx context.Context, index string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, err := m.lookup(index)
	if err != nil {
		return nil, err
	}
	return slices.Clone(idx.filterable), nil
}

func (m *Memory) SetFilterableAttributes(ctx context.Context, index string, attrs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensure(index, "").filterable = slices.Clone(attrs)
	return nil
}

func (m *Memory) SortableAttributes(ctx context.Context, index string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, err := m.lookup(index)
	if err != nil {
		return nil, err
	}
	return slices.Clone(idx.sortable), nil
}

func (m *Memory) SetSortableAttributes(ctx context.Context, index string, attrs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensure(index, "").sortable = slices.Clone(attrs)
	return nil
}

func (m *Memory) SetNonSeparatorTokens(ctx context.Context, index string, tokens []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensure(index, "").nonSeparators = slices.Clone(tokens)
	return nil
}

// NonSeparatorTokens returns the tokens configured on index
func (m *Memory) NonSeparatorTokens(index string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if idx, ok := m.indexes[index]; ok {
		return slices.Clone(idx.nonSeparators)
	}
	return nil
}

func (m *Memory) UpsertDocuments(ctx context.Context, index string, docs []types.Record, primaryKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.FailUpsert != nil {
		if err := m.FailUpsert(index, docs); err != nil {
			return err
		}
	}

	// Decode through JSON so stored documents look like what the engine holds
	decoded := make([]map[string]interface{}, 0, len(docs))
	for _, d := range docs {
		raw, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("marshal document: %w", err)
		}
		var doc map[string]interface{}
		if err := json.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("unmarshal document: %w", err)
		}
		decoded = append(decoded, doc)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	pk := primaryKey
	if existing, ok := m.indexes[index]; ok && existing.primaryKey != "" {
		pk = existing.primaryKey
	}

	// The engine rejects the whole task when any document lacks its id
	ids := make([]string, len(decoded))
	for i, doc := range decoded {
		id, ok := doc[pk].(string)
		if !ok || id == "" {
			return &TaskError{Type: "documentAdditionOrUpdate", Status: TaskFailed, Code: "missing_document_id",
				Message: fmt.Sprintf("document %d is missing primary key %q", i, pk)}
		}
		ids[i] = id
	}

	idx := m.ensure(index, pk)
	for i, doc := range decoded {
		idx.docs[ids[i]] = doc
	}
	return nil
}

func (m *Memory) DeleteDocuments(ctx context.Context, index string, filter Filter) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(filter) == 0 {
		return ErrEmptyFilter
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	idx, err := m.lookup(index)
	if err != nil {
		return err
	}
	for _, field := range filter.Fields() {
		if !slices.Contains(idx.filterable, field) {
			return &TaskError{Type: "documentDeletion", Status: TaskFailed, Code: "invalid_document_filter",
				Message: fmt.Sprintf("attribute `%s` is not filterable", field)}
		}
	}
	for id, doc := range idx.docs {
		if filter.Match(doc) {
			delete(idx.docs, id)
		}
	}
	return nil
}

// Documents returns the stored documents of index sorted by primary key
func (m *Memory) Documents(index string) []map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, ok := m.indexes[index]
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(idx.docs))
	for id := range idx.docs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]map[string]interface{}, 0, len(ids))
	for _, id := range ids {
		out = append(out, idx.docs[id])
	}
	return out
}

// Document returns a single stored document
func (m *Memory) Document(index, id string) (map[string]interface{}, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	idx, ok := m.indexes[index]
	if !ok {
		return nil, false
	}
	doc, ok := idx.docs[id]
	return doc, ok
}

// Count returns the number of documents stored in index
func (m *Memory) Count(index string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if idx, ok := m.indexes[index]; ok {
		return len(idx.docs)
	}
	return 0
}
