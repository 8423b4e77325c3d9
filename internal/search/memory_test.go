package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/treeindex/pkg/types"
)

func memRecord(path, project string, seen int64) types.Record {
	return types.Record{
		ID:         types.RecordID(path),
		Path:       path,
		Name:       path,
		Kind:       types.KindFolder,
		ProjectID:  project,
		LastSeenAt: seen,
	}
}

func TestMemoryUpsertReplacesByID(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.UpsertDocuments(ctx, "idx", []types.Record{memRecord("/a", "p", 1)}, "id"))
	require.NoError(t, m.UpsertDocuments(ctx, "idx", []types.Record{memRecord("/a", "p", 2)}, "id"))

	assert.Equal(t, 1, m.Count("idx"))
	doc, ok := m.Document("idx", types.RecordID("/a"))
	require.True(t, ok)
	assert.Equal(t, float64(2), doc["last_seen_at"])
	assert.Nil(t, doc["preview"])
	assert.Contains(t, doc, "preview")
	assert.NotContains(t, doc, "size_bytes")
}

func TestMemoryDeleteRequiresFilterableAttributes(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.UpsertDocuments(ctx, "idx", []types.Record{memRecord("/a", "p", 1)}, "id"))

	err := m.DeleteDocuments(ctx, "idx", And(Eq("project_id", "p")))
	var te *TaskError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "invalid_document_filter", te.Code)
	assert.Equal(t, 1, m.Count("idx"))
}

func TestMemoryDeleteByFilter(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.EnsureIndex(ctx, "idx", "id"))
	require.NoError(t, m.SetFilterableAttributes(ctx, "idx", []string{"project_id", "last_seen_at"}))

	require.NoError(t, m.UpsertDocuments(ctx, "idx", []types.Record{
		memRecord("/old", "p", 1),
		memRecord("/new", "p", 5),
		memRecord("/other", "q", 1),
	}, "id"))

	require.NoError(t, m.DeleteDocuments(ctx, "idx", And(Eq("project_id", "p"), Lt("last_seen_at", int64(5)))))

	_, ok := m.Document("idx", types.RecordID("/old"))
	assert.False(t, ok)
	_, ok = m.Document("idx", types.RecordID("/new"))
	assert.True(t, ok)
	_, ok = m.Document("idx", types.RecordID("/other"))
	assert.True(t, ok, "other project must be untouched")
}

func TestMemoryMissingIndex(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.FilterableAttributes(ctx, "nope")
	assert.ErrorIs(t, err, ErrIndexNotFound)

	err = m.DeleteDocuments(ctx, "nope", And(Eq("a", 1)))
	assert.ErrorIs(t, err, ErrIndexNotFound)

	assert.ErrorIs(t, m.DeleteDocuments(ctx, "nope", nil), ErrEmptyFilter)
}

func TestMemoryFailUpsert(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	boom := errors.New("boom")
	m.FailUpsert = func(string, []types.Record) error { return boom }

	err := m.UpsertDocuments(ctx, "idx", []types.Record{memRecord("/a", "p", 1)}, "id")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, m.Count("idx"))
}

func TestMemoryUpsertRejectsWholeBatchWithoutID(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.UpsertDocuments(ctx, "idx", []types.Record{memRecord("/a", "p", 1)}, "id"))

	batch := []types.Record{
		memRecord("/a", "p", 2),
		memRecord("/b", "p", 2),
		{Path: "/c", Name: "c", Kind: types.KindFile, ProjectID: "p"},
	}
	err := m.UpsertDocuments(ctx, "idx", batch, "id")

	var te *TaskError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "missing_document_id", te.Code)

	assert.Equal(t, 1, m.Count("idx"), "no document of the failed batch is stored")
	doc, ok := m.Document("idx", types.RecordID("/a"))
	require.True(t, ok)
	assert.Equal(t, float64(1), doc["last_seen_at"], "earlier version kept")
}

func TestMemoryUpsertFailureDoesNotCreateIndex(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	err := m.UpsertDocuments(ctx, "idx", []types.Record{{Path: "/c", Kind: types.KindFile}}, "id")
	require.Error(t, err)

	_, err = m.FilterableAttributes(ctx, "idx")
	assert.ErrorIs(t, err, ErrIndexNotFound)
}
