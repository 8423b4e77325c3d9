package indexer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/treeindex/internal/search"
)

// failingBackend fails selected settings calls and delegates the rest
type failingBackend struct {
	*search.Memory
	failEnsure   bool
	failSortable bool
	setCalls     int
}

func (f *failingBackend) EnsureIndex(ctx context.Context, index, pk string) error {
	if f.failEnsure {
		return errors.New("engine down")
	}
	return f.Memory.EnsureIndex(ctx, index, pk)
}

func (f *failingBackend) SetFilterableAttributes(ctx context.Context, index string, attrs []string) error {
	f.setCalls++
	return f.Memory.SetFilterableAttributes(ctx, index, attrs)
}

func (f *failingBackend) SetSortableAttributes(ctx context.Context, index string, attrs []string) error {
	f.setCalls++
	if f.failSortable {
		return errors.New("sortable rejected")
	}
	return f.Memory.SetSortableAttributes(ctx, index, attrs)
}

func TestProvision(t *testing.T) {
	mem := search.NewMemory()
	idx := New(mem, Config{IndexName: testIndex}, nil, nil)
	ctx := context.Background()

	require.NoError(t, idx.Provision(ctx))

	filterable, err := mem.FilterableAttributes(ctx, testIndex)
	require.NoError(t, err)
	assert.ElementsMatch(t, FilterableAttributes, filterable)

	sortable, err := mem.SortableAttributes(ctx, testIndex)
	require.NoError(t, err)
	assert.ElementsMatch(t, SortableAttributes, sortable)

	assert.Equal(t, NonSeparatorTokens, mem.NonSeparatorTokens(testIndex))
	assert.Contains(t, mem.NonSeparatorTokens(testIndex), " ")
}

func TestProvision_IdempotentAndKeepsExtraAttributes(t *testing.T) {
	mem := search.NewMemory()
	backend := &failingBackend{Memory: mem}
	idx := New(backend, Config{IndexName: testIndex}, nil, nil)
	ctx := context.Background()

	require.NoError(t, mem.EnsureIndex(ctx, testIndex, PrimaryKey))
	require.NoError(t, mem.SetFilterableAttributes(ctx, testIndex, []string{"owner", "path"}))

	require.NoError(t, idx.Provision(ctx))
	assert.Equal(t, 2, backend.setCalls)

	filterable, err := mem.FilterableAttributes(ctx, testIndex)
	require.NoError(t, err)
	assert.Contains(t, filterable, "owner")
	for _, a := range FilterableAttributes {
		assert.Contains(t, filterable, a)
	}

	// Nothing missing the second time
	require.NoError(t, idx.Provision(ctx))
	assert.Equal(t, 2, backend.setCalls)
}

func TestProvision_FailuresAreJoinedAndDoNotStopLaterSteps(t *testing.T) {
	mem := search.NewMemory()
	backend := &failingBackend{Memory: mem, failEnsure: true, failSortable: true}
	idx := New(backend, Config{IndexName: testIndex}, nil, nil)

	err := idx.Provision(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine down")
	assert.Contains(t, err.Error(), "sortable rejected")

	// Filterable attributes and tokens were still applied
	filterable, ferr := mem.FilterableAttributes(context.Background(), testIndex)
	require.NoError(t, ferr)
	assert.ElementsMatch(t, FilterableAttributes, filterable)
	assert.Equal(t, NonSeparatorTokens, mem.NonSeparatorTokens(testIndex))
}
