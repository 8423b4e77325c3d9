package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterString(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		want   string
	}{
		{
			name:   "deletion predicate",
			filter: And(Eq("project_id", "docs"), Lt("last_seen_at", int64(1700000000000))),
			want:   `project_id = "docs" AND last_seen_at < 1700000000000`,
		},
		{
			name:   "quotes escaped",
			filter: And(Eq("name", `a "b" \c`)),
			want:   `name = "a \"b\" \\c"`,
		},
		{
			name:   "bool and float",
			filter: And(Eq("is_hidden", true), Gte("size_bytes", 1.5)),
			want:   `is_hidden = true AND size_bytes >= 1.5`,
		},
		{
			name:   "all operators",
			filter: And(Neq("a", 1), Lte("b", 2), Gt("c", 3)),
			want:   `a != 1 AND b <= 2 AND c > 3`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.String())
		})
	}
}

func TestFilterMatch(t *testing.T) {
	doc := map[string]interface{}{
		"project_id":   "docs",
		"last_seen_at": float64(1000), // JSON numbers decode as float64
		"is_hidden":    false,
	}

	assert.True(t, And(Eq("project_id", "docs"), Lt("last_seen_at", int64(2000))).Match(doc))
	assert.False(t, And(Eq("project_id", "docs"), Lt("last_seen_at", int64(1000))).Match(doc))
	assert.True(t, And(Lte("last_seen_at", 1000)).Match(doc))
	assert.False(t, And(Eq("project_id", "other")).Match(doc))
	assert.True(t, And(Neq("project_id", "other")).Match(doc))
	assert.True(t, And(Eq("is_hidden", false)).Match(doc))

	// Missing attributes only satisfy inequality
	assert.False(t, And(Lt("size_bytes", 10)).Match(doc))
	assert.True(t, And(Neq("size_bytes", 10)).Match(doc))

	// Range comparisons against strings never match
	assert.False(t, And(Lt("project_id", 5)).Match(doc))
}

func TestFilterFields(t *testing.T) {
	f := And(Eq("project_id", "x"), Lt("last_seen_at", 1))
	assert.Equal(t, []string{"project_id", "last_seen_at"}, f.Fields())
}
