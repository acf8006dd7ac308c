package query

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCriteriaNormalizes(t *testing.T) {
	c := NewCriteria(nil, 0, 0, " name ", "desc")
	assert.Equal(t, 1, c.Page())
	assert.Equal(t, DefaultPageSize, c.PageSize())
	assert.Equal(t, "name", c.SortBy())
	assert.Equal(t, SortDesc, c.SortDir())
	assert.Equal(t, 0, c.Offset())

	c = NewCriteria(nil, 3, 10_000, "", "sideways")
	assert.Equal(t, MaxPageSize, c.PageSize())
	assert.Equal(t, SortAsc, c.SortDir())
	assert.Equal(t, 2*MaxPageSize, c.Offset())
}

func TestCriteriaCopiesFilter(t *testing.T) {
	f := map[string]any{"name": "Acme"}
	c := NewCriteria(f, 1, 10, "", "")
	f["name"] = "changed"
	f["status"] = 2
	assert.Equal(t, map[string]any{"name": "Acme"}, c.Filter())

	got := c.Filter()
	got["name"] = "mutated"
	assert.Equal(t, "Acme", c.Filter()["name"])
}

func TestZeroCriteria(t *testing.T) {
	var c Criteria
	assert.Equal(t, 0, c.Offset())
	assert.Equal(t, DefaultPageSize, c.PageSizeOrDefault())
	assert.Equal(t, SortAsc, c.SortDir())
}

func TestNewResultCoercesPageSize(t *testing.T) {
	for _, size := range []int{0, -5} {
		r := NewResult([]int{1}, 1, 1, size, nil, Sort{})
		assert.Equal(t, 1, r.PageSize())
	}
}

func TestResultForEchoesCriteria(t *testing.T) {
	c := NewCriteria(map[string]any{"name": "Ac"}, 2, 10, "name", "DESC")
	r := ResultFor([]string{"a"}, 11, c)
	assert.Equal(t, 2, r.Page())
	assert.Equal(t, 10, r.PageSize())
	assert.Equal(t, int64(11), r.Total())
	assert.Equal(t, 2, r.TotalPages())
	assert.Equal(t, Sort{By: "name", Dir: SortDesc}, r.Sort())
	assert.Equal(t, map[string]any{"name": "Ac"}, r.Filter())
}

func TestResultBeyondLastPage(t *testing.T) {
	c := NewCriteria(nil, 9, 10, "", "")
	r := ResultFor[string](nil, 3, c)
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, int64(3), r.Total())
	assert.Equal(t, 1, r.TotalPages())
}

func TestResultDataIsCopied(t *testing.T) {
	src := []int{1, 2}
	r := NewResult(src, 2, 1, 10, nil, Sort{})
	src[0] = 99
	got := r.Data()
	got[1] = 42
	assert.Equal(t, []int{1, 2}, r.Data())
}

func TestResultMarshalJSON(t *testing.T) {
	r := NewResult[int](nil, 0, 1, 10, map[string]any{"status": 2}, Sort{By: "id", Dir: SortAsc})
	raw, err := json.Marshal(r)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, []any{}, out["data"])
	assert.Equal(t, float64(0), out["total"])
	assert.Equal(t, float64(10), out["page_size"])
	assert.Equal(t, map[string]any{"status": float64(2)}, out["filter"])
}

func TestScoperApply(t *testing.T) {
	s := NewScoper("status", 9)

	b := s.Apply(NewBuilder())
	assert.Equal(t, "WHERE status <> ?", b.Where())
	assert.Equal(t, []any{9}, b.Args())

	b = s.With(ScopeOnlyDeleted).Apply(NewBuilder())
	assert.Equal(t, "WHERE status = ?", b.Where())

	b = s.With(ScopeWithDeleted).Apply(NewBuilder())
	assert.True(t, b.Empty())

	assert.Equal(t, ScopeLive, s.Scope, "With must not mutate the receiver")
}
