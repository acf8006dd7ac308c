package query

import "strings"

// FilterSpec is a resource's whitelist of filterable and sortable columns.
//
// Criteria filter values are routed by shape: a Range goes to AndRange, a
// slice goes to AndIn, a Like column goes to AndLike with LikeOperator and
// anything else to FilterByExactMatch. A column must be whitelisted for the
// route its value takes, otherwise the entry is dropped.
type FilterSpec struct {
	Exact        []string
	Like         []string
	LikeOperator string
	In           []string
	Range        []string
	Sortable     []string
	DefaultSort  string
	// TieBreaker is appended to every ORDER BY so paging is stable.
	TieBreaker string
}

// Apply adds the predicates for filter to b.
func (s FilterSpec) Apply(b *Builder, filter map[string]any) *Builder {
	exact := make(map[string]any)
	like := make(map[string]any)
	in := make(map[string][]any)
	ranges := make(map[string]Range)

	for col, v := range filter {
		if r, ok := asRange(v); ok {
			if contains(s.Range, col) {
				ranges[col] = r
			}
			continue
		}
		if vals, ok := ToSlice(v); ok {
			if contains(s.In, col) {
				in[col] = vals
			}
			continue
		}
		if contains(s.Like, col) {
			like[col] = v
			continue
		}
		exact[col] = v
	}

	op := s.LikeOperator
	if op == "" {
		op = "ILIKE"
	}
	return b.FilterByExactMatch(exact, s.Exact).
		AndLike(op, like).
		AndIn(in).
		AndRange(ranges)
}

// OrderBy renders the ORDER BY expression for sort. Columns outside Sortable
// fall back to DefaultSort.
func (s FilterSpec) OrderBy(sort Sort) string {
	col := sort.By
	if !contains(s.Sortable, col) {
		col = s.DefaultSort
	}
	dir := NormalizeDir(sort.Dir)
	parts := make([]string, 0, 2)
	if col != "" {
		parts = append(parts, col+" "+dir)
	}
	if s.TieBreaker != "" && s.TieBreaker != col {
		parts = append(parts, s.TieBreaker+" ASC")
	}
	return strings.Join(parts, ", ")
}

func asRange(v any) (Range, bool) {
	switch r := v.(type) {
	case Range:
		return r, true
	case *Range:
		if r == nil {
			return Range{}, false
		}
		return *r, true
	}
	return Range{}, false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
