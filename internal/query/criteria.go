package query

import "strings"

const (
	DefaultPageSize = 20
	MaxPageSize     = 500
)

// Sort direction values.
const (
	SortAsc  = "ASC"
	SortDesc = "DESC"
)

// Sort is the requested ordering echoed back in a Result.
type Sort struct {
	By  string `json:"by"`
	Dir string `json:"dir"`
}

// Criteria is an immutable filter, pagination and sort request.
// Build one per request with NewCriteria.
type Criteria struct {
	filter   map[string]any
	page     int
	pageSize int
	sort     Sort
}

// NewCriteria copies filter and normalizes pagination and sort direction.
// page < 1 becomes 1; pageSize < 1 becomes DefaultPageSize and is capped at MaxPageSize.
func NewCriteria(filter map[string]any, page, pageSize int, sortBy, sortDir string) Criteria {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return Criteria{
		filter:   copyFilter(filter),
		page:     page,
		pageSize: pageSize,
		sort:     Sort{By: strings.TrimSpace(sortBy), Dir: NormalizeDir(sortDir)},
	}
}

// Filter returns a copy of the filter map.
func (c Criteria) Filter() map[string]any { return copyFilter(c.filter) }

func (c Criteria) Page() int       { return c.page }
func (c Criteria) PageSize() int   { return c.pageSize }
func (c Criteria) SortBy() string { return c.sort.By }

// SortDir is SortAsc or SortDesc.
func (c Criteria) SortDir() string {
	if c.sort.Dir == "" {
		return SortAsc
	}
	return c.sort.Dir
}

// Sort returns the requested ordering.
func (c Criteria) Sort() Sort { return Sort{By: c.sort.By, Dir: c.SortDir()} }

// Offset is the zero-based row offset for the requested page.
func (c Criteria) Offset() int {
	if c.page < 1 {
		return 0
	}
	return (c.page - 1) * c.PageSizeOrDefault()
}

// PageSizeOrDefault guards the zero value Criteria{}.
func (c Criteria) PageSizeOrDefault() int {
	if c.pageSize < 1 {
		return DefaultPageSize
	}
	return c.pageSize
}

// NormalizeDir maps any casing of "desc" to SortDesc and everything else to SortAsc.
func NormalizeDir(dir string) string {
	if strings.EqualFold(strings.TrimSpace(dir), SortDesc) {
		return SortDesc
	}
	return SortAsc
}

func copyFilter(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
