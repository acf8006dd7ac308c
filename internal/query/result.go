package query

import "encoding/json"

// Result is an immutable page of rows with pagination metadata.
type Result[T any] struct {
	data     []T
	total    int64
	page     int
	pageSize int
	filter   map[string]any
	sort     Sort
}

// NewResult builds a Result. pageSize is coerced to at least 1 and page to at least 1.
func NewResult[T any](data []T, total int64, page, pageSize int, filter map[string]any, sort Sort) Result[T] {
	if pageSize < 1 {
		pageSize = 1
	}
	if page < 1 {
		page = 1
	}
	if total < 0 {
		total = 0
	}
	rows := make([]T, len(data))
	copy(rows, data)
	return Result[T]{
		data:     rows,
		total:    total,
		page:     page,
		pageSize: pageSize,
		filter:   copyFilter(filter),
		sort:     sort,
	}
}

// ResultFor builds a Result echoing the pagination, filter and sort of c.
func ResultFor[T any](data []T, total int64, c Criteria) Result[T] {
	return NewResult(data, total, c.Page(), c.PageSize(), c.Filter(), c.Sort())
}

// Data returns a copy of the rows.
func (r Result[T]) Data() []T {
	out := make([]T, len(r.data))
	copy(out, r.data)
	return out
}

func (r Result[T]) Len() int               { return len(r.data) }
func (r Result[T]) Total() int64           { return r.total }
func (r Result[T]) Page() int              { return r.page }
func (r Result[T]) PageSize() int          { return r.pageSize }
func (r Result[T]) Filter() map[string]any { return copyFilter(r.filter) }
func (r Result[T]) Sort() Sort             { return r.sort }

// TotalPages is the number of pages needed for Total rows, 0 when there are none.
func (r Result[T]) TotalPages() int {
	if r.total == 0 {
		return 0
	}
	size := int64(r.PageSize())
	return int((r.total + size - 1) / size)
}

type resultJSON[T any] struct {
	Data       []T            `json:"data"`
	Total      int64          `json:"total"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
	TotalPages int            `json:"total_pages"`
	Filter     map[string]any `json:"filter"`
	Sort       Sort           `json:"sort"`
}

// MarshalJSON renders the page for API responses.
func (r Result[T]) MarshalJSON() ([]byte, error) {
	data := r.data
	if data == nil {
		data = []T{}
	}
	return json.Marshal(resultJSON[T]{
		Data:       data,
		Total:      r.total,
		Page:       r.page,
		PageSize:   r.pageSize,
		TotalPages: r.TotalPages(),
		Filter:     r.filter,
		Sort:       r.sort,
	})
}
