package query

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
)

// identRe limits column names to plain (optionally table-qualified) identifiers.
var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*(\.[a-z_][a-z0-9_]*)?$`)

// likeOperators are the operators accepted by AndLike / OrLike.
var likeOperators = map[string]bool{
	"LIKE":      true,
	"ILIKE":     true,
	"NOT LIKE":  true,
	"NOT ILIKE": true,
}

// Range is an inclusive bound pair for AndRange. Either side may be left unfilled.
type Range struct {
	Min any `json:"min,omitempty"`
	Max any `json:"max,omitempty"`
}

// Builder accumulates AND-ed predicate clauses using `?` placeholders.
// Callers rebind the rendered SQL for their driver (sqlx.Rebind).
type Builder struct {
	clauses []string
	args    []any
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// IsFilled reports whether v should be applied as a filter value.
// nil, nil pointers and the empty string are unfilled; 0 and false are filled.
func IsFilled(v any) bool {
	if v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return s != ""
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return false
		}
		return IsFilled(rv.Elem().Interface())
	}
	return true
}

// FilterByExactMatch applies equality predicates for the filter keys present in
// allowedColumns. Keys outside the whitelist and unfilled values are dropped.
func (b *Builder) FilterByExactMatch(filters map[string]any, allowedColumns []string) *Builder {
	allowed := make(map[string]bool, len(allowedColumns))
	for _, c := range allowedColumns {
		allowed[c] = true
	}
	conds := make(map[string]any)
	for k, v := range filters {
		if !allowed[k] || !IsFilled(v) {
			continue
		}
		conds[k] = v
	}
	return b.AndWhere(conds)
}

// AndWhere appends one `AND col = ?` clause per entry. A nil value renders as IS NULL.
func (b *Builder) AndWhere(conditions map[string]any) *Builder {
	for _, col := range sortedKeys(conditions) {
		clause, args := equality(col, conditions[col])
		b.add(clause, args...)
	}
	return b
}

// OrWhere appends a single `AND (c1 = ? OR c2 = ? ...)` group.
func (b *Builder) OrWhere(conditions map[string]any) *Builder {
	var parts []string
	var args []any
	for _, col := range sortedKeys(conditions) {
		clause, a := equality(col, conditions[col])
		if clause == "" {
			continue
		}
		parts = append(parts, clause)
		args = append(args, a...)
	}
	return b.group(parts, args)
}

// AndLike appends `AND col <op> ?` for every filled entry, matching substrings.
func (b *Builder) AndLike(operator string, conditions map[string]any) *Builder {
	op, ok := likeOperator(operator)
	if !ok {
		return b
	}
	for _, col := range sortedKeys(conditions) {
		v := conditions[col]
		if !validColumn(col) || !IsFilled(v) {
			continue
		}
		b.add(fmt.Sprintf("%s %s ?", col, op), likePattern(v))
	}
	return b
}

// OrLike appends a single OR-ed group of LIKE predicates.
func (b *Builder) OrLike(operator string, conditions map[string]any) *Builder {
	op, ok := likeOperator(operator)
	if !ok {
		return b
	}
	var parts []string
	var args []any
	for _, col := range sortedKeys(conditions) {
		v := conditions[col]
		if !validColumn(col) || !IsFilled(v) {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s %s ?", col, op))
		args = append(args, likePattern(v))
	}
	return b.group(parts, args)
}

// AndIn appends `AND col IN (...)` per entry. Empty value lists are skipped.
func (b *Builder) AndIn(conditions map[string][]any) *Builder {
	for _, col := range sortedKeys(conditions) {
		clause, args := membership(col, conditions[col])
		b.add(clause, args...)
	}
	return b
}

// OrIn appends a single OR-ed group of membership predicates.
func (b *Builder) OrIn(conditions map[string][]any) *Builder {
	var parts []string
	var args []any
	for _, col := range sortedKeys(conditions) {
		clause, a := membership(col, conditions[col])
		if clause == "" {
			continue
		}
		parts = append(parts, clause)
		args = append(args, a...)
	}
	return b.group(parts, args)
}

// AndRange appends `col >= ?` and/or `col <= ?` for each filled bound.
func (b *Builder) AndRange(ranges map[string]Range) *Builder {
	for _, col := range sortedKeys(ranges) {
		if !validColumn(col) {
			continue
		}
		r := ranges[col]
		if IsFilled(r.Min) {
			b.add(col+" >= ?", r.Min)
		}
		if IsFilled(r.Max) {
			b.add(col+" <= ?", r.Max)
		}
	}
	return b
}

// AndRaw appends a caller-built clause. Used by scopes; never feed it user input.
func (b *Builder) AndRaw(clause string, args ...any) *Builder {
	b.add(clause, args...)
	return b
}

// Empty reports whether no clause has been added.
func (b *Builder) Empty() bool { return len(b.clauses) == 0 }

// Where renders the accumulated clauses as a WHERE expression, or "" when empty.
func (b *Builder) Where() string {
	if len(b.clauses) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(b.clauses, " AND ")
}

// Args returns a copy of the positional arguments in clause order.
func (b *Builder) Args() []any {
	out := make([]any, len(b.args))
	copy(out, b.args)
	return out
}

// Clone returns an independent copy of the builder.
func (b *Builder) Clone() *Builder {
	c := &Builder{
		clauses: make([]string, len(b.clauses)),
		args:    b.Args(),
	}
	copy(c.clauses, b.clauses)
	return c
}

func (b *Builder) add(clause string, args ...any) {
	if clause == "" {
		return
	}
	b.clauses = append(b.clauses, clause)
	b.args = append(b.args, args...)
}

func (b *Builder) group(parts []string, args []any) *Builder {
	switch len(parts) {
	case 0:
		return b
	case 1:
		b.add(parts[0], args...)
	default:
		b.add("("+strings.Join(parts, " OR ")+")", args...)
	}
	return b
}

func equality(col string, v any) (string, []any) {
	if !validColumn(col) {
		return "", nil
	}
	if v == nil {
		return col + " IS NULL", nil
	}
	return col + " = ?", []any{v}
}

func membership(col string, values []any) (string, []any) {
	if !validColumn(col) || len(values) == 0 {
		return "", nil
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
	args := make([]any, len(values))
	copy(args, values)
	return fmt.Sprintf("%s IN (%s)", col, marks), args
}

func likeOperator(op string) (string, bool) {
	op = strings.ToUpper(strings.Join(strings.Fields(op), " "))
	return op, likeOperators[op]
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(v any) string {
	return "%" + likeEscaper.Replace(fmt.Sprint(v)) + "%"
}

func validColumn(col string) bool {
	return identRe.MatchString(col)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ToSlice converts a slice or array of any element type to []any.
// ok is false when v is not a slice (byte slices are treated as scalars).
func ToSlice(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	if _, isBytes := v.([]byte); isBytes {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
