package query

// Scope selects which soft-delete states a read may observe.
type Scope int

const (
	// ScopeLive hides soft-deleted rows. It is the default.
	ScopeLive Scope = iota
	// ScopeWithDeleted returns live and soft-deleted rows.
	ScopeWithDeleted
	// ScopeOnlyDeleted returns soft-deleted rows only.
	ScopeOnlyDeleted
)

func (s Scope) String() string {
	switch s {
	case ScopeWithDeleted:
		return "with_deleted"
	case ScopeOnlyDeleted:
		return "only_deleted"
	default:
		return "live"
	}
}

// Scoper appends the soft-delete predicate for a status column.
type Scoper struct {
	Column       string
	DeletedValue any
	Scope        Scope
}

// NewScoper returns a Scoper in the default live scope.
func NewScoper(column string, deletedValue any) Scoper {
	return Scoper{Column: column, DeletedValue: deletedValue, Scope: ScopeLive}
}

// With returns a copy of the scoper switched to scope.
func (s Scoper) With(scope Scope) Scoper {
	s.Scope = scope
	return s
}

// Apply adds the scope predicate to b.
func (s Scoper) Apply(b *Builder) *Builder {
	if !validColumn(s.Column) {
		return b
	}
	switch s.Scope {
	case ScopeWithDeleted:
		return b
	case ScopeOnlyDeleted:
		return b.AndRaw(s.Column+" = ?", s.DeletedValue)
	default:
		return b.AndRaw(s.Column+" <> ?", s.DeletedValue)
	}
}
