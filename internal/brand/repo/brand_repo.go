package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-brand-go/internal/audit"
	"github.com/ovaphlow/pitchfork/service-brand-go/internal/brand/entity"
	"github.com/ovaphlow/pitchfork/service-brand-go/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-brand-go/internal/mirror"
	"github.com/ovaphlow/pitchfork/service-brand-go/internal/query"
)

// ErrOptimisticLockConflict is returned when a CAS statement affects no row:
// the row changed since it was read, or it no longer exists.
var ErrOptimisticLockConflict = errors.New("optimistic lock conflict")

const (
	resource = "brand"
	columns  = "id, name, description, website, sort_order, status, detail_info, sync_flag, lock_version"
	// DefaultBatchSize is the number of rows fetched per cursor round trip.
	DefaultBatchSize = 100
)

// Filters is the brand list whitelist.
var Filters = query.FilterSpec{
	Exact:        []string{"id", "status"},
	Like:         []string{"name", "description", "website"},
	LikeOperator: "ILIKE",
	In:           []string{"id", "status"},
	Range:        []string{"id", "sort_order"},
	Sortable:     []string{"id", "name", "sort_order", "status"},
	DefaultSort:  "id",
	TieBreaker:   "id",
}

// Synchronizer mirrors a committed brand into the secondary store.
type Synchronizer interface {
	Sync(ctx context.Context, m mirror.Mirrorable) bool
}

var _ mirror.Mirrorable = (*entity.Brand)(nil)

type nopSync struct{}

func (nopSync) Sync(context.Context, mirror.Mirrorable) bool { return true }

// Repo is the brand repository backed by PostgreSQL.
type Repo struct {
	db        *sqlx.DB
	sync      Synchronizer
	audit     *audit.Service
	scoper    query.Scoper
	logger    *zap.SugaredLogger
	metrics   *metrics.Metrics
	batchSize int
}

// Option configures a Repo.
type Option func(*Repo)

func WithSynchronizer(s Synchronizer) Option {
	return func(r *Repo) {
		if s != nil {
			r.sync = s
		}
	}
}

func WithAudit(a *audit.Service) Option {
	return func(r *Repo) {
		if a != nil {
			r.audit = a
		}
	}
}

func WithLogger(l *zap.SugaredLogger) Option {
	return func(r *Repo) {
		if l != nil {
			r.logger = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Repo) {
		if m != nil {
			r.metrics = m
		}
	}
}

// WithBatchSize sets the cursor fetch size used by List and Each.
func WithBatchSize(n int) Option {
	return func(r *Repo) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// NewRepo constructs a Repo on db. Without options mirroring is disabled,
// audit entries are discarded and the live scope applies.
func NewRepo(db *sqlx.DB, opts ...Option) *Repo {
	r := &Repo{
		db:        db,
		sync:      nopSync{},
		scoper:    query.NewScoper("status", int16(entity.StatusDeleted)),
		logger:    zap.NewNop().Sugar(),
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.audit == nil {
		r.audit = audit.NewService(r.logger)
	}
	if r.metrics == nil {
		r.metrics = metrics.Nop()
	}
	return r
}

// WithScope returns a copy of the repository reading under scope.
func (r *Repo) WithScope(scope query.Scope) *Repo {
	c := *r
	c.scoper = r.scoper.With(scope)
	return &c
}

// FindByID returns the brand with id, or nil when absent from the current scope.
func (r *Repo) FindByID(ctx context.Context, id int64) (*entity.Brand, error) {
	return r.findOne(ctx, query.NewBuilder().AndWhere(map[string]any{"id": id}))
}

// FindByName returns the brand named name, or nil when absent from the current scope.
func (r *Repo) FindByName(ctx context.Context, name string) (*entity.Brand, error) {
	return r.findOne(ctx, query.NewBuilder().AndWhere(map[string]any{"name": name}))
}

// ExistsByName reports whether a brand named name exists in the current scope.
func (r *Repo) ExistsByName(ctx context.Context, name string) (bool, error) {
	b := r.scoper.Apply(query.NewBuilder().AndWhere(map[string]any{"name": name}))
	q := r.db.Rebind("SELECT EXISTS (SELECT 1 FROM brands " + b.Where() + ")")
	var ok bool
	if err := r.db.GetContext(ctx, &ok, q, b.Args()...); err != nil {
		return false, fmt.Errorf("exists brand by name: %w", err)
	}
	return ok, nil
}

func (r *Repo) findOne(ctx context.Context, b *query.Builder) (*entity.Brand, error) {
	r.scoper.Apply(b)
	q := r.db.Rebind("SELECT " + columns + " FROM brands " + b.Where() + " LIMIT 1")
	var out entity.Brand
	if err := r.db.GetContext(ctx, &out, q, b.Args()...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find brand: %w", err)
	}
	r.checkDetail(&out)
	return &out, nil
}

// Insert persists b as a new row with lock_version 1 and returns it with its
// assigned id. b is updated in place.
func (r *Repo) Insert(ctx context.Context, b *entity.Brand, actor audit.Actor) (*entity.Brand, error) {
	next := b.Clone()
	next.LockVersion = 1
	next.SyncFlag = nil
	r.audit.Stamp(&next.DetailInfo.ChangeLog, audit.ActionCreate, actor)

	q, args, err := sqlx.Named(`INSERT INTO brands (name, description, website, sort_order, status, detail_info, lock_version)
		VALUES (:name, :description, :website, :sort_order, :status, :detail_info, :lock_version)
		RETURNING id`, next)
	if err != nil {
		return nil, fmt.Errorf("insert brand: bind: %w", err)
	}
	// QueryRowx releases the connection on Scan, before the mirror write may
	// need one for the sync flag.
	if err := r.db.QueryRowxContext(ctx, r.db.Rebind(q), args...).Scan(&next.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.New("insert brand: no id returned")
		}
		return nil, fmt.Errorf("insert brand: %w", err)
	}

	*b = *next
	r.audit.Record(resource, b.ID, audit.ActionCreate, actor, b.LockVersion)
	r.sync.Sync(ctx, b)
	return b, nil
}

// Update writes b's fields if the stored lock_version still equals
// b.LockVersion, and advances b.LockVersion on success.
func (r *Repo) Update(ctx context.Context, b *entity.Brand, actor audit.Actor) (*entity.Brand, error) {
	return r.compareAndSwap(ctx, b, actor, audit.ActionUpdate, nil)
}

// Delete soft-deletes b: status becomes Deleted and change_log.deleted_* is set.
func (r *Repo) Delete(ctx context.Context, b *entity.Brand, actor audit.Actor) (*entity.Brand, error) {
	return r.compareAndSwap(ctx, b, actor, audit.ActionDelete, func(n *entity.Brand) {
		n.Status = entity.StatusDeleted
	})
}

// Restore moves a soft-deleted brand back to Draft. It returns nil when no
// deleted brand with id exists.
func (r *Repo) Restore(ctx context.Context, id int64, actor audit.Actor) (*entity.Brand, error) {
	b, err := r.WithScope(query.ScopeOnlyDeleted).FindByID(ctx, id)
	if err != nil || b == nil {
		return nil, err
	}
	return r.compareAndSwap(ctx, b, actor, audit.ActionRestore, func(n *entity.Brand) {
		n.Status = entity.StatusDraft
	})
}

// compareAndSwap is the single write path for existing rows.
func (r *Repo) compareAndSwap(ctx context.Context, b *entity.Brand, actor audit.Actor, action string, mutate func(*entity.Brand)) (*entity.Brand, error) {
	next := b.Clone()
	if mutate != nil {
		mutate(next)
	}
	r.audit.Stamp(&next.DetailInfo.ChangeLog, action, actor)
	next.LockVersion = b.LockVersion + 1

	q := r.db.Rebind(`UPDATE brands
		SET name = ?, description = ?, website = ?, sort_order = ?, status = ?, detail_info = ?, lock_version = ?
		WHERE id = ? AND lock_version = ?`)
	res, err := r.db.ExecContext(ctx, q,
		next.Name, next.Description, next.Website, next.SortOrder, int16(next.Status), next.DetailInfo, next.LockVersion,
		b.ID, b.LockVersion,
	)
	if err != nil {
		return nil, fmt.Errorf("%s brand %d: %w", action, b.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("%s brand %d: rows affected: %w", action, b.ID, err)
	}
	if n == 0 {
		r.metrics.LockConflicts.WithLabelValues(resource, action).Inc()
		r.logger.Debugw("lock conflict", "resource", resource, "id", b.ID, "lock_version", b.LockVersion, "action", action)
		return nil, fmt.Errorf("%w: brand %d at lock_version %d", ErrOptimisticLockConflict, b.ID, b.LockVersion)
	}

	*b = *next
	r.audit.Record(resource, b.ID, action, actor, b.LockVersion)
	r.sync.Sync(ctx, b)
	return b, nil
}

func (r *Repo) checkDetail(b *entity.Brand) {
	if b.DetailInfo.Malformed() {
		r.logger.Debugw("malformed detail_info", "resource", resource, "id", b.ID)
	}
}
