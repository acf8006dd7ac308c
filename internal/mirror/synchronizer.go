package mirror

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-brand-go/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-brand-go/pkg/utilities"
)

// Mirrorable is an aggregate that can be projected into the secondary store.
type Mirrorable interface {
	MirrorID() int64
	MirrorVersion() int64
	MirrorDocument() map[string]any
	SyncDirty() bool
	SetSyncDirty(dirty bool)
}

// FlagStore persists the sync flag on the primary record. Clearing is
// conditional on version still being the stored one; when it is not,
// SetSyncFlag returns ErrStaleVersion and the flag stays set.
type FlagStore interface {
	SetSyncFlag(ctx context.Context, id, version int64, dirty bool) error
}

// ErrStaleVersion reports a flag clear for a version the primary store has
// already moved past.
var ErrStaleVersion = errors.New("stale version")

// DefaultTimeout bounds a single mirror write.
const DefaultTimeout = 2 * time.Second

// flagTimeout bounds the primary-store flag write issued after a sync attempt.
const flagTimeout = 5 * time.Second

// Synchronizer mirrors committed aggregates into a Store. Failures are never
// returned: they are logged, counted and recorded as a dirty sync flag.
type Synchronizer struct {
	store      Store
	flags      FlagStore
	collection string
	timeout    time.Duration
	logger     *zap.SugaredLogger
	metrics    *metrics.Metrics
	ids        *snowflake.Node
	now        func() time.Time
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

func WithTimeout(d time.Duration) Option {
	return func(s *Synchronizer) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithLogger(l *zap.SugaredLogger) Option {
	return func(s *Synchronizer) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Synchronizer) {
		if m != nil {
			s.metrics = m
		}
	}
}

func WithIDNode(n *snowflake.Node) Option {
	return func(s *Synchronizer) {
		if n != nil {
			s.ids = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Synchronizer) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSynchronizer constructs a Synchronizer writing to collection.
func NewSynchronizer(store Store, flags FlagStore, collection string, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		store:      store,
		flags:      flags,
		collection: collection,
		timeout:    DefaultTimeout,
		logger:     zap.NewNop().Sugar(),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.Nop()
	}
	if s.ids == nil {
		s.ids = utilities.SnowflakeNode()
	}
	return s
}

// Collection is the secondary-store collection this synchronizer writes to.
func (s *Synchronizer) Collection() string { return s.collection }

// Sync upserts m's projection and reconciles its sync flag.
// It reports whether the mirror write succeeded.
func (s *Synchronizer) Sync(ctx context.Context, m Mirrorable) bool {
	id, version := m.MirrorID(), m.MirrorVersion()
	start := time.Now()
	err := s.upsert(ctx, m)
	s.metrics.SyncDuration.WithLabelValues(s.collection).Observe(time.Since(start).Seconds())

	if err == nil {
		s.metrics.SyncTotal.WithLabelValues(s.collection, metrics.OutcomeSynced).Inc()
		if m.SyncDirty() {
			ferr := s.persistFlag(ctx, id, version, false)
			if errors.Is(ferr, ErrStaleVersion) {
				// a newer version owns the flag now; its own sync or the next sweep clears it
				s.logger.Debugw("sync flag kept for newer version", "collection", s.collection, "id", id, "lock_version", version)
				return true
			}
			if ferr != nil {
				s.metrics.SyncTotal.WithLabelValues(s.collection, metrics.OutcomeFlagError).Inc()
				s.logger.Warnw("clear sync flag failed", "collection", s.collection, "id", id, "err", ferr)
				return true
			}
			m.SetSyncDirty(false)
			s.logger.Debugw("sync flag cleared", "collection", s.collection, "id", id)
		}
		return true
	}

	m.SetSyncDirty(true)
	s.metrics.SyncTotal.WithLabelValues(s.collection, metrics.OutcomeFailed).Inc()
	s.logger.Errorw("secondary store sync failed",
		"error_type", Classify(err),
		"collection", s.collection,
		"id", id,
		"lock_version", version,
		"timestamp", s.now().Format(time.RFC3339Nano),
		"err", err,
	)
	if ferr := s.persistFlag(ctx, id, version, true); ferr != nil {
		s.metrics.SyncTotal.WithLabelValues(s.collection, metrics.OutcomeFlagError).Inc()
		s.logger.Errorw("persist sync flag failed", "collection", s.collection, "id", id, "err", ferr)
	}
	return false
}

func (s *Synchronizer) upsert(ctx context.Context, m Mirrorable) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError{value: r}
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	doc := Document(m.MirrorDocument())
	doc["synced_at"] = s.now()
	doc["sync_id"] = s.ids.Generate().String()

	if err := s.store.Upsert(ctx, s.collection, m.MirrorID(), m.MirrorVersion(), doc); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return fmt.Errorf("upsert %s:%d: %w", s.collection, m.MirrorID(), ctx.Err())
	}
	return nil
}

// persistFlag runs detached from the caller's cancellation: the primary write
// has already committed and the flag must follow it.
func (s *Synchronizer) persistFlag(ctx context.Context, id, version int64, dirty bool) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flagTimeout)
	defer cancel()
	return s.flags.SetSyncFlag(ctx, id, version, dirty)
}
