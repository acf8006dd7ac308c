package mirror

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ovaphlow/pitchfork/service-brand-go/internal/metrics"
)

type mockStore struct{ mock.Mock }

func (m *mockStore) Upsert(ctx context.Context, collection string, id, version int64, doc Document) error {
	return m.Called(ctx, collection, id, version, doc).Error(0)
}

func (m *mockStore) Close(ctx context.Context) error { return m.Called(ctx).Error(0) }

type flagCall struct {
	id    int64
	dirty bool
}

// fakeFlags refuses to clear the flag of an id whose stored version in
// current differs from the one being cleared.
type fakeFlags struct {
	mu      sync.Mutex
	calls   []flagCall
	current map[int64]int64
	err     error
}

func (f *fakeFlags) SetSyncFlag(_ context.Context, id, version int64, dirty bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, flagCall{id, dirty})
	if v, ok := f.current[id]; ok && !dirty && v != version {
		return ErrStaleVersion
	}
	return f.err
}

// versionedStore keeps the newest version per id, as SurrealStore does.
type versionedStore struct {
	mu   sync.Mutex
	docs map[int64]Document
}

func (s *versionedStore) Upsert(_ context.Context, _ string, id, version int64, doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.docs == nil {
		s.docs = map[int64]Document{}
	}
	if cur, ok := s.docs[id]; ok && cur["lock_version"].(int64) > version {
		return nil
	}
	doc["lock_version"] = version
	s.docs[id] = doc
	return nil
}

func (s *versionedStore) Close(context.Context) error { return nil }

type item struct {
	id      int64
	version int64
	dirty   bool
}

func (i *item) MirrorID() int64                { return i.id }
func (i *item) MirrorVersion() int64           { return i.version }
func (i *item) MirrorDocument() map[string]any { return map[string]any{"id": i.id, "name": "acme"} }
func (i *item) SyncDirty() bool                { return i.dirty }
func (i *item) SetSyncDirty(d bool)            { i.dirty = d }

func newTestSync(t *testing.T, store Store, flags FlagStore, opts ...Option) (*Synchronizer, *observer.ObservedLogs, *metrics.Metrics) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	m := metrics.New(prometheus.NewRegistry())
	opts = append([]Option{WithLogger(zap.New(core).Sugar()), WithMetrics(m)}, opts...)
	return NewSynchronizer(store, flags, "brand", opts...), logs, m
}

func TestSyncSuccessLeavesCleanFlagUntouched(t *testing.T) {
	store := &mockStore{}
	store.On("Upsert", mock.Anything, "brand", int64(7), mock.Anything, mock.MatchedBy(func(d Document) bool {
		_, hasAt := d["synced_at"]
		id, _ := d["sync_id"].(string)
		return hasAt && id != "" && d["name"] == "acme"
	})).Return(nil).Once()
	flags := &fakeFlags{}
	s, _, m := newTestSync(t, store, flags)

	it := &item{id: 7}
	assert.True(t, s.Sync(context.Background(), it))
	assert.False(t, it.dirty)
	assert.Empty(t, flags.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SyncTotal.WithLabelValues("brand", metrics.OutcomeSynced)))
	store.AssertExpectations(t)
}

func TestSyncFailureMarksDirtyAndLogs(t *testing.T) {
	store := &mockStore{}
	store.On("Upsert", mock.Anything, "brand", int64(9), mock.Anything, mock.Anything).
		Return(&DriverError{Op: "upsert", Err: errors.New("boom")}).Once()
	flags := &fakeFlags{}
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s, logs, m := newTestSync(t, store, flags, WithClock(func() time.Time { return fixed }))

	it := &item{id: 9}
	assert.False(t, s.Sync(context.Background(), it))
	assert.True(t, it.dirty)
	assert.Equal(t, []flagCall{{9, true}}, flags.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SyncTotal.WithLabelValues("brand", metrics.OutcomeFailed)))

	entries := logs.FilterMessage("secondary store sync failed").All()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	assert.Equal(t, ErrTypeDriver, ctx["error_type"])
	assert.Equal(t, int64(9), ctx["id"])
	assert.Equal(t, fixed.Format(time.RFC3339Nano), ctx["timestamp"])
}

func TestSyncSuccessClearsDirtyFlag(t *testing.T) {
	store := &mockStore{}
	store.On("Upsert", mock.Anything, "brand", int64(3), mock.Anything, mock.Anything).Return(nil)
	flags := &fakeFlags{}
	s, _, _ := newTestSync(t, store, flags)

	it := &item{id: 3, dirty: true}
	assert.True(t, s.Sync(context.Background(), it))
	assert.False(t, it.dirty)
	assert.Equal(t, []flagCall{{3, false}}, flags.calls)
}

func TestSyncClearFailureKeepsDirty(t *testing.T) {
	store := &mockStore{}
	store.On("Upsert", mock.Anything, "brand", int64(3), mock.Anything, mock.Anything).Return(nil)
	flags := &fakeFlags{err: errors.New("db down")}
	s, _, m := newTestSync(t, store, flags)

	it := &item{id: 3, dirty: true}
	assert.True(t, s.Sync(context.Background(), it))
	assert.True(t, it.dirty)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SyncTotal.WithLabelValues("brand", metrics.OutcomeFlagError)))
}

func TestStaleSyncCannotRewindMirrorOrClearFlag(t *testing.T) {
	store := &versionedStore{}
	flags := &fakeFlags{current: map[int64]int64{1: 3}}
	s, logs, m := newTestSync(t, store, flags)

	// a sweep loaded v2 before a user update moved the row to v3
	stale := &item{id: 1, version: 2, dirty: true}
	fresh := &item{id: 1, version: 3, dirty: true}

	assert.True(t, s.Sync(context.Background(), fresh))
	assert.False(t, fresh.dirty)
	assert.True(t, s.Sync(context.Background(), stale))

	assert.Equal(t, int64(3), store.docs[1]["lock_version"])
	assert.True(t, stale.dirty)
	assert.Equal(t, []flagCall{{1, false}, {1, false}}, flags.calls)
	assert.Len(t, logs.FilterMessage("sync flag kept for newer version").All(), 1)
	assert.Zero(t, testutil.ToFloat64(m.SyncTotal.WithLabelValues("brand", metrics.OutcomeFlagError)))
}

func TestSyncPassesVersionToStore(t *testing.T) {
	store := &mockStore{}
	store.On("Upsert", mock.Anything, "brand", int64(8), int64(4), mock.Anything).Return(nil).Once()
	s, _, _ := newTestSync(t, store, &fakeFlags{})

	assert.True(t, s.Sync(context.Background(), &item{id: 8, version: 4}))
	store.AssertExpectations(t)
}

func TestSyncRecoversPanic(t *testing.T) {
	store := &mockStore{}
	store.On("Upsert", mock.Anything, "brand", int64(1), mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		panic("driver bug")
	})
	flags := &fakeFlags{}
	s, logs, _ := newTestSync(t, store, flags)

	it := &item{id: 1}
	assert.NotPanics(t, func() { s.Sync(context.Background(), it) })
	assert.True(t, it.dirty)
	entries := logs.FilterMessage("secondary store sync failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, ErrTypePanic, entries[0].ContextMap()["error_type"])
}

func TestSyncTimeoutIsBounded(t *testing.T) {
	store := &mockStore{}
	store.On("Upsert", mock.Anything, "brand", int64(5), mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		<-args.Get(0).(context.Context).Done()
	}).Return(context.DeadlineExceeded)
	flags := &fakeFlags{}
	s, logs, _ := newTestSync(t, store, flags, WithTimeout(20*time.Millisecond))

	start := time.Now()
	it := &item{id: 5}
	assert.False(t, s.Sync(context.Background(), it))
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, ErrTypeTimeout, logs.FilterMessage("secondary store sync failed").All()[0].ContextMap()["error_type"])
	assert.Equal(t, []flagCall{{5, true}}, flags.calls)
}

func TestSyncPersistsFlagAfterCallerCancel(t *testing.T) {
	store := &mockStore{}
	store.On("Upsert", mock.Anything, "brand", int64(4), mock.Anything, mock.Anything).Return(ErrUnavailable)
	flags := &fakeFlags{}
	s, _, _ := newTestSync(t, store, flags)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	it := &item{id: 4}
	assert.False(t, s.Sync(ctx, it))
	assert.Equal(t, []flagCall{{4, true}}, flags.calls)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, "", Classify(nil))
	assert.Equal(t, ErrTypeServerSelection, Classify(ErrUnavailable))
	assert.Equal(t, ErrTypeTimeout, Classify(context.DeadlineExceeded))
	assert.Equal(t, ErrTypeDriver, Classify(&DriverError{Op: "x", Err: errors.New("y")}))
	assert.Equal(t, ErrTypePanic, Classify(panicError{value: "p"}))
	assert.Equal(t, ErrTypeUnexpected, Classify(errors.New("other")))
}

type fakeSource struct {
	items []*item
	err   error
	limit int
}

func (f *fakeSource) ListPendingSync(_ context.Context, limit int) ([]*item, error) {
	f.limit = limit
	return f.items, f.err
}

func TestReconcilerSweep(t *testing.T) {
	store := &mockStore{}
	store.On("Upsert", mock.Anything, "brand", int64(1), mock.Anything, mock.Anything).Return(nil)
	store.On("Upsert", mock.Anything, "brand", int64(2), mock.Anything, mock.Anything).Return(ErrUnavailable)
	flags := &fakeFlags{}
	s, _, m := newTestSync(t, store, flags)

	src := &fakeSource{items: []*item{{id: 1, dirty: true}, {id: 2, dirty: true}}}
	r := NewReconciler[*item](src, s, 50, nil, m)
	rep, err := r.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 50, src.limit)
	assert.NotEmpty(t, rep.ID)
	assert.Equal(t, 2, rep.Pending)
	assert.Equal(t, 1, rep.Synced)
	assert.Equal(t, 1, rep.Failed)
	assert.False(t, src.items[0].dirty)
	assert.True(t, src.items[1].dirty)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SyncPending.WithLabelValues("brand")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReconcileSweeps.WithLabelValues("brand", "partial")))
}

func TestReconcilerSourceError(t *testing.T) {
	s, _, m := newTestSync(t, &mockStore{}, &fakeFlags{})
	r := NewReconciler[*item](&fakeSource{err: errors.New("query failed")}, s, 0, nil, m)
	_, err := r.Sweep(context.Background())
	assert.ErrorContains(t, err, "query failed")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReconcileSweeps.WithLabelValues("brand", "error")))
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("MIRROR_URL", "")
	t.Setenv("MIRROR_NAMESPACE", "")
	t.Setenv("MIRROR_DATABASE", "")
	t.Setenv("MIRROR_TIMEOUT", "500ms")
	t.Setenv("MIRROR_RECONCILE_INTERVAL", "bogus")
	cfg := ConfigFromEnv()
	assert.False(t, cfg.Enabled())
	assert.Equal(t, "pitchfork", cfg.Namespace)
	assert.Equal(t, "brand", cfg.Database)
	assert.Equal(t, 500*time.Millisecond, cfg.Timeout)
	assert.Equal(t, time.Minute, cfg.ReconcileInterval)
}
