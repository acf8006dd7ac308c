package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

func TestStampCreate(t *testing.T) {
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	svc := NewService(nil).WithClock(fixedClock(ts))

	var cl ChangeLog
	got := svc.Stamp(&cl, ActionCreate, Actor{ID: "u-1"})

	assert.Equal(t, ts, got)
	require.NotNil(t, cl.CreatedAt)
	assert.Equal(t, ts, *cl.CreatedAt)
	assert.Equal(t, "u-1", cl.CreatedBy)
	assert.Equal(t, "u-1", cl.UpdatedBy)
	assert.Nil(t, cl.DeletedAt)
}

func TestStampDeleteThenRestore(t *testing.T) {
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	svc := NewService(nil).WithClock(fixedClock(ts))

	var cl ChangeLog
	svc.Stamp(&cl, ActionDelete, Actor{ID: "u-2"})
	require.NotNil(t, cl.DeletedAt)
	assert.Equal(t, "u-2", cl.DeletedBy)

	svc.Stamp(&cl, ActionRestore, Actor{ID: "u-3"})
	assert.Nil(t, cl.DeletedAt)
	assert.Empty(t, cl.DeletedBy)
	assert.Equal(t, "u-3", cl.UpdatedBy)
}

func TestEmptyActorFallsBackToSystem(t *testing.T) {
	svc := NewService(nil)
	var cl ChangeLog
	svc.Stamp(&cl, ActionUpdate, Actor{})
	assert.Equal(t, System.ID, cl.UpdatedBy)
}

func TestRecordLogsEntry(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	svc := NewService(zap.New(core).Sugar())

	svc.Record("brands", 7, ActionUpdate, Actor{ID: "u-1"}, 3)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "audit", entry.Message)
	fields := entry.ContextMap()
	assert.Equal(t, "brands", fields["resource"])
	assert.Equal(t, int64(7), fields["id"])
	assert.Equal(t, "u-1", fields["actor"])
	assert.Equal(t, int64(3), fields["lock_version"])
}
