package entity

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-brand-go/internal/audit"
)

func TestStatusTransitions(t *testing.T) {
	allowed := map[Status][]Status{
		StatusDraft:       {StatusInactive, StatusActive, StatusDeleted, StatusMaintenance},
		StatusActive:      {StatusCompleted, StatusApproved, StatusRejected},
		StatusInactive:    {StatusActive, StatusDraft, StatusDeleted},
		StatusMaintenance: {StatusInactive, StatusActive, StatusDraft, StatusDeleted},
		StatusApproved:    {StatusCompleted, StatusRejected},
	}
	all := []Status{StatusDraft, StatusInactive, StatusActive, StatusCompleted,
		StatusApproved, StatusRejected, StatusMaintenance, StatusDeleted}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus(" Active ")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, s)

	_, err = ParseStatus("archived")
	assert.Error(t, err)
	assert.Equal(t, "status(42)", Status(42).String())
	assert.False(t, Status(42).Valid())
}

func TestDetailInfoScanMalformedFallsBackToEmpty(t *testing.T) {
	var d DetailInfo
	require.NoError(t, d.Scan([]byte(`{"change_log": `)))
	assert.True(t, d.Malformed())
	assert.Nil(t, d.ChangeLog.CreatedAt)
	assert.Equal(t, map[string]any{"change_log": map[string]any{}}, d.Map())

	require.NoError(t, d.Scan(42))
	assert.True(t, d.Malformed())

	require.NoError(t, d.Scan(nil))
	assert.False(t, d.Malformed())
}

func TestDetailInfoRoundTripKeepsExtraKeys(t *testing.T) {
	var d DetailInfo
	require.NoError(t, d.Scan(`{"change_log":{"created_by":"u-1","created_at":"2024-01-02T03:04:05Z"},"source":"import"}`))
	assert.False(t, d.Malformed())
	assert.Equal(t, "u-1", d.ChangeLog.CreatedBy)
	require.NotNil(t, d.ChangeLog.CreatedAt)
	assert.Equal(t, 2024, d.ChangeLog.CreatedAt.Year())
	assert.Equal(t, "import", d.Extra["source"])

	v, err := d.Value()
	require.NoError(t, err)
	s, ok := v.(string)
	require.True(t, ok)

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &out))
	assert.Equal(t, "import", out["source"])
	cl, ok := out["change_log"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "u-1", cl["created_by"])
}

func TestCloneIsDeep(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBrand("Acme", "", "", 0)
	b.DetailInfo.ChangeLog = audit.ChangeLog{CreatedAt: &ts, CreatedBy: "u-1"}
	b.SetSyncDirty(true)

	c := b.Clone()
	c.Name = "Other"
	*c.SyncFlag = 5
	c.DetailInfo.ChangeLog.CreatedBy = "u-2"

	assert.Equal(t, "Acme", b.Name)
	assert.Equal(t, SyncFlagDirty, *b.SyncFlag)
	assert.Equal(t, "u-1", b.DetailInfo.ChangeLog.CreatedBy)
}

func TestMirrorDocument(t *testing.T) {
	b := NewBrand("Acme", "desc", "https://acme.test", 3)
	b.ID = 1
	b.LockVersion = 1

	doc := b.MirrorDocument()
	assert.Equal(t, int64(1), doc["id"])
	assert.Equal(t, "Acme", doc["name"])
	assert.Equal(t, int64(1), doc["lock_version"])
	assert.Equal(t, int16(StatusDraft), doc["status"])
	assert.Contains(t, doc["detail_info"], "change_log")
}

func TestSyncDirty(t *testing.T) {
	b := NewBrand("Acme", "", "", 0)
	assert.False(t, b.SyncDirty())
	b.SetSyncDirty(true)
	assert.True(t, b.SyncDirty())
	b.SetSyncDirty(false)
	assert.Nil(t, b.SyncFlag)
}
