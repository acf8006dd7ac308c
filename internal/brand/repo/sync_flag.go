package repo

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-brand-go/internal/brand/entity"
	"github.com/ovaphlow/pitchfork/service-brand-go/internal/mirror"
)

// SyncFlagStore reads and writes brands.sync_flag. Writes touch that single
// column and never bump lock_version, so they cannot race a CAS update.
type SyncFlagStore struct {
	db *sqlx.DB
}

func NewSyncFlagStore(db *sqlx.DB) *SyncFlagStore {
	return &SyncFlagStore{db: db}
}

// SetSyncFlag marks (dirty) or clears the pending-sync marker for id.
// Marking is unconditional. Clearing only applies while the row is still at
// version, so a stale mirror write cannot hide the debt of a newer one.
func (s *SyncFlagStore) SetSyncFlag(ctx context.Context, id, version int64, dirty bool) error {
	if dirty {
		q := s.db.Rebind("UPDATE brands SET sync_flag = ? WHERE id = ?")
		if _, err := s.db.ExecContext(ctx, q, entity.SyncFlagDirty, id); err != nil {
			return fmt.Errorf("set sync flag on brand %d: %w", id, err)
		}
		return nil
	}

	q := s.db.Rebind("UPDATE brands SET sync_flag = NULL WHERE id = ? AND lock_version = ?")
	res, err := s.db.ExecContext(ctx, q, id, version)
	if err != nil {
		return fmt.Errorf("clear sync flag on brand %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("clear sync flag on brand %d: rows affected: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: brand %d at lock_version %d", mirror.ErrStaleVersion, id, version)
	}
	return nil
}

// ListPendingSync returns up to limit brands whose last mirror write failed,
// deleted ones included so the mirror learns about the deletion.
func (s *SyncFlagStore) ListPendingSync(ctx context.Context, limit int) ([]*entity.Brand, error) {
	if limit <= 0 {
		limit = DefaultBatchSize
	}
	q := s.db.Rebind("SELECT " + columns + " FROM brands WHERE sync_flag IS NOT NULL ORDER BY id LIMIT ?")
	var out []*entity.Brand
	if err := s.db.SelectContext(ctx, &out, q, limit); err != nil {
		return nil, fmt.Errorf("list pending sync: %w", err)
	}
	return out, nil
}
