package repo

import (
	"context"
	"database/sql"
)

// EnsureTable creates the brands table and its indexes when missing.
// Deployments run the embedded migrations instead; this keeps ad-hoc
// databases (tests, local sandboxes) usable without them.
// Fields:
// - id bigserial PRIMARY KEY
// - name varchar(255), unique among rows whose status is not Deleted
// - status smallint (indexed)
// - detail_info jsonb
// - sync_flag smallint NULL (partial index on pending rows)
// - lock_version bigint
func (r *Repo) EnsureTable(ctx context.Context) error {
	var tblName sql.NullString
	if err := r.db.QueryRowContext(ctx, "SELECT to_regclass('public.brands')").Scan(&tblName); err != nil {
		return err
	}
	if !tblName.Valid {
		if _, err := r.db.ExecContext(ctx, CreateTableSQL); err != nil {
			return err
		}
	}

	for _, idx := range indexes {
		var idxName sql.NullString
		if err := r.db.QueryRowContext(ctx, "SELECT to_regclass($1)", "public."+idx.name).Scan(&idxName); err != nil {
			return err
		}
		if idxName.Valid {
			continue
		}
		if _, err := r.db.ExecContext(ctx, idx.ddl); err != nil {
			return err
		}
	}
	return nil
}

// CreateTableSQL matches migrations/000001_create_brands.up.sql.
const CreateTableSQL = `CREATE TABLE brands (
	id bigserial PRIMARY KEY,
	name varchar(255) NOT NULL,
	description text NOT NULL DEFAULT '',
	website varchar(512) NOT NULL DEFAULT '',
	sort_order integer NOT NULL DEFAULT 0,
	status smallint NOT NULL DEFAULT 0,
	detail_info jsonb NOT NULL DEFAULT '{}'::jsonb,
	sync_flag smallint,
	lock_version bigint NOT NULL DEFAULT 1
)`

var indexes = []struct{ name, ddl string }{
	{"uq_brands_name_live", `CREATE UNIQUE INDEX uq_brands_name_live ON brands (name) WHERE status <> 9`},
	{"idx_brands_status", `CREATE INDEX idx_brands_status ON brands (status)`},
	{"idx_brands_sync_pending", `CREATE INDEX idx_brands_sync_pending ON brands (id) WHERE sync_flag IS NOT NULL`},
}
