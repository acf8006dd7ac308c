package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-brand-go/internal/brand/entity"
	"github.com/ovaphlow/pitchfork/service-brand-go/internal/query"
)

const listCursor = "brand_list_cur"

// List returns one page of brands matching c. Total is counted before paging,
// so a page past the end yields empty data with the real total.
func (r *Repo) List(ctx context.Context, c query.Criteria) (query.Result[*entity.Brand], error) {
	data := make([]*entity.Brand, 0, c.PageSizeOrDefault())
	total, err := r.Each(ctx, c, func(b *entity.Brand) error {
		data = append(data, b)
		return nil
	})
	if err != nil {
		return query.Result[*entity.Brand]{}, err
	}
	return query.ResultFor(data, total, c), nil
}

// Each streams the page of brands matching c to fn, reading through a
// server-side cursor in batches. It returns the filtered total.
// Returning an error from fn stops the iteration.
func (r *Repo) Each(ctx context.Context, c query.Criteria, fn func(*entity.Brand) error) (int64, error) {
	b := r.scoper.Apply(Filters.Apply(query.NewBuilder(), c.Filter()))

	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return 0, fmt.Errorf("list brands: begin: %w", err)
	}
	defer tx.Rollback()

	var total int64
	if err := tx.GetContext(ctx, &total, tx.Rebind("SELECT COUNT(*) FROM brands "+b.Where()), b.Args()...); err != nil {
		return 0, fmt.Errorf("list brands: count: %w", err)
	}
	if total == 0 || int64(c.Offset()) >= total {
		return total, tx.Commit()
	}

	declare := tx.Rebind(fmt.Sprintf(
		"DECLARE %s NO SCROLL CURSOR FOR SELECT %s FROM brands %s ORDER BY %s LIMIT ? OFFSET ?",
		listCursor, columns, b.Where(), Filters.OrderBy(c.Sort()),
	))
	args := append(b.Args(), c.PageSizeOrDefault(), c.Offset())
	if _, err := tx.ExecContext(ctx, declare, args...); err != nil {
		return 0, fmt.Errorf("list brands: declare cursor: %w", err)
	}

	fetch := fmt.Sprintf("FETCH FORWARD %d FROM %s", r.batchSize, listCursor)
	for {
		n, err := r.fetchBatch(ctx, tx, fetch, fn)
		if err != nil {
			return 0, err
		}
		if n < r.batchSize {
			break
		}
	}

	if _, err := tx.ExecContext(ctx, "CLOSE "+listCursor); err != nil {
		return 0, fmt.Errorf("list brands: close cursor: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("list brands: commit: %w", err)
	}
	return total, nil
}

func (r *Repo) fetchBatch(ctx context.Context, tx *sqlx.Tx, fetch string, fn func(*entity.Brand) error) (int, error) {
	rows, err := tx.QueryxContext(ctx, fetch)
	if err != nil {
		return 0, fmt.Errorf("list brands: fetch: %w", err)
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var b entity.Brand
		if err := rows.StructScan(&b); err != nil {
			return n, fmt.Errorf("list brands: scan: %w", err)
		}
		r.checkDetail(&b)
		n++
		if err := fn(&b); err != nil {
			return n, err
		}
	}
	if err := rows.Err(); err != nil {
		return n, fmt.Errorf("list brands: fetch: %w", err)
	}
	return n, nil
}
