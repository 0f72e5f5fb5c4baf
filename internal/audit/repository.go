package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline/ledgerline/internal/shared"
)

// Repository reads the recorded audit trail.
type Repository interface {
	TimelineWindow(ctx context.Context, f TimelineFilters, offset, limit int) ([]TimelineRow, error)
	TimelineAll(ctx context.Context, f TimelineFilters) ([]TimelineRow, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository returns a PostgreSQL-backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) TimelineWindow(ctx context.Context, f TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	query, args := buildTimelineQuery(f)
	query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, shared.StorageErr("audit: timeline window", err)
	}
	defer rows.Close()
	return collectTimelineRows(rows)
}

func (r *repository) TimelineAll(ctx context.Context, f TimelineFilters) ([]TimelineRow, error) {
	query, args := buildTimelineQuery(f)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, shared.StorageErr("audit: timeline all", err)
	}
	defer rows.Close()
	return collectTimelineRows(rows)
}

func buildTimelineQuery(f TimelineFilters) (string, []any) {
	query := `SELECT occurred_at, actor_id, action, entity, entity_id, COALESCE(meta::text, '') FROM audit_logs WHERE 1=1`
	var args []any
	if !f.From.IsZero() {
		args = append(args, f.From)
		query += fmt.Sprintf(` AND occurred_at >= $%d`, len(args))
	}
	if !f.To.IsZero() {
		args = append(args, f.To)
		query += fmt.Sprintf(` AND occurred_at <= $%d`, len(args))
	}
	if f.Actor != "" {
		args = append(args, f.Actor)
		query += fmt.Sprintf(` AND actor_id = $%d`, len(args))
	}
	if f.Entity != "" {
		args = append(args, f.Entity)
		query += fmt.Sprintf(` AND entity = $%d`, len(args))
	}
	if f.Action != "" {
		args = append(args, f.Action)
		query += fmt.Sprintf(` AND action = $%d`, len(args))
	}
	query += ` ORDER BY occurred_at DESC, id DESC`
	return query, args
}

func collectTimelineRows(rows pgx.Rows) ([]TimelineRow, error) {
	var out []TimelineRow
	for rows.Next() {
		var row TimelineRow
		if err := rows.Scan(&row.At, &row.Actor, &row.Action, &row.Entity, &row.EntityID, &row.Meta); err != nil {
			return nil, shared.StorageErr("audit: scan", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.StorageErr("audit: iterate", err)
	}
	return out, nil
}
