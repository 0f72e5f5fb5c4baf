package auth

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline/ledgerline/internal/shared"
)

// PGSessionStore implements SessionStore using PostgreSQL.
type PGSessionStore struct {
	pool *pgxpool.Pool
}

// NewSessionStore constructs a PostgreSQL session store.
func NewSessionStore(pool *pgxpool.Pool) *PGSessionStore {
	return &PGSessionStore{pool: pool}
}

// CreateSession persists a new login session in the database for auditing.
func (r *PGSessionStore) CreateSession(ctx context.Context, id, customerID string, expiresAt time.Time, ip, ua string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO login_sessions (id, customer_id, created_at, expires_at, ip, ua)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''))`,
		id, customerID, time.Now().UTC(), expiresAt.UTC(), ip, ua,
	)
	if err != nil {
		return shared.StorageErr("auth: create session", err)
	}
	return nil
}

// DeleteSession removes a session record from the database.
func (r *PGSessionStore) DeleteSession(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM login_sessions WHERE id = $1`, id)
	if err != nil {
		return shared.StorageErr("auth: delete session", err)
	}
	return nil
}

var _ SessionStore = (*PGSessionStore)(nil)
