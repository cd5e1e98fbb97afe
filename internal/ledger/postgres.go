package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists user records in a single table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the users table if it does not exist yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id             TEXT PRIMARY KEY,
			display_name   TEXT NOT NULL DEFAULT '',
			is_vip         BOOLEAN NOT NULL DEFAULT FALSE,
			usage_count    INTEGER NOT NULL DEFAULT 0,
			registered_at  TIMESTAMPTZ NOT NULL,
			last_active_at TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("create users table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*UserRecord, error) {
	rec := &UserRecord{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, display_name, is_vip, usage_count, registered_at, last_active_at
		FROM users WHERE id = $1`, id,
	).Scan(&rec.ID, &rec.DisplayName, &rec.IsVIP, &rec.UsageCount, &rec.RegisteredAt, &rec.LastActiveAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUnknownUser
	}
	if err != nil {
		return nil, fmt.Errorf("select user %s: %w", id, err)
	}
	return rec, nil
}

func (s *PostgresStore) Put(ctx context.Context, rec *UserRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, display_name, is_vip, usage_count, registered_at, last_active_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			display_name   = EXCLUDED.display_name,
			is_vip         = EXCLUDED.is_vip,
			usage_count    = EXCLUDED.usage_count,
			last_active_at = EXCLUDED.last_active_at`,
		rec.ID, rec.DisplayName, rec.IsVIP, rec.UsageCount, rec.RegisteredAt, rec.LastActiveAt)
	if err != nil {
		return fmt.Errorf("upsert user %s: %w", rec.ID, err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]UserRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, display_name, is_vip, usage_count, registered_at, last_active_at
		FROM users`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []UserRecord
	for rows.Next() {
		var rec UserRecord
		if err := rows.Scan(&rec.ID, &rec.DisplayName, &rec.IsVIP, &rec.UsageCount, &rec.RegisteredAt, &rec.LastActiveAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return out, nil
}
