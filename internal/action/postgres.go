package action

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// PostgresStore persists actions in the actions table.
//
// Schema contract:
//
//	CREATE TABLE actions (
//	    id            TEXT PRIMARY KEY,
//	    user_id       TEXT NOT NULL,
//	    status        TEXT NOT NULL,
//	    environment   TEXT NOT NULL,
//	    created_at    TIMESTAMPTZ NOT NULL,
//	    approved_at   TIMESTAMPTZ,
//	    executed_at   TIMESTAMPTZ,
//	    completed_at  TIMESTAMPTZ,
//	    body          JSONB NOT NULL
//	);
//	CREATE INDEX actions_user_idx ON actions (user_id, created_at DESC);
//
// The body column carries the full JSON-serialized action; the extracted
// columns exist for indexed lookups only, so the JSON form stays the single
// source of truth.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgresStore over an open connection pool.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, a *Action) error {
	body, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO actions (id, user_id, status, environment, created_at, approved_at, executed_at, completed_at, body)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, a.ID, a.UserID, string(a.Status), string(a.Environment),
		a.CreatedAt, nullTime(a.ApprovedAt), nullTime(a.ExecutedAt), nullTime(a.CompletedAt), body)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Action, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx, `SELECT body FROM actions WHERE id = $1`, id).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	var a Action
	if err := json.Unmarshal(body, &a); err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return &a, nil
}

func (s *PostgresStore) Update(ctx context.Context, a *Action) error {
	body, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE actions
		SET status = $2, approved_at = $3, executed_at = $4, completed_at = $5, body = $6
		WHERE id = $1
	`, a.ID, string(a.Status), nullTime(a.ApprovedAt), nullTime(a.ExecutedAt), nullTime(a.CompletedAt), body)
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Update: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string) ([]*Action, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT body FROM actions WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("ListByUser: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Action
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("ListByUser scan: %w", err)
		}
		var a Action
		if err := json.Unmarshal(body, &a); err != nil {
			return nil, fmt.Errorf("ListByUser decode: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
