package trust

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// PostgresStore persists trust profiles, one row per user, with an
// optimistic version column serializing concurrent updates.
//
// Schema contract:
//
//	CREATE TABLE user_trust (
//	    user_id  TEXT PRIMARY KEY,
//	    version  BIGINT NOT NULL,
//	    body     JSONB NOT NULL
//	);
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgresStore over an open connection pool.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, userID string) (*Profile, error) {
	var body []byte
	var version int64
	err := s.db.QueryRowContext(ctx, `
		SELECT version, body FROM user_trust WHERE user_id = $1
	`, userID).Scan(&version, &body)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	var p Profile
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	p.Version = version
	return &p, nil
}

// Upsert writes the profile if and only if the stored version still matches
// the one the caller read. A mismatch returns ErrVersionConflict.
func (s *PostgresStore) Upsert(ctx context.Context, p *Profile) error {
	next := p.Version + 1
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}

	if p.Version == 0 {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO user_trust (user_id, version, body)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id) DO NOTHING
		`, p.UserID, next, body)
		if err != nil {
			return fmt.Errorf("Upsert: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("Upsert: %w", err)
		}
		if n == 0 {
			return ErrVersionConflict
		}
		p.Version = next
		return nil
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE user_trust SET version = $3, body = $4
		WHERE user_id = $1 AND version = $2
	`, p.UserID, p.Version, next, body)
	if err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Upsert: %w", err)
	}
	if n == 0 {
		return ErrVersionConflict
	}
	p.Version = next
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*Profile, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT version, body FROM user_trust`)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Profile
	for rows.Next() {
		var body []byte
		var version int64
		if err := rows.Scan(&version, &body); err != nil {
			return nil, fmt.Errorf("List scan: %w", err)
		}
		var p Profile
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("List decode: %w", err)
		}
		p.Version = version
		out = append(out, &p)
	}
	return out, rows.Err()
}
