package auth

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// CredentialStore abstracts credential lookups for testability.
type CredentialStore interface {
	LookupByPrefix(ctx context.Context, prefix string) (*credentialRow, error)
}

type credentialRow struct {
	UserID  string
	KeyHash string
	Roles   string // comma-separated
}

// sqlCredentialStore is the real implementation using *sql.DB.
//
// Schema contract:
//
//	CREATE TABLE api_keys (
//	    key_prefix TEXT PRIMARY KEY,
//	    key_hash   TEXT NOT NULL,
//	    user_id    TEXT NOT NULL,
//	    roles      TEXT NOT NULL DEFAULT ''
//	);
type sqlCredentialStore struct {
	db *sql.DB
}

func (s *sqlCredentialStore) LookupByPrefix(ctx context.Context, prefix string) (*credentialRow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, key_hash, roles
		FROM api_keys
		WHERE key_prefix = $1
	`, prefix)

	var r credentialRow
	if err := row.Scan(&r.UserID, &r.KeyHash, &r.Roles); err != nil {
		return nil, err
	}
	return &r, nil
}

// APIKeyAuthenticator validates wk_ keys against the api_keys table with a
// TTL cache in front.
type APIKeyAuthenticator struct {
	store  CredentialStore
	cache  *Cache
	logger *zap.Logger
}

// APIKeyConfig configures the APIKeyAuthenticator.
type APIKeyConfig struct {
	DB       *sql.DB
	CacheTTL time.Duration
	Logger   *zap.Logger
}

// NewAPIKeyAuthenticator creates a new APIKeyAuthenticator.
func NewAPIKeyAuthenticator(cfg APIKeyConfig) *APIKeyAuthenticator {
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = 30 * time.Second
	}
	return &APIKeyAuthenticator{
		store:  &sqlCredentialStore{db: cfg.DB},
		cache:  NewCache(ttl),
		logger: cfg.Logger,
	}
}

// NewAPIKeyAuthenticatorWithStore creates an authenticator with a custom
// store (for testing).
func NewAPIKeyAuthenticatorWithStore(store CredentialStore, cacheTTL time.Duration, logger *zap.Logger) *APIKeyAuthenticator {
	if cacheTTL == 0 {
		cacheTTL = 30 * time.Second
	}
	return &APIKeyAuthenticator{
		store:  store,
		cache:  NewCache(cacheTTL),
		logger: logger,
	}
}

func (a *APIKeyAuthenticator) Authenticate(ctx context.Context, raw string) (*Actor, error) {
	token, err := NormalizeToken(raw)
	if err != nil {
		return nil, err
	}

	cacheResult := a.cache.Get(token)
	if cacheResult.Hit {
		if cacheResult.NeedsRefresh {
			go a.refreshInBackground(token)
		}
		return cacheResult.Actor, nil
	}

	actor, err := a.authenticateFromStore(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("Authenticate: %w", err)
	}

	a.cache.Set(token, actor)
	return actor, nil
}

func (a *APIKeyAuthenticator) authenticateFromStore(ctx context.Context, token string) (*Actor, error) {
	if len(token) < 8 {
		return nil, ErrUnauthenticated
	}
	prefix := token[:8]

	row, err := a.store.LookupByPrefix(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("authenticateFromStore: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(row.KeyHash), []byte(token)); err != nil {
		return nil, ErrUnauthenticated
	}

	var roles []string
	if row.Roles != "" {
		roles = strings.Split(row.Roles, ",")
	}
	return &Actor{UserID: row.UserID, Roles: roles}, nil
}

func (a *APIKeyAuthenticator) refreshInBackground(token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	actor, err := a.authenticateFromStore(ctx, token)
	if err != nil {
		a.logger.Warn("background credential refresh failed", zap.Error(err))
		// Drop the entry: it holds the refreshing claim, so leaving it in
		// place would pin the stale actor and never retry. The next call
		// misses and does a synchronous lookup.
		a.cache.Delete(token)
		return
	}
	a.cache.Set(token, actor)
}
