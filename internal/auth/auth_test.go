package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func TestNormalizeToken(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"plain key", "wk_abc123def", "wk_abc123def", false},
		{"bearer prefix", "Bearer wk_abc123def", "wk_abc123def", false},
		{"lowercase bearer", "bearer wk_abc123def", "wk_abc123def", false},
		{"missing key prefix", "abc123def", "", true},
		{"empty", "", "", true},
		{"bearer without key", "Bearer token123", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeToken(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrUnauthenticated) {
					t.Errorf("err = %v, want ErrUnauthenticated", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStaticAuthenticator(t *testing.T) {
	a := NewStaticAuthenticator()
	ctx := context.Background()

	actor, err := a.Authenticate(ctx, "wk_devkey123")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if actor.UserID != "static-wk_devke" {
		t.Errorf("UserID = %q, want derived from key prefix", actor.UserID)
	}

	if _, err := a.Authenticate(ctx, "wk_x"); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("short key err = %v, want ErrUnauthenticated", err)
	}
	if _, err := a.Authenticate(ctx, "sk_wrongprefix"); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("wrong prefix err = %v, want ErrUnauthenticated", err)
	}
}

func TestCacheHitAndMiss(t *testing.T) {
	c := NewCache(time.Minute)

	if res := c.Get("wk_missing1"); res.Hit {
		t.Error("empty cache must miss")
	}

	c.Set("wk_token123", &Actor{UserID: "u1"})
	res := c.Get("wk_token123")
	if !res.Hit || res.Actor.UserID != "u1" {
		t.Errorf("got %+v, want hit for u1", res)
	}
	if res.NeedsRefresh {
		t.Error("fresh entry must not need refresh")
	}

	c.Delete("wk_token123")
	if res := c.Get("wk_token123"); res.Hit {
		t.Error("deleted entry must miss")
	}
}

func TestCacheStaleRefreshClaimedOnce(t *testing.T) {
	c := NewCache(-time.Second) // entries are born expired

	c.Set("wk_token123", &Actor{UserID: "u1"})

	first := c.Get("wk_token123")
	if !first.Hit || !first.NeedsRefresh {
		t.Errorf("first stale read = %+v, want hit with refresh claim", first)
	}
	second := c.Get("wk_token123")
	if !second.Hit || second.NeedsRefresh {
		t.Errorf("second stale read = %+v, want hit without refresh claim", second)
	}
	if second.Actor.UserID != "u1" {
		t.Errorf("stale read must still serve the cached actor, got %+v", second.Actor)
	}
}

type fakeCredentialStore struct {
	rows    map[string]*credentialRow
	lookups int
}

func (s *fakeCredentialStore) LookupByPrefix(_ context.Context, prefix string) (*credentialRow, error) {
	s.lookups++
	row, ok := s.rows[prefix]
	if !ok {
		return nil, ErrUnauthenticated
	}
	return row, nil
}

func TestFailedRefreshEvictsStaleEntry(t *testing.T) {
	const key = "wk_secretvalue42"
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	store := &fakeCredentialStore{rows: map[string]*credentialRow{
		key[:8]: {UserID: "u1", KeyHash: string(hash)},
	}}
	// Negative TTL: every entry is stale the moment it is cached.
	a := NewAPIKeyAuthenticatorWithStore(store, -time.Second, zap.NewNop())
	ctx := context.Background()

	if _, err := a.Authenticate(ctx, key); err != nil {
		t.Fatalf("prime: %v", err)
	}

	// Key revoked upstream: the refresh fails and must evict the entry.
	// Leaving it would pin the refreshing claim and serve the revoked
	// actor forever.
	delete(store.rows, key[:8])
	a.refreshInBackground(key)

	if res := a.cache.Get(key); res.Hit {
		t.Fatal("failed refresh must evict the cache entry")
	}
	if _, err := a.Authenticate(ctx, key); err == nil {
		t.Error("revoked key must no longer authenticate after eviction")
	}
}

func TestAPIKeyAuthenticator(t *testing.T) {
	const key = "wk_secretvalue42"
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	store := &fakeCredentialStore{rows: map[string]*credentialRow{
		key[:8]: {UserID: "u1", KeyHash: string(hash), Roles: "admin,operator"},
	}}
	a := NewAPIKeyAuthenticatorWithStore(store, time.Minute, zap.NewNop())
	ctx := context.Background()

	actor, err := a.Authenticate(ctx, key)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if actor.UserID != "u1" {
		t.Errorf("UserID = %q, want u1", actor.UserID)
	}
	if len(actor.Roles) != 2 || actor.Roles[0] != "admin" {
		t.Errorf("Roles = %v, want [admin operator]", actor.Roles)
	}

	// Second call is served from cache.
	if _, err := a.Authenticate(ctx, key); err != nil {
		t.Fatalf("cached Authenticate: %v", err)
	}
	if store.lookups != 1 {
		t.Errorf("store lookups = %d, want 1 (second call cached)", store.lookups)
	}
}

func TestAPIKeyAuthenticatorRejects(t *testing.T) {
	const key = "wk_secretvalue42"
	hash, _ := bcrypt.GenerateFromPassword([]byte(key), bcrypt.MinCost)
	store := &fakeCredentialStore{rows: map[string]*credentialRow{
		key[:8]: {UserID: "u1", KeyHash: string(hash)},
	}}
	a := NewAPIKeyAuthenticatorWithStore(store, time.Minute, zap.NewNop())
	ctx := context.Background()

	// Same prefix, wrong secret: bcrypt must reject.
	if _, err := a.Authenticate(ctx, "wk_secrewrongone"); err == nil {
		t.Error("wrong secret with matching prefix must be rejected")
	}
	if _, err := a.Authenticate(ctx, "wk_unknownprefix9"); err == nil {
		t.Error("unknown prefix must be rejected")
	}
	if _, err := a.Authenticate(ctx, "wk_tiny"); err == nil {
		t.Error("key shorter than the prefix length must be rejected")
	}
}
