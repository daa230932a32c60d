// Package auth resolves caller credentials to an actor identity. The
// source verification gate refuses any action without an authenticated
// actor attached.
package auth

import (
	"context"
	"errors"
	"strings"
)

// Actor is an authenticated caller.
type Actor struct {
	UserID    string
	SessionID string
	Roles     []string
}

// ErrUnauthenticated is returned when no valid credentials are found.
var ErrUnauthenticated = errors.New("unauthenticated")

// Authenticator validates a presented credential and returns the actor it
// belongs to.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*Actor, error)
}

// keyPrefix marks warden API keys. Anything else is rejected before any
// store lookup.
const keyPrefix = "wk_"

// NormalizeToken strips a Bearer prefix and validates the key shape.
func NormalizeToken(raw string) (string, error) {
	token := strings.TrimPrefix(raw, "Bearer ")
	token = strings.TrimPrefix(token, "bearer ")
	if !strings.HasPrefix(token, keyPrefix) {
		return "", ErrUnauthenticated
	}
	return token, nil
}

// StaticAuthenticator is a development-only authenticator that accepts any
// wk_ key and derives a synthetic actor from it.
type StaticAuthenticator struct{}

// NewStaticAuthenticator creates a StaticAuthenticator.
func NewStaticAuthenticator() *StaticAuthenticator {
	return &StaticAuthenticator{}
}

func (a *StaticAuthenticator) Authenticate(_ context.Context, raw string) (*Actor, error) {
	token, err := NormalizeToken(raw)
	if err != nil {
		return nil, err
	}
	if len(token) < 8 {
		return nil, ErrUnauthenticated
	}
	return &Actor{UserID: "static-" + token[:8]}, nil
}
