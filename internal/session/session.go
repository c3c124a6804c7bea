// Package session holds the bearer tokens used by the gateway. Tokens are
// read on every call, never cached by controllers.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoToken = errors.New("not signed in")
	ErrExpired = errors.New("session expired")
)

// Accessor yields the current access token.
type Accessor interface {
	Token(ctx context.Context) (string, error)
}

// Refresher exposes the refresh token and accepts a renewed pair.
type Refresher interface {
	RefreshToken(ctx context.Context) (string, error)
	SetTokens(ctx context.Context, access, refresh string) error
}

// Memory is a process-local session.
type Memory struct {
	mu      sync.RWMutex
	access  string
	refresh string
	now     func() time.Time
}

func NewMemory(access, refresh string) *Memory {
	return &Memory{access: access, refresh: refresh, now: time.Now}
}

func (m *Memory) Token(context.Context) (string, error) {
	m.mu.RLock()
	token := m.access
	m.mu.RUnlock()
	return checkToken(token, m.now())
}

func (m *Memory) RefreshToken(context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.refresh == "" {
		return "", ErrNoToken
	}
	return m.refresh, nil
}

func (m *Memory) SetTokens(_ context.Context, access, refresh string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.access = access
	if refresh != "" {
		m.refresh = refresh
	}
	return nil
}

func (m *Memory) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.access = ""
	m.refresh = ""
	return nil
}

// checkToken rejects empty tokens and JWTs whose exp claim has passed.
// Opaque tokens are returned unchanged.
func checkToken(token string, now time.Time) (string, error) {
	if token == "" {
		return "", ErrNoToken
	}
	exp, ok := expiry(token)
	if ok && !now.Before(exp) {
		return "", ErrExpired
	}
	return token, nil
}

func expiry(token string) (time.Time, bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
