package session

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/Joseda-hg/clutchdesk/internal/db"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "admin",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func TestMemoryTokenLifecycle(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory("", "")

	_, err := mem.Token(ctx)
	require.ErrorIs(t, err, ErrNoToken)

	require.NoError(t, mem.SetTokens(ctx, "opaque-token", "refresh-1"))
	token, err := mem.Token(ctx)
	require.NoError(t, err)
	require.Equal(t, "opaque-token", token)

	refresh, err := mem.RefreshToken(ctx)
	require.NoError(t, err)
	require.Equal(t, "refresh-1", refresh)

	require.NoError(t, mem.SetTokens(ctx, "opaque-2", ""))
	refresh, err = mem.RefreshToken(ctx)
	require.NoError(t, err)
	require.Equal(t, "refresh-1", refresh, "empty refresh keeps the previous one")

	require.NoError(t, mem.Clear(ctx))
	_, err = mem.RefreshToken(ctx)
	require.ErrorIs(t, err, ErrNoToken)
}

func TestExpiredJWTIsRejected(t *testing.T) {
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	mem := NewMemory(signedToken(t, now.Add(-time.Minute)), "")
	mem.now = func() time.Time { return now }

	_, err := mem.Token(context.Background())
	require.ErrorIs(t, err, ErrExpired)

	fresh := signedToken(t, now.Add(time.Hour))
	require.NoError(t, mem.SetTokens(context.Background(), fresh, ""))
	token, err := mem.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, fresh, token)
}

func TestStorePersistsTokens(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	store := NewStore(db.NewStore(conn))
	_, err = store.Token(ctx)
	require.ErrorIs(t, err, ErrNoToken)

	require.NoError(t, store.SetTokens(ctx, "access-1", "refresh-1"))

	reopened := NewStore(db.NewStore(conn))
	token, err := reopened.Token(ctx)
	require.NoError(t, err)
	require.Equal(t, "access-1", token)
	refresh, err := reopened.RefreshToken(ctx)
	require.NoError(t, err)
	require.Equal(t, "refresh-1", refresh)

	require.NoError(t, reopened.Clear(ctx))
	_, err = store.Token(ctx)
	require.ErrorIs(t, err, ErrNoToken)
}
