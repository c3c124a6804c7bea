package session

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/Joseda-hg/clutchdesk/internal/db"
)

const (
	keyAccessToken  = "access_token"
	keyRefreshToken = "refresh_token"
)

// KeyValue is the persistent storage a Store sits on; *db.Store satisfies it.
type KeyValue interface {
	GetValue(ctx context.Context, key string) (string, error)
	SetValue(ctx context.Context, key, value string) error
	DeleteValue(ctx context.Context, key string) error
}

// Store is a session persisted across runs.
type Store struct {
	kv  KeyValue
	now func() time.Time
}

func NewStore(kv KeyValue) *Store {
	return &Store{kv: kv, now: time.Now}
}

func (s *Store) Token(ctx context.Context) (string, error) {
	token, err := s.get(ctx, keyAccessToken)
	if err != nil {
		return "", err
	}
	return checkToken(token, s.now())
}

func (s *Store) RefreshToken(ctx context.Context) (string, error) {
	return s.get(ctx, keyRefreshToken)
}

func (s *Store) SetTokens(ctx context.Context, access, refresh string) error {
	if err := s.kv.SetValue(ctx, keyAccessToken, access); err != nil {
		return errors.Wrap(err, "store access token")
	}
	if refresh == "" {
		return nil
	}
	if err := s.kv.SetValue(ctx, keyRefreshToken, refresh); err != nil {
		return errors.Wrap(err, "store refresh token")
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	for _, key := range []string{keyAccessToken, keyRefreshToken} {
		if err := s.kv.DeleteValue(ctx, key); err != nil {
			return errors.Wrapf(err, "clear %s", key)
		}
	}
	return nil
}

func (s *Store) get(ctx context.Context, key string) (string, error) {
	value, err := s.kv.GetValue(ctx, key)
	if errors.Is(err, db.ErrNotFound) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", errors.Wrapf(err, "read %s", key)
	}
	if value == "" {
		return "", ErrNoToken
	}
	return value, nil
}
