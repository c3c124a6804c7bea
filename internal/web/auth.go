package web

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Joseda-hg/clutchdesk/internal/db"
)

const refreshKeyPrefix = "refresh:"

var ErrInvalidToken = errors.New("invalid or expired token")

// KeyValue persists issued refresh tokens; *db.Store satisfies it.
type KeyValue interface {
	GetValue(ctx context.Context, key string) (string, error)
	SetValue(ctx context.Context, key, value string) error
	DeleteValue(ctx context.Context, key string) error
}

// TokenPair is the payload of a successful login or refresh.
type TokenPair struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// Auth mints HS256 access tokens and single-use refresh tokens.
type Auth struct {
	secret []byte
	ttl    time.Duration
	kv     KeyValue
	now    func() time.Time
}

func NewAuth(secret []byte, ttl time.Duration, kv KeyValue) *Auth {
	return &Auth{secret: secret, ttl: ttl, kv: kv, now: time.Now}
}

func (a *Auth) Issue(ctx context.Context) (TokenPair, error) {
	now := a.now()
	claims := jwt.RegisteredClaims{
		Subject:   "clutchdesk",
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return TokenPair{}, errors.Wrap(err, "sign access token")
	}

	refresh := uuid.NewString()
	if err := a.kv.SetValue(ctx, refreshKeyPrefix+refresh, claims.ID); err != nil {
		return TokenPair{}, errors.Wrap(err, "store refresh token")
	}
	return TokenPair{Token: access, RefreshToken: refresh}, nil
}

// Verify accepts access tokens signed by this server that have not expired.
func (a *Auth) Verify(token string) error {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	_, err := parser.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(*jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil {
		return errors.Wrap(ErrInvalidToken, err.Error())
	}
	return nil
}

// Refresh rotates a refresh token: the presented one is consumed and a new
// pair is issued.
func (a *Auth) Refresh(ctx context.Context, refresh string) (TokenPair, error) {
	if refresh == "" {
		return TokenPair{}, ErrInvalidToken
	}
	key := refreshKeyPrefix + refresh
	if _, err := a.kv.GetValue(ctx, key); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return TokenPair{}, ErrInvalidToken
		}
		return TokenPair{}, err
	}
	if err := a.kv.DeleteValue(ctx, key); err != nil {
		return TokenPair{}, errors.Wrap(err, "revoke refresh token")
	}
	return a.Issue(ctx)
}
