// Package gateway is the HTTP boundary to the Clutch API. Every call carries
// the session's bearer token and returns either a decoded payload or *Error.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Joseda-hg/clutchdesk/internal/session"
)

const (
	defaultTimeout         = 30 * time.Second
	defaultRefreshCooldown = 5 * time.Second
	maxResponseBytes       = 8 << 20
	refreshPath            = "/api/v1/auth/refresh"
)

var errRefreshCooldown = errors.New("token refresh attempted too recently")

type Client struct {
	baseURL   *url.URL
	session   session.Accessor
	refresher session.Refresher
	http      *http.Client
	logger    *zap.Logger
	metrics   *Metrics
	userAgent string

	refreshGroup    singleflight.Group
	refreshCooldown time.Duration
	mu              sync.Mutex
	lastRefresh     time.Time
	now             func() time.Time
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.http = &http.Client{Timeout: timeout, Transport: c.http.Transport}
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithMetrics(metrics *Metrics) Option {
	return func(c *Client) { c.metrics = metrics }
}

// WithRefresher enables one refresh-and-retry when the API answers 401 or
// the stored token has expired.
func WithRefresher(refresher session.Refresher) Option {
	return func(c *Client) { c.refresher = refresher }
}

func WithRefreshCooldown(cooldown time.Duration) Option {
	return func(c *Client) { c.refreshCooldown = cooldown }
}

func WithUserAgent(userAgent string) Option {
	return func(c *Client) { c.userAgent = userAgent }
}

func New(baseURL string, accessor session.Accessor, opts ...Option) (*Client, error) {
	if accessor == nil {
		return nil, errors.New("session accessor is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, errors.Errorf("base url %q must be absolute", baseURL)
	}

	c := &Client{
		baseURL:         parsed,
		session:         accessor,
		http:            &http.Client{Timeout: defaultTimeout},
		logger:          zap.NewNop(),
		userAgent:       "clutchdesk",
		refreshCooldown: defaultRefreshCooldown,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Request describes one API call. Resource labels logs and metrics.
type Request struct {
	Method   string
	Path     string
	Query    url.Values
	Body     any
	Resource string
}

// Do performs req and decodes the envelope data into out. out may be nil when
// the response carries no payload.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	started := time.Now()
	err := c.do(ctx, req, out)
	c.metrics.observe(req.Method, req.Resource, started, err)
	return err
}

func (c *Client) do(ctx context.Context, req Request, out any) error {
	op := req.Method + " " + req.Path

	var payload []byte
	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return &Error{Kind: KindDecode, Op: op, Err: errors.Wrap(err, "encode request")}
		}
		payload = encoded
	}

	token, err := c.session.Token(ctx)
	if errors.Is(err, session.ErrExpired) && c.refresher != nil {
		token, err = c.refresh(ctx, "")
	}
	if err != nil {
		return &Error{Kind: KindAuth, Op: op, Err: err}
	}

	status, body, err := c.send(ctx, req, payload, token)
	if err != nil {
		return &Error{Kind: KindNetwork, Op: op, Err: err}
	}

	if status == http.StatusUnauthorized && c.refresher != nil {
		c.logger.Debug("access token rejected, refreshing", zap.String("op", op))
		fresh, err := c.refresh(ctx, token)
		if err != nil {
			return &Error{Kind: KindAuth, Op: op, Status: status, Err: err}
		}
		status, body, err = c.send(ctx, req, payload, fresh)
		if err != nil {
			return &Error{Kind: KindNetwork, Op: op, Err: err}
		}
	}

	return decodeResponse(op, status, body, out)
}

func (c *Client) send(ctx context.Context, req Request, payload []byte, token string) (int, []byte, error) {
	target := c.baseURL.JoinPath(req.Path)
	if len(req.Query) > 0 {
		target.RawQuery = req.Query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target.String(), body)
	if err != nil {
		return 0, nil, errors.Wrap(err, "build request")
	}

	requestID := uuid.NewString()
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", requestID)
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}

	started := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.logger.Warn("request failed",
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.String("request_id", requestID),
			zap.Error(err))
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, errors.Wrap(err, "read response")
	}

	c.logger.Debug("request completed",
		zap.String("method", req.Method),
		zap.String("path", req.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(started)),
		zap.String("request_id", requestID))
	return resp.StatusCode, data, nil
}

// refresh exchanges the refresh token for a new access token. Concurrent
// callers share one exchange; within the cooldown the stored token is reused
// when it differs from the one that was rejected.
func (c *Client) refresh(ctx context.Context, rejected string) (string, error) {
	result, err, _ := c.refreshGroup.Do("refresh", func() (any, error) {
		c.mu.Lock()
		if !c.lastRefresh.IsZero() && c.now().Sub(c.lastRefresh) < c.refreshCooldown {
			c.mu.Unlock()
			if current, err := c.session.Token(ctx); err == nil && current != rejected {
				return current, nil
			}
			return "", errRefreshCooldown
		}
		c.lastRefresh = c.now()
		c.mu.Unlock()

		return c.exchange(context.WithoutCancel(ctx))
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

func (c *Client) exchange(ctx context.Context) (string, error) {
	refreshToken, err := c.refresher.RefreshToken(ctx)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return "", errors.Wrap(err, "encode refresh request")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL.JoinPath(refreshPath).String(), bytes.NewReader(payload))
	if err != nil {
		return "", errors.Wrap(err, "build refresh request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", errors.Wrap(err, "refresh request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", errors.Wrap(err, "read refresh response")
	}

	var tokens refreshResponse
	if err := decodeResponse("POST "+refreshPath, resp.StatusCode, body, &tokens); err != nil {
		return "", err
	}
	if tokens.Token == "" {
		return "", errors.New("refresh response has no token")
	}
	if err := c.refresher.SetTokens(ctx, tokens.Token, tokens.RefreshToken); err != nil {
		return "", errors.Wrap(err, "store refreshed tokens")
	}

	c.logger.Info("access token refreshed")
	return tokens.Token, nil
}
