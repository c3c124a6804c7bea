package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Joseda-hg/clutchdesk/internal/session"
)

type item struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	client, err := New(server.URL, session.NewMemory("token-1", ""), opts...)
	require.NoError(t, err)
	return client
}

func writeBody(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestListSendsHeadersAndDecodesEnvelope(t *testing.T) {
	var seen *http.Request
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen = r.Clone(context.Background())
		writeBody(w, http.StatusOK, `{"success":true,"data":[{"id":"1","status":"active"},{"id":"2","status":"inactive"}]}`)
	})

	items, err := NewResource[item](client, "/api/v1/hr/employees").List(context.Background(), url.Values{"status": {"active"}})
	require.NoError(t, err)
	require.Equal(t, []item{{ID: "1", Status: "active"}, {ID: "2", Status: "inactive"}}, items)

	require.Equal(t, "Bearer token-1", seen.Header.Get("Authorization"))
	require.Equal(t, "application/json", seen.Header.Get("Content-Type"))
	require.NotEmpty(t, seen.Header.Get("X-Request-ID"))
	require.Equal(t, "/api/v1/hr/employees", seen.URL.Path)
	require.Equal(t, "active", seen.URL.Query().Get("status"))
}

func TestEmptyListIsNotNil(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, http.StatusOK, `{"success":true,"data":[]}`)
	})

	items, err := NewResource[item](client, "/api/v1/items").List(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, items)
	require.Empty(t, items)
}

func TestListPageDecodesPagination(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		writeBody(w, http.StatusOK, `{"success":true,"data":[{"id":"2","status":"active"}],"pagination":{"page":2,"limit":1,"total":3,"pages":3}}`)
	})
	resource := NewResource[item](client, "/api/v1/items")

	page, err := resource.ListPage(context.Background(), url.Values{"page": {"2"}, "limit": {"1"}})
	require.NoError(t, err)
	require.Equal(t, Page[item]{
		Items:      []item{{ID: "2", Status: "active"}},
		Pagination: Pagination{Page: 2, Limit: 1, Total: 3, Pages: 3},
	}, page)

	items, err := resource.List(context.Background(), url.Values{"page": {"2"}, "limit": {"1"}})
	require.NoError(t, err)
	require.Equal(t, []item{{ID: "2", Status: "active"}}, items)
}

func TestListPageWithoutPaginationIsDecodeFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, http.StatusOK, `{"success":true,"data":[]}`)
	})

	_, err := NewResource[item](client, "/api/v1/items").ListPage(context.Background(), url.Values{"page": {"1"}})
	require.Equal(t, KindDecode, KindOf(err))
}

func TestGetEscapesIDAndDecodesRecord(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/items/a%2Fb", r.URL.EscapedPath())
		writeBody(w, http.StatusOK, `{"success":true,"data":{"id":"a/b","status":"active"}}`)
	})

	got, err := NewResource[item](client, "/api/v1/items").Get(context.Background(), "a/b")
	require.NoError(t, err)
	require.Equal(t, item{ID: "a/b", Status: "active"}, got)
}

func TestFailureKinds(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		kind    Kind
		message string
	}{
		{name: "server error with envelope", status: 500, body: `{"success":false,"message":"database down"}`, kind: KindStatus, message: "server returned 500: database down"},
		{name: "server error plain text", status: 502, body: `bad gateway`, kind: KindStatus, message: "server returned 502: Bad Gateway"},
		{name: "business rejection", status: 200, body: `{"success":false,"message":"Email already exists"}`, kind: KindRejected, message: "Email already exists"},
		{name: "conflict", status: 409, body: `{"success":false,"message":"duplicate email"}`, kind: KindRejected, message: "duplicate email"},
		{name: "unauthorized without refresher", status: 401, body: `{"success":false,"message":"expired"}`, kind: KindAuth},
		{name: "legacy items shape", status: 200, body: `{"success":true,"data":{"items":[]}}`, kind: KindDecode},
		{name: "raw array", status: 200, body: `[{"id":"1"}]`, kind: KindDecode},
		{name: "unknown envelope field", status: 200, body: `{"success":true,"data":[],"items":[]}`, kind: KindDecode},
		{name: "missing success", status: 200, body: `{"data":[]}`, kind: KindDecode},
		{name: "null data", status: 200, body: `{"success":true,"data":null}`, kind: KindDecode},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeBody(w, tc.status, tc.body)
			})

			_, err := NewResource[item](client, "/api/v1/items").List(context.Background(), nil)
			require.Error(t, err)
			require.Equal(t, tc.kind, KindOf(err), "error: %v", err)
			if tc.message != "" {
				require.Equal(t, tc.message, err.Error())
			}
		})
	}
}

func TestNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	client, err := New(server.URL, session.NewMemory("token", ""))
	require.NoError(t, err)

	_, err = NewResource[item](client, "/api/v1/items").Create(context.Background(), item{ID: "x"})
	require.Equal(t, KindNetwork, KindOf(err))
}

func TestMissingTokenIsAuthFailureWithoutRequest(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	t.Cleanup(server.Close)

	client, err := New(server.URL, session.NewMemory("", ""))
	require.NoError(t, err)

	err = NewResource[item](client, "/api/v1/items").Delete(context.Background(), "1")
	require.Equal(t, KindAuth, KindOf(err))
	require.ErrorIs(t, err, session.ErrNoToken)
	require.Zero(t, calls.Load())
}

func TestUpdateSendsMergePatch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/api/v1/items/a%2Fb", r.URL.EscapedPath())
		var patch map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&patch))
		assert.Equal(t, map[string]any{"status": "inactive"}, patch)
		writeBody(w, http.StatusOK, `{"success":true,"data":{"id":"a/b","status":"inactive"}}`)
	})

	updated, err := NewResource[item](client, "/api/v1/items").Update(context.Background(), "a/b", map[string]any{"status": "inactive"})
	require.NoError(t, err)
	require.Equal(t, item{ID: "a/b", Status: "inactive"}, updated)
}

func TestUnauthorizedRefreshesOnceAndRetries(t *testing.T) {
	var refreshes atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshes.Add(1)
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "refresh-1", body["refreshToken"])
		writeBody(w, http.StatusOK, `{"success":true,"data":{"token":"token-2","refreshToken":"refresh-2"}}`)
	})
	mux.HandleFunc("/api/v1/items", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token-2" {
			writeBody(w, http.StatusUnauthorized, `{"success":false,"message":"expired"}`)
			return
		}
		writeBody(w, http.StatusOK, `{"success":true,"data":[{"id":"1"}]}`)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	sess := session.NewMemory("token-1", "refresh-1")
	client, err := New(server.URL, sess, WithRefresher(sess), WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	resource := NewResource[item](client, "/api/v1/items")

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			items, err := resource.List(context.Background(), nil)
			assert.NoError(t, err)
			assert.Len(t, items, 1)
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), refreshes.Load())
	token, err := sess.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "token-2", token)
	refresh, err := sess.RefreshToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "refresh-2", refresh)
}

func TestRefreshFailureIsAuthError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, http.StatusUnauthorized, `{"success":false,"message":"refresh token revoked"}`)
	})
	mux.HandleFunc("/api/v1/items", func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, http.StatusUnauthorized, `{"success":false,"message":"expired"}`)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	sess := session.NewMemory("token-1", "refresh-1")
	client, err := New(server.URL, sess, WithRefresher(sess))
	require.NoError(t, err)

	_, err = NewResource[item](client, "/api/v1/items").List(context.Background(), nil)
	require.Equal(t, KindAuth, KindOf(err))
}

func TestMetricsCountOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	var fail atomic.Bool
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			writeBody(w, http.StatusInternalServerError, `oops`)
			return
		}
		writeBody(w, http.StatusOK, `{"success":true,"data":[]}`)
	}, WithMetrics(metrics))

	resource := NewResource[item](client, "/api/v1/hr/employees")
	_, err := resource.List(context.Background(), nil)
	require.NoError(t, err)
	fail.Store(true)
	_, err = resource.List(context.Background(), nil)
	require.Error(t, err)

	require.Equal(t, 1.0, testutil.ToFloat64(metrics.requests.WithLabelValues("GET", "employees", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.requests.WithLabelValues("GET", "employees", "status")))
}

func TestNewRejectsRelativeURL(t *testing.T) {
	_, err := New("/api", session.NewMemory("t", ""))
	require.Error(t, err)

	_, err = New("http://localhost:8080", nil)
	require.Error(t, err)
}
