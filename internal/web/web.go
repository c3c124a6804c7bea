// Package web is a development backend that serves the Clutch API envelope
// from the local sqlite store, so the console can run without the real API.
package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Joseda-hg/clutchdesk/internal/db"
)

type Server struct {
	store       *db.Store
	auth        *Auth
	logger      *zap.Logger
	gatherer    prometheus.Gatherer
	requests    *prometheus.CounterVec
	collections []collection
}

type Options struct {
	Logger   *zap.Logger
	Registry *prometheus.Registry
}

func NewServer(store *db.Store, auth *Auth, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	registry := opts.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	return &Server{
		store:    store,
		auth:     auth,
		logger:   logger,
		gatherer: registry,
		requests: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Namespace: "clutchdesk",
			Name:      "backend_requests_total",
			Help:      "Development backend requests by route and status code.",
		}, []string{"route", "method", "code"}),
		collections: defaultCollections(),
	}
}

func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.Use(s.observe)
	router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/auth/refresh", s.refreshHandler).Methods(http.MethodPost)

	api := router.NewRoute().Subrouter()
	api.Use(s.requireBearer)
	for _, c := range s.collections {
		s.register(api, c)
	}

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusNotFound, envelope{Message: "route not found"})
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusMethodNotAllowed, envelope{Message: "method not allowed"})
	})
	return router
}

func (s *Server) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			s.fail(w, r, &apiError{status: http.StatusUnauthorized, message: "missing bearer token"})
			return
		}
		if err := s.auth.Verify(token); err != nil {
			s.fail(w, r, &apiError{status: http.StatusUnauthorized, message: ErrInvalidToken.Error(), err: err})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) refreshHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.fail(w, r, badRequest(err))
		return
	}
	pair, err := s.auth.Refresh(r.Context(), req.RefreshToken)
	if errors.Is(err, ErrInvalidToken) {
		s.fail(w, r, &apiError{status: http.StatusUnauthorized, message: "refresh token is invalid", err: err})
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, pair)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if current := mux.CurrentRoute(r); current != nil {
			if template, err := current.GetPathTemplate(); err == nil {
				route = template
			}
		}
		s.requests.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(started)),
			zap.String("request_id", r.Header.Get("X-Request-ID")))
	})
}

type envelope struct {
	Success    bool        `json:"success"`
	Data       any         `json:"data,omitempty"`
	Message    string      `json:"message,omitempty"`
	Pagination *pagination `json:"pagination,omitempty"`
}

// pagination accompanies a list answered with page or limit.
type pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

type apiError struct {
	status  int
	message string
	err     error
}

func (e *apiError) Error() string {
	if e.err != nil {
		return e.message + ": " + e.err.Error()
	}
	return e.message
}

func (e *apiError) Unwrap() error {
	return e.err
}

func badRequest(err error) error {
	return &apiError{status: http.StatusBadRequest, message: "malformed request body", err: err}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *apiError
	switch {
	case errors.As(err, &apiErr):
	case errors.Is(err, db.ErrNotFound):
		apiErr = &apiError{status: http.StatusNotFound, message: "record not found", err: err}
	default:
		apiErr = &apiError{status: http.StatusInternalServerError, message: "internal error", err: err}
		s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	if apiErr.status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="clutch"`)
	}
	writeEnvelope(w, apiErr.status, envelope{Message: apiErr.message})
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeEnvelope(w, status, envelope{Success: true, Data: data})
}

func writeEnvelope(w http.ResponseWriter, status int, payload envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
