package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"guardboard/internal/auth"
	"guardboard/internal/config"
	appLog "guardboard/internal/log"
	"guardboard/internal/metrics"
	"guardboard/internal/session"
	"guardboard/internal/store"
)

// maxImportBytes bounds CSV uploads.
const maxImportBytes = 10 << 20

// Server provides the board page, the JSON API and the download endpoints.
type Server struct {
	cfg     *config.Config
	sess    *session.Session
	metrics *metrics.Recorder
	mux     *http.ServeMux
	now     func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithClock overrides time.Now for "current month" decisions.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// NewServer constructs a Server. rec may be nil.
func NewServer(cfg *config.Config, sess *session.Session, rec *metrics.Recorder, opts ...Option) *Server {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	s := &Server{
		cfg:     cfg,
		sess:    sess,
		metrics: rec,
		mux:     http.NewServeMux(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerRoutes()
	s.refreshGauges()
	return s
}

// Handler returns the routed handler wrapped in basic auth (when configured)
// and request metrics.
func (s *Server) Handler() http.Handler {
	var creds *auth.Credentials
	if ba := s.cfg.BasicAuth; ba != nil && ba.Username != "" && ba.PasswordHash != "" {
		creds = &auth.Credentials{Username: ba.Username, PasswordHash: ba.PasswordHash}
		appLog.Info("HTTP basic auth enabled", "user", ba.Username)
	}
	return s.instrument(auth.Middleware(creds, "guardboard", "/health")(s.mux))
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /api/month", s.handleMonth)
	s.mux.HandleFunc("GET /api/session", s.handleSession)

	s.mux.HandleFunc("GET /api/guards", s.handleListGuards)
	s.mux.HandleFunc("POST /api/guards", s.handleAddGuard)
	s.mux.HandleFunc("DELETE /api/guards/{id}", s.handleDeleteGuard)
	s.mux.HandleFunc("POST /api/guards/{id}/edit", s.handleEditGuard)

	s.mux.HandleFunc("GET /api/holidays", s.handleListHolidays)
	s.mux.HandleFunc("POST /api/holidays", s.handleAddHoliday)
	s.mux.HandleFunc("DELETE /api/holidays/{id}", s.handleDeleteHoliday)
	s.mux.HandleFunc("POST /api/holidays/{id}/edit", s.handleEditHoliday)

	s.mux.HandleFunc("GET /api/export", s.handleExport)
	s.mux.HandleFunc("POST /api/import", s.handleImport)
	s.mux.HandleFunc("GET /calendar.ics", s.handleICS)

	s.mux.HandleFunc("GET /board", s.handleBoard)
	s.mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/board", http.StatusFound)
	})

	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// statusRecorder captures the status code for metrics.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(next http.Handler) http.Handler {
	if s.metrics == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)

		// Route patterns keep label cardinality bounded.
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		s.metrics.ObserveHTTP(route, rec.code, time.Since(start).Seconds())
	})
}

func (s *Server) refreshGauges() {
	if s.metrics == nil || s.sess == nil {
		return
	}
	snap := s.sess.Store().Snapshot()
	s.metrics.SetRecords(len(snap.Guards), len(snap.Holidays))
}

// errorResponse is the JSON error body. Field is set for validation errors.
type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// writeStoreError maps store and session errors onto HTTP statuses.
func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	var ve *store.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: ve.Message, Field: ve.Field})
	case errors.Is(err, session.ErrImportInProgress):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrPersist):
		s.metrics.SaveError()
		appLog.Error("persist failed", err)
		writeError(w, http.StatusInternalServerError, "changes could not be saved")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		appLog.Error("request failed", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
