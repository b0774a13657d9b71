// Package server exposes the practice API over HTTP: phrase catalog reads,
// admin catalog management, speech analysis, and per-user progress, badge,
// and session history lookups.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zzatang/tongue-twisters-challenge/internal/auth"
	"github.com/zzatang/tongue-twisters-challenge/internal/badges"
	"github.com/zzatang/tongue-twisters-challenge/internal/health"
	"github.com/zzatang/tongue-twisters-challenge/internal/observe"
	"github.com/zzatang/tongue-twisters-challenge/internal/practice"
	"github.com/zzatang/tongue-twisters-challenge/internal/progress"
	"github.com/zzatang/tongue-twisters-challenge/internal/store"
)

// shutdownTimeout bounds graceful drain of in-flight requests.
const shutdownTimeout = 15 * time.Second

// Store is the storage surface the HTTP layer reads and writes.
type Store interface {
	ListPhrases(ctx context.Context) ([]store.Phrase, error)
	GetPhrase(ctx context.Context, id string) (*store.Phrase, error)
	CreatePhrase(ctx context.Context, p *store.Phrase) error
	UpdatePhrase(ctx context.Context, p *store.Phrase) error
	DeletePhrase(ctx context.Context, id string) error

	GetProgress(ctx context.Context, userID string) (*progress.Progress, error)
	ListBadges(ctx context.Context) ([]badges.Badge, error)
	CreateBadge(ctx context.Context, b *badges.Badge) error
	EarnedBadges(ctx context.Context, userID string) ([]badges.Earned, error)
	RecentSessions(ctx context.Context, userID string, limit int) ([]store.Session, error)
}

// Analyzer scores one recording attempt.
type Analyzer interface {
	Analyze(ctx context.Context, userID string, req practice.AnalyzeRequest) (*practice.AnalyzeResponse, error)
}

// Server is the HTTP front end.
type Server struct {
	store    Store
	analyzer Analyzer
	verifier *auth.Verifier
	health   *health.Handler
	metrics  *observe.Metrics
	logger   *slog.Logger
	httpSrv  *http.Server
}

// New builds the server and its route table. health may be nil, which skips
// the probe endpoints; metrics and logger fall back to package defaults.
func New(addr string, st Store, analyzer Analyzer, verifier *auth.Verifier,
	h *health.Handler, metrics *observe.Metrics, logger *slog.Logger) *Server {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		store:    st,
		analyzer: analyzer,
		verifier: verifier,
		health:   h,
		metrics:  metrics,
		logger:   logger,
	}
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// routes assembles the full route table with middleware applied.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Public catalog reads.
	mux.HandleFunc("GET /api/twisters", s.handleListPhrases)
	mux.HandleFunc("GET /api/twisters/{id}", s.handleGetPhrase)
	mux.HandleFunc("GET /api/badges", s.handleListBadges)

	// Authenticated user endpoints.
	mux.Handle("POST /api/speech/analyze", auth.RequireUser(http.HandlerFunc(s.handleAnalyze)))
	mux.Handle("GET /api/user/progress", auth.RequireUser(http.HandlerFunc(s.handleGetProgress)))
	mux.Handle("GET /api/user/badges", auth.RequireUser(http.HandlerFunc(s.handleUserBadges)))
	mux.Handle("GET /api/user/sessions", auth.RequireUser(http.HandlerFunc(s.handleUserSessions)))

	// Admin catalog management.
	mux.Handle("POST /api/admin/twisters", auth.RequireAdmin(http.HandlerFunc(s.handleCreatePhrase)))
	mux.Handle("PUT /api/admin/twisters/{id}", auth.RequireAdmin(http.HandlerFunc(s.handleUpdatePhrase)))
	mux.Handle("DELETE /api/admin/twisters/{id}", auth.RequireAdmin(http.HandlerFunc(s.handleDeletePhrase)))
	mux.Handle("POST /api/admin/badges", auth.RequireAdmin(http.HandlerFunc(s.handleCreateBadge)))

	if s.health != nil {
		s.health.Register(mux)
	}
	mux.Handle("GET /metrics", promhttp.Handler())

	var handler http.Handler = mux
	if s.verifier != nil {
		handler = s.verifier.Middleware(handler)
	}
	return observe.Middleware(s.metrics)(handler)
}

// Handler returns the assembled route table. Test helper.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// Run serves HTTP until ctx is cancelled, then drains gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	s.logger.Info("http server listening", "addr", s.httpSrv.Addr)

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen on %s: %w", s.httpSrv.Addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
