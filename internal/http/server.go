// Package http exposes the transaction service as a JSON REST API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"expensetracker/internal/cache"
	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/middleware/cors"
	"expensetracker/internal/middleware/ratelimit"
	"expensetracker/internal/middleware/security"
	"expensetracker/internal/middleware/trace"
)

const (
	apiBase          = "/api/transactions"
	summaryCacheSize = 64
	shutdownTimeout  = 30 * time.Second
)

// TransactionService is the behaviour the handlers need.
// *services.TransactionService satisfies it.
type TransactionService interface {
	Create(ctx context.Context, tx core.Transaction) (core.Transaction, error)
	Get(ctx context.Context, id int64) (core.Transaction, bool, error)
	List(ctx context.Context) ([]core.Transaction, error)
	ListByType(ctx context.Context, t core.TransactionType) ([]core.Transaction, error)
	Update(ctx context.Context, id int64, tx core.Transaction) (bool, error)
	Delete(ctx context.Context, id int64) (bool, error)
	Summary(ctx context.Context, w core.Window, now time.Time, loc *time.Location) (core.Summary, error)
	Ready(ctx context.Context) error
}

type Options struct {
	Addr               string
	Location           *time.Location
	StaticDir          string
	CORSAllowedOrigins []string
	RateLimitPerMinute int
	// SummaryCacheTTL of zero disables summary caching.
	SummaryCacheTTL time.Duration
	TrustedProxies  []string
	Logger          *log.Logger
	// Now replaces the wall clock, for tests.
	Now func() time.Time
}

type Server struct {
	http.Server
	svc    TransactionService
	loc    *time.Location
	now    func() time.Time
	logger *log.Logger

	rateLimiter  *ratelimit.Limiter
	summaryCache *cache.LRUCache[core.Summary]
	janitor      *cache.Janitor
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(svc TransactionService, opts Options) (*Server, error) {
	if svc == nil {
		return nil, errors.New("transaction service is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	ipResolver, err := security.NewClientIPResolver(opts.TrustedProxies...)
	if err != nil {
		return nil, fmt.Errorf("configure client IP resolver: %w", err)
	}

	limits := ratelimit.DefaultConfig()
	if opts.RateLimitPerMinute > 0 {
		limits.RequestsPerMinute = opts.RateLimitPerMinute
	}

	s := &Server{
		svc:         svc,
		loc:         loc,
		now:         now,
		logger:      logger,
		rateLimiter: ratelimit.NewLimiter(limits),
	}
	if opts.SummaryCacheTTL > 0 {
		s.summaryCache = cache.NewLRUCache[core.Summary](summaryCacheSize, opts.SummaryCacheTTL)
		s.janitor = cache.NewJanitor(max(opts.SummaryCacheTTL, time.Minute), s.summaryCache)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET "+apiBase, s.handleListTransactions)
	mux.HandleFunc("GET "+apiBase+"/expenses", s.handleListByType(core.Expense))
	mux.HandleFunc("GET "+apiBase+"/incomes", s.handleListByType(core.Income))
	mux.HandleFunc("GET "+apiBase+"/summary", s.handleSummary)
	mux.HandleFunc("GET "+apiBase+"/{id}", s.handleGetTransaction)
	mux.HandleFunc("POST "+apiBase, s.handleCreateTransaction)
	mux.HandleFunc("PUT "+apiBase+"/{id}", s.handleUpdateTransaction)
	mux.HandleFunc("DELETE "+apiBase+"/{id}", s.handleDeleteTransaction)
	mux.HandleFunc("GET /api/", handleAPINotFound)

	if opts.StaticDir != "" {
		mux.Handle("GET /", staticHandler(opts.StaticDir))
	}

	// Wrapped inside out, so trace runs first and every later layer sees the
	// request id.
	var handler http.Handler = mux
	handler = s.rateLimiter.Middleware(ipResolver.ClientIP, ratelimit.MutatingOnly, s.onRateLimited)(handler)
	handler = cors.NewPolicy(opts.CORSAllowedOrigins).Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = log.Middleware(logger, trace.FromRequest, ipResolver.ClientIP)(handler)
	handler = trace.Middleware(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}
	return s, nil
}

// Run serves until ctx is cancelled, then drains in-flight requests. The
// rate limiter and summary cache sweepers run alongside and stop with it.
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("HTTP server listening", "addr", s.Addr)
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on %s: %w", s.Addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Info("Shutting down HTTP server", log.FieldOperation, log.OpShutdown)
		return s.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return s.rateLimiter.Run(gctx)
	})
	if s.janitor != nil {
		g.Go(func() error {
			return s.janitor.Run(gctx)
		})
	}

	return g.Wait()
}

// invalidateSummaries drops cached summaries after a mutation.
func (s *Server) invalidateSummaries() {
	if s.summaryCache != nil {
		s.summaryCache.Clear()
	}
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	TooManyRequestsError().Write(w)
}

func handleAPINotFound(w http.ResponseWriter, r *http.Request) {
	NotFoundError("no such endpoint").Write(w)
}

// staticHandler serves a single-page app from dir. Paths that do not name a
// file fall back to index.html so client-side routes survive a reload.
func staticHandler(dir string) http.Handler {
	files := http.FileServer(http.Dir(dir))
	index := filepath.Join(dir, "index.html")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := filepath.Join(dir, filepath.FromSlash(path.Clean("/"+r.URL.Path)))
		if info, err := os.Stat(name); err != nil || info.IsDir() {
			w.Header().Set("Cache-Control", "no-cache")
			http.ServeFile(w, r, index)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=3600")
		files.ServeHTTP(w, r)
	})
}
