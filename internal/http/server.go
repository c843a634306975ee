package http

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"finanzas/internal/log"
	"finanzas/internal/middleware/ratelimit"
	"finanzas/internal/middleware/security"
	"finanzas/internal/middleware/trace"
	"finanzas/internal/services"
)

const (
	readTimeout    = 10 * time.Second
	writeTimeout   = 30 * time.Second
	idleTimeout    = 60 * time.Second
	requestTimeout = 20 * time.Second
)

// Options tune a Server. Zero values pick defaults.
type Options struct {
	// RateLimit is the number of mutating requests allowed per client per minute.
	RateLimit int
	// Ready reports whether the primary store is reachable.
	Ready  func(ctx context.Context) error
	Logger *log.Logger
}

// appMetrics counts successful ledger mutations.
type appMetrics struct {
	created int64
	updated int64
	deleted int64
	uptime  time.Time
}

type Server struct {
	http.Server
	ledger *services.Ledger
	ready  func(ctx context.Context) error
	logger *log.Logger

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	appMetrics       *appMetrics

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, ledger *services.Ledger, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	detector := security.NewDetector()
	s := &Server{
		ledger:           ledger,
		ready:            opts.Ready,
		logger:           logger,
		rateLimiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimit}),
		securityDetector: detector,
		traceMiddleware:  trace.NewMiddleware(logger, detector.ExtractClientIP),
		appMetrics:       &appMetrics{uptime: time.Now()},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("PUT /api/transactions/{index}", s.handleUpdateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{index}", s.handleDeleteTransaction)

	mux.HandleFunc("GET /api/savings", s.handleListSavings)
	mux.HandleFunc("POST /api/savings", s.handleCreateSavings)
	mux.HandleFunc("PUT /api/savings/{index}", s.handleUpdateSavings)
	mux.HandleFunc("DELETE /api/savings/{index}", s.handleDeleteSavings)
	mux.HandleFunc("GET /api/savings/progress", s.handleSavingsProgress)

	mux.HandleFunc("GET /api/goals", s.handleListGoals)
	mux.HandleFunc("POST /api/goals", s.handleCreateGoal)
	mux.HandleFunc("PUT /api/goals/{index}", s.handleUpdateGoal)
	mux.HandleFunc("DELETE /api/goals/{index}", s.handleDeleteGoal)

	mux.HandleFunc("GET /api/summary", s.handleSummary)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusNotFound, CodeUnknownRoute, "no such endpoint").Write(w)
	})

	onLimit := func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, detector.ExtractClientIP(r),
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path)
		TooManyRequestsError().Write(w)
	}

	// Outermost first: trace, headers, detection, rate limit, timeout.
	var handler http.Handler = mux
	handler = http.TimeoutHandler(handler, requestTimeout, `{"error":{"code":"timeout","message":"request timed out"}}`)
	handler = s.rateLimiter.Middleware(detector.ExtractClientIP, onLimit,
		http.MethodPost, http.MethodPut, http.MethodDelete)(handler)
	handler = detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.traceMiddleware.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
	return s
}

// Shutdown gracefully shuts down the server and the rate limiter cleanup.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.logger.InfoContext(ctx, "Shutting down HTTP server", log.FieldOperation, log.OpShutdown)
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) countMutation(op string) {
	switch op {
	case log.OpCreate:
		atomic.AddInt64(&s.appMetrics.created, 1)
	case log.OpUpdate:
		atomic.AddInt64(&s.appMetrics.updated, 1)
	case log.OpDelete:
		atomic.AddInt64(&s.appMetrics.deleted, 1)
	}
}

// writeError logs a failed ledger call and writes its mapped response.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	resp := ErrorFromLedger(err)
	logger := log.FromContext(r.Context())
	if resp.StatusCode() >= http.StatusInternalServerError {
		logger.LogError(r.Context(), "Ledger operation failed", err, op, nil)
	} else {
		logger.InfoContext(r.Context(), "Ledger operation rejected",
			log.FieldOperation, op,
			log.FieldStatusCode, resp.StatusCode(),
			log.FieldError, err)
	}
	resp.Write(w)
}
