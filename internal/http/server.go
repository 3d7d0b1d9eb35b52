package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	applog "findash/internal/log"
	"findash/internal/middleware/ratelimit"
	"findash/internal/middleware/security"
	"findash/internal/middleware/trace"
	"findash/internal/services"
)

// Server serves the dashboard JSON API.
type Server struct {
	http.Server
	svc        *services.ReportService
	logger     *applog.Logger
	structured *applog.StructuredLogger

	detector *security.Detector
	limiter  *ratelimit.Limiter
	tracer   *trace.Middleware

	headers        security.HeadersConfig
	rateLimit      ratelimit.Config
	trustedProxies []string

	shutdownOnce sync.Once
}

// Option customizes a Server.
type Option func(*Server)

// WithLogger sets the logger used for request and service logs.
func WithLogger(l *applog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRateLimit sets the limit applied to POST endpoints.
func WithRateLimit(cfg ratelimit.Config) Option {
	return func(s *Server) { s.rateLimit = cfg }
}

// WithAllowedOrigins allows browser calls from the given origins.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) { s.headers.AllowedOrigins = origins }
}

// WithTrustedProxies adds CIDRs whose forwarding headers are honored.
func WithTrustedProxies(cidrs []string) Option {
	return func(s *Server) { s.trustedProxies = cidrs }
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, svc *services.ReportService, opts ...Option) *Server {
	s := &Server{
		svc:       svc,
		logger:    applog.FromContext(context.Background()),
		detector:  security.NewDetector(),
		headers:   security.DefaultHeadersConfig(),
		rateLimit: ratelimit.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, cidr := range s.trustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			s.logger.Warn("Ignoring trusted proxy", applog.FieldError, err)
		}
	}
	s.logger = s.logger.WithComponent(applog.ComponentHTTP)
	s.structured = applog.NewStructuredLogger(s.logger)
	s.limiter = ratelimit.NewLimiter(s.rateLimit)
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, s.logger)

	limited := s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		s.logger.WarnContext(r.Context(), "Rate limit exceeded",
			applog.FieldClientIP, s.detector.ExtractClientIP(r),
			applog.FieldPath, r.URL.Path)
		TooManyRequestsError().Write(w, r)
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/api/dashboard", s.handleDashboard)
	mux.HandleFunc("/api/transactions", s.handleTransactions)
	mux.HandleFunc("/api/quality", s.handleQuality)
	mux.HandleFunc("/api/options", s.handleOptions)
	mux.HandleFunc("/api/metrics", s.handleMetrics)
	mux.Handle("/api/refresh", limited(http.HandlerFunc(s.handleRefresh)))
	mux.Handle("/api/narrative", limited(http.HandlerFunc(s.handleNarrative)))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("no route for " + r.URL.Path).Write(w, r)
	})

	var handler http.Handler = mux
	handler = security.NewHeadersMiddleware(s.headers).Middleware(handler)
	handler = s.tracer.Middleware(handler)
	handler = s.detector.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Narrative generation may take most of a minute.
		WriteTimeout: 75 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	return s
}

// Shutdown stops the rate limiter and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
