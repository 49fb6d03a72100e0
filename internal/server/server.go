package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/ricesearch/rice-eval/internal/config"
	"github.com/ricesearch/rice-eval/internal/evaluation"
	"github.com/ricesearch/rice-eval/internal/metrics"
	"github.com/ricesearch/rice-eval/internal/pkg/logger"
	"github.com/ricesearch/rice-eval/internal/pkg/middleware"
	"github.com/ricesearch/rice-eval/internal/store"
)

// evaluateCost is how many rate limit tokens an evaluation spends.
const evaluateCost = 2

// Server is the main HTTP server that wires all services together.
type Server struct {
	cfg        Config
	app        *config.Config
	log        *logger.Logger
	httpServer *http.Server

	// Services
	pool      *evaluation.Pool
	store     *store.Service
	evaluator *evaluation.Evaluator
	metrics   *metrics.Metrics
	limiter   *middleware.RateLimiter

	// Handlers
	evalHandler  *evaluation.Handler
	storeHandler *StoreHandler

	mu      sync.RWMutex
	started bool
}

// Config configures the HTTP listener.
type Config struct {
	// Host is the address to bind to.
	Host string

	// Port is the HTTP port.
	Port int

	// Version is the application version.
	Version string

	// ReadTimeout is the HTTP read timeout.
	ReadTimeout time.Duration

	// WriteTimeout is the HTTP write timeout.
	WriteTimeout time.Duration

	// ShutdownTimeout is the graceful shutdown timeout.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns sensible server defaults.
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		Port:            8080,
		Version:         "dev",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    120 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// New creates a new server with all dependencies.
func New(cfg Config, appCfg *config.Config, log *logger.Logger) (*Server, error) {
	if cfg.Port == 0 {
		cfg = DefaultConfig()
	}
	if appCfg == nil {
		appCfg = config.Default()
	}
	if log == nil {
		log = logger.Discard()
	}

	s := &Server{
		cfg: cfg,
		app: appCfg,
		log: log,
	}

	storage, err := store.OpenStorage(store.ServiceConfig{
		Type:     appCfg.Storage.Type,
		Path:     appCfg.Storage.Path,
		RedisURL: appCfg.Storage.RedisURL,
		Prefix:   appCfg.Storage.Prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", appCfg.Storage.Type, err)
	}
	s.store = store.NewService(storage, log)

	pool, err := evaluation.NewPool(appCfg.Eval.Workers)
	if err != nil {
		_ = s.store.Close()
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	s.pool = pool

	opts := []evaluation.Option{evaluation.WithPool(pool)}
	if appCfg.Observability.MetricsEnabled {
		s.metrics = metrics.New()
		opts = append(opts, evaluation.WithRecorder(s.metrics))
	}
	s.evaluator = evaluation.NewEvaluator(log, opts...)

	if appCfg.Security.RateLimit > 0 {
		rlCfg := middleware.RateLimiterConfigFor(appCfg.Security.RateLimit)
		rlCfg.Cost = middleware.RouteCost(map[string]int{
			http.MethodPost + " " + evaluation.EvaluatePath: evaluateCost,
		})
		s.limiter = middleware.NewRateLimiter(rlCfg)
	}

	s.evalHandler = evaluation.NewHandler(s.evaluator, s.store, appCfg.DefaultMetrics())
	s.storeHandler = NewStoreHandler(s.store)

	return s, nil
}

// Handler builds the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("GET "+s.app.Observability.MetricsPath, s.metrics.Handler())
	}

	s.evalHandler.RegisterRoutes(mux)
	s.storeHandler.RegisterRoutes(mux)

	var handler http.Handler = mux
	handler = middleware.MaxBytes(s.app.Security.MaxRequestSize, handler)
	if s.limiter != nil {
		handler = s.limiter.Middleware(handler)
	}
	if s.metrics != nil {
		handler = metrics.HTTPMiddleware(s.metrics, handler)
	}
	return middleware.Logging(s.log, handler)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: s.cfg.Version,
		Storage: s.app.Storage.Type,
		Workers: s.pool.Size(),
	})
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("server already started")
	}
	s.started = true

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	srv := s.httpServer
	s.mu.Unlock()

	s.log.Info("Starting HTTP server",
		"addr", addr,
		"storage", s.app.Storage.Type,
		"workers", s.pool.Size(),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully stops the server and releases its services.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.log.Info("Shutting down server...")

	if s.started && s.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.log.Error("HTTP shutdown error", "error", err)
		}
	}

	if s.limiter != nil {
		s.limiter.Stop()
	}
	s.pool.Release()
	if err := s.store.Close(); err != nil {
		s.log.WithError(err).Warn("Storage close failed")
	}

	s.started = false
	s.log.Info("Server stopped")

	return nil
}

// Running reports whether Start has been called and Stop has not.
func (s *Server) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}
