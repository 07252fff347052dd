package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
	"go.uber.org/zap"

	apihttp "github.com/gorilincode/backend/internal/api/http"
	"github.com/gorilincode/backend/internal/api/middleware"
	"github.com/gorilincode/backend/internal/api/ws"
	"github.com/gorilincode/backend/internal/infrastructure/config"
	"github.com/gorilincode/backend/internal/infrastructure/logging"
	"github.com/gorilincode/backend/internal/infrastructure/monitoring"
	"github.com/gorilincode/backend/internal/infrastructure/tracing"
	"github.com/gorilincode/backend/internal/lesson"
	"github.com/gorilincode/backend/internal/progress"
	"github.com/gorilincode/backend/internal/sandbox"
	"github.com/gorilincode/backend/internal/shared/utils"
	"github.com/gorilincode/backend/internal/transpile"
	"github.com/gorilincode/backend/internal/tutor"
)

const streamPath = "/stream"

// Server wraps the HTTP server and dependencies
type Server struct {
	router   *gin.Engine
	http     *http.Server
	executor *sandbox.Executor
	tracker  *progress.Tracker
	tracer   *tracing.Tracer
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics
}

// NewServer wires every component from cfg
func NewServer(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	logger.Info("Initializing Gorilin server",
		zap.String("port", cfg.Server.Port),
		zap.String("progress_backend", cfg.Progress.Backend),
	)

	metrics := monitoring.NewMetrics()
	tracer := tracing.New("gorilin", logger.Component("tracing"))

	catalog := lesson.Default()
	if cfg.Catalog.Path != "" {
		c, err := lesson.Load(cfg.Catalog.Path)
		if err != nil {
			tracer.Close()
			return nil, fmt.Errorf("failed to load catalog: %w", err)
		}
		catalog = c
	}
	logger.Info("Lesson catalog loaded", zap.Int("lessons", catalog.Len()))

	store, err := progress.New(ctx, cfg.Progress, metrics, logger.Component("progress"))
	if err != nil {
		tracer.Close()
		return nil, fmt.Errorf("failed to open progress store: %w", err)
	}
	tracker := progress.NewTracker(store, metrics, logger.Component("progress"))

	executor := sandbox.NewExecutor(sandbox.Config{
		Timeout:          cfg.Sandbox.Timeout.Std(),
		AlertDelay:       cfg.Sandbox.AlertDelay.Std(),
		MaxCallStackSize: cfg.Sandbox.MaxCallStack,
		PoolSize:         cfg.Sandbox.PoolSize,
	}, logger.Component("sandbox"), nil)

	svc := tutor.New(tutor.Options{
		Catalog:        catalog,
		Runner:         executor,
		Stripper:       transpile.NewStripper(transpile.Options{DropEnums: cfg.Sandbox.DropEnums}, logger.Component("transpile")),
		Tracker:        tracker,
		Metrics:        metrics,
		Tracer:         tracer,
		Logger:         logger.Component("tutor"),
		MaxSourceBytes: cfg.Sandbox.MaxSourceBytes,
	})

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.CORSFromOrigins(cfg.Server.AllowedOrigins)))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}
	router.Use(middleware.BodyLimit(utils.MaxJSONSize))

	handlers := apihttp.NewHandlers(svc, executor.Stats, metrics, logger.Component("http"))
	handlers.Register(router)

	wsHandler := ws.NewHandler(svc, metrics, logger.Component("ws"), checkOrigin(cfg.Server.AllowedOrigins))
	router.GET(streamPath, wsHandler.HandleConnection)
	router.GET("/metrics", monitoring.Handler(metrics))

	s := &Server{
		router:   router,
		executor: executor,
		tracker:  tracker,
		tracer:   tracer,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
	}
	s.http = &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server initialized successfully")
	return s, nil
}

// Handler returns the root handler. Responses are gzip compressed except
// on the stream route, which needs the raw connection.
func (s *Server) Handler() http.Handler {
	gz := gzhttp.GzipHandler(s.router)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == streamPath {
			s.router.ServeHTTP(w, r)
			return
		}
		gz.ServeHTTP(w, r)
	})
}

// Run starts the HTTP server and blocks until it stops
func (s *Server) Run() error {
	s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	return s.http.Shutdown(ctx)
}

// Close releases the executor, progress store and tracer
func (s *Server) Close() error {
	var errs []error
	if err := s.executor.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close executor: %w", err))
	}
	if err := s.tracker.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close progress store: %w", err))
	}
	s.tracer.Close()
	_ = s.logger.Sync()
	return errors.Join(errs...)
}

func checkOrigin(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}
