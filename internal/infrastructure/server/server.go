package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/executejs/backend/internal/api/http"
	"github.com/GriffinCanCode/executejs/backend/internal/api/middleware"
	"github.com/GriffinCanCode/executejs/backend/internal/app"
	"github.com/GriffinCanCode/executejs/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/executejs/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/executejs/backend/internal/infrastructure/tracing"
)

// shutdownTimeout bounds how long in-flight requests may finish on shutdown.
const shutdownTimeout = 10 * time.Second

// Server wraps the HTTP server and dependencies
type Server struct {
	router *gin.Engine
	engine *app.Engine
	logger *logging.Logger
	addr   string
}

// NewServer creates a new server instance
func NewServer(engine *app.Engine) *Server {
	cfg := engine.Config
	logger := engine.Logger.Named("server")

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(tracing.HTTPMiddleware(engine.Tracer))
	router.Use(middleware.Logger(engine.Logger))
	router.Use(monitoring.Middleware(engine.Metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
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

	handlers := apihttp.NewHandlers(engine)

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)

	router.POST("/execute", handlers.Execute)

	router.GET("/history", handlers.ListHistory)
	router.DELETE("/history", handlers.ClearHistory)

	router.GET("/cache", handlers.ListCache)
	router.DELETE("/cache", handlers.PruneCache)

	router.GET("/metrics", gin.WrapH(engine.Metrics.Handler()))
	router.GET("/metrics/json", handlers.MetricsJSON)

	return &Server{
		router: router,
		engine: engine,
		logger: logger,
		addr:   net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
	}
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	_ = s.logger.Sync()
	return nil
}
