package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/patrickmn/go-cache"

	mw "github.com/handscan/handscan/internal/api/middleware"
	"github.com/handscan/handscan/internal/buildinfo"
	"github.com/handscan/handscan/internal/correction"
	"github.com/handscan/handscan/internal/datastore/entities"
	"github.com/handscan/handscan/internal/errors"
	"github.com/handscan/handscan/internal/logger"
	"github.com/handscan/handscan/internal/observability"
	"github.com/handscan/handscan/internal/upload"
)

// Terminal detections never change, so their responses are cached.
const (
	detectionCacheTTL     = 10 * time.Minute
	detectionCacheCleanup = 20 * time.Minute
)

// IdentityService identifies client installs.
type IdentityService interface {
	Identify(ctx context.Context, installID, label string) (*entities.Client, bool, error)
	Get(ctx context.Context, installID string) (*entities.Client, error)
	Delete(ctx context.Context, installID string) error
	Touch(ctx context.Context, installID string)
}

// UploadService runs the presigned upload lifecycle.
type UploadService interface {
	Presign(ctx context.Context, installID, contentType string, purpose entities.UploadPurpose) (*upload.Presigned, error)
	Complete(ctx context.Context, installID string, assetID uuid.UUID) (*entities.Asset, error)
	GetAsset(ctx context.Context, installID string, id uuid.UUID) (*entities.Asset, error)
}

// DetectionService triggers and reads detection runs.
type DetectionService interface {
	TriggerAsset(ctx context.Context, assetID uuid.UUID, installID string, source entities.HandSource) (*entities.HandDetection, bool, error)
	Get(ctx context.Context, installID string, id uuid.UUID) (*entities.HandDetection, error)
	PollOwned(ctx context.Context, installID string, id uuid.UUID) (*entities.HandDetection, error)
}

// CorrectionService records user corrections.
type CorrectionService interface {
	Submit(ctx context.Context, installID string, req correction.CreateRequest) (*entities.HandCorrection, error)
	Get(ctx context.Context, installID string, id uuid.UUID) (*entities.HandCorrection, error)
	List(ctx context.Context, installID string, handID *uuid.UUID) ([]entities.HandCorrection, error)
}

// Server is the handscan HTTP server.
type Server struct {
	echo   *echo.Echo
	config *Config
	log    logger.Logger

	identity    IdentityService
	uploads     UploadService
	detections  DetectionService
	corrections CorrectionService
	metrics     *observability.Metrics
	build       buildinfo.BuildInfo

	detectionCache *cache.Cache
	startTime      time.Time
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithLogger sets the server logger.
func WithLogger(l logger.Logger) ServerOption {
	return func(s *Server) {
		s.log = l
	}
}

// WithIdentity sets the client identity service.
func WithIdentity(svc IdentityService) ServerOption {
	return func(s *Server) {
		s.identity = svc
	}
}

// WithUploads sets the upload service.
func WithUploads(svc UploadService) ServerOption {
	return func(s *Server) {
		s.uploads = svc
	}
}

// WithDetections sets the detection service.
func WithDetections(svc DetectionService) ServerOption {
	return func(s *Server) {
		s.detections = svc
	}
}

// WithCorrections sets the correction service.
func WithCorrections(svc CorrectionService) ServerOption {
	return func(s *Server) {
		s.corrections = svc
	}
}

// WithMetrics enables HTTP metrics and the metrics endpoint.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithBuildInfo sets the version reported by /health.
func WithBuildInfo(info buildinfo.BuildInfo) ServerOption {
	return func(s *Server) {
		s.build = info
	}
}

// New creates a server. All four services are required.
func New(config *Config, opts ...ServerOption) (*Server, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server configuration: %w", err)
	}

	s := &Server{
		config:         config,
		detectionCache: cache.New(detectionCacheTTL, detectionCacheCleanup),
		startTime:      time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.log == nil {
		s.log = GetLogger()
	}
	if s.build == nil {
		s.build = buildinfo.NewContext("", "")
	}
	if s.identity == nil || s.uploads == nil || s.detections == nil || s.corrections == nil {
		return nil, fmt.Errorf("identity, upload, detection and correction services are required")
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Debug = config.Debug
	s.echo.HTTPErrorHandler = s.handleError

	s.echo.Server.ReadTimeout = config.ReadTimeout
	s.echo.Server.WriteTimeout = config.WriteTimeout
	s.echo.Server.IdleTimeout = config.IdleTimeout

	s.setupMiddleware()
	s.setupRoutes()

	s.log.Info("HTTP server initialized",
		logger.String("address", config.Address()),
		logger.Bool("debug", config.Debug))

	return s, nil
}

// setupMiddleware configures the echo middleware stack. Metrics wrap the
// request logger so both see the final status.
func (s *Server) setupMiddleware() {
	s.echo.Use(echomw.Recover())
	s.echo.Use(mw.NewRequestID())

	if s.metrics != nil {
		s.echo.Use(mw.NewHTTPMetrics(s.metrics.HTTP))
	}

	s.echo.Use(mw.NewRequestLoggerWithSkipper(s.log, func(c echo.Context) bool {
		path := c.Path()
		return path == "/health" || (s.config.MetricsPath != "" && path == s.config.MetricsPath)
	}))

	s.echo.Use(mw.NewCORS(mw.SecurityConfig{AllowedOrigins: s.config.AllowedOrigins}))
	s.echo.Use(mw.NewBodyLimit(s.config.BodyLimit))
	s.echo.Use(mw.NewSecureHeaders())
}

// setupRoutes registers all routes. Everything below /api/v1 except
// client identification requires an install id.
func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)
	if s.metrics != nil && s.config.MetricsPath != "" {
		s.echo.GET(s.config.MetricsPath, echo.WrapHandler(s.metrics.Handler()))
	}

	v1 := s.echo.Group("/api/v1")
	auth := mw.RequireInstallID(s.identity)

	v1.PUT("/client", s.identifyClient)
	v1.GET("/client/me", s.getClient, auth)
	v1.DELETE("/client/me", s.deleteClient, auth)

	v1.POST("/asset/upload/presign", s.presignUpload, auth)
	v1.POST("/asset/:id/complete", s.completeUpload, auth)
	v1.GET("/asset/:id", s.getAsset, auth)

	v1.POST("/hand/detect", s.triggerDetection, auth)
	v1.GET("/hand/detect/:id", s.getDetection, auth)
	v1.POST("/hand/detect/:id/poll", s.pollDetection, auth)

	v1.POST("/hand/correction", s.createCorrection, auth)
	v1.GET("/hand/correction", s.listCorrections, auth)
	v1.GET("/hand/correction/:id", s.getCorrection, auth)
}

// healthCheck handles the server health check endpoint.
func (s *Server) healthCheck(c echo.Context) error {
	uptime := time.Since(s.startTime)

	return c.JSON(http.StatusOK, map[string]any{
		"status":         "healthy",
		"version":        s.build.GetVersion(),
		"build_date":     s.build.GetBuildDate(),
		"uptime":         uptime.String(),
		"uptime_seconds": uptime.Seconds(),
		"timestamp":      time.Now().Format(time.RFC3339),
	})
}

// Run serves HTTP until ctx is cancelled and then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := s.config.Address()
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting HTTP server", logger.String("address", addr))
		errCh <- s.echo.Start(addr)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := s.echo.Shutdown(ctx); err != nil {
		s.log.Error("error during server shutdown", logger.Error(err))
		return fmt.Errorf("shutdown error: %w", err)
	}

	s.log.Info("server shutdown complete")
	return nil
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// ServeHTTP lets the server be used as an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
