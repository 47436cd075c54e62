package server

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"cdnbox/internal/models"
	"cdnbox/pkg/auth"
	"cdnbox/pkg/config"
	"cdnbox/pkg/store"
)

// Server represents the HTTP server
type Server struct {
	config    *config.Config
	logger    *logrus.Logger
	store     *store.Store
	gate      *auth.Gate
	limiter   *rateLimiter
	engine    *gin.Engine
	server    *http.Server
	startTime time.Time
}

// New creates a new server instance
func New(cfg *config.Config, logger *logrus.Logger) (*Server, error) {
	st, err := store.New(cfg.Storage.Root, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	// Set gin mode based on log level
	if logger.Level == logrus.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.MaxMultipartMemory = cfg.MaxUploadBytes()
	tmpl := template.Must(template.New("login").Parse(loginPage))
	template.Must(tmpl.New("upload").Parse(uploadPage))
	engine.SetHTMLTemplate(tmpl)

	engine.Use(gin.Recovery())
	engine.Use(requestID())
	engine.Use(ginLogger(logger))

	if cfg.Telemetry.Enabled {
		engine.Use(otelgin.Middleware("cdnbox"))
	}

	server := &Server{
		config:    cfg,
		logger:    logger,
		store:     st,
		gate:      auth.NewGate(cfg.Auth, logger),
		limiter:   newRateLimiter(cfg.Upload.RateLimit, cfg.Upload.RateWindow),
		engine:    engine,
		startTime: time.Now(),
	}

	server.setupRoutes()

	return server, nil
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.config.Server.Port),
		Handler: s.engine,
	}

	s.logger.Infof("Serving %s on port %d", s.store.Root(), s.config.Server.Port)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Engine returns the gin engine for testing purposes
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Health check
	s.engine.GET("/healthz", s.handleHealth)

	// File store API
	api := s.engine.Group("/api")
	api.GET("/list", s.handleList)
	api.GET("/folders", s.gate.RequireAuth(), s.handleFolders)
	api.POST("/upload", s.gate.RequireAuth(), s.limiter.middleware(), s.handleUpload)
	api.GET("/status", s.gate.RequireAuth(), s.handleStatus)

	// Public file serving
	s.engine.GET("/cdn/*filepath", s.handleServeFile)
	s.engine.GET("/files/*filepath", s.handleServeFile)

	// Admin session. The hyphenated paths are the historical route
	// names; the /admin/ forms are what the pages link to.
	s.engine.GET("/admin-login-page", s.handleLoginPage)
	s.engine.GET("/admin/login", s.handleLoginPage)
	s.engine.POST("/admin-login", s.handleLogin)
	s.engine.POST("/admin/login", s.handleLogin)
	s.engine.GET("/admin/upload", s.handleUploadPage)
	s.engine.GET("/logout", s.handleLogout)
}

// handleHealth handles liveness requests
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleStatus reports uptime, folder count, and storage disk usage.
func (s *Server) handleStatus(c *gin.Context) {
	folders, err := s.store.Folders(c.Request.Context())
	if err != nil {
		s.internalError(c, err)
		return
	}
	stats, err := s.store.Stats()
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.StatusResponse{
		Uptime:  time.Since(s.startTime).Seconds(),
		Folders: len(folders),
		Storage: stats,
	})
}

// internalError logs the full error server-side and answers with a
// generic 500. Nothing internal crosses the HTTP boundary.
func (s *Server) internalError(c *gin.Context, err error) {
	s.logger.WithError(err).WithField("path", c.Request.URL.Path).Error("Internal error")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}

// notFound is the uniform not-found response. Missing files and
// disallowed extensions share it so the client cannot tell them apart.
func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
}

// requestID tags each request with an id for log correlation.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-Id")
		if id == "" {
			id = xid.New().String()
		}
		c.Set("request_id", id)
		c.Header("X-Request-Id", id)
		c.Next()
	}
}

// ginLogger creates a gin logger middleware using logrus
func ginLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		entry := logger.WithFields(logrus.Fields{
			"status":     statusCode,
			"method":     c.Request.Method,
			"path":       path,
			"ip":         c.ClientIP(),
			"latency":    latency,
			"request_id": c.GetString("request_id"),
		})

		if raw != "" {
			entry = entry.WithField("query", raw)
		}

		if statusCode >= 500 {
			entry.Error("Server error")
		} else if statusCode >= 400 {
			entry.Warn("Client error")
		} else {
			entry.Info("Request completed")
		}
	}
}
