package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	echoSwagger "github.com/swaggo/echo-swagger"
	"golang.org/x/time/rate"

	_ "github.com/goban/core/docs"
	"github.com/goban/core/internal/adapters/bili"
	"github.com/goban/core/internal/adapters/events"
	httpHandlers "github.com/goban/core/internal/adapters/http"
	"github.com/goban/core/internal/adapters/repository"
	"github.com/goban/core/internal/adapters/session"
	"github.com/goban/core/internal/application/services"
	"github.com/goban/core/internal/infrastructure/config"
	"github.com/goban/core/internal/infrastructure/database"
	"github.com/goban/core/internal/infrastructure/logger"
	"github.com/goban/core/internal/ports"
)

// Server represents the HTTP server
type Server struct {
	echo     *echo.Echo
	config   *config.Config
	logger   *logger.Logger
	db       *database.DB
	redis    *redis.Client
	registry *prometheus.Registry

	nats      *events.NATSPublisher
	publisher ports.ReportPublisher
	monitor   *services.MonitorService
	stop      context.CancelFunc
	done      chan struct{}
}

// CustomValidator wraps the validator
type CustomValidator struct {
	validator *validator.Validate
}

// Validate validates structs
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

// New creates a new server instance
func New(cfg *config.Config, db *database.DB, appLogger *logger.Logger) (*Server, error) {
	e := echo.New()

	// Set custom validator
	e.Validator = &CustomValidator{validator: validator.New()}

	// Configure Echo
	e.HideBanner = true
	e.HidePort = true

	// Custom error handler
	e.HTTPErrorHandler = customErrorHandler(appLogger)

	server := &Server{
		echo:      e,
		config:    cfg,
		logger:    appLogger,
		db:        db,
		registry:  prometheus.NewRegistry(),
		publisher: events.NopPublisher{},
	}

	// Login sessions live in Redis when one is configured
	var sessions ports.LoginSessionStore = session.NewMemoryStore(cfg.Monitor.LoginSessionTTL)
	if cfg.Redis.Enabled() {
		rdb, err := session.NewRedisClient(context.Background(), cfg.Redis)
		if err != nil {
			return nil, err
		}
		server.redis = rdb
		sessions = session.NewRedisStore(rdb, cfg.Monitor.LoginSessionTTL)
		appLogger.Infow("Login sessions stored in Redis", "addr", cfg.Redis.GetAddr())
	}

	if cfg.NATS.URL != "" {
		publisher, err := events.NewNATSPublisher(cfg.NATS, appLogger)
		if err != nil {
			server.closeClients()
			return nil, err
		}
		server.nats = publisher
		server.publisher = publisher
	}

	// Initialize repositories
	accountRepo := repository.NewAccountRepository(db.DB)
	taskRepo := repository.NewTaskRepository(db.DB)
	logRepo := repository.NewLogRepository(db.DB)
	reportRepo := repository.NewReportRepository(db.DB)

	gateway := bili.NewGateway(cfg.Platform, appLogger)

	// Initialize services
	authService, err := services.NewAuthService(cfg.Auth)
	if err != nil {
		server.closeClients()
		return nil, err
	}
	accountService := services.NewAccountService(accountRepo, sessions, gateway, cfg.Monitor.LoginSessionTTL, appLogger)
	taskService := services.NewTaskService(taskRepo, accountRepo, gateway, appLogger)
	taskService.SetTestLimits(cfg.Monitor.TestVideoLimit, cfg.Monitor.TestCommentSize)
	logService := services.NewLogService(logRepo, reportRepo, taskRepo, appLogger)
	server.monitor = services.NewMonitorService(
		taskRepo, accountRepo, logRepo, reportRepo, gateway, server.publisher,
		services.NewMonitorMetrics(server.registry), cfg.Monitor.TickInterval, appLogger,
	)

	// Initialize handlers
	accountHandler := httpHandlers.NewAccountHandler(accountService, appLogger)
	taskHandler := httpHandlers.NewTaskHandler(taskService, appLogger)
	logHandler := httpHandlers.NewLogHandler(logService, appLogger)

	// Setup middleware
	server.setupMiddleware()

	// Setup metrics
	if cfg.Metrics.Enabled {
		server.setupMetrics()
	}

	// Setup routes
	server.setupRoutes(accountHandler, taskHandler, logHandler, authService)

	return server, nil
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.echo.Use(middleware.Recover())

	// Logger middleware
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogError:     true,
		LogRemoteIP:  true,
		LogUserAgent: true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, values middleware.RequestLoggerValues) error {
			log := s.logger.WithRequestID(values.RequestID)
			latency := float64(values.Latency.Nanoseconds()) / 1000000

			if values.Error != nil {
				log.WithError(values.Error).Errorw("HTTP request failed",
					"method", values.Method,
					"uri", values.URI,
					"status", values.Status,
					"latency_ms", latency,
					"remote_ip", values.RemoteIP,
				)
				return nil
			}

			log.LogHTTPRequest(values.Method, values.URI, values.UserAgent, values.RemoteIP, values.Status, latency)
			return nil
		},
	}))

	// CORS middleware
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: strings.Split(s.config.Security.CORSAllowedOrigins, ","),
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, headerAcceptLanguage},
		AllowMethods: []string{echo.GET, echo.HEAD, echo.PUT, echo.POST, echo.DELETE},
	}))

	// Rate limiting middleware
	window := s.config.Security.RateLimitWindow
	if window <= 0 {
		window = time.Minute
	}
	s.echo.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(float64(s.config.Security.RateLimitRequests) / window.Seconds()),
				Burst:     s.config.Security.RateLimitRequests,
				ExpiresIn: window,
			},
		),
		IdentifierExtractor: func(ctx echo.Context) (string, error) {
			return ctx.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return c.JSON(http.StatusForbidden, httpHandlers.ErrorResponse{Error: "rate limit exceeded"})
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return c.JSON(http.StatusTooManyRequests, httpHandlers.ErrorResponse{Error: "rate limit exceeded"})
		},
	}))

	// Security headers
	s.echo.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
		HSTSMaxAge:         31536000,
	}))

	// Request ID middleware
	s.echo.Use(middleware.RequestID())

	// Dry runs walk several videos upstream, so the budget is generous
	s.echo.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: 2 * time.Minute,
	}))
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(
	accountHandler *httpHandlers.AccountHandler,
	taskHandler *httpHandlers.TaskHandler,
	logHandler *httpHandlers.LogHandler,
	auth Authenticator,
) {
	// Health check routes
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/health/detailed", s.detailedHealthCheck)
	s.echo.GET("/ready", s.readinessCheck)

	// Swagger documentation
	s.echo.GET("/swagger/*", echoSwagger.WrapHandler)

	api := s.echo.Group("/api", s.basicAuth(auth))

	users := api.Group("/users")
	users.GET("/list", accountHandler.ListAccounts)
	users.GET("/login", accountHandler.StartQRLogin)
	users.GET("/loginCheck", accountHandler.CheckLogin)
	users.GET("/loginCancel", accountHandler.CancelLogin)
	users.POST("/loginByCookie", accountHandler.LoginByCookie)
	users.DELETE("/:id", accountHandler.DeleteAccount)

	tasks := api.Group("/tasks")
	tasks.GET("/list", taskHandler.ListTasks)
	tasks.POST("/create", taskHandler.CreateTask)
	tasks.PUT("/:id", taskHandler.UpdateTask)
	tasks.DELETE("/:id", taskHandler.DeleteTask)
	tasks.GET("/:id/test", taskHandler.TestTask)

	logs := api.Group("/logs")
	logs.GET("/monitor", logHandler.MonitorLogs)
	logs.GET("/report", logHandler.ReportRecords)
}

// setupMetrics configures Prometheus metrics
func (s *Server) setupMetrics() {
	requestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	s.registry.MustRegister(requestsTotal, requestDuration)

	// Custom metrics middleware
	s.echo.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			duration := time.Since(start)
			status := c.Response().Status

			requestsTotal.WithLabelValues(
				c.Request().Method,
				c.Path(),
				fmt.Sprintf("%d", status),
			).Inc()

			requestDuration.WithLabelValues(
				c.Request().Method,
				c.Path(),
			).Observe(duration.Seconds())

			return err
		}
	})

	// Metrics endpoint
	metricsHandler := promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
	s.echo.GET("/metrics", echo.WrapHandler(metricsHandler))
}

// Health check handlers
func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) detailedHealthCheck(c echo.Context) error {
	status := "ok"
	checks := make(map[string]interface{})

	// Database health check
	if err := s.db.HealthCheck(); err != nil {
		status = "error"
		checks["database"] = map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		}
	} else {
		checks["database"] = map[string]interface{}{
			"status": "ok",
			"stats":  s.db.GetConnectionInfo(),
		}
	}

	if s.redis != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := s.redis.Ping(ctx).Err(); err != nil {
			status = "error"
			checks["redis"] = map[string]interface{}{"status": "error", "error": err.Error()}
		} else {
			checks["redis"] = map[string]interface{}{"status": "ok"}
		}
	}

	response := map[string]interface{}{
		"status": status,
		"time":   time.Now().UTC().Format(time.RFC3339),
		"checks": checks,
		"version": map[string]string{
			"app": s.config.App.Version,
		},
	}

	if status == "ok" {
		return c.JSON(http.StatusOK, response)
	}
	return c.JSON(http.StatusServiceUnavailable, response)
}

func (s *Server) readinessCheck(c echo.Context) error {
	if err := s.db.Ping(); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"reason": "database_not_ready",
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "ready",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// StartMonitor launches the background monitor when it is enabled
func (s *Server) StartMonitor() {
	if !s.config.Monitor.Enabled || s.stop != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.stop = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		s.monitor.Run(ctx)
	}()
	s.logger.Infow("Monitor started", "tick", s.config.Monitor.TickInterval.String())
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server
func (s *Server) Start(address string) error {
	s.logger.Infow("Starting server", "address", address)
	return s.echo.Start(address)
}

// Shutdown stops the HTTP server, then the monitor, then the outbound clients
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server")
	err := s.echo.Shutdown(ctx)

	if s.stop != nil {
		s.stop()
		select {
		case <-s.done:
		case <-ctx.Done():
			s.logger.Warn("Monitor did not stop before the shutdown deadline")
		}
	}

	s.closeClients()
	return err
}

func (s *Server) closeClients() {
	if s.nats != nil {
		if err := s.nats.Close(); err != nil {
			s.logger.WithError(err).Warn("Failed to close NATS publisher")
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.WithError(err).Warn("Failed to close Redis client")
		}
	}
}

// customErrorHandler renders every error as {"error": "..."}
func customErrorHandler(logger *logger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		var (
			code = http.StatusInternalServerError
			msg  = http.StatusText(http.StatusInternalServerError)
		)

		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			msg = fmt.Sprint(he.Message)
			if he.Internal != nil {
				err = fmt.Errorf("%v, %v", err, he.Internal)
			}
		} else if e, ok := err.(validator.ValidationErrors); ok {
			code = http.StatusBadRequest
			msg = e.Error()
		}

		if code >= http.StatusInternalServerError {
			logger.Errorw("Internal server error", "error", err, "path", c.Request().URL.Path)
		}

		// Send response
		if !c.Response().Committed {
			if c.Request().Method == echo.HEAD {
				err = c.NoContent(code)
			} else {
				err = c.JSON(code, httpHandlers.ErrorResponse{Error: msg})
			}
			if err != nil {
				logger.Errorw("Error sending response", "error", err)
			}
		}
	}
}
