package router

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	promHandler "github.com/churchdesk/admin-api/internal/handler/prometheus"
	"github.com/churchdesk/admin-api/internal/middleware"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

// Handlers groups the route owners mounted by the router.
type Handlers struct {
	Communication Handler
	Settings      Handler
	Groups        Handler
	Activity      Handler
	Health        Handler
	Metrics       *promHandler.Handler
}

type RouterConfig struct {
	Mode             string
	RateLimitEnabled bool
	RateLimit        rate.Limit
	RateBurst        int
	RequestTimeout   time.Duration
	CORSConfig       middleware.CORSConfig
	MetricsPath      string
	Validation       middleware.ValidationConfig
}

type Router struct {
	engine   *gin.Engine
	handlers Handlers
	config   RouterConfig
}

func NewRouter(handlers Handlers, config RouterConfig) *Router {
	if config.Mode == "" {
		config.Mode = gin.ReleaseMode
	}
	if config.Validation.CustomValidators == nil {
		config.Validation = middleware.DefaultValidationConfig()
	}
	gin.SetMode(config.Mode)

	engine := gin.New()

	r := &Router{
		engine:   engine,
		handlers: handlers,
		config:   config,
	}

	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.ErrorHandler(),
	)
	if handlers.Metrics != nil {
		engine.Use(handlers.Metrics.Middleware())
	}
	engine.Use(
		middleware.Timeout(middleware.TimeoutConfig{Duration: config.RequestTimeout}),
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
		middleware.SizeLimit(middleware.DefaultSizeLimitConfig()),
		middleware.CORS(config.CORSConfig),
	)

	if config.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		})
		engine.Use(rateLimiter.RateLimit())
	}

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, middleware.ErrorResponse{
			Error:   "route not found",
			Code:    "NotFound",
			TraceID: c.GetString(middleware.ContextRequestID),
		})
	})

	return r
}

// Setup registers validators and mounts every route.
func (r *Router) Setup() error {
	if err := middleware.RegisterValidators(r.config.Validation); err != nil {
		return fmt.Errorf("failed to register validators: %w", err)
	}

	root := &r.engine.RouterGroup
	if r.handlers.Health != nil {
		r.handlers.Health.RegisterRoutes(root)
	}
	if r.handlers.Metrics != nil {
		path := r.config.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.engine.GET(path, r.handlers.Metrics.Handler())
	}

	api := r.engine.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	communication := api.Group("/communication")
	communication.Use(middleware.NoStore())
	r.handlers.Communication.RegisterRoutes(communication)
	r.handlers.Settings.RegisterRoutes(communication)
	if r.handlers.Groups != nil {
		r.handlers.Groups.RegisterRoutes(communication)
	}

	r.handlers.Activity.RegisterRoutes(api)
	return nil
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
