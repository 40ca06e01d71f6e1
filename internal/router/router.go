package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/odontogram-api/internal/handler/health"
	"github.com/jwalitptl/odontogram-api/internal/handler/prometheus"
	"github.com/jwalitptl/odontogram-api/internal/middleware"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Router struct {
	engine     *gin.Engine
	session    *middleware.SessionMiddleware
	odontogram Handler
	health     *health.Handler
	metrics    *prometheus.Handler
	config     RouterConfig
}

type RouterConfig struct {
	// RateLimit <= 0 disables rate limiting.
	RateLimit      rate.Limit
	RateBurst      int
	CORSConfig     middleware.CORSConfig
	RequestTimeout time.Duration
	ReleaseMode    bool
}

func NewRouter(
	session *middleware.SessionMiddleware,
	odontogramH Handler,
	healthH *health.Handler,
	metricsH *prometheus.Handler,
	config RouterConfig,
) *Router {
	if config.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New() // Use New() instead of Default() for more control

	r := &Router{
		engine:     engine,
		session:    session,
		odontogram: odontogramH,
		health:     healthH,
		metrics:    metricsH,
		config:     config,
	}

	// Add core middlewares. RequestID goes first so every later log line carries it.
	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(),
		middleware.Logger(),
		middleware.ErrorHandler(),
		metricsH.Middleware(),
		middleware.Timeout(middleware.TimeoutConfig{Duration: config.RequestTimeout}),
	)

	// Add CORS with config
	engine.Use(middleware.CORS(config.CORSConfig))

	return r
}

func (r *Router) Setup() {
	r.health.RegisterRoutes(r.engine)
	r.engine.GET("/metrics", r.metrics.Handler())

	api := r.engine.Group("/api/v1")

	// Add version header
	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	// Every odontogram route needs a session; the limiter keys on it.
	api.Use(r.session.Authenticate())
	if r.config.RateLimit > 0 {
		limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  r.config.RateLimit,
			Burst: r.config.RateBurst,
		})
		api.Use(limiter.RateLimit())
	}

	r.odontogram.RegisterRoutes(api)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
