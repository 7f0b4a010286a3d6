package router

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	authhandler "github.com/jwalitptl/consultorio/internal/handler/auth"
	casefilehandler "github.com/jwalitptl/consultorio/internal/handler/casefile"
	"github.com/jwalitptl/consultorio/internal/handler/health"
	"github.com/jwalitptl/consultorio/internal/handler/master"
	metricshandler "github.com/jwalitptl/consultorio/internal/handler/metrics"
	patienthandler "github.com/jwalitptl/consultorio/internal/handler/patient"
	"github.com/jwalitptl/consultorio/internal/handler/settings"
	"github.com/jwalitptl/consultorio/internal/guard"
	"github.com/jwalitptl/consultorio/internal/middleware"
	"github.com/jwalitptl/consultorio/internal/session"
	"github.com/jwalitptl/consultorio/pkg/metrics"
)

type Handler interface {
	RegisterRoutes(gin.IRouter)
}

type Config struct {
	ReleaseMode      bool
	RateLimitEnabled bool
	RateLimit        rate.Limit
	RateBurst        int
	AllowedOrigins   []string
	MaxBodyBytes     int64
	MaxUploadBytes   int64
}

// Handlers are the mounted resources. Cases may be nil when the administrative module is off;
// the guard keeps its paths unreachable either way.
type Handlers struct {
	Health   *health.Handler
	Metrics  *metricshandler.Handler
	Auth     *authhandler.Handler
	Patients *patienthandler.Handler
	Cases    *casefilehandler.Handler
	Master   *master.Handler
	Settings *settings.Handler
}

type Router struct {
	engine   *gin.Engine
	cfg      Config
	handlers Handlers
	guard    *guard.Guard
	sessions *session.Manager
	metrics  *metrics.Metrics
}

func NewRouter(cfg Config, handlers Handlers, g *guard.Guard, sessions *session.Manager, m *metrics.Metrics) *Router {
	if cfg.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.HandleMethodNotAllowed = true

	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		handlers.Metrics.Middleware(),
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
		middleware.CORS(middleware.DefaultCORSConfig(cfg.AllowedOrigins)),
		middleware.SizeLimit(middleware.DefaultSizeLimitConfig(cfg.MaxBodyBytes, cfg.MaxUploadBytes)),
		middleware.ErrorHandler(),
	)

	return &Router{
		engine:   engine,
		cfg:      cfg,
		handlers: handlers,
		guard:    g,
		sessions: sessions,
		metrics:  m,
	}
}

func (r *Router) Setup() {
	// Probes and metrics sit outside the session guard.
	r.handlers.Health.RegisterRoutes(r.engine)
	r.handlers.Metrics.RegisterRoutes(r.engine)

	app := r.engine.Group("")
	app.Use(middleware.Session(r.guard, r.sessions, r.metrics.GuardRedirects))

	var limited []gin.HandlerFunc
	if r.cfg.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  r.cfg.RateLimit,
			Burst: r.cfg.RateBurst,
		})
		limited = append(limited, limiter.RateLimit())
	}
	r.handlers.Auth.RegisterRoutes(app, limited...)

	for _, h := range []Handler{r.handlers.Patients, r.handlers.Master, r.handlers.Settings} {
		h.RegisterRoutes(app)
	}
	if r.handlers.Cases != nil {
		r.handlers.Cases.RegisterRoutes(app)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
