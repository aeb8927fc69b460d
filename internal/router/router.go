package router

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/class-schedule/internal/handler"
	"github.com/noah-isme/class-schedule/internal/middleware"
	"github.com/noah-isme/class-schedule/internal/service"
	"github.com/noah-isme/class-schedule/pkg/config"
	appErrors "github.com/noah-isme/class-schedule/pkg/errors"
	"github.com/noah-isme/class-schedule/pkg/logger"
	reqidmiddleware "github.com/noah-isme/class-schedule/pkg/middleware/requestid"
	"github.com/noah-isme/class-schedule/pkg/response"
	"github.com/noah-isme/class-schedule/web"
)

const eventsPath = "/ws/classes"

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Class   *handler.ClassHandler
	Events  *handler.EventsHandler
	Metrics *handler.MetricsHandler
}

// Setup builds the gin engine with middleware and every route.
func Setup(cfg *config.Config, h *Handlers, metrics *service.MetricsService, logr *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/metrics"))
	r.Use(cors.New(corsConfig(cfg.CORS.AllowedOrigins)))
	r.Use(middleware.Metrics(metrics, eventsPath))
	r.Use(middleware.Timeout(cfg.RequestTimeout, eventsPath))

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	api := r.Group("/api")
	{
		classes := api.Group("/classes")
		classes.GET("", h.Class.List)
		classes.GET("/export", h.Class.Export)
		classes.GET("/:id", h.Class.Get)
		classes.POST("", h.Class.Create)
		classes.PUT("/:id", h.Class.Update)
		classes.DELETE("/:id", h.Class.Delete)
	}

	if h.Events != nil {
		r.GET(eventsPath, h.Events.Stream)
	}

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	assets := http.FileServer(http.FS(web.Static()))
	r.NoRoute(func(c *gin.Context) {
		if c.Request.Method == http.MethodGet && !strings.HasPrefix(c.Request.URL.Path, "/api/") {
			assets.ServeHTTP(c.Writer, c.Request)
			return
		}
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "route not found"))
	})

	return r
}

func corsConfig(allowedOrigins []string) cors.Config {
	cfg := cors.DefaultConfig()
	if len(allowedOrigins) == 0 || (len(allowedOrigins) == 1 && allowedOrigins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = allowedOrigins
	}
	cfg.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	cfg.AllowHeaders = []string{"Origin", "Content-Type", reqidmiddleware.HeaderKey}
	cfg.ExposeHeaders = []string{reqidmiddleware.HeaderKey, "Content-Disposition"}
	cfg.MaxAge = 12 * time.Hour
	return cfg
}
