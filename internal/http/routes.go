package http

import (
	"context"
	"strconv"
	"time"

	"taskmanager/internal/config"
	"taskmanager/internal/http/handlers"
	"taskmanager/internal/http/middleware"
	"taskmanager/internal/service"
	"taskmanager/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the collaborators the routes are built from.
type Deps struct {
	Config  *config.Config
	Auth    *service.AuthService
	Tasks   *service.TaskService
	Tokens  *service.TokenCodec
	Hub     *ws.Hub
	Storage handlers.Pinger
	Driver  string
}

// NewRouter builds the engine with the common middleware chain and routes.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.AccessLog(), middleware.Metrics())
	r.Use(middleware.CORS(d.Config.AllowedOrigin))
	RegisterRoutes(r, d)
	return r
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	cfg := d.Config
	h := handlers.NewHandler(d.Auth, d.Tasks)
	healthHandler := handlers.NewHealthHandler(handlers.StorageCheck(d.Storage, d.Driver), cfg.AppVersion, healthChecks(d)...)

	// Health checks (no rate limiting)
	r.GET("/health", healthHandler.Health)
	r.GET("/healthz", healthHandler.Liveness)
	r.GET("/readyz", healthHandler.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.Use(middleware.RedisRateLimit(cfg.APIRateLimit, seconds(cfg.APIRateWindow)))

	api.POST("/auth/login", middleware.RedisRateLimit(cfg.AuthRateLimit, seconds(cfg.AuthRateWindow)), h.Login)

	jwt := middleware.JWT(d.Tokens)
	writeRL := middleware.WriteRateLimit(cfg.WriteRateLimit, seconds(cfg.WriteRateWindow))
	commentRL := middleware.CommentRateLimit(cfg.CommentRateLimit, seconds(cfg.CommentRateWindow))

	tasks := api.Group("/tasks")
	{
		tasks.GET("", h.ListTasks)
		tasks.GET("/:name", h.GetTask)
		tasks.POST("/:name/comments", commentRL, h.AddComment)

		tasks.POST("", jwt, writeRL, h.CreateTask)
		tasks.PATCH("/:name", jwt, writeRL, h.UpdateTask)
		tasks.POST("/:name/executors", jwt, writeRL, h.AddExecutor)
		tasks.DELETE("/:name", jwt, writeRL, h.DeleteTask)
	}

	// Task event stream
	if d.Hub != nil {
		r.GET("/ws/tasks", ws.HandleWS(d.Hub, d.Tokens, cfg.AllowedOrigin))
	}
}

func healthChecks(d Deps) []handlers.Check {
	checks := []handlers.Check{{Name: "rate_limiter", Run: middleware.LimiterBackend}}
	if hub := d.Hub; hub != nil {
		checks = append(checks, handlers.Check{
			Name: "event_stream",
			Run: func(context.Context) (string, error) {
				return strconv.Itoa(hub.Count()) + " subscribers", nil
			},
		})
	}
	return checks
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
