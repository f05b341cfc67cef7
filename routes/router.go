package routes

import (
	"net/http"
	"strings"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cppla/askboard/config"
	"github.com/cppla/askboard/controllers"
	"github.com/cppla/askboard/middleware"
	"github.com/cppla/askboard/realtime"
	"github.com/cppla/askboard/store"
	"github.com/cppla/askboard/utils"
)

// Deps are the long lived objects the router hands to controllers.
type Deps struct {
	Config  config.AppConfig
	Store   store.Store
	Backend store.Backend
	Hub     *realtime.Hub
	// Events receives domain events; defaults to Hub.
	Events realtime.Broadcaster
}

// accessLog logs one line per request, tagged with the request id.
func accessLog(gl *zap.Logger) gin.HandlerFunc {
	return ginzap.GinzapWithConfig(gl, &ginzap.Config{
		TimeFormat: time.RFC3339,
		UTC:        true,
		Context: func(c *gin.Context) []zapcore.Field {
			return []zapcore.Field{zap.String("request_id", c.GetString(utils.RequestIDKey))}
		},
	})
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(d Deps) *gin.Engine {
	cfg := d.Config
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.RequestID())
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(accessLog(gl))
		r.Use(ginzap.RecoveryWithZap(gl, false))
	} else {
		r.Use(gin.Recovery())
	}

	origins := middleware.NewOriginPolicy(cfg.AllowedOrigins, !cfg.IsProduction())
	r.Use(middleware.CORS(origins))

	events := d.Events
	if events == nil {
		events = d.Hub
	}
	postController := controllers.NewPostController(d.Store, events, cfg.IsDevelopment())
	statsController := controllers.NewStatsController(d.Store, d.Hub, d.Backend)

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})
	r.GET("/ws", d.Hub.Handler(origins.Allow))

	api := r.Group("/api")
	api.GET("/stats", statsController.GetStats)

	posts := api.Group("/posts")
	posts.GET("", postController.ListPosts)
	posts.GET("/:id", postController.GetPost)

	writes := posts.Group("")
	writes.Use(middleware.RateLimitMiddleware(cfg.RateLimitPerMinute))
	writes.POST("", postController.CreatePost)
	writes.POST("/:id/reply", postController.CreateReply)
	writes.POST("/:id/upvote", postController.UpvotePost)
	writes.POST("/:id/answer", postController.MarkAnswered)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found", "")
	})

	return r
}
