package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	appsvc "widgetrag/internal/app"
	"widgetrag/internal/bootstrap"
	"widgetrag/internal/model"
	"widgetrag/internal/transport/http/handler"
	"widgetrag/internal/transport/http/middleware"
)

// RouterDeps is everything the HTTP layer needs.
type RouterDeps struct {
	GinMode        string
	AppName        string
	Env            string
	JWTSecret      string
	MaxUploadBytes int64
	StartedAt      time.Time
	Logger         *zap.Logger
	HealthChecks   map[string]handler.HealthCheck

	Auth        *appsvc.AuthService
	Documents   *appsvc.DocumentService
	Query       *appsvc.QueryService
	Preferences *appsvc.PreferenceService
	Models      *appsvc.ModelService
	Admin       *appsvc.AdminService
}

func NewRouter(app *bootstrap.App) *gin.Engine {
	return Build(RouterDeps{
		GinMode:        app.Config.App.GinMode,
		AppName:        app.Config.App.Name,
		Env:            app.Config.App.Env,
		JWTSecret:      app.Config.Auth.JWTSecret,
		MaxUploadBytes: int64(app.Config.App.MaxUploadMB) << 20,
		StartedAt:      app.StartedAt,
		Logger:         app.Logger,
		HealthChecks: map[string]handler.HealthCheck{
			"database": app.PingDB,
			"redis":    app.PingRedis,
			"rabbitmq": app.PingRabbitMQ,
		},
		Auth:        app.Services.Auth,
		Documents:   app.Services.Documents,
		Query:       app.Services.Query,
		Preferences: app.Services.Preferences,
		Models:      app.Services.Models,
		Admin:       app.Services.Admin,
	})
}

func Build(deps RouterDeps) *gin.Engine {
	if deps.GinMode != "" {
		gin.SetMode(deps.GinMode)
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(deps.Logger), middleware.Metrics())

	healthHandler := handler.NewHealthHandler(deps.AppName, deps.Env, deps.StartedAt, deps.HealthChecks)
	router.GET("/healthz", healthHandler.Check)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authHandler := handler.NewAuthHandler(deps.Auth)
	docHandler := handler.NewDocumentHandler(deps.Documents, deps.MaxUploadBytes)
	queryHandler := handler.NewQueryHandler(deps.Query)
	modelHandler := handler.NewModelHandler(deps.Models)
	prefHandler := handler.NewPreferenceHandler(deps.Preferences)
	adminHandler := handler.NewAdminHandler(deps.Admin)
	requireAuth := middleware.AuthJWT(deps.JWTSecret)

	v1 := router.Group("/api/v1")
	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", requireAuth, authHandler.Me)

	docGroup := v1.Group("/documents")
	docGroup.Use(requireAuth)
	docGroup.POST("", docHandler.Create)
	docGroup.POST("/upload", docHandler.Upload)
	docGroup.GET("", docHandler.List)
	docGroup.GET("/:id", docHandler.Get)
	docGroup.GET("/:id/chunks", docHandler.Chunks)
	docGroup.GET("/:id/download", docHandler.Download)
	docGroup.DELETE("/:id", docHandler.Delete)
	docGroup.POST("/:id/reprocess", docHandler.Reprocess)
	docGroup.POST("/reprocess", docHandler.ReprocessMany)

	queryGroup := v1.Group("/query")
	queryGroup.Use(requireAuth)
	queryGroup.POST("", queryHandler.Query)
	queryGroup.POST("/stream", queryHandler.Stream)

	modelGroup := v1.Group("/models")
	modelGroup.Use(requireAuth)
	modelGroup.GET("", modelHandler.List)
	modelGroup.GET("/available", modelHandler.Available)
	modelGroup.GET("/providers/:name", modelHandler.ProviderModels)

	prefGroup := v1.Group("/preferences")
	prefGroup.Use(requireAuth)
	prefGroup.GET("/llm", prefHandler.Get)
	prefGroup.PUT("/llm", prefHandler.Update)

	adminGroup := v1.Group("/admin")
	adminGroup.Use(requireAuth, middleware.RequireRole(model.RoleAdmin))
	adminGroup.GET("/settings/system-prompt", adminHandler.GetSystemPrompt)
	adminGroup.PUT("/settings/system-prompt", adminHandler.UpdateSystemPrompt)
	adminGroup.PUT("/users/:id", adminHandler.UpdateUser)

	return router
}
