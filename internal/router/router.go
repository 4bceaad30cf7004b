package router

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rkobroo/Ownrkoapi/internal/config"
	"github.com/rkobroo/Ownrkoapi/internal/handler"
	"github.com/rkobroo/Ownrkoapi/internal/middleware"
	"github.com/rkobroo/Ownrkoapi/internal/models"
	"github.com/rkobroo/Ownrkoapi/internal/repository"
	"github.com/rkobroo/Ownrkoapi/internal/service"
	"github.com/rkobroo/Ownrkoapi/internal/storage"
	"github.com/rkobroo/Ownrkoapi/internal/ws"
)

// Version 服务版本
const Version = "1.0.0"

// Dependencies 路由依赖
type Dependencies struct {
	Config          *config.Config
	Logger          *zap.Logger
	RedisClient     *redis.Client // 可为 nil
	Store           repository.JobStore
	Files           *storage.FileManager
	ParserService   *service.ParserService
	DownloadService *service.DownloadService
	WSManager       *ws.Manager
	RateLimiter     *middleware.RateLimiter
}

// SetupRouter 设置路由
func SetupRouter(deps *Dependencies) *gin.Engine {
	if deps.Config.Server.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// 全局中间件
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.CORS(&deps.Config.CORS))

	rateLimiter := deps.RateLimiter
	if rateLimiter == nil {
		rateLimiter = middleware.NewRateLimiter(&deps.Config.RateLimit)
	}

	// 创建处理器
	infoHandler := handler.NewInfoHandler(Version)
	parseHandler := handler.NewParseHandler(deps.ParserService)
	downloadHandler := handler.NewDownloadHandler(deps.DownloadService, deps.Config.Storage.BufferSize, deps.Logger)
	healthHandler := handler.NewHealthHandler(deps.RedisClient, deps.Store, deps.Files, deps.WSManager, Version)

	// 健康检查
	r.GET("/", infoHandler.Index)
	r.GET("/health", healthHandler.HealthCheck)
	r.GET("/ready", healthHandler.Ready)
	r.GET("/live", healthHandler.Live)

	api := r.Group("/api")
	api.Use(middleware.IPRateLimit(rateLimiter))
	{
		// 元数据解析
		api.GET("", handler.API(infoHandler, parseHandler))
		api.GET("/rko/alldl", parseHandler.ParseURL)
		api.GET("/validate", parseHandler.Validate)
		api.GET("/download/:type/*rest", infoHandler.SyntheticDownload)

		// 下载任务
		api.POST("/analyze", downloadHandler.Analyze)
		api.GET("/downloads", downloadHandler.List)
		api.POST("/downloads", downloadHandler.Create)
		api.GET("/downloads/:id", downloadHandler.Get)
		api.PATCH("/downloads/:id", downloadHandler.Update)
		api.DELETE("/downloads/:id", downloadHandler.Delete)
		api.GET("/downloads/:id/download", downloadHandler.File)
	}

	// WebSocket 进度推送
	r.GET("/api/ws/progress", deps.WSManager.HandleConnection)

	r.NoRoute(func(c *gin.Context) {
		models.NotFound(c, "Endpoint not found")
	})

	return r
}
