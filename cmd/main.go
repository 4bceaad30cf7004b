package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/rkobroo/Ownrkoapi/internal/adapter"
	"github.com/rkobroo/Ownrkoapi/internal/cache"
	"github.com/rkobroo/Ownrkoapi/internal/cleanup"
	"github.com/rkobroo/Ownrkoapi/internal/config"
	"github.com/rkobroo/Ownrkoapi/internal/logger"
	"github.com/rkobroo/Ownrkoapi/internal/middleware"
	"github.com/rkobroo/Ownrkoapi/internal/repository"
	"github.com/rkobroo/Ownrkoapi/internal/router"
	"github.com/rkobroo/Ownrkoapi/internal/service"
	"github.com/rkobroo/Ownrkoapi/internal/storage"
	"github.com/rkobroo/Ownrkoapi/internal/summary"
	"github.com/rkobroo/Ownrkoapi/internal/worker"
	"github.com/rkobroo/Ownrkoapi/internal/ws"
	"github.com/rkobroo/Ownrkoapi/internal/ytdlp"
)

func main() {
	// 1. 加载 .env 与配置
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		if _, err := os.Stat("config/dev.yaml"); err == nil {
			configPath = "config/dev.yaml"
		}
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zl.Sync()

	zl.Info("configuration loaded",
		zap.String("config", configPath),
		zap.Int("port", cfg.Server.Port),
		zap.String("mode", cfg.Server.Mode))

	// 2. 连接 Redis (可选)
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		defer redisClient.Close()

		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			zl.Warn("failed to connect to redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		} else {
			zl.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))
		}
		cancel()
	}

	// 3. 任务存储与下载目录
	store, err := repository.Open(&cfg.Storage, zl)
	if err != nil {
		zl.Fatal("failed to open job store", zap.Error(err))
	}
	defer store.Close()

	files := storage.NewFileManager(cfg.Storage.DownloadsDir, zl)
	if err := files.EnsureDir(); err != nil {
		zl.Fatal("failed to create downloads directory", zap.String("dir", cfg.Storage.DownloadsDir), zap.Error(err))
	}

	// 4. yt-dlp
	locator := ytdlp.NewLocator(&cfg.YTDLP, zl)
	opts := ytdlp.NewOptions(cfg)
	wrapper := ytdlp.NewWrapper(locator, opts, cfg.YTDLP.MaxConcurrent, zl)
	executor := ytdlp.NewExecutor(locator, opts, files, zl)

	// 5. 元数据解析
	httpClient := &http.Client{Timeout: 15 * time.Second}
	registry := adapter.NewRegistry(cfg, httpClient, zl)
	summarizer := summary.New(cfg.Summary, httpClient, zl)

	var metadataCache service.MetadataCache
	if redisClient != nil && cfg.Cache.Enabled {
		metadataCache = cache.NewService(redisClient, cfg.Cache.GetCacheTTL())
	}
	parserService := service.NewParserService(registry, summarizer, metadataCache, cfg.Server.PublicBaseURL, zl)

	// 6. 下载 worker 池与进度推送
	var publisher worker.Publisher = worker.NopPublisher{}
	var subscriber ws.Subscriber
	if redisClient != nil {
		publisher = worker.NewProgressPublisher(redisClient, zl)
		subscriber = ws.NewRedisSubscriber(redisClient)
	} else {
		subscriber = ws.NewStorePoller(store, 500*time.Millisecond, zl)
	}

	pool := worker.NewPool(&cfg.Worker, store, executor, publisher, zl)
	pool.Start()

	downloadService := service.NewDownloadService(store, wrapper, pool, files, zl)
	wsManager := ws.NewManager(subscriber, store, zl)

	// 7. 过期任务清理
	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()
	go cleanup.NewScheduler(&cfg.Cleanup, store, files, zl).Start(bgCtx)

	// 8. 设置路由
	deps := &router.Dependencies{
		Config:          cfg,
		Logger:          zl,
		RedisClient:     redisClient,
		Store:           store,
		Files:           files,
		ParserService:   parserService,
		DownloadService: downloadService,
		WSManager:       wsManager,
		RateLimiter:     middleware.NewRateLimiter(&cfg.RateLimit),
	}
	r := router.SetupRouter(deps)

	// 9. 启动 HTTP 服务器
	srv := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        r,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	go func() {
		zl.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("failed to start server", zap.Error(err))
		}
	}()

	// 10. 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zl.Info("shutting down server")

	// 11. 优雅关闭
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Warn("server forced to shutdown", zap.Error(err))
	}
	stopBackground()
	if err := pool.Stop(shutdownCtx); err != nil {
		zl.Warn("worker pool did not drain", zap.Error(err))
	}

	zl.Info("server stopped")
}
