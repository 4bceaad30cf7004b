package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/rkobroo/Ownrkoapi/internal/models"
	"github.com/rkobroo/Ownrkoapi/internal/repository"
	"github.com/rkobroo/Ownrkoapi/internal/storage"
)

// ConnectionCounter 当前 websocket 连接数
type ConnectionCounter interface {
	ActiveConnections() int64
}

// HealthHandler 健康检查处理器
type HealthHandler struct {
	redisClient *redis.Client
	store       repository.JobStore
	files       *storage.FileManager
	connections ConnectionCounter
	startTime   time.Time
	version     string
}

// NewHealthHandler 创建健康检查处理器; redisClient 可为 nil
func NewHealthHandler(
	redisClient *redis.Client,
	store repository.JobStore,
	files *storage.FileManager,
	connections ConnectionCounter,
	version string,
) *HealthHandler {
	return &HealthHandler{
		redisClient: redisClient,
		store:       store,
		files:       files,
		connections: connections,
		startTime:   time.Now(),
		version:     version,
	}
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status       string             `json:"status"`
	Service      string             `json:"service"`
	Version      string             `json:"version"`
	Timestamp    string             `json:"timestamp"`
	Uptime       int64              `json:"uptime"`
	Dependencies map[string]string  `json:"dependencies"`
	Disk         *storage.DiskUsage `json:"disk,omitempty"`
	WebSockets   int64              `json:"websocket_connections"`
}

// dependencies 检查依赖状态
func (h *HealthHandler) dependencies(ctx context.Context) (map[string]string, bool) {
	deps := make(map[string]string, 2)
	healthy := true

	if err := h.store.Ping(ctx); err != nil {
		deps["store"] = "unhealthy"
		healthy = false
	} else {
		deps["store"] = "healthy"
	}

	switch {
	case h.redisClient == nil:
		deps["redis"] = "disabled"
	case h.redisClient.Ping(ctx).Err() != nil:
		deps["redis"] = "unhealthy"
		healthy = false
	default:
		deps["redis"] = "healthy"
	}
	return deps, healthy
}

// HealthCheck GET /health
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	deps, healthy := h.dependencies(ctx)

	status := "OK"
	statusCode := http.StatusOK
	if !healthy {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	var connections int64
	if h.connections != nil {
		connections = h.connections.ActiveConnections()
	}
	disk, _ := h.files.CheckDiskSpace()

	c.JSON(statusCode, HealthResponse{
		Status:       status,
		Service:      "Ownrkoapi",
		Version:      h.version,
		Timestamp:    models.Timestamp(),
		Uptime:       int64(time.Since(h.startTime).Seconds()),
		Dependencies: deps,
		Disk:         disk,
		WebSockets:   connections,
	})
}

// Ready GET /ready
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	deps, healthy := h.dependencies(ctx)
	if !healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":       "not ready",
			"dependencies": deps,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Live GET /live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}
