package handler

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rkobroo/Ownrkoapi/internal/models"
	"github.com/rkobroo/Ownrkoapi/internal/service"
	"github.com/rkobroo/Ownrkoapi/internal/storage"
)

// DownloadHandler 下载任务处理器
type DownloadHandler struct {
	downloads  *service.DownloadService
	bufferSize int
	logger     *zap.Logger
}

// NewDownloadHandler 创建下载任务处理器
func NewDownloadHandler(downloads *service.DownloadService, bufferSize int, logger *zap.Logger) *DownloadHandler {
	if bufferSize <= 0 {
		bufferSize = 32 * 1024
	}
	return &DownloadHandler{
		downloads:  downloads,
		bufferSize: bufferSize,
		logger:     logger,
	}
}

type analyzeRequest struct {
	URL string `json:"url" binding:"required"`
}

// Analyze POST /api/analyze
func (h *DownloadHandler) Analyze(c *gin.Context) {
	start := time.Now()

	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		models.Error(c, http.StatusBadRequest, "URL is required", err.Error(), start)
		return
	}

	result, err := h.downloads.Analyze(c.Request.Context(), req.URL)
	if err != nil {
		h.logger.Warn("analysis failed", zap.String("url", req.URL), zap.Error(err))
		respondError(c, start, err)
		return
	}
	models.Success(c, start, result)
}

// List GET /api/downloads
func (h *DownloadHandler) List(c *gin.Context) {
	start := time.Now()

	jobs, err := h.downloads.List(c.Request.Context())
	if err != nil {
		respondError(c, start, err)
		return
	}
	if jobs == nil {
		jobs = []*models.DownloadJob{}
	}
	models.Success(c, start, jobs)
}

// Get GET /api/downloads/:id
func (h *DownloadHandler) Get(c *gin.Context) {
	start := time.Now()

	job, err := h.downloads.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, start, err)
		return
	}
	models.Success(c, start, job)
}

// Create POST /api/downloads
func (h *DownloadHandler) Create(c *gin.Context) {
	start := time.Now()

	var req models.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		models.Error(c, http.StatusBadRequest, "Invalid request data", err.Error(), start)
		return
	}

	job, err := h.downloads.Create(c.Request.Context(), &req)
	if err != nil {
		if job != nil {
			// 任务已创建但解析失败, 记录在任务上
			h.logger.Warn("download job failed at creation", zap.String("job_id", job.ID), zap.Error(err))
		}
		respondError(c, start, err)
		return
	}
	models.Created(c, start, job)
}

// Update PATCH /api/downloads/:id
func (h *DownloadHandler) Update(c *gin.Context) {
	start := time.Now()

	var update models.JobUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		models.Error(c, http.StatusBadRequest, "Invalid request data", err.Error(), start)
		return
	}

	job, err := h.downloads.Update(c.Request.Context(), c.Param("id"), &update)
	if err != nil {
		respondError(c, start, err)
		return
	}
	models.Success(c, start, job)
}

// Delete DELETE /api/downloads/:id
func (h *DownloadHandler) Delete(c *gin.Context) {
	if err := h.downloads.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, time.Now(), err)
		return
	}
	c.Status(http.StatusNoContent)
}

// File GET /api/downloads/:id/download 流式返回已完成的文件
func (h *DownloadHandler) File(c *gin.Context) {
	start := time.Now()

	job, err := h.downloads.File(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, start, err)
		return
	}

	file, err := os.Open(job.FilePath)
	if err != nil {
		respondError(c, start, storage.ErrFileNotFound)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		models.InternalError(c, "failed to get file info")
		return
	}

	name := storage.DownloadFilename(job.Title, job.FilePath, "video")
	c.Header("Content-Description", "File Transfer")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"; filename*=UTF-8''%s", name, url.PathEscape(name)))
	c.Header("Content-Type", storage.ContentType(job.FilePath))
	c.Header("Content-Length", fmt.Sprintf("%d", info.Size()))
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Status(http.StatusOK)

	buffer := make([]byte, h.bufferSize)
	if _, err := io.CopyBuffer(c.Writer, file, buffer); err != nil {
		h.logger.Debug("file stream interrupted", zap.String("job_id", job.ID), zap.Error(err))
	}
}
