package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rkobroo/Ownrkoapi/internal/models"
)

// endpoints 服务信息中列出的接口
var endpoints = []string{
	"GET /api?url={VIDEO_URL}",
	"GET /api/rko/alldl?url={VIDEO_URL}",
	"GET /api/validate?url={VIDEO_URL}",
	"POST /api/analyze",
	"GET /api/downloads",
	"POST /api/downloads",
	"GET /api/downloads/{id}",
	"PATCH /api/downloads/{id}",
	"DELETE /api/downloads/{id}",
	"GET /api/downloads/{id}/download",
	"GET /api/ws/progress?job_id={id}",
}

// InfoHandler 服务信息处理器
type InfoHandler struct {
	version string
}

// NewInfoHandler 创建服务信息处理器
func NewInfoHandler(version string) *InfoHandler {
	return &InfoHandler{version: version}
}

// Index GET /
func (h *InfoHandler) Index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "success",
		"message":   "RKO API is running",
		"version":   h.version,
		"endpoints": endpoints,
	})
}

// API GET /api: 带 url 参数时解析, 否则返回服务信息
func API(info *InfoHandler, parse *ParseHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Query("url") == "" {
			info.Index(c)
			return
		}
		parse.ParseURL(c)
	}
}

// SyntheticDownload GET /api/download/:type/*rest
// 下载链接的目标: video/<quality>/<id> 或 audio/mp3/<bitrate>/<id>
func (h *InfoHandler) SyntheticDownload(c *gin.Context) {
	start := time.Now()

	kind := c.Param("type")
	parts := strings.Split(strings.Trim(c.Param("rest"), "/"), "/")

	var quality, videoID string
	switch {
	case kind == "video" && len(parts) == 2:
		quality, videoID = parts[0], parts[1]
	case kind == "audio" && len(parts) == 3:
		quality, videoID = parts[0]+"_"+parts[1], parts[2]
	default:
		models.NotFound(c, "Endpoint not found")
		return
	}

	models.Success(c, start, gin.H{
		"message":  "Download endpoint ready",
		"type":     kind,
		"quality":  quality,
		"video_id": videoID,
		"filename": c.Query("filename"),
		"note":     "Use POST /api/downloads to fetch the actual file.",
	})
}
