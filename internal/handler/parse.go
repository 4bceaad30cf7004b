package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rkobroo/Ownrkoapi/internal/models"
	"github.com/rkobroo/Ownrkoapi/internal/service"
)

// ParseHandler 解析处理器
type ParseHandler struct {
	parser *service.ParserService
}

// NewParseHandler 创建解析处理器
func NewParseHandler(parser *service.ParserService) *ParseHandler {
	return &ParseHandler{parser: parser}
}

// ParseURL GET /api/rko/alldl?url=; nocache=true 跳过缓存
func (h *ParseHandler) ParseURL(c *gin.Context) {
	start := time.Now()

	url := c.Query("url")
	if url == "" {
		models.Error(c, http.StatusBadRequest, "Missing URL parameter",
			"Please provide a 'url' parameter with a valid video URL.", time.Time{})
		return
	}
	skipCache, _ := strconv.ParseBool(c.Query("nocache"))

	data, err := h.parser.ParseURL(c.Request.Context(), url, skipCache)
	if err != nil {
		respondError(c, start, err)
		return
	}
	models.Success(c, start, data)
}

// Validate GET /api/validate?url=
func (h *ParseHandler) Validate(c *gin.Context) {
	start := time.Now()

	url := c.Query("url")
	if url == "" {
		models.BadRequest(c, "Missing URL parameter", "")
		return
	}
	valid, platform, reason := h.parser.ValidateURL(url)
	models.Success(c, start, gin.H{
		"valid":    valid,
		"platform": platform,
		"reason":   reason,
	})
}
