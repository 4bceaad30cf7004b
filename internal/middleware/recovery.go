package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rkobroo/Ownrkoapi/internal/models"
)

// Recovery Panic 恢复中间件
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic recovered",
					zap.Any("panic", err),
					zap.String("request_id", c.GetString(RequestIDKey)),
					zap.String("path", c.Request.URL.Path),
					zap.Stack("stack"))

				models.AbortWithError(c, http.StatusInternalServerError, "internal server error", c.GetString(RequestIDKey))
			}
		}()
		c.Next()
	}
}
