package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rkobroo/Ownrkoapi/internal/models"
	"github.com/rkobroo/Ownrkoapi/internal/storage"
	"github.com/rkobroo/Ownrkoapi/internal/utils"
)

// respondError 将错误映射为响应信封
func respondError(c *gin.Context, start time.Time, err error) {
	code := utils.HTTPStatus(err)
	message, details := describe(err)
	if errors.Is(err, storage.ErrFileNotFound) {
		code = http.StatusNotFound
		message, details = "File not found", "The downloaded file is no longer available."
	}
	if code == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	models.Error(c, code, message, details, start)
}

func describe(err error) (string, string) {
	switch {
	case errors.Is(err, utils.ErrInvalidURL):
		return "Invalid request parameters", "url: Invalid URL format"
	case errors.Is(err, utils.ErrUnsupportedPlatform):
		return "Unsupported platform", "The provided URL is not from a supported social media platform."
	case errors.Is(err, utils.ErrNotYetImplemented):
		return "Platform not yet supported", "Extraction for this platform is not available."
	case errors.Is(err, utils.ErrInvalidJob):
		return "Invalid request data", err.Error()
	case errors.Is(err, utils.ErrJobNotFound):
		return "Download not found", ""
	case errors.Is(err, utils.ErrJobTerminal):
		return "Download already finished", "Completed or failed downloads cannot be modified."
	case errors.Is(err, utils.ErrJobNotReady):
		return "Download not ready", ""
	case errors.Is(err, utils.ErrExtractionFailed), utils.IsVideoUnavailable(err):
		return "Video not found", "The video could not be found or may be private/deleted."
	case errors.Is(err, utils.ErrToolUnavailable):
		return "Extractor unavailable", err.Error()
	default:
		return "Internal server error", "An unexpected error occurred while processing your request."
	}
}
