package utils

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// URL相关错误
	ErrInvalidURL          = errors.New("invalid URL")
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	ErrNotYetImplemented   = errors.New("platform extractor not implemented")

	// 提取相关错误
	ErrExtractionFailed  = errors.New("extraction failed")
	ErrSummaryGeneration = errors.New("summary generation failed")

	// 视频相关错误
	ErrVideoNotFound  = errors.New("video not found")
	ErrVideoPrivate   = errors.New("video is private")
	ErrVideoDeleted   = errors.New("video has been deleted")
	ErrGeoRestricted  = errors.New("video is geo-restricted")
	ErrAgeRestricted  = errors.New("video is age-restricted")
	ErrCopyrightClaim = errors.New("video removed due to copyright claim")

	// 系统相关错误
	ErrTimeout         = errors.New("extractor timeout")
	ErrCacheMiss       = errors.New("cache miss")
	ErrToolUnavailable = errors.New("yt-dlp tool unavailable")
	ErrParse           = errors.New("unable to parse yt-dlp output")
	ErrYTDLPFailed     = errors.New("yt-dlp execution failed")

	// 任务相关错误
	ErrJobNotFound = errors.New("download job not found")
	ErrJobTerminal = errors.New("download job already finished")
	ErrJobNotReady = errors.New("download not ready")
	ErrInvalidJob  = errors.New("invalid download request")
)

// ExtractionError 平台提取失败
type ExtractionError struct {
	Platform string
	Reason   string
	Err      error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s extraction failed: %s: %v", e.Platform, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s extraction failed: %s", e.Platform, e.Reason)
}

// Is 使 errors.Is(err, ErrExtractionFailed) 成立
func (e *ExtractionError) Is(target error) bool {
	return target == ErrExtractionFailed
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// ParseError yt-dlp 输出无法解析, 携带原始 stderr
type ParseError struct {
	Stderr string
	Err    error
}

func (e *ParseError) Error() string {
	msg := "unable to extract video information"
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg = fmt.Sprintf("%s (stderr: %s)", msg, s)
	}
	return msg
}

func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ProcessError yt-dlp 非零退出
type ProcessError struct {
	ExitCode int
	Stderr   string
}

func (e *ProcessError) Error() string {
	detail := strings.TrimSpace(e.Stderr)
	if detail == "" {
		detail = "unknown error"
	}
	return fmt.Sprintf("yt-dlp exited with code %d: %s", e.ExitCode, detail)
}

// Unwrap 返回 stderr 映射后的具体错误
func (e *ProcessError) Unwrap() error {
	return MapYTDLPError(e.Stderr)
}

// MapYTDLPError 将yt-dlp的错误输出映射到具体错误
func MapYTDLPError(stderr string) error {
	lowerStderr := strings.ToLower(stderr)

	switch {
	case strings.Contains(lowerStderr, "video unavailable"):
		return ErrVideoNotFound
	case strings.Contains(lowerStderr, "private video"):
		return ErrVideoPrivate
	case strings.Contains(lowerStderr, "has been deleted"):
		return ErrVideoDeleted
	case strings.Contains(lowerStderr, "not available in your country"):
		return ErrGeoRestricted
	case strings.Contains(lowerStderr, "age-restricted"), strings.Contains(lowerStderr, "sign in to confirm your age"):
		return ErrAgeRestricted
	case strings.Contains(lowerStderr, "copyright"):
		return ErrCopyrightClaim
	case strings.Contains(lowerStderr, "unsupported url"):
		return ErrUnsupportedPlatform
	case strings.Contains(lowerStderr, "no module named yt_dlp"), strings.Contains(lowerStderr, "no such file"):
		return ErrToolUnavailable
	case strings.Contains(lowerStderr, "timed out") || strings.Contains(lowerStderr, "timeout"):
		return ErrTimeout
	default:
		return ErrYTDLPFailed
	}
}

// IsVideoUnavailable 判断是否为视频本身不可用(私有/删除/地区限制等)
func IsVideoUnavailable(err error) bool {
	for _, target := range []error{
		ErrVideoNotFound, ErrVideoPrivate, ErrVideoDeleted,
		ErrGeoRestricted, ErrAgeRestricted, ErrCopyrightClaim,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// HTTPStatus 将错误映射到 HTTP 状态码
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidURL), errors.Is(err, ErrUnsupportedPlatform),
		errors.Is(err, ErrInvalidJob), errors.Is(err, ErrJobNotReady):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotYetImplemented):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrExtractionFailed), errors.Is(err, ErrJobNotFound), IsVideoUnavailable(err):
		return http.StatusNotFound
	case errors.Is(err, ErrJobTerminal):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
