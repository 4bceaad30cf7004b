package models

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ErrorBody 错误详情
type ErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// SuccessResponse 成功响应结构
type SuccessResponse struct {
	Status         string      `json:"status"`
	Data           interface{} `json:"data"`
	Timestamp      string      `json:"timestamp"`
	ProcessingTime string      `json:"processing_time"`
}

// ErrorResponse 错误响应结构
type ErrorResponse struct {
	Status         string    `json:"status"`
	Error          ErrorBody `json:"error"`
	Timestamp      string    `json:"timestamp"`
	ProcessingTime string    `json:"processing_time,omitempty"`
}

// Timestamp 当前 ISO-8601 时间
func Timestamp() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// ProcessingTime 格式化耗时, 如 "1.3s"
func ProcessingTime(start time.Time) string {
	return fmt.Sprintf("%.1fs", time.Since(start).Seconds())
}

// Success 成功响应
func Success(c *gin.Context, start time.Time, data interface{}) {
	c.JSON(http.StatusOK, SuccessResponse{
		Status:         "success",
		Data:           data,
		Timestamp:      Timestamp(),
		ProcessingTime: ProcessingTime(start),
	})
}

// Created 创建成功响应
func Created(c *gin.Context, start time.Time, data interface{}) {
	c.JSON(http.StatusCreated, SuccessResponse{
		Status:         "success",
		Data:           data,
		Timestamp:      Timestamp(),
		ProcessingTime: ProcessingTime(start),
	})
}

// Error 错误响应; start 为零值时不输出 processing_time
func Error(c *gin.Context, code int, message, details string, start time.Time) {
	resp := ErrorResponse{
		Status: "error",
		Error: ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
		Timestamp: Timestamp(),
	}
	if !start.IsZero() {
		resp.ProcessingTime = ProcessingTime(start)
	}
	c.JSON(code, resp)
}

// AbortWithError 中间件中使用的错误响应
func AbortWithError(c *gin.Context, code int, message, details string) {
	Error(c, code, message, details, time.Time{})
	c.Abort()
}

// BadRequest 请求错误
func BadRequest(c *gin.Context, message, details string) {
	Error(c, http.StatusBadRequest, message, details, time.Time{})
}

// NotFound 未找到
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, message, "", time.Time{})
}

// InternalError 服务器错误
func InternalError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, message, "", time.Time{})
}
