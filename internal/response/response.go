package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/booknotes/internal/errors"
	"github.com/weiwangfds/booknotes/internal/i18n"
	"github.com/weiwangfds/booknotes/internal/logger"
)

// ErrorResponse 统一错误响应结构体
// @Description API统一错误格式
type ErrorResponse struct {
	// 错误码
	Code int `json:"code" example:"1001"`
	// 错误消息
	Message string `json:"message" example:"参数错误"`
	// 详细错误信息
	Details string `json:"details,omitempty" example:"title is required"`
	// 请求ID，用于链路追踪
	RequestID string `json:"requestId,omitempty" example:"3f1c2a9e-5b7d-4e8f-9a0b-1c2d3e4f5a6b"`
	// 时间戳
	Timestamp int64 `json:"timestamp" example:"1704067200"`
}

// MessageResponse 仅包含消息的响应
// @Description 删除等操作的确认消息
type MessageResponse struct {
	Message string `json:"message" example:"删除成功"`
}

// OK 返回200和原始数据
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Created 返回201和新建的资源
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// Message 返回200和确认消息
func Message(c *gin.Context, message string) {
	c.JSON(http.StatusOK, MessageResponse{Message: message})
}

// Error 将错误映射为HTTP状态码和统一错误格式
// 非 AppError 视为服务器内部错误，原始错误只写日志不返回给客户端
func Error(c *gin.Context, err error) {
	appErr, ok := errors.GetAppError(err)
	if !ok {
		appErr = errors.Internal(errors.ErrInternalServer, err)
		appErr.Details = ""
	}

	status := appErr.HTTPStatus()
	entry := logger.ForRequest(c).WithField("code", appErr.Code)
	if status >= http.StatusInternalServerError {
		if appErr.OriginalError != nil {
			entry = entry.WithError(appErr.OriginalError)
		} else if !ok {
			entry = entry.WithError(err)
		}
		entry.Error(appErr.Message)
		// 内部细节不暴露给客户端
		appErr = errors.New(appErr.Code, appErr.LocalizedMessage(requestLanguage(c)))
	} else {
		entry.Debug(appErr.Error())
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		Code:      int(appErr.Code),
		Message:   appErr.LocalizedMessage(requestLanguage(c)),
		Details:   appErr.Details,
		RequestID: c.GetString("request_id"),
		Timestamp: now().Unix(),
	})
}

// BadRequest 参数错误
func BadRequest(c *gin.Context, details string) {
	Error(c, errors.Validation(details))
}

// requestLanguage 从 Accept-Language 解析响应语言
func requestLanguage(c *gin.Context) string {
	if lang := i18n.Normalize(c.GetHeader("Accept-Language")); lang != "" {
		return lang
	}
	return i18n.GetInstance().GetDefaultLanguage()
}

// now 便于测试替换
var now = time.Now
