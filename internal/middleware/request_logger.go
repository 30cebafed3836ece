package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/weiwangfds/booknotes/internal/logger"
)

const redacted = "[REDACTED]"

// 需要脱敏的请求头和JSON字段（小写比较）
var (
	sensitiveHeaders = map[string]bool{"authorization": true, "cookie": true}
	sensitiveFields  = map[string]bool{"password": true, "oldpassword": true, "newpassword": true, "token": true}
)

// responseWriter 自定义响应写入器，用于捕获响应数据
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer // 响应体缓冲区
	max  int
}

// Write 捕获不超过 max 字节的响应数据
func (w *responseWriter) Write(b []byte) (int, error) {
	if remain := w.max - w.body.Len(); remain > 0 {
		if len(b) > remain {
			w.body.Write(b[:remain])
		} else {
			w.body.Write(b)
		}
	}
	return w.ResponseWriter.Write(b)
}

// RequestLoggerConfig 请求日志中间件配置
type RequestLoggerConfig struct {
	Enabled         bool     // 是否启用
	SkipPaths       []string // 跳过记录的路径前缀
	MaxBodySize     int      // 最大记录的请求体/响应体大小（字节）
	IncludeHeaders  bool     // 是否包含请求头
	IncludeBody     bool     // 是否包含请求体
	IncludeResponse bool     // 是否包含响应体
}

// DefaultRequestLoggerConfig 默认配置
func DefaultRequestLoggerConfig(enabled bool) *RequestLoggerConfig {
	return &RequestLoggerConfig{
		Enabled:         enabled,
		SkipPaths:       []string{"/health", "/metrics", "/swagger", "/uploads", "/favicon.ico"},
		MaxBodySize:     64 * 1024,
		IncludeHeaders:  true,
		IncludeBody:     true,
		IncludeResponse: true,
	}
}

// RequestLogger 创建详细请求日志中间件，用于开发环境排查问题
// 敏感请求头和密码字段会被脱敏，multipart 请求体和二进制响应不记录
func RequestLogger(cfg *RequestLoggerConfig) gin.HandlerFunc {
	if cfg == nil || !cfg.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		for _, skipPath := range cfg.SkipPaths {
			if strings.HasPrefix(c.Request.URL.Path, skipPath) {
				c.Next()
				return
			}
		}

		startTime := time.Now()

		writer := &responseWriter{
			ResponseWriter: c.Writer,
			body:           &bytes.Buffer{},
			max:            cfg.MaxBodySize,
		}
		if cfg.IncludeResponse {
			c.Writer = writer
		}

		var requestBody interface{}
		if cfg.IncludeBody && c.Request.Body != nil {
			requestBody = readRequestBody(c, cfg.MaxBodySize)
		}

		c.Next()

		duration := time.Since(startTime)
		status := c.Writer.Status()

		fields := logrus.Fields{
			"type":        "request_log",
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"query":       c.Request.URL.RawQuery,
			"client_ip":   c.ClientIP(),
			"status_code": status,
			"duration_ms": duration.Milliseconds(),
		}
		if cfg.IncludeHeaders {
			fields["headers"] = extractHeaders(c.Request.Header)
		}
		if requestBody != nil {
			fields["body"] = requestBody
		}
		if cfg.IncludeResponse && writer.body.Len() > 0 && isJSON(c.Writer.Header().Get("Content-Type")) {
			fields["response_body"] = parseBody(writer.body.Bytes())
		}
		if len(c.Errors) > 0 {
			fields["error"] = c.Errors.String()
		}

		entry := logger.ForRequest(c).WithFields(fields)
		message := fmt.Sprintf("[REQUEST_LOG] %s %s - %d (%dms)", c.Request.Method, c.Request.URL.Path, status, duration.Milliseconds())
		switch {
		case status >= 500:
			entry.Error(message)
		case status >= 400:
			entry.Warn(message)
		default:
			entry.Debug(message)
		}
	}
}

// readRequestBody 读取并还原请求体，multipart 只记录大小
func readRequestBody(c *gin.Context, maxSize int) interface{} {
	contentType := c.GetHeader("Content-Type")
	if strings.HasPrefix(contentType, "multipart/") {
		return fmt.Sprintf("<multipart %d bytes>", c.Request.ContentLength)
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, int64(maxSize)+1))
	if err != nil {
		return "failed to read request body"
	}
	// 将已读部分拼回原始请求体，后续处理器可以完整读取
	c.Request.Body = io.NopCloser(io.MultiReader(bytes.NewReader(body), c.Request.Body))

	if len(body) == 0 {
		return nil
	}
	if len(body) > maxSize {
		return fmt.Sprintf("<body truncated, over %d bytes>", maxSize)
	}
	return parseBody(body)
}

// parseBody 尝试解析JSON并脱敏，失败时返回原始字符串
func parseBody(body []byte) interface{} {
	var jsonBody interface{}
	if err := json.Unmarshal(body, &jsonBody); err == nil {
		return redact(jsonBody)
	}
	return string(body)
}

// redact 递归替换敏感字段
func redact(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		for k, inner := range val {
			if sensitiveFields[strings.ToLower(k)] {
				val[k] = redacted
				continue
			}
			val[k] = redact(inner)
		}
		return val
	case []interface{}:
		for i, inner := range val {
			val[i] = redact(inner)
		}
		return val
	default:
		return v
	}
}

// extractHeaders 提取请求头，敏感头脱敏
func extractHeaders(headers map[string][]string) map[string]string {
	headerMap := make(map[string]string, len(headers))
	for key, values := range headers {
		if len(values) == 0 {
			continue
		}
		if sensitiveHeaders[strings.ToLower(key)] {
			headerMap[key] = redacted
			continue
		}
		headerMap[key] = values[0]
	}
	return headerMap
}

func isJSON(contentType string) bool {
	return strings.Contains(contentType, "application/json")
}
