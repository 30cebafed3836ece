package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/weiwangfds/booknotes/internal/metrics"
)

// Metrics 记录请求数和耗时，路由标签使用注册时的路由模板以控制基数
func Metrics(collector *metrics.Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		collector.ObserveHTTP(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}
