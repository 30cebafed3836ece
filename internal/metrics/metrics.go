// Package metrics 提供 Prometheus 指标的收集和暴露
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "booknotes"

// Collector Prometheus 指标收集器
// 零值不可用，nil 接收者上的方法为空操作，便于关闭指标时直接传 nil
type Collector struct {
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	mediaSaved    *prometheus.CounterVec
	mediaBytes    *prometheus.CounterVec
	mediaRejected *prometheus.CounterVec
	logins        *prometheus.CounterVec
	backups       *prometheus.CounterVec
	importRecords *prometheus.CounterVec
	articleViews  prometheus.Counter
}

// NewCollector 创建收集器并注册到指定的注册表
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "按方法、路由和状态码统计的HTTP请求数",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP请求处理耗时（秒）",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		mediaSaved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "media_saved_total",
			Help:      "按命名空间统计的已保存媒体文件数",
		}, []string{"namespace"}),
		mediaBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "media_saved_bytes_total",
			Help:      "按命名空间统计的已保存媒体文件字节数",
		}, []string{"namespace"}),
		mediaRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "media_rejected_total",
			Help:      "被拒绝的上传文件数",
		}, []string{"namespace", "reason"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_logins_total",
			Help:      "登录尝试次数",
		}, []string{"result"}),
		backups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backup_runs_total",
			Help:      "导出和导入执行次数",
		}, []string{"operation", "result"}),
		importRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backup_import_records_total",
			Help:      "按资源类型统计的导入记录数",
		}, []string{"resource", "result"}),
		articleViews: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "article_views_total",
			Help:      "文章浏览次数",
		}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpDuration,
		c.mediaSaved,
		c.mediaBytes,
		c.mediaRejected,
		c.logins,
		c.backups,
		c.importRecords,
		c.articleViews,
	)
	return c
}

// ObserveHTTP 记录一次HTTP请求
func (c *Collector) ObserveHTTP(method, route string, status int, duration time.Duration) {
	if c == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// MediaSaved 记录保存的媒体文件
func (c *Collector) MediaSaved(namespace string, size int64) {
	if c == nil {
		return
	}
	c.mediaSaved.WithLabelValues(namespace).Inc()
	c.mediaBytes.WithLabelValues(namespace).Add(float64(size))
}

// MediaRejected 记录被拒绝的上传
func (c *Collector) MediaRejected(namespace, reason string) {
	if c == nil {
		return
	}
	c.mediaRejected.WithLabelValues(namespace, reason).Inc()
}

// LoginAttempt 记录登录结果
func (c *Collector) LoginAttempt(success bool) {
	if c == nil {
		return
	}
	c.logins.WithLabelValues(result(success)).Inc()
}

// BackupRun 记录一次导出或导入
func (c *Collector) BackupRun(operation string, success bool) {
	if c == nil {
		return
	}
	c.backups.WithLabelValues(operation, result(success)).Inc()
}

// ImportRecords 记录某类资源导入的成功和失败数量
func (c *Collector) ImportRecords(resource string, imported, failed int) {
	if c == nil {
		return
	}
	c.importRecords.WithLabelValues(resource, "success").Add(float64(imported))
	c.importRecords.WithLabelValues(resource, "failure").Add(float64(failed))
}

// ArticleViewed 记录文章浏览
func (c *Collector) ArticleViewed() {
	if c == nil {
		return
	}
	c.articleViews.Inc()
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// Handler 返回 Prometheus 抓取使用的HTTP处理器
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
