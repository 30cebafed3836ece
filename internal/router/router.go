// Package router 组装中间件、处理器和路由
package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/weiwangfds/booknotes/config"
	_ "github.com/weiwangfds/booknotes/docs" // swagger docs
	"github.com/weiwangfds/booknotes/internal/handler"
	"github.com/weiwangfds/booknotes/internal/logger"
	"github.com/weiwangfds/booknotes/internal/media"
	"github.com/weiwangfds/booknotes/internal/metrics"
	"github.com/weiwangfds/booknotes/internal/middleware"
	"gorm.io/gorm"
)

// Router 路由配置
type Router struct {
	engine  *gin.Engine
	limiter *middleware.RateLimiter
}

// Options 路由依赖
type Options struct {
	Config    *config.Config
	DB        *gorm.DB
	Store     *media.Store
	Services  *Services
	Collector *metrics.Collector
	Gatherer  prometheus.Gatherer // 为 nil 时不暴露 /metrics
}

// NewRouter 创建路由实例
func NewRouter(opts Options) *Router {
	cfg := opts.Config
	gin.SetMode(cfg.Server.Mode)

	engine := gin.New()
	limiter := middleware.NewRateLimiter(cfg.Auth.LoginRate, cfg.Auth.LoginBurst)

	svc := opts.Services
	authHandler := handler.NewAuthHandler(svc.Auth)
	categoryHandler := handler.NewCategoryHandler(svc.Categories)
	articleHandler := handler.NewArticleHandler(svc.Articles, opts.Store)
	annotationHandler := handler.NewAnnotationHandler(svc.Annotations)
	photoHandler := handler.NewPhotoHandler(svc.Photos)
	bookmarkHandler := handler.NewBookmarkHandler(svc.Bookmarks)
	eventHandler := handler.NewEventHandler(svc.Events)
	travelHandler := handler.NewTravelHandler(svc.Travels)
	homeHandler := handler.NewHomeHandler(svc.Home)
	mediaHandler := handler.NewMediaHandler(opts.Store)
	backupHandler := handler.NewBackupHandler(svc.Exporter, svc.Importer)

	// 使用中间件
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestID())
	engine.Use(middleware.AccessLog())
	engine.Use(middleware.RequestLogger(middleware.DefaultRequestLoggerConfig(cfg.Server.RequestLog)))
	engine.Use(middleware.Metrics(opts.Collector))
	engine.Use(cors.New(corsConfig(cfg.Server.CORSOrigins)))

	// 上传文件最多在内存中保留 32MB
	engine.MaxMultipartMemory = 32 << 20

	// Swagger文档路由
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 健康检查
	engine.GET("/health", healthHandler(opts.DB, opts.Store))

	if cfg.Metrics.Enabled && opts.Gatherer != nil {
		engine.GET(cfg.Metrics.Path, gin.WrapH(metrics.Handler(opts.Gatherer)))
	}

	// 媒体文件
	engine.GET("/uploads/:namespace/:filename", mediaHandler.Serve)
	engine.HEAD("/uploads/:namespace/:filename", mediaHandler.Serve)

	requireAuth := middleware.Auth(svc.Auth)

	api := engine.Group("/api")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/login", limiter.Middleware(), authHandler.Login)
			authGroup.GET("/me", requireAuth, authHandler.Me)
			authGroup.PUT("/change-password", requireAuth, authHandler.ChangePassword)
		}

		// 分类
		categories := api.Group("/categories")
		{
			categories.GET("", categoryHandler.List)
			categories.GET("/:id", categoryHandler.Get)
			categories.POST("", requireAuth, categoryHandler.Create)
			categories.PUT("/:id", requireAuth, categoryHandler.Update)
			categories.DELETE("/:id", requireAuth, categoryHandler.Delete)
			categories.POST("/batch-delete", requireAuth, categoryHandler.BatchDelete)
		}

		// 文章
		articles := api.Group("/articles")
		{
			articles.GET("", articleHandler.List)
			articles.GET("/:id", articleHandler.Get)
			articles.POST("/:id/views", articleHandler.IncrementViews)
			articles.POST("", requireAuth, articleHandler.Create)
			articles.PUT("/:id", requireAuth, articleHandler.Update)
			articles.DELETE("/:id", requireAuth, articleHandler.Delete)
			articles.POST("/batch-delete", requireAuth, articleHandler.BatchDelete)
			articles.POST("/batch-import", requireAuth, articleHandler.BatchImport)
			articles.POST("/upload-image", requireAuth, articleHandler.UploadImage)
		}

		// 批注
		annotations := api.Group("/annotations")
		{
			annotations.GET("/article/:articleId", annotationHandler.ListByArticle)
			annotations.GET("/all", requireAuth, annotationHandler.ListAll)
			annotations.POST("", requireAuth, annotationHandler.Create)
			annotations.PUT("/:id", requireAuth, annotationHandler.Update)
			annotations.DELETE("/:id", requireAuth, annotationHandler.Delete)
		}

		// 相册
		photos := api.Group("/photos")
		{
			photos.GET("", photoHandler.List)
			photos.GET("/:id", photoHandler.Get)
			photos.POST("", requireAuth, photoHandler.Create)
			photos.PUT("/:id", requireAuth, photoHandler.Update)
			photos.DELETE("/:id", requireAuth, photoHandler.Delete)
			photos.POST("/batch-delete", requireAuth, photoHandler.BatchDelete)
		}

		// 收藏
		bookmarks := api.Group("/bookmarks")
		{
			bookmarks.GET("", bookmarkHandler.Grouped)
			bookmarks.GET("/categories", bookmarkHandler.Categories)
			bookmarks.POST("", requireAuth, bookmarkHandler.Create)
			bookmarks.PUT("/:id", requireAuth, bookmarkHandler.Update)
			bookmarks.DELETE("/:id", requireAuth, bookmarkHandler.Delete)
		}

		// 时间线
		events := api.Group("/events")
		{
			events.GET("", eventHandler.List)
			events.GET("/:id", eventHandler.Get)
			events.POST("", requireAuth, eventHandler.Create)
			events.PUT("/:id", requireAuth, eventHandler.Update)
			events.DELETE("/:id", requireAuth, eventHandler.Delete)
			events.POST("/batch-delete", requireAuth, eventHandler.BatchDelete)
		}

		// 旅行日记
		travels := api.Group("/travels")
		{
			travels.GET("", travelHandler.List)
			travels.GET("/:id", travelHandler.Get)
			travels.POST("", requireAuth, travelHandler.Create)
			travels.PUT("/:id", requireAuth, travelHandler.Update)
			travels.DELETE("/:id", requireAuth, travelHandler.Delete)
			travels.POST("/batch-delete", requireAuth, travelHandler.BatchDelete)
		}

		// 首页
		api.GET("/home", homeHandler.Get)
		api.PUT("/home", requireAuth, homeHandler.Update)

		// 媒体和备份只对管理员开放
		admin := api.Group("", requireAuth)
		{
			admin.GET("/media/:namespace", mediaHandler.List)
			admin.GET("/backup/export", backupHandler.Export)
			admin.POST("/backup/import", backupHandler.Import)
		}
	}

	return &Router{
		engine:  engine,
		limiter: limiter,
	}
}

// healthHandler 检查数据库和媒体存储，任一不可用时返回 503
func healthHandler(db *gorm.DB, store *media.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		checks := gin.H{}
		healthy := true
		if sqlDB, err := db.DB(); err != nil {
			checks["database"] = err.Error()
			healthy = false
		} else if err := sqlDB.PingContext(ctx); err != nil {
			checks["database"] = err.Error()
			healthy = false
		}
		if err := store.Ping(ctx); err != nil {
			checks["storage"] = err.Error()
			healthy = false
		}

		if !healthy {
			logger.WithFields(map[string]interface{}{"checks": checks}).Warn("健康检查失败")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "checks": checks})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// corsConfig 未配置或包含 * 时允许全部来源，令牌通过请求头传递，不需要携带凭证
func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "HEAD"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "Accept-Language", middleware.HeaderRequestID},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition", middleware.HeaderRequestID},
		MaxAge:        24 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

// GetEngine 获取Gin引擎
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}

// Close 停止后台任务
func (r *Router) Close() {
	r.limiter.Stop()
}
