package router

import (
	"github.com/weiwangfds/booknotes/config"
	"github.com/weiwangfds/booknotes/internal/media"
	"github.com/weiwangfds/booknotes/internal/metrics"
	"github.com/weiwangfds/booknotes/internal/service/annotation"
	"github.com/weiwangfds/booknotes/internal/service/article"
	"github.com/weiwangfds/booknotes/internal/service/auth"
	"github.com/weiwangfds/booknotes/internal/service/backup"
	"github.com/weiwangfds/booknotes/internal/service/bookmark"
	"github.com/weiwangfds/booknotes/internal/service/category"
	"github.com/weiwangfds/booknotes/internal/service/event"
	"github.com/weiwangfds/booknotes/internal/service/home"
	"github.com/weiwangfds/booknotes/internal/service/photo"
	"github.com/weiwangfds/booknotes/internal/service/travel"
	"gorm.io/gorm"
)

// Services 应用用到的全部服务
type Services struct {
	backup.Services
	Auth     auth.Service
	Exporter *backup.Exporter
	Importer *backup.Importer
}

// NewServices 初始化全部服务，命令行的导出导入和HTTP服务共用
func NewServices(db *gorm.DB, store *media.Store, cfg *config.Config, collector *metrics.Collector) *Services {
	resources := backup.Services{
		Categories:  category.NewCategoryService(db),
		Articles:    article.NewArticleService(db, cfg.Content.SanitizeHTML, collector),
		Annotations: annotation.NewAnnotationService(db),
		Photos:      photo.NewPhotoService(db, store),
		Bookmarks:   bookmark.NewBookmarkService(db),
		Events:      event.NewEventService(db),
		Travels:     travel.NewTravelService(db, store),
		Home:        home.NewHomeService(db, store, cfg.Cache.HomeTTL),
	}
	return &Services{
		Services: resources,
		Auth:     auth.NewAuthService(db, cfg.Auth, collector),
		Exporter: backup.NewExporter(resources, store, collector),
		Importer: backup.NewImporter(resources, store, collector),
	}
}
