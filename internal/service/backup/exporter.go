package backup

import (
	"context"
	"io"
	"regexp"
	"sync"
	"time"

	"github.com/weiwangfds/booknotes/internal/database"
	"github.com/weiwangfds/booknotes/internal/errors"
	"github.com/weiwangfds/booknotes/internal/logger"
	"github.com/weiwangfds/booknotes/internal/media"
	"github.com/weiwangfds/booknotes/internal/metrics"
	"github.com/weiwangfds/booknotes/internal/service/annotation"
	"github.com/weiwangfds/booknotes/internal/service/article"
	"github.com/weiwangfds/booknotes/internal/service/bookmark"
	"github.com/weiwangfds/booknotes/internal/service/category"
	"github.com/weiwangfds/booknotes/internal/service/event"
	"github.com/weiwangfds/booknotes/internal/service/home"
	"github.com/weiwangfds/booknotes/internal/service/photo"
	"github.com/weiwangfds/booknotes/internal/service/travel"
	"golang.org/x/sync/errgroup"
)

// fetchConcurrency 导出时并发读取媒体文件的数量
const fetchConcurrency = 8

// contentMediaPattern 匹配文章正文中内嵌的媒体路径
var contentMediaPattern = regexp.MustCompile(`/uploads/(?:home|articles|photos|travels)/[A-Za-z0-9._-]+`)

// Services 导出导入需要的资源服务
type Services struct {
	Categories  category.Service
	Articles    article.Service
	Annotations annotation.Service
	Photos      photo.Service
	Bookmarks   bookmark.Service
	Events      event.Service
	Travels     travel.Service
	Home        home.Service
}

// Exporter 生成备份文件
type Exporter struct {
	services Services
	store    *media.Store
	metrics  *metrics.Collector
	now      func() time.Time
}

// NewExporter 创建导出器
func NewExporter(services Services, store *media.Store, collector *metrics.Collector) *Exporter {
	return &Exporter{services: services, store: store, metrics: collector, now: time.Now}
}

// snapshot 导出时读取的全部记录
type snapshot struct {
	categories  []database.Category
	articles    []database.Article
	annotations []database.Annotation
	photos      []database.Photo
	bookmarks   []database.Bookmark
	events      []database.Event
	travels     []database.Travel
	home        *database.Home
}

// Export 将全部数据和引用的媒体文件写入 w
func (e *Exporter) Export(ctx context.Context, w io.Writer) (err error) {
	start := e.now()
	defer func() {
		e.metrics.BackupRun("export", err == nil)
	}()

	snap, err := e.load(ctx)
	if err != nil {
		return err
	}

	env := &Envelope{
		Version:     Version,
		ExportDate:  formatTime(start),
		Description: Description,
		Data:        e.records(snap),
	}

	files := e.fetchMedia(ctx, collectMedia(snap))

	if err := writeArchive(w, env, files, start); err != nil {
		return errors.Wrap(errors.ErrArchiveWriteFailed, errors.GetErrorMessage(errors.ErrArchiveWriteFailed), err)
	}

	logger.WithFields(map[string]interface{}{
		"articles": len(snap.articles),
		"photos":   len(snap.photos),
		"travels":  len(snap.travels),
		"files":    len(files),
		"elapsed":  time.Since(start).String(),
	}).Info("数据导出完成")
	return nil
}

// load 并发读取各类资源
func (e *Exporter) load(ctx context.Context) (*snapshot, error) {
	snap := &snapshot{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		snap.categories, err = e.services.Categories.List(gctx)
		return err
	})
	g.Go(func() (err error) {
		snap.articles, err = e.services.Articles.List(gctx, article.ListFilter{})
		return err
	})
	g.Go(func() (err error) {
		snap.annotations, err = e.services.Annotations.ListAll(gctx)
		return err
	})
	g.Go(func() (err error) {
		snap.photos, err = e.services.Photos.List(gctx)
		return err
	})
	g.Go(func() (err error) {
		snap.bookmarks, err = e.services.Bookmarks.List(gctx)
		return err
	})
	g.Go(func() (err error) {
		snap.events, err = e.services.Events.List(gctx)
		return err
	})
	g.Go(func() (err error) {
		snap.travels, err = e.services.Travels.List(gctx)
		return err
	})
	g.Go(func() (err error) {
		snap.home, err = e.services.Home.Get(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snap, nil
}

// records 将数据库模型转换为导出记录，分类和文章改为按名称关联
func (e *Exporter) records(snap *snapshot) Data {
	categoryNames := make(map[string]string, len(snap.categories))
	data := Data{
		Categories:  make([]CategoryRecord, 0, len(snap.categories)),
		Articles:    make([]ArticleRecord, 0, len(snap.articles)),
		Photos:      make([]PhotoRecord, 0, len(snap.photos)),
		Bookmarks:   make(map[string][]BookmarkRecord),
		Events:      make([]EventRecord, 0, len(snap.events)),
		Travels:     make([]TravelRecord, 0, len(snap.travels)),
		Annotations: make([]AnnotationRecord, 0, len(snap.annotations)),
	}

	for _, c := range snap.categories {
		categoryNames[c.ID] = c.Name
		data.Categories = append(data.Categories, CategoryRecord{Name: c.Name, Icon: c.Icon, SortOrder: c.SortOrder})
	}

	for _, a := range snap.articles {
		record := ArticleRecord{
			Title:     a.Title,
			Content:   a.Content,
			Tags:      append([]string{}, a.Tags...),
			Views:     a.Views,
			Likes:     a.Likes,
			CreatedAt: formatTime(a.CreatedAt),
			UpdatedAt: formatTime(a.UpdatedAt),
		}
		if a.CategoryID != nil {
			record.CategoryName = categoryNames[*a.CategoryID]
		}
		data.Articles = append(data.Articles, record)
	}

	for _, a := range snap.annotations {
		start, end := a.StartOffset, a.EndOffset
		data.Annotations = append(data.Annotations, AnnotationRecord{
			ArticleTitle: a.ArticleTitle,
			SelectedText: a.SelectedText,
			StartOffset:  &start,
			EndOffset:    &end,
			Comment:      a.Comment,
		})
	}

	for _, p := range snap.photos {
		data.Photos = append(data.Photos, PhotoRecord{
			Title:        p.Title,
			Description:  p.Description,
			URL:          archiveRef(p.URL),
			ThumbnailURL: archiveRef(p.ThumbnailURL),
			Tags:         append([]string{}, p.Tags...),
		})
	}

	for _, b := range snap.bookmarks {
		data.Bookmarks[b.Category] = append(data.Bookmarks[b.Category], BookmarkRecord{
			Title:       b.Title,
			URL:         b.URL,
			Description: b.Description,
			Icon:        b.Icon,
			Category:    b.Category,
			Order:       b.Order,
		})
	}

	for _, ev := range snap.events {
		data.Events = append(data.Events, EventRecord{
			Title:       ev.Title,
			Description: ev.Description,
			Location:    ev.Location,
			Mood:        ev.Mood,
			Date:        formatTime(ev.Date),
		})
	}

	for _, t := range snap.travels {
		rating := t.Rating
		images := make([]string, 0, len(t.Images))
		for _, u := range t.Images {
			images = append(images, archiveRef(u))
		}
		data.Travels = append(data.Travels, TravelRecord{
			Title:       t.Title,
			Location:    t.Location,
			Rating:      &rating,
			Date:        formatTime(t.Date),
			Weather:     t.Weather,
			Transport:   t.Transport,
			Description: t.Description,
			Images:      images,
		})
	}

	if h := snap.home; h != nil {
		stats := h.Stats.Data()
		info := h.SiteInfo.Data()
		data.Home = &HomeRecord{
			Name:         h.Name,
			Subtitle:     h.Subtitle,
			Introduction: h.Introduction,
			AvatarImage:  archiveRef(h.AvatarImage),
			BannerImage:  archiveRef(h.BannerImage),
			SocialLinks:  append([]database.SocialLink{}, h.SocialLinks...),
			Education:    append([]database.Experience{}, h.Education...),
			Work:         append([]database.Experience{}, h.Work...),
			Stats:        &stats,
			SiteInfo:     &info,
		}
	}
	return data
}

// archiveRef 媒体路径改写为备份内路径，外部链接保持不变
func archiveRef(url string) string {
	if p, ok := ArchivePath(url); ok {
		return p
	}
	return url
}

// collectMedia 收集全部被引用的媒体路径，包括文章正文内嵌的图片
func collectMedia(snap *snapshot) []string {
	var urls []string
	for i := range snap.photos {
		urls = append(urls, snap.photos[i].MediaURLs()...)
	}
	for i := range snap.travels {
		urls = append(urls, snap.travels[i].MediaURLs()...)
	}
	if snap.home != nil {
		urls = append(urls, snap.home.MediaURLs()...)
	}
	for _, a := range snap.articles {
		urls = append(urls, contentMediaPattern.FindAllString(a.Content, -1)...)
	}

	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if !media.IsMediaURL(u) {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

// fetchMedia 并发读取媒体文件，读取失败的文件记录日志后跳过
func (e *Exporter) fetchMedia(ctx context.Context, urls []string) map[string][]byte {
	var mu sync.Mutex
	files := make(map[string][]byte, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for _, url := range urls {
		url := url
		g.Go(func() error {
			name, ok := ArchivePath(url)
			if !ok {
				return nil
			}
			data, err := e.store.ReadAll(gctx, url)
			if err != nil {
				logger.WithFields(map[string]interface{}{
					"url":   url,
					"error": err.Error(),
				}).Warn("媒体文件读取失败，已跳过")
				return nil
			}
			mu.Lock()
			files[name] = data
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return files
}
