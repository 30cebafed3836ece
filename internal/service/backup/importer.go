package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/weiwangfds/booknotes/internal/errors"
	"github.com/weiwangfds/booknotes/internal/logger"
	"github.com/weiwangfds/booknotes/internal/media"
	"github.com/weiwangfds/booknotes/internal/metrics"
	"github.com/weiwangfds/booknotes/internal/service/annotation"
	"github.com/weiwangfds/booknotes/internal/service/article"
	"github.com/weiwangfds/booknotes/internal/service/bookmark"
	"github.com/weiwangfds/booknotes/internal/service/category"
	"github.com/weiwangfds/booknotes/internal/service/common"
	"github.com/weiwangfds/booknotes/internal/service/event"
	"github.com/weiwangfds/booknotes/internal/service/home"
	"github.com/weiwangfds/booknotes/internal/service/photo"
	"github.com/weiwangfds/booknotes/internal/service/travel"
)

// 导入报告中的资源名
const (
	ResourceCategories  = "categories"
	ResourceArticles    = "articles"
	ResourceAnnotations = "annotations"
	ResourcePhotos      = "photos"
	ResourceBookmarks   = "bookmarks"
	ResourceEvents      = "events"
	ResourceTravels     = "travels"
	ResourceHome        = "home"
)

// RecordError 单条记录导入失败的原因
type RecordError struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// ResourceReport 单类资源的导入结果
type ResourceReport struct {
	Imported int           `json:"imported"`
	Failed   int           `json:"failed"`
	Errors   []RecordError `json:"errors,omitempty"`
}

// Report 导入结果
type Report struct {
	Version   string                     `json:"version"`
	Resources map[string]*ResourceReport `json:"resources"`
	Imported  int                        `json:"imported"`
	Failed    int                        `json:"failed"`
	Warnings  []string                   `json:"warnings,omitempty"`
}

func newReport(version string) *Report {
	r := &Report{Version: version, Resources: make(map[string]*ResourceReport)}
	for _, name := range []string{
		ResourceCategories, ResourceArticles, ResourceAnnotations, ResourcePhotos,
		ResourceBookmarks, ResourceEvents, ResourceTravels, ResourceHome,
	} {
		r.Resources[name] = &ResourceReport{}
	}
	return r
}

func (r *Report) success(resource string) {
	r.Resources[resource].Imported++
	r.Imported++
}

func (r *Report) fail(resource, name string, err error) {
	if name == "" {
		name = "未知"
	}
	res := r.Resources[resource]
	res.Failed++
	res.Errors = append(res.Errors, RecordError{Name: name, Error: common.ErrorText(err)})
	r.Failed++
}

func (r *Report) warn(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	r.Warnings = append(r.Warnings, msg)
	logger.Warn(msg)
}

// Importer 从备份文件恢复数据，导入是追加式的，不会清空已有数据
type Importer struct {
	services Services
	store    *media.Store
	metrics  *metrics.Collector
}

// NewImporter 创建导入器
func NewImporter(services Services, store *media.Store, collector *metrics.Collector) *Importer {
	return &Importer{services: services, store: store, metrics: collector}
}

// importRun 单次导入的状态
type importRun struct {
	*Importer
	report *Report
	files  map[string][]byte

	// restored 备份内路径到新媒体路径，同一文件只保存一次
	restored map[string]string
	// categories 分类名到新ID
	categories map[string]string
	// articles 文章标题到新ID，同名文章有多个ID
	articles map[string][]string
}

// Import 读取备份文件并逐条导入
// 备份文件本身无效时返回错误，单条记录失败只记录在报告中
func (im *Importer) Import(ctx context.Context, r io.ReaderAt, size int64) (report *Report, err error) {
	defer func() {
		im.metrics.BackupRun("import", err == nil)
	}()

	env, files, skipped, err := readArchive(r, size)
	if err != nil {
		return nil, err
	}

	run := &importRun{
		Importer:   im,
		report:     newReport(env.Version),
		files:      files,
		restored:   make(map[string]string),
		categories: make(map[string]string),
		articles:   make(map[string][]string),
	}
	for _, msg := range skipped {
		run.report.warn("%s", msg)
	}

	run.importCategories(ctx, env.Data.Categories)
	run.importArticles(ctx, env.Data.Articles)
	run.importAnnotations(ctx, env.Data.Annotations)
	run.importPhotos(ctx, env.Data.Photos)
	run.importBookmarks(ctx, env.Data)
	run.importEvents(ctx, env.Data.Events)
	run.importTravels(ctx, env.Data.Travels)
	run.importHome(ctx, env.Data.Home)

	if err := ctx.Err(); err != nil {
		return run.report, err
	}

	for name, res := range run.report.Resources {
		im.metrics.ImportRecords(name, res.Imported, res.Failed)
	}
	logger.WithFields(map[string]interface{}{
		"version":  env.Version,
		"imported": run.report.Imported,
		"failed":   run.report.Failed,
		"warnings": len(run.report.Warnings),
	}).Info("数据导入完成")
	return run.report, nil
}

// decode 解析单条记录
func decode(raw json.RawMessage, v interface{}) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.Validation("malformed record: " + err.Error())
	}
	return nil
}

func (run *importRun) importCategories(ctx context.Context, items []json.RawMessage) {
	for _, raw := range items {
		var rec CategoryRecord
		if err := decode(raw, &rec); err != nil {
			run.report.fail(ResourceCategories, "", err)
			continue
		}
		name := strings.TrimSpace(rec.Name)

		// 同名分类已存在时复用
		if existing, err := run.services.Categories.FindByName(ctx, name); err == nil {
			run.categories[name] = existing.ID
			run.report.success(ResourceCategories)
			continue
		}

		created, err := run.services.Categories.Create(ctx, &category.CreateRequest{
			Name:      name,
			Icon:      rec.Icon,
			SortOrder: rec.SortOrder,
		})
		if err != nil {
			run.report.fail(ResourceCategories, rec.Name, err)
			continue
		}
		run.categories[created.Name] = created.ID
		run.report.success(ResourceCategories)
	}
}

func (run *importRun) importArticles(ctx context.Context, items []json.RawMessage) {
	for _, raw := range items {
		var rec ArticleRecord
		if err := decode(raw, &rec); err != nil {
			run.report.fail(ResourceArticles, "", err)
			continue
		}

		item := &article.ImportItem{
			Title:     rec.Title,
			Content:   run.rewriteContent(ctx, rec.Content),
			Tags:      rec.Tags,
			Views:     rec.Views,
			Likes:     rec.Likes,
			CreatedAt: rec.CreatedAt,
			UpdatedAt: rec.UpdatedAt,
		}
		if name := strings.TrimSpace(rec.CategoryName); name != "" {
			if id, ok := run.categories[name]; ok {
				item.Category = id
			} else {
				run.report.warn("文章 %q 的分类 %q 不存在，已置为未分类", rec.Title, name)
			}
		}

		created, err := run.services.Articles.Import(ctx, item)
		if err != nil {
			run.report.fail(ResourceArticles, rec.Title, err)
			continue
		}
		run.articles[created.Title] = append(run.articles[created.Title], created.ID)
		run.report.success(ResourceArticles)
	}
}

// rewriteContent 恢复正文内嵌的媒体文件并替换为新路径
func (run *importRun) rewriteContent(ctx context.Context, content string) string {
	return contentMediaPattern.ReplaceAllStringFunc(content, func(url string) string {
		p, ok := ArchivePath(url)
		if !ok {
			return url
		}
		if _, ok := run.files[p]; !ok {
			return url
		}
		if restored := run.restore(ctx, p); restored != "" {
			return restored
		}
		return url
	})
}

func (run *importRun) importAnnotations(ctx context.Context, items []json.RawMessage) {
	for _, raw := range items {
		var rec AnnotationRecord
		if err := decode(raw, &rec); err != nil {
			run.report.fail(ResourceAnnotations, "", err)
			continue
		}

		name := rec.ArticleTitle
		ids := run.articles[strings.TrimSpace(rec.ArticleTitle)]
		switch len(ids) {
		case 0:
			run.report.fail(ResourceAnnotations, name, errors.NotFound("Article"))
			continue
		case 1:
		default:
			run.report.fail(ResourceAnnotations, name, errors.Validation("ambiguous article title: "+rec.ArticleTitle))
			continue
		}

		_, err := run.services.Annotations.Create(ctx, &annotation.CreateRequest{
			Article:      ids[0],
			SelectedText: rec.SelectedText,
			StartOffset:  rec.StartOffset,
			EndOffset:    rec.EndOffset,
			Comment:      rec.Comment,
		})
		if err != nil {
			run.report.fail(ResourceAnnotations, name, err)
			continue
		}
		run.report.success(ResourceAnnotations)
	}
}

func (run *importRun) importPhotos(ctx context.Context, items []json.RawMessage) {
	for _, raw := range items {
		var rec PhotoRecord
		if err := decode(raw, &rec); err != nil {
			run.report.fail(ResourcePhotos, "", err)
			continue
		}

		url := run.mediaRef(ctx, rec.URL)
		thumbnail := run.mediaRef(ctx, rec.ThumbnailURL)
		if thumbnail == "" {
			thumbnail = url
		}
		_, err := run.services.Photos.Import(ctx, &photo.CreateRequest{
			Title:        rec.Title,
			Description:  rec.Description,
			URL:          url,
			ThumbnailURL: thumbnail,
			Tags:         rec.Tags,
		})
		if err != nil {
			run.report.fail(ResourcePhotos, rec.Title, err)
			continue
		}
		run.report.success(ResourcePhotos)
	}
}

func (run *importRun) importBookmarks(ctx context.Context, data rawData) {
	items, err := data.bookmarkRecords()
	if err != nil {
		run.report.fail(ResourceBookmarks, "", errors.Validation("bookmarks: "+err.Error()))
		return
	}
	for _, raw := range items {
		var rec BookmarkRecord
		if err := decode(raw, &rec); err != nil {
			run.report.fail(ResourceBookmarks, "", err)
			continue
		}
		_, err := run.services.Bookmarks.Create(ctx, &bookmark.CreateRequest{
			Title:       rec.Title,
			URL:         rec.URL,
			Description: rec.Description,
			Icon:        rec.Icon,
			Category:    rec.Category,
			Order:       rec.Order,
		})
		if err != nil {
			run.report.fail(ResourceBookmarks, rec.Title, err)
			continue
		}
		run.report.success(ResourceBookmarks)
	}
}

func (run *importRun) importEvents(ctx context.Context, items []json.RawMessage) {
	for _, raw := range items {
		var rec EventRecord
		if err := decode(raw, &rec); err != nil {
			run.report.fail(ResourceEvents, "", err)
			continue
		}
		_, err := run.services.Events.Create(ctx, &event.CreateRequest{
			Title:       rec.Title,
			Description: rec.Description,
			Location:    rec.Location,
			Mood:        rec.Mood,
			Date:        rec.Date,
		})
		if err != nil {
			run.report.fail(ResourceEvents, rec.Title, err)
			continue
		}
		run.report.success(ResourceEvents)
	}
}

func (run *importRun) importTravels(ctx context.Context, items []json.RawMessage) {
	for _, raw := range items {
		var rec TravelRecord
		if err := decode(raw, &rec); err != nil {
			run.report.fail(ResourceTravels, "", err)
			continue
		}

		images := make([]string, 0, len(rec.Images))
		for _, ref := range rec.Images {
			if url := run.mediaRef(ctx, ref); url != "" {
				images = append(images, url)
			}
		}
		_, err := run.services.Travels.Create(ctx, &travel.CreateRequest{
			Title:       rec.Title,
			Location:    rec.Location,
			Rating:      rec.Rating,
			Date:        rec.Date,
			Weather:     rec.Weather,
			Transport:   rec.Transport,
			Description: rec.Description,
			Images:      images,
		}, nil)
		if err != nil {
			run.report.fail(ResourceTravels, rec.Title, err)
			continue
		}
		run.report.success(ResourceTravels)
	}
}

func (run *importRun) importHome(ctx context.Context, raw json.RawMessage) {
	if len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null" {
		return
	}
	var rec HomeRecord
	if err := decode(raw, &rec); err != nil {
		run.report.fail(ResourceHome, "", err)
		return
	}

	req := &home.UpdateRequest{
		Name:         &rec.Name,
		Subtitle:     &rec.Subtitle,
		Introduction: &rec.Introduction,
		Stats:        rec.Stats,
		SiteInfo:     rec.SiteInfo,
	}
	if rec.SocialLinks != nil {
		req.SocialLinks = &rec.SocialLinks
	}
	if rec.Education != nil {
		req.Education = &rec.Education
	}
	if rec.Work != nil {
		req.Work = &rec.Work
	}
	if rec.AvatarImage != "" {
		avatar := run.mediaRef(ctx, rec.AvatarImage)
		req.AvatarImage = &avatar
	}
	if rec.BannerImage != "" {
		banner := run.mediaRef(ctx, rec.BannerImage)
		req.BannerImage = &banner
	}

	if _, err := run.services.Home.Update(ctx, req, home.Files{}); err != nil {
		run.report.fail(ResourceHome, rec.Name, err)
		return
	}
	run.report.success(ResourceHome)
}

// mediaRef 将备份内路径恢复为新的媒体路径
// 外部链接原样返回，备份中缺失的文件返回空字符串
func (run *importRun) mediaRef(ctx context.Context, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if _, _, ok := splitArchivePath(ref); ok {
		return run.restore(ctx, ref)
	}
	if media.IsMediaURL(ref) {
		// 旧格式直接保存了访问路径
		if p, ok := ArchivePath(ref); ok {
			if _, ok := run.files[p]; ok {
				return run.restore(ctx, p)
			}
		}
		if run.store.Exists(ctx, ref) {
			return ref
		}
		run.report.warn("媒体文件 %s 不在备份中，已忽略", ref)
		return ""
	}
	return ref
}

// restore 保存备份内的媒体文件，失败时返回空字符串
func (run *importRun) restore(ctx context.Context, archivePath string) string {
	if url, ok := run.restored[archivePath]; ok {
		return url
	}

	data, ok := run.files[archivePath]
	if !ok {
		run.report.warn("媒体文件 %s 不在备份中，已忽略", archivePath)
		run.restored[archivePath] = ""
		return ""
	}
	ns, name, _ := splitArchivePath(archivePath)
	url, err := run.store.Save(ctx, ns, name, bytes.NewReader(data))
	if err != nil {
		run.report.warn("媒体文件 %s 恢复失败: %s", archivePath, common.ErrorText(err))
		run.restored[archivePath] = ""
		return ""
	}
	run.restored[archivePath] = url
	return url
}

// Summary 返回每类资源导入数量，便于日志和命令行输出
func (r *Report) Summary() string {
	var b strings.Builder
	for _, name := range []string{
		ResourceCategories, ResourceArticles, ResourceAnnotations, ResourcePhotos,
		ResourceBookmarks, ResourceEvents, ResourceTravels, ResourceHome,
	} {
		res := r.Resources[name]
		fmt.Fprintf(&b, "%s: %d imported, %d failed\n", name, res.Imported, res.Failed)
	}
	return b.String()
}
