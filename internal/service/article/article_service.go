// Package article 提供文章管理、浏览计数和批量导入
package article

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/microcosm-cc/bluemonday"
	"github.com/weiwangfds/booknotes/internal/database"
	"github.com/weiwangfds/booknotes/internal/errors"
	"github.com/weiwangfds/booknotes/internal/logger"
	"github.com/weiwangfds/booknotes/internal/metrics"
	"github.com/weiwangfds/booknotes/internal/service/common"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const resourceName = "Article"

// Service 文章服务接口
type Service interface {
	// List 按创建时间倒序返回文章，可按分类筛选
	List(ctx context.Context, filter ListFilter) ([]database.Article, error)

	// Get 获取文章及其分类
	Get(ctx context.Context, id string) (*database.Article, error)

	// Create 创建文章
	Create(ctx context.Context, req *CreateRequest) (*database.Article, error)

	// Update 部分更新文章
	Update(ctx context.Context, id string, req *UpdateRequest) (*database.Article, error)

	// Delete 删除文章并级联删除其批注
	Delete(ctx context.Context, id string) error

	// BatchDelete 批量删除文章，返回实际删除数量
	BatchDelete(ctx context.Context, ids []string) (int64, error)

	// IncrementViews 原子增加浏览量并返回新值
	IncrementViews(ctx context.Context, id string) (int64, error)

	// Import 导入单篇文章，保留传入的浏览量和时间戳
	Import(ctx context.Context, item *ImportItem) (*database.Article, error)

	// BatchImport 逐条导入，单条失败不影响其他文章
	BatchImport(ctx context.Context, items []ImportItem) (*BatchImportResult, error)
}

// ListFilter 列表筛选条件
type ListFilter struct {
	CategoryID string
}

// CreateRequest 创建文章请求
type CreateRequest struct {
	Title    string   `json:"title" example:"Dijkstra 算法笔记"`
	Content  string   `json:"content" example:"<p>...</p>"`
	Category *string  `json:"category"`
	Tags     []string `json:"tags"`
}

// Validate 标题和内容必填
func (r CreateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, 255)),
		validation.Field(&r.Content, validation.Required),
	)
}

// UpdateRequest 更新文章请求，nil 字段保持原值，category 为空字符串时清除分类
type UpdateRequest struct {
	Title    *string   `json:"title"`
	Content  *string   `json:"content"`
	Category *string   `json:"category"`
	Tags     *[]string `json:"tags"`
}

// Validate 提供的标题和内容不能为空
func (r UpdateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.NilOrNotEmpty, validation.Length(1, 255)),
		validation.Field(&r.Content, validation.NilOrNotEmpty),
	)
}

// ImportItem 批量导入的单篇文章
type ImportItem struct {
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Category  string   `json:"category"`
	Tags      []string `json:"tags"`
	Views     int64    `json:"views"`
	Likes     int64    `json:"likes"`
	CreatedAt string   `json:"createdAt"`
	UpdatedAt string   `json:"updatedAt"`
}

// Validate 校验导入项
func (r ImportItem) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, 255)),
		validation.Field(&r.Content, validation.Required),
		validation.Field(&r.Views, validation.Min(int64(0))),
		validation.Field(&r.Likes, validation.Min(int64(0))),
		validation.Field(&r.CreatedAt, common.IsDate),
		validation.Field(&r.UpdatedAt, common.IsDate),
	)
}

// ImportError 导入失败项
type ImportError struct {
	Article string `json:"article"`
	Error   string `json:"error"`
}

// BatchImportResult 批量导入结果
type BatchImportResult struct {
	Message          string             `json:"message"`
	ImportedCount    int                `json:"importedCount"`
	ErrorCount       int                `json:"errorCount"`
	ImportedArticles []database.Article `json:"importedArticles"`
	Errors           []ImportError      `json:"errors,omitempty"`
}

// articleService 文章服务实现
type articleService struct {
	db        *gorm.DB
	sanitizer *bluemonday.Policy
	metrics   *metrics.Collector
}

// NewArticleService 创建文章服务实例
// sanitize 为 true 时使用 UGC 策略清理文章HTML
func NewArticleService(db *gorm.DB, sanitize bool, collector *metrics.Collector) Service {
	s := &articleService{db: db, metrics: collector}
	if sanitize {
		s.sanitizer = NewContentPolicy()
	}
	return s
}

// NewContentPolicy 富文本编辑器输出使用的HTML白名单
func NewContentPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").Globally()
	p.AllowStyles("color", "background-color", "text-align").Globally()
	return p
}

func (s *articleService) sanitize(content string) string {
	if s.sanitizer == nil {
		return content
	}
	return s.sanitizer.Sanitize(content)
}

// List 获取文章列表
func (s *articleService) List(ctx context.Context, filter ListFilter) ([]database.Article, error) {
	query := s.db.WithContext(ctx).Preload("Category")
	if filter.CategoryID != "" {
		query = query.Where("category_id = ?", filter.CategoryID)
	}

	articles := []database.Article{}
	if err := query.Order("created_at DESC").Find(&articles).Error; err != nil {
		return nil, errors.Internal(errors.ErrDatabaseQuery, err)
	}
	for i := range articles {
		normalize(&articles[i])
	}
	return articles, nil
}

// Get 获取文章
func (s *articleService) Get(ctx context.Context, id string) (*database.Article, error) {
	var article database.Article
	if err := s.db.WithContext(ctx).Preload("Category").First(&article, "id = ?", id).Error; err != nil {
		return nil, common.DBError(errors.ErrDatabaseQuery, resourceName, err)
	}
	normalize(&article)
	return &article, nil
}

// Create 创建文章
func (s *articleService) Create(ctx context.Context, req *CreateRequest) (*database.Article, error) {
	if err := common.Validate(req); err != nil {
		return nil, err
	}

	categoryID, err := s.resolveCategory(ctx, common.StringValue(req.Category))
	if err != nil {
		return nil, err
	}

	article := &database.Article{
		Title:      strings.TrimSpace(req.Title),
		Content:    s.sanitize(req.Content),
		CategoryID: categoryID,
		Tags:       datatypes.JSONSlice[string](common.CleanStrings(req.Tags)),
	}
	if err := s.db.WithContext(ctx).Create(article).Error; err != nil {
		return nil, common.DBError(errors.ErrDatabaseInsert, resourceName, err)
	}

	logger.WithField("article_id", article.ID).Infof("文章已创建: %s", article.Title)
	return s.Get(ctx, article.ID)
}

// Update 更新文章
func (s *articleService) Update(ctx context.Context, id string, req *UpdateRequest) (*database.Article, error) {
	if err := common.Validate(req); err != nil {
		return nil, err
	}

	var article database.Article
	if err := s.db.WithContext(ctx).First(&article, "id = ?", id).Error; err != nil {
		return nil, common.DBError(errors.ErrDatabaseQuery, resourceName, err)
	}

	updates := make(map[string]interface{})
	if req.Title != nil {
		updates["title"] = strings.TrimSpace(*req.Title)
	}
	if req.Content != nil {
		updates["content"] = s.sanitize(*req.Content)
	}
	if req.Category != nil {
		categoryID, err := s.resolveCategory(ctx, *req.Category)
		if err != nil {
			return nil, err
		}
		updates["category_id"] = categoryID
	}
	if req.Tags != nil {
		updates["tags"] = datatypes.JSONSlice[string](common.CleanStrings(*req.Tags))
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&article).Updates(updates).Error; err != nil {
			return nil, common.DBError(errors.ErrDatabaseUpdate, resourceName, err)
		}
	}
	return s.Get(ctx, id)
}

// Delete 删除文章
func (s *articleService) Delete(ctx context.Context, id string) error {
	deleted, err := s.deleteIDs(ctx, []string{id})
	if err != nil {
		return err
	}
	if deleted == 0 {
		return errors.NotFound(resourceName)
	}
	return nil
}

// BatchDelete 批量删除文章
func (s *articleService) BatchDelete(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, errors.Validation("ids: cannot be blank")
	}
	return s.deleteIDs(ctx, ids)
}

// deleteIDs 在同一事务中删除批注和文章
func (s *articleService) deleteIDs(ctx context.Context, ids []string) (int64, error) {
	var deleted, annotations int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("article_id IN ?", ids).Delete(&database.Annotation{})
		if result.Error != nil {
			return result.Error
		}
		annotations = result.RowsAffected

		result = tx.Where("id IN ?", ids).Delete(&database.Article{})
		if result.Error != nil {
			return result.Error
		}
		deleted = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, errors.Internal(errors.ErrDatabaseDelete, err)
	}

	if deleted > 0 {
		logger.WithFields(map[string]interface{}{
			"articles":    deleted,
			"annotations": annotations,
		}).Info("文章已删除")
	}
	return deleted, nil
}

// IncrementViews 增加浏览量
func (s *articleService) IncrementViews(ctx context.Context, id string) (int64, error) {
	var views int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&database.Article{}).Where("id = ?", id).
			UpdateColumn("views", gorm.Expr("views + ?", 1))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		var article database.Article
		if err := tx.Select("id", "views").First(&article, "id = ?", id).Error; err != nil {
			return err
		}
		views = article.Views
		return nil
	})
	if err != nil {
		return 0, common.DBError(errors.ErrDatabaseUpdate, resourceName, err)
	}

	s.metrics.ArticleViewed()
	return views, nil
}

// Import 导入单篇文章
func (s *articleService) Import(ctx context.Context, item *ImportItem) (*database.Article, error) {
	if err := common.Validate(item); err != nil {
		return nil, err
	}

	categoryID, err := s.resolveCategory(ctx, item.Category)
	if err != nil {
		return nil, err
	}

	article := &database.Article{
		Title:      strings.TrimSpace(item.Title),
		Content:    s.sanitize(item.Content),
		CategoryID: categoryID,
		Tags:       datatypes.JSONSlice[string](common.CleanStrings(item.Tags)),
		Views:      item.Views,
		Likes:      item.Likes,
	}
	if item.CreatedAt != "" {
		article.CreatedAt, _ = common.ParseDate(item.CreatedAt)
	}
	if item.UpdatedAt != "" {
		article.UpdatedAt, _ = common.ParseDate(item.UpdatedAt)
	} else if !article.CreatedAt.IsZero() {
		article.UpdatedAt = time.Now()
	}

	if err := s.db.WithContext(ctx).Create(article).Error; err != nil {
		return nil, common.DBError(errors.ErrDatabaseInsert, resourceName, err)
	}
	return s.Get(ctx, article.ID)
}

// BatchImport 批量导入文章
func (s *articleService) BatchImport(ctx context.Context, items []ImportItem) (*BatchImportResult, error) {
	if len(items) == 0 {
		return nil, errors.Validation("articles: cannot be blank")
	}

	result := &BatchImportResult{
		Message:          "批量导入完成",
		ImportedArticles: []database.Article{},
	}
	for i := range items {
		article, err := s.Import(ctx, &items[i])
		if err != nil {
			name := items[i].Title
			if name == "" {
				name = "未知"
			}
			result.Errors = append(result.Errors, ImportError{Article: name, Error: common.ErrorText(err)})
			continue
		}
		result.ImportedArticles = append(result.ImportedArticles, *article)
	}
	result.ImportedCount = len(result.ImportedArticles)
	result.ErrorCount = len(result.Errors)

	logger.WithFields(map[string]interface{}{
		"imported": result.ImportedCount,
		"failed":   result.ErrorCount,
	}).Info("文章批量导入完成")
	return result, nil
}

// resolveCategory 空字符串表示未分类，非空时分类必须存在
func (s *articleService) resolveCategory(ctx context.Context, id string) (*string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&database.Category{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return nil, errors.Internal(errors.ErrDatabaseQuery, err)
	}
	if count == 0 {
		return nil, errors.NotFound("Category")
	}
	return &id, nil
}

// normalize 保证 tags 序列化为数组而不是 null
func normalize(article *database.Article) {
	if article.Tags == nil {
		article.Tags = datatypes.JSONSlice[string]{}
	}
}
