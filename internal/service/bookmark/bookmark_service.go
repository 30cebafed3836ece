// Package bookmark 提供网址收藏管理，收藏按自由文本分类分组
package bookmark

import (
	"context"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/weiwangfds/booknotes/internal/database"
	"github.com/weiwangfds/booknotes/internal/errors"
	"github.com/weiwangfds/booknotes/internal/logger"
	"github.com/weiwangfds/booknotes/internal/service/common"
	"gorm.io/gorm"
)

const resourceName = "Bookmark"

// linkPattern 只要求链接不含空白，内网地址和浏览器内部链接都可以收藏
var linkPattern = regexp.MustCompile(`^\S+$`)

// Grouped 分类名称到收藏列表的映射
type Grouped map[string][]database.Bookmark

// Service 收藏服务接口
type Service interface {
	// List 按分类、排序值升序返回全部收藏
	List(ctx context.Context) ([]database.Bookmark, error)

	// Grouped 返回按分类分组的收藏
	Grouped(ctx context.Context) (Grouped, error)

	// Categories 返回去重后的分类名称，按名称排序
	Categories(ctx context.Context) ([]string, error)

	// Get 获取收藏
	Get(ctx context.Context, id string) (*database.Bookmark, error)

	// Create 创建收藏
	Create(ctx context.Context, req *CreateRequest) (*database.Bookmark, error)

	// Update 部分更新收藏
	Update(ctx context.Context, id string, req *UpdateRequest) (*database.Bookmark, error)

	// Delete 删除收藏
	Delete(ctx context.Context, id string) error
}

// CreateRequest 创建收藏请求
type CreateRequest struct {
	Title       string `json:"title" example:"Go by Example"`
	URL         string `json:"url" example:"https://gobyexample.com"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Category    string `json:"category" example:"编程"`
	Order       int    `json:"order"`
}

// Validate 标题、链接和分类必填
func (r CreateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, 255)),
		validation.Field(&r.URL, validation.Required, validation.Length(1, 1000), validation.Match(linkPattern)),
		validation.Field(&r.Icon, validation.Length(0, 500)),
		validation.Field(&r.Category, validation.Required, validation.Length(1, 100)),
	)
}

// UpdateRequest 更新收藏请求，nil 字段保持原值
type UpdateRequest struct {
	Title       *string `json:"title"`
	URL         *string `json:"url"`
	Description *string `json:"description"`
	Icon        *string `json:"icon"`
	Category    *string `json:"category"`
	Order       *int    `json:"order"`
}

// Validate 提供的必填字段不能为空
func (r UpdateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.NilOrNotEmpty, validation.Length(1, 255)),
		validation.Field(&r.URL, validation.NilOrNotEmpty, validation.Length(1, 1000), validation.Match(linkPattern)),
		validation.Field(&r.Icon, validation.Length(0, 500)),
		validation.Field(&r.Category, validation.NilOrNotEmpty, validation.Length(1, 100)),
	)
}

// bookmarkService 收藏服务实现
type bookmarkService struct {
	db *gorm.DB
}

// NewBookmarkService 创建收藏服务实例
func NewBookmarkService(db *gorm.DB) Service {
	return &bookmarkService{db: db}
}

// List 获取全部收藏
func (s *bookmarkService) List(ctx context.Context) ([]database.Bookmark, error) {
	bookmarks := []database.Bookmark{}
	if err := s.db.WithContext(ctx).
		Order("category ASC").Order("sort_order ASC").Order("created_at ASC").
		Find(&bookmarks).Error; err != nil {
		return nil, errors.Internal(errors.ErrDatabaseQuery, err)
	}
	return bookmarks, nil
}

// Grouped 按分类分组
func (s *bookmarkService) Grouped(ctx context.Context) (Grouped, error) {
	bookmarks, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return Group(bookmarks), nil
}

// Group 按分类分组，保持组内顺序
func Group(bookmarks []database.Bookmark) Grouped {
	grouped := make(Grouped)
	for _, b := range bookmarks {
		grouped[b.Category] = append(grouped[b.Category], b)
	}
	return grouped
}

// Categories 获取全部分类名称
func (s *bookmarkService) Categories(ctx context.Context) ([]string, error) {
	categories := []string{}
	if err := s.db.WithContext(ctx).Model(&database.Bookmark{}).
		Distinct("category").Order("category ASC").Pluck("category", &categories).Error; err != nil {
		return nil, errors.Internal(errors.ErrDatabaseQuery, err)
	}
	return categories, nil
}

// Get 获取收藏
func (s *bookmarkService) Get(ctx context.Context, id string) (*database.Bookmark, error) {
	var bookmark database.Bookmark
	if err := s.db.WithContext(ctx).First(&bookmark, "id = ?", id).Error; err != nil {
		return nil, common.DBError(errors.ErrDatabaseQuery, resourceName, err)
	}
	return &bookmark, nil
}

// Create 创建收藏
func (s *bookmarkService) Create(ctx context.Context, req *CreateRequest) (*database.Bookmark, error) {
	if err := common.Validate(req); err != nil {
		return nil, err
	}

	bookmark := &database.Bookmark{
		Title:       strings.TrimSpace(req.Title),
		URL:         strings.TrimSpace(req.URL),
		Description: req.Description,
		Icon:        req.Icon,
		Category:    strings.TrimSpace(req.Category),
		Order:       req.Order,
	}
	if err := s.db.WithContext(ctx).Create(bookmark).Error; err != nil {
		return nil, common.DBError(errors.ErrDatabaseInsert, resourceName, err)
	}

	logger.WithField("bookmark_id", bookmark.ID).Infof("收藏已创建: %s", bookmark.Title)
	return bookmark, nil
}

// Update 更新收藏
func (s *bookmarkService) Update(ctx context.Context, id string, req *UpdateRequest) (*database.Bookmark, error) {
	if err := common.Validate(req); err != nil {
		return nil, err
	}

	bookmark, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if req.Title != nil {
		updates["title"] = strings.TrimSpace(*req.Title)
	}
	if req.URL != nil {
		updates["url"] = strings.TrimSpace(*req.URL)
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Icon != nil {
		updates["icon"] = *req.Icon
	}
	if req.Category != nil {
		updates["category"] = strings.TrimSpace(*req.Category)
	}
	if req.Order != nil {
		updates["sort_order"] = *req.Order
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(bookmark).Updates(updates).Error; err != nil {
			return nil, common.DBError(errors.ErrDatabaseUpdate, resourceName, err)
		}
	}
	return s.Get(ctx, id)
}

// Delete 删除收藏
func (s *bookmarkService) Delete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&database.Bookmark{})
	if result.Error != nil {
		return errors.Internal(errors.ErrDatabaseDelete, result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.NotFound(resourceName)
	}
	return nil
}
