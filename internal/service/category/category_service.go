// Package category 提供文章分类的增删改查
package category

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/weiwangfds/booknotes/internal/database"
	"github.com/weiwangfds/booknotes/internal/errors"
	"github.com/weiwangfds/booknotes/internal/logger"
	"github.com/weiwangfds/booknotes/internal/service/common"
	"gorm.io/gorm"
)

const resourceName = "Category"

// Service 分类服务接口
type Service interface {
	// List 按 sortOrder 升序返回全部分类
	List(ctx context.Context) ([]database.Category, error)

	// Get 根据ID获取分类
	Get(ctx context.Context, id string) (*database.Category, error)

	// FindByName 根据名称获取分类
	FindByName(ctx context.Context, name string) (*database.Category, error)

	// Create 创建分类，名称重复返回冲突错误
	Create(ctx context.Context, req *CreateRequest) (*database.Category, error)

	// Update 部分更新分类
	Update(ctx context.Context, id string, req *UpdateRequest) (*database.Category, error)

	// Delete 删除分类，引用该分类的文章变为未分类
	Delete(ctx context.Context, id string) error

	// BatchDelete 批量删除，返回实际删除数量
	BatchDelete(ctx context.Context, ids []string) (int64, error)
}

// CreateRequest 创建分类请求
type CreateRequest struct {
	Name      string `json:"name" example:"Algorithms"`
	Icon      string `json:"icon" example:"📚"`
	SortOrder int    `json:"sortOrder" example:"1"`
}

// Validate 校验创建请求
func (r CreateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.Icon, validation.Length(0, 100)),
	)
}

// UpdateRequest 更新分类请求，nil 字段保持原值
type UpdateRequest struct {
	Name      *string `json:"name"`
	Icon      *string `json:"icon"`
	SortOrder *int    `json:"sortOrder"`
}

// Validate 校验更新请求
func (r UpdateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.NilOrNotEmpty, validation.Length(1, 100)),
		validation.Field(&r.Icon, validation.Length(0, 100)),
	)
}

// BatchDeleteRequest 批量删除请求
type BatchDeleteRequest struct {
	IDs []string `json:"ids"`
}

// Validate 至少提供一个ID
func (r BatchDeleteRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.IDs, validation.Required),
	)
}

// categoryService 分类服务实现
type categoryService struct {
	db *gorm.DB
}

// NewCategoryService 创建分类服务实例
func NewCategoryService(db *gorm.DB) Service {
	return &categoryService{db: db}
}

// List 获取全部分类
func (s *categoryService) List(ctx context.Context) ([]database.Category, error) {
	categories := []database.Category{}
	if err := s.db.WithContext(ctx).Order("sort_order ASC").Order("created_at ASC").Find(&categories).Error; err != nil {
		return nil, errors.Internal(errors.ErrDatabaseQuery, err)
	}
	return categories, nil
}

// Get 获取分类
func (s *categoryService) Get(ctx context.Context, id string) (*database.Category, error) {
	var category database.Category
	if err := s.db.WithContext(ctx).First(&category, "id = ?", id).Error; err != nil {
		return nil, common.DBError(errors.ErrDatabaseQuery, resourceName, err)
	}
	return &category, nil
}

// FindByName 按名称获取分类
func (s *categoryService) FindByName(ctx context.Context, name string) (*database.Category, error) {
	var category database.Category
	if err := s.db.WithContext(ctx).Where("name = ?", strings.TrimSpace(name)).First(&category).Error; err != nil {
		return nil, common.DBError(errors.ErrDatabaseQuery, resourceName, err)
	}
	return &category, nil
}

// Create 创建分类
func (s *categoryService) Create(ctx context.Context, req *CreateRequest) (*database.Category, error) {
	if err := common.Validate(req); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if err := s.ensureUniqueName(ctx, name, ""); err != nil {
		return nil, err
	}

	category := &database.Category{
		Name:      name,
		Icon:      req.Icon,
		SortOrder: req.SortOrder,
	}
	if err := s.db.WithContext(ctx).Create(category).Error; err != nil {
		return nil, common.DBError(errors.ErrDatabaseInsert, resourceName, err)
	}

	logger.WithField("category_id", category.ID).Infof("分类已创建: %s", category.Name)
	return category, nil
}

// Update 更新分类
func (s *categoryService) Update(ctx context.Context, id string, req *UpdateRequest) (*database.Category, error) {
	if err := common.Validate(req); err != nil {
		return nil, err
	}

	category, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name != category.Name {
			if err := s.ensureUniqueName(ctx, name, id); err != nil {
				return nil, err
			}
		}
		updates["name"] = name
	}
	if req.Icon != nil {
		updates["icon"] = *req.Icon
	}
	if req.SortOrder != nil {
		updates["sort_order"] = *req.SortOrder
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(category).Updates(updates).Error; err != nil {
			return nil, common.DBError(errors.ErrDatabaseUpdate, resourceName, err)
		}
	}
	return s.Get(ctx, id)
}

// Delete 删除分类
func (s *categoryService) Delete(ctx context.Context, id string) error {
	deleted, err := s.deleteIDs(ctx, []string{id})
	if err != nil {
		return err
	}
	if deleted == 0 {
		return errors.NotFound(resourceName)
	}
	return nil
}

// BatchDelete 批量删除分类
func (s *categoryService) BatchDelete(ctx context.Context, ids []string) (int64, error) {
	if err := common.Validate(BatchDeleteRequest{IDs: ids}); err != nil {
		return 0, err
	}
	return s.deleteIDs(ctx, ids)
}

// deleteIDs 在事务中清空文章引用并删除分类
func (s *categoryService) deleteIDs(ctx context.Context, ids []string) (int64, error) {
	var deleted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&database.Article{}).Where("category_id IN ?", ids).
			Update("category_id", gorm.Expr("NULL")).Error; err != nil {
			return err
		}
		result := tx.Where("id IN ?", ids).Delete(&database.Category{})
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
		logger.WithField("count", deleted).Info("分类已删除")
	}
	return deleted, nil
}

// ensureUniqueName 检查名称是否被其他分类占用
func (s *categoryService) ensureUniqueName(ctx context.Context, name, excludeID string) error {
	query := s.db.WithContext(ctx).Model(&database.Category{}).Where("name = ?", name)
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return errors.Internal(errors.ErrDatabaseQuery, err)
	}
	if count > 0 {
		return errors.Conflict(resourceName).WithDetails("name: " + name)
	}
	return nil
}
