// Package photo 提供相册照片管理，照片文件保存在媒体存储的 photos 命名空间
package photo

import (
	"context"
	"mime/multipart"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/weiwangfds/booknotes/internal/database"
	"github.com/weiwangfds/booknotes/internal/errors"
	"github.com/weiwangfds/booknotes/internal/logger"
	"github.com/weiwangfds/booknotes/internal/media"
	"github.com/weiwangfds/booknotes/internal/service/common"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const resourceName = "Photo"

// Service 照片服务接口
type Service interface {
	// List 按创建时间倒序返回照片，跳过文件已丢失的记录
	List(ctx context.Context) ([]database.Photo, error)

	// Get 获取照片
	Get(ctx context.Context, id string) (*database.Photo, error)

	// Upload 保存上传文件并创建照片记录
	Upload(ctx context.Context, req *UploadRequest, file *multipart.FileHeader) (*database.Photo, error)

	// Create 使用已保存的媒体路径创建照片记录
	Create(ctx context.Context, req *CreateRequest) (*database.Photo, error)

	// Import 备份导入使用，媒体文件缺失时允许 url 为空
	Import(ctx context.Context, req *CreateRequest) (*database.Photo, error)

	// Update 只更新标题、描述和标签
	Update(ctx context.Context, id string, req *UpdateRequest) (*database.Photo, error)

	// Delete 删除照片及其文件
	Delete(ctx context.Context, id string) error

	// BatchDelete 批量删除照片及其文件
	BatchDelete(ctx context.Context, ids []string) (int64, error)
}

// UploadRequest 上传表单中的文本字段
type UploadRequest struct {
	Title       string `form:"title"`
	Description string `form:"description"`
	Tags        string `form:"tags"` // 逗号分隔
}

// CreateRequest 创建照片请求
type CreateRequest struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	URL          string   `json:"url"`
	ThumbnailURL string   `json:"thumbnailUrl"`
	Tags         []string `json:"tags"`
}

// Validate url 必填
func (r CreateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Length(0, 255)),
		validation.Field(&r.URL, validation.Required, validation.Length(1, 500)),
		validation.Field(&r.ThumbnailURL, validation.Length(0, 500)),
	)
}

// UpdateRequest 更新照片请求
type UpdateRequest struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Tags        *[]string `json:"tags"`
}

// Validate 校验更新请求
func (r UpdateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Length(0, 255)),
	)
}

// photoService 照片服务实现
type photoService struct {
	db    *gorm.DB
	store *media.Store
}

// NewPhotoService 创建照片服务实例
func NewPhotoService(db *gorm.DB, store *media.Store) Service {
	return &photoService{db: db, store: store}
}

// List 获取照片列表
func (s *photoService) List(ctx context.Context) ([]database.Photo, error) {
	var photos []database.Photo
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&photos).Error; err != nil {
		return nil, errors.Internal(errors.ErrDatabaseQuery, err)
	}

	valid := make([]database.Photo, 0, len(photos))
	for _, p := range photos {
		if media.IsMediaURL(p.URL) && !s.store.Exists(ctx, p.URL) {
			logger.WithFields(map[string]interface{}{
				"photo_id": p.ID,
				"url":      p.URL,
			}).Warn("照片文件不存在，已跳过")
			continue
		}
		normalize(&p)
		valid = append(valid, p)
	}
	return valid, nil
}

// Get 获取照片
func (s *photoService) Get(ctx context.Context, id string) (*database.Photo, error) {
	var photo database.Photo
	if err := s.db.WithContext(ctx).First(&photo, "id = ?", id).Error; err != nil {
		return nil, common.DBError(errors.ErrDatabaseQuery, resourceName, err)
	}
	normalize(&photo)
	return &photo, nil
}

// Upload 上传照片
func (s *photoService) Upload(ctx context.Context, req *UploadRequest, file *multipart.FileHeader) (*database.Photo, error) {
	if file == nil {
		return nil, errors.Validation("photo: cannot be blank")
	}

	url, err := s.store.SaveFileHeader(ctx, media.NamespacePhotos, file)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = file.Filename
	}
	photo, err := s.Create(ctx, &CreateRequest{
		Title:        title,
		Description:  req.Description,
		URL:          url,
		ThumbnailURL: url,
		Tags:         common.SplitTags(req.Tags),
	})
	if err != nil {
		s.store.DeleteQuietly(ctx, url)
		return nil, err
	}
	return photo, nil
}

// Create 创建照片记录
func (s *photoService) Create(ctx context.Context, req *CreateRequest) (*database.Photo, error) {
	if err := common.Validate(req); err != nil {
		return nil, err
	}
	if err := s.checkOwnership(ctx, req); err != nil {
		return nil, err
	}
	return s.insert(ctx, req)
}

// checkOwnership 删除照片会连带删除文件，因此只接受相册目录下且未被其他照片使用的媒体路径
func (s *photoService) checkOwnership(ctx context.Context, req *CreateRequest) error {
	for _, url := range []string{req.URL, req.ThumbnailURL} {
		if err := media.RequireNamespace(url, media.NamespacePhotos); err != nil {
			return err
		}
	}
	if !media.IsMediaURL(req.URL) {
		return nil
	}
	var count int64
	err := s.db.WithContext(ctx).Model(&database.Photo{}).
		Where("url = ? OR thumbnail_url = ?", req.URL, req.URL).
		Count(&count).Error
	if err != nil {
		return errors.Internal(errors.ErrDatabaseQuery, err)
	}
	if count > 0 {
		return errors.Conflict(resourceName).WithDetails(req.URL)
	}
	return nil
}

// Import 导入照片记录，只校验字段长度
func (s *photoService) Import(ctx context.Context, req *CreateRequest) (*database.Photo, error) {
	err := validation.ValidateStruct(req,
		validation.Field(&req.Title, validation.Length(0, 255)),
		validation.Field(&req.URL, validation.Length(0, 500)),
		validation.Field(&req.ThumbnailURL, validation.Length(0, 500)),
	)
	if err != nil {
		return nil, common.ValidationError(err)
	}
	return s.insert(ctx, req)
}

func (s *photoService) insert(ctx context.Context, req *CreateRequest) (*database.Photo, error) {
	photo := &database.Photo{
		Title:        strings.TrimSpace(req.Title),
		Description:  req.Description,
		URL:          req.URL,
		ThumbnailURL: req.ThumbnailURL,
		Tags:         datatypes.JSONSlice[string](common.CleanStrings(req.Tags)),
	}
	if err := s.db.WithContext(ctx).Create(photo).Error; err != nil {
		return nil, common.DBError(errors.ErrDatabaseInsert, resourceName, err)
	}

	logger.WithField("photo_id", photo.ID).Infof("照片已创建: %s", photo.URL)
	return photo, nil
}

// Update 更新照片信息
func (s *photoService) Update(ctx context.Context, id string, req *UpdateRequest) (*database.Photo, error) {
	if err := common.Validate(req); err != nil {
		return nil, err
	}

	photo, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if req.Title != nil {
		updates["title"] = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Tags != nil {
		updates["tags"] = datatypes.JSONSlice[string](common.CleanStrings(*req.Tags))
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(photo).Updates(updates).Error; err != nil {
			return nil, common.DBError(errors.ErrDatabaseUpdate, resourceName, err)
		}
	}
	return s.Get(ctx, id)
}

// Delete 删除照片
func (s *photoService) Delete(ctx context.Context, id string) error {
	photo, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(photo).Error; err != nil {
		return errors.Internal(errors.ErrDatabaseDelete, err)
	}
	s.store.DeleteQuietly(ctx, photo.MediaURLs()...)
	return nil
}

// BatchDelete 批量删除照片
func (s *photoService) BatchDelete(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, errors.Validation("ids: cannot be blank")
	}

	var photos []database.Photo
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&photos).Error; err != nil {
		return 0, errors.Internal(errors.ErrDatabaseQuery, err)
	}
	if len(photos) == 0 {
		return 0, nil
	}

	result := s.db.WithContext(ctx).Where("id IN ?", ids).Delete(&database.Photo{})
	if result.Error != nil {
		return 0, errors.Internal(errors.ErrDatabaseDelete, result.Error)
	}
	for i := range photos {
		s.store.DeleteQuietly(ctx, photos[i].MediaURLs()...)
	}

	logger.WithField("count", result.RowsAffected).Info("照片已批量删除")
	return result.RowsAffected, nil
}

func normalize(p *database.Photo) {
	if p.Tags == nil {
		p.Tags = datatypes.JSONSlice[string]{}
	}
}
