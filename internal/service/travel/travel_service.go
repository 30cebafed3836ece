// Package travel 提供旅行日记管理，日记图片保存在媒体存储的 travels 命名空间
package travel

import (
	"context"
	stderrors "errors"
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

const (
	resourceName = "Travel"

	// MaxImages 单次上传的图片数量上限
	MaxImages = 20

	// DefaultRating 未提供评分时的默认值
	DefaultRating = 5
)

// Service 旅行日记服务接口
type Service interface {
	// List 按日期倒序返回全部日记
	List(ctx context.Context) ([]database.Travel, error)

	// Get 获取日记
	Get(ctx context.Context, id string) (*database.Travel, error)

	// Create 创建日记，files 中的图片追加到 Images 之后
	Create(ctx context.Context, req *CreateRequest, files []*multipart.FileHeader) (*database.Travel, error)

	// Update 部分更新日记，被移除的图片会被清理
	Update(ctx context.Context, id string, req *UpdateRequest, files []*multipart.FileHeader) (*database.Travel, error)

	// Delete 删除日记及其图片
	Delete(ctx context.Context, id string) error

	// BatchDelete 批量删除日记及其图片
	BatchDelete(ctx context.Context, ids []string) (int64, error)
}

// CreateRequest 创建日记请求
// Images 只由备份导入填写，HTTP 请求中的同名字段被忽略，避免引用其他记录的文件
type CreateRequest struct {
	Title       string   `json:"title"`
	Location    string   `json:"location"`
	Rating      *int     `json:"rating"`
	Date        string   `json:"date"`
	Weather     string   `json:"weather"`
	Transport   string   `json:"transport"`
	Description string   `json:"description"`
	Images      []string `json:"-"`
}

// Validate 标题和日期必填，评分范围 1-5
func (r CreateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, 255)),
		validation.Field(&r.Location, validation.Length(0, 255)),
		validation.Field(&r.Rating, ratingRule),
		validation.Field(&r.Date, validation.Required, common.IsDate),
		validation.Field(&r.Weather, validation.Length(0, 100)),
		validation.Field(&r.Transport, validation.Length(0, 100)),
	)
}

// UpdateRequest 更新日记请求，nil 字段保持原值
// ExistingImages 不为 nil 时只保留其中列出的原有图片，顺序以其为准
type UpdateRequest struct {
	Title          *string   `json:"title"`
	Location       *string   `json:"location"`
	Rating         *int      `json:"rating"`
	Date           *string   `json:"date"`
	Weather        *string   `json:"weather"`
	Transport      *string   `json:"transport"`
	Description    *string   `json:"description"`
	ExistingImages *[]string `json:"existingImages"`
}

// Validate 校验更新请求
func (r UpdateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.NilOrNotEmpty, validation.Length(1, 255)),
		validation.Field(&r.Location, validation.Length(0, 255)),
		validation.Field(&r.Rating, ratingRule),
		validation.Field(&r.Date, validation.NilOrNotEmpty, common.IsDate),
		validation.Field(&r.Weather, validation.Length(0, 100)),
		validation.Field(&r.Transport, validation.Length(0, 100)),
	)
}

// ratingRule 评分为 1-5，未提供时使用默认值
var ratingRule = validation.By(func(value interface{}) error {
	if rating, ok := value.(*int); ok && rating != nil && (*rating < 1 || *rating > 5) {
		return stderrors.New("must be between 1 and 5")
	}
	return nil
})

// travelService 旅行日记服务实现
type travelService struct {
	db    *gorm.DB
	store *media.Store
}

// NewTravelService 创建旅行日记服务实例
func NewTravelService(db *gorm.DB, store *media.Store) Service {
	return &travelService{db: db, store: store}
}

// List 获取全部日记
func (s *travelService) List(ctx context.Context) ([]database.Travel, error) {
	travels := []database.Travel{}
	if err := s.db.WithContext(ctx).Order("date DESC").Order("created_at DESC").Find(&travels).Error; err != nil {
		return nil, errors.Internal(errors.ErrDatabaseQuery, err)
	}
	for i := range travels {
		normalize(&travels[i])
	}
	return travels, nil
}

// Get 获取日记
func (s *travelService) Get(ctx context.Context, id string) (*database.Travel, error) {
	var travel database.Travel
	if err := s.db.WithContext(ctx).First(&travel, "id = ?", id).Error; err != nil {
		return nil, common.DBError(errors.ErrDatabaseQuery, resourceName, err)
	}
	normalize(&travel)
	return &travel, nil
}

// Create 创建日记
func (s *travelService) Create(ctx context.Context, req *CreateRequest, files []*multipart.FileHeader) (*database.Travel, error) {
	if err := common.Validate(req); err != nil {
		return nil, err
	}
	date, err := common.ParseDate(req.Date)
	if err != nil {
		return nil, err
	}

	uploaded, err := s.saveImages(ctx, files)
	if err != nil {
		return nil, err
	}

	rating := DefaultRating
	if req.Rating != nil {
		rating = *req.Rating
	}
	images := append(common.CleanStrings(req.Images), uploaded...)
	travel := &database.Travel{
		Title:       strings.TrimSpace(req.Title),
		Location:    req.Location,
		Rating:      rating,
		Date:        date,
		Weather:     req.Weather,
		Transport:   req.Transport,
		Description: req.Description,
		Images:      datatypes.JSONSlice[string](images),
	}
	if err := s.db.WithContext(ctx).Create(travel).Error; err != nil {
		s.store.DeleteQuietly(ctx, uploaded...)
		return nil, common.DBError(errors.ErrDatabaseInsert, resourceName, err)
	}

	logger.WithFields(map[string]interface{}{
		"travel_id": travel.ID,
		"images":    len(images),
	}).Infof("旅行日记已创建: %s", travel.Title)
	return travel, nil
}

// Update 更新日记
func (s *travelService) Update(ctx context.Context, id string, req *UpdateRequest, files []*multipart.FileHeader) (*database.Travel, error) {
	if err := common.Validate(req); err != nil {
		return nil, err
	}

	travel, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if req.Title != nil {
		updates["title"] = strings.TrimSpace(*req.Title)
	}
	if req.Location != nil {
		updates["location"] = *req.Location
	}
	if req.Rating != nil {
		updates["rating"] = *req.Rating
	}
	if req.Date != nil {
		date, err := common.ParseDate(*req.Date)
		if err != nil {
			return nil, err
		}
		updates["date"] = date
	}
	if req.Weather != nil {
		updates["weather"] = *req.Weather
	}
	if req.Transport != nil {
		updates["transport"] = *req.Transport
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}

	current := []string(travel.Images)
	kept := current
	if req.ExistingImages != nil {
		kept = keepExisting(current, *req.ExistingImages)
	}

	uploaded, err := s.saveImages(ctx, files)
	if err != nil {
		return nil, err
	}
	images := append(append([]string{}, kept...), uploaded...)
	if req.ExistingImages != nil || len(uploaded) > 0 {
		updates["images"] = datatypes.JSONSlice[string](images)
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(travel).Updates(updates).Error; err != nil {
			s.store.DeleteQuietly(ctx, uploaded...)
			return nil, common.DBError(errors.ErrDatabaseUpdate, resourceName, err)
		}
	}

	s.store.DeleteQuietly(ctx, removed(current, kept)...)
	return s.Get(ctx, id)
}

// Delete 删除日记
func (s *travelService) Delete(ctx context.Context, id string) error {
	travel, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(travel).Error; err != nil {
		return errors.Internal(errors.ErrDatabaseDelete, err)
	}
	s.store.DeleteQuietly(ctx, travel.MediaURLs()...)
	return nil
}

// BatchDelete 批量删除日记
func (s *travelService) BatchDelete(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, errors.Validation("ids: cannot be blank")
	}

	var travels []database.Travel
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&travels).Error; err != nil {
		return 0, errors.Internal(errors.ErrDatabaseQuery, err)
	}
	if len(travels) == 0 {
		return 0, nil
	}

	result := s.db.WithContext(ctx).Where("id IN ?", ids).Delete(&database.Travel{})
	if result.Error != nil {
		return 0, errors.Internal(errors.ErrDatabaseDelete, result.Error)
	}
	for i := range travels {
		s.store.DeleteQuietly(ctx, travels[i].MediaURLs()...)
	}

	logger.WithField("count", result.RowsAffected).Info("旅行日记已批量删除")
	return result.RowsAffected, nil
}

// saveImages 保存上传图片，任一失败时回滚已保存的文件
func (s *travelService) saveImages(ctx context.Context, files []*multipart.FileHeader) ([]string, error) {
	if len(files) > MaxImages {
		return nil, errors.Validation("images: at most 20 files")
	}
	urls := make([]string, 0, len(files))
	for _, fh := range files {
		url, err := s.store.SaveFileHeader(ctx, media.NamespaceTravels, fh)
		if err != nil {
			s.store.DeleteQuietly(ctx, urls...)
			return nil, err
		}
		urls = append(urls, url)
	}
	return urls, nil
}

// keepExisting 按 requested 的顺序保留原有图片，忽略不属于该日记的路径
func keepExisting(current, requested []string) []string {
	owned := make(map[string]bool, len(current))
	for _, u := range current {
		owned[u] = true
	}
	kept := make([]string, 0, len(requested))
	for _, u := range requested {
		u = strings.TrimSpace(u)
		if !owned[u] {
			if u != "" {
				logger.WithField("url", u).Warn("忽略不属于该日记的图片")
			}
			continue
		}
		owned[u] = false
		kept = append(kept, u)
	}
	return kept
}

// removed 返回 before 中不在 after 里的路径
func removed(before, after []string) []string {
	keep := make(map[string]struct{}, len(after))
	for _, u := range after {
		keep[u] = struct{}{}
	}
	var out []string
	for _, u := range before {
		if _, ok := keep[u]; !ok {
			out = append(out, u)
		}
	}
	return out
}

func normalize(t *database.Travel) {
	if t.Images == nil {
		t.Images = datatypes.JSONSlice[string]{}
	}
}
