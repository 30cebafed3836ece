// Package annotation 提供文章批注管理
// 批注偏移量指向文章的纯文本（去掉HTML标签后的文本），文章修改后读取时会重新定位
package annotation

import (
	"context"
	stderrors "errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/weiwangfds/booknotes/internal/database"
	"github.com/weiwangfds/booknotes/internal/errors"
	"github.com/weiwangfds/booknotes/internal/logger"
	"github.com/weiwangfds/booknotes/internal/service/common"
	"gorm.io/gorm"
)

const resourceName = "Annotation"

// Service 批注服务接口
type Service interface {
	// ListByArticle 返回文章的批注，文章不存在时返回 NotFound
	ListByArticle(ctx context.Context, articleID string) ([]database.Annotation, error)

	// ListAll 返回全部批注并填充文章标题，按创建时间升序
	ListAll(ctx context.Context) ([]database.Annotation, error)

	// Create 创建批注
	Create(ctx context.Context, req *CreateRequest) (*database.Annotation, error)

	// Update 只更新批注内容
	Update(ctx context.Context, id string, req *UpdateRequest) (*database.Annotation, error)

	// Delete 删除批注
	Delete(ctx context.Context, id string) error
}

// CreateRequest 创建批注请求
type CreateRequest struct {
	Article      string `json:"article"`
	SelectedText string `json:"selectedText"`
	StartOffset  *int   `json:"startOffset"`
	EndOffset    *int   `json:"endOffset"`
	Comment      string `json:"comment"`
}

// Validate 全部字段必填，结束位置不能小于起始位置
func (r CreateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Article, validation.Required),
		validation.Field(&r.SelectedText, validation.Required),
		validation.Field(&r.StartOffset, validation.NotNil, validation.Min(0)),
		validation.Field(&r.EndOffset, validation.NotNil, validation.By(func(interface{}) error {
			if r.StartOffset != nil && r.EndOffset != nil && *r.EndOffset < *r.StartOffset {
				return stderrors.New("must be no less than startOffset")
			}
			return nil
		})),
		validation.Field(&r.Comment, validation.Required),
	)
}

// UpdateRequest 更新批注请求
type UpdateRequest struct {
	Comment string `json:"comment"`
}

// Validate 批注内容必填
func (r UpdateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Comment, validation.Required),
	)
}

// annotationService 批注服务实现
type annotationService struct {
	db *gorm.DB
}

// NewAnnotationService 创建批注服务实例
func NewAnnotationService(db *gorm.DB) Service {
	return &annotationService{db: db}
}

// ListByArticle 获取文章批注
func (s *annotationService) ListByArticle(ctx context.Context, articleID string) ([]database.Annotation, error) {
	var article database.Article
	if err := s.db.WithContext(ctx).Select("id", "title", "content").First(&article, "id = ?", articleID).Error; err != nil {
		return nil, common.DBError(errors.ErrDatabaseQuery, "Article", err)
	}

	annotations := []database.Annotation{}
	if err := s.db.WithContext(ctx).Where("article_id = ?", articleID).
		Order("created_at ASC").Find(&annotations).Error; err != nil {
		return nil, errors.Internal(errors.ErrDatabaseQuery, err)
	}

	text := PlainText(article.Content)
	for i := range annotations {
		ReanchorOffsets(text, &annotations[i])
	}
	return annotations, nil
}

// ListAll 获取全部批注
func (s *annotationService) ListAll(ctx context.Context) ([]database.Annotation, error) {
	annotations := []database.Annotation{}
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&annotations).Error; err != nil {
		return nil, errors.Internal(errors.ErrDatabaseQuery, err)
	}
	if len(annotations) == 0 {
		return annotations, nil
	}

	ids := make([]string, 0, len(annotations))
	for _, a := range annotations {
		ids = append(ids, a.ArticleID)
	}
	var articles []database.Article
	if err := s.db.WithContext(ctx).Select("id", "title").Where("id IN ?", ids).Find(&articles).Error; err != nil {
		return nil, errors.Internal(errors.ErrDatabaseQuery, err)
	}
	titles := make(map[string]string, len(articles))
	for _, a := range articles {
		titles[a.ID] = a.Title
	}
	for i := range annotations {
		annotations[i].ArticleTitle = titles[annotations[i].ArticleID]
	}
	return annotations, nil
}

// Create 创建批注
func (s *annotationService) Create(ctx context.Context, req *CreateRequest) (*database.Annotation, error) {
	if err := common.Validate(req); err != nil {
		return nil, err
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&database.Article{}).Where("id = ?", req.Article).Count(&count).Error; err != nil {
		return nil, errors.Internal(errors.ErrDatabaseQuery, err)
	}
	if count == 0 {
		return nil, errors.NotFound("Article")
	}

	annotation := &database.Annotation{
		ArticleID:    req.Article,
		SelectedText: req.SelectedText,
		StartOffset:  *req.StartOffset,
		EndOffset:    *req.EndOffset,
		Comment:      strings.TrimSpace(req.Comment),
	}
	if err := s.db.WithContext(ctx).Create(annotation).Error; err != nil {
		return nil, common.DBError(errors.ErrDatabaseInsert, resourceName, err)
	}

	logger.WithFields(map[string]interface{}{
		"annotation_id": annotation.ID,
		"article_id":    annotation.ArticleID,
	}).Info("批注已创建")
	return annotation, nil
}

// Update 更新批注
func (s *annotationService) Update(ctx context.Context, id string, req *UpdateRequest) (*database.Annotation, error) {
	if err := common.Validate(req); err != nil {
		return nil, err
	}

	var annotation database.Annotation
	if err := s.db.WithContext(ctx).First(&annotation, "id = ?", id).Error; err != nil {
		return nil, common.DBError(errors.ErrDatabaseQuery, resourceName, err)
	}

	if err := s.db.WithContext(ctx).Model(&annotation).Update("comment", strings.TrimSpace(req.Comment)).Error; err != nil {
		return nil, common.DBError(errors.ErrDatabaseUpdate, resourceName, err)
	}
	if err := s.db.WithContext(ctx).First(&annotation, "id = ?", id).Error; err != nil {
		return nil, common.DBError(errors.ErrDatabaseQuery, resourceName, err)
	}
	return &annotation, nil
}

// Delete 删除批注
func (s *annotationService) Delete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&database.Annotation{})
	if result.Error != nil {
		return errors.Internal(errors.ErrDatabaseDelete, result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.NotFound(resourceName)
	}
	return nil
}
