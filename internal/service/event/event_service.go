// Package event 提供时间线事件管理
package event

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

const resourceName = "Event"

// Service 时间线事件服务接口
type Service interface {
	// List 按日期倒序返回全部事件
	List(ctx context.Context) ([]database.Event, error)

	// Get 获取事件
	Get(ctx context.Context, id string) (*database.Event, error)

	// Create 创建事件
	Create(ctx context.Context, req *CreateRequest) (*database.Event, error)

	// Update 部分更新事件
	Update(ctx context.Context, id string, req *UpdateRequest) (*database.Event, error)

	// Delete 删除事件
	Delete(ctx context.Context, id string) error

	// BatchDelete 批量删除，返回实际删除数量
	BatchDelete(ctx context.Context, ids []string) (int64, error)
}

// CreateRequest 创建事件请求
// Date 支持 RFC3339 和 YYYY-MM-DD
type CreateRequest struct {
	Title       string `json:"title" example:"第一次马拉松"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Mood        string `json:"mood"`
	Date        string `json:"date" example:"2024-04-14"`
}

// Validate 标题和日期必填
func (r CreateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, 255)),
		validation.Field(&r.Location, validation.Length(0, 255)),
		validation.Field(&r.Mood, validation.Length(0, 50)),
		validation.Field(&r.Date, validation.Required, common.IsDate),
	)
}

// UpdateRequest 更新事件请求，nil 字段保持原值
type UpdateRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Location    *string `json:"location"`
	Mood        *string `json:"mood"`
	Date        *string `json:"date"`
}

// Validate 校验更新请求
func (r UpdateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.NilOrNotEmpty, validation.Length(1, 255)),
		validation.Field(&r.Location, validation.Length(0, 255)),
		validation.Field(&r.Mood, validation.Length(0, 50)),
		validation.Field(&r.Date, validation.NilOrNotEmpty, common.IsDate),
	)
}

// eventService 事件服务实现
type eventService struct {
	db *gorm.DB
}

// NewEventService 创建事件服务实例
func NewEventService(db *gorm.DB) Service {
	return &eventService{db: db}
}

// List 获取全部事件
func (s *eventService) List(ctx context.Context) ([]database.Event, error) {
	events := []database.Event{}
	if err := s.db.WithContext(ctx).Order("date DESC").Order("created_at DESC").Find(&events).Error; err != nil {
		return nil, errors.Internal(errors.ErrDatabaseQuery, err)
	}
	return events, nil
}

// Get 获取事件
func (s *eventService) Get(ctx context.Context, id string) (*database.Event, error) {
	var event database.Event
	if err := s.db.WithContext(ctx).First(&event, "id = ?", id).Error; err != nil {
		return nil, common.DBError(errors.ErrDatabaseQuery, resourceName, err)
	}
	return &event, nil
}

// Create 创建事件
func (s *eventService) Create(ctx context.Context, req *CreateRequest) (*database.Event, error) {
	if err := common.Validate(req); err != nil {
		return nil, err
	}
	date, err := common.ParseDate(req.Date)
	if err != nil {
		return nil, err
	}

	event := &database.Event{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Location:    req.Location,
		Mood:        req.Mood,
		Date:        date,
	}
	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		return nil, common.DBError(errors.ErrDatabaseInsert, resourceName, err)
	}

	logger.WithField("event_id", event.ID).Infof("事件已创建: %s", event.Title)
	return event, nil
}

// Update 更新事件
func (s *eventService) Update(ctx context.Context, id string, req *UpdateRequest) (*database.Event, error) {
	if err := common.Validate(req); err != nil {
		return nil, err
	}

	event, err := s.Get(ctx, id)
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
	if req.Location != nil {
		updates["location"] = *req.Location
	}
	if req.Mood != nil {
		updates["mood"] = *req.Mood
	}
	if req.Date != nil {
		date, err := common.ParseDate(*req.Date)
		if err != nil {
			return nil, err
		}
		updates["date"] = date
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(event).Updates(updates).Error; err != nil {
			return nil, common.DBError(errors.ErrDatabaseUpdate, resourceName, err)
		}
	}
	return s.Get(ctx, id)
}

// Delete 删除事件
func (s *eventService) Delete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&database.Event{})
	if result.Error != nil {
		return errors.Internal(errors.ErrDatabaseDelete, result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.NotFound(resourceName)
	}
	return nil
}

// BatchDelete 批量删除事件
func (s *eventService) BatchDelete(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, errors.Validation("ids: cannot be blank")
	}
	result := s.db.WithContext(ctx).Where("id IN ?", ids).Delete(&database.Event{})
	if result.Error != nil {
		return 0, errors.Internal(errors.ErrDatabaseDelete, result.Error)
	}
	return result.RowsAffected, nil
}
