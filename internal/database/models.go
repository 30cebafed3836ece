// Package database 定义了数据库模型和连接初始化
// 模型按用途拆分到以下文件：
// - content_models.go: 文章相关模型（Category, Article, Annotation）
// - gallery_models.go: 图片相关模型（Photo, Travel）
// - site_models.go: 站点相关模型（Home, Bookmark, Event, User）
package database

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Model 所有实体共用的主键和时间戳
// ID 在创建时由系统生成（UUID），调用方传入的值会被保留
type Model struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// BeforeCreate 在插入前生成主键
func (m *Model) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}

// AllModels 返回需要迁移的全部模型
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&Category{},
		&Article{},
		&Annotation{},
		&Photo{},
		&Bookmark{},
		&Event{},
		&Travel{},
		&Home{},
	}
}
