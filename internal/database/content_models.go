package database

import (
	"gorm.io/datatypes"
)

// Category 文章分类
type Category struct {
	Model
	Name      string `gorm:"uniqueIndex;not null;size:100" json:"name"` // 分类名称，唯一
	Icon      string `gorm:"size:100" json:"icon"`                      // 图标
	SortOrder int    `gorm:"default:0;index" json:"sortOrder"`          // 排序值，升序
}

// TableName 指定Category模型对应的数据库表名
func (Category) TableName() string {
	return "categories"
}

// Article 文章
// Content 为富文本HTML，删除文章时需要级联删除其批注
type Article struct {
	Model
	Title      string                      `gorm:"not null;size:255;index" json:"title"`
	Content    string                      `gorm:"type:text;not null" json:"content"`
	CategoryID *string                     `gorm:"size:36;index" json:"category"`
	Category   *Category                   `gorm:"foreignKey:CategoryID;constraint:OnDelete:SET NULL" json:"categoryInfo,omitempty"`
	Tags       datatypes.JSONSlice[string] `json:"tags"`
	Views      int64                       `gorm:"default:0" json:"views"`
	Likes      int64                       `gorm:"default:0" json:"likes"`
}

// TableName 指定Article模型对应的数据库表名
func (Article) TableName() string {
	return "articles"
}

// Annotation 文章批注
// StartOffset/EndOffset 指向文章纯文本中的位置，文章内容修改后可能失效
type Annotation struct {
	Model
	ArticleID    string `gorm:"size:36;not null;index" json:"article"`   // 所属文章ID
	SelectedText string `gorm:"type:text;not null" json:"selectedText"` // 选中的原文
	StartOffset  int    `gorm:"not null" json:"startOffset"`            // 起始位置
	EndOffset    int    `gorm:"not null" json:"endOffset"`              // 结束位置
	Comment      string `gorm:"type:text;not null" json:"comment"`      // 批注内容
	ArticleTitle string `gorm:"-" json:"articleTitle,omitempty"`        // 所属文章标题，仅用于管理视图和导出
	Stale        bool   `gorm:"-" json:"stale,omitempty"`               // 原文已无法在文章中定位
}

// TableName 指定Annotation模型对应的数据库表名
func (Annotation) TableName() string {
	return "annotations"
}
