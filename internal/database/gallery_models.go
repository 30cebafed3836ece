package database

import (
	"time"

	"gorm.io/datatypes"
)

// Photo 相册照片
// URL 和 ThumbnailURL 指向媒体存储中的相对路径（/uploads/photos/...）
type Photo struct {
	Model
	Title        string                      `gorm:"size:255" json:"title"`
	Description  string                      `gorm:"type:text" json:"description"`
	URL          string                      `gorm:"not null;size:500" json:"url"`
	ThumbnailURL string                      `gorm:"size:500" json:"thumbnailUrl"`
	Tags         datatypes.JSONSlice[string] `json:"tags"`
}

// TableName 指定Photo模型对应的数据库表名
func (Photo) TableName() string {
	return "photos"
}

// MediaURLs 返回照片引用的全部媒体路径
func (p *Photo) MediaURLs() []string {
	return compactURLs(p.URL, p.ThumbnailURL)
}

// Travel 旅行日记
// Images 为有序的媒体路径列表
type Travel struct {
	Model
	Title       string                      `gorm:"not null;size:255" json:"title"`
	Location    string                      `gorm:"size:255" json:"location"`
	Rating      int                         `gorm:"default:5" json:"rating"` // 评分 1-5
	Date        time.Time                   `gorm:"not null;index" json:"date"`
	Weather     string                      `gorm:"size:100" json:"weather"`
	Transport   string                      `gorm:"size:100" json:"transport"`
	Description string                      `gorm:"type:text" json:"description"`
	Images      datatypes.JSONSlice[string] `json:"images"`
}

// TableName 指定Travel模型对应的数据库表名
func (Travel) TableName() string {
	return "travels"
}

// MediaURLs 返回旅行日记引用的全部媒体路径
func (t *Travel) MediaURLs() []string {
	return compactURLs(t.Images...)
}

// compactURLs 去掉空值和重复值，保持原有顺序
func compactURLs(urls ...string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
