package database

import (
	"time"

	"gorm.io/datatypes"
)

// SocialLink 社交链接
type SocialLink struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Icon string `json:"icon"`
}

// Experience 教育或工作经历
type Experience struct {
	Title  string `json:"title"`
	Period string `json:"period"`
}

// HomeStats 首页统计数字
type HomeStats struct {
	Likes     int64 `json:"likes"`
	Views     int64 `json:"views"`
	Online    int64 `json:"online"`
	Followers int64 `json:"followers"`
}

// SiteInfo 站点信息
type SiteInfo struct {
	RunningTime string `json:"runningTime"`
	ICP         string `json:"icp"`
}

// DefaultHomeStats 首页统计的初始值
func DefaultHomeStats() HomeStats {
	return HomeStats{Likes: 166, Views: 4057, Online: 1, Followers: 3}
}

// Home 首页资料，全局只有一条记录
type Home struct {
	Model
	Name         string                          `gorm:"size:100" json:"name"`
	Subtitle     string                          `gorm:"size:255" json:"subtitle"`
	Introduction string                          `gorm:"type:text" json:"introduction"`
	AvatarImage  string                          `gorm:"size:500" json:"avatarImage"`
	BannerImage  string                          `gorm:"size:500" json:"bannerImage"`
	SocialLinks  datatypes.JSONSlice[SocialLink] `json:"socialLinks"`
	Education    datatypes.JSONSlice[Experience] `json:"education"`
	Work         datatypes.JSONSlice[Experience] `json:"work"`
	Stats        datatypes.JSONType[HomeStats]   `json:"stats"`
	SiteInfo     datatypes.JSONType[SiteInfo]    `json:"siteInfo"`
}

// TableName 指定Home模型对应的数据库表名
func (Home) TableName() string {
	return "home"
}

// NewDefaultHome 创建带默认值的首页记录
func NewDefaultHome() *Home {
	return &Home{
		SocialLinks: datatypes.JSONSlice[SocialLink]{},
		Education:   datatypes.JSONSlice[Experience]{},
		Work:        datatypes.JSONSlice[Experience]{},
		Stats:       datatypes.NewJSONType(DefaultHomeStats()),
		SiteInfo:    datatypes.NewJSONType(SiteInfo{}),
	}
}

// MediaURLs 返回首页引用的全部媒体路径
func (h *Home) MediaURLs() []string {
	return compactURLs(h.AvatarImage, h.BannerImage)
}

// Bookmark 网址收藏
// Category 为自由文本，读取时按其分组，不是外键
type Bookmark struct {
	Model
	Title       string `gorm:"not null;size:255" json:"title"`
	URL         string `gorm:"not null;size:1000" json:"url"`
	Description string `gorm:"type:text" json:"description"`
	Icon        string `gorm:"size:500" json:"icon"`
	Category    string `gorm:"not null;size:100;index" json:"category"`
	Order       int    `gorm:"column:sort_order;default:0" json:"order"`
}

// TableName 指定Bookmark模型对应的数据库表名
func (Bookmark) TableName() string {
	return "bookmarks"
}

// Event 时间线事件
type Event struct {
	Model
	Title       string    `gorm:"not null;size:255" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	Location    string    `gorm:"size:255" json:"location"`
	Mood        string    `gorm:"size:50" json:"mood"`
	Date        time.Time `gorm:"not null;index" json:"date"`
}

// TableName 指定Event模型对应的数据库表名
func (Event) TableName() string {
	return "events"
}

// 用户角色
const (
	RoleAdmin = "admin"
)

// User 管理员账号
// PasswordHash 为bcrypt哈希，永远不会序列化到响应中
type User struct {
	Model
	Username     string `gorm:"uniqueIndex;not null;size:100" json:"username"`
	PasswordHash string `gorm:"column:password;not null" json:"-"`
	Avatar       string `gorm:"size:500" json:"avatar"`
	Role         string `gorm:"size:20;default:admin" json:"role"`
}

// TableName 指定User模型对应的数据库表名
func (User) TableName() string {
	return "users"
}
