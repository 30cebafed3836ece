// Package home 提供首页资料单例的读取和更新
package home

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"mime/multipart"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/weiwangfds/booknotes/internal/database"
	"github.com/weiwangfds/booknotes/internal/errors"
	"github.com/weiwangfds/booknotes/internal/logger"
	"github.com/weiwangfds/booknotes/internal/media"
	"github.com/weiwangfds/booknotes/internal/service/common"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	resourceName = "Home"
	cacheKey     = "home"
)

// Service 首页服务接口
type Service interface {
	// Get 获取首页资料，不存在时创建默认记录
	Get(ctx context.Context) (*database.Home, error)

	// Update 更新首页资料，上传新图片时删除旧图片
	Update(ctx context.Context, req *UpdateRequest, files Files) (*database.Home, error)
}

// Files 首页上传的图片
type Files struct {
	Avatar *multipart.FileHeader
	Banner *multipart.FileHeader
}

// UpdateRequest 更新首页请求，nil 字段保持原值
// AvatarImage/BannerImage 为已保存的媒体路径，用于备份导入，上传文件优先
type UpdateRequest struct {
	Name         *string                `json:"name"`
	Subtitle     *string                `json:"subtitle"`
	Introduction *string                `json:"introduction"`
	AvatarImage  *string                `json:"avatarImage"`
	BannerImage  *string                `json:"bannerImage"`
	SocialLinks  *[]database.SocialLink `json:"socialLinks"`
	Education    *[]database.Experience `json:"education"`
	Work         *[]database.Experience `json:"work"`
	Stats        *database.HomeStats    `json:"stats"`
	SiteInfo     *database.SiteInfo     `json:"siteInfo"`
}

// ParseForm 从 multipart 表单字段构造更新请求
// 数组字段解析失败时置为空数组，stats/siteInfo 解析失败时保持原值
func ParseForm(form map[string][]string) *UpdateRequest {
	value := func(key string) (string, bool) {
		v, ok := form[key]
		if !ok || len(v) == 0 {
			return "", false
		}
		return v[0], true
	}

	req := &UpdateRequest{}
	if v, ok := value("name"); ok {
		req.Name = &v
	}
	if v, ok := value("subtitle"); ok {
		req.Subtitle = &v
	}
	if v, ok := value("introduction"); ok {
		req.Introduction = &v
	}
	if v, ok := value("socialLinks"); ok && v != "" {
		links := parseArray[database.SocialLink]("socialLinks", v)
		req.SocialLinks = &links
	}
	if v, ok := value("education"); ok && v != "" {
		items := parseArray[database.Experience]("education", v)
		req.Education = &items
	}
	if v, ok := value("work"); ok && v != "" {
		items := parseArray[database.Experience]("work", v)
		req.Work = &items
	}
	if v, ok := value("stats"); ok && v != "" {
		var stats database.HomeStats
		if err := json.Unmarshal([]byte(v), &stats); err == nil {
			req.Stats = &stats
		} else {
			logger.WithField("error", err.Error()).Warn("stats 解析失败，保持原值")
		}
	}
	if v, ok := value("siteInfo"); ok && v != "" {
		var info database.SiteInfo
		if err := json.Unmarshal([]byte(v), &info); err == nil {
			req.SiteInfo = &info
		} else {
			logger.WithField("error", err.Error()).Warn("siteInfo 解析失败，保持原值")
		}
	}
	return req
}

func parseArray[T any](field, raw string) []T {
	items := []T{}
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		logger.WithFields(map[string]interface{}{
			"field": field,
			"error": err.Error(),
		}).Warn("数组字段解析失败，置为空")
		return []T{}
	}
	return items
}

// homeService 首页服务实现
type homeService struct {
	db    *gorm.DB
	store *media.Store
	cache *cache.Cache
	mu    sync.Mutex
}

// NewHomeService 创建首页服务实例
// ttl 大于 0 时启用读缓存
func NewHomeService(db *gorm.DB, store *media.Store, ttl time.Duration) Service {
	s := &homeService{db: db, store: store}
	if ttl > 0 {
		s.cache = cache.New(ttl, 2*ttl)
	}
	return s
}

// Get 获取首页资料
func (s *homeService) Get(ctx context.Context) (*database.Home, error) {
	if s.cache != nil {
		if cached, ok := s.cache.Get(cacheKey); ok {
			home := cloneHome(cached.(*database.Home))
			return home, nil
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	home, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	s.remember(home)
	return home, nil
}

// load 读取或创建首页记录，调用方持有锁
func (s *homeService) load(ctx context.Context) (*database.Home, error) {
	var home database.Home
	err := s.db.WithContext(ctx).Order("created_at ASC").First(&home).Error
	if err == nil {
		normalize(&home)
		return &home, nil
	}
	if !stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Internal(errors.ErrDatabaseQuery, err)
	}

	created := database.NewDefaultHome()
	if err := s.db.WithContext(ctx).Create(created).Error; err != nil {
		return nil, common.DBError(errors.ErrDatabaseInsert, resourceName, err)
	}
	logger.Info("已创建默认首页资料")
	return created, nil
}

// Update 更新首页资料
func (s *homeService) Update(ctx context.Context, req *UpdateRequest, files Files) (*database.Home, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// 只能引用首页自己的媒体文件，替换时才能安全删除旧图
	for _, ref := range []*string{req.AvatarImage, req.BannerImage} {
		if ref == nil {
			continue
		}
		if err := media.RequireNamespace(strings.TrimSpace(*ref), media.NamespaceHome); err != nil {
			return nil, err
		}
	}

	home, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	var uploaded []string
	save := func(fh *multipart.FileHeader) (string, error) {
		url, err := s.store.SaveFileHeader(ctx, media.NamespaceHome, fh)
		if err != nil {
			s.store.DeleteQuietly(ctx, uploaded...)
			return "", err
		}
		uploaded = append(uploaded, url)
		return url, nil
	}

	var replaced []string
	avatar, banner := req.AvatarImage, req.BannerImage
	if files.Avatar != nil {
		url, err := save(files.Avatar)
		if err != nil {
			return nil, err
		}
		avatar = &url
	}
	if files.Banner != nil {
		url, err := save(files.Banner)
		if err != nil {
			return nil, err
		}
		banner = &url
	}
	if avatar != nil && *avatar != home.AvatarImage {
		replaced = append(replaced, home.AvatarImage)
		home.AvatarImage = strings.TrimSpace(*avatar)
	}
	if banner != nil && *banner != home.BannerImage {
		replaced = append(replaced, home.BannerImage)
		home.BannerImage = strings.TrimSpace(*banner)
	}

	if req.Name != nil {
		home.Name = *req.Name
	}
	if req.Subtitle != nil {
		home.Subtitle = *req.Subtitle
	}
	if req.Introduction != nil {
		home.Introduction = *req.Introduction
	}
	if req.SocialLinks != nil {
		home.SocialLinks = datatypes.JSONSlice[database.SocialLink](nonNil(*req.SocialLinks))
	}
	if req.Education != nil {
		home.Education = datatypes.JSONSlice[database.Experience](nonNil(*req.Education))
	}
	if req.Work != nil {
		home.Work = datatypes.JSONSlice[database.Experience](nonNil(*req.Work))
	}
	if req.Stats != nil {
		home.Stats = datatypes.NewJSONType(*req.Stats)
	}
	if req.SiteInfo != nil {
		home.SiteInfo = datatypes.NewJSONType(*req.SiteInfo)
	}

	if err := s.db.WithContext(ctx).Save(home).Error; err != nil {
		s.store.DeleteQuietly(ctx, uploaded...)
		return nil, common.DBError(errors.ErrDatabaseUpdate, resourceName, err)
	}

	s.store.DeleteQuietly(ctx, unreferenced(replaced, home.AvatarImage, home.BannerImage)...)
	s.remember(home)
	logger.WithField("home_id", home.ID).Info("首页资料已更新")
	return home, nil
}

// unreferenced 过滤掉仍被头像或横幅使用的路径
func unreferenced(urls []string, inUse ...string) []string {
	var out []string
	for _, u := range urls {
		if !slices.Contains(inUse, u) {
			out = append(out, u)
		}
	}
	return out
}

// remember 缓存深拷贝，读取时再拷贝一次，调用方修改返回值不影响缓存
func (s *homeService) remember(home *database.Home) {
	if s.cache != nil {
		s.cache.SetDefault(cacheKey, cloneHome(home))
	}
}

func cloneHome(h *database.Home) *database.Home {
	cp := *h
	cp.SocialLinks = slices.Clone(h.SocialLinks)
	cp.Education = slices.Clone(h.Education)
	cp.Work = slices.Clone(h.Work)
	return &cp
}

func normalize(h *database.Home) {
	if h.SocialLinks == nil {
		h.SocialLinks = datatypes.JSONSlice[database.SocialLink]{}
	}
	if h.Education == nil {
		h.Education = datatypes.JSONSlice[database.Experience]{}
	}
	if h.Work == nil {
		h.Work = datatypes.JSONSlice[database.Experience]{}
	}
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
