// Package backup 实现全站数据的导出和导入
// 备份文件为 zip 格式：data.json 保存全部记录，images/<namespace>/<filename> 保存引用的媒体文件
package backup

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/weiwangfds/booknotes/internal/database"
	"github.com/weiwangfds/booknotes/internal/errors"
	"github.com/weiwangfds/booknotes/internal/media"
)

const (
	// Version 备份格式版本，导入时只检查主版本号
	Version = "1.0.0"

	// DataFile 记录文件名
	DataFile = "data.json"

	// ImagesDir 媒体文件目录
	ImagesDir = "images/"

	// Description 导出文件描述
	Description = "booknotes 数据备份"

	maxDataSize  = 64 << 20
	maxImageSize = 10 << 20
)

// maxImagesTotal 解压后媒体文件总大小上限，超出部分跳过
var maxImagesTotal int64 = 1 << 30

// Envelope data.json 顶层结构
type Envelope struct {
	Version     string `json:"version"`
	ExportDate  string `json:"exportDate"`
	Description string `json:"description"`
	Data        Data   `json:"data"`
}

// Data 导出的全部记录
type Data struct {
	Categories  []CategoryRecord            `json:"categories"`
	Articles    []ArticleRecord             `json:"articles"`
	Photos      []PhotoRecord               `json:"photos"`
	Bookmarks   map[string][]BookmarkRecord `json:"bookmarks"`
	Home        *HomeRecord                 `json:"home"`
	Events      []EventRecord               `json:"events"`
	Travels     []TravelRecord              `json:"travels"`
	Annotations []AnnotationRecord          `json:"annotations"`
}

// CategoryRecord 分类记录
type CategoryRecord struct {
	Name      string `json:"name"`
	Icon      string `json:"icon"`
	SortOrder int    `json:"sortOrder"`
}

// ArticleRecord 文章记录，分类以名称关联
type ArticleRecord struct {
	Title        string   `json:"title"`
	Content      string   `json:"content"`
	CategoryName string   `json:"categoryName,omitempty"`
	Tags         []string `json:"tags"`
	Views        int64    `json:"views"`
	Likes        int64    `json:"likes"`
	CreatedAt    string   `json:"createdAt,omitempty"`
	UpdatedAt    string   `json:"updatedAt,omitempty"`
}

// AnnotationRecord 批注记录，文章以标题关联
type AnnotationRecord struct {
	ArticleTitle string `json:"articleTitle"`
	SelectedText string `json:"selectedText"`
	StartOffset  *int   `json:"startOffset"`
	EndOffset    *int   `json:"endOffset"`
	Comment      string `json:"comment"`
}

// PhotoRecord 照片记录
type PhotoRecord struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	URL          string   `json:"url"`
	ThumbnailURL string   `json:"thumbnailUrl"`
	Tags         []string `json:"tags"`
}

// BookmarkRecord 收藏记录
type BookmarkRecord struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Category    string `json:"category"`
	Order       int    `json:"order"`
}

// EventRecord 时间线事件记录
type EventRecord struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Mood        string `json:"mood"`
	Date        string `json:"date"`
}

// TravelRecord 旅行日记记录
type TravelRecord struct {
	Title       string   `json:"title"`
	Location    string   `json:"location"`
	Rating      *int     `json:"rating"`
	Date        string   `json:"date"`
	Weather     string   `json:"weather"`
	Transport   string   `json:"transport"`
	Description string   `json:"description"`
	Images      []string `json:"images"`
}

// HomeRecord 首页资料记录
type HomeRecord struct {
	Name         string                `json:"name"`
	Subtitle     string                `json:"subtitle"`
	Introduction string                `json:"introduction"`
	AvatarImage  string                `json:"avatarImage"`
	BannerImage  string                `json:"bannerImage"`
	SocialLinks  []database.SocialLink `json:"socialLinks"`
	Education    []database.Experience `json:"education"`
	Work         []database.Experience `json:"work"`
	Stats        *database.HomeStats   `json:"stats"`
	SiteInfo     *database.SiteInfo    `json:"siteInfo"`
}

// rawEnvelope 导入时逐条解析记录，单条格式错误不影响其他记录
type rawEnvelope struct {
	Version string  `json:"version"`
	Data    rawData `json:"data"`
}

type rawData struct {
	Categories  []json.RawMessage `json:"categories"`
	Articles    []json.RawMessage `json:"articles"`
	Photos      []json.RawMessage `json:"photos"`
	Bookmarks   json.RawMessage   `json:"bookmarks"`
	Home        json.RawMessage   `json:"home"`
	Events      []json.RawMessage `json:"events"`
	Travels     []json.RawMessage `json:"travels"`
	Annotations []json.RawMessage `json:"annotations"`
}

// bookmarkRecords 支持按分类分组的对象和普通数组两种格式
func (d rawData) bookmarkRecords() ([]json.RawMessage, error) {
	raw := strings.TrimSpace(string(d.Bookmarks))
	if raw == "" || raw == "null" {
		return nil, nil
	}
	if strings.HasPrefix(raw, "[") {
		var list []json.RawMessage
		if err := json.Unmarshal(d.Bookmarks, &list); err != nil {
			return nil, err
		}
		return list, nil
	}

	var grouped map[string][]json.RawMessage
	if err := json.Unmarshal(d.Bookmarks, &grouped); err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(grouped))
	for k := range grouped {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var list []json.RawMessage
	for _, k := range keys {
		for _, item := range grouped[k] {
			list = append(list, withDefaultCategory(item, k))
		}
	}
	return list, nil
}

// withDefaultCategory 记录缺少 category 时使用分组名
func withDefaultCategory(item json.RawMessage, category string) json.RawMessage {
	var fields map[string]interface{}
	if err := json.Unmarshal(item, &fields); err != nil {
		return item
	}
	if v, ok := fields["category"].(string); ok && v != "" {
		return item
	}
	fields["category"] = category
	out, err := json.Marshal(fields)
	if err != nil {
		return item
	}
	return out
}

// ArchivePath 将 /uploads/<namespace>/<filename> 转换为 images/<namespace>/<filename>
func ArchivePath(url string) (string, bool) {
	ns, name, err := media.SplitURL(url)
	if err != nil {
		return "", false
	}
	return ImagesDir + string(ns) + "/" + name, true
}

// splitArchivePath 解析 images/<namespace>/<filename>
func splitArchivePath(p string) (media.Namespace, string, bool) {
	if !strings.HasPrefix(p, ImagesDir) {
		return "", "", false
	}
	nsPart, name, ok := strings.Cut(strings.TrimPrefix(p, ImagesDir), "/")
	if !ok {
		return "", "", false
	}
	ns, err := media.ParseNamespace(nsPart)
	if err != nil {
		return "", "", false
	}
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "/\\\x00") {
		return "", "", false
	}
	return ns, name, true
}

// writeArchive 写入 data.json 和全部媒体文件
func writeArchive(w io.Writer, env *Envelope, files map[string][]byte, modTime time.Time) error {
	zw := zip.NewWriter(w)

	header := &zip.FileHeader{Name: DataFile, Method: zip.Deflate}
	header.Modified = modTime
	entry, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to create %s entry: %w", DataFile, err)
	}
	encoder := json.NewEncoder(entry)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(env); err != nil {
		return fmt.Errorf("failed to encode %s: %w", DataFile, err)
	}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		// 图片已压缩过，直接存储
		header := &zip.FileHeader{Name: name, Method: zip.Store}
		header.Modified = modTime
		entry, err := zw.CreateHeader(header)
		if err != nil {
			return fmt.Errorf("failed to create archive entry %s: %w", name, err)
		}
		if _, err := entry.Write(files[name]); err != nil {
			return fmt.Errorf("failed to write archive entry %s: %w", name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalise archive: %w", err)
	}
	return nil
}

// readArchive 解析备份文件，返回记录、images/ 下的文件和跳过的媒体条目说明
// 单个媒体条目损坏或过大只跳过该文件，引用它的记录按文件缺失处理
func readArchive(r io.ReaderAt, size int64) (*rawEnvelope, map[string][]byte, []string, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, nil, nil, errors.ErrArchiveInvalidError.WithDetails(err.Error())
	}

	var (
		env     *rawEnvelope
		skipped []string
		total   int64
	)
	files := make(map[string][]byte)
	for _, f := range zr.File {
		name := path.Clean(strings.TrimPrefix(f.Name, "./"))
		if f.FileInfo().IsDir() {
			continue
		}

		switch {
		case name == DataFile:
			data, err := readEntry(f, maxDataSize)
			if err != nil {
				return nil, nil, nil, err
			}
			env = &rawEnvelope{}
			if err := json.Unmarshal(data, env); err != nil {
				return nil, nil, nil, errors.Validation(DataFile + ": " + err.Error())
			}
		case strings.HasPrefix(name, ImagesDir):
			if _, _, ok := splitArchivePath(name); !ok {
				continue
			}
			limit := int64(maxImageSize)
			if remaining := maxImagesTotal - total; remaining < limit {
				limit = remaining
			}
			if limit <= 0 {
				skipped = append(skipped, fmt.Sprintf("媒体文件 %s 超出备份总大小限制，已跳过", name))
				continue
			}
			data, err := readEntry(f, limit)
			if err != nil {
				skipped = append(skipped, fmt.Sprintf("媒体文件 %s 无法读取，已跳过: %v", name, err))
				continue
			}
			total += int64(len(data))
			files[name] = data
		}
	}

	if env == nil {
		return nil, nil, nil, errors.Validation(DataFile + ": not found in archive")
	}
	if err := checkVersion(env.Version); err != nil {
		return nil, nil, nil, err
	}
	return env, files, skipped, nil
}

// readEntry 读取单个条目，超过 limit 视为无效
func readEntry(f *zip.File, limit int64) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, errors.ErrArchiveInvalidError.WithDetails(f.Name + ": " + err.Error())
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, errors.ErrArchiveInvalidError.WithDetails(f.Name + ": " + err.Error())
	}
	if int64(len(data)) > limit {
		return nil, errors.ErrArchiveInvalidError.WithDetails(f.Name + ": entry too large")
	}
	return data, nil
}

// checkVersion 只接受主版本号相同的备份
func checkVersion(version string) error {
	if version == "" {
		return errors.Validation("version: cannot be blank")
	}
	major, _, _ := strings.Cut(strings.TrimPrefix(version, "v"), ".")
	expected, _, _ := strings.Cut(Version, ".")
	if major != expected {
		return errors.UnsupportedVersion(version)
	}
	return nil
}

// formatTime 导出时间统一为 RFC3339
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
