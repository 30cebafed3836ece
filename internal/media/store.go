package media

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"mime/multipart"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/weiwangfds/booknotes/internal/errors"
	"github.com/weiwangfds/booknotes/internal/logger"
)

// Namespace 媒体文件命名空间，对应 uploads 下的一级目录
type Namespace string

const (
	NamespaceHome     Namespace = "home"
	NamespaceArticles Namespace = "articles"
	NamespacePhotos   Namespace = "photos"
	NamespaceTravels  Namespace = "travels"
)

// URLPrefix 媒体文件访问路径前缀
const URLPrefix = "/uploads/"

const (
	homeMaxSize    int64 = 5 << 20
	defaultMaxSize int64 = 10 << 20
)

// allowedExtensions 允许上传的扩展名
var allowedExtensions = map[string]bool{
	".jpeg": true,
	".jpg":  true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// allowedMIMETypes 内容嗅探允许的类型
var allowedMIMETypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// Namespaces 返回全部命名空间
func Namespaces() []Namespace {
	return []Namespace{NamespaceHome, NamespaceArticles, NamespacePhotos, NamespaceTravels}
}

// ParseNamespace 校验命名空间
func ParseNamespace(s string) (Namespace, error) {
	for _, ns := range Namespaces() {
		if string(ns) == s {
			return ns, nil
		}
	}
	return "", errors.ErrInvalidFilePathError.WithDetails("unknown namespace: " + s)
}

// MaxSize 命名空间的单文件大小上限
func (ns Namespace) MaxSize() int64 {
	if ns == NamespaceHome {
		return homeMaxSize
	}
	return defaultMaxSize
}

// Recorder 上传统计回调，由 metrics 包实现
type Recorder interface {
	MediaSaved(namespace string, size int64)
	MediaRejected(namespace, reason string)
}

// Store 媒体文件存储
// 负责文件校验、命名和访问路径映射，实际读写交给 Backend
type Store struct {
	backend  Backend
	recorder Recorder
	now      func() time.Time
}

// Option Store 可选配置
type Option func(*Store)

// WithRecorder 设置上传统计
func WithRecorder(r Recorder) Option {
	return func(s *Store) {
		s.recorder = r
	}
}

// NewStore 创建媒体文件存储
func NewStore(backend Backend, opts ...Option) *Store {
	s := &Store{backend: backend, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Backend 返回底层存储后端
func (s *Store) Backend() Backend {
	return s.backend
}

// Save 校验并保存上传文件，返回 /uploads/<namespace>/<filename> 形式的访问路径
// filename 仅用于提取扩展名
func (s *Store) Save(ctx context.Context, ns Namespace, filename string, reader io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExtensions[ext] {
		s.rejected(ns, "extension")
		return "", errors.ErrFileTypeNotAllowedError.WithDetails(filename)
	}

	limit := ns.MaxSize()
	data, err := io.ReadAll(io.LimitReader(reader, limit+1))
	if err != nil {
		return "", errors.Wrap(errors.ErrFileReadFailed, errors.GetErrorMessage(errors.ErrFileReadFailed), err)
	}
	if int64(len(data)) > limit {
		s.rejected(ns, "size")
		return "", errors.FileTooLarge(fmt.Sprintf("%dMB", limit>>20))
	}

	mt := mimetype.Detect(data)
	if !mimetype.EqualsAny(mt.String(), allowedMIMETypes...) {
		s.rejected(ns, "content")
		return "", errors.ErrFileTypeNotAllowedError.WithDetails(fmt.Sprintf("%s: detected %s", filename, mt.String()))
	}

	name := s.generateName(ext)
	key := string(ns) + "/" + name
	if err := s.backend.Put(ctx, key, bytes.NewReader(data), int64(len(data)), mt.String()); err != nil {
		return "", errors.Wrap(errors.ErrFileUploadFailed, errors.GetErrorMessage(errors.ErrFileUploadFailed), err)
	}

	if s.recorder != nil {
		s.recorder.MediaSaved(string(ns), int64(len(data)))
	}
	logger.WithFields(map[string]interface{}{
		"namespace": ns,
		"file":      name,
		"size":      len(data),
	}).Debug("媒体文件已保存")
	return URLPrefix + key, nil
}

// SaveFileHeader 保存 multipart 上传文件
func (s *Store) SaveFileHeader(ctx context.Context, ns Namespace, fh *multipart.FileHeader) (string, error) {
	if fh.Size > ns.MaxSize() {
		s.rejected(ns, "size")
		return "", errors.FileTooLarge(fmt.Sprintf("%dMB", ns.MaxSize()>>20))
	}
	f, err := fh.Open()
	if err != nil {
		return "", errors.Wrap(errors.ErrFileReadFailed, errors.GetErrorMessage(errors.ErrFileReadFailed), err)
	}
	defer f.Close()
	return s.Save(ctx, ns, fh.Filename, f)
}

// Delete 删除媒体文件，文件不存在不视为错误
func (s *Store) Delete(ctx context.Context, url string) error {
	key, err := KeyFromURL(url)
	if err != nil {
		return err
	}
	if err := s.backend.Delete(ctx, key); err != nil {
		return errors.Wrap(errors.ErrFileDeleteFailed, errors.GetErrorMessage(errors.ErrFileDeleteFailed), err)
	}
	return nil
}

// DeleteQuietly 尽力删除一组媒体文件，失败只记录日志
func (s *Store) DeleteQuietly(ctx context.Context, urls ...string) {
	for _, url := range urls {
		if url == "" || !IsMediaURL(url) {
			continue
		}
		if err := s.Delete(ctx, url); err != nil {
			logger.WithFields(map[string]interface{}{
				"url":   url,
				"error": err.Error(),
			}).Warn("清理媒体文件失败")
		}
	}
}

// List 列出命名空间下的文件，按创建时间倒序
func (s *Store) List(ctx context.Context, ns Namespace) ([]FileInfo, error) {
	files, err := s.backend.List(ctx, string(ns))
	if err != nil {
		return nil, errors.Wrap(errors.ErrFileReadFailed, errors.GetErrorMessage(errors.ErrFileReadFailed), err)
	}
	for i := range files {
		files[i].URL = URLPrefix + string(ns) + "/" + files[i].Name
	}
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].CreatedAt.After(files[j].CreatedAt)
	})
	return files, nil
}

// Open 打开媒体文件，调用方负责关闭
func (s *Store) Open(ctx context.Context, url string) (io.ReadCloser, *FileInfo, error) {
	key, err := KeyFromURL(url)
	if err != nil {
		return nil, nil, err
	}
	info, err := s.backend.Stat(ctx, key)
	if err != nil {
		if stderrors.Is(err, ErrObjectNotFound) {
			return nil, nil, errors.ErrMediaNotFoundError.WithDetails(url)
		}
		return nil, nil, errors.Wrap(errors.ErrFileReadFailed, errors.GetErrorMessage(errors.ErrFileReadFailed), err)
	}
	rc, err := s.backend.Open(ctx, key)
	if err != nil {
		if stderrors.Is(err, ErrObjectNotFound) {
			return nil, nil, errors.ErrMediaNotFoundError.WithDetails(url)
		}
		return nil, nil, errors.Wrap(errors.ErrFileReadFailed, errors.GetErrorMessage(errors.ErrFileReadFailed), err)
	}
	info.URL = URLPrefix + key
	return rc, info, nil
}

// ReadAll 读取媒体文件全部内容
func (s *Store) ReadAll(ctx context.Context, url string) ([]byte, error) {
	rc, _, err := s.Open(ctx, url)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, errors.Wrap(errors.ErrFileReadFailed, errors.GetErrorMessage(errors.ErrFileReadFailed), err)
	}
	return data, nil
}

// Exists 判断媒体文件是否存在，路径非法时返回 false
func (s *Store) Exists(ctx context.Context, url string) bool {
	key, err := KeyFromURL(url)
	if err != nil {
		return false
	}
	_, err = s.backend.Stat(ctx, key)
	return err == nil
}

// Ping 检查存储后端，连接失败统一返回 ErrStorageConnectionFailed
func (s *Store) Ping(ctx context.Context) error {
	if err := s.backend.Ping(ctx); err != nil {
		return errors.StorageUnavailable(err)
	}
	return nil
}

func (s *Store) generateName(ext string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
	return fmt.Sprintf("%d-%s%s", s.now().UnixMilli(), suffix, ext)
}

func (s *Store) rejected(ns Namespace, reason string) {
	if s.recorder != nil {
		s.recorder.MediaRejected(string(ns), reason)
	}
}

// IsMediaURL 判断是否为媒体存储访问路径
func IsMediaURL(url string) bool {
	return strings.HasPrefix(url, URLPrefix)
}

// KeyFromURL 将 /uploads/<namespace>/<filename> 解析为后端对象键
// 只接受已知命名空间下的单级文件名，拒绝任何越界路径
func KeyFromURL(url string) (string, error) {
	ns, name, err := SplitURL(url)
	if err != nil {
		return "", err
	}
	return string(ns) + "/" + name, nil
}

// RequireNamespace 媒体路径必须位于 ns 下，外部链接不做限制
func RequireNamespace(url string, ns Namespace) error {
	if !IsMediaURL(url) {
		return nil
	}
	got, _, err := SplitURL(url)
	if err != nil {
		return err
	}
	if got != ns {
		return errors.ErrInvalidFilePathError.WithDetails(fmt.Sprintf("%s 不属于 %s", url, ns))
	}
	return nil
}

// SplitURL 拆分媒体访问路径为命名空间和文件名
func SplitURL(url string) (Namespace, string, error) {
	if !IsMediaURL(url) {
		return "", "", errors.ErrInvalidFilePathError.WithDetails(url)
	}
	rest := strings.TrimPrefix(url, URLPrefix)
	if i := strings.IndexAny(rest, "?#"); i >= 0 {
		rest = rest[:i]
	}
	nsPart, name, ok := strings.Cut(rest, "/")
	if !ok {
		return "", "", errors.ErrInvalidFilePathError.WithDetails(url)
	}
	ns, err := ParseNamespace(nsPart)
	if err != nil {
		return "", "", errors.ErrInvalidFilePathError.WithDetails(url)
	}
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "/\\\x00") || path.Base(name) != name {
		return "", "", errors.ErrInvalidFilePathError.WithDetails(url)
	}
	return ns, name, nil
}

// createdAtFromName 从生成的文件名前缀解析创建时间，解析失败时使用 fallback
func createdAtFromName(name string, fallback time.Time) time.Time {
	prefix, _, ok := strings.Cut(name, "-")
	if !ok {
		return fallback
	}
	ms, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil || ms <= 0 {
		return fallback
	}
	return time.UnixMilli(ms)
}
