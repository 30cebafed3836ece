package media

import (
	"context"
	stderrors "errors"
	"io"
	"time"

	"github.com/weiwangfds/booknotes/config"
	"github.com/weiwangfds/booknotes/internal/errors"
)

// ErrObjectNotFound 后端对象不存在
var ErrObjectNotFound = stderrors.New("media: object not found")

// Backend 媒体文件存储后端
// key 形如 "photos/1700000000000-ab12cd34ef.jpg"，由 Store 生成并校验
type Backend interface {
	// Put 写入对象，size 为 -1 表示未知长度
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// Open 读取对象，对象不存在时返回 ErrObjectNotFound
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete 删除对象，对象不存在时不返回错误
	Delete(ctx context.Context, key string) error

	// Stat 获取对象信息，对象不存在时返回 ErrObjectNotFound
	Stat(ctx context.Context, key string) (*FileInfo, error)

	// List 列出前缀下的对象
	List(ctx context.Context, prefix string) ([]FileInfo, error)

	// Ping 测试后端连接
	Ping(ctx context.Context) error
}

// FileInfo 媒体文件信息
type FileInfo struct {
	Key         string    `json:"-"`           // 后端对象键
	Name        string    `json:"name"`        // 文件名
	URL         string    `json:"url"`         // 访问路径
	Size        int64     `json:"size"`        // 文件大小
	ContentType string    `json:"contentType"` // 内容类型
	CreatedAt   time.Time `json:"createdAt"`   // 创建时间
	ModifiedAt  time.Time `json:"modifiedAt"`  // 最后修改时间
}

// NewBackend 根据配置创建存储后端
func NewBackend(cfg config.StorageConfig) (Backend, error) {
	switch cfg.Provider {
	case config.StorageLocal, "":
		return NewLocalBackend(cfg.Root)
	case config.StorageAliyun:
		return NewAliyunBackend(cfg)
	case config.StorageTencent:
		return NewTencentBackend(cfg)
	case config.StorageQiniu:
		return NewQiniuBackend(cfg)
	default:
		return nil, errors.ErrStorageProviderNotSupportedError.WithDetails(cfg.Provider)
	}
}

// joinKey 拼接对象键前缀
func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	if prefix[len(prefix)-1] == '/' {
		return prefix + key
	}
	return prefix + "/" + key
}
