package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/tencentyun/cos-go-sdk-v5"
	"github.com/weiwangfds/booknotes/config"
)

// TencentBackend 腾讯云COS存储后端
type TencentBackend struct {
	client *cos.Client
	prefix string
}

// NewTencentBackend 创建腾讯云COS存储后端
func NewTencentBackend(cfg config.StorageConfig) (*TencentBackend, error) {
	bucketURL := fmt.Sprintf("https://%s.cos.%s.myqcloud.com", cfg.Bucket, cfg.Region)
	if cfg.Endpoint != "" {
		bucketURL = cfg.Endpoint
	}

	u, err := url.Parse(bucketURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bucket URL: %w", err)
	}

	client := cos.NewClient(&cos.BaseURL{BucketURL: u}, &http.Client{
		Timeout: 60 * time.Second,
		Transport: &cos.AuthorizationTransport{
			SecretID:  cfg.AccessKey,
			SecretKey: cfg.SecretKey,
		},
	})

	return &TencentBackend{client: client, prefix: cfg.KeyPrefix}, nil
}

// Put 上传对象
func (b *TencentBackend) Put(ctx context.Context, key string, reader io.Reader, _ int64, contentType string) error {
	options := &cos.ObjectPutOptions{
		ObjectPutHeaderOptions: &cos.ObjectPutHeaderOptions{ContentType: contentType},
	}
	if _, err := b.client.Object.Put(ctx, joinKey(b.prefix, key), reader, options); err != nil {
		return fmt.Errorf("failed to upload file to tencent cos: %w", err)
	}
	return nil
}

// Open 下载对象
func (b *TencentBackend) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	resp, err := b.client.Object.Get(ctx, joinKey(b.prefix, key), nil)
	if err != nil {
		if cos.IsNotFoundError(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to download file from tencent cos: %w", err)
	}
	return resp.Body, nil
}

// Delete 删除对象
func (b *TencentBackend) Delete(ctx context.Context, key string) error {
	if _, err := b.client.Object.Delete(ctx, joinKey(b.prefix, key)); err != nil && !cos.IsNotFoundError(err) {
		return fmt.Errorf("failed to delete file from tencent cos: %w", err)
	}
	return nil
}

// Stat 获取对象元信息
func (b *TencentBackend) Stat(ctx context.Context, key string) (*FileInfo, error) {
	resp, err := b.client.Object.Head(ctx, joinKey(b.prefix, key), nil)
	if err != nil {
		if cos.IsNotFoundError(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to get file info from tencent cos: %w", err)
	}

	modified, _ := http.ParseTime(resp.Header.Get("Last-Modified"))
	name := path.Base(key)
	return &FileInfo{
		Key:         key,
		Name:        name,
		Size:        resp.ContentLength,
		ContentType: resp.Header.Get("Content-Type"),
		CreatedAt:   createdAtFromName(name, modified),
		ModifiedAt:  modified,
	}, nil
}

// List 分页列出前缀下的全部对象
func (b *TencentBackend) List(ctx context.Context, prefix string) ([]FileInfo, error) {
	fullPrefix := joinKey(b.prefix, strings.TrimSuffix(prefix, "/")+"/")
	files := []FileInfo{}
	marker := ""

	for {
		result, _, err := b.client.Bucket.Get(ctx, &cos.BucketGetOptions{
			Prefix:  fullPrefix,
			Marker:  marker,
			MaxKeys: 1000,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list files from tencent cos: %w", err)
		}
		for _, object := range result.Contents {
			// COS 列表接口返回 ISO8601 时间
			modified, _ := time.Parse(time.RFC3339, object.LastModified)
			name := path.Base(object.Key)
			files = append(files, FileInfo{
				Key:        strings.TrimPrefix(object.Key, joinKey(b.prefix, "")),
				Name:       name,
				Size:       int64(object.Size),
				CreatedAt:  createdAtFromName(name, modified),
				ModifiedAt: modified,
			})
		}
		if !result.IsTruncated {
			break
		}
		marker = result.NextMarker
	}
	return files, nil
}

// Ping 检查存储桶可访问
func (b *TencentBackend) Ping(ctx context.Context) error {
	if _, err := b.client.Bucket.Head(ctx); err != nil {
		return fmt.Errorf("failed to test tencent cos connection: %w", err)
	}
	return nil
}

var _ Backend = (*TencentBackend)(nil)
