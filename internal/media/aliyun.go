package media

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/weiwangfds/booknotes/config"
)

// AliyunBackend 阿里云OSS存储后端
type AliyunBackend struct {
	client *oss.Client
	bucket *oss.Bucket
	name   string
	prefix string
}

// NewAliyunBackend 创建阿里云OSS存储后端
func NewAliyunBackend(cfg config.StorageConfig) (*AliyunBackend, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://oss-%s.aliyuncs.com", cfg.Region)
	}

	client, err := oss.New(endpoint, cfg.AccessKey, cfg.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create aliyun oss client: %w", err)
	}

	bucket, err := client.Bucket(cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to get bucket %s: %w", cfg.Bucket, err)
	}

	return &AliyunBackend{
		client: client,
		bucket: bucket,
		name:   cfg.Bucket,
		prefix: cfg.KeyPrefix,
	}, nil
}

// Put 上传对象
func (b *AliyunBackend) Put(ctx context.Context, key string, reader io.Reader, _ int64, contentType string) error {
	options := []oss.Option{oss.WithContext(ctx)}
	if contentType != "" {
		options = append(options, oss.ContentType(contentType))
	}
	if err := b.bucket.PutObject(joinKey(b.prefix, key), reader, options...); err != nil {
		return fmt.Errorf("failed to upload file to aliyun oss: %w", err)
	}
	return nil
}

// Open 下载对象
func (b *AliyunBackend) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	body, err := b.bucket.GetObject(joinKey(b.prefix, key), oss.WithContext(ctx))
	if err != nil {
		if isAliyunNotFound(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to download file from aliyun oss: %w", err)
	}
	return body, nil
}

// Delete 删除对象，OSS 删除不存在的对象同样返回成功
func (b *AliyunBackend) Delete(ctx context.Context, key string) error {
	if err := b.bucket.DeleteObject(joinKey(b.prefix, key), oss.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to delete file from aliyun oss: %w", err)
	}
	return nil
}

// Stat 获取对象元信息
func (b *AliyunBackend) Stat(ctx context.Context, key string) (*FileInfo, error) {
	meta, err := b.bucket.GetObjectDetailedMeta(joinKey(b.prefix, key), oss.WithContext(ctx))
	if err != nil {
		if isAliyunNotFound(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to get file info from aliyun oss: %w", err)
	}

	size, _ := strconv.ParseInt(meta.Get("Content-Length"), 10, 64)
	modified, _ := http.ParseTime(meta.Get("Last-Modified"))
	name := path.Base(key)
	return &FileInfo{
		Key:         key,
		Name:        name,
		Size:        size,
		ContentType: meta.Get("Content-Type"),
		CreatedAt:   createdAtFromName(name, modified),
		ModifiedAt:  modified,
	}, nil
}

// List 分页列出前缀下的全部对象
func (b *AliyunBackend) List(ctx context.Context, prefix string) ([]FileInfo, error) {
	fullPrefix := joinKey(b.prefix, strings.TrimSuffix(prefix, "/")+"/")
	files := []FileInfo{}
	marker := ""

	for {
		res, err := b.bucket.ListObjects(oss.WithContext(ctx), oss.Prefix(fullPrefix), oss.Marker(marker), oss.MaxKeys(1000))
		if err != nil {
			return nil, fmt.Errorf("failed to list files from aliyun oss: %w", err)
		}
		for _, object := range res.Objects {
			name := path.Base(object.Key)
			files = append(files, FileInfo{
				Key:        strings.TrimPrefix(object.Key, joinKey(b.prefix, "")),
				Name:       name,
				Size:       object.Size,
				CreatedAt:  createdAtFromName(name, object.LastModified),
				ModifiedAt: object.LastModified,
			})
		}
		if !res.IsTruncated {
			break
		}
		marker = res.NextMarker
	}
	return files, nil
}

// Ping 获取存储桶信息以验证凭证
func (b *AliyunBackend) Ping(_ context.Context) error {
	if _, err := b.client.GetBucketInfo(b.name); err != nil {
		return fmt.Errorf("failed to test aliyun oss connection: %w", err)
	}
	return nil
}

func isAliyunNotFound(err error) bool {
	var svcErr oss.ServiceError
	if stderrors.As(err, &svcErr) {
		return svcErr.StatusCode == http.StatusNotFound
	}
	var svcErrPtr *oss.ServiceError
	if stderrors.As(err, &svcErrPtr) {
		return svcErrPtr.StatusCode == http.StatusNotFound
	}
	return false
}

var _ Backend = (*AliyunBackend)(nil)
