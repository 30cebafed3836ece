package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/qiniu/go-sdk/v7/auth/qbox"
	"github.com/qiniu/go-sdk/v7/storage"
	"github.com/weiwangfds/booknotes/config"
)

// QiniuBackend 七牛云Kodo存储后端
type QiniuBackend struct {
	mac          *qbox.Mac
	bucketName   string
	bucketDomain string
	region       *storage.Region
	prefix       string
	httpClient   *http.Client
}

// NewQiniuBackend 创建七牛云Kodo存储后端
// Endpoint 为绑定的下载域名，留空时使用区域默认域名
func NewQiniuBackend(cfg config.StorageConfig) (*QiniuBackend, error) {
	mac := qbox.NewMac(cfg.AccessKey, cfg.SecretKey)

	region, err := storage.GetRegion(cfg.AccessKey, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to get qiniu region: %w", err)
	}

	bucketDomain := cfg.Endpoint
	if bucketDomain == "" {
		bucketDomain = fmt.Sprintf("https://%s.%s", cfg.Bucket, region.RsHost)
	}

	return &QiniuBackend{
		mac:          mac,
		bucketName:   cfg.Bucket,
		bucketDomain: bucketDomain,
		region:       region,
		prefix:       cfg.KeyPrefix,
		httpClient:   &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (b *QiniuBackend) bucketManager() *storage.BucketManager {
	return storage.NewBucketManager(b.mac, &storage.Config{
		Region:   b.region,
		UseHTTPS: true,
	})
}

// Put 表单上传对象
func (b *QiniuBackend) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	objectKey := joinKey(b.prefix, key)
	putPolicy := storage.PutPolicy{
		Scope: fmt.Sprintf("%s:%s", b.bucketName, objectKey),
	}
	upToken := putPolicy.UploadToken(b.mac)

	formUploader := storage.NewFormUploader(&storage.Config{
		Region:        b.region,
		UseHTTPS:      true,
		UseCdnDomains: false,
	})

	ret := storage.PutRet{}
	putExtra := storage.PutExtra{MimeType: contentType}
	if err := formUploader.Put(ctx, &ret, upToken, objectKey, reader, size, &putExtra); err != nil {
		return fmt.Errorf("failed to upload file to qiniu kodo: %w", err)
	}
	return nil
}

// Open 通过私有下载链接读取对象
func (b *QiniuBackend) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	deadline := time.Now().Add(time.Hour).Unix()
	privateURL := storage.MakePrivateURL(b.mac, b.bucketDomain, joinKey(b.prefix, key), deadline)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, privateURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file from qiniu kodo: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return resp.Body, nil
	case http.StatusNotFound:
		resp.Body.Close()
		return nil, ErrObjectNotFound
	default:
		resp.Body.Close()
		return nil, fmt.Errorf("failed to download file, status: %s", resp.Status)
	}
}

// Delete 删除对象
func (b *QiniuBackend) Delete(_ context.Context, key string) error {
	if err := b.bucketManager().Delete(b.bucketName, joinKey(b.prefix, key)); err != nil && !isQiniuNotFound(err) {
		return fmt.Errorf("failed to delete file from qiniu kodo: %w", err)
	}
	return nil
}

// Stat 获取对象元信息
func (b *QiniuBackend) Stat(_ context.Context, key string) (*FileInfo, error) {
	info, err := b.bucketManager().Stat(b.bucketName, joinKey(b.prefix, key))
	if err != nil {
		if isQiniuNotFound(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to get file info from qiniu kodo: %w", err)
	}

	modified := putTime(info.PutTime)
	name := path.Base(key)
	return &FileInfo{
		Key:         key,
		Name:        name,
		Size:        info.Fsize,
		ContentType: info.MimeType,
		CreatedAt:   createdAtFromName(name, modified),
		ModifiedAt:  modified,
	}, nil
}

// List 分页列出前缀下的全部对象
func (b *QiniuBackend) List(_ context.Context, prefix string) ([]FileInfo, error) {
	manager := b.bucketManager()
	fullPrefix := joinKey(b.prefix, strings.TrimSuffix(prefix, "/")+"/")
	files := []FileInfo{}
	marker := ""

	for {
		entries, _, nextMarker, hasNext, err := manager.ListFiles(b.bucketName, fullPrefix, "", marker, 1000)
		if err != nil {
			return nil, fmt.Errorf("failed to list files from qiniu kodo: %w", err)
		}
		for _, entry := range entries {
			modified := putTime(entry.PutTime)
			name := path.Base(entry.Key)
			files = append(files, FileInfo{
				Key:         strings.TrimPrefix(entry.Key, joinKey(b.prefix, "")),
				Name:        name,
				Size:        entry.Fsize,
				ContentType: entry.MimeType,
				CreatedAt:   createdAtFromName(name, modified),
				ModifiedAt:  modified,
			})
		}
		if !hasNext {
			break
		}
		marker = nextMarker
	}
	return files, nil
}

// Ping 列出一个对象以验证凭证
func (b *QiniuBackend) Ping(_ context.Context) error {
	if _, _, _, _, err := b.bucketManager().ListFiles(b.bucketName, "", "", "", 1); err != nil {
		return fmt.Errorf("failed to test qiniu kodo connection: %w", err)
	}
	return nil
}

// putTime 七牛时间单位为100纳秒
func putTime(v int64) time.Time {
	return time.Unix(0, v*100)
}

func isQiniuNotFound(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
}

var _ Backend = (*QiniuBackend)(nil)
