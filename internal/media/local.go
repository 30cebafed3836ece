package media

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// LocalBackend 本地磁盘存储，所有对象位于 root 目录下
type LocalBackend struct {
	root string // 绝对路径
}

// NewLocalBackend 创建本地存储，目录不存在时自动创建
func NewLocalBackend(root string) (*LocalBackend, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("media: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("media: create root: %w", err)
	}
	return &LocalBackend{root: abs}, nil
}

// Root 返回存储根目录
func (b *LocalBackend) Root() string {
	return b.root
}

// safePath 将对象键解析为根目录下的绝对路径，拒绝越界路径
func (b *LocalBackend) safePath(key string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(key))
	if cleaned == "." || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("media: invalid key: %q", key)
	}
	abs, err := filepath.Abs(filepath.Join(b.root, cleaned))
	if err != nil {
		return "", fmt.Errorf("media: resolve key: %w", err)
	}
	if !strings.HasPrefix(abs, b.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("media: key escapes root: %q", key)
	}
	return abs, nil
}

// Put 先写入临时文件再重命名，避免读到不完整的文件
func (b *LocalBackend) Put(_ context.Context, key string, reader io.Reader, _ int64, _ string) error {
	target, err := b.safePath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("media: create dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return fmt.Errorf("media: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		return fmt.Errorf("media: write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("media: close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("media: rename file: %w", err)
	}
	return nil
}

// Open 打开文件，返回的 *os.File 支持 Seek
func (b *LocalBackend) Open(_ context.Context, key string) (io.ReadCloser, error) {
	path, err := b.safePath(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, ErrObjectNotFound
		}
		return nil, err
	}
	return f, nil
}

// Delete 删除文件，文件不存在时忽略
func (b *LocalBackend) Delete(_ context.Context, key string) error {
	path, err := b.safePath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Stat 获取文件信息
func (b *LocalBackend) Stat(_ context.Context, key string) (*FileInfo, error) {
	path, err := b.safePath(key)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, ErrObjectNotFound
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, ErrObjectNotFound
	}
	return b.fileInfo(key, path, info), nil
}

// List 列出前缀目录下的文件（不递归）
func (b *LocalBackend) List(_ context.Context, prefix string) ([]FileInfo, error) {
	dir, err := b.safePath(prefix)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return []FileInfo{}, nil
		}
		return nil, err
	}

	files := make([]FileInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		key := strings.TrimSuffix(prefix, "/") + "/" + entry.Name()
		files = append(files, *b.fileInfo(key, filepath.Join(dir, entry.Name()), info))
	}
	return files, nil
}

// Ping 检查根目录可访问
func (b *LocalBackend) Ping(_ context.Context) error {
	_, err := os.Stat(b.root)
	return err
}

func (b *LocalBackend) fileInfo(key, path string, info fs.FileInfo) *FileInfo {
	contentType := ""
	if mt, err := mimetype.DetectFile(path); err == nil {
		contentType = mt.String()
	}
	return &FileInfo{
		Key:         key,
		Name:        info.Name(),
		Size:        info.Size(),
		ContentType: contentType,
		CreatedAt:   createdAtFromName(info.Name(), info.ModTime()),
		ModifiedAt:  info.ModTime(),
	}
}
