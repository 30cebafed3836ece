package media

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/booknotes/internal/errors"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func pngBytes(size int) []byte {
	data := make([]byte, size)
	copy(data, pngHeader)
	return data
}

func setupTestStore(t *testing.T) (*Store, string) {
	root := t.TempDir()
	backend, err := NewLocalBackend(root)
	require.NoError(t, err)
	return NewStore(backend), root
}

func appErrorCode(t *testing.T, err error) errors.ErrorCode {
	appErr, ok := errors.GetAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	return appErr.Code
}

func TestStoreSave(t *testing.T) {
	store, root := setupTestStore(t)
	ctx := context.Background()

	t.Run("保存合法图片", func(t *testing.T) {
		url, err := store.Save(ctx, NamespacePhotos, "cat.PNG", bytes.NewReader(pngBytes(1024)))
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(url, "/uploads/photos/"))
		assert.True(t, strings.HasSuffix(url, ".png"))

		_, err = os.Stat(filepath.Join(root, "photos", filepath.Base(url)))
		assert.NoError(t, err)
		assert.True(t, store.Exists(ctx, url))
	})

	t.Run("文件名不重复", func(t *testing.T) {
		a, err := store.Save(ctx, NamespaceArticles, "a.png", bytes.NewReader(pngBytes(64)))
		require.NoError(t, err)
		b, err := store.Save(ctx, NamespaceArticles, "a.png", bytes.NewReader(pngBytes(64)))
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("拒绝不允许的扩展名", func(t *testing.T) {
		_, err := store.Save(ctx, NamespacePhotos, "virus.exe", bytes.NewReader(pngBytes(64)))
		require.Error(t, err)
		assert.Equal(t, errors.ErrFileTypeNotAllowed, appErrorCode(t, err))
	})

	t.Run("拒绝伪装成图片的可执行文件", func(t *testing.T) {
		fake := append([]byte("MZ\x90\x00\x03\x00\x00\x00"), make([]byte, 256)...)
		_, err := store.Save(ctx, NamespacePhotos, "virus.jpg", bytes.NewReader(fake))
		require.Error(t, err)
		assert.Equal(t, errors.ErrFileTypeNotAllowed, appErrorCode(t, err))
	})

	t.Run("首页图片超过5MB", func(t *testing.T) {
		_, err := store.Save(ctx, NamespaceHome, "avatar.png", bytes.NewReader(pngBytes(5<<20+1)))
		require.Error(t, err)
		assert.Equal(t, errors.ErrFileSizeTooLarge, appErrorCode(t, err))
	})

	t.Run("相册图片允许10MB以内", func(t *testing.T) {
		_, err := store.Save(ctx, NamespacePhotos, "big.png", bytes.NewReader(pngBytes(6<<20)))
		assert.NoError(t, err)

		_, err = store.Save(ctx, NamespacePhotos, "huge.png", bytes.NewReader(pngBytes(10<<20+1)))
		require.Error(t, err)
		assert.Equal(t, errors.ErrFileSizeTooLarge, appErrorCode(t, err))
	})
}

func TestStoreDelete(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	url, err := store.Save(ctx, NamespaceTravels, "trip.png", bytes.NewReader(pngBytes(128)))
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, url))
	assert.False(t, store.Exists(ctx, url))

	// 重复删除不报错
	assert.NoError(t, store.Delete(ctx, url))

	err = store.Delete(ctx, "/uploads/travels/../../etc/passwd")
	require.Error(t, err)
	assert.Equal(t, errors.ErrInvalidFilePath, appErrorCode(t, err))

	// 外部链接被忽略
	store.DeleteQuietly(ctx, "https://example.com/a.png", "")
}

func TestStoreListNewestFirst(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var urls []string
	for i := 0; i < 3; i++ {
		ts := base.Add(time.Duration(i) * time.Hour)
		store.now = func() time.Time { return ts }
		url, err := store.Save(ctx, NamespacePhotos, "p.png", bytes.NewReader(pngBytes(32)))
		require.NoError(t, err)
		urls = append(urls, url)
	}

	files, err := store.List(ctx, NamespacePhotos)
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, urls[2], files[0].URL)
	assert.Equal(t, urls[0], files[2].URL)
	assert.Equal(t, int64(32), files[0].Size)
	assert.Equal(t, "image/png", files[0].ContentType)
	assert.True(t, files[0].CreatedAt.Equal(base.Add(2*time.Hour)))

	empty, err := store.List(ctx, NamespaceHome)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestStoreOpen(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	data := pngBytes(100)
	url, err := store.Save(ctx, NamespaceHome, "a.png", bytes.NewReader(data))
	require.NoError(t, err)

	got, err := store.ReadAll(ctx, url)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	_, _, err = store.Open(ctx, "/uploads/home/missing.png")
	require.Error(t, err)
	assert.Equal(t, errors.ErrMediaNotFound, appErrorCode(t, err))
}

func TestSplitURL(t *testing.T) {
	tests := []struct {
		url     string
		ns      Namespace
		name    string
		wantErr bool
	}{
		{"/uploads/photos/1.png", NamespacePhotos, "1.png", false},
		{"/uploads/home/a.jpg?v=2", NamespaceHome, "a.jpg", false},
		{"/uploads/photos/../home/a.png", "", "", true},
		{"/uploads/photos/..", "", "", true},
		{"/uploads/secret/a.png", "", "", true},
		{"/uploads/photos/", "", "", true},
		{"/uploads/photos/a\\b.png", "", "", true},
		{"images/photos/a.png", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			ns, name, err := SplitURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.ns, ns)
			assert.Equal(t, tt.name, name)
		})
	}
}

func TestRequireNamespace(t *testing.T) {
	assert.NoError(t, RequireNamespace("https://example.com/a.png", NamespaceHome))
	assert.NoError(t, RequireNamespace("/uploads/home/a.png", NamespaceHome))

	err := RequireNamespace("/uploads/photos/a.png", NamespaceHome)
	require.Error(t, err)
	assert.Equal(t, errors.ErrInvalidFilePath, appErrorCode(t, err))

	err = RequireNamespace("/uploads/home/../photos/a.png", NamespaceHome)
	require.Error(t, err)
	assert.Equal(t, errors.ErrInvalidFilePath, appErrorCode(t, err))
}

func TestStorePing(t *testing.T) {
	store, root := setupTestStore(t)
	require.NoError(t, store.Ping(context.Background()))

	require.NoError(t, os.RemoveAll(root))
	err := store.Ping(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.ErrStorageConnectionFailed, appErrorCode(t, err))
}

func TestLocalBackendSafePath(t *testing.T) {
	backend, err := NewLocalBackend(t.TempDir())
	require.NoError(t, err)

	_, err = backend.safePath("../outside.png")
	assert.Error(t, err)
	_, err = backend.safePath("photos/../../outside.png")
	assert.Error(t, err)

	p, err := backend.safePath("photos/a.png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(backend.Root(), "photos", "a.png"), p)
}

func TestCreatedAtFromName(t *testing.T) {
	fallback := time.Unix(100, 0)
	assert.True(t, createdAtFromName("1704067200000-abc.png", fallback).Equal(time.UnixMilli(1704067200000)))
	assert.Equal(t, fallback, createdAtFromName("avatar.png", fallback))
	assert.Equal(t, fallback, createdAtFromName("x-y.png", fallback))
}
