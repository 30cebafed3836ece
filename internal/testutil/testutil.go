// Package testutil 提供服务层测试共用的数据库、媒体存储和上传文件构造
package testutil

import (
	"bytes"
	"mime/multipart"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/booknotes/config"
	"github.com/weiwangfds/booknotes/internal/database"
	"github.com/weiwangfds/booknotes/internal/errors"
	"github.com/weiwangfds/booknotes/internal/media"
	"gorm.io/gorm"
)

// PNGHeader 最小的PNG文件头，足以通过内容类型检测
var PNGHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

// PNG 生成指定大小的PNG内容，seed 用于区分不同文件
func PNG(size int, seed byte) []byte {
	if size < len(PNGHeader)+1 {
		size = len(PNGHeader) + 1
	}
	data := make([]byte, size)
	copy(data, PNGHeader)
	for i := len(PNGHeader); i < size; i++ {
		data[i] = seed
	}
	return data
}

// OpenDB 在临时目录创建sqlite数据库，测试结束后关闭
func OpenDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := database.Init(config.DatabaseConfig{
		Driver:   config.DriverSQLite,
		DSN:      filepath.Join(t.TempDir(), "test.db"),
		LogLevel: "silent",
	})
	require.NoError(t, err)
	t.Cleanup(func() { database.Close(db) })
	return db
}

// NewStore 创建基于临时目录的本地媒体存储
func NewStore(t testing.TB) *media.Store {
	t.Helper()
	backend, err := media.NewLocalBackend(t.TempDir())
	require.NoError(t, err)
	return media.NewStore(backend)
}

// ErrCode 取出错误码，不是 AppError 时测试失败
func ErrCode(t testing.TB, err error) errors.ErrorCode {
	t.Helper()
	appErr, ok := errors.GetAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	return appErr.Code
}

// FileHeader 构造 multipart 上传文件
func FileHeader(t testing.TB, field, filename string, data []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(body, w.Boundary()).ReadForm(32 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { form.RemoveAll() })
	return form.File[field][0]
}
