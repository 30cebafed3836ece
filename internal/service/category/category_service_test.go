package category

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/booknotes/config"
	"github.com/weiwangfds/booknotes/internal/database"
	"github.com/weiwangfds/booknotes/internal/errors"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := database.Init(config.DatabaseConfig{
		Driver:   config.DriverSQLite,
		DSN:      filepath.Join(t.TempDir(), "test.db"),
		LogLevel: "silent",
	})
	require.NoError(t, err)
	t.Cleanup(func() { database.Close(db) })
	return db
}

func errCode(t *testing.T, err error) errors.ErrorCode {
	appErr, ok := errors.GetAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	return appErr.Code
}

func strPtr(s string) *string { return &s }

func TestCategoryCRUD(t *testing.T) {
	svc := NewCategoryService(setupTestDB(t))
	ctx := context.Background()

	second, err := svc.Create(ctx, &CreateRequest{Name: "Life", SortOrder: 2})
	require.NoError(t, err)
	first, err := svc.Create(ctx, &CreateRequest{Name: "Algorithms", Icon: "📚", SortOrder: 1})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.False(t, first.CreatedAt.IsZero())

	t.Run("按sortOrder排序", func(t *testing.T) {
		list, err := svc.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, first.ID, list[0].ID)
		assert.Equal(t, second.ID, list[1].ID)
	})

	t.Run("名称重复", func(t *testing.T) {
		_, err := svc.Create(ctx, &CreateRequest{Name: "Algorithms"})
		assert.Equal(t, errors.ErrRecordAlreadyExists, errCode(t, err))

		_, err = svc.Update(ctx, second.ID, &UpdateRequest{Name: strPtr("Algorithms")})
		assert.Equal(t, errors.ErrRecordAlreadyExists, errCode(t, err))
	})

	t.Run("名称为空", func(t *testing.T) {
		_, err := svc.Create(ctx, &CreateRequest{Icon: "x"})
		assert.Equal(t, errors.ErrInvalidParams, errCode(t, err))

		_, err = svc.Update(ctx, second.ID, &UpdateRequest{Name: strPtr("")})
		assert.Equal(t, errors.ErrInvalidParams, errCode(t, err))
	})

	t.Run("部分更新", func(t *testing.T) {
		updated, err := svc.Update(ctx, first.ID, &UpdateRequest{Icon: strPtr("🧮")})
		require.NoError(t, err)
		assert.Equal(t, "Algorithms", updated.Name)
		assert.Equal(t, "🧮", updated.Icon)
		assert.Equal(t, 1, updated.SortOrder)
	})

	t.Run("不存在", func(t *testing.T) {
		_, err := svc.Get(ctx, "missing")
		assert.Equal(t, errors.ErrRecordNotFound, errCode(t, err))
		_, err = svc.Update(ctx, "missing", &UpdateRequest{})
		assert.Equal(t, errors.ErrRecordNotFound, errCode(t, err))
		assert.Equal(t, errors.ErrRecordNotFound, errCode(t, svc.Delete(ctx, "missing")))
	})
}

func TestCategoryDeleteClearsArticleReference(t *testing.T) {
	db := setupTestDB(t)
	svc := NewCategoryService(db)
	ctx := context.Background()

	cat, err := svc.Create(ctx, &CreateRequest{Name: "Go"})
	require.NoError(t, err)
	article := &database.Article{Title: "t", Content: "c", CategoryID: &cat.ID}
	require.NoError(t, db.Create(article).Error)

	require.NoError(t, svc.Delete(ctx, cat.ID))

	var loaded database.Article
	require.NoError(t, db.First(&loaded, "id = ?", article.ID).Error)
	assert.Nil(t, loaded.CategoryID)
}

func TestCategoryBatchDelete(t *testing.T) {
	svc := NewCategoryService(setupTestDB(t))
	ctx := context.Background()

	a, err := svc.Create(ctx, &CreateRequest{Name: "a"})
	require.NoError(t, err)
	b, err := svc.Create(ctx, &CreateRequest{Name: "b"})
	require.NoError(t, err)

	count, err := svc.BatchDelete(ctx, []string{a.ID, b.ID, "missing"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	_, err = svc.BatchDelete(ctx, nil)
	assert.Equal(t, errors.ErrInvalidParams, errCode(t, err))
}
