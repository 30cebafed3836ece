package annotation

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

func intPtr(i int) *int { return &i }

func TestAnnotationLifecycle(t *testing.T) {
	db := setupTestDB(t)
	svc := NewAnnotationService(db)
	ctx := context.Background()

	article := &database.Article{Title: "X", Content: "<p>foo bar</p>"}
	require.NoError(t, db.Create(article).Error)

	created, err := svc.Create(ctx, &CreateRequest{
		Article:      article.ID,
		SelectedText: "foo",
		StartOffset:  intPtr(0),
		EndOffset:    intPtr(3),
		Comment:      "note",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	list, err := svc.ListByArticle(ctx, article.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "note", list[0].Comment)
	assert.False(t, list[0].Stale)

	all, err := svc.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "X", all[0].ArticleTitle)

	updated, err := svc.Update(ctx, created.ID, &UpdateRequest{Comment: "changed"})
	require.NoError(t, err)
	assert.Equal(t, "changed", updated.Comment)
	assert.Equal(t, "foo", updated.SelectedText)

	_, err = svc.Update(ctx, created.ID, &UpdateRequest{})
	assert.Equal(t, errors.ErrInvalidParams, errCode(t, err))

	require.NoError(t, svc.Delete(ctx, created.ID))
	assert.Equal(t, errors.ErrRecordNotFound, errCode(t, svc.Delete(ctx, created.ID)))
}

func TestAnnotationValidation(t *testing.T) {
	db := setupTestDB(t)
	svc := NewAnnotationService(db)
	ctx := context.Background()

	article := &database.Article{Title: "X", Content: "foo"}
	require.NoError(t, db.Create(article).Error)

	tests := []struct {
		name string
		req  CreateRequest
		code errors.ErrorCode
	}{
		{"缺少偏移量", CreateRequest{Article: article.ID, SelectedText: "f", Comment: "c"}, errors.ErrInvalidParams},
		{"结束位置小于起始位置", CreateRequest{Article: article.ID, SelectedText: "f", StartOffset: intPtr(3), EndOffset: intPtr(1), Comment: "c"}, errors.ErrInvalidParams},
		{"缺少批注内容", CreateRequest{Article: article.ID, SelectedText: "f", StartOffset: intPtr(0), EndOffset: intPtr(1)}, errors.ErrInvalidParams},
		{"文章不存在", CreateRequest{Article: "missing", SelectedText: "f", StartOffset: intPtr(0), EndOffset: intPtr(1), Comment: "c"}, errors.ErrRecordNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, &tt.req)
			assert.Equal(t, tt.code, errCode(t, err))
		})
	}

	_, err := svc.ListByArticle(ctx, "missing")
	assert.Equal(t, errors.ErrRecordNotFound, errCode(t, err))
}

func TestListByArticleReanchors(t *testing.T) {
	db := setupTestDB(t)
	svc := NewAnnotationService(db)
	ctx := context.Background()

	article := &database.Article{Title: "X", Content: "<p>foo bar</p>"}
	require.NoError(t, db.Create(article).Error)
	for _, text := range []string{"bar", "gone"} {
		_, err := svc.Create(ctx, &CreateRequest{
			Article: article.ID, SelectedText: text, StartOffset: intPtr(4), EndOffset: intPtr(4 + len(text)), Comment: "c",
		})
		require.NoError(t, err)
	}

	// 文章开头插入内容后原偏移量失效
	require.NoError(t, db.Model(article).Update("content", "<h1>Intro</h1><p>foo bar</p>").Error)

	list, err := svc.ListByArticle(ctx, article.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 9, list[0].StartOffset)
	assert.Equal(t, 12, list[0].EndOffset)
	assert.False(t, list[0].Stale)
	assert.True(t, list[1].Stale)
}

func TestReanchorOffsets(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		start, end int
		selected   string
		moved      bool
		wantStart  int
		stale      bool
	}{
		{"偏移量有效", "foo bar", 4, 7, "bar", false, 4, false},
		{"取最近的匹配", "ab ab ab", 5, 7, "ab", true, 6, false},
		{"多字节字符", "你好世界", 0, 2, "世界", true, 2, false},
		{"越界", "abc", 10, 12, "bc", true, 1, false},
		{"找不到", "abc", 0, 1, "z", false, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &database.Annotation{SelectedText: tt.selected, StartOffset: tt.start, EndOffset: tt.end}
			assert.Equal(t, tt.moved, ReanchorOffsets(tt.text, a))
			assert.Equal(t, tt.wantStart, a.StartOffset)
			assert.Equal(t, tt.stale, a.Stale)
			if !tt.stale {
				assert.Equal(t, tt.selected, string([]rune(tt.text)[a.StartOffset:a.EndOffset]))
			}
		})
	}
}

func TestPlainText(t *testing.T) {
	assert.Equal(t, "a & b", PlainText("<p>a &amp; <b>b</b></p>"))
}
