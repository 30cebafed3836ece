package travel

import (
	"context"
	"mime/multipart"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/booknotes/internal/errors"
	"github.com/weiwangfds/booknotes/internal/media"
	"github.com/weiwangfds/booknotes/internal/testutil"
)

func intPtr(i int) *int { return &i }

func uploads(t *testing.T, n int) []*multipart.FileHeader {
	files := make([]*multipart.FileHeader, 0, n)
	for i := 0; i < n; i++ {
		files = append(files, testutil.FileHeader(t, "images", "img.png", testutil.PNG(64, byte(i))))
	}
	return files
}

func setup(t *testing.T) (Service, *media.Store) {
	store := testutil.NewStore(t)
	return NewTravelService(testutil.OpenDB(t), store), store
}

func TestTravelCreate(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()

	t.Run("默认评分", func(t *testing.T) {
		travel, err := svc.Create(ctx, &CreateRequest{Title: "京都", Date: "2023-11-20"}, uploads(t, 2))
		require.NoError(t, err)
		assert.Equal(t, DefaultRating, travel.Rating)
		require.Len(t, travel.Images, 2)
		for _, url := range travel.Images {
			assert.True(t, store.Exists(ctx, url))
		}
	})

	t.Run("评分越界", func(t *testing.T) {
		for _, rating := range []int{0, 6} {
			_, err := svc.Create(ctx, &CreateRequest{Title: "t", Date: "2023-11-20", Rating: intPtr(rating)}, nil)
			assert.Equal(t, errors.ErrInvalidParams, testutil.ErrCode(t, err))
		}
	})

	t.Run("图片过多", func(t *testing.T) {
		_, err := svc.Create(ctx, &CreateRequest{Title: "t", Date: "2023-11-20"}, uploads(t, MaxImages+1))
		assert.Equal(t, errors.ErrInvalidParams, testutil.ErrCode(t, err))
	})

	t.Run("缺少日期", func(t *testing.T) {
		_, err := svc.Create(ctx, &CreateRequest{Title: "t"}, nil)
		assert.Equal(t, errors.ErrInvalidParams, testutil.ErrCode(t, err))
	})

	t.Run("非法文件时回滚已保存图片", func(t *testing.T) {
		files := append(uploads(t, 1), testutil.FileHeader(t, "images", "bad.gif", []byte("not a gif at all")))
		_, err := svc.Create(ctx, &CreateRequest{Title: "t", Date: "2023-11-20"}, files)
		assert.Equal(t, errors.ErrFileTypeNotAllowed, testutil.ErrCode(t, err))

		list, err := store.List(ctx, media.NamespaceTravels)
		require.NoError(t, err)
		assert.Len(t, list, 2)
	})
}

func TestTravelUpdateImages(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()

	travel, err := svc.Create(ctx, &CreateRequest{Title: "京都", Date: "2023-11-20", Rating: intPtr(4)}, uploads(t, 3))
	require.NoError(t, err)
	first, second, third := travel.Images[0], travel.Images[1], travel.Images[2]

	t.Run("未提供existingImages时保留原图", func(t *testing.T) {
		location := "Kyoto"
		updated, err := svc.Update(ctx, travel.ID, &UpdateRequest{Location: &location}, uploads(t, 1))
		require.NoError(t, err)
		assert.Equal(t, "Kyoto", updated.Location)
		assert.Equal(t, 4, updated.Rating)
		require.Len(t, updated.Images, 4)
		assert.Equal(t, first, updated.Images[0])
	})

	t.Run("移除的图片被清理", func(t *testing.T) {
		existing := []string{third, first, "/uploads/travels/not-mine.png"}
		updated, err := svc.Update(ctx, travel.ID, &UpdateRequest{ExistingImages: &existing}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{third, first}, []string(updated.Images))
		assert.False(t, store.Exists(ctx, second))
		assert.True(t, store.Exists(ctx, first))
	})

	t.Run("不存在", func(t *testing.T) {
		_, err := svc.Update(ctx, "missing", &UpdateRequest{}, nil)
		assert.Equal(t, errors.ErrRecordNotFound, testutil.ErrCode(t, err))
	})
}

func TestTravelListAndDelete(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()

	older, err := svc.Create(ctx, &CreateRequest{Title: "older", Date: "2020-01-01"}, uploads(t, 1))
	require.NoError(t, err)
	newer, err := svc.Create(ctx, &CreateRequest{Title: "newer", Date: "2024-01-01"}, uploads(t, 1))
	require.NoError(t, err)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)

	require.NoError(t, svc.Delete(ctx, older.ID))
	assert.False(t, store.Exists(ctx, older.Images[0]))

	count, err := svc.BatchDelete(ctx, []string{newer.ID, older.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.False(t, store.Exists(ctx, newer.Images[0]))
}
