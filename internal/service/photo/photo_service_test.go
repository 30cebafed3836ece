package photo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/booknotes/internal/errors"
	"github.com/weiwangfds/booknotes/internal/testutil"
)

func TestPhotoUpload(t *testing.T) {
	store := testutil.NewStore(t)
	svc := NewPhotoService(testutil.OpenDB(t), store)
	ctx := context.Background()

	t.Run("默认标题为文件名", func(t *testing.T) {
		fh := testutil.FileHeader(t, "photo", "sunset.png", testutil.PNG(256, 1))
		photo, err := svc.Upload(ctx, &UploadRequest{Tags: "sea, sky ,"}, fh)
		require.NoError(t, err)
		assert.Equal(t, "sunset.png", photo.Title)
		assert.Equal(t, photo.URL, photo.ThumbnailURL)
		assert.Equal(t, []string{"sea", "sky"}, []string(photo.Tags))
		assert.True(t, store.Exists(ctx, photo.URL))

		got, err := svc.Get(ctx, photo.ID)
		require.NoError(t, err)
		assert.Equal(t, photo.URL, got.URL)
	})

	t.Run("拒绝非图片", func(t *testing.T) {
		fh := testutil.FileHeader(t, "photo", "virus.jpg", []byte("MZ\x90\x00 this is not an image"))
		_, err := svc.Upload(ctx, &UploadRequest{}, fh)
		assert.Equal(t, errors.ErrFileTypeNotAllowed, testutil.ErrCode(t, err))
	})

	t.Run("缺少文件", func(t *testing.T) {
		_, err := svc.Upload(ctx, &UploadRequest{}, nil)
		assert.Equal(t, errors.ErrInvalidParams, testutil.ErrCode(t, err))
	})
}

func TestPhotoListSkipsMissingFiles(t *testing.T) {
	store := testutil.NewStore(t)
	svc := NewPhotoService(testutil.OpenDB(t), store)
	ctx := context.Background()

	kept, err := svc.Upload(ctx, &UploadRequest{Title: "kept"}, testutil.FileHeader(t, "photo", "a.png", testutil.PNG(64, 1)))
	require.NoError(t, err)
	lost, err := svc.Upload(ctx, &UploadRequest{Title: "lost"}, testutil.FileHeader(t, "photo", "b.png", testutil.PNG(64, 2)))
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, lost.URL))

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, kept.ID, list[0].ID)
}

func TestPhotoUpdateKeepsFile(t *testing.T) {
	store := testutil.NewStore(t)
	svc := NewPhotoService(testutil.OpenDB(t), store)
	ctx := context.Background()

	photo, err := svc.Upload(ctx, &UploadRequest{Title: "t", Description: "d"}, testutil.FileHeader(t, "photo", "a.webp", webp()))
	require.NoError(t, err)

	title := "new"
	tags := []string{"x"}
	updated, err := svc.Update(ctx, photo.ID, &UpdateRequest{Title: &title, Tags: &tags})
	require.NoError(t, err)
	assert.Equal(t, "new", updated.Title)
	assert.Equal(t, "d", updated.Description)
	assert.Equal(t, photo.URL, updated.URL)
	assert.Equal(t, tags, []string(updated.Tags))

	_, err = svc.Update(ctx, "missing", &UpdateRequest{Title: &title})
	assert.Equal(t, errors.ErrRecordNotFound, testutil.ErrCode(t, err))
}

func TestPhotoDeleteRemovesFiles(t *testing.T) {
	store := testutil.NewStore(t)
	svc := NewPhotoService(testutil.OpenDB(t), store)
	ctx := context.Background()

	a, err := svc.Upload(ctx, &UploadRequest{}, testutil.FileHeader(t, "photo", "a.png", testutil.PNG(64, 1)))
	require.NoError(t, err)
	b, err := svc.Upload(ctx, &UploadRequest{}, testutil.FileHeader(t, "photo", "b.png", testutil.PNG(64, 2)))
	require.NoError(t, err)
	c, err := svc.Upload(ctx, &UploadRequest{}, testutil.FileHeader(t, "photo", "c.png", testutil.PNG(64, 3)))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, a.ID))
	assert.False(t, store.Exists(ctx, a.URL))
	assert.Equal(t, errors.ErrRecordNotFound, testutil.ErrCode(t, svc.Delete(ctx, a.ID)))

	// 文件已丢失时删除记录仍然成功
	require.NoError(t, store.Delete(ctx, b.URL))
	count, err := svc.BatchDelete(ctx, []string{b.ID, c.ID, "missing"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.False(t, store.Exists(ctx, c.URL))

	_, err = svc.BatchDelete(ctx, nil)
	assert.Equal(t, errors.ErrInvalidParams, testutil.ErrCode(t, err))
}

func TestPhotoCreateRequiresURL(t *testing.T) {
	svc := NewPhotoService(testutil.OpenDB(t), testutil.NewStore(t))
	_, err := svc.Create(context.Background(), &CreateRequest{Title: "t"})
	assert.Equal(t, errors.ErrInvalidParams, testutil.ErrCode(t, err))
}

func TestPhotoCreateRejectsForeignMedia(t *testing.T) {
	store := testutil.NewStore(t)
	svc := NewPhotoService(testutil.OpenDB(t), store)
	ctx := context.Background()

	uploaded, err := svc.Upload(ctx, &UploadRequest{Title: "cat"}, testutil.FileHeader(t, "photo", "cat.png", testutil.PNG(64, 9)))
	require.NoError(t, err)

	// 引用已有照片的文件会导致删除其中一条时误删另一条的图片
	_, err = svc.Create(ctx, &CreateRequest{URL: uploaded.URL})
	assert.Equal(t, errors.ErrRecordAlreadyExists, testutil.ErrCode(t, err))

	_, err = svc.Create(ctx, &CreateRequest{URL: "/uploads/home/avatar.png"})
	assert.Equal(t, errors.ErrInvalidFilePath, testutil.ErrCode(t, err))

	_, err = svc.Create(ctx, &CreateRequest{URL: "https://example.com/a.png", ThumbnailURL: "/uploads/travels/a.png"})
	assert.Equal(t, errors.ErrInvalidFilePath, testutil.ErrCode(t, err))

	external, err := svc.Create(ctx, &CreateRequest{URL: "https://example.com/a.png"})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, external.ID))
	assert.True(t, store.Exists(ctx, uploaded.URL))
}

// webp 最小的WebP文件头
func webp() []byte {
	data := []byte("RIFF\x24\x00\x00\x00WEBPVP8 \x18\x00\x00\x00")
	return append(data, make([]byte, 32)...)
}
