package home

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/booknotes/internal/database"
	"github.com/weiwangfds/booknotes/internal/errors"
	"github.com/weiwangfds/booknotes/internal/media"
	"github.com/weiwangfds/booknotes/internal/testutil"
)

func strPtr(s string) *string { return &s }

func TestHomeLazyDefault(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewHomeService(db, testutil.NewStore(t), 0)
	ctx := context.Background()

	home, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, home.ID)
	assert.Equal(t, database.DefaultHomeStats(), home.Stats.Data())
	assert.NotNil(t, home.SocialLinks)

	again, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, home.ID, again.ID)

	var count int64
	require.NoError(t, db.Model(&database.Home{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestHomeUpdateReplacesImages(t *testing.T) {
	store := testutil.NewStore(t)
	svc := NewHomeService(testutil.OpenDB(t), store, time.Minute)
	ctx := context.Background()

	first, err := svc.Update(ctx, &UpdateRequest{Name: strPtr("Wei")}, Files{
		Avatar: testutil.FileHeader(t, "avatarImage", "me.png", testutil.PNG(128, 1)),
	})
	require.NoError(t, err)
	assert.Equal(t, "Wei", first.Name)
	oldAvatar := first.AvatarImage
	require.True(t, store.Exists(ctx, oldAvatar))

	second, err := svc.Update(ctx, &UpdateRequest{}, Files{
		Avatar: testutil.FileHeader(t, "avatarImage", "me2.png", testutil.PNG(128, 2)),
		Banner: testutil.FileHeader(t, "bannerImage", "banner.png", testutil.PNG(128, 3)),
	})
	require.NoError(t, err)
	assert.NotEqual(t, oldAvatar, second.AvatarImage)
	assert.False(t, store.Exists(ctx, oldAvatar))
	assert.True(t, store.Exists(ctx, second.BannerImage))
	assert.Equal(t, "Wei", second.Name)

	// 缓存在更新后刷新
	cached, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.AvatarImage, cached.AvatarImage)
}

func TestHomeUpdateRejectsLargeImage(t *testing.T) {
	store := testutil.NewStore(t)
	svc := NewHomeService(testutil.OpenDB(t), store, 0)

	_, err := svc.Update(context.Background(), &UpdateRequest{}, Files{
		Banner: testutil.FileHeader(t, "bannerImage", "big.png", testutil.PNG(6<<20, 1)),
	})
	assert.Equal(t, errors.ErrFileSizeTooLarge, testutil.ErrCode(t, err))
}

func TestParseForm(t *testing.T) {
	req := ParseForm(map[string][]string{
		"name":        {"Wei"},
		"socialLinks": {`[{"name":"GitHub","url":"https://github.com/x","icon":"github"}]`},
		"education":   {`not json`},
		"stats":       {`{"likes":1,"views":2,"online":3,"followers":4}`},
		"siteInfo":    {`{broken`},
	})

	require.NotNil(t, req.Name)
	assert.Equal(t, "Wei", *req.Name)
	assert.Nil(t, req.Subtitle)
	require.NotNil(t, req.SocialLinks)
	assert.Equal(t, "GitHub", (*req.SocialLinks)[0].Name)
	require.NotNil(t, req.Education)
	assert.Empty(t, *req.Education)
	assert.Nil(t, req.Work)
	require.NotNil(t, req.Stats)
	assert.Equal(t, int64(4), req.Stats.Followers)
	assert.Nil(t, req.SiteInfo)
}

func TestHomeUpdateStructuredFields(t *testing.T) {
	svc := NewHomeService(testutil.OpenDB(t), testutil.NewStore(t), 0)
	ctx := context.Background()

	links := []database.SocialLink{{Name: "GitHub", URL: "https://github.com/x"}}
	updated, err := svc.Update(ctx, &UpdateRequest{
		SocialLinks: &links,
		SiteInfo:    &database.SiteInfo{ICP: "京ICP备000000号"},
	}, Files{})
	require.NoError(t, err)

	loaded, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, updated.ID, loaded.ID)
	require.Len(t, loaded.SocialLinks, 1)
	assert.Equal(t, "GitHub", loaded.SocialLinks[0].Name)
	assert.Equal(t, "京ICP备000000号", loaded.SiteInfo.Data().ICP)
	assert.Equal(t, database.DefaultHomeStats(), loaded.Stats.Data())
}

func TestHomeCachedCopyIsIsolated(t *testing.T) {
	svc := NewHomeService(testutil.OpenDB(t), testutil.NewStore(t), time.Minute)
	ctx := context.Background()

	links := []database.SocialLink{{Name: "GitHub", URL: "https://github.com/wei"}}
	updated, err := svc.Update(ctx, &UpdateRequest{SocialLinks: &links}, Files{})
	require.NoError(t, err)
	updated.SocialLinks[0].Name = "changed by update caller"

	got, err := svc.Get(ctx)
	require.NoError(t, err)
	require.Len(t, got.SocialLinks, 1)
	assert.Equal(t, "GitHub", got.SocialLinks[0].Name)
	got.SocialLinks[0].Name = "changed by get caller"

	again, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "GitHub", again.SocialLinks[0].Name)
}

func TestHomeImagesStayInHomeNamespace(t *testing.T) {
	store := testutil.NewStore(t)
	svc := NewHomeService(testutil.OpenDB(t), store, time.Minute)
	ctx := context.Background()

	photoURL, err := store.SaveFileHeader(ctx, media.NamespacePhotos, testutil.FileHeader(t, "photo", "cat.png", testutil.PNG(128, 4)))
	require.NoError(t, err)

	_, err = svc.Update(ctx, &UpdateRequest{AvatarImage: strPtr(photoURL)}, Files{})
	require.Error(t, err)
	assert.Equal(t, errors.ErrInvalidFilePath, testutil.ErrCode(t, err))

	// 外部链接不受限制，替换时也不会删除相册文件
	home, err := svc.Update(ctx, &UpdateRequest{BannerImage: strPtr("https://example.com/banner.jpg")}, Files{})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/banner.jpg", home.BannerImage)
	assert.True(t, store.Exists(ctx, photoURL))
}

func TestHomeKeepsImageStillInUse(t *testing.T) {
	store := testutil.NewStore(t)
	svc := NewHomeService(testutil.OpenDB(t), store, time.Minute)
	ctx := context.Background()

	first, err := svc.Update(ctx, &UpdateRequest{}, Files{
		Avatar: testutil.FileHeader(t, "avatarImage", "me.png", testutil.PNG(128, 5)),
	})
	require.NoError(t, err)
	shared := first.AvatarImage

	_, err = svc.Update(ctx, &UpdateRequest{BannerImage: strPtr(shared)}, Files{})
	require.NoError(t, err)

	second, err := svc.Update(ctx, &UpdateRequest{}, Files{
		Avatar: testutil.FileHeader(t, "avatarImage", "me2.png", testutil.PNG(128, 6)),
	})
	require.NoError(t, err)
	assert.Equal(t, shared, second.BannerImage)
	assert.True(t, store.Exists(ctx, shared))
}
