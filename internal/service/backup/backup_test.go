package backup

import (
	"archive/zip"
	"bytes"
	"context"
	"mime/multipart"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/booknotes/internal/errors"
	"github.com/weiwangfds/booknotes/internal/media"
	"github.com/weiwangfds/booknotes/internal/service/annotation"
	"github.com/weiwangfds/booknotes/internal/service/article"
	"github.com/weiwangfds/booknotes/internal/service/bookmark"
	"github.com/weiwangfds/booknotes/internal/service/category"
	"github.com/weiwangfds/booknotes/internal/service/event"
	"github.com/weiwangfds/booknotes/internal/service/home"
	"github.com/weiwangfds/booknotes/internal/service/photo"
	"github.com/weiwangfds/booknotes/internal/service/travel"
	"github.com/weiwangfds/booknotes/internal/testutil"
)

func newServices(t *testing.T) (Services, *media.Store) {
	db := testutil.OpenDB(t)
	store := testutil.NewStore(t)
	return Services{
		Categories:  category.NewCategoryService(db),
		Articles:    article.NewArticleService(db, false, nil),
		Annotations: annotation.NewAnnotationService(db),
		Photos:      photo.NewPhotoService(db, store),
		Bookmarks:   bookmark.NewBookmarkService(db),
		Events:      event.NewEventService(db),
		Travels:     travel.NewTravelService(db, store),
		Home:        home.NewHomeService(db, store, 0),
	}, store
}

func intPtr(i int) *int { return &i }

func strPtr(s string) *string { return &s }

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src, srcStore := newServices(t)

	cat, err := src.Categories.Create(ctx, &category.CreateRequest{Name: "算法", Icon: "📚", SortOrder: 2})
	require.NoError(t, err)

	inline, err := srcStore.Save(ctx, media.NamespaceArticles, "inline.png", bytes.NewReader(testutil.PNG(256, 7)))
	require.NoError(t, err)
	art, err := src.Articles.Create(ctx, &article.CreateRequest{
		Title:    "最短路径",
		Content:  `<p>Dijkstra 算法</p><img src="` + inline + `">`,
		Category: &cat.ID,
		Tags:     []string{"graph"},
	})
	require.NoError(t, err)
	_, err = src.Articles.IncrementViews(ctx, art.ID)
	require.NoError(t, err)

	_, err = src.Annotations.Create(ctx, &annotation.CreateRequest{
		Article:      art.ID,
		SelectedText: "Dijkstra",
		StartOffset:  intPtr(0),
		EndOffset:    intPtr(8),
		Comment:      "贪心",
	})
	require.NoError(t, err)

	pic, err := src.Photos.Upload(ctx, &photo.UploadRequest{Title: "日落"},
		testutil.FileHeader(t, "file", "sunset.png", testutil.PNG(512, 1)))
	require.NoError(t, err)

	_, err = src.Bookmarks.Create(ctx, &bookmark.CreateRequest{Title: "Go", URL: "https://go.dev", Category: "编程"})
	require.NoError(t, err)
	_, err = src.Events.Create(ctx, &event.CreateRequest{Title: "毕业", Date: "2020-06-30"})
	require.NoError(t, err)
	_, err = src.Travels.Create(ctx, &travel.CreateRequest{Title: "京都", Date: "2023-11-20", Rating: intPtr(4)},
		[]*multipart.FileHeader{testutil.FileHeader(t, "images", "kyoto.png", testutil.PNG(300, 2))})
	require.NoError(t, err)
	_, err = src.Home.Update(ctx, &home.UpdateRequest{Name: strPtr("Wei")}, home.Files{
		Avatar: testutil.FileHeader(t, "avatarImage", "me.png", testutil.PNG(128, 3)),
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, NewExporter(src, srcStore, nil).Export(ctx, &buf))

	dst, dstStore := newServices(t)
	report, err := NewImporter(dst, dstStore, nil).Import(ctx, bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	assert.Zero(t, report.Failed, report.Summary())
	assert.Equal(t, 1, report.Resources[ResourceArticles].Imported)
	assert.Equal(t, 1, report.Resources[ResourceAnnotations].Imported)
	assert.Equal(t, 1, report.Resources[ResourceHome].Imported)

	t.Run("文章和分类", func(t *testing.T) {
		articles, err := dst.Articles.List(ctx, article.ListFilter{})
		require.NoError(t, err)
		require.Len(t, articles, 1)
		got := articles[0]
		assert.Equal(t, "最短路径", got.Title)
		assert.Equal(t, int64(1), got.Views)
		assert.Equal(t, art.CreatedAt.Unix(), got.CreatedAt.Unix())
		require.NotNil(t, got.CategoryID)

		restoredCat, err := dst.Categories.Get(ctx, *got.CategoryID)
		require.NoError(t, err)
		assert.Equal(t, "算法", restoredCat.Name)

		assert.NotContains(t, got.Content, inline)
		urls := contentMediaPattern.FindAllString(got.Content, -1)
		require.Len(t, urls, 1)
		data, err := dstStore.ReadAll(ctx, urls[0])
		require.NoError(t, err)
		assert.Equal(t, testutil.PNG(256, 7), data)
	})

	t.Run("批注重新关联", func(t *testing.T) {
		annotations, err := dst.Annotations.ListAll(ctx)
		require.NoError(t, err)
		require.Len(t, annotations, 1)
		assert.Equal(t, "最短路径", annotations[0].ArticleTitle)
		assert.Equal(t, "贪心", annotations[0].Comment)
	})

	t.Run("媒体文件", func(t *testing.T) {
		photos, err := dst.Photos.List(ctx)
		require.NoError(t, err)
		require.Len(t, photos, 1)
		data, err := dstStore.ReadAll(ctx, photos[0].URL)
		require.NoError(t, err)
		original, err := srcStore.ReadAll(ctx, pic.URL)
		require.NoError(t, err)
		assert.Equal(t, original, data)

		travels, err := dst.Travels.List(ctx)
		require.NoError(t, err)
		require.Len(t, travels, 1)
		assert.Equal(t, 4, travels[0].Rating)
		require.Len(t, travels[0].Images, 1)
		assert.True(t, dstStore.Exists(ctx, travels[0].Images[0]))

		h, err := dst.Home.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Wei", h.Name)
		assert.True(t, dstStore.Exists(ctx, h.AvatarImage))
	})

	t.Run("收藏和事件", func(t *testing.T) {
		grouped, err := dst.Bookmarks.Grouped(ctx)
		require.NoError(t, err)
		require.Len(t, grouped["编程"], 1)

		events, err := dst.Events.List(ctx)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "2020-06-30", events[0].Date.Format("2006-01-02"))
	})
}

// buildArchive 构造只含 data.json 的备份文件
func buildArchive(t *testing.T, dataJSON string) []byte {
	return buildArchiveWith(t, dataJSON, nil)
}

// buildArchiveWith 构造备份文件，extra 可以直接写入原始条目
func buildArchiveWith(t *testing.T, dataJSON string, extra func(zw *zip.Writer)) []byte {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(DataFile)
	require.NoError(t, err)
	_, err = w.Write([]byte(dataJSON))
	require.NoError(t, err)
	if extra != nil {
		extra(zw)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func writeEntry(t *testing.T, zw *zip.Writer, name string, data []byte) {
	w, err := zw.Create(name)
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
}

func TestImportSkipsUnreadableImages(t *testing.T) {
	ctx := context.Background()
	svc, store := newServices(t)

	archive := buildArchiveWith(t, `{
		"version": "1.0.0",
		"data": {
			"bookmarks": {"工具": [{"title": "GitHub", "url": "https://github.com"}]},
			"events": [{"title": "毕业", "date": "2020-06-30"}],
			"photos": [
				{"title": "超大", "url": "images/photos/big.png"},
				{"title": "损坏", "url": "images/photos/broken.png"},
				{"title": "正常", "url": "images/photos/ok.png"}
			]
		}
	}`, func(zw *zip.Writer) {
		writeEntry(t, zw, "images/photos/big.png", testutil.PNG(maxImageSize+1, 3))
		writeEntry(t, zw, "images/photos/ok.png", testutil.PNG(256, 4))

		// 压缩数据无法解压
		w, err := zw.CreateRaw(&zip.FileHeader{
			Name:               "images/photos/broken.png",
			Method:             zip.Deflate,
			CompressedSize64:   4,
			UncompressedSize64: 256,
		})
		require.NoError(t, err)
		_, err = w.Write([]byte{0xff, 0xff, 0xff, 0xff})
		require.NoError(t, err)
	})

	report, err := NewImporter(svc, store, nil).Import(ctx, bytes.NewReader(archive), int64(len(archive)))
	require.NoError(t, err)

	assert.Equal(t, 1, report.Resources[ResourceBookmarks].Imported)
	assert.Equal(t, 1, report.Resources[ResourceEvents].Imported)
	assert.Equal(t, 3, report.Resources[ResourcePhotos].Imported)
	assert.Zero(t, report.Failed)

	joined := strings.Join(report.Warnings, "\n")
	assert.Contains(t, joined, "images/photos/big.png")
	assert.Contains(t, joined, "images/photos/broken.png")

	photos, err := svc.Photos.List(ctx)
	require.NoError(t, err)
	urls := map[string]string{}
	for _, p := range photos {
		urls[p.Title] = p.URL
	}
	assert.Empty(t, urls["超大"])
	assert.Empty(t, urls["损坏"])
	assert.NotEmpty(t, urls["正常"])
}

func TestImportImagesTotalLimit(t *testing.T) {
	ctx := context.Background()
	svc, store := newServices(t)

	old := maxImagesTotal
	maxImagesTotal = 600
	t.Cleanup(func() { maxImagesTotal = old })

	archive := buildArchiveWith(t, `{
		"version": "1.0.0",
		"data": {
			"photos": [
				{"title": "第一张", "url": "images/photos/a.png"},
				{"title": "第二张", "url": "images/photos/b.png"}
			]
		}
	}`, func(zw *zip.Writer) {
		writeEntry(t, zw, "images/photos/a.png", testutil.PNG(512, 1))
		writeEntry(t, zw, "images/photos/b.png", testutil.PNG(512, 2))
	})

	report, err := NewImporter(svc, store, nil).Import(ctx, bytes.NewReader(archive), int64(len(archive)))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Resources[ResourcePhotos].Imported)
	assert.Contains(t, strings.Join(report.Warnings, "\n"), "images/photos/b.png")

	files, err := store.List(ctx, media.NamespacePhotos)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestImportPartialFailure(t *testing.T) {
	ctx := context.Background()
	svc, store := newServices(t)

	archive := buildArchive(t, `{
		"version": "1.2.0",
		"data": {
			"bookmarks": {
				"工具": [
					{"title": "GitHub", "url": "https://github.com"},
					{"title": 42, "url": "https://broken.example"},
					{"title": "无效链接", "url": "not a url"}
				]
			},
			"annotations": [
				{"articleTitle": "不存在", "selectedText": "x", "startOffset": 0, "endOffset": 1, "comment": "c"}
			],
			"photos": [
				{"title": "丢失", "url": "images/photos/missing.png"}
			]
		}
	}`)

	report, err := NewImporter(svc, store, nil).Import(ctx, bytes.NewReader(archive), int64(len(archive)))
	require.NoError(t, err)

	bookmarks := report.Resources[ResourceBookmarks]
	assert.Equal(t, 1, bookmarks.Imported)
	assert.Equal(t, 2, bookmarks.Failed)
	assert.Equal(t, "未知", bookmarks.Errors[0].Name)

	assert.Equal(t, 1, report.Resources[ResourceAnnotations].Failed)
	// 媒体文件缺失只产生警告，记录照常导入
	assert.Equal(t, 1, report.Resources[ResourcePhotos].Imported)
	assert.Zero(t, report.Resources[ResourcePhotos].Failed)
	assert.NotEmpty(t, report.Warnings)

	grouped, err := svc.Bookmarks.Grouped(ctx)
	require.NoError(t, err)
	require.Len(t, grouped["工具"], 1)
	assert.Equal(t, "GitHub", grouped["工具"][0].Title)
}

func TestImportAmbiguousArticleTitle(t *testing.T) {
	ctx := context.Background()
	svc, store := newServices(t)

	archive := buildArchive(t, `{
		"version": "1.0.0",
		"data": {
			"articles": [
				{"title": "同名", "content": "<p>a</p>"},
				{"title": "同名", "content": "<p>b</p>"}
			],
			"annotations": [
				{"articleTitle": "同名", "selectedText": "a", "startOffset": 0, "endOffset": 1, "comment": "c"}
			]
		}
	}`)

	report, err := NewImporter(svc, store, nil).Import(ctx, bytes.NewReader(archive), int64(len(archive)))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Resources[ResourceArticles].Imported)
	require.Equal(t, 1, report.Resources[ResourceAnnotations].Failed)
	assert.Contains(t, report.Resources[ResourceAnnotations].Errors[0].Error, "ambiguous")
}

func TestImportRejectsInvalidArchive(t *testing.T) {
	ctx := context.Background()
	svc, store := newServices(t)
	importer := NewImporter(svc, store, nil)

	tests := []struct {
		name    string
		archive []byte
		code    errors.ErrorCode
	}{
		{"不是zip", []byte("plain text"), errors.ErrArchiveInvalid},
		{"缺少版本", buildArchive(t, `{"data": {}}`), errors.ErrInvalidParams},
		{"主版本不支持", buildArchive(t, `{"version": "2.0.0", "data": {}}`), errors.ErrArchiveVersion},
		{"data.json格式错误", buildArchive(t, `{"version": `), errors.ErrInvalidParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := importer.Import(ctx, bytes.NewReader(tt.archive), int64(len(tt.archive)))
			assert.Equal(t, tt.code, testutil.ErrCode(t, err))
		})
	}

	t.Run("缺少data.json", func(t *testing.T) {
		var buf bytes.Buffer
		zw := zip.NewWriter(&buf)
		_, err := zw.Create("images/photos/a.png")
		require.NoError(t, err)
		require.NoError(t, zw.Close())
		_, err = importer.Import(ctx, bytes.NewReader(buf.Bytes()), int64(buf.Len()))
		assert.Equal(t, errors.ErrInvalidParams, testutil.ErrCode(t, err))
	})
}

func TestArchivePath(t *testing.T) {
	p, ok := ArchivePath("/uploads/photos/1700000000000-abc.png")
	require.True(t, ok)
	assert.Equal(t, "images/photos/1700000000000-abc.png", p)

	_, ok = ArchivePath("https://cdn.example.com/a.png")
	assert.False(t, ok)
	_, ok = ArchivePath("/uploads/../etc/passwd")
	assert.False(t, ok)

	ns, name, ok := splitArchivePath("images/travels/x.webp")
	require.True(t, ok)
	assert.Equal(t, media.NamespaceTravels, ns)
	assert.Equal(t, "x.webp", name)
	_, _, ok = splitArchivePath("images/unknown/x.png")
	assert.False(t, ok)
}
