package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weiwangfds/booknotes/config"
	"gorm.io/datatypes"
)

func TestInitSQLite(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "data", "test.db")
	db, err := Init(config.DatabaseConfig{Driver: config.DriverSQLite, DSN: dsn, LogLevel: "silent"})
	require.NoError(t, err)
	defer Close(db)

	for _, table := range []string{"users", "categories", "articles", "annotations", "photos", "bookmarks", "events", "travels", "home"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
}

func TestInitUnsupportedDriver(t *testing.T) {
	_, err := Init(config.DatabaseConfig{Driver: "mysql", DSN: "x"})
	assert.Error(t, err)
}

func TestModelHooksAndJSONColumns(t *testing.T) {
	db, err := Init(config.DatabaseConfig{Driver: config.DriverSQLite, DSN: filepath.Join(t.TempDir(), "hooks.db"), LogLevel: "silent"})
	require.NoError(t, err)
	defer Close(db)

	t.Run("创建时生成ID", func(t *testing.T) {
		article := &Article{Title: "t", Content: "c", Tags: datatypes.JSONSlice[string]{"go", "gorm"}}
		require.NoError(t, db.Create(article).Error)
		assert.Len(t, article.ID, 36)
		assert.False(t, article.CreatedAt.IsZero())

		var loaded Article
		require.NoError(t, db.First(&loaded, "id = ?", article.ID).Error)
		assert.Equal(t, []string{"go", "gorm"}, []string(loaded.Tags))
	})

	t.Run("首页嵌套字段", func(t *testing.T) {
		home := NewDefaultHome()
		home.SocialLinks = append(home.SocialLinks, SocialLink{Name: "GitHub", URL: "https://github.com"})
		require.NoError(t, db.Create(home).Error)

		var loaded Home
		require.NoError(t, db.First(&loaded).Error)
		assert.Equal(t, int64(4057), loaded.Stats.Data().Views)
		require.Len(t, loaded.SocialLinks, 1)
		assert.Equal(t, "GitHub", loaded.SocialLinks[0].Name)
	})
}

func TestCompactURLs(t *testing.T) {
	travel := &Travel{Images: datatypes.JSONSlice[string]{"/uploads/travels/a.jpg", "", "/uploads/travels/a.jpg", "/uploads/travels/b.jpg"}}
	assert.Equal(t, []string{"/uploads/travels/a.jpg", "/uploads/travels/b.jpg"}, travel.MediaURLs())

	photo := &Photo{URL: "/uploads/photos/p.jpg", ThumbnailURL: "/uploads/photos/p.jpg"}
	assert.Equal(t, []string{"/uploads/photos/p.jpg"}, photo.MediaURLs())
}
