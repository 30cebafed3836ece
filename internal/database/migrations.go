package database

import (
	"github.com/weiwangfds/booknotes/internal/logger"
	"gorm.io/gorm"
)

// Migrate 迁移全部表结构并创建复合索引
// 参数: db *gorm.DB - GORM数据库连接实例
// 返回值: error - 迁移失败时返回错误信息
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return err
	}
	return createIndexes(db)
}

// createIndexes 创建列表排序使用的复合索引
// 语句同时兼容 SQLite 和 PostgreSQL
func createIndexes(db *gorm.DB) error {
	indexes := []string{
		// 按文章读取批注，按创建时间升序
		"CREATE INDEX IF NOT EXISTS idx_annotations_article_created ON annotations(article_id, created_at)",
		// 按分类筛选文章，按创建时间倒序
		"CREATE INDEX IF NOT EXISTS idx_articles_category_created ON articles(category_id, created_at DESC)",
		// 收藏分组读取
		"CREATE INDEX IF NOT EXISTS idx_bookmarks_category_order ON bookmarks(category, sort_order)",
	}

	for _, indexSQL := range indexes {
		if err := db.Exec(indexSQL).Error; err != nil {
			logger.Errorf("创建索引失败: %s, 错误: %v", indexSQL, err)
			return err
		}
	}
	return nil
}
