// Package i18n 提供国际化支持
// 负责管理错误消息的语言包和翻译功能
package i18n

import (
	"strings"
	"sync"

	"github.com/go-playground/locales/en_US"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/weiwangfds/booknotes/internal/logger"
)

// 支持的语言
const (
	LangZhCN = "zh-CN"
	LangEnUS = "en-US"
)

var (
	instance *I18n
	once     sync.Once

	// 语言包，{0} 为参数占位符
	translations = map[string]map[string]string{
		LangZhCN: {
			"success":               "成功",
			"internal_server_error": "服务器错误",
			"invalid_params":        "参数错误",
			"unauthorized":          "未授权，请先登录",
			"invalid_credentials":   "用户名或密码错误",
			"forbidden":             "禁止访问",
			"not_found":             "资源不存在",
			"too_many_requests":     "请求过于频繁，请稍后再试",

			"media_not_found":       "文件不存在",
			"file_upload_failed":    "文件上传失败",
			"file_delete_failed":    "文件删除失败",
			"file_read_failed":      "文件读取失败",
			"file_write_failed":     "文件写入失败",
			"file_size_too_large":   "文件大小超过上限 {0}",
			"file_type_not_allowed": "只允许上传图片文件（jpeg, jpg, png, gif, webp）",
			"invalid_file_path":     "非法的文件路径",

			"storage_provider_not_supported": "不支持的存储提供商",
			"storage_connection_failed":      "存储服务连接失败",

			"database_query":        "数据库查询错误",
			"database_insert":       "数据库写入错误",
			"database_update":       "数据库更新错误",
			"database_delete":       "数据库删除错误",
			"record_not_found":      "{0}不存在",
			"record_already_exists": "{0}已存在",

			"archive_invalid":      "备份文件无效",
			"archive_write_failed": "备份文件生成失败",
			"archive_version":      "不支持的备份版本 {0}",

			"unknown_error": "未知错误",
		},
		LangEnUS: {
			"success":               "Success",
			"internal_server_error": "Internal Server Error",
			"invalid_params":        "Invalid Parameters",
			"unauthorized":          "Unauthorized, please log in",
			"invalid_credentials":   "Invalid username or password",
			"forbidden":             "Forbidden",
			"not_found":             "Resource Not Found",
			"too_many_requests":     "Too Many Requests",

			"media_not_found":       "File Not Found",
			"file_upload_failed":    "File Upload Failed",
			"file_delete_failed":    "File Delete Failed",
			"file_read_failed":      "File Read Failed",
			"file_write_failed":     "File Write Failed",
			"file_size_too_large":   "File exceeds the {0} limit",
			"file_type_not_allowed": "Only image files are allowed (jpeg, jpg, png, gif, webp)",
			"invalid_file_path":     "Invalid File Path",

			"storage_provider_not_supported": "Storage Provider Not Supported",
			"storage_connection_failed":      "Storage Connection Failed",

			"database_query":        "Database Query Error",
			"database_insert":       "Database Insert Error",
			"database_update":       "Database Update Error",
			"database_delete":       "Database Delete Error",
			"record_not_found":      "{0} not found",
			"record_already_exists": "{0} already exists",

			"archive_invalid":      "Invalid Backup Archive",
			"archive_write_failed": "Failed To Write Backup Archive",
			"archive_version":      "Unsupported backup version {0}",

			"unknown_error": "Unknown Error",
		},
	}
)

// I18n 国际化管理器
type I18n struct {
	mu          sync.RWMutex
	translators map[string]ut.Translator
	defaultLang string
}

// GetInstance 获取I18n单例
func GetInstance() *I18n {
	once.Do(func() {
		instance = &I18n{
			translators: make(map[string]ut.Translator),
			defaultLang: LangZhCN,
		}
		instance.initTranslators()
	})
	return instance
}

// initTranslators 初始化翻译器并注册语言包
func (i *I18n) initTranslators() {
	zhLocale := zh.New()
	enLocale := en_US.New()
	uni := ut.New(zhLocale, zhLocale, enLocale)

	langMappings := map[string]string{
		LangZhCN: "zh",
		LangEnUS: "en_US",
	}

	for ourLang, localeLang := range langMappings {
		trans, found := uni.GetTranslator(localeLang)
		if !found {
			logger.Errorf("初始化翻译器失败: %s (locale: %s)", ourLang, localeLang)
			continue
		}
		for key, text := range translations[ourLang] {
			if err := trans.Add(key, text, false); err != nil {
				logger.Errorf("注册翻译失败: %s/%s: %v", ourLang, key, err)
			}
		}
		i.translators[ourLang] = trans
	}
}

// Translate 根据键和语言获取翻译，params 依次替换 {0}, {1}...
func (i *I18n) Translate(key, lang string, params ...string) string {
	i.mu.RLock()
	defaultLang := i.defaultLang
	i.mu.RUnlock()

	for _, l := range []string{lang, defaultLang} {
		trans, ok := i.translators[l]
		if !ok {
			continue
		}
		raw, ok := translations[l][key]
		if !ok {
			continue
		}
		// 参数不足时 T 会越界，直接返回原文
		if strings.Count(raw, "{") > len(params) {
			return raw
		}
		if text, err := trans.T(key, params...); err == nil {
			return text
		}
	}

	logger.Warnf("未找到翻译: %s, 语言: %s", key, lang)
	return key
}

// SetDefaultLanguage 设置默认语言，不支持的语言会被忽略
func (i *I18n) SetDefaultLanguage(lang string) {
	if !i.IsSupportedLanguage(lang) {
		logger.Warnf("不支持的语言: %s", lang)
		return
	}
	i.mu.Lock()
	i.defaultLang = lang
	i.mu.Unlock()
}

// GetDefaultLanguage 获取默认语言
func (i *I18n) GetDefaultLanguage() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.defaultLang
}

// IsSupportedLanguage 检查语言是否支持
func (i *I18n) IsSupportedLanguage(lang string) bool {
	_, exists := i.translators[lang]
	return exists
}

// Normalize 将 Accept-Language 头解析为支持的语言，无法识别时返回空字符串
// 例如 "en-GB,en;q=0.9" -> en-US, "zh-TW" -> zh-CN
func Normalize(acceptLanguage string) string {
	for _, part := range strings.Split(acceptLanguage, ",") {
		tag := strings.ToLower(strings.TrimSpace(strings.SplitN(part, ";", 2)[0]))
		switch {
		case strings.HasPrefix(tag, "zh"):
			return LangZhCN
		case strings.HasPrefix(tag, "en"):
			return LangEnUS
		}
	}
	return ""
}
