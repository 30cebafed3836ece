package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTranslate(t *testing.T) {
	i := GetInstance()

	assert.Equal(t, "资源不存在", i.Translate("not_found", LangZhCN))
	assert.Equal(t, "Resource Not Found", i.Translate("not_found", LangEnUS))
	assert.Equal(t, "Category already exists", i.Translate("record_already_exists", LangEnUS, "Category"))

	// 未知语言回退到默认语言
	assert.Equal(t, "资源不存在", i.Translate("not_found", "fr-FR"))

	// 未知键原样返回
	assert.Equal(t, "no_such_key", i.Translate("no_such_key", LangEnUS))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, LangEnUS, Normalize("en-GB,en;q=0.9"))
	assert.Equal(t, LangZhCN, Normalize("zh-TW"))
	assert.Equal(t, LangZhCN, Normalize("fr;q=0.8, zh-CN;q=0.5"))
	assert.Equal(t, "", Normalize("fr"))
	assert.Equal(t, "", Normalize(""))
}
