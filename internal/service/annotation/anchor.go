package annotation

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/weiwangfds/booknotes/internal/database"
)

// textPolicy 去掉全部标签，只保留文本
var textPolicy = bluemonday.StrictPolicy()

// PlainText 返回文章HTML对应的纯文本，与前端按DOM文本遍历得到的结果一致
func PlainText(content string) string {
	return html.UnescapeString(textPolicy.Sanitize(content))
}

// ReanchorOffsets 校验批注偏移量，失效时在文本中查找 SelectedText 重新定位
// 有多处匹配时取离原起始位置最近的一处，找不到时标记为 Stale 并保留原偏移量
// 偏移量按字符（rune）计算
func ReanchorOffsets(text string, a *database.Annotation) bool {
	if a.SelectedText == "" {
		return false
	}
	runes := []rune(text)
	if a.StartOffset >= 0 && a.EndOffset <= len(runes) && a.StartOffset <= a.EndOffset &&
		string(runes[a.StartOffset:a.EndOffset]) == a.SelectedText {
		return false
	}

	selected := []rune(a.SelectedText)
	best := -1
	for from := 0; from <= len(runes)-len(selected); {
		idx := indexRunes(runes[from:], selected)
		if idx < 0 {
			break
		}
		pos := from + idx
		if best < 0 || distance(pos, a.StartOffset) < distance(best, a.StartOffset) {
			best = pos
		}
		from = pos + 1
	}

	if best < 0 {
		a.Stale = true
		return false
	}
	a.StartOffset = best
	a.EndOffset = best + len(selected)
	return true
}

// indexRunes 在 haystack 中查找 needle 的位置（按 rune 计）
func indexRunes(haystack, needle []rune) int {
	idx := strings.Index(string(haystack), string(needle))
	if idx < 0 {
		return -1
	}
	return len([]rune(string(haystack)[:idx]))
}

func distance(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}
