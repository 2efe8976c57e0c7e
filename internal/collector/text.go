package collector

import (
	"html"
	"regexp"
	"strings"
)

var (
	scriptRe = regexp.MustCompile(`(?i)<script[\s\S]*?</script>`)
	styleRe  = regexp.MustCompile(`(?i)<style[\s\S]*?</style>`)
	tagRe    = regexp.MustCompile(`<[^>]+>`)
)

// Normalize 把连续空白压成一个空格并去掉首尾空白。
// 用 unicode.IsSpace 判定空白，&nbsp; 解码出的 U+00A0 也会被折叠。
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// StripTags 去掉 script/style 块和所有标签，解码实体后再做空白规范化。
// 基于正则，遇到残缺标记时尽力而为，不会报错。
func StripTags(s string) string {
	s = scriptRe.ReplaceAllString(s, " ")
	s = styleRe.ReplaceAllString(s, " ")
	s = tagRe.ReplaceAllString(s, " ")
	return Normalize(html.UnescapeString(s))
}

// Truncate 按 rune 截断，避免切坏多字节字符
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}
