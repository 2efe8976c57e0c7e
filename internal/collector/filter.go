package collector

import "strings"

// KeywordFilter 基于子串的关键词相关性过滤，只是启发式规则，
// "trade" 之类出现在无关语境里的误报是可以接受的。
type KeywordFilter struct {
	keywords []string
}

func NewKeywordFilter(keywords []string) *KeywordFilter {
	kw := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			kw = append(kw, k)
		}
	}
	return &KeywordFilter{keywords: kw}
}

// With 返回追加了额外词汇的新过滤器，原过滤器不变
func (f *KeywordFilter) With(extra ...string) *KeywordFilter {
	if len(extra) == 0 {
		return f
	}
	all := append(append([]string(nil), f.keywords...), extra...)
	return NewKeywordFilter(all)
}

// IsRelevant 把各字段用空格拼起来后做大小写无关的子串匹配；空文本永远不相关
func (f *KeywordFilter) IsRelevant(parts ...string) bool {
	text := strings.ToLower(strings.Join(parts, " "))
	if strings.TrimSpace(text) == "" {
		return false
	}
	for _, k := range f.keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// Keywords 返回当前词表的副本
func (f *KeywordFilter) Keywords() []string {
	return append([]string(nil), f.keywords...)
}
