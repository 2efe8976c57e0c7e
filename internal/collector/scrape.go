package collector

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

// 页面没有 feed 的来源只能从 HTML 里“尽力而为”地提取，页面结构一变就会少抓，
// 所以这里的策略对象只有窄接口：输入原始 HTML，输出条目，永不报错。

// LinkScraper 提取 href 含指定路径片段且带 title 属性的 <a>，按绝对 URL 去重
type LinkScraper struct {
	PathSegment string
	Description string
	yearRe      *regexp.Regexp
}

func NewLinkScraper(pathSegment, yearPattern, description string) (*LinkScraper, error) {
	s := &LinkScraper{PathSegment: pathSegment, Description: description}
	if yearPattern != "" {
		re, err := regexp.Compile(yearPattern)
		if err != nil {
			return nil, fmt.Errorf("compile year pattern: %w", err)
		}
		s.yearRe = re
	}
	return s, nil
}

// Extract 按文档顺序返回匹配到的链接；HTML 残缺时只是匹配得更少
func (s *LinkScraper) Extract(body []byte, baseURL string) []Item {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return []Item{}
	}
	base, _ := url.Parse(baseURL)

	items := make([]Item, 0, 32)
	seen := make(map[string]struct{})
	doc.Find("a[href][title]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		title, _ := a.Attr("title")
		href = strings.TrimSpace(href)
		idx := strings.Index(href, s.PathSegment)
		// 路径片段之后还要有内容，只指向栏目首页的链接不算
		if idx < 0 || len(href) <= idx+len(s.PathSegment) {
			return
		}
		title = Normalize(title)
		if title == "" {
			return
		}

		full := resolveURL(base, href)
		if _, ok := seen[full]; ok {
			return
		}
		seen[full] = struct{}{}

		items = append(items, Item{
			Title:       title,
			Link:        full,
			Published:   s.year(full),
			Description: s.Description,
		})
	})
	return items
}

// year 从 URL 路径中取出粗粒度的年份，识别不到时为空
func (s *LinkScraper) year(link string) string {
	if s.yearRe == nil {
		return ""
	}
	if m := s.yearRe.FindStringSubmatch(link); len(m) > 1 {
		return m[1]
	}
	return ""
}

func resolveURL(base *url.URL, href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

const (
	snippetBefore   = 120
	snippetAfter    = 260
	summaryMaxRunes = 900
)

// PageSummary 政策页面的提取结果
type PageSummary struct {
	Modified string
	Summary  string
}

// SnippetExtractor 在去标签后的正文里按标记语句截取上下文窗口，拼成一段摘要
type SnippetExtractor struct {
	Markers        []string
	DefaultSummary string
}

func (e *SnippetExtractor) Extract(body []byte) PageSummary {
	var out PageSummary
	if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body)); err == nil {
		if v, ok := doc.Find(`meta[name="dcterms.modified"]`).First().Attr("content"); ok {
			out.Modified = strings.TrimSpace(v)
		}
	}

	text := []rune(StripTags(string(body)))
	lower := lowerRunes(string(text))

	var snippets []string
	for _, marker := range e.Markers {
		if strings.TrimSpace(marker) == "" {
			continue
		}
		idx := indexRunes(lower, lowerRunes(marker))
		if idx < 0 {
			continue
		}
		start := idx - snippetBefore
		if start < 0 {
			start = 0
		}
		end := idx + snippetAfter
		if end > len(text) {
			end = len(text)
		}
		snippets = append(snippets, string(text[start:end]))
	}

	if len(snippets) == 0 {
		out.Summary = e.DefaultSummary
		return out
	}
	out.Summary = Truncate(Normalize(strings.Join(snippets, " | ")), summaryMaxRunes)
	return out
}

// indexRunes 在 rune 切片中查找子序列，偏移量按字符而不是字节计算
func indexRunes(s, sub []rune) int {
	if len(sub) == 0 {
		return 0
	}
	for i := 0; i+len(sub) <= len(s); i++ {
		match := true
		for j := range sub {
			if s[i+j] != sub[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// lowerRunes 逐个 rune 转小写，保证与原文的下标一一对应
func lowerRunes(s string) []rune {
	rs := []rune(s)
	for i, r := range rs {
		rs[i] = unicode.ToLower(r)
	}
	return rs
}
