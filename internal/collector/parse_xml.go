package collector

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"
)

const (
	atomNS = "http://www.w3.org/2005/Atom"
	// RSS/HTML 来源的摘要最长保留的字符数
	descriptionMaxRunes = 700
)

// ParseRSS 解析 RSS 2.0 的 <channel><item>；没有 channel 时返回空列表而不是错误。
// XML 本身不合法时整个解析失败，不返回部分结果。
func ParseRSS(body []byte) ([]Item, error) {
	root, err := parseXMLRoot(body)
	if err != nil {
		return nil, err
	}
	channel := firstChild(root, "", "channel")
	if channel == nil {
		return []Item{}, nil
	}

	entries := children(channel, "", "item")
	items := make([]Item, 0, len(entries))
	for _, n := range entries {
		var cats []string
		for _, c := range children(n, "", "category") {
			if v := Normalize(c.InnerText()); v != "" {
				cats = append(cats, v)
			}
		}
		items = append(items, Item{
			Title:       Normalize(childText(n, "", "title")),
			Link:        Normalize(childText(n, "", "link")),
			Published:   Normalize(childText(n, "", "pubDate")),
			GUID:        Normalize(childText(n, "", "guid")),
			Category:    strings.Join(cats, ", "),
			Description: Truncate(StripTags(childText(n, "", "description")), descriptionMaxRunes),
		})
	}
	return items, nil
}

// ParseAtom 解析根元素下、Atom 命名空间内的 <entry>；链接取第一个 <link> 的 href
func ParseAtom(body []byte) ([]Item, error) {
	root, err := parseXMLRoot(body)
	if err != nil {
		return nil, err
	}

	entries := children(root, atomNS, "entry")
	items := make([]Item, 0, len(entries))
	for _, n := range entries {
		link := ""
		if l := firstChild(n, atomNS, "link"); l != nil {
			link = Normalize(l.SelectAttr("href"))
		}
		items = append(items, Item{
			Title:       Normalize(childText(n, atomNS, "title")),
			Link:        link,
			Published:   Normalize(childText(n, atomNS, "updated")),
			Description: Normalize(childText(n, atomNS, "summary")),
		})
	}
	return items, nil
}

func parseXMLRoot(body []byte) (*xmlquery.Node, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	for n := doc.FirstChild; n != nil; n = n.NextSibling {
		if n.Type == xmlquery.ElementNode {
			return n, nil
		}
	}
	return nil, fmt.Errorf("%w: no root element", ErrParse)
}

// children 返回 n 的直接子元素中命名空间与本地名都匹配的节点（不递归）
func children(n *xmlquery.Node, space, local string) []*xmlquery.Node {
	var out []*xmlquery.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode && c.Data == local && c.NamespaceURI == space {
			out = append(out, c)
		}
	}
	return out
}

func firstChild(n *xmlquery.Node, space, local string) *xmlquery.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode && c.Data == local && c.NamespaceURI == space {
			return c
		}
	}
	return nil
}

func childText(n *xmlquery.Node, space, local string) string {
	if c := firstChild(n, space, local); c != nil {
		return c.InnerText()
	}
	return ""
}
