package collector

import "sort"

// Merger 按身份键合并多次查询的结果：先到先得，后续查询命中同一条目时不覆盖已有字段
type Merger struct {
	order []string
	byKey map[string]*Item
}

func NewMerger() *Merger {
	return &Merger{byKey: make(map[string]*Item)}
}

// Add 返回 true 表示新增了一条；没有身份键的条目被丢弃
func (m *Merger) Add(it Item) bool {
	key := it.Key()
	if key == "" {
		return false
	}
	if existing, ok := m.byKey[key]; ok {
		if existing.TermHit == "" {
			existing.TermHit = it.TermHit
		}
		return false
	}
	cp := it
	m.byKey[key] = &cp
	m.order = append(m.order, key)
	return true
}

func (m *Merger) Len() int {
	return len(m.order)
}

// Items 按首次出现顺序返回合并后的条目
func (m *Merger) Items() []Item {
	out := make([]Item, 0, len(m.order))
	for _, k := range m.order {
		out = append(out, *m.byKey[k])
	}
	return out
}

// SortNewestFirst 按 (published, key) 的字符串倒序排列。
// 不同来源的日期格式不统一（ISO 日期、RFC 822、仅年份），这只是近似的“最新在前”，
// 不是真正的时间排序，这里刻意不做日期解析。
func SortNewestFirst(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Published != items[j].Published {
			return items[i].Published > items[j].Published
		}
		return items[i].Key() > items[j].Key()
	})
}

func capItems(items []Item, limit int) []Item {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
