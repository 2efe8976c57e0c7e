package collector

import (
	"fmt"
	"net/http"
	"time"

	"github.com/LJTian/TariffHub/internal/config"
)

const defaultFetchTimeout = 25 * time.Second

// Options 所有数据源共享的抓取参数
type Options struct {
	Timeout   time.Duration
	UserAgent string
	// Client 可选，为空时按 Timeout 新建；测试中用来注入 httptest 客户端
	Client *http.Client
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = defaultFetchTimeout
	}
	if o.UserAgent == "" {
		o.UserAgent = config.DefaultUserAgent
	}
	if o.Client == nil {
		o.Client = &http.Client{Timeout: o.Timeout}
	}
	return o
}

// NewFromConfig 按数据源类型构建对应的 Fetcher
func NewFromConfig(src config.Source, filter *KeywordFilter, opts Options) (Fetcher, error) {
	opts = opts.withDefaults()
	if filter == nil {
		filter = NewKeywordFilter(config.DefaultKeywords)
	}
	b := base{
		src:    src,
		filter: filter.With(src.ExtraTerms...),
		opts:   opts,
	}

	switch src.Kind {
	case config.KindAPIMultiQuery:
		return &APIMultiQueryFetcher{base: b}, nil
	case config.KindRSS:
		return &FeedFetcher{base: b, parse: ParseRSS}, nil
	case config.KindAtom:
		return &FeedFetcher{base: b, parse: ParseAtom}, nil
	case config.KindHTMLLinks:
		s, err := NewLinkScraper(src.LinkPattern, src.YearPattern, src.ItemDescription)
		if err != nil {
			return nil, fmt.Errorf("source %q: %w", src.Name, err)
		}
		return &HTMLLinksFetcher{base: b, scraper: s}, nil
	case config.KindHTMLSnippets:
		return &HTMLSnippetFetcher{base: b, extractor: &SnippetExtractor{
			Markers:        src.Markers,
			DefaultSummary: src.DefaultSummary,
		}}, nil
	default:
		return nil, fmt.Errorf("unknown source kind: %s", src.Kind)
	}
}

// NewAll 为配置中的每个数据源构建 Fetcher，顺序与配置一致
func NewAll(settings *config.Settings, opts Options) ([]Fetcher, error) {
	filter := NewKeywordFilter(settings.Keywords)
	fetchers := make([]Fetcher, 0, len(settings.Sources))
	for _, src := range settings.Sources {
		f, err := NewFromConfig(src, filter, opts)
		if err != nil {
			return nil, err
		}
		fetchers = append(fetchers, f)
	}
	return fetchers, nil
}

// base 各类 Fetcher 共用的部分：描述、过滤、兜底策略
type base struct {
	src    config.Source
	filter *KeywordFilter
	opts   Options
}

func (b *base) Name() string {
	return b.src.Name
}

func (b *base) Descriptor() config.Source {
	return b.src
}

// relevant 按数据源配置的字段组合做关键词过滤；未配置字段时不过滤
func (b *base) relevant(it Item) bool {
	if len(b.src.FilterFields) == 0 {
		return true
	}
	parts := make([]string, 0, len(b.src.FilterFields))
	for _, f := range b.src.FilterFields {
		switch f {
		case config.FieldTitle:
			parts = append(parts, it.Title)
		case config.FieldDescription:
			parts = append(parts, it.Description)
		case config.FieldCategory:
			parts = append(parts, it.Category)
		}
	}
	return b.filter.IsRelevant(parts...)
}

// selectItems 过滤并截断。过滤结果为空且该源开启了 fallback_unfiltered 时，
// 退回未过滤的列表，避免 feed 因为最新几条恰好不含关键词而空掉。
func (b *base) selectItems(items []Item) []Item {
	filtered := make([]Item, 0, len(items))
	for _, it := range items {
		if b.relevant(it) {
			filtered = append(filtered, it)
		}
	}
	if len(filtered) == 0 && b.src.FallbackUnfiltered {
		filtered = items
	}
	return capItems(filtered, b.src.MaxItems)
}

// fail 整体失败时的结果：配置了占位条目的源补一条指回原站的说明
func (b *base) fail(res FetchResult, err error) (FetchResult, error) {
	if p := b.src.Placeholder; p != nil {
		res.Items = []Item{{
			Title:       p.Title,
			Link:        b.src.URL,
			Published:   "",
			Description: p.Description,
		}}
	}
	return res, err
}
