package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const DefaultUserAgent = "TariffHubBot/1.0 (+https://github.com/LJTian/TariffHub)"

// 数据源类型，对应 collector 中的一种 Fetcher 实现
const (
	KindAPIMultiQuery = "api_multi_query"
	KindRSS           = "rss"
	KindAtom          = "atom"
	KindHTMLLinks     = "html_links"
	KindHTMLSnippets  = "html_snippets"
)

// 参与关键词过滤的字段
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldCategory    = "category"
)

// Placeholder 整体抓取失败时补上的一条说明性条目
type Placeholder struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
}

// Source 描述一个数据源，进程启动时构建一次，之后只读
type Source struct {
	Name   string `yaml:"name"`
	Group  string `yaml:"group"` // 为空表示挂在 feeds 顶层，例如 retaliation
	Kind   string `yaml:"kind"`
	Source string `yaml:"source"`
	URL    string `yaml:"url"`

	// api_multi_query
	Terms   []string `yaml:"terms"`
	DateGTE string   `yaml:"date_gte"`
	PerPage int      `yaml:"per_page"`

	MaxItems           int      `yaml:"max_items"`
	FilterFields       []string `yaml:"filter_fields"`
	FallbackUnfiltered bool     `yaml:"fallback_unfiltered"`
	ExtraTerms         []string `yaml:"extra_terms"`

	// html_links
	LinkPattern     string `yaml:"link_pattern"`
	YearPattern     string `yaml:"year_pattern"`
	ItemDescription string `yaml:"item_description"`

	// html_snippets
	ItemTitle      string   `yaml:"item_title"`
	Markers        []string `yaml:"markers"`
	DefaultSummary string   `yaml:"default_summary"`

	Placeholder *Placeholder `yaml:"placeholder"`
}

// Settings 是整次运行共享的只读配置：关键词表 + 数据源表
type Settings struct {
	Description string   `yaml:"description"`
	Keywords    []string `yaml:"keywords"`
	Sources     []Source `yaml:"sources"`
}

// DefaultKeywords 关键词为子串匹配，"retaliat" 同时命中 retaliation / retaliatory
var DefaultKeywords = []string{
	"tariff",
	"tariffs",
	"duty",
	"duties",
	"countermeasure",
	"countermeasures",
	"retaliat",
	"section 232",
	"section 301",
	"ieepa",
	"customs",
	"trade",
	"import",
	"export",
}

// DefaultSettings 返回内置的数据源表；每次调用返回新副本，调用方之间互不影响
func DefaultSettings() *Settings {
	return &Settings{
		Description: "Automated live intelligence pull from official government/legal sources.",
		Keywords:    append([]string(nil), DefaultKeywords...),
		Sources: []Source{
			{
				Name:         "federal_register",
				Kind:         KindAPIMultiQuery,
				Source:       "Federal Register API",
				URL:          "https://www.federalregister.gov/api/v1/documents.json",
				Terms:        []string{"tariff", "duty", "section 232", "reciprocal tariff", "de minimis"},
				DateGTE:      "2025-01-01",
				PerPage:      100,
				MaxItems:     80,
				FilterFields: []string{FieldTitle, FieldDescription},
			},
			{
				Name:         "cbp_csms",
				Kind:         KindRSS,
				Source:       "U.S. Customs and Border Protection CSMS (GovDelivery RSS)",
				URL:          "https://content.govdelivery.com/accounts/USDHSCBP/widgets/USDHSCBP_WIDGET_2.rss",
				MaxItems:     40,
				FilterFields: []string{FieldTitle, FieldDescription},
			},
			{
				Name:   "eu_commission",
				Group:  "retaliation",
				Kind:   KindRSS,
				Source: "European Commission Press Corner RSS",
				URL:    "https://ec.europa.eu/commission/presscorner/api/rss?language=en",
				// Press Corner 最新几条经常不含关税词汇，过滤为空时保留原始列表
				FallbackUnfiltered: true,
				MaxItems:           25,
				FilterFields:       []string{FieldTitle, FieldDescription, FieldCategory},
			},
			{
				Name:         "uk_dbt",
				Group:        "retaliation",
				Kind:         KindAtom,
				Source:       "UK GOV.UK DBT news Atom feed",
				URL:          "https://www.gov.uk/search/news-and-communications.atom?keywords=tariff%20duty%20trade&organisations%5B%5D=department-for-business-and-trade",
				MaxItems:     25,
				FilterFields: []string{FieldTitle, FieldDescription},
			},
			{
				Name:               "china_mofcom",
				Group:              "retaliation",
				Kind:               KindHTMLLinks,
				Source:             "MOFCOM English website",
				URL:                "https://english.mofcom.gov.cn/",
				MaxItems:           25,
				FilterFields:       []string{FieldTitle},
				ExtraTerms:         []string{"spokesperson"},
				FallbackUnfiltered: true,
				LinkPattern:        "/News/SpokesmansRemarks/",
				YearPattern:        `/art/(\d{4})/`,
				ItemDescription:    "MOFCOM spokesperson remarks entry",
				Placeholder: &Placeholder{
					Title:       "MOFCOM English feed temporarily unavailable; check source directly.",
					Description: "Automated pull failed in this run. Open source URL for latest postings.",
				},
			},
			{
				Name:      "canada_finance",
				Group:     "retaliation",
				Kind:      KindHTMLSnippets,
				Source:    "Government of Canada Department of Finance",
				URL:       "https://www.canada.ca/en/department-finance/programs/international-trade-finance-policy/canadas-response-us-tariffs.html",
				MaxItems:  1,
				ItemTitle: "Canada's response to U.S. tariffs (policy page)",
				Markers: []string{
					"Countermeasures in response to U.S. tariffs",
					"counter tariffs on steel, aluminum and automobiles remain",
					"removed counter tariffs",
					"25 per cent tariffs",
				},
				DefaultSummary: "Official policy page for Canada's tariff response.",
			},
		},
	}
}

// LoadSettings 读取数据源表：path 为空时使用内置表，否则解析 YAML 文件
func LoadSettings(path string) (*Settings, error) {
	if path == "" {
		return DefaultSettings(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}
	return ParseSettings(data)
}

// ParseSettings 解析 YAML 格式的数据源表，未给出的关键词与描述沿用内置值
func ParseSettings(data []byte) (*Settings, error) {
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse sources file: %w", err)
	}
	def := DefaultSettings()
	if len(s.Keywords) == 0 {
		s.Keywords = def.Keywords
	}
	if s.Description == "" {
		s.Description = def.Description
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate 校验数据源表，避免运行中才发现配置错误
func (s *Settings) Validate() error {
	if len(s.Sources) == 0 {
		return errors.New("no sources configured")
	}
	seen := make(map[string]struct{}, len(s.Sources))
	for i, src := range s.Sources {
		if strings.TrimSpace(src.Name) == "" {
			return fmt.Errorf("source #%d: name is required", i)
		}
		if _, ok := seen[src.Name]; ok {
			return fmt.Errorf("source %q: duplicate name", src.Name)
		}
		seen[src.Name] = struct{}{}
		if src.URL == "" {
			return fmt.Errorf("source %q: url is required", src.Name)
		}
		switch src.Kind {
		case KindAPIMultiQuery:
			if len(src.Terms) == 0 {
				return fmt.Errorf("source %q: terms are required for %s", src.Name, src.Kind)
			}
		case KindRSS, KindAtom, KindHTMLSnippets:
		case KindHTMLLinks:
			if src.LinkPattern == "" {
				return fmt.Errorf("source %q: link_pattern is required for %s", src.Name, src.Kind)
			}
		default:
			return fmt.Errorf("source %q: unknown kind %q", src.Name, src.Kind)
		}
		for _, f := range src.FilterFields {
			switch f {
			case FieldTitle, FieldDescription, FieldCategory:
			default:
				return fmt.Errorf("source %q: unknown filter field %q", src.Name, f)
			}
		}
	}
	return nil
}

// Groups 按出现顺序返回所有非空分组名
func (s *Settings) Groups() []string {
	var out []string
	seen := make(map[string]bool)
	for _, src := range s.Sources {
		if src.Group == "" || seen[src.Group] {
			continue
		}
		seen[src.Group] = true
		out = append(out, src.Group)
	}
	return out
}
