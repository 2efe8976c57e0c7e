package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"

	"github.com/LJTian/TariffHub/internal/config"
)

// 错误分类：抓取失败与格式解析失败。单条数据缺字段不算错误，直接丢弃。
var (
	ErrRetrieval = errors.New("retrieval failed")
	ErrParse     = errors.New("parse failed")
)

// Item 各数据源统一后的条目结构。published 保持来源的原始格式，不做日期规范化。
type Item struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Published   string `json:"published"`
	Description string `json:"description"`
	Category    string `json:"category,omitempty"`
	GUID        string `json:"guid,omitempty"`

	// Federal Register 专有
	DocumentNumber string `json:"document_number,omitempty"`
	Type           string `json:"type,omitempty"`
	RawTextURL     string `json:"raw_text_url,omitempty"`
	TermHit        string `json:"term_hit,omitempty"`
}

// Key 去重用的身份键：优先 document_number，没有稳定 ID 时退回链接
func (it Item) Key() string {
	if it.DocumentNumber != "" {
		return it.DocumentNumber
	}
	return it.Link
}

// FetchResult 单个数据源一次运行的结果；Errors 非空时 Items 仍可能有部分数据
type FetchResult struct {
	Name  string `json:"-"`
	Group string `json:"-"`

	Source          string     `json:"source"`
	SourceURL       string     `json:"source_url"`
	Items           []Item     `json:"items"`
	Errors          []string   `json:"errors"`
	DCTermsModified NullString `json:"dcterms_modified,omitzero"`
}

// NullString 区分“字段不输出”和“输出 null”：Set 为 false 时整个键省略，
// Set 为 true 且 Value 为 nil 时输出 null
type NullString struct {
	Set   bool
	Value *string
}

// Present 返回一个会被输出的值，空字符串输出为 null
func Present(s string) NullString {
	if s == "" {
		return NullString{Set: true}
	}
	return NullString{Set: true, Value: &s}
}

func (n NullString) IsZero() bool {
	return !n.Set
}

func (n NullString) String() string {
	if n.Value == nil {
		return ""
	}
	return *n.Value
}

func (n NullString) MarshalJSON() ([]byte, error) {
	if n.Value == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(*n.Value); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func (n *NullString) UnmarshalJSON(data []byte) error {
	n.Set = true
	if string(data) == "null" {
		n.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	n.Value = &s
	return nil
}

// NewResult 按数据源描述生成一个空结果，保证输出结构与成功与否无关
func NewResult(src config.Source) FetchResult {
	return FetchResult{
		Name:      src.Name,
		Group:     src.Group,
		Source:    src.Source,
		SourceURL: src.URL,
		Items:     []Item{},
		Errors:    []string{},

		// 快照页面即使失败也输出 dcterms_modified: null，保证每轮的键集合一致
		DCTermsModified: NullString{Set: src.Kind == config.KindHTMLSnippets},
	}
}

// Fetcher 抽象每一个数据源。
// 返回的 FetchResult 总是带着 source/source_url；子查询级别的错误记在 Errors 里，
// 返回非 nil error 表示该数据源整体失败，由调用方决定如何记录。
type Fetcher interface {
	Name() string
	Descriptor() config.Source
	Fetch(ctx context.Context) (FetchResult, error)
}
