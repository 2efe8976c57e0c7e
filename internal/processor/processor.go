package processor

import (
	"strings"

	"github.com/LJTian/TariffHub/internal/collector"
	"github.com/LJTian/TariffHub/internal/config"
)

// SimpleProcessor 在组装快照前做最后一道清洗：
// 补齐数据源标识、保证 items/errors 序列化为数组、修正非法 UTF-8、按上限截断
type SimpleProcessor struct{}

func NewSimpleProcessor() *SimpleProcessor {
	return &SimpleProcessor{}
}

func (p *SimpleProcessor) Process(src config.Source, res collector.FetchResult) collector.FetchResult {
	res.Name = src.Name
	res.Group = src.Group
	if res.Source == "" {
		res.Source = src.Source
	}
	if res.SourceURL == "" {
		res.SourceURL = src.URL
	}

	items := make([]collector.Item, 0, len(res.Items))
	for _, it := range res.Items {
		items = append(items, cleanItem(it))
	}
	if src.MaxItems > 0 && len(items) > src.MaxItems {
		items = items[:src.MaxItems]
	}
	res.Items = items

	errs := make([]string, 0, len(res.Errors))
	for _, e := range res.Errors {
		errs = append(errs, toValidUTF8(e))
	}
	res.Errors = errs
	if v := res.DCTermsModified.Value; v != nil {
		res.DCTermsModified = collector.Present(toValidUTF8(*v))
	}
	return res
}

func cleanItem(it collector.Item) collector.Item {
	it.Title = toValidUTF8(strings.TrimSpace(it.Title))
	it.Link = toValidUTF8(strings.TrimSpace(it.Link))
	it.Published = toValidUTF8(it.Published)
	it.Description = toValidUTF8(it.Description)
	it.Category = toValidUTF8(it.Category)
	it.GUID = toValidUTF8(it.GUID)
	it.DocumentNumber = toValidUTF8(it.DocumentNumber)
	it.Type = toValidUTF8(it.Type)
	it.RawTextURL = toValidUTF8(it.RawTextURL)
	it.TermHit = toValidUTF8(it.TermHit)
	return it
}

// toValidUTF8 部分政府站点混用编码，统一替换成 U+FFFD，避免下游 JSON 解析出错
func toValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}
