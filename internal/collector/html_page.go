package collector

import (
	"context"
	"log"
)

// HTMLLinksFetcher 没有 feed 的站点：抓首页，用 LinkScraper 提取栏目链接
type HTMLLinksFetcher struct {
	base
	scraper *LinkScraper
}

func (f *HTMLLinksFetcher) Fetch(ctx context.Context) (FetchResult, error) {
	log.Printf("fetch %s...", f.src.Name)

	res := NewResult(f.src)
	body, err := visitPage(ctx, f.src.URL, f.opts.UserAgent, f.opts.Timeout)
	if err != nil {
		return f.fail(res, err)
	}

	rows := f.scraper.Extract(body, f.src.URL)
	res.Items = f.selectItems(rows)
	if len(rows) == 0 {
		log.Printf("fetch %s matched 0 links, page layout may have changed", f.src.Name)
	}
	return res, nil
}

// HTMLSnippetFetcher 单个政策页面：整页汇总成一条条目，摘要取自标记语句附近的正文
type HTMLSnippetFetcher struct {
	base
	extractor *SnippetExtractor
}

func (f *HTMLSnippetFetcher) Fetch(ctx context.Context) (FetchResult, error) {
	log.Printf("fetch %s...", f.src.Name)

	res := NewResult(f.src)
	body, err := visitPage(ctx, f.src.URL, f.opts.UserAgent, f.opts.Timeout)
	if err != nil {
		return f.fail(res, err)
	}

	page := f.extractor.Extract(body)
	res.DCTermsModified = Present(page.Modified)

	title := f.src.ItemTitle
	if title == "" {
		title = f.src.Source
	}
	res.Items = []Item{{
		Title:       title,
		Link:        f.src.URL,
		Published:   page.Modified,
		Description: page.Summary,
	}}
	return res, nil
}
