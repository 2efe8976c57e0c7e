package collector

import (
	"context"
	"log"
)

// FeedFetcher 单一 RSS / Atom 地址的数据源，parse 决定具体格式
type FeedFetcher struct {
	base
	parse func([]byte) ([]Item, error)
}

func (f *FeedFetcher) Fetch(ctx context.Context) (FetchResult, error) {
	log.Printf("fetch %s...", f.src.Name)

	res := NewResult(f.src)
	body, err := httpGet(ctx, f.opts.Client, f.src.URL, f.opts.UserAgent)
	if err != nil {
		return f.fail(res, err)
	}
	items, err := f.parse(body)
	if err != nil {
		return f.fail(res, err)
	}

	res.Items = f.selectItems(items)
	if len(res.Items) == 0 {
		log.Printf("fetch %s got 0 relevant items (%d parsed)", f.src.Name, len(items))
	}
	return res, nil
}
