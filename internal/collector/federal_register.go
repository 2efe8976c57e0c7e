package collector

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strconv"

	"golang.org/x/sync/errgroup"
)

// 同时在途的子查询数量，Federal Register 对并发比较敏感
const multiQueryConcurrency = 3

// APIMultiQueryFetcher 对 JSON API 按每个检索词各发一次查询，再按身份键合并
type APIMultiQueryFetcher struct {
	base
}

func (f *APIMultiQueryFetcher) Fetch(ctx context.Context) (FetchResult, error) {
	terms := f.src.Terms
	log.Printf("fetch %s (%d terms)...", f.src.Name, len(terms))

	res := NewResult(f.src)

	// 子查询并发执行，但结果按检索词顺序合并，保证“先到先得”与 term_hit 稳定
	perTerm := make([][]Item, len(terms))
	termErrs := make([]error, len(terms))

	var g errgroup.Group
	g.SetLimit(multiQueryConcurrency)
	for i, term := range terms {
		g.Go(func() error {
			perTerm[i], termErrs[i] = f.query(ctx, term)
			return nil
		})
	}
	_ = g.Wait()

	merger := NewMerger()
	for i, term := range terms {
		if err := termErrs[i]; err != nil {
			log.Printf("%s: term=%q error: %v", f.src.Name, term, err)
			res.Errors = append(res.Errors, fmt.Sprintf("term=%s: %v", term, err))
			continue
		}
		added := 0
		for _, it := range perTerm[i] {
			if !f.relevant(it) {
				continue
			}
			it.TermHit = term
			if merger.Add(it) {
				added++
			}
		}
		log.Printf("%s: term=%q got=%d new=%d", f.src.Name, term, len(perTerm[i]), added)
	}
	log.Printf("%s merged %d unique items", f.src.Name, merger.Len())

	items := merger.Items()
	SortNewestFirst(items)
	res.Items = capItems(items, f.src.MaxItems)
	return res, nil
}

func (f *APIMultiQueryFetcher) query(ctx context.Context, term string) ([]Item, error) {
	u, err := f.queryURL(term)
	if err != nil {
		return nil, err
	}
	body, err := httpGet(ctx, f.opts.Client, u, f.opts.UserAgent)
	if err != nil {
		return nil, err
	}
	return ParseFederalRegister(body)
}

// queryURL 拼接单个检索词的查询地址，保留 URL 里已有的参数
func (f *APIMultiQueryFetcher) queryURL(term string) (string, error) {
	u, err := url.Parse(f.src.URL)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRetrieval, err)
	}
	q := u.Query()
	perPage := f.src.PerPage
	if perPage <= 0 {
		perPage = 100
	}
	q.Set("per_page", strconv.Itoa(perPage))
	q.Set("order", "newest")
	if f.src.DateGTE != "" {
		q.Set("conditions[publication_date][gte]", f.src.DateGTE)
	}
	q.Set("conditions[term]", term)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
