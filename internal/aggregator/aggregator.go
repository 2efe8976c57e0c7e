package aggregator

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/LJTian/TariffHub/internal/collector"
	"github.com/LJTian/TariffHub/internal/config"
	"github.com/LJTian/TariffHub/internal/processor"
)

// generated_at 的格式：UTC、精确到秒、+00:00 后缀
const generatedAtLayout = "2006-01-02T15:04:05+00:00"

// Aggregator 并发调用所有 Fetcher 并组装快照。
// 单个数据源的错误只记录在该数据源的 errors 中，永远不会导致整轮失败。
type Aggregator struct {
	settings    *config.Settings
	fetchers    []collector.Fetcher
	processor   *processor.SimpleProcessor
	concurrency int
	now         func() time.Time
}

func New(settings *config.Settings, fetchers []collector.Fetcher, p *processor.SimpleProcessor, concurrency int) *Aggregator {
	if concurrency <= 0 {
		concurrency = 4
	}
	if p == nil {
		p = processor.NewSimpleProcessor()
	}
	return &Aggregator{
		settings:    settings,
		fetchers:    fetchers,
		processor:   p,
		concurrency: concurrency,
		now:         config.Now,
	}
}

// Build 跑完所有数据源后返回完整快照；ctx 只用于外部施加的整体截止时间
func (a *Aggregator) Build(ctx context.Context) *Snapshot {
	log.Printf("start collect job (%d sources)...", len(a.fetchers))
	started := time.Now()

	results := make([]collector.FetchResult, len(a.fetchers))

	var g errgroup.Group
	g.SetLimit(a.concurrency)
	for i, f := range a.fetchers {
		g.Go(func() error {
			results[i] = a.runOne(ctx, f)
			return nil
		})
	}
	_ = g.Wait()

	snap := &Snapshot{
		GeneratedAt: a.now().UTC().Format(generatedAtLayout),
		About: About{
			Description:   a.settings.Description,
			KeywordFilter: append([]string{}, a.settings.Keywords...),
		},
		Feeds: Feeds{
			Top:    make(map[string]collector.FetchResult),
			Groups: make(map[string]map[string]collector.FetchResult),
		},
	}
	for _, r := range results {
		if r.Group == "" {
			snap.Feeds.Top[r.Name] = r
			continue
		}
		members, ok := snap.Feeds.Groups[r.Group]
		if !ok {
			members = make(map[string]collector.FetchResult)
			snap.Feeds.Groups[r.Group] = members
		}
		members[r.Name] = r
	}

	log.Printf("collect job done in %s (all sources)", time.Since(started).Round(time.Millisecond))
	return snap
}

// runOne 执行单个数据源：返回的错误与 panic 都转成该数据源 errors 里的一条字符串
func (a *Aggregator) runOne(ctx context.Context, f collector.Fetcher) (res collector.FetchResult) {
	src := f.Descriptor()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("fetch %s panic: %v\n%s", src.Name, r, debug.Stack())
			res = collector.NewResult(src)
			res.Errors = append(res.Errors, fmt.Sprintf("panic: %v", r))
		}
		res = a.processor.Process(src, res)
	}()

	res, err := f.Fetch(ctx)
	if err != nil {
		log.Printf("fetch %s error: %v", src.Name, err)
		res.Errors = append(res.Errors, err.Error())
	}
	log.Printf("%s done, items=%d errors=%d", src.Name, len(res.Items), len(res.Errors))
	return res
}
