package main

import (
	"context"
	"fmt"
	"log"

	"github.com/LJTian/TariffHub/internal/aggregator"
	"github.com/LJTian/TariffHub/internal/collector"
	"github.com/LJTian/TariffHub/internal/config"
	"github.com/LJTian/TariffHub/internal/scheduler"
	"github.com/LJTian/TariffHub/internal/storage"
)

// 一个仅执行一次采集任务的命令行入口：写出快照文件后退出
func main() {
	cfg := config.Load()

	settings, err := config.LoadSettings(cfg.SourcesFile)
	if err != nil {
		log.Fatalf("load sources failed: %v", err)
	}

	fetchers, err := collector.NewAll(settings, collector.Options{
		Timeout:   cfg.FetchTimeout,
		UserAgent: cfg.UserAgent,
	})
	if err != nil {
		log.Fatalf("init fetchers failed: %v", err)
	}

	publishers := []scheduler.Publisher{
		scheduler.PublisherFunc(func(ctx context.Context, snap *aggregator.Snapshot, data []byte) error {
			return aggregator.WriteFile(cfg.OutPath, data)
		}),
	}

	// 配置了 Postgres 时同时落库，便于 cmd/api 直接读取；数据库不可用不影响快照文件
	if cfg.PostgresDSN != "" {
		if store, err := openStore(cfg, settings); err != nil {
			log.Printf("warn: skip postgres: %v", err)
		} else {
			publishers = append(publishers, scheduler.BestEffort("postgres", store))
		}
	}

	// 一次性运行，不注册定时任务
	agg := aggregator.New(settings, fetchers, nil, cfg.FetchConcurrency)
	s, err := scheduler.New("", agg, publishers...)
	if err != nil {
		log.Fatalf("init scheduler failed: %v", err)
	}

	// 只执行一轮采集任务后退出；单个数据源失败不影响退出码
	snap, err := s.RunOnce(context.Background())
	if err != nil {
		log.Fatalf("publish snapshot failed: %v", err)
	}
	fmt.Printf("wrote: %s\n", cfg.OutPath)
	fmt.Println(aggregator.Summary(snap))
}

func openStore(cfg *config.Config, settings *config.Settings) (*storage.Store, error) {
	store, err := storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr, cfg.SnapshotCacheTTL)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	for _, src := range settings.Sources {
		if _, err := store.EnsureChannel(src); err != nil {
			return nil, fmt.Errorf("ensure channel %s: %w", src.Name, err)
		}
	}
	return store, nil
}
