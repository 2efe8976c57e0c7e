package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/LJTian/TariffHub/internal/aggregator"
	"github.com/LJTian/TariffHub/internal/api"
	"github.com/LJTian/TariffHub/internal/collector"
	"github.com/LJTian/TariffHub/internal/config"
	"github.com/LJTian/TariffHub/internal/metrics"
	"github.com/LJTian/TariffHub/internal/scheduler"
	"github.com/LJTian/TariffHub/internal/storage"
)

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

	// 未配置 Postgres 时只在内存中保留最新快照
	var source api.SnapshotSource
	if cfg.PostgresDSN != "" {
		store, err := storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr, cfg.SnapshotCacheTTL)
		if err != nil {
			log.Fatalf("init store failed: %v", err)
		}
		// 确保各个渠道存在
		for _, src := range settings.Sources {
			if _, err := store.EnsureChannel(src); err != nil {
				log.Fatalf("ensure channel %s failed: %v", src.Name, err)
			}
		}
		publishers = append(publishers, store)
		source = store
	} else {
		log.Println("warn: POSTGRES_DSN not set, keeping the latest snapshot in memory")
		mem := api.NewMemorySource(settings.Sources)
		publishers = append(publishers, mem)
		source = mem
	}

	m := metrics.New()
	agg := aggregator.New(settings, fetchers, nil, cfg.FetchConcurrency)
	s, err := scheduler.New(cfg.CronSpec, agg, publishers...)
	if err != nil {
		log.Fatalf("init scheduler failed: %v", err)
	}
	s.OnDone = func(snap *aggregator.Snapshot, took time.Duration) {
		m.Observe(snap, took)
	}
	s.Start()
	defer s.Stop()

	// API
	r := gin.Default()
	// 若配置了全局访问密码，则启用 Basic Auth 保护（/health 仍然免认证）
	if cfg.BasicAuthUser != "" && cfg.BasicAuthPass != "" {
		r.Use(api.BasicAuth(cfg.BasicAuthUser, cfg.BasicAuthPass))
	}

	apiServer := api.NewServer(source, m.Handler())
	apiServer.RegisterRoutes(r)

	addr := ":" + cfg.AppPort
	log.Printf("starting api server at %s ...", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("server exit: %v", err)
	}
}
