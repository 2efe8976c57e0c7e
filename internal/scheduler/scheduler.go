package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/LJTian/TariffHub/internal/aggregator"
)

// Builder 生成一份完整快照
type Builder interface {
	Build(ctx context.Context) *aggregator.Snapshot
}

// Publisher 接收每轮生成的快照及其序列化结果（文件、数据库、指标等）
type Publisher interface {
	Publish(ctx context.Context, snap *aggregator.Snapshot, data []byte) error
}

// PublisherFunc 让普通函数满足 Publisher
type PublisherFunc func(ctx context.Context, snap *aggregator.Snapshot, data []byte) error

func (f PublisherFunc) Publish(ctx context.Context, snap *aggregator.Snapshot, data []byte) error {
	return f(ctx, snap, data)
}

// BestEffort 包装一个可选的发布目标：失败只记日志，不影响本轮结果
func BestEffort(name string, p Publisher) Publisher {
	return PublisherFunc(func(ctx context.Context, snap *aggregator.Snapshot, data []byte) error {
		if err := p.Publish(ctx, snap, data); err != nil {
			log.Printf("warn: publish to %s failed: %v", name, err)
		}
		return nil
	})
}

type Scheduler struct {
	cron       *cron.Cron
	builder    Builder
	publishers []Publisher

	// StartupDelay 启动后首轮采集的延迟
	StartupDelay time.Duration
	// OnDone 每轮发布完成后回调，用于记录指标
	OnDone func(snap *aggregator.Snapshot, took time.Duration)

	mu sync.Mutex // 同一时间只跑一轮
}

// New 创建调度器；spec 为空时不注册定时任务，只能通过 RunOnce 手动执行
func New(spec string, b Builder, publishers ...Publisher) (*Scheduler, error) {
	c := cron.New()

	s := &Scheduler{
		cron:         c,
		builder:      b,
		publishers:   publishers,
		StartupDelay: 15 * time.Second,
	}

	if spec == "" {
		return s, nil
	}
	_, err := c.AddFunc(spec, func() { s.runOnce(context.Background()) })
	if err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	time.AfterFunc(s.StartupDelay, func() {
		go s.runOnce(context.Background())
	})
}

// Stop 停止定时任务并等待正在执行的一轮结束
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.mu.Lock()
	defer s.mu.Unlock()
}

// RunOnce 对外暴露的单次执行入口，方便手动触发采集
func (s *Scheduler) RunOnce(ctx context.Context) (*aggregator.Snapshot, error) {
	return s.runOnce(ctx)
}

func (s *Scheduler) runOnce(ctx context.Context) (*aggregator.Snapshot, error) {
	if !s.mu.TryLock() {
		log.Println("collect job already running, skip")
		return nil, nil
	}
	defer s.mu.Unlock()

	start := time.Now()

	snap := s.builder.Build(ctx)
	data, err := aggregator.Marshal(snap)
	if err != nil {
		log.Printf("encode snapshot error: %v", err)
		return snap, err
	}

	var firstErr error
	for _, p := range s.publishers {
		if err := p.Publish(ctx, snap, data); err != nil {
			log.Printf("publish snapshot error: %v", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	took := time.Since(start)
	if s.OnDone != nil {
		s.OnDone(snap, took)
	}
	log.Printf("snapshot published in %s: %s", took.Round(time.Millisecond), aggregator.Summary(snap))
	return snap, firstErr
}
