package api

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/LJTian/TariffHub/internal/aggregator"
	"github.com/LJTian/TariffHub/internal/config"
	"github.com/LJTian/TariffHub/internal/storage"
)

// MemorySource 未配置 Postgres 时在进程内保存最新快照
type MemorySource struct {
	mu       sync.RWMutex
	data     []byte
	status   []storage.FeedStatus
	channels []storage.Channel
}

// NewMemorySource 渠道列表直接取自数据源表
func NewMemorySource(sources []config.Source) *MemorySource {
	channels := make([]storage.Channel, 0, len(sources))
	for i, src := range sources {
		channels = append(channels, storage.Channel{
			ID:      uint(i + 1),
			Code:    src.Name,
			Name:    src.Source,
			Group:   src.Group,
			BaseURL: src.URL,
			Status:  "active",
		})
	}
	sort.Slice(channels, func(i, j int) bool { return channels[i].Code < channels[j].Code })
	return &MemorySource{channels: channels}
}

func (m *MemorySource) Publish(ctx context.Context, snap *aggregator.Snapshot, data []byte) error {
	now := time.Now()
	status := make([]storage.FeedStatus, 0)
	for _, r := range snap.Results() {
		st, err := storage.NewFeedStatus(r, now)
		if err != nil {
			return err
		}
		status = append(status, st)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append([]byte(nil), data...)
	m.status = status
	return nil
}

func (m *MemorySource) LatestSnapshot(ctx context.Context) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.data == nil {
		return nil, storage.ErrNoSnapshot
	}
	return m.data, nil
}

func (m *MemorySource) ListFeedStatus(ctx context.Context) ([]storage.FeedStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]storage.FeedStatus{}, m.status...), nil
}

func (m *MemorySource) ListChannels(ctx context.Context) ([]storage.Channel, error) {
	return append([]storage.Channel{}, m.channels...), nil
}
