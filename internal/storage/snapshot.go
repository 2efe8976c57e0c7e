package storage

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/LJTian/TariffHub/internal/aggregator"
	"github.com/LJTian/TariffHub/internal/collector"
)

const snapshotCacheKey = "tariffhub:snapshot:latest"

// ErrNoSnapshot 尚未生成过快照
var ErrNoSnapshot = errors.New("no snapshot yet")

// SnapshotCache 只保存一行：最近一次生成的完整快照 JSON
type SnapshotCache struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Data        datatypes.JSON `gorm:"type:jsonb" json:"data"`
	GeneratedAt string         `gorm:"size:32" json:"generatedAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// FeedStatus 每个数据源最近一轮的抓取结果
type FeedStatus struct {
	Code      string         `gorm:"primaryKey;size:64" json:"code"`
	Group     string         `gorm:"column:feed_group;size:64;index" json:"group"`
	Source    string         `gorm:"size:256" json:"source"`
	SourceURL string         `gorm:"size:512" json:"sourceUrl"`
	ItemCount int            `json:"itemCount"`
	Errors    datatypes.JSON `gorm:"type:jsonb" json:"errors"`
	Items     datatypes.JSON `gorm:"type:jsonb" json:"items"`
	FetchedAt time.Time      `gorm:"index" json:"fetchedAt"`
}

// NewFeedStatus 把一个数据源的结果转换成状态行
func NewFeedStatus(r collector.FetchResult, fetchedAt time.Time) (FeedStatus, error) {
	errs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		errs = append(errs, truncateRunesDB(toValidUTF8(e), 1000))
	}
	items := r.Items
	if items == nil {
		items = []collector.Item{}
	}
	errBytes, err := json.Marshal(errs)
	if err != nil {
		return FeedStatus{}, err
	}
	itemBytes, err := json.Marshal(items)
	if err != nil {
		return FeedStatus{}, err
	}
	return FeedStatus{
		Code:      r.Name,
		Group:     r.Group,
		Source:    truncateRunesDB(toValidUTF8(r.Source), 256),
		SourceURL: truncateRunesDB(r.SourceURL, 512),
		ItemCount: len(items),
		Errors:    datatypes.JSON(errBytes),
		Items:     datatypes.JSON(itemBytes),
		FetchedAt: fetchedAt,
	}, nil
}

// SaveSnapshot 写入最新快照（Redis + DB 兜底）及每个数据源的状态
func (s *Store) SaveSnapshot(ctx context.Context, snap *aggregator.Snapshot, data []byte) error {
	now := time.Now()
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cache := SnapshotCache{ID: 1, Data: datatypes.JSON(data), GeneratedAt: snap.GeneratedAt}
		if err := tx.Save(&cache).Error; err != nil {
			return err
		}
		for _, r := range snap.Results() {
			st, err := NewFeedStatus(r, now)
			if err != nil {
				return err
			}
			if err := tx.Save(&st).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.Redis != nil {
		ttl := s.SnapshotTTL
		if ttl < 0 {
			ttl = 0
		}
		// Redis 失败不影响落库结果，读取时会回落到 DB
		_ = s.Redis.Set(ctx, snapshotCacheKey, data, ttl).Err()
	}
	return nil
}

// Publish 供调度器在每轮结束后调用
func (s *Store) Publish(ctx context.Context, snap *aggregator.Snapshot, data []byte) error {
	return s.SaveSnapshot(ctx, snap, data)
}

// LatestSnapshot 返回最近一次快照的原始 JSON，优先读 Redis
func (s *Store) LatestSnapshot(ctx context.Context) ([]byte, error) {
	if s.Redis != nil {
		bs, err := s.Redis.Get(ctx, snapshotCacheKey).Bytes()
		if err == nil {
			return bs, nil
		}
		if !errors.Is(err, redis.Nil) {
			log.Printf("warn: redis get snapshot: %v", err)
		}
	}

	var cache SnapshotCache
	silent := s.DB.Session(&gorm.Session{Logger: s.DB.Logger.LogMode(logger.Silent)})
	if err := silent.WithContext(ctx).Where("id = ?", 1).First(&cache).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoSnapshot
		}
		return nil, err
	}

	if s.Redis != nil {
		_ = s.Redis.Set(ctx, snapshotCacheKey, []byte(cache.Data), s.SnapshotTTL).Err()
	}
	return []byte(cache.Data), nil
}

// ListFeedStatus 返回每个数据源最近一轮的状态，按分组、code 排序
func (s *Store) ListFeedStatus(ctx context.Context) ([]FeedStatus, error) {
	var list []FeedStatus
	err := s.DB.WithContext(ctx).Order("feed_group ASC").Order("code ASC").Find(&list).Error
	return list, err
}
