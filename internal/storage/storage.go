package storage

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/LJTian/TariffHub/internal/config"
)

// Channel 描述一个数据源，例如 federal_register / uk_dbt
type Channel struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	Code    string `gorm:"size:64;uniqueIndex" json:"code"` // 例如: cbp_csms, china_mofcom
	Name    string `gorm:"size:256" json:"name"`
	Group   string `gorm:"column:feed_group;size:64;index" json:"group"`
	BaseURL string `gorm:"size:512" json:"baseUrl"`
	Status  string `gorm:"size:32;index" json:"status"` // active / disabled

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Store struct {
	DB    *gorm.DB
	Redis *redis.Client

	// SnapshotTTL 最新快照在 Redis 中的保留时间，<=0 表示不过期
	SnapshotTTL time.Duration
}

func NewStore(dsn, redisAddr string, snapshotTTL time.Duration) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&Channel{}, &FeedStatus{}, &SnapshotCache{}); err != nil {
		return nil, err
	}

	var rdb *redis.Client
	if redisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr: redisAddr,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Printf("warn: redis ping failed: %v", err)
		}
	}

	return &Store{DB: db, Redis: rdb, SnapshotTTL: snapshotTTL}, nil
}

// EnsureChannel 确保某个渠道存在，描述信息变化时同步更新
func (s *Store) EnsureChannel(src config.Source) (*Channel, error) {
	ch := &Channel{}
	if err := s.DB.Where("code = ?", src.Name).First(ch).Error; err == nil {
		if ch.Name != src.Source || ch.BaseURL != src.URL || ch.Group != src.Group {
			ch.Name, ch.BaseURL, ch.Group = src.Source, src.URL, src.Group
			if err := s.DB.Save(ch).Error; err != nil {
				return nil, err
			}
		}
		return ch, nil
	}

	ch = &Channel{
		Code:    src.Name,
		Name:    src.Source,
		Group:   src.Group,
		BaseURL: src.URL,
		Status:  "active",
	}
	if err := s.DB.Create(ch).Error; err != nil {
		return nil, err
	}
	return ch, nil
}

// ListChannels 按 code 排序返回全部渠道
func (s *Store) ListChannels(ctx context.Context) ([]Channel, error) {
	var list []Channel
	err := s.DB.WithContext(ctx).Order("code ASC").Find(&list).Error
	return list, err
}

// toValidUTF8 将字符串规范为合法 UTF-8，避免 PostgreSQL invalid byte sequence 错误
func toValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}

// truncateRunesDB 按 rune 数截断字符串，确保不会超过数据库字段长度
func truncateRunesDB(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}
