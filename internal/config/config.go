package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

type Config struct {
	AppPort string

	PostgresDSN string
	RedisAddr   string

	CronSpec string

	// OutPath 快照 JSON 的输出路径（cmd/collect 与定时任务都会写）
	OutPath string
	// SourcesFile 可选的 YAML 数据源表，为空则使用内置表
	SourcesFile string

	FetchTimeout     time.Duration
	FetchConcurrency int
	UserAgent        string
	SnapshotCacheTTL time.Duration

	BasicAuthUser string
	BasicAuthPass string
}

func Load() *Config {
	cfg := &Config{
		AppPort:          getEnv("APP_PORT", "9000"),
		PostgresDSN:      getEnv("POSTGRES_DSN", ""),
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6380"),
		CronSpec:         getEnv("CRON_SPEC", "*/30 * * * *"),
		OutPath:          getEnv("OUT_PATH", "data/live_intel.json"),
		SourcesFile:      getEnv("SOURCES_FILE", ""),
		FetchTimeout:     getDuration("FETCH_TIMEOUT", 25*time.Second),
		FetchConcurrency: getInt("FETCH_CONCURRENCY", 4),
		UserAgent:        getEnv("USER_AGENT", DefaultUserAgent),
		SnapshotCacheTTL: getDuration("SNAPSHOT_CACHE_TTL", 6*time.Hour),
		BasicAuthUser:    getEnv("APP_BASIC_USER", ""),
		BasicAuthPass:    getEnv("APP_BASIC_PASS", ""),
	}

	log.Printf("config loaded: port=%s cron=%s out=%s timeout=%s concurrency=%d",
		cfg.AppPort, cfg.CronSpec, cfg.OutPath, cfg.FetchTimeout, cfg.FetchConcurrency)
	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getDuration 解析 time.ParseDuration 格式（如 25s），非法值回退默认值
func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("warn: invalid %s=%q, using %s", key, v, def)
		return def
	}
	return d
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("warn: invalid %s=%q, using %d", key, v, def)
		return def
	}
	return n
}

// Now returns current time, 方便后续做可测试封装
func Now() time.Time {
	return time.Now()
}
