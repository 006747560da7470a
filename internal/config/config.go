// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
// ただしReplyFilterEnabledは初期値であり、実行時にAPIから切り替え可能。
type Config struct {
	// Database
	DatabaseURL string

	// Resolve
	ResolveTimeout    time.Duration // スレッド参加者解決1回あたりのタイムアウト
	ThreadCacheTTL    time.Duration // スレッド参加者キャッシュのTTL
	FollowingCacheTTL time.Duration // フォロー集合キャッシュのTTL

	// Filter
	ReplyFilterEnabled  bool // リプライフィルタの初期状態
	MinFollowedInThread int  // スレッド内に必要なフォロー中参加者数

	// Fetch
	FetchTimeout       time.Duration
	FetchMaxSize       int64
	FetchMaxConcurrent int
	TimelinePageSize   int

	// Rate Limit
	RateLimitGeneral int
	RateLimitSrcReg  int

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.ResolveTimeout = getEnvDuration("RESOLVE_TIMEOUT", 8*time.Second)
	cfg.ThreadCacheTTL = getEnvDuration("THREAD_CACHE_TTL", 5*time.Minute)
	cfg.FollowingCacheTTL = getEnvDuration("FOLLOWING_CACHE_TTL", 10*time.Minute)
	cfg.ReplyFilterEnabled = getEnvBool("REPLY_FILTER_ENABLED", true)
	cfg.MinFollowedInThread = getEnvInt("MIN_FOLLOWED_IN_THREAD", 2)
	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 10*time.Second)
	cfg.FetchMaxSize = getEnvInt64("FETCH_MAX_SIZE", 5242880)
	cfg.FetchMaxConcurrent = getEnvInt("FETCH_MAX_CONCURRENT", 10)
	cfg.TimelinePageSize = getEnvInt("TIMELINE_PAGE_SIZE", 40)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitSrcReg = getEnvInt("RATE_LIMIT_SOURCE_REG", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
