// Package config はアプリケーション全体の設定を提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Remote endpoint
	GASAPIURL string

	// Device
	// クライアントの識別文字列。モバイル判定とポリシー導出に使う。
	UserAgent string

	// Transport
	// 0の場合はdevice.ProfileのCallTimeoutを使う。
	CallTimeout time.Duration

	// Session
	SessionFile   string
	SessionMaxAge time.Duration

	// Schedule loading
	PrefetchParallel   int
	CheckFetchInterval time.Duration

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.GASAPIURL = os.Getenv("GAS_API_URL")
	if cfg.GASAPIURL == "" {
		missing = append(missing, "GAS_API_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.UserAgent = getEnvString("USER_AGENT", "")
	cfg.CallTimeout = getEnvDuration("CALL_TIMEOUT", 0)
	cfg.SessionFile = getEnvString("SESSION_FILE", "gohan_login_info.json")
	cfg.SessionMaxAge = getEnvDuration("SESSION_MAX_AGE", 24*time.Hour)
	cfg.PrefetchParallel = getEnvInt("PREFETCH_PARALLEL", 3)
	cfg.CheckFetchInterval = getEnvDuration("CHECK_FETCH_INTERVAL", 100*time.Millisecond)
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
