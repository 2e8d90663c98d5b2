package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Realtime RealtimeConfig
}

type ServerConfig struct {
	Port         string
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

type JWTConfig struct {
	AccessSecret string
	AccessExpiry time.Duration
	Issuer       string
}

// RealtimeConfig tunes the websocket channel and the presence roster.
type RealtimeConfig struct {
	// PresenceTTL expires a roster entry whose connection stopped renewing it.
	PresenceTTL       time.Duration
	HeartbeatInterval time.Duration
	SweepInterval     time.Duration
	// FeedBuffer is the per-subscriber event buffer; a subscriber that falls
	// this far behind is dropped and must resubscribe with a refetch.
	FeedBuffer int
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         envStr("PORT", "8095"),
			Env:          envStr("APP_ENV", "development"),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			DSN:             envStr("DATABASE_DSN", "convive:convive@tcp(localhost:3306)/convive?charset=utf8mb4&parseTime=True&loc=Local"),
			MaxIdleConns:    10,
			MaxOpenConns:    100,
			ConnMaxLifetime: time.Hour,
		},
		JWT: JWTConfig{
			AccessSecret: envStr("JWT_ACCESS_SECRET", "change-me-in-production"),
			AccessExpiry: 12 * time.Hour,
			Issuer:       "convive",
		},
		Realtime: RealtimeConfig{
			PresenceTTL:       envDuration("PRESENCE_TTL", 45*time.Second),
			HeartbeatInterval: 15 * time.Second,
			SweepInterval:     10 * time.Second,
			FeedBuffer:        envInt("FEED_BUFFER", 256),
		},
	}
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
