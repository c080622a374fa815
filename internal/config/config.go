package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/hitoshi/authgate/internal/database"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Store
	DatabaseURL   string          `env:"DATABASE_URL"`
	MongoDatabase string          `env:"MONGO_DATABASE" envDefault:"authgate"`
	StoreTimeout  time.Duration   `env:"STORE_TIMEOUT" envDefault:"5s"`
	Driver        database.Driver `env:"-"`

	// Token
	JWTSecret string        `env:"JWT_SECRET"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"1416h"` // 59日

	// Password
	BcryptCost int `env:"BCRYPT_COST" envDefault:"10"`

	// Cookie
	CookieSecret string        `env:"COOKIE_SECRET"`
	CookieName   string        `env:"COOKIE_NAME" envDefault:"authgate_session"`
	CookieMaxAge time.Duration `env:"COOKIE_MAX_AGE" envDefault:"700s"`
	CookieSecure bool          `env:"COOKIE_SECURE" envDefault:"false"`

	// HTTP
	ServerPort        string `env:"PORT" envDefault:"8080"`
	CORSAllowedOrigin string `env:"CORS_ALLOWED_ORIGIN" envDefault:"http://localhost:3000"`
	LegacyStatusCodes bool   `env:"LEGACY_STATUS_CODES" envDefault:"false"`

	// Worker
	CleanupInterval   time.Duration `env:"CLEANUP_INTERVAL" envDefault:"1h"`
	WorkerMetricsPort string        `env:"WORKER_METRICS_PORT" envDefault:"9090"`

	// Logging
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	// Required fields
	var missing []string
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if cfg.CookieSecret == "" {
		missing = append(missing, "COOKIE_SECRET")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	driver, err := database.DetectDriver(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid DATABASE_URL: %w", err)
	}
	cfg.Driver = driver

	if cfg.TokenTTL <= 0 {
		return nil, fmt.Errorf("TOKEN_TTL must be positive: %s", cfg.TokenTTL)
	}
	if cfg.StoreTimeout <= 0 {
		return nil, fmt.Errorf("STORE_TIMEOUT must be positive: %s", cfg.StoreTimeout)
	}
	if cfg.CleanupInterval <= 0 {
		return nil, fmt.Errorf("CLEANUP_INTERVAL must be positive: %s", cfg.CleanupInterval)
	}

	// セッションの有効期間はトークンのexpが正。Cookieがトークンより長く残らないよう切り詰める。
	if cfg.CookieMaxAge > cfg.TokenTTL {
		cfg.CookieMaxAge = cfg.TokenTTL
	}

	return cfg, nil
}

// CookieMaxAgeSeconds はhttp.Cookie.MaxAgeに設定する秒数を返す。
func (c *Config) CookieMaxAgeSeconds() int {
	return int(c.CookieMaxAge / time.Second)
}
