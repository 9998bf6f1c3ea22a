package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL   string `envconfig:"DATABASE_URL" required:"true"`
	MongoURI      string `envconfig:"MONGO_URI"`
	MongoDatabase string `envconfig:"MONGO_DATABASE" default:"sewa"`

	// OAuth
	GoogleClientID     string `envconfig:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `envconfig:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `envconfig:"GOOGLE_REDIRECT_URL"`

	// Session
	// SessionSecret はOAuthのstate Cookieの署名鍵に使う。
	SessionSecret string `envconfig:"SESSION_SECRET" required:"true"`
	SessionMaxAge int    `envconfig:"SESSION_MAX_AGE" default:"86400"`

	// Generative model
	GeminiAPIKey        string        `envconfig:"GEMINI_API_KEY"`
	GeminiModel         string        `envconfig:"GEMINI_MODEL" default:"gemini-2.5-flash"`
	GeminiFallbackModel string        `envconfig:"GEMINI_FALLBACK_MODEL" default:"gemini-2.0-flash"`
	GenerationTimeout   time.Duration `envconfig:"GENERATION_TIMEOUT" default:"30s"`
	GenerationRetention time.Duration `envconfig:"GENERATION_RETENTION" default:"720h"`

	// Project update feeds
	FetchTimeout       time.Duration `envconfig:"FETCH_TIMEOUT" default:"10s"`
	FetchMaxSize       int64         `envconfig:"FETCH_MAX_SIZE" default:"5242880"`
	FetchMaxConcurrent int           `envconfig:"FETCH_MAX_CONCURRENT" default:"10"`
	FetchInterval      time.Duration `envconfig:"FETCH_INTERVAL" default:"30m"`

	// Rate Limit
	RateLimitGeneral    int `envconfig:"RATE_LIMIT_GENERAL" default:"120"`
	RateLimitGeneration int `envconfig:"RATE_LIMIT_GENERATION" default:"10"`

	// GeoIP
	GeoIPDBPath string `envconfig:"GEOIP_DB_PATH"`

	// Logging
	LogLevel         string `envconfig:"LOG_LEVEL" default:"info"`
	LogFile          string `envconfig:"LOG_FILE"`
	LogRetentionDays int    `envconfig:"LOG_RETENTION_DAYS" default:"14"`

	// Server
	ServerPort string `envconfig:"SERVER_PORT" default:"8080"`
	BaseURL    string `envconfig:"BASE_URL" required:"true"`

	// TrustedProxies はX-Forwarded-Forを信頼する接続元（CIDRまたはIP、カンマ区切り）。
	TrustedProxies []string `envconfig:"TRUSTED_PROXIES"`

	// Cookie
	CookieSecure bool   `ignored:"true"`
	CookieDomain string `envconfig:"COOKIE_DOMAIN"`

	// CORS
	CORSAllowedOrigin string `envconfig:"CORS_ALLOWED_ORIGIN" default:"http://localhost:3000"`
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envがあれば先に読み込む（既存の環境変数は上書きしない）。
// required:"true"の環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	return cfg, nil
}

// OAuthEnabled はGoogle OAuthの設定が揃っているかを返す。
func (c *Config) OAuthEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.GoogleRedirectURL != ""
}

// GenerationEnabled は生成モデルのAPIキーが設定されているかを返す。
func (c *Config) GenerationEnabled() bool {
	return c.GeminiAPIKey != ""
}
