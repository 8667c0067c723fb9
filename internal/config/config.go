package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config はサーバーの起動設定です。
type Config struct {
	Port           string
	DatabaseURL    string   // 空ならランキングは無効
	JWTSecret      string   // SUPABASE_JWT_SECRET
	BypassAuth     bool     // テスト用: trueならJWTを検証しない
	AllowedOrigins []string // CORSで許可するオリジン
	MaxSessions    int      // 同時に動かせるゲームセッション数
}

// デフォルト値
const (
	DefaultPort        = "8080"
	DefaultMaxSessions = 1000
)

// DefaultAllowedOrigins はALLOWED_ORIGINSが未設定のときのオリジンです。
var DefaultAllowedOrigins = []string{"http://localhost:3000", "http://localhost:5173"}

// Load は環境変数から設定を読み込みます。
// APP_ENV が production 以外のときは、先に .env を読み込みます。
func Load() (*Config, error) {
	if os.Getenv("APP_ENV") != "production" {
		if err := godotenv.Load(); err != nil {
			log.Printf("warning: Error loading .env file (this is fine in production): %v", err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv は getenv から設定を組み立てます。
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Port:           getenv("PORT"),
		DatabaseURL:    getenv("DATABASE_URL"),
		JWTSecret:      getenv("SUPABASE_JWT_SECRET"),
		BypassAuth:     getenv("BYPASS_AUTH") == "true",
		AllowedOrigins: splitList(getenv("ALLOWED_ORIGINS")),
		MaxSessions:    DefaultMaxSessions,
	}
	if cfg.Port == "" {
		cfg.Port = DefaultPort
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = DefaultAllowedOrigins
	}

	if raw := getenv("MAX_SESSIONS"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("MAX_SESSIONS must be a positive integer, got %q", raw)
		}
		cfg.MaxSessions = n
	}

	if cfg.JWTSecret == "" && !cfg.BypassAuth {
		log.Println("warning: SUPABASE_JWT_SECRET is not set; authenticated endpoints will reject every request")
	}
	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
