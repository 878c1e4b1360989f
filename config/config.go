package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"postbase/pkg/logger"
)

type Config struct {
	Addr            string
	JWTSecret       string
	CursorSecret    string
	DatabaseURL     string // empty means run without persistence
	DefaultPageSize int
	LiveQueueSize   int
	FlushInterval   time.Duration
}

// Load reads .env if present, then the process environment, falling back to
// defaults for everything except secrets.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		logger.Sugar.Info("No .env file found, using environment variables from OS")
	}

	return Config{
		Addr:            getenv("ADDR", ":8080"),
		JWTSecret:       getenv("JWT_SECRET", ""),
		CursorSecret:    getenv("CURSOR_SECRET", "postbase-cursor"),
		DatabaseURL:     getenv("DATABASE_URL", ""),
		DefaultPageSize: getint("DEFAULT_PAGE_SIZE", 25),
		LiveQueueSize:   getint("LIVE_QUEUE_SIZE", 16),
		FlushInterval:   getduration("FLUSH_INTERVAL", 10*time.Second),
	}
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		logger.Sugar.Warnf("Invalid %s=%q, using default %d", key, v, fallback)
		return fallback
	}
	return n
}

func getduration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		logger.Sugar.Warnf("Invalid %s=%q, using default %s", key, v, fallback)
		return fallback
	}
	return d
}
