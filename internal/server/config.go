package server

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the HTTP surface settings.
type Config struct {
	Addr           string
	CORSOrigins    []string
	RateLimitRPS   int
	RateLimitBurst int
	MaxUploadBytes int64
	RequestTimeout time.Duration
}

// DefaultConfig returns the settings used when no environment overrides
// are present.
func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		CORSOrigins:    []string{"http://localhost:3000", "http://localhost:5173"},
		RateLimitRPS:   2,
		RateLimitBurst: 5,
		MaxUploadBytes: 20 << 20,
		RequestTimeout: 120 * time.Second,
	}
}

// ConfigFromEnv reads CHEMGEN_HTTP_* style variables over the defaults.
func ConfigFromEnv() Config {
	def := DefaultConfig()
	return Config{
		Addr:           envOr("CHEMGEN_HTTP_ADDR", def.Addr),
		CORSOrigins:    csvOr("CHEMGEN_CORS_ORIGINS", strings.Join(def.CORSOrigins, ",")),
		RateLimitRPS:   envInt("CHEMGEN_RATE_LIMIT_RPS", def.RateLimitRPS),
		RateLimitBurst: envInt("CHEMGEN_RATE_LIMIT_BURST", def.RateLimitBurst),
		MaxUploadBytes: int64(envInt("CHEMGEN_MAX_UPLOAD_MB", int(def.MaxUploadBytes>>20))) << 20,
		RequestTimeout: envDuration("CHEMGEN_REQUEST_TIMEOUT", def.RequestTimeout),
	}
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envInt(k string, def int) int {
	v, err := strconv.Atoi(os.Getenv(k))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func envDuration(k string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(k))
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
