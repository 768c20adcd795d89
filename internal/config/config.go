package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr             string
	DatabaseURL          string
	CORSAllowedOrigins   []string
	CORSAllowCredentials bool

	JWTSecret string

	// CronSecret authenticates the external scheduler that triggers
	// dispatch passes. The process refuses to start without it.
	CronSecret string

	SMTP     SMTP
	Dispatch Dispatch
}

type SMTP struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

type Dispatch struct {
	StaleAfter       time.Duration
	ResendInterval   time.Duration
	TransientBackoff time.Duration
	BatchLimit       int
	StaleLimit       int

	// SelfInterval > 0 runs an in-process ticker in addition to the
	// external scheduler's cron endpoint.
	SelfInterval time.Duration
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		HTTPAddr:             getenv("HTTP_ADDR", ":8080"),
		DatabaseURL:          mustGetenv("DATABASE_URL"),
		CORSAllowCredentials: getenv("CORS_ALLOW_CREDENTIALS", "false") == "true",
	}

	origins := strings.Split(getenv("CORS_ALLOWED_ORIGINS", ""), ",")
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
		}
	}

	cfg.JWTSecret = mustGetenv("JWT_SECRET")
	cfg.CronSecret = mustGetenv("CRON_SECRET")

	cfg.SMTP = SMTP{
		Host:     getenv("SMTP_HOST", "localhost"),
		Port:     getenvInt("SMTP_PORT", 587),
		Username: getenv("SMTP_USERNAME", ""),
		Password: getenv("SMTP_PASSWORD", ""),
		From:     getenv("SMTP_FROM", "no-reply@pro247.example.com"),
		Timeout:  getenvDuration("SMTP_TIMEOUT", 10*time.Second),
	}

	cfg.Dispatch = Dispatch{
		StaleAfter:       getenvDuration("DISPATCH_STALE_AFTER", 10*time.Minute),
		ResendInterval:   getenvDuration("DISPATCH_RESEND_INTERVAL", 30*time.Minute),
		TransientBackoff: getenvDuration("DISPATCH_TRANSIENT_BACKOFF", 5*time.Minute),
		BatchLimit:       getenvInt("DISPATCH_BATCH_LIMIT", 50),
		StaleLimit:       getenvInt("DISPATCH_STALE_LIMIT", 50),
		SelfInterval:     getenvDuration("DISPATCH_SELF_INTERVAL", 0),
	}

	return cfg, nil
}

func getenv(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func mustGetenv(key string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		panic("missing env: " + key)
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
