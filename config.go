package main

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Zachkp/metro-portfolio/internal/flyover"
)

// Config is read from the environment. A .env file is loaded first when present.
type Config struct {
	Addr           string
	DBPath         string
	ContentPath    string
	ThemesPath     string
	DefaultTheme   string
	AllowedOrigins []string
	FlyoverDelay   time.Duration
	SessionIdle    time.Duration
	Release        bool

	SMTP  SMTPConfig
	Admin AdminConfig
}

// SMTPConfig configures contact form delivery.
type SMTPConfig struct {
	Host string
	Port string
	User string
	Pass string
	To   string
}

// AdminConfig holds the dashboard credentials.
type AdminConfig struct {
	Username string
	Password string
}

// LoadConfig builds a Config from environment variables, with defaults
// suitable for local development.
func LoadConfig() Config {
	port := getenv("PORT", "8080")
	return Config{
		Addr:           ":" + port,
		DBPath:         getenv("METRO_DB_PATH", "data/metro.db"),
		ContentPath:    os.Getenv("METRO_CONTENT"),
		ThemesPath:     os.Getenv("METRO_THEMES"),
		DefaultTheme:   os.Getenv("METRO_THEME"),
		AllowedOrigins: splitList(os.Getenv("METRO_ALLOWED_ORIGINS")),
		FlyoverDelay:   getDuration("METRO_FLYOVER_DELAY", flyover.DefaultDelay),
		SessionIdle:    getDuration("METRO_SESSION_IDLE", time.Hour),
		Release:        os.Getenv("GIN_MODE") == "release",
		SMTP: SMTPConfig{
			Host: getenv("SMTP_HOST", "smtp.gmail.com"),
			Port: getenv("SMTP_PORT", "587"),
			User: os.Getenv("SMTP_USER"),
			Pass: os.Getenv("SMTP_PASS"),
			To:   os.Getenv("TO_EMAIL"),
		},
		Admin: AdminConfig{
			Username: getenv("ADMIN_USERNAME", "admin"),
			Password: getenv("ADMIN_PASSWORD", "admin123"),
		},
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	// Bare numbers are milliseconds.
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
