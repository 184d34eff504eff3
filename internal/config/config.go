package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment distinguishes development from production behavior
// (cookie Secure flag, HSTS).
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
)

// Config holds all runtime settings, loaded from environment variables.
type Config struct {
	// Addr is the listen address for the HTTP server.
	Addr string
	// PostgresDSN is the database connection string. Required.
	PostgresDSN string
	// Environment toggles production hardening.
	Environment Environment

	// AdminSessionTTL is the absolute lifetime of admin sessions.
	AdminSessionTTL time.Duration
	// UploaderSessionTTL is the absolute lifetime of uploader sessions.
	UploaderSessionTTL time.Duration

	// RateLimitMax is the number of attempts allowed per client address and
	// endpoint inside RateLimitWindow.
	RateLimitMax int
	// RateLimitWindow is the rolling window for authentication rate limiting.
	RateLimitWindow time.Duration

	// MaxUploadBytes caps document upload size.
	MaxUploadBytes int64
	// UploadDir is the root directory for stored document files.
	UploadDir string

	// RetentionMonths controls how long submissions are kept after creation.
	RetentionMonths int

	// TrustedProxies lists IP prefixes whose X-Forwarded-For header is honored.
	TrustedProxies []string

	// ReaperInterval is how often the background sweep runs.
	ReaperInterval time.Duration
}

// Defaults that must match documented behavior; change via environment only.
const (
	defaultAddr               = ":8080"
	defaultAdminSessionTTL    = 8 * time.Hour
	defaultUploaderSessionTTL = 4 * time.Hour
	defaultRateLimitMax       = 10
	defaultRateLimitWindow    = time.Hour
	defaultMaxUploadBytes     = 50 << 20
	defaultUploadDir          = "/app/uploads"
	defaultRetentionMonths    = 12
	defaultReaperInterval     = time.Hour
)

// Load reads configuration from the environment. Only the Postgres DSN is
// mandatory; everything else has a default.
func Load() (Config, error) {
	cfg := Config{
		Addr:               envOr("RR_ADDR", defaultAddr),
		PostgresDSN:        strings.TrimSpace(os.Getenv("RR_PG_DSN")),
		Environment:        Development,
		AdminSessionTTL:    defaultAdminSessionTTL,
		UploaderSessionTTL: defaultUploaderSessionTTL,
		RateLimitMax:       defaultRateLimitMax,
		RateLimitWindow:    defaultRateLimitWindow,
		MaxUploadBytes:     defaultMaxUploadBytes,
		UploadDir:          envOr("RR_UPLOAD_DIR", defaultUploadDir),
		RetentionMonths:    defaultRetentionMonths,
		ReaperInterval:     defaultReaperInterval,
	}

	if cfg.PostgresDSN == "" {
		return Config{}, fmt.Errorf("config: RR_PG_DSN is required")
	}

	switch strings.ToLower(strings.TrimSpace(os.Getenv("RR_ENV"))) {
	case "production", "prod":
		cfg.Environment = Production
	}

	var err error
	if cfg.AdminSessionTTL, err = envDuration("RR_ADMIN_SESSION_TTL", cfg.AdminSessionTTL); err != nil {
		return Config{}, err
	}
	if cfg.UploaderSessionTTL, err = envDuration("RR_UPLOADER_SESSION_TTL", cfg.UploaderSessionTTL); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitWindow, err = envDuration("RR_RATE_LIMIT_WINDOW", cfg.RateLimitWindow); err != nil {
		return Config{}, err
	}
	if cfg.ReaperInterval, err = envDuration("RR_REAPER_INTERVAL", cfg.ReaperInterval); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitMax, err = envInt("RR_RATE_LIMIT_MAX", cfg.RateLimitMax); err != nil {
		return Config{}, err
	}
	if cfg.RetentionMonths, err = envInt("RR_RETENTION_MONTHS", cfg.RetentionMonths); err != nil {
		return Config{}, err
	}
	if raw := strings.TrimSpace(os.Getenv("RR_MAX_UPLOAD_BYTES")); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v <= 0 {
			return Config{}, fmt.Errorf("config: invalid RR_MAX_UPLOAD_BYTES %q", raw)
		}
		cfg.MaxUploadBytes = v
	}
	if raw := strings.TrimSpace(os.Getenv("RR_TRUSTED_PROXIES")); raw != "" {
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				cfg.TrustedProxies = append(cfg.TrustedProxies, p)
			}
		}
	}
	return cfg, nil
}

// IsProduction reports whether production hardening should be enabled.
func (c Config) IsProduction() bool { return c.Environment == Production }

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("config: invalid %s %q", key, raw)
	}
	return d, nil
}

func envInt(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("config: invalid %s %q", key, raw)
	}
	return v, nil
}
