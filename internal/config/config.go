package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ModeDevelopment = "development"
	ModeProduction  = "production"
)

// Duration wraps time.Duration so YAML values can be written as "1m30s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// RatePolicy is one route class admission policy.
type RatePolicy struct {
	Limit  int      `yaml:"limit"`
	Window Duration `yaml:"window"`
}

type LedgerConfig struct {
	IdempotencyTTL  Duration `yaml:"idempotency_ttl"`
	ConflictRetries int      `yaml:"conflict_retries"`
	SnapshotNights  int      `yaml:"snapshot_nights"`
}

type StreamConfig struct {
	Buffer int `yaml:"buffer"`
}

// Config holds all service settings. Values come from an optional YAML
// file with environment variables taking precedence.
type Config struct {
	ListenAddr  string                `yaml:"listen_addr"`
	DatabaseURL string                `yaml:"database_url"`
	Mode        string                `yaml:"mode"`
	CORSOrigins []string              `yaml:"cors_origins"`
	RateLimits  map[string]RatePolicy `yaml:"rate_limits"`
	Ledger      LedgerConfig          `yaml:"ledger"`
	Stream      StreamConfig          `yaml:"stream"`
}

func defaults() Config {
	return Config{
		ListenAddr: ":8080",
		Mode:       ModeDevelopment,
		CORSOrigins: []string{
			"http://localhost:5173",
			"http://127.0.0.1:5173",
		},
		RateLimits: map[string]RatePolicy{
			"auth":     {Limit: 5, Window: Duration(time.Minute)},
			"mutation": {Limit: 60, Window: Duration(time.Minute)},
		},
		Ledger: LedgerConfig{
			IdempotencyTTL:  Duration(10 * time.Minute),
			ConflictRetries: 5,
			SnapshotNights:  30,
		},
		Stream: StreamConfig{Buffer: 8},
	}
}

// Load reads configuration: .env (best effort), then the YAML file if
// present, then environment overrides.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := defaults()

	if path == "" {
		path = getenv("CONFIG_FILE", "config.yaml")
	}
	if raw, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}

	cfg.ListenAddr = getenv("LISTEN_ADDR", cfg.ListenAddr)
	if port := os.Getenv("PORT"); port != "" {
		cfg.ListenAddr = ":" + port
	}
	cfg.DatabaseURL = getenv("DATABASE_URL", cfg.DatabaseURL)
	cfg.Mode = getenv("MODE", cfg.Mode)
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.CORSOrigins = splitCSV(origins)
	}
	if retries := getenvInt("LEDGER_CONFLICT_RETRIES", cfg.Ledger.ConflictRetries); retries > 0 {
		cfg.Ledger.ConflictRetries = retries
	}

	if cfg.Mode != ModeDevelopment && cfg.Mode != ModeProduction {
		return Config{}, fmt.Errorf("invalid mode %q", cfg.Mode)
	}
	return cfg, nil
}

// Development reports whether dev-only surfaces (rate limit reset) are
// enabled.
func (c Config) Development() bool {
	return c.Mode == ModeDevelopment
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func splitCSV(input string) []string {
	parts := strings.Split(input, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
