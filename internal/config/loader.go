package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "titan.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// The YAML file is optional; a missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "TITAN_PORT")
	setString(&cfg.Server.CORSOrigin, "TITAN_CORS_ORIGIN")
	setString(&cfg.Model.URL, "TITAN_MODEL_URL")
	setString(&cfg.Model.Name, "TITAN_MODEL_NAME")
	setFloat64(&cfg.Model.Temperature, "TITAN_MODEL_TEMPERATURE")
	setInt(&cfg.Model.MaxTokens, "TITAN_MODEL_MAX_TOKENS")
	setDuration(&cfg.Model.Timeout, "TITAN_MODEL_TIMEOUT")
	setDuration(&cfg.Model.ThinkingTimeout, "TITAN_MODEL_THINKING_TIMEOUT")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "TITAN_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "TITAN_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "TITAN_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "TITAN_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "TITAN_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setInt64(&cfg.Cache.L1MaxSizeMB, "TITAN_CACHE_L1_SIZE_MB")
	setString(&cfg.Cache.L2Bucket, "TITAN_CACHE_L2_BUCKET")
	setDuration(&cfg.Cache.TTL, "TITAN_CACHE_TTL")
	setInt(&cfg.Session.MaxActive, "TITAN_SESSION_MAX_ACTIVE")
	setDuration(&cfg.Session.Timeout, "TITAN_SESSION_TIMEOUT")
	setDuration(&cfg.Session.CleanupInterval, "TITAN_SESSION_CLEANUP_INTERVAL")
	setString(&cfg.History.Dir, "TITAN_HISTORY_DIR")
	setInt(&cfg.History.MaxBackups, "TITAN_HISTORY_MAX_BACKUPS")
	setString(&cfg.Search.URL, "TITAN_SEARCH_URL")
	setDuration(&cfg.Search.Timeout, "TITAN_SEARCH_TIMEOUT")
	setInt(&cfg.Search.MaxResults, "TITAN_SEARCH_MAX_RESULTS")
	setString(&cfg.Logging.Level, "TITAN_LOG_LEVEL")
	setString(&cfg.Logging.Service, "TITAN_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "TITAN_LOG_ASYNC")
	setInt(&cfg.Breaker.MaxFailures, "TITAN_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "TITAN_BREAKER_TIMEOUT")
	setFloat64(&cfg.Rate.RequestsPerSecond, "TITAN_RATE_RPS")
	setInt(&cfg.Rate.Burst, "TITAN_RATE_BURST")
	setDuration(&cfg.Rate.CleanupInterval, "TITAN_RATE_CLEANUP_INTERVAL")
	setDuration(&cfg.Rate.MaxIdleTime, "TITAN_RATE_MAX_IDLE_TIME")
	setBool(&cfg.Telemetry.Enabled, "TITAN_TELEMETRY_ENABLED")
	setString(&cfg.Telemetry.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
}

// validate checks config invariants that would otherwise surface as
// confusing runtime failures.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Model.URL == "" {
		return errors.New("model.url is required")
	}
	if cfg.Model.MaxTokens <= 0 {
		return errors.New("model.max_tokens must be positive")
	}
	if cfg.Session.MaxActive <= 0 {
		return errors.New("session.max_active must be positive")
	}
	if cfg.History.Dir == "" {
		return errors.New("history.dir is required")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
