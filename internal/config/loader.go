package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads configuration starting from Defaults, optionally layering a
// YAML file named by ORCHESTRA_CONFIG, then environment variables.
func Load() (Config, error) {
	return LoadFrom(os.Getenv("ORCHESTRA_CONFIG"))
}

// LoadFrom behaves like Load but takes the YAML path explicitly; an
// empty path skips the YAML layer.
func LoadFrom(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		if err := loadYAML(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: loading yaml %s: %w", path, err)
		}
	}

	loadEnv(&cfg)

	if err := validate(cfg); err != nil {
		return Config{}, fmt.Errorf("config: validation: %w", err)
	}
	return cfg, nil
}

func loadYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func loadEnv(cfg *Config) {
	setInt("ORCHESTRA_WORKERS", &cfg.Orchestrator.Workers)
	setInt("ORCHESTRA_MAX_RETRIES", &cfg.Orchestrator.MaxRetries)
	setDuration("ORCHESTRA_BACKOFF_BASE", &cfg.Orchestrator.BackoffBase)
	setDuration("ORCHESTRA_BACKOFF_CAP", &cfg.Orchestrator.BackoffCap)
	setInt("ORCHESTRA_SUCCESS_WINDOW", &cfg.Orchestrator.SuccessWindow)
	setFloat("ORCHESTRA_ERROR_THRESHOLD", &cfg.Orchestrator.ErrorThreshold)
	setString("ORCHESTRA_LOAD_BALANCER", &cfg.Orchestrator.LoadBalancer)

	setInt("ORCHESTRA_BUS_QUEUE_SIZE", &cfg.Bus.SubscriberQueueSize)
	setDuration("ORCHESTRA_BUS_REQUEST_TIMEOUT", &cfg.Bus.RequestTimeout)
	setInt("ORCHESTRA_BUS_HISTORY_SIZE", &cfg.Bus.HistorySize)

	setInt("ORCHESTRA_BREAKER_FAILURE_THRESHOLD", &cfg.Breaker.FailureThreshold)
	setDuration("ORCHESTRA_BREAKER_RESET_TIMEOUT", &cfg.Breaker.ResetTimeout)

	setString("ORCHESTRA_SERVER_ADDR", &cfg.Server.Addr)

	setString("ORCHESTRA_POSTGRES_DSN", &cfg.Postgres.DSN)
	setBool("ORCHESTRA_POSTGRES_ENABLED", &cfg.Postgres.Enabled)

	setString("ORCHESTRA_NATS_URL", &cfg.NATS.URL)
	setBool("ORCHESTRA_NATS_ENABLED", &cfg.NATS.Enabled)

	setString("ORCHESTRA_LOG_LEVEL", &cfg.Logging.Level)
	setString("ORCHESTRA_LOG_FORMAT", &cfg.Logging.Format)
}

func validate(cfg Config) error {
	if cfg.Orchestrator.Workers <= 0 {
		return fmt.Errorf("orchestrator.workers must be positive, got %d", cfg.Orchestrator.Workers)
	}
	if cfg.Orchestrator.SuccessWindow <= 0 {
		return fmt.Errorf("orchestrator.success_window must be positive, got %d", cfg.Orchestrator.SuccessWindow)
	}
	if cfg.Orchestrator.ErrorThreshold < 0 || cfg.Orchestrator.ErrorThreshold > 1 {
		return fmt.Errorf("orchestrator.error_threshold must be in [0,1], got %f", cfg.Orchestrator.ErrorThreshold)
	}
	if cfg.Postgres.Enabled && cfg.Postgres.DSN == "" {
		return fmt.Errorf("postgres.dsn is required when postgres.enabled is true")
	}
	if cfg.NATS.Enabled && cfg.NATS.URL == "" {
		return fmt.Errorf("nats.url is required when nats.enabled is true")
	}
	return nil
}

func setString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setBool(key string, dst *bool) {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setInt(key string, dst *int) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(key string, dst *float64) {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setDuration(key string, dst *time.Duration) {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
