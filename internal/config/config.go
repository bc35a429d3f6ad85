// Package config loads orchestrator configuration from layered sources:
// compiled-in defaults, an optional YAML file, then environment variable
// overrides, in that order.
package config

import "time"

// Config is the root configuration object threaded through the
// composition root.
type Config struct {
	Orchestrator Orchestrator `yaml:"orchestrator"`
	Bus          Bus          `yaml:"bus"`
	Breaker      Breaker      `yaml:"breaker"`
	Server       Server       `yaml:"server"`
	Postgres     Postgres     `yaml:"postgres"`
	NATS         NATS         `yaml:"nats"`
	Logging      Logging      `yaml:"logging"`
}

// Orchestrator holds the dispatch and retry tunables named in the task
// scheduling design: R retries, B base backoff, C backoff cap, W the
// rolling success window size, T the failure-rate threshold that moves
// an agent into the error state.
type Orchestrator struct {
	Workers          int           `yaml:"workers"`
	MaxRetries       int           `yaml:"max_retries"`
	BackoffBase      time.Duration `yaml:"backoff_base"`
	BackoffCap       time.Duration `yaml:"backoff_cap"`
	SuccessWindow    int           `yaml:"success_window"`
	ErrorThreshold   float64       `yaml:"error_threshold"`
	LoadBalancer     string        `yaml:"load_balancer_strategy"`
	DecomposeCacheTTL time.Duration `yaml:"decompose_cache_ttl"`
}

// Bus holds the communication bus's per-subscription queue sizing.
type Bus struct {
	SubscriberQueueSize int           `yaml:"subscriber_queue_size"`
	RequestTimeout      time.Duration `yaml:"request_timeout"`
	HistorySize         int           `yaml:"history_size"`
}

// Breaker configures the circuit breaker guarding per-agent dispatch.
type Breaker struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	ResetTimeout     time.Duration `yaml:"reset_timeout"`
	HalfOpenMax      int           `yaml:"half_open_max"`
}

// Server configures the thin admin HTTP surface and websocket hub.
type Server struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Postgres configures the optional append-log eventstore adapter.
type Postgres struct {
	DSN             string `yaml:"dsn"`
	Enabled         bool   `yaml:"enabled"`
	MaxConns        int32  `yaml:"max_conns"`
}

// NATS configures the optional external replay/audit fan-out adapter.
type NATS struct {
	URL     string `yaml:"url"`
	Enabled bool   `yaml:"enabled"`
	Subject string `yaml:"subject"`
}

// Logging configures the slog handler and its async buffering.
type Logging struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // "json" or "text"
	BufferSize int    `yaml:"buffer_size"`
	Workers    int    `yaml:"workers"`
}

// Defaults returns the compiled-in baseline every Config starts from
// before YAML and environment overrides are layered on top.
func Defaults() Config {
	return Config{
		Orchestrator: Orchestrator{
			Workers:           16,
			MaxRetries:        3,
			BackoffBase:       200 * time.Millisecond,
			BackoffCap:        5 * time.Second,
			SuccessWindow:     20,
			ErrorThreshold:    0.5,
			LoadBalancer:      "least_loaded",
			DecomposeCacheTTL: 10 * time.Minute,
		},
		Bus: Bus{
			SubscriberQueueSize: 256,
			RequestTimeout:      10 * time.Second,
			HistorySize:         1000,
		},
		Breaker: Breaker{
			FailureThreshold: 5,
			ResetTimeout:     30 * time.Second,
			HalfOpenMax:      1,
		},
		Server: Server{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Postgres: Postgres{
			Enabled:  false,
			MaxConns: 10,
		},
		NATS: NATS{
			Enabled: false,
			Subject: "orchestra.events",
		},
		Logging: Logging{
			Level:      "info",
			Format:     "json",
			BufferSize: 1024,
			Workers:    2,
		},
	}
}
