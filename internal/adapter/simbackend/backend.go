// Package simbackend implements a deterministic in-process execbackend.Backend
// used when no remote agent runtime is configured, and registers itself
// under the "sim" name at init time the way a database driver registers
// itself with database/sql.
package simbackend

import (
	"context"
	"fmt"
	"time"

	"github.com/kestrel-run/orchestra/internal/port/execbackend"
)

func init() {
	execbackend.Register("sim", New)
}

// Backend produces a deterministic, non-failing response for every
// request, standing in for a real LLM-backed or tool-calling agent
// runtime in environments where none is configured.
type Backend struct {
	latency time.Duration
}

// New constructs a simbackend.Backend from config; the "latency" key, a
// time.Duration-parseable string, simulates execution time.
func New(config map[string]any) (execbackend.Backend, error) {
	b := &Backend{latency: 5 * time.Millisecond}
	if raw, ok := config["latency"].(string); ok {
		if d, err := time.ParseDuration(raw); err == nil {
			b.latency = d
		}
	}
	return b, nil
}

func (b *Backend) Capabilities() execbackend.Capabilities {
	return execbackend.Capabilities{SupportsStreaming: false, MaxConcurrency: 1}
}

func (b *Backend) Execute(ctx context.Context, req execbackend.Request) (execbackend.Response, error) {
	select {
	case <-time.After(b.latency):
	case <-ctx.Done():
		return execbackend.Response{}, ctx.Err()
	}
	return execbackend.Response{
		Output: map[string]any{
			"text": fmt.Sprintf("agent %s completed: %s", req.AgentID, req.Description),
		},
	}, nil
}

func (b *Backend) Close() error { return nil }
