// Package cron runs a periodic background sweep that returns agents in
// the error state to idle, scheduled by a cron expression evaluated with
// adhocore/gronx.
package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/adhocore/gronx"
	"github.com/kestrel-run/orchestra/internal/domain/agent"
	"github.com/kestrel-run/orchestra/internal/service"
)

// Sweeper periodically resumes agents that have sat in the error state
// past a cooldown, giving a transient failure streak a chance to clear
// without manual intervention.
type Sweeper struct {
	registry   *service.Registry
	expr       string
	cooldown   time.Duration
	log        *slog.Logger
}

func NewSweeper(registry *service.Registry, cronExpr string, cooldown time.Duration, log *slog.Logger) *Sweeper {
	return &Sweeper{registry: registry, expr: cronExpr, cooldown: cooldown, log: log}
}

// Run blocks, checking once a minute whether the cron expression is due
// and sweeping when it is, until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	g := gronx.New()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			due, err := g.IsDue(s.expr, now)
			if err != nil || !due {
				continue
			}
			s.sweep(now)
		}
	}
}

func (s *Sweeper) sweep(now time.Time) {
	for _, a := range s.registry.ListAgents("") {
		if a.Status != agent.StatusError {
			continue
		}
		if now.Sub(a.UpdatedAt) < s.cooldown {
			continue
		}
		if err := s.registry.SetStatus(a.ID, agent.StatusIdle); err != nil {
			s.log.Warn("sweep: failed to recover agent", "agent_id", a.ID, "error", err)
			continue
		}
		s.log.Info("sweep: recovered agent from error state", "agent_id", a.ID)
	}
}
