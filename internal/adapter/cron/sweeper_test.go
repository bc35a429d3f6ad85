package cron

import (
	"log/slog"
	"testing"
	"time"

	"github.com/kestrel-run/orchestra/internal/domain/agent"
	"github.com/kestrel-run/orchestra/internal/domain/agenttype"
	"github.com/kestrel-run/orchestra/internal/service"
)

func newTestRegistry(t *testing.T) *service.Registry {
	t.Helper()
	r := service.NewRegistry()
	if err := r.RegisterDefaults(agenttype.Presets()); err != nil {
		t.Fatalf("failed to register presets: %v", err)
	}
	return r
}

func TestSweepRecoversStaleErroredAgent(t *testing.T) {
	r := newTestRegistry(t)
	a, err := r.RegisterAgent("research_agent", "", 1, nil)
	if err != nil {
		t.Fatalf("failed to register agent: %v", err)
	}
	if err := r.SetStatus(a.ID, agent.StatusError); err != nil {
		t.Fatalf("failed to move agent into error state: %v", err)
	}
	a.UpdatedAt = time.Now().Add(-time.Hour)

	s := NewSweeper(r, "* * * * *", time.Minute, slog.Default())
	s.sweep(time.Now())

	got, err := r.GetAgent(a.ID)
	if err != nil {
		t.Fatalf("unexpected error fetching agent: %v", err)
	}
	if got.Status != agent.StatusIdle {
		t.Fatalf("status = %s, want idle after sweep", got.Status)
	}
}

func TestSweepLeavesFreshErroredAgentAlone(t *testing.T) {
	r := newTestRegistry(t)
	a, err := r.RegisterAgent("research_agent", "", 1, nil)
	if err != nil {
		t.Fatalf("failed to register agent: %v", err)
	}
	if err := r.SetStatus(a.ID, agent.StatusError); err != nil {
		t.Fatalf("failed to move agent into error state: %v", err)
	}

	s := NewSweeper(r, "* * * * *", time.Hour, slog.Default())
	s.sweep(time.Now())

	got, err := r.GetAgent(a.ID)
	if err != nil {
		t.Fatalf("unexpected error fetching agent: %v", err)
	}
	if got.Status != agent.StatusError {
		t.Fatalf("status = %s, want the agent to remain in error before its cooldown elapses", got.Status)
	}
}

func TestSweepIgnoresNonErroredAgents(t *testing.T) {
	r := newTestRegistry(t)
	a, err := r.RegisterAgent("research_agent", "", 1, nil)
	if err != nil {
		t.Fatalf("failed to register agent: %v", err)
	}

	s := NewSweeper(r, "* * * * *", time.Minute, slog.Default())
	s.sweep(time.Now())

	got, err := r.GetAgent(a.ID)
	if err != nil {
		t.Fatalf("unexpected error fetching agent: %v", err)
	}
	if got.Status != agent.StatusIdle {
		t.Fatalf("status = %s, want idle agents to be left untouched", got.Status)
	}
}
