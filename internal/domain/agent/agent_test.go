package agent_test

import (
	"testing"
	"time"

	"github.com/kestrel-run/orchestra/internal/domain/agent"
)

func TestTransitionTo(t *testing.T) {
	cases := []struct {
		name    string
		from    agent.Status
		to      agent.Status
		wantErr bool
	}{
		{"created to idle", agent.StatusCreated, agent.StatusIdle, false},
		{"idle to busy", agent.StatusIdle, agent.StatusBusy, false},
		{"busy to idle", agent.StatusBusy, agent.StatusIdle, false},
		{"busy to error", agent.StatusBusy, agent.StatusError, false},
		{"stopped is terminal", agent.StatusStopped, agent.StatusIdle, true},
		{"created cannot jump to busy", agent.StatusCreated, agent.StatusBusy, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := &agent.Agent{Status: tc.from}
			err := a.TransitionTo(tc.to)
			if tc.wantErr && err == nil {
				t.Fatalf("expected error transitioning %s -> %s, got nil", tc.from, tc.to)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error transitioning %s -> %s: %v", tc.from, tc.to, err)
			}
		})
	}
}

func TestRecordOutcomeWindow(t *testing.T) {
	a := &agent.Agent{}
	for i := 0; i < 5; i++ {
		a.RecordOutcome(true, time.Millisecond, 3)
	}
	if len(a.Load.SuccessWindow) != 3 {
		t.Fatalf("window length = %d, want 3", len(a.Load.SuccessWindow))
	}

	a.RecordOutcome(false, time.Millisecond, 3)
	if a.Load.SuccessRate() >= 1.0 {
		t.Fatalf("success rate should drop below 1.0 after a failure, got %v", a.Load.SuccessRate())
	}
}

func TestSuccessRateEmptyWindow(t *testing.T) {
	a := agent.Agent{}
	if rate := a.Load.SuccessRate(); rate != 1.0 {
		t.Fatalf("success rate with no history = %v, want 1.0", rate)
	}
}

func TestUtilization(t *testing.T) {
	l := agent.Load{ActiveTasks: 2, Capacity: 4}
	if got := l.Utilization(); got != 0.5 {
		t.Fatalf("utilization = %v, want 0.5", got)
	}

	zeroCap := agent.Load{ActiveTasks: 1, Capacity: 0}
	if got := zeroCap.Utilization(); got != 1.0 {
		t.Fatalf("zero-capacity utilization = %v, want 1.0", got)
	}
}

func TestAvailable(t *testing.T) {
	a := agent.Agent{Status: agent.StatusIdle, Load: agent.Load{ActiveTasks: 0, Capacity: 2}}
	if !a.Available() {
		t.Fatal("idle agent with spare capacity should be available")
	}

	a.Load.ActiveTasks = 2
	if a.Available() {
		t.Fatal("agent at capacity should not be available")
	}

	busy := agent.Agent{Status: agent.StatusBusy, Load: agent.Load{ActiveTasks: 1, Capacity: 2}}
	if !busy.Available() {
		t.Fatal("busy agent with spare capacity should be available")
	}
}
