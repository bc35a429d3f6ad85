// Package agent models a single addressable compute unit: its identity,
// its type, its current load, and the status state machine that governs
// which transitions the registry will accept.
package agent

import (
	"time"

	"github.com/kestrel-run/orchestra/internal/domain/orcherr"
)

// Status is a node in the agent lifecycle state machine.
type Status string

const (
	StatusCreated Status = "created"
	StatusIdle    Status = "idle"
	StatusBusy    Status = "busy"
	StatusPaused  Status = "paused"
	StatusError   Status = "error"
	StatusStopped Status = "stopped"
)

// transitions enumerates the edges of the agent state machine. Any move
// not listed here is rejected by Agent.TransitionTo.
var transitions = map[Status]map[Status]bool{
	StatusCreated: {StatusIdle: true, StatusStopped: true},
	StatusIdle:    {StatusBusy: true, StatusPaused: true, StatusError: true, StatusStopped: true},
	StatusBusy:    {StatusIdle: true, StatusPaused: true, StatusError: true, StatusStopped: true},
	StatusPaused:  {StatusIdle: true, StatusError: true, StatusStopped: true},
	StatusError:   {StatusIdle: true, StatusStopped: true},
	StatusStopped: {},
}

// IsTerminal reports whether the agent can no longer transition anywhere.
func (s Status) IsTerminal() bool { return s == StatusStopped }

// Load tracks the rolling health metrics the load balancer and registry
// use to score an agent for dispatch.
type Load struct {
	ActiveTasks   int
	Capacity      int
	SuccessWindow []bool // bounded ring of the last W outcomes, oldest first
	AvgDuration   time.Duration
}

// SuccessRate returns the fraction of recent successes in the rolling
// window, or 1.0 when no history has accumulated yet.
func (l Load) SuccessRate() float64 {
	if len(l.SuccessWindow) == 0 {
		return 1.0
	}
	ok := 0
	for _, v := range l.SuccessWindow {
		if v {
			ok++
		}
	}
	return float64(ok) / float64(len(l.SuccessWindow))
}

// Utilization returns active/capacity, clamped to 1.0 when capacity is 0.
func (l Load) Utilization() float64 {
	if l.Capacity <= 0 {
		return 1.0
	}
	return float64(l.ActiveTasks) / float64(l.Capacity)
}

// Agent is a single registered, addressable compute unit of a given
// AgentType.
type Agent struct {
	ID           string
	TypeID       string
	Name         string
	Capabilities []string // subset of the AgentType's declared capability IDs
	Status       Status
	Load         Load
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasCapability reports whether the agent was registered with the given
// capability ID.
func (a Agent) HasCapability(capabilityID string) bool {
	for _, c := range a.Capabilities {
		if c == capabilityID {
			return true
		}
	}
	return false
}

// TransitionTo validates and applies a status change, returning
// orcherr.ErrState if the edge is not permitted.
func (a *Agent) TransitionTo(next Status) error {
	allowed, known := transitions[a.Status]
	if !known || !allowed[next] {
		return orcherr.New(orcherr.KindState, "illegal agent transition "+string(a.Status)+" -> "+string(next))
	}
	a.Status = next
	a.UpdatedAt = time.Now()
	return nil
}

// RecordOutcome pushes a task outcome into the rolling success window,
// capped at window, and updates the moving average duration.
func (a *Agent) RecordOutcome(success bool, duration time.Duration, window int) {
	a.Load.SuccessWindow = append(a.Load.SuccessWindow, success)
	if len(a.Load.SuccessWindow) > window {
		a.Load.SuccessWindow = a.Load.SuccessWindow[len(a.Load.SuccessWindow)-window:]
	}
	if a.Load.AvgDuration == 0 {
		a.Load.AvgDuration = duration
	} else {
		a.Load.AvgDuration = (a.Load.AvgDuration + duration) / 2
	}
}

// Available reports whether the agent can currently accept dispatch: it
// must be idle or already busy with headroom left under its capacity.
// An agent that is paused, erroring, stopped, or already at capacity is
// never available, regardless of how that capacity is used up.
func (a Agent) Available() bool {
	if a.Status != StatusIdle && a.Status != StatusBusy {
		return false
	}
	return a.Load.ActiveTasks < a.Load.Capacity
}
