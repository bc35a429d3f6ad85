// Package task models a unit of work: its priority, its dependency set,
// and the status state machine the dispatcher drives it through.
package task

import (
	"time"

	"github.com/kestrel-run/orchestra/internal/domain/orcherr"
)

// Status is a node in the task lifecycle state machine.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusWaiting   Status = "waiting"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

var transitions = map[Status]map[Status]bool{
	StatusQueued:    {StatusWaiting: true, StatusRunning: true, StatusCancelled: true},
	StatusWaiting:   {StatusQueued: true, StatusRunning: true, StatusCancelled: true},
	StatusRunning:   {StatusCompleted: true, StatusFailed: true, StatusCancelled: true},
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
}

// Priority is a small ordinal scale; higher values are serviced first by
// the dispatcher's priority heap.
type Priority int

const (
	PriorityLow    Priority = 0
	PriorityNormal Priority = 5
	PriorityHigh   Priority = 10
	PriorityUrgent Priority = 20
)

// Result carries the outcome of a completed or failed task.
type Result struct {
	Output    any
	Error     string
	FailedAt  time.Time
	Retries   int
}

// Task is a single schedulable unit of work, possibly depending on the
// completion of other tasks.
type Task struct {
	ID           string
	PlanID       string
	AgentTypeID  string
	AssignedTo   string // agent ID once dispatched
	Description  string
	Priority     Priority
	DependsOn    []string
	Status       Status
	Result       *Result
	Attempt      int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (t *Task) TransitionTo(next Status) error {
	allowed, known := transitions[t.Status]
	if !known || !allowed[next] {
		return orcherr.New(orcherr.KindState, "illegal task transition "+string(t.Status)+" -> "+string(next))
	}
	t.Status = next
	t.UpdatedAt = time.Now()
	return nil
}

// DependenciesSatisfied reports whether every dependency ID is present
// (and implicitly completed) in the done set.
func (t Task) DependenciesSatisfied(done map[string]bool) bool {
	for _, dep := range t.DependsOn {
		if !done[dep] {
			return false
		}
	}
	return true
}
