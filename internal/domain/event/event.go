// Package event defines the notifications the orchestrator broadcasts to
// observers (the websocket hub, the NATS replay adapter, the eventstore).
package event

import "time"

type Type string

const (
	TypeAgentRegistered Type = "agent.registered"
	TypeAgentStatus     Type = "agent.status_changed"
	TypeTaskQueued      Type = "task.queued"
	TypeTaskDispatched  Type = "task.dispatched"
	TypeTaskCompleted   Type = "task.completed"
	TypeTaskFailed      Type = "task.failed"
	TypeTaskCancelled   Type = "task.cancelled"
	TypePlanStarted     Type = "plan.started"
	TypePlanCompleted   Type = "plan.completed"
	TypePlanFailed      Type = "plan.failed"
	TypeSessionStarted  Type = "session.started"
	TypeSessionFinished Type = "session.finished"
)

// Event is a single point-in-time fact emitted by the orchestrator,
// fanned out to every registered Broadcaster.
type Event struct {
	Type      Type
	EntityID  string
	PlanID    string
	Data      map[string]any
	Timestamp time.Time
}
