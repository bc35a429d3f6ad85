// Package session models a collaboration round between multiple agents:
// the mode being run, the opinions cast, and the resulting consensus
// decision.
package session

import "time"

// Mode names one of the five collaboration coordinators.
type Mode string

const (
	ModeDebate   Mode = "debate"
	ModeEnsemble Mode = "ensemble"
	ModePipeline Mode = "pipeline"
	ModeCritique Mode = "critique"
	ModeSwarm    Mode = "swarm"
)

// Status tracks a session's own lifecycle.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// DecisionKind distinguishes a scalar decision value (a label, a number)
// from a structured one (an arbitrary map), since equality and hashing
// for voting differ between the two.
type DecisionKind string

const (
	DecisionScalar DecisionKind = "scalar"
	DecisionStruct DecisionKind = "struct"
)

// Decision is the value an agent voted for, or the value a consensus
// resolved to. Key is a canonical, comparable representation used to
// group identical votes regardless of Kind.
type Decision struct {
	Kind  DecisionKind
	Key   string
	Value any
}

// Opinion is one agent's vote in a consensus round.
type Opinion struct {
	AgentID    string
	Decision   Decision
	Confidence float64 // 0.0 to 1.0
	AgentWeight float64 // contribution multiplier for weighted voting; 0 is treated as 1.0
	Rationale  string
	CastAt     time.Time
}

// Session is one run of a collaboration mode among a set of
// participating agents.
type Session struct {
	ID            string
	Mode          Mode
	TaskID        string
	Participants  []string
	Opinions      []Opinion
	Status        Status
	Result        any
	Round         int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
