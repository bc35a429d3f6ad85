// Package service implements the orchestrator's use cases: agent
// registry, communication bus, load balancing, task decomposition,
// consensus voting, collaboration modes, and the dispatch loop that ties
// them together.
package service

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kestrel-run/orchestra/internal/domain/agent"
	"github.com/kestrel-run/orchestra/internal/domain/agenttype"
	"github.com/kestrel-run/orchestra/internal/domain/orcherr"
)

// Registry is the agent registry: it catalogs AgentTypes and tracks the
// live Agents instantiated against them.
type Registry struct {
	mu     sync.RWMutex
	types  map[string]agenttype.Type
	agents map[string]*agent.Agent
}

func NewRegistry() *Registry {
	return &Registry{
		types:  make(map[string]agenttype.Type),
		agents: make(map[string]*agent.Agent),
	}
}

// RegisterType adds an agent type to the catalog, rejecting duplicates.
func (r *Registry) RegisterType(t agenttype.Type) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.types[t.ID]; exists {
		return orcherr.New(orcherr.KindConflict, "agent type already registered: "+t.ID)
	}
	r.types[t.ID] = t
	return nil
}

// RegisterDefaults registers the built-in catalog presets; it is
// idempotent against an empty registry and typically called once at
// startup.
func (r *Registry) RegisterDefaults(presets []agenttype.Type) error {
	for _, t := range presets {
		if err := r.RegisterType(t); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) GetType(id string) (agenttype.Type, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[id]
	if !ok {
		return agenttype.Type{}, orcherr.New(orcherr.KindNotFound, "unknown agent type: "+id)
	}
	return t, nil
}

func (r *Registry) ListTypes() []agenttype.Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]agenttype.Type, 0, len(r.types))
	for _, t := range r.types {
		out = append(out, t)
	}
	return out
}

// FindTypesByCapability returns every registered type that advertises
// the given capability ID.
func (r *Registry) FindTypesByCapability(capabilityID string) []agenttype.Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []agenttype.Type
	for _, t := range r.types {
		if t.HasCapability(capabilityID) {
			out = append(out, t)
		}
	}
	return out
}

// RegisterAgent instantiates a new Agent of the given type with the
// given name, capacity, and capabilities; it is created and moved to the
// idle state before it is returned. capabilities must be a subset of the
// type's declared capabilities; an agent registered with an empty slice
// declares no capabilities, so no capability lookup matches it. Passing
// a capability the type doesn't declare fails with
// orcherr.ErrCapability.
func (r *Registry) RegisterAgent(typeID, name string, capacity int, capabilities []string) (*agent.Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.types[typeID]
	if !ok {
		return nil, orcherr.New(orcherr.KindNotFound, "unknown agent type: "+typeID)
	}
	for _, capID := range capabilities {
		if !t.HasCapability(capID) {
			return nil, orcherr.New(orcherr.KindCapability, "agent type "+typeID+" does not declare capability: "+capID)
		}
	}

	now := time.Now()
	a := &agent.Agent{
		ID:           uuid.NewString(),
		TypeID:       typeID,
		Name:         name,
		Capabilities: capabilities,
		Status:       agent.StatusCreated,
		Load:         agent.Load{Capacity: capacity},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.TransitionTo(agent.StatusIdle); err != nil {
		return nil, err
	}
	r.agents[a.ID] = a
	return a, nil
}

// UnregisterAgent stops and removes an agent from the registry. It
// fails with orcherr.ErrBusy if the agent currently has active tasks,
// rather than silently discarding in-flight work.
func (r *Registry) UnregisterAgent(agentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[agentID]
	if !ok {
		return orcherr.New(orcherr.KindNotFound, "unknown agent: "+agentID)
	}
	if a.Load.ActiveTasks > 0 {
		return orcherr.New(orcherr.KindBusy, "agent has active tasks: "+agentID)
	}
	_ = a.TransitionTo(agent.StatusStopped)
	delete(r.agents, agentID)
	return nil
}

// FindAgentsByCapability returns every agent registered with the given
// capability ID that is currently idle or busy, excluding agents that
// are paused, erroring, or stopped.
func (r *Registry) FindAgentsByCapability(capabilityID string) []*agent.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*agent.Agent
	for _, a := range r.agents {
		if (a.Status == agent.StatusIdle || a.Status == agent.StatusBusy) && a.HasCapability(capabilityID) {
			out = append(out, a)
		}
	}
	return out
}

func (r *Registry) GetAgent(agentID string) (*agent.Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[agentID]
	if !ok {
		return nil, orcherr.New(orcherr.KindNotFound, "unknown agent: "+agentID)
	}
	return a, nil
}

// ListAgents returns every live agent, optionally filtered by type.
func (r *Registry) ListAgents(typeID string) []*agent.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*agent.Agent
	for _, a := range r.agents {
		if typeID == "" || a.TypeID == typeID {
			out = append(out, a)
		}
	}
	return out
}

// AvailableAgents returns the live agents of typeID currently able to
// accept dispatch.
func (r *Registry) AvailableAgents(typeID string) []*agent.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*agent.Agent
	for _, a := range r.agents {
		if (typeID == "" || a.TypeID == typeID) && a.Available() {
			out = append(out, a)
		}
	}
	return out
}

// SetStatus drives an agent's status state machine.
func (r *Registry) SetStatus(agentID string, status agent.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[agentID]
	if !ok {
		return orcherr.New(orcherr.KindNotFound, "unknown agent: "+agentID)
	}
	return a.TransitionTo(status)
}

func (r *Registry) Pause(agentID string) error  { return r.SetStatus(agentID, agent.StatusPaused) }
func (r *Registry) Resume(agentID string) error { return r.SetStatus(agentID, agent.StatusIdle) }
