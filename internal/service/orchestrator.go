package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kestrel-run/orchestra/internal/domain/bus"
	"github.com/kestrel-run/orchestra/internal/domain/event"
	"github.com/kestrel-run/orchestra/internal/domain/orcherr"
	"github.com/kestrel-run/orchestra/internal/domain/plan"
	"github.com/kestrel-run/orchestra/internal/domain/task"
	"github.com/kestrel-run/orchestra/internal/port/broadcast"
	"github.com/kestrel-run/orchestra/internal/port/execbackend"
	"github.com/kestrel-run/orchestra/internal/resilience"
)

// Topics published on the Bus for plan and task lifecycle events, so
// collaboration modes and external observers can subscribe without a
// direct dependency on the Orchestrator.
const (
	TopicTaskDispatched = "orchestra.task.dispatched"
	TopicTaskCompleted  = "orchestra.task.completed"
	TopicTaskFailed     = "orchestra.task.failed"
	TopicPlanCompleted  = "orchestra.plan.completed"
	TopicPlanFailed     = "orchestra.plan.failed"
)

// OrchestratorConfig carries the dispatch tunables: worker concurrency,
// retry count R, backoff base B and cap C, and the rolling-window size
// and error-rate threshold that govern when an agent is moved to the
// error state.
type OrchestratorConfig struct {
	Workers        int
	MaxRetries     int
	BackoffBase    time.Duration
	BackoffCap     time.Duration
	SuccessWindow  int
	ErrorThreshold float64

	// DispatchTimeout bounds how long dispatch waits for an agent's Bus
	// reply before giving up on the attempt. Zero falls back to 30s.
	DispatchTimeout time.Duration

	BreakerFailureThreshold int
	BreakerResetTimeout     time.Duration
	BreakerHalfOpenMax      int
}

// planState tracks one in-flight DecompositionPlan: its tasks keyed by
// subtask key, which keys have reached a terminal state, and the cancel
// function for whichever subtask key is currently mid-dispatch, so
// CancelPlan can interrupt an in-flight Bus request.
type planState struct {
	mu        sync.Mutex
	plan      plan.DecompositionPlan
	tasks     map[string]*task.Task // subtask key -> task
	done      map[string]bool
	cancelFns map[string]context.CancelFunc
}

// Orchestrator is the dispatch loop: a fixed pool of workers drains a
// priority queue of ready tasks, dispatches them to agents via the load
// balancer, retries failures with exponential backoff, and cascades
// cancellation to dependents when a task exhausts its retries.
type Orchestrator struct {
	cfg          OrchestratorConfig
	registry     *Registry
	bus          *Bus
	lb           *LoadBalancer
	backends     map[string]execbackend.Backend // agent ID -> backend
	dispatchSubs map[string]string              // agent ID -> Bus subscription ID for its dispatch topic
	breakers     map[string]*resilience.Breaker
	broadcaster  broadcast.Broadcaster
	log          *slog.Logger
	queue        *TaskQueue

	mu    sync.Mutex
	plans map[string]*planState

	breakerMu sync.Mutex
}

func NewOrchestrator(cfg OrchestratorConfig, registry *Registry, b *Bus, lb *LoadBalancer, bc broadcast.Broadcaster, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:          cfg,
		registry:     registry,
		bus:          b,
		lb:           lb,
		backends:     make(map[string]execbackend.Backend),
		dispatchSubs: make(map[string]string),
		breakers:     make(map[string]*resilience.Breaker),
		broadcaster:  bc,
		log:          log,
		queue:        NewTaskQueue(),
		plans:        make(map[string]*planState),
	}
}

// Run starts the fixed worker pool draining the priority queue; it blocks
// until ctx is cancelled, so callers typically invoke it in a goroutine.
func (o *Orchestrator) Run(ctx context.Context) {
	workers := o.cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			o.worker(ctx)
		}()
	}
	wg.Wait()
}

func (o *Orchestrator) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		t := o.queue.Pop()
		if t == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(10 * time.Millisecond):
			}
			continue
		}

		ps := o.planFor(t.PlanID)
		if ps == nil {
			continue
		}
		o.dispatch(ctx, ps, t)
	}
}

func (o *Orchestrator) planFor(planID string) *planState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.plans[planID]
}

// dispatchTopic is the per-agent topic dispatch() publishes execution
// requests on; BindBackend subscribes the bound backend's handler here.
func dispatchTopic(agentID string) string {
	return "orchestra.agent." + agentID + ".dispatch"
}

// controlTopic is the per-agent topic CancelPlan publishes a
// cancellation notice on, for audit and for any observer that wants to
// watch an agent's control channel. The actual interrupt is delivered
// out-of-band via the task's context, since Bus.Subscribe always
// invokes handlers with a background context.
func controlTopic(agentID string) string {
	return "orchestra.agent." + agentID + ".control"
}

// dispatchTimeout is how long dispatch waits for a bound backend's Bus
// reply before giving up on the attempt.
func (o *Orchestrator) dispatchTimeout() time.Duration {
	if o.cfg.DispatchTimeout > 0 {
		return o.cfg.DispatchTimeout
	}
	return 30 * time.Second
}

// dispatchReply is the payload an agent's dispatch-topic handler
// replies with once its backend has executed (or failed to execute)
// the request.
type dispatchReply struct {
	Response execbackend.Response
	Err      error
}

// BindBackend attaches the execution backend a given agent dispatches
// through and subscribes a Bus handler on that agent's dispatch topic,
// so dispatch() reaches the backend via a Bus request/reply round trip
// rather than calling it directly. Rebinding an agent's backend
// replaces its prior subscription.
func (o *Orchestrator) BindBackend(agentID string, b execbackend.Backend) {
	o.mu.Lock()
	o.backends[agentID] = b
	if prevSub, ok := o.dispatchSubs[agentID]; ok {
		o.bus.Unsubscribe(prevSub)
	}
	subID := o.bus.Subscribe(dispatchTopic(agentID), func(ctx context.Context, msg bus.Message) {
		req, ok := msg.Payload.(execbackend.Request)
		if !ok {
			return
		}
		resp, err := b.Execute(ctx, req)
		_ = o.bus.Publish(ctx, bus.Message{
			Topic:         msg.ReplyTo,
			Sender:        agentID,
			Payload:       dispatchReply{Response: resp, Err: err},
			CorrelationID: msg.CorrelationID,
		})
	})
	o.dispatchSubs[agentID] = subID
	o.mu.Unlock()
}

func (o *Orchestrator) breakerFor(agentID string) *resilience.Breaker {
	o.breakerMu.Lock()
	defer o.breakerMu.Unlock()
	br, ok := o.breakers[agentID]
	if !ok {
		br = resilience.New(o.cfg.BreakerFailureThreshold, o.cfg.BreakerResetTimeout, o.cfg.BreakerHalfOpenMax)
		o.breakers[agentID] = br
	}
	return br
}

// StartPlan instantiates tasks for every subtask spec in p and begins
// dispatching the ones with no dependencies.
func (o *Orchestrator) StartPlan(ctx context.Context, p plan.DecompositionPlan) error {
	if err := p.Validate(); err != nil {
		return err
	}

	ps := &planState{
		plan:      p,
		tasks:     make(map[string]*task.Task),
		done:      make(map[string]bool),
		cancelFns: make(map[string]context.CancelFunc),
	}

	now := time.Now()
	for _, spec := range p.SubTasks {
		priority := task.Priority(spec.Priority)
		if spec.Priority == 0 {
			priority = task.PriorityNormal
		}
		t := &task.Task{
			ID:          uuid.NewString(),
			PlanID:      p.ID,
			AgentTypeID: spec.AgentTypeID,
			Description: spec.Description,
			Priority:    priority,
			DependsOn:   spec.DependsOn,
			Status:      task.StatusWaiting,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		ps.tasks[spec.Key] = t
	}

	o.mu.Lock()
	o.plans[p.ID] = ps
	o.mu.Unlock()

	o.publish(ctx, event.TypePlanStarted, p.ID, p.ID, nil)

	return o.advance(ctx, ps)
}

// advance dispatches every subtask whose dependencies are now satisfied.
func (o *Orchestrator) advance(ctx context.Context, ps *planState) error {
	ps.mu.Lock()
	ready := ps.plan.ReadySteps(ps.done)
	var toDispatch []*task.Task
	for _, key := range ready {
		t := ps.tasks[key]
		if t.Status == task.StatusWaiting || t.Status == task.StatusQueued {
			if err := t.TransitionTo(task.StatusQueued); err == nil {
				toDispatch = append(toDispatch, t)
			}
		}
	}
	ps.mu.Unlock()

	for _, t := range toDispatch {
		o.queue.Push(t)
	}

	ps.mu.Lock()
	finished := ps.plan.AllTerminal(ps.done)
	anyFailed := false
	for key := range ps.done {
		if t := ps.tasks[key]; t != nil && t.Status == task.StatusFailed {
			anyFailed = true
		}
	}
	ps.mu.Unlock()

	if finished {
		if anyFailed {
			o.completePlan(ctx, ps, plan.StatusFailed, TopicPlanFailed, event.TypePlanFailed)
		} else {
			o.completePlan(ctx, ps, plan.StatusCompleted, TopicPlanCompleted, event.TypePlanCompleted)
		}
	}
	return nil
}

func (o *Orchestrator) completePlan(ctx context.Context, ps *planState, status plan.Status, topic string, evtType event.Type) {
	ps.mu.Lock()
	ps.plan.Status = status
	ps.plan.UpdatedAt = time.Now()
	planID := ps.plan.ID
	ps.mu.Unlock()

	_ = o.bus.Publish(ctx, bus.Message{Topic: topic, Sender: "orchestrator", Payload: planID})
	o.publish(ctx, evtType, planID, planID, nil)
}

func (o *Orchestrator) publish(ctx context.Context, t event.Type, entityID, planID string, data map[string]any) {
	if o.broadcaster == nil {
		return
	}
	_ = o.broadcaster.Broadcast(ctx, event.Event{
		Type:      t,
		EntityID:  entityID,
		PlanID:    planID,
		Data:      data,
		Timestamp: time.Now(),
	})
}

// GetPlanStatus returns the current status of a tracked plan.
func (o *Orchestrator) GetPlanStatus(planID string) (plan.Status, error) {
	o.mu.Lock()
	ps, ok := o.plans[planID]
	o.mu.Unlock()
	if !ok {
		return "", orcherr.New(orcherr.KindNotFound, "unknown plan: "+planID)
	}
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.plan.Status, nil
}

// GetPlanTasks returns a snapshot of every subtask tracked for planID,
// keyed by its SubTaskSpec key, so a caller can inspect per-subtask
// status and results once the plan reaches a terminal state.
func (o *Orchestrator) GetPlanTasks(planID string) (map[string]task.Task, error) {
	o.mu.Lock()
	ps, ok := o.plans[planID]
	o.mu.Unlock()
	if !ok {
		return nil, orcherr.New(orcherr.KindNotFound, "unknown plan: "+planID)
	}
	ps.mu.Lock()
	defer ps.mu.Unlock()
	out := make(map[string]task.Task, len(ps.tasks))
	for key, t := range ps.tasks {
		out[key] = *t
	}
	return out, nil
}

// runningCancellation is one in-flight dispatch CancelPlan is
// interrupting: the agent it was running on, and the cancel function
// for its dispatch context.
type runningCancellation struct {
	agentID string
	cancel  context.CancelFunc
}

// CancelPlan transitions every non-terminal task in the plan to
// cancelled. For tasks currently mid-dispatch, it fires a cancellation
// message on the assigned agent's control topic for audit and cancels
// the task's dispatch context, which unblocks dispatch()'s pending Bus
// request and lets it mark the agent as errored once it observes the
// cancellation.
func (o *Orchestrator) CancelPlan(ctx context.Context, planID string) error {
	o.mu.Lock()
	ps, ok := o.plans[planID]
	o.mu.Unlock()
	if !ok {
		return orcherr.New(orcherr.KindNotFound, "unknown plan: "+planID)
	}

	ps.mu.Lock()
	var running []runningCancellation
	for key, t := range ps.tasks {
		if t.Status.IsTerminal() {
			continue
		}
		if t.Status == task.StatusRunning {
			if cancel, ok := ps.cancelFns[key]; ok && t.AssignedTo != "" {
				running = append(running, runningCancellation{agentID: t.AssignedTo, cancel: cancel})
			}
		}
		_ = t.TransitionTo(task.StatusCancelled)
		ps.done[key] = true
	}
	ps.plan.Status = plan.StatusCancelled
	ps.cancelFns = make(map[string]context.CancelFunc)
	ps.mu.Unlock()

	for _, rc := range running {
		_ = o.bus.Publish(ctx, bus.Message{
			Topic:   controlTopic(rc.agentID),
			Sender:  "orchestrator",
			Payload: "cancel",
		})
		rc.cancel()
	}

	o.publish(ctx, event.TypePlanFailed, planID, planID, map[string]any{"reason": "cancelled"})
	return nil
}
