package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kestrel-run/orchestra/internal/domain/agent"
	"github.com/kestrel-run/orchestra/internal/domain/bus"
	"github.com/kestrel-run/orchestra/internal/domain/event"
	"github.com/kestrel-run/orchestra/internal/domain/task"
	"github.com/kestrel-run/orchestra/internal/port/execbackend"
)

// dispatch selects an agent for t, routes the request through the Bus
// to the agent's bound backend, and retries on failure with exponential
// backoff capped at cfg.BackoffCap, up to cfg.MaxRetries attempts.
// Exhausting retries fails the task and cascades cancellation to its
// dependents. Each worker in the pool calls dispatch for one task at a
// time, which is what bounds overall concurrency.
func (o *Orchestrator) dispatch(ctx context.Context, ps *planState, t *task.Task) {
	candidates := o.registry.AvailableAgents(t.AgentTypeID)
	a := o.lb.Select(candidates, nil)
	if a == nil {
		// No agent available right now; requeue the attempt shortly
		// rather than failing the task outright. Requeuing from a
		// separate goroutine frees this worker immediately instead of
		// blocking it on the sleep.
		go func() {
			time.Sleep(o.cfg.BackoffBase)
			o.queue.Push(t)
		}()
		return
	}

	o.mu.Lock()
	backend := o.backends[a.ID]
	o.mu.Unlock()
	if backend == nil {
		o.failTask(ctx, ps, t, a, orcherrNoBackend(a.ID))
		return
	}

	wasIdle := a.Status == agent.StatusIdle
	if wasIdle {
		_ = a.TransitionTo(agent.StatusBusy)
	}
	a.Load.ActiveTasks++
	_ = t.TransitionTo(task.StatusRunning)
	t.AssignedTo = a.ID
	o.publish(ctx, event.TypeTaskDispatched, t.ID, ps.plan.ID, map[string]any{"agent_id": a.ID})

	br := o.breakerFor(a.ID)
	if !br.Allow() {
		o.releaseAgentSlot(a)
		o.retryOrFail(ctx, ps, t, a, orcherrBreakerOpen(a.ID))
		return
	}

	taskCtx, cancel := context.WithCancel(ctx)
	key := ps.keyForTask(t)
	ps.mu.Lock()
	ps.cancelFns[key] = cancel
	ps.mu.Unlock()
	defer func() {
		cancel()
		ps.mu.Lock()
		delete(ps.cancelFns, key)
		ps.mu.Unlock()
	}()

	replyTopic := dispatchTopic(a.ID) + ".reply." + uuid.NewString()
	start := time.Now()
	reply, err := o.bus.Request(taskCtx, bus.Message{
		Topic:   dispatchTopic(a.ID),
		Sender:  "orchestrator",
		ReplyTo: replyTopic,
		Payload: execbackend.Request{
			TaskID:      t.ID,
			AgentID:     a.ID,
			Description: t.Description,
		},
	}, o.dispatchTimeout())
	duration := time.Since(start)

	if taskCtx.Err() != nil {
		// CancelPlan already owns this task's terminal state and agent
		// rollback; mark the agent errored since its in-flight work was
		// interrupted mid-execution and its outcome is now unknown.
		o.releaseAgentSlot(a)
		_ = a.TransitionTo(agent.StatusError)
		return
	}

	var resp execbackend.Response
	if err == nil {
		dr, ok := reply.Payload.(dispatchReply)
		if !ok {
			err = orcherrNoBackend(a.ID)
		} else {
			resp, err = dr.Response, dr.Err
		}
	}

	o.releaseAgentSlot(a)

	if err != nil || resp.Err != nil {
		if err == nil {
			err = resp.Err
		}
		br.RecordFailure()
		a.RecordOutcome(false, duration, o.cfg.SuccessWindow)
		o.maybeTripAgent(a)
		o.retryOrFail(ctx, ps, t, a, err)
		return
	}

	br.RecordSuccess()
	a.RecordOutcome(true, duration, o.cfg.SuccessWindow)
	o.completeTask(ctx, ps, t, a, resp)
}

// releaseAgentSlot gives back the dispatch slot a task held on a, only
// dropping the agent back to idle once it has no other active tasks,
// so an agent with spare capacity keeps accepting concurrent dispatch.
func (o *Orchestrator) releaseAgentSlot(a *agent.Agent) {
	if a.Load.ActiveTasks > 0 {
		a.Load.ActiveTasks--
	}
	if a.Load.ActiveTasks == 0 && a.Status == agent.StatusBusy {
		_ = a.TransitionTo(agent.StatusIdle)
	}
}

// maybeTripAgent moves an agent into the error state once its rolling
// failure rate crosses the configured threshold.
func (o *Orchestrator) maybeTripAgent(a *agent.Agent) {
	if 1-a.Load.SuccessRate() >= o.cfg.ErrorThreshold && len(a.Load.SuccessWindow) >= o.cfg.SuccessWindow {
		_ = a.TransitionTo(agent.StatusError)
	}
}

func (o *Orchestrator) completeTask(ctx context.Context, ps *planState, t *task.Task, a *agent.Agent, resp execbackend.Response) {
	ps.mu.Lock()
	_ = t.TransitionTo(task.StatusCompleted)
	t.AssignedTo = a.ID
	t.Result = &task.Result{Output: resp.Output}
	key := ps.keyForTask(t)
	ps.done[key] = true
	ps.mu.Unlock()

	o.publish(ctx, event.TypeTaskCompleted, t.ID, ps.plan.ID, map[string]any{"agent_id": a.ID})
	_ = o.advance(ctx, ps)
}

// retryOrFail retries t after an exponential backoff if attempts remain,
// else fails it permanently.
func (o *Orchestrator) retryOrFail(ctx context.Context, ps *planState, t *task.Task, a *agent.Agent, cause error) {
	ps.mu.Lock()
	t.Attempt++
	attempt := t.Attempt
	ps.mu.Unlock()

	if attempt > o.cfg.MaxRetries {
		o.failTask(ctx, ps, t, a, cause)
		return
	}

	backoff := o.cfg.BackoffBase << uint(attempt-1)
	if backoff > o.cfg.BackoffCap || backoff <= 0 {
		backoff = o.cfg.BackoffCap
	}

	_ = t.TransitionTo(task.StatusWaiting)
	go func() {
		time.Sleep(backoff)
		ps.mu.Lock()
		_ = t.TransitionTo(task.StatusQueued)
		ps.mu.Unlock()
		o.queue.Push(t)
	}()
}

// failTask marks t permanently failed and cascades cancellation, with
// reason "upstream-failed", to every subtask that transitively depends
// on it.
func (o *Orchestrator) failTask(ctx context.Context, ps *planState, t *task.Task, a *agent.Agent, cause error) {
	ps.mu.Lock()
	_ = t.TransitionTo(task.StatusFailed)
	t.Result = &task.Result{Error: cause.Error(), FailedAt: time.Now(), Retries: t.Attempt}
	key := ps.keyForTask(t)
	ps.done[key] = true

	agentID := ""
	if a != nil {
		agentID = a.ID
	}

	cascaded := ps.plan.TransitiveDependents(key)
	for _, depKey := range cascaded {
		dep := ps.tasks[depKey]
		if dep == nil || dep.Status.IsTerminal() {
			continue
		}
		_ = dep.TransitionTo(task.StatusCancelled)
		dep.Result = &task.Result{Error: "upstream-failed"}
		ps.done[depKey] = true
	}
	ps.mu.Unlock()

	o.publish(ctx, event.TypeTaskFailed, t.ID, ps.plan.ID, map[string]any{"agent_id": agentID, "error": cause.Error()})
	_ = o.advance(ctx, ps)
}

func (ps *planState) keyForTask(t *task.Task) string {
	for key, candidate := range ps.tasks {
		if candidate == t {
			return key
		}
	}
	return ""
}
