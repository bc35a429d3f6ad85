package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kestrel-run/orchestra/internal/domain/bus"
	"github.com/kestrel-run/orchestra/internal/domain/orcherr"
	"github.com/kestrel-run/orchestra/internal/domain/plan"
	"github.com/kestrel-run/orchestra/internal/domain/task"
	"github.com/kestrel-run/orchestra/internal/port/execbackend"
)

// CoordinationMode names how swarm participants share progress:
// blackboard publishes run-level status to a shared topic any
// participant can read; direct keeps it internal to the orchestrator.
type CoordinationMode string

const (
	CoordinationBlackboard CoordinationMode = "blackboard"
	CoordinationDirect     CoordinationMode = "direct"
)

// defaultSwarmSubtaskCap bounds how many subtasks a single swarm run may
// spawn when SwarmConfig.ConvergenceThreshold doesn't name an explicit
// cap, so a pattern match gone wrong can't spawn an unbounded DAG.
const defaultSwarmSubtaskCap = 25

// SwarmConfig configures a swarm run. ConvergenceThreshold, when >= 1,
// caps the total number of subtasks the decomposed plan may contain;
// a decomposition producing more is truncated to the cap. Values below
// 1 (including the zero value) fall back to defaultSwarmSubtaskCap.
// AggregatorID names the agent that receives every subtask's output and
// produces the swarm's single final result; left empty, a placeholder
// summary stands in for a real dispatch.
type SwarmConfig struct {
	Coordination         CoordinationMode
	ConvergenceThreshold float64
	AggregatorID         string
}

// SwarmSubtaskResult is one subtask's outcome within a swarm run.
type SwarmSubtaskResult struct {
	Key       string
	ClaimedBy string
	Output    map[string]any
	Failed    bool
}

// SwarmOutcome is the aggregated result of a swarm run.
type SwarmOutcome struct {
	Results     []SwarmSubtaskResult
	Completed   int
	Total       int
	Converged   bool
	Capped      bool
	FinalOutput map[string]any
}

// RunSwarm decomposes taskDesc, submits the resulting subtask DAG to
// orch so dependency ordering, retries, and load balancing are the
// orchestrator's, waits for the plan to reach a terminal state, and
// dispatches the collected subtask outputs to a nominated aggregator.
// participants names the swarm's nominal roster for coordination and
// auditing; actual subtask-to-agent assignment is the orchestrator's
// registry and load balancer, the same as any other plan it runs.
func RunSwarm(ctx context.Context, orch *Orchestrator, decomposer *Decomposer, backends map[string]execbackend.Backend, participants []string, taskDesc string, cfg SwarmConfig) (SwarmOutcome, error) {
	if len(participants) == 0 {
		return SwarmOutcome{}, orcherr.New(orcherr.KindValidation, "swarm requires at least 1 participant")
	}

	decomposed, err := decomposer.Decompose(ctx, taskDesc)
	if err != nil {
		return SwarmOutcome{}, err
	}

	capLimit := swarmSubtaskCap(cfg.ConvergenceThreshold)
	capped := false
	if len(decomposed.SubTasks) > capLimit {
		decomposed.SubTasks = capSwarmSubtasks(decomposed.SubTasks, capLimit)
		capped = true
	}

	runID := uuid.NewString()
	if cfg.Coordination == CoordinationBlackboard {
		orch.publishSwarmStatus(ctx, runID, "started", map[string]any{"subtasks": len(decomposed.SubTasks), "capped": capped})
	}

	if err := orch.StartPlan(ctx, decomposed); err != nil {
		return SwarmOutcome{}, err
	}

	if err := awaitPlanTerminal(ctx, orch, decomposed.ID); err != nil {
		return SwarmOutcome{}, err
	}

	tasks, err := orch.GetPlanTasks(decomposed.ID)
	if err != nil {
		return SwarmOutcome{}, err
	}

	results := make([]SwarmSubtaskResult, 0, len(decomposed.SubTasks))
	completed := 0
	for _, spec := range decomposed.SubTasks {
		t := tasks[spec.Key]
		failed := t.Status != task.StatusCompleted
		var output map[string]any
		if t.Result != nil {
			if out, ok := t.Result.Output.(map[string]any); ok {
				output = out
			}
		}
		if !failed {
			completed++
		}
		results = append(results, SwarmSubtaskResult{Key: spec.Key, ClaimedBy: t.AssignedTo, Output: output, Failed: failed})
	}

	final, err := aggregateSwarmResults(ctx, backends[cfg.AggregatorID], cfg.AggregatorID, results)
	if err != nil {
		return SwarmOutcome{}, err
	}

	if cfg.Coordination == CoordinationBlackboard {
		orch.publishSwarmStatus(ctx, runID, "completed", map[string]any{"completed": completed, "total": len(results)})
	}

	return SwarmOutcome{
		Results:     results,
		Completed:   completed,
		Total:       len(results),
		Converged:   !capped && completed == len(results),
		Capped:      capped,
		FinalOutput: final,
	}, nil
}

// swarmSubtaskCap resolves ConvergenceThreshold to a subtask-count cap:
// a configured value of 1 or more is taken literally, anything lower
// (including unset) falls back to defaultSwarmSubtaskCap.
func swarmSubtaskCap(threshold float64) int {
	if threshold >= 1 {
		return int(threshold)
	}
	return defaultSwarmSubtaskCap
}

// capSwarmSubtasks truncates specs to the first cap entries in
// declaration order and drops any DependsOn reference that now points
// outside the kept set, so the truncated plan still validates as a DAG.
func capSwarmSubtasks(specs []plan.SubTaskSpec, limit int) []plan.SubTaskSpec {
	kept := append([]plan.SubTaskSpec(nil), specs[:limit]...)
	keptKeys := make(map[string]bool, len(kept))
	for _, s := range kept {
		keptKeys[s.Key] = true
	}
	for i, s := range kept {
		var deps []string
		for _, d := range s.DependsOn {
			if keptKeys[d] {
				deps = append(deps, d)
			}
		}
		kept[i].DependsOn = deps
	}
	return kept
}

// awaitPlanTerminal polls the orchestrator until planID reaches a
// terminal status or ctx is cancelled.
func awaitPlanTerminal(ctx context.Context, orch *Orchestrator, planID string) error {
	for {
		status, err := orch.GetPlanStatus(planID)
		if err != nil {
			return err
		}
		if status.IsTerminal() {
			return nil
		}
		select {
		case <-ctx.Done():
			return orcherr.Wrap(orcherr.KindTimeout, "swarm run cancelled waiting for plan completion", ctx.Err())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

// aggregateSwarmResults dispatches every subtask's output to the
// nominated aggregator agent, producing the swarm's single final
// result. Without a bound backend it falls back to a synthesized
// placeholder summary, the convention this file uses elsewhere when no
// backend is available.
func aggregateSwarmResults(ctx context.Context, backend execbackend.Backend, aggregatorID string, results []SwarmSubtaskResult) (map[string]any, error) {
	if backend == nil {
		return map[string]any{"text": fmt.Sprintf("aggregated %d subtask outputs (aggregator %s not bound)", len(results), aggregatorID)}, nil
	}

	resp, err := backend.Execute(ctx, execbackend.Request{
		AgentID:     aggregatorID,
		Description: "aggregate swarm subtask outputs into a single final result",
		Input:       map[string]any{"results": results},
	})
	if err != nil {
		return nil, orcherr.Wrap(orcherr.KindAgent, "swarm aggregation execution failed", err)
	}
	return resp.Output, nil
}

// publishSwarmStatus emits a run-level blackboard message any
// participant subscribed to "swarm.<runID>.#" can observe.
func (o *Orchestrator) publishSwarmStatus(ctx context.Context, runID, status string, payload map[string]any) {
	if o.bus == nil {
		return
	}
	payload["status"] = status
	_ = o.bus.Publish(ctx, bus.Message{
		Topic:   fmt.Sprintf("swarm.%s.status", runID),
		Sender:  "orchestrator",
		Payload: payload,
	})
}
