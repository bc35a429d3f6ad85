package service

import (
	"context"
	"fmt"

	"github.com/kestrel-run/orchestra/internal/domain/orcherr"
	"github.com/kestrel-run/orchestra/internal/port/execbackend"
)

// HandoffFormat names how one pipeline stage's output is framed for the
// next stage's input.
type HandoffFormat string

const (
	HandoffStructured HandoffFormat = "structured"
	HandoffNatural    HandoffFormat = "natural"
)

// PipelineConfig configures a sequential pipeline run.
type PipelineConfig struct {
	HandoffFormat  HandoffFormat
	AllowBacktrack bool
}

// Stage is one executed step of a pipeline run.
type Stage struct {
	Number  int
	AgentID string
	Input   map[string]any
	Output  map[string]any
	Failed  bool
}

// PipelineOutcome carries the final stage output and the full stage
// history.
type PipelineOutcome struct {
	FinalOutput map[string]any
	Stages      []Stage
}

// RunPipeline hands taskDesc through participants in order, feeding each
// stage's output as the next stage's input. A failing stage aborts the
// pipeline unless cfg.AllowBacktrack is set, in which case the pipeline
// retries the current stage once more using the previous stage's output
// before giving up.
func RunPipeline(ctx context.Context, backends map[string]execbackend.Backend, participants []string, taskDesc string, cfg PipelineConfig) (PipelineOutcome, error) {
	if len(participants) < 2 {
		return PipelineOutcome{}, orcherr.New(orcherr.KindValidation, "pipeline requires at least 2 participants")
	}

	stages := make([]Stage, 0, len(participants))
	current := map[string]any{"task_description": taskDesc}

	for i, agentID := range participants {
		stage, err := executeStage(ctx, backends[agentID], agentID, i+1, current, cfg)
		if err != nil && !cfg.AllowBacktrack {
			return PipelineOutcome{}, err
		}
		if stage.Failed && cfg.AllowBacktrack && len(stages) > 0 {
			stage, err = executeStage(ctx, backends[agentID], agentID, i+1, stages[len(stages)-1].Output, cfg)
			if err != nil {
				return PipelineOutcome{}, err
			}
		}
		stages = append(stages, stage)
		if !stage.Failed {
			current = stage.Output
		}
	}

	var final map[string]any
	if len(stages) > 0 {
		final = stages[len(stages)-1].Output
	}
	return PipelineOutcome{FinalOutput: final, Stages: stages}, nil
}

func executeStage(ctx context.Context, backend execbackend.Backend, agentID string, number int, input map[string]any, cfg PipelineConfig) (Stage, error) {
	stage := Stage{Number: number, AgentID: agentID, Input: input}

	if backend == nil {
		stage.Output = placeholderHandoff(agentID, input, cfg.HandoffFormat)
		return stage, nil
	}

	resp, err := backend.Execute(ctx, execbackend.Request{AgentID: agentID, Description: fmt.Sprint(input["task_description"]), Input: input})
	if err != nil || resp.Err != nil {
		stage.Failed = true
		return stage, orcherr.Wrap(orcherr.KindAgent, "pipeline stage execution failed", err)
	}
	stage.Output = resp.Output
	return stage, nil
}

func placeholderHandoff(agentID string, input map[string]any, format HandoffFormat) map[string]any {
	if format == HandoffNatural {
		return map[string]any{
			"processed_by": agentID,
			"narrative":    fmt.Sprintf("%s processed the handed-off input", agentID),
		}
	}
	return map[string]any{
		"processed_by": agentID,
		"result":       fmt.Sprintf("processed by %s", agentID),
	}
}
