package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/kestrel-run/orchestra/internal/domain/orcherr"
	"github.com/kestrel-run/orchestra/internal/port/execbackend"
	"golang.org/x/sync/errgroup"
)

// MergeStrategy names how ensemble outputs are combined into one
// result.
type MergeStrategy string

const (
	MergeVote      MergeStrategy = "vote"
	MergeAverage   MergeStrategy = "average"
	MergeSynthesis MergeStrategy = "synthesis"
)

// EnsembleConfig configures a parallel ensemble run. SynthesizerID names
// the agent nominated to receive every member's output and produce a
// single merged result when Merge is MergeSynthesis; it is ignored by
// the other strategies.
type EnsembleConfig struct {
	Parallel      bool
	Merge         MergeStrategy
	SynthesizerID string
}

// Vote is one agent's contribution to an ensemble run.
type Vote struct {
	AgentID    string
	Output     any
	Confidence float64
}

// EnsembleOutcome carries the merged result and the agreement score
// among the individual votes.
type EnsembleOutcome struct {
	MergedOutput any
	Agreement    float64
	Votes        []Vote
}

// RunEnsemble executes taskDesc on every participant (concurrently when
// cfg.Parallel, one errgroup goroutine per participant) and merges their outputs per
// cfg.Merge.
func RunEnsemble(ctx context.Context, backends map[string]execbackend.Backend, participants []string, taskDesc string, cfg EnsembleConfig) (EnsembleOutcome, error) {
	if len(participants) < 2 {
		return EnsembleOutcome{}, orcherr.New(orcherr.KindValidation, "ensemble requires at least 2 participants")
	}

	votes := make([]Vote, len(participants))

	if cfg.Parallel {
		g, gctx := errgroup.WithContext(ctx)
		for i, agentID := range participants {
			i, agentID := i, agentID
			g.Go(func() error {
				v, err := executeEnsembleMember(gctx, backends[agentID], agentID, taskDesc)
				if err != nil {
					return err
				}
				votes[i] = v
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return EnsembleOutcome{}, err
		}
	} else {
		for i, agentID := range participants {
			v, err := executeEnsembleMember(ctx, backends[agentID], agentID, taskDesc)
			if err != nil {
				return EnsembleOutcome{}, err
			}
			votes[i] = v
		}
	}

	merged, err := mergeVotes(ctx, backends, votes, cfg)
	if err != nil {
		return EnsembleOutcome{}, err
	}

	return EnsembleOutcome{
		MergedOutput: merged,
		Agreement:    agreementScore(votes),
		Votes:        votes,
	}, nil
}

func executeEnsembleMember(ctx context.Context, backend execbackend.Backend, agentID, taskDesc string) (Vote, error) {
	if backend == nil {
		return Vote{AgentID: agentID, Output: fmt.Sprintf("output from %s for %s", agentID, taskDesc), Confidence: 0.8}, nil
	}
	resp, err := backend.Execute(ctx, execbackend.Request{AgentID: agentID, Description: taskDesc})
	if err != nil {
		return Vote{}, orcherr.Wrap(orcherr.KindAgent, "ensemble member execution failed", err)
	}
	return Vote{AgentID: agentID, Output: resp.Output["text"], Confidence: 0.8}, nil
}

func mergeVotes(ctx context.Context, backends map[string]execbackend.Backend, votes []Vote, cfg EnsembleConfig) (any, error) {
	switch cfg.Merge {
	case MergeAverage:
		return mergeByAverage(votes), nil
	case MergeSynthesis:
		return mergeBySynthesis(ctx, backends[cfg.SynthesizerID], cfg.SynthesizerID, votes)
	default:
		return mergeByVote(votes), nil
	}
}

func mergeByVote(votes []Vote) any {
	counts := make(map[string]int)
	for _, v := range votes {
		counts[fmt.Sprint(v.Output)]++
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	best := keys[0]
	for _, k := range keys[1:] {
		if counts[k] > counts[best] {
			best = k
		}
	}
	for _, v := range votes {
		if fmt.Sprint(v.Output) == best {
			return v.Output
		}
	}
	return votes[0].Output
}

func mergeByAverage(votes []Vote) any {
	var sum float64
	var n int
	for _, v := range votes {
		switch out := v.Output.(type) {
		case float64:
			sum += out
			n++
		case int:
			sum += float64(out)
			n++
		case string:
			if f, err := strconv.ParseFloat(out, 64); err == nil {
				sum += f
				n++
			}
		}
	}
	if n == 0 {
		return mergeByVote(votes)
	}
	return sum / float64(n)
}

// mergeBySynthesis dispatches every member's output to the nominated
// synthesizer agent, which produces the single merged result. Without a
// backend bound for synthesizerID it falls back to a synthesized
// placeholder built from the highest-confidence vote, the same
// no-backend convention executeEnsembleMember uses.
func mergeBySynthesis(ctx context.Context, backend execbackend.Backend, synthesizerID string, votes []Vote) (any, error) {
	if backend == nil {
		best := votes[0]
		for _, v := range votes[1:] {
			if v.Confidence > best.Confidence {
				best = v
			}
		}
		return fmt.Sprintf("synthesis by %s over %d outputs, leading candidate: %v", synthesizerID, len(votes), best.Output), nil
	}

	resp, err := backend.Execute(ctx, execbackend.Request{
		AgentID:     synthesizerID,
		Description: "synthesize a single output from the ensemble's member outputs",
		Input:       map[string]any{"votes": synthesisInput(votes)},
	})
	if err != nil {
		return nil, orcherr.Wrap(orcherr.KindAgent, "ensemble synthesis execution failed", err)
	}
	return resp.Output["text"], nil
}

func synthesisInput(votes []Vote) []map[string]any {
	out := make([]map[string]any, len(votes))
	for i, v := range votes {
		out[i] = map[string]any{"agent_id": v.AgentID, "output": v.Output, "confidence": v.Confidence}
	}
	return out
}

func agreementScore(votes []Vote) float64 {
	if len(votes) < 2 {
		return 1.0
	}
	counts := make(map[string]int)
	for _, v := range votes {
		counts[fmt.Sprint(v.Output)]++
	}
	max := 0
	for _, c := range counts {
		if c > max {
			max = c
		}
	}
	return float64(max) / float64(len(votes))
}
