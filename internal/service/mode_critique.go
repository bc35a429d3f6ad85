package service

import (
	"context"
	"fmt"

	"github.com/kestrel-run/orchestra/internal/domain/orcherr"
	"github.com/kestrel-run/orchestra/internal/port/execbackend"
	"golang.org/x/sync/errgroup"
)

// CritiqueConfig configures a producer/critics improvement loop: up to
// MaxIterations rounds, reviewed in parallel when Parallel is set, until
// every critic's score (the lowest one decides) clears ApprovalThreshold.
type CritiqueConfig struct {
	MaxIterations     int
	ApprovalThreshold float64
	Parallel          bool
}

// Review is one critic's assessment of a single iteration's output.
type Review struct {
	CriticID string
	Score    float64
	Feedback string
}

// Iteration is one producer/critique round.
type Iteration struct {
	Number      int
	Output      map[string]any
	Reviews     []Review
	AverageScore float64
	Approved    bool
}

// CritiqueOutcome is the final state of the improvement loop.
type CritiqueOutcome struct {
	FinalOutput map[string]any
	Approved    bool
	Iterations  []Iteration
}

// RunCritique has producerID repeatedly improve an output under
// feedback from criticIDs until critique consensus clears
// cfg.ApprovalThreshold or cfg.MaxIterations is exhausted.
func RunCritique(ctx context.Context, backends map[string]execbackend.Backend, producerID string, criticIDs []string, taskDesc string, cfg CritiqueConfig) (CritiqueOutcome, error) {
	if len(criticIDs) == 0 {
		return CritiqueOutcome{}, orcherr.New(orcherr.KindValidation, "critique requires at least 1 critic")
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 1
	}

	var iterations []Iteration
	var current map[string]any
	approved := false

	for n := 1; n <= cfg.MaxIterations; n++ {
		output, err := produce(ctx, backends[producerID], producerID, taskDesc, current, iterations)
		if err != nil {
			return CritiqueOutcome{}, err
		}
		current = output

		reviews, err := gatherReviews(ctx, backends, criticIDs, output, n, cfg.Parallel)
		if err != nil {
			return CritiqueOutcome{}, err
		}

		avg := averageScore(reviews)
		approved = minScore(reviews) >= cfg.ApprovalThreshold
		iterations = append(iterations, Iteration{Number: n, Output: output, Reviews: reviews, AverageScore: avg, Approved: approved})

		if approved {
			break
		}
	}

	return CritiqueOutcome{FinalOutput: current, Approved: approved, Iterations: iterations}, nil
}

func produce(ctx context.Context, backend execbackend.Backend, producerID, taskDesc string, previous map[string]any, iterations []Iteration) (map[string]any, error) {
	if backend == nil {
		if previous == nil {
			return map[string]any{"text": fmt.Sprintf("initial output from %s for %s", producerID, taskDesc)}, nil
		}
		var feedback string
		if len(iterations) > 0 {
			last := iterations[len(iterations)-1]
			for _, r := range last.Reviews {
				feedback += r.Feedback + "; "
			}
		}
		return map[string]any{"text": fmt.Sprintf("improved output from %s addressing: %s", producerID, feedback)}, nil
	}

	resp, err := backend.Execute(ctx, execbackend.Request{AgentID: producerID, Description: taskDesc, Input: previous})
	if err != nil {
		return nil, orcherr.Wrap(orcherr.KindAgent, "critique producer execution failed", err)
	}
	return resp.Output, nil
}

func gatherReviews(ctx context.Context, backends map[string]execbackend.Backend, criticIDs []string, output map[string]any, iteration int, parallel bool) ([]Review, error) {
	reviews := make([]Review, len(criticIDs))

	review := func(i int, criticID string) error {
		r, err := reviewOutput(ctx, backends[criticID], criticID, output, iteration)
		if err != nil {
			return err
		}
		reviews[i] = r
		return nil
	}

	if parallel {
		g, _ := errgroup.WithContext(ctx)
		for i, criticID := range criticIDs {
			i, criticID := i, criticID
			g.Go(func() error { return review(i, criticID) })
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return reviews, nil
	}

	for i, criticID := range criticIDs {
		if err := review(i, criticID); err != nil {
			return nil, err
		}
	}
	return reviews, nil
}

func reviewOutput(ctx context.Context, backend execbackend.Backend, criticID string, output map[string]any, iteration int) (Review, error) {
	if backend == nil {
		score := 0.5 + float64(iteration)*0.15
		if score > 1.0 {
			score = 1.0
		}
		feedback := "needs improvement"
		if score >= 0.8 {
			feedback = "looks good"
		}
		return Review{CriticID: criticID, Score: score, Feedback: feedback}, nil
	}

	resp, err := backend.Execute(ctx, execbackend.Request{AgentID: criticID, Input: output})
	if err != nil {
		return Review{}, orcherr.Wrap(orcherr.KindAgent, "critique review execution failed", err)
	}
	score, _ := resp.Output["score"].(float64)
	feedback, _ := resp.Output["feedback"].(string)
	return Review{CriticID: criticID, Score: score, Feedback: feedback}, nil
}

func averageScore(reviews []Review) float64 {
	if len(reviews) == 0 {
		return 0
	}
	var sum float64
	for _, r := range reviews {
		sum += r.Score
	}
	return sum / float64(len(reviews))
}

// minScore returns the lowest score among reviews, so approval requires
// every critic to clear the threshold rather than letting one low score
// be averaged away by the rest.
func minScore(reviews []Review) float64 {
	if len(reviews) == 0 {
		return 0
	}
	min := reviews[0].Score
	for _, r := range reviews[1:] {
		if r.Score < min {
			min = r.Score
		}
	}
	return min
}
