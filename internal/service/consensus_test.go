package service_test

import (
	"errors"
	"testing"

	"github.com/kestrel-run/orchestra/internal/domain/orcherr"
	"github.com/kestrel-run/orchestra/internal/domain/session"
	"github.com/kestrel-run/orchestra/internal/service"
)

func scalarOpinion(agentID, key string, confidence float64) session.Opinion {
	return session.Opinion{
		AgentID:    agentID,
		Decision:   session.Decision{Kind: session.DecisionScalar, Key: key, Value: key},
		Confidence: confidence,
	}
}

func TestResolveRejectsEmptyOpinions(t *testing.T) {
	c := service.NewConsensus()
	if _, err := c.Resolve(service.VotingMajority, nil, 0); err == nil {
		t.Fatal("expected error resolving with no opinions")
	}
}

func TestMajorityPicksMostVotedOption(t *testing.T) {
	c := service.NewConsensus()
	opinions := []session.Opinion{
		scalarOpinion("a1", "yes", 0.9),
		scalarOpinion("a2", "yes", 0.8),
		scalarOpinion("a3", "no", 0.7),
	}
	result, err := c.Resolve(service.VotingMajority, opinions, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Decision.Key != "yes" {
		t.Fatalf("decision = %s, want yes", result.Decision.Key)
	}
}

func TestMajorityTieBreaksByLowestKey(t *testing.T) {
	c := service.NewConsensus()
	opinions := []session.Opinion{
		scalarOpinion("a1", "zeta", 0.5),
		scalarOpinion("a2", "alpha", 0.5),
	}
	result, err := c.Resolve(service.VotingMajority, opinions, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Decision.Key != "alpha" {
		t.Fatalf("tied decision = %s, want alpha (lexicographically lowest)", result.Decision.Key)
	}
}

func TestWeightedFavorsHigherConfidenceSum(t *testing.T) {
	c := service.NewConsensus()
	opinions := []session.Opinion{
		scalarOpinion("a1", "minority", 0.95),
		scalarOpinion("a2", "majority", 0.3),
		scalarOpinion("a3", "majority", 0.3),
	}
	result, err := c.Resolve(service.VotingWeighted, opinions, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Decision.Key != "minority" {
		t.Fatalf("decision = %s, want minority (higher confidence sum)", result.Decision.Key)
	}
}

func TestWeightedScalesConfidenceByAgentWeight(t *testing.T) {
	c := service.NewConsensus()
	opinions := []session.Opinion{
		// X = 1.0*0.9 + 0.2*0.3 = 0.96 weighted mass behind "yes".
		{AgentID: "a1", Decision: session.Decision{Kind: session.DecisionScalar, Key: "yes", Value: "yes"}, Confidence: 0.9, AgentWeight: 1.0},
		{AgentID: "a2", Decision: session.Decision{Kind: session.DecisionScalar, Key: "yes", Value: "yes"}, Confidence: 0.3, AgentWeight: 0.2},
		{AgentID: "a3", Decision: session.Decision{Kind: session.DecisionScalar, Key: "no", Value: "no"}, Confidence: 0.5, AgentWeight: 1.0},
	}
	result, err := c.Resolve(service.VotingWeighted, opinions, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Decision.Key != "yes" {
		t.Fatalf("decision = %s, want yes", result.Decision.Key)
	}

	// 0.96 / (0.96 + 0.5) ~= 0.6575; the unweighted confidence-sum bug
	// this guards against would instead sum raw confidence (0.9+0.3=1.2
	// vs 0.5) and land on a different share.
	want := 0.96 / 1.46
	if diff := result.Confidence - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("confidence = %v, want %v", result.Confidence, want)
	}
}

func TestWeightedTieBreaksByMajorityVoteCountBeforeKey(t *testing.T) {
	c := service.NewConsensus()
	opinions := []session.Opinion{
		// "aaa" sorts first lexicographically but is a single vote.
		scalarOpinion("a1", "aaa", 0.8),
		// "zzz" sums to the same weighted mass across two votes, so it
		// should win on majority vote count rather than falling through
		// to the lexicographically-lower key.
		scalarOpinion("a2", "zzz", 0.4),
		scalarOpinion("a3", "zzz", 0.4),
	}
	result, err := c.Resolve(service.VotingWeighted, opinions, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Decision.Key != "zzz" {
		t.Fatalf("tied weighted sum = %s, want zzz (more votes beats lexicographic order)", result.Decision.Key)
	}
}

func TestUnanimousRequiresFullAgreement(t *testing.T) {
	c := service.NewConsensus()

	agree := []session.Opinion{scalarOpinion("a1", "yes", 1), scalarOpinion("a2", "yes", 1)}
	result, err := c.Resolve(service.VotingUnanimous, agree, 0)
	if err != nil {
		t.Fatalf("unexpected error on unanimous agreement: %v", err)
	}
	if result.Decision.Key != "yes" {
		t.Fatalf("decision = %s, want yes", result.Decision.Key)
	}

	disagree := []session.Opinion{scalarOpinion("a1", "yes", 1), scalarOpinion("a2", "no", 1)}
	_, err = c.Resolve(service.VotingUnanimous, disagree, 0)
	if !errors.Is(err, orcherr.ErrNoConsensus) {
		t.Fatalf("expected ErrNoConsensus on disagreement, got %v", err)
	}
}

func TestThresholdSucceedsAboveShare(t *testing.T) {
	c := service.NewConsensus()
	opinions := []session.Opinion{
		scalarOpinion("a1", "yes", 1),
		scalarOpinion("a2", "yes", 1),
		scalarOpinion("a3", "yes", 1),
		scalarOpinion("a4", "no", 1),
	}
	result, err := c.Resolve(service.VotingThreshold, opinions, 0.7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Decision.Key != "yes" {
		t.Fatalf("decision = %s, want yes", result.Decision.Key)
	}
}

func TestThresholdFailsBelowShare(t *testing.T) {
	c := service.NewConsensus()
	opinions := []session.Opinion{
		scalarOpinion("a1", "yes", 1),
		scalarOpinion("a2", "no", 1),
	}
	_, err := c.Resolve(service.VotingThreshold, opinions, 0.9)
	if !errors.Is(err, orcherr.ErrNoConsensus) {
		t.Fatalf("expected ErrNoConsensus below the required threshold, got %v", err)
	}
}
