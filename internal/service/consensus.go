package service

import (
	"sort"

	"github.com/kestrel-run/orchestra/internal/domain/orcherr"
	"github.com/kestrel-run/orchestra/internal/domain/session"
)

// VotingStrategy names a consensus algorithm.
type VotingStrategy string

const (
	VotingMajority  VotingStrategy = "majority"
	VotingWeighted  VotingStrategy = "weighted"
	VotingUnanimous VotingStrategy = "unanimous"
	VotingThreshold VotingStrategy = "threshold"
)

// ConsensusResult is the outcome of resolving a set of opinions.
type ConsensusResult struct {
	Decision   session.Decision
	Confidence float64
	Strategy   VotingStrategy
	VoteCounts map[string]int
}

// Consensus resolves a slice of opinions into a single decision per one
// of four strategies. Ties fall back to majority rule, then to the
// lexicographically-lowest decision key, so resolution is always
// deterministic.
type Consensus struct{}

func NewConsensus() *Consensus { return &Consensus{} }

// Resolve dispatches to the strategy-specific resolver. threshold is
// only consulted by VotingThreshold, as the required proportion in
// (0,1].
func (c *Consensus) Resolve(strategy VotingStrategy, opinions []session.Opinion, threshold float64) (ConsensusResult, error) {
	if len(opinions) == 0 {
		return ConsensusResult{}, orcherr.New(orcherr.KindValidation, "no opinions to resolve")
	}

	switch strategy {
	case VotingWeighted:
		return c.weighted(opinions)
	case VotingUnanimous:
		return c.unanimous(opinions)
	case VotingThreshold:
		return c.threshold(opinions, threshold)
	default:
		return c.majority(opinions)
	}
}

func voteCounts(opinions []session.Opinion) map[string]int {
	counts := make(map[string]int)
	for _, o := range opinions {
		counts[o.Decision.Key]++
	}
	return counts
}

// winningKey applies majority rule with a deterministic tie-break:
// highest count wins; ties are broken by lexicographically-lowest key.
func winningKey(counts map[string]int) string {
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
	return best
}

func decisionForKey(opinions []session.Opinion, key string) session.Decision {
	for _, o := range opinions {
		if o.Decision.Key == key {
			return o.Decision
		}
	}
	return session.Decision{}
}

func (c *Consensus) majority(opinions []session.Opinion) (ConsensusResult, error) {
	counts := voteCounts(opinions)
	key := winningKey(counts)
	return ConsensusResult{
		Decision:   decisionForKey(opinions, key),
		Confidence: float64(counts[key]) / float64(len(opinions)),
		Strategy:   VotingMajority,
		VoteCounts: counts,
	}, nil
}

// weighted sums each opinion's agent_weight * confidence per decision
// key rather than counting votes 1-for-1, so a more confident or more
// heavily weighted minority can outweigh a less confident majority. An
// opinion with AgentWeight left at its zero value contributes as
// weight 1.0, so callers that don't care about differential weighting
// can omit it entirely.
func (c *Consensus) weighted(opinions []session.Opinion) (ConsensusResult, error) {
	sums := make(map[string]float64)
	counts := voteCounts(opinions)
	for _, o := range opinions {
		weight := o.AgentWeight
		if weight == 0 {
			weight = 1.0
		}
		sums[o.Decision.Key] += weight * o.Confidence
	}

	keys := make([]string, 0, len(sums))
	for k := range sums {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	best := keys[0]
	for _, k := range keys[1:] {
		switch {
		case sums[k] > sums[best]:
			best = k
		case sums[k] == sums[best] && counts[k] > counts[best]:
			best = k
		}
	}

	total := 0.0
	for _, v := range sums {
		total += v
	}
	confidence := 0.0
	if total > 0 {
		confidence = sums[best] / total
	}

	return ConsensusResult{
		Decision:   decisionForKey(opinions, best),
		Confidence: confidence,
		Strategy:   VotingWeighted,
		VoteCounts: counts,
	}, nil
}

// unanimous requires every opinion to agree. Any disagreement is
// reported as orcherr.ErrNoConsensus rather than silently degrading to
// the majority's or most-confident opinion's choice.
func (c *Consensus) unanimous(opinions []session.Opinion) (ConsensusResult, error) {
	counts := voteCounts(opinions)
	if len(counts) != 1 {
		return ConsensusResult{}, orcherr.New(orcherr.KindNoConsensus, "agents did not reach unanimous agreement")
	}
	return ConsensusResult{
		Decision:   opinions[0].Decision,
		Confidence: 1.0,
		Strategy:   VotingUnanimous,
		VoteCounts: counts,
	}, nil
}

// threshold succeeds when some decision's share of opinions reaches
// proportion p; otherwise it reports orcherr.ErrNoConsensus.
func (c *Consensus) threshold(opinions []session.Opinion, p float64) (ConsensusResult, error) {
	counts := voteCounts(opinions)
	key := winningKey(counts)
	share := float64(counts[key]) / float64(len(opinions))
	if share < p {
		return ConsensusResult{}, orcherr.New(orcherr.KindNoConsensus, "no decision reached the required threshold")
	}
	return ConsensusResult{
		Decision:   decisionForKey(opinions, key),
		Confidence: share,
		Strategy:   VotingThreshold,
		VoteCounts: counts,
	}, nil
}
