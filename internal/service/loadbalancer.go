package service

import (
	"math/rand"
	"sort"
	"sync"

	"github.com/kestrel-run/orchestra/internal/domain/agent"
)

// Strategy names a load balancing algorithm.
type Strategy string

const (
	StrategyRoundRobin          Strategy = "round_robin"
	StrategyLeastLoaded         Strategy = "least_loaded"
	StrategyWeightedPerformance Strategy = "weighted_performance"
	StrategyCapabilityScore     Strategy = "capability_score"
)

// LoadBalancer selects which agent should receive the next dispatched
// task among a candidate set, using one of four strategies. Unlike a
// linear weighted-score minimization, the weighted-performance strategy
// here is probabilistic: each candidate's chance of selection is
// proportional to success_rate * (1 - utilization), so a consistently
// strong agent is favored without starving its peers entirely.
type LoadBalancer struct {
	mu             sync.Mutex
	strategy       Strategy
	roundRobinNext int
	rng            *rand.Rand
}

func NewLoadBalancer(strategy Strategy) *LoadBalancer {
	return &LoadBalancer{
		strategy: strategy,
		rng:      rand.New(rand.NewSource(1)),
	}
}

// Select picks one agent from candidates, or nil if none has capacity
// headroom right now. capabilityScores, used only by
// StrategyCapabilityScore, maps agent ID to a task-fit score in [0,1]; a
// missing entry scores 0.
func (lb *LoadBalancer) Select(candidates []*agent.Agent, capabilityScores map[string]float64) *agent.Agent {
	candidates = withHeadroom(candidates)
	if len(candidates) == 0 {
		return nil
	}
	if len(candidates) == 1 {
		return candidates[0]
	}

	switch lb.strategy {
	case StrategyRoundRobin:
		return lb.roundRobin(candidates)
	case StrategyWeightedPerformance:
		return lb.weightedPerformance(candidates)
	case StrategyCapabilityScore:
		return lb.capabilityScore(candidates, capabilityScores)
	default:
		return lb.leastLoaded(candidates)
	}
}

func (lb *LoadBalancer) roundRobin(candidates []*agent.Agent) *agent.Agent {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	sorted := sortedByID(candidates)
	a := sorted[lb.roundRobinNext%len(sorted)]
	lb.roundRobinNext++
	return a
}

// leastLoaded picks the lowest active/capacity utilization, breaking a
// tie first by lower active task count, then by higher success rate,
// and finally by lexicographically-lowest agent ID.
func (lb *LoadBalancer) leastLoaded(candidates []*agent.Agent) *agent.Agent {
	sorted := sortedByID(candidates)
	best := sorted[0]
	for _, a := range sorted[1:] {
		if lessLoaded(a, best) {
			best = a
		}
	}
	return best
}

// lessLoaded reports whether a should be preferred over b under
// least-loaded selection: lower utilization wins; ties break by lower
// active task count, then by higher success rate, then (implicitly,
// since candidates are walked in ID order) by lexicographically-lowest
// ID.
func lessLoaded(a, b *agent.Agent) bool {
	au, bu := a.Load.Utilization(), b.Load.Utilization()
	if au != bu {
		return au < bu
	}
	if a.Load.ActiveTasks != b.Load.ActiveTasks {
		return a.Load.ActiveTasks < b.Load.ActiveTasks
	}
	return a.Load.SuccessRate() > b.Load.SuccessRate()
}

// weightedPerformance draws an agent with probability proportional to
// success_rate * (1 - utilization). If every candidate scores zero
// (e.g. all fully saturated with no success history), it falls back to
// least-loaded so a pick is still made.
func (lb *LoadBalancer) weightedPerformance(candidates []*agent.Agent) *agent.Agent {
	sorted := sortedByID(candidates)
	weights := make([]float64, len(sorted))
	total := 0.0
	for i, a := range sorted {
		w := a.Load.SuccessRate() * (1 - a.Load.Utilization())
		if w < 0 {
			w = 0
		}
		weights[i] = w
		total += w
	}
	if total <= 0 {
		return lb.leastLoaded(sorted)
	}

	lb.mu.Lock()
	r := lb.rng.Float64() * total
	lb.mu.Unlock()

	cum := 0.0
	for i, w := range weights {
		cum += w
		if r <= cum {
			return sorted[i]
		}
	}
	return sorted[len(sorted)-1]
}

// capabilityScore picks the candidate with the highest task-fit score,
// breaking ties with least-loaded, then lexicographically-lowest ID.
func (lb *LoadBalancer) capabilityScore(candidates []*agent.Agent, scores map[string]float64) *agent.Agent {
	sorted := sortedByID(candidates)
	best := sorted[0]
	bestScore := scores[best.ID]
	for _, a := range sorted[1:] {
		s := scores[a.ID]
		switch {
		case s > bestScore:
			best, bestScore = a, s
		case s == bestScore && lessLoaded(a, best):
			best = a
		}
	}
	return best
}

// withHeadroom filters out any candidate already at or over capacity,
// implementing the "none available when all full" contract at the load
// balancer itself rather than trusting callers to have pre-filtered the
// candidate set. Status is the registry's concern, not the load
// balancer's: a candidate set here is assumed already scoped to agents
// the caller considers eligible, so only the active/capacity headroom
// is re-checked.
func withHeadroom(candidates []*agent.Agent) []*agent.Agent {
	out := make([]*agent.Agent, 0, len(candidates))
	for _, a := range candidates {
		if a.Load.ActiveTasks < a.Load.Capacity {
			out = append(out, a)
		}
	}
	return out
}

func sortedByID(candidates []*agent.Agent) []*agent.Agent {
	out := make([]*agent.Agent, len(candidates))
	copy(out, candidates)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ClusterStats summarizes cluster-wide load for the admin surface.
type ClusterStats struct {
	TotalAgents      int
	TotalCapacity    int
	TotalActiveTasks int
	AvgUtilization   float64
}

func ComputeClusterStats(agents []*agent.Agent) ClusterStats {
	if len(agents) == 0 {
		return ClusterStats{}
	}
	stats := ClusterStats{TotalAgents: len(agents)}
	for _, a := range agents {
		stats.TotalCapacity += a.Load.Capacity
		stats.TotalActiveTasks += a.Load.ActiveTasks
	}
	if stats.TotalCapacity > 0 {
		stats.AvgUtilization = float64(stats.TotalActiveTasks) / float64(stats.TotalCapacity)
	}
	return stats
}
