package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kestrel-run/orchestra/internal/domain/orcherr"
	"github.com/kestrel-run/orchestra/internal/domain/plan"
	"github.com/kestrel-run/orchestra/internal/port/cache"
)

// Matcher reports whether a pattern applies to a goal description, the
// way the reference decomposer's keyword matcher picks among its
// built-in patterns.
type Matcher func(goal string) bool

// Pattern is a registered decomposition template: a matcher that decides
// applicability and a builder that expands a matched goal into subtask
// specs.
type Pattern struct {
	Name    string
	Match   Matcher
	Protocol plan.Protocol
	Build   func(goal string) []plan.SubTaskSpec
}

// Decomposer expands a goal description into a DecompositionPlan by
// matching it against a registry of patterns, falling back to a generic
// single-subtask plan when nothing matches. Results are memoized
// in a bounded cache keyed by goal text, since repeated goals (e.g. retried
// plans) shouldn't re-run pattern matching.
type Decomposer struct {
	patterns []Pattern
	cache    cache.Cache
	cacheTTL time.Duration
}

func NewDecomposer(c cache.Cache, cacheTTL time.Duration) *Decomposer {
	d := &Decomposer{cache: c, cacheTTL: cacheTTL}
	d.registerBuiltins()
	return d
}

// RegisterPattern appends a custom decomposition pattern, tried after
// every previously registered pattern. Use RegisterPatternFirst to take
// priority over the built-ins.
func (d *Decomposer) RegisterPattern(p Pattern) {
	d.patterns = append(d.patterns, p)
}

// RegisterPatternFirst inserts p ahead of every previously registered
// pattern, so it is tried first.
func (d *Decomposer) RegisterPatternFirst(p Pattern) {
	d.patterns = append([]Pattern{p}, d.patterns...)
}

func (d *Decomposer) registerBuiltins() {
	d.patterns = []Pattern{
		{
			Name:     "research_and_report",
			Protocol: plan.ProtocolDAG,
			Match:    keywordMatcher("research", "investigate", "find out", "report"),
			Build: func(goal string) []plan.SubTaskSpec {
				return []plan.SubTaskSpec{
					{Key: "research", Description: "Gather information for: " + goal, AgentTypeID: "research_agent"},
					{Key: "synthesize", Description: "Synthesize findings for: " + goal, AgentTypeID: "research_agent", DependsOn: []string{"research"}},
					{Key: "write_report", Description: "Write final report for: " + goal, AgentTypeID: "writer_agent", DependsOn: []string{"synthesize"}},
				}
			},
		},
		{
			Name:     "code_development",
			Protocol: plan.ProtocolDAG,
			Match:    keywordMatcher("implement", "build", "develop", "code", "feature"),
			Build: func(goal string) []plan.SubTaskSpec {
				return []plan.SubTaskSpec{
					{Key: "plan", Description: "Plan implementation for: " + goal, AgentTypeID: "planner_agent"},
					{Key: "code", Description: "Write code for: " + goal, AgentTypeID: "code_agent", DependsOn: []string{"plan"}},
					{Key: "review", Description: "Review code for: " + goal, AgentTypeID: "critic_agent", DependsOn: []string{"code"}},
					{Key: "test", Description: "Test implementation for: " + goal, AgentTypeID: "code_agent", DependsOn: []string{"review"}},
				}
			},
		},
		{
			Name:     "data_pipeline",
			Protocol: plan.ProtocolDAG,
			Match:    keywordMatcher("analyze", "dataset", "data pipeline", "visualize"),
			Build: func(goal string) []plan.SubTaskSpec {
				return []plan.SubTaskSpec{
					{Key: "ingest", Description: "Ingest data for: " + goal, AgentTypeID: "data_agent"},
					{Key: "analyze", Description: "Analyze data for: " + goal, AgentTypeID: "data_agent", DependsOn: []string{"ingest"}},
					{Key: "visualize", Description: "Visualize results for: " + goal, AgentTypeID: "data_agent", DependsOn: []string{"analyze"}},
				}
			},
		},
	}
}

func keywordMatcher(keywords ...string) Matcher {
	return func(goal string) bool {
		lower := strings.ToLower(goal)
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				return true
			}
		}
		return false
	}
}

// Decompose produces a validated DecompositionPlan for goal, consulting
// the cache first, then the pattern registry, falling back to a generic
// single-subtask plan when no pattern matches.
func (d *Decomposer) Decompose(ctx context.Context, goal string) (plan.DecompositionPlan, error) {
	if strings.TrimSpace(goal) == "" {
		return plan.DecompositionPlan{}, orcherr.New(orcherr.KindValidation, "goal description must not be empty")
	}

	cacheKey := "decompose:" + goal
	if d.cache != nil {
		if cached, ok := d.cache.Get(cacheKey); ok {
			if p, ok := cached.(plan.DecompositionPlan); ok {
				return p, nil
			}
		}
	}

	matched := d.match(goal)

	p := plan.DecompositionPlan{
		ID:        uuid.NewString(),
		Goal:      goal,
		Pattern:   matched.Name,
		Protocol:  matched.Protocol,
		SubTasks:  matched.Build(goal),
		Status:    plan.StatusPending,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if err := p.Validate(); err != nil {
		return plan.DecompositionPlan{}, orcherr.Wrap(orcherr.KindDecomposition, "decomposed plan failed validation", err)
	}

	if d.cache != nil {
		d.cache.SetWithTTL(cacheKey, p, d.cacheTTL)
	}
	return p, nil
}

func (d *Decomposer) match(goal string) Pattern {
	for _, p := range d.patterns {
		if p.Match(goal) {
			return p
		}
	}
	return genericPattern
}

var genericPattern = Pattern{
	Name:     "generic",
	Protocol: plan.ProtocolSequential,
	Match:    func(string) bool { return true },
	Build: func(goal string) []plan.SubTaskSpec {
		return []plan.SubTaskSpec{
			{Key: "execute", Description: "Execute: " + goal, AgentTypeID: "executor_agent"},
		}
	},
}
