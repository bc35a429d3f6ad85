package plan

import (
	"fmt"

	"github.com/kestrel-run/orchestra/internal/domain/orcherr"
)

// Validate checks structural well-formedness: unique keys, dependencies
// that resolve to known keys, and acyclicity (via Kahn's algorithm).
func (p DecompositionPlan) Validate() error {
	if len(p.SubTasks) == 0 {
		return orcherr.New(orcherr.KindValidation, "plan has no subtasks")
	}

	seen := make(map[string]bool, len(p.SubTasks))
	for _, s := range p.SubTasks {
		if s.Key == "" {
			return orcherr.New(orcherr.KindValidation, "subtask has empty key")
		}
		if seen[s.Key] {
			return orcherr.New(orcherr.KindValidation, fmt.Sprintf("duplicate subtask key %q", s.Key))
		}
		seen[s.Key] = true
	}

	for _, s := range p.SubTasks {
		for _, dep := range s.DependsOn {
			if !seen[dep] {
				return orcherr.New(orcherr.KindValidation, fmt.Sprintf("subtask %q depends on unknown key %q", s.Key, dep))
			}
		}
	}

	return validateDAG(p.SubTasks)
}

// validateDAG runs Kahn's algorithm: repeatedly remove nodes with no
// remaining incoming edges. If nodes remain once no more can be removed,
// a cycle exists among them.
func validateDAG(subtasks []SubTaskSpec) error {
	indegree := make(map[string]int, len(subtasks))
	dependents := make(map[string][]string, len(subtasks))

	for _, s := range subtasks {
		if _, ok := indegree[s.Key]; !ok {
			indegree[s.Key] = 0
		}
		for _, dep := range s.DependsOn {
			indegree[s.Key]++
			dependents[dep] = append(dependents[dep], s.Key)
		}
	}

	var queue []string
	for key, deg := range indegree {
		if deg == 0 {
			queue = append(queue, key)
		}
	}

	visited := 0
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		visited++
		for _, dep := range dependents[cur] {
			indegree[dep]--
			if indegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if visited != len(indegree) {
		return orcherr.New(orcherr.KindValidation, "plan contains a dependency cycle")
	}
	return nil
}
