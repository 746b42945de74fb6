package scheduler

import (
	"fmt"
	"strings"

	"github.com/gammazero/toposort"
)

// depGraph tracks unmet dependencies and reverse edges for all tasks.
// It carries no lock of its own: the Scheduler owns it exclusively and
// every mutation happens inside the Scheduler's critical section.
type depGraph struct {
	remaining  map[string]map[string]struct{} // taskID -> unmet dependency IDs
	dependents map[string]map[string]struct{} // taskID -> tasks that unblock when it completes
}

func newDepGraph() *depGraph {
	return &depGraph{
		remaining:  make(map[string]map[string]struct{}),
		dependents: make(map[string]map[string]struct{}),
	}
}

// add registers a task and its unmet dependencies. Reverse edges are recorded
// for every dependency so that registration order does not matter.
func (g *depGraph) add(taskID string, deps []string) {
	rem := make(map[string]struct{}, len(deps))
	for _, depID := range deps {
		rem[depID] = struct{}{}
		if g.dependents[depID] == nil {
			g.dependents[depID] = make(map[string]struct{})
		}
		g.dependents[depID][taskID] = struct{}{}
	}
	g.remaining[taskID] = rem
}

// blocked reports whether the task still has unmet dependencies.
func (g *depGraph) blocked(taskID string) bool {
	return len(g.remaining[taskID]) > 0
}

// satisfy removes depID from every dependent's remaining set and returns the
// IDs whose remaining set became empty as a result.
func (g *depGraph) satisfy(depID string) []string {
	var unblocked []string
	for id := range g.dependents[depID] {
		rem, ok := g.remaining[id]
		if !ok {
			continue
		}
		if _, had := rem[depID]; !had {
			continue
		}
		delete(rem, depID)
		if len(rem) == 0 {
			unblocked = append(unblocked, id)
		}
	}
	return unblocked
}

// transitiveDependents returns every task reachable from taskID via reverse
// edges, direct dependents first.
func (g *depGraph) transitiveDependents(taskID string) []string {
	var order []string
	seen := map[string]struct{}{taskID: {}}
	frontier := []string{taskID}
	for len(frontier) > 0 {
		id := frontier[0]
		frontier = frontier[1:]
		for dep := range g.dependents[id] {
			if _, ok := seen[dep]; ok {
				continue
			}
			seen[dep] = struct{}{}
			order = append(order, dep)
			frontier = append(frontier, dep)
		}
	}
	return order
}

// validate runs a topological sort over the registered tasks and returns the
// ordered IDs, or an error if the graph contains a cycle. Edges are built from
// the original dependency lists, not the remaining sets, so validation is
// stable regardless of completion progress.
func (g *depGraph) validate(tasks map[string]*Task) ([]string, error) {
	var edges []toposort.Edge
	for id, task := range tasks {
		known := 0
		for _, depID := range task.Dependencies {
			if _, exists := tasks[depID]; !exists {
				// Unknown dependencies were already treated as satisfied at
				// registration; they contribute no edge.
				continue
			}
			edges = append(edges, toposort.Edge{depID, id})
			known++
		}
		if known == 0 {
			edges = append(edges, toposort.Edge{nil, id})
		}
	}

	sorted, err := toposort.Toposort(edges)
	if err != nil {
		return nil, fmt.Errorf("dependency graph contains cycle: %w", err)
	}

	order := make([]string, 0, len(sorted))
	for _, id := range sorted {
		if id != nil {
			order = append(order, id.(string))
		}
	}

	if len(order) != len(tasks) {
		missing := []string{}
		found := make(map[string]bool, len(order))
		for _, id := range order {
			found[id] = true
		}
		for id := range tasks {
			if !found[id] {
				missing = append(missing, id)
			}
		}
		return nil, fmt.Errorf("topological sort lost %d tasks: %s", len(missing), strings.Join(missing, ", "))
	}

	return order, nil
}
