package graph

import (
	"errors"
	"fmt"

	"github.com/chigozzdevv/zecflow-sub000/common/models"
)

// ErrGraphCycle is returned when the directed edges do not form a DAG
var ErrGraphCycle = errors.New("Workflow graph contains cycles")

// Validate fails fast on the first structural defect: an empty graph,
// an edge referencing an unknown node, or a cycle.
func Validate(g *models.WorkflowGraph) error {
	if g == nil || len(g.Nodes) == 0 {
		return fmt.Errorf("workflow graph has no nodes")
	}

	known := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		if known[n.ID] {
			return fmt.Errorf("duplicate node id: %s", n.ID)
		}
		known[n.ID] = true
	}

	for _, e := range g.Edges {
		if !known[e.Source] {
			return fmt.Errorf("edge %s references unknown source node: %s", e.ID, e.Source)
		}
		if !known[e.Target] {
			return fmt.Errorf("edge %s references unknown target node: %s", e.ID, e.Target)
		}
	}

	if _, err := TopoSort(g); err != nil {
		return err
	}

	return nil
}

// TopoSort produces a deterministic topological order of node ids using
// Kahn's algorithm. Ties among zero-indegree nodes break by node
// insertion order, so a fixed graph always yields the same order.
func TopoSort(g *models.WorkflowGraph) ([]string, error) {
	indegree := make(map[string]int, len(g.Nodes))
	successors := make(map[string][]string, len(g.Nodes))

	order := make([]string, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		indegree[n.ID] = 0
	}
	for _, e := range g.Edges {
		indegree[e.Target]++
		successors[e.Source] = append(successors[e.Source], e.Target)
	}

	// FIFO queue seeded in node declaration order keeps the sort stable
	var queue []string
	for _, n := range g.Nodes {
		if indegree[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)

		for _, next := range successors[id] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(order) != len(g.Nodes) {
		return nil, ErrGraphCycle
	}

	return order, nil
}
