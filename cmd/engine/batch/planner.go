// Package batch groups contiguous private-compute nodes into single
// remote MPC jobs. Submissions carry high per-invocation overhead
// (workload creation, attestation, teardown); batching amortizes it
// without changing per-node semantics, since every batched operation is
// a pure function of its inputs.
package batch

import (
	"context"
	"fmt"

	"github.com/chigozzdevv/zecflow-sub000/cmd/engine/adapters"
	"github.com/chigozzdevv/zecflow-sub000/cmd/engine/dispatch"
	"github.com/chigozzdevv/zecflow-sub000/common/logger"
	"github.com/chigozzdevv/zecflow-sub000/common/registry"
)

// Translation from internal block ids to private-compute node ids.
// Extending the eligible set means one entry here plus one in
// dispatch.MPCEligible.
var mpcNodeIDs = map[string]string{
	registry.BlockMathAdd:         "nillion-add",
	registry.BlockMathSubtract:    "nillion-subtract",
	registry.BlockMathMultiply:    "nillion-multiply",
	registry.BlockMathDivide:      "nillion-divide",
	registry.BlockMathGreaterThan: "nillion-greater-than",
	registry.BlockLogicIfElse:     "nillion-if-else",
}

// BuildError attributes a batch construction failure to one node
type BuildError struct {
	NodeID string
	Err    error
}

func (e *BuildError) Error() string { return e.Err.Error() }
func (e *BuildError) Unwrap() error { return e.Err }

// Batch is a planned sub-graph ready for one MPC submission
type Batch struct {
	// NodeIDs in topological order; the first is the seed
	NodeIDs []string

	// Inputs holds each node's external operands, keyed by node id
	Inputs map[string]map[string]any

	graph *adapters.MPCGraph
}

// Planner plans and executes MPC batches
type Planner struct {
	mpc adapters.MPCClient
	log *logger.Logger
}

// NewPlanner creates a batch planner over the MPC adapter
func NewPlanner(mpc adapters.MPCClient, log *logger.Logger) *Planner {
	return &Planner{mpc: mpc, log: log}
}

// Plan selects the batch to run at the given position of the
// topological order. Candidates are the unexecuted MPC-eligible nodes
// from the position forward; the fixed-point expansion keeps a
// candidate only when every incoming edge originates from an executed
// node, a node materialized before the position, or another batch
// member. If the seed itself fails to join, it runs as a 1-node batch.
func (p *Planner) Plan(env *dispatch.Env, order []string, pos int, executed map[string]bool) []string {
	seed := order[pos]
	index := make(map[string]int, len(order))
	for i, id := range order {
		index[id] = i
	}

	var candidates []string
	for i := pos; i < len(order); i++ {
		id := order[i]
		if executed[id] {
			continue
		}
		node := env.Graph.Node(id)
		if node != nil && dispatch.MPCEligible(node.BlockID) {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	member := make(map[string]bool)
	for changed := true; changed; {
		changed = false
		for _, id := range candidates {
			if member[id] {
				continue
			}
			if p.joinable(env, id, pos, index, executed, member) {
				member[id] = true
				changed = true
			}
		}
	}

	if !member[seed] {
		if env.Graph.Node(seed) == nil || !dispatch.MPCEligible(env.Graph.Node(seed).BlockID) {
			return nil
		}
		return []string{seed}
	}

	var batch []string
	for _, id := range order[pos:] {
		if member[id] {
			batch = append(batch, id)
		}
	}
	return batch
}

func (p *Planner) joinable(env *dispatch.Env, id string, pos int, index map[string]int, executed, member map[string]bool) bool {
	for _, edge := range env.Graph.IncomingEdges(id) {
		source := edge.Source
		if executed[source] {
			continue
		}
		if index[source] < pos {
			continue
		}
		if member[source] {
			continue
		}
		return false
	}
	return true
}

// Build translates a planned batch into a computation sub-graph. Each
// node carries only its external operands (those not provided by an
// edge inside the batch), validated as integers or booleans. Sub-edges
// are the original edges restricted to the batch vertex set.
func (p *Planner) Build(env *dispatch.Env, nodeIDs []string) (*Batch, error) {
	member := make(map[string]bool, len(nodeIDs))
	for _, id := range nodeIDs {
		member[id] = true
	}

	b := &Batch{
		NodeIDs: nodeIDs,
		Inputs:  make(map[string]map[string]any, len(nodeIDs)),
		graph:   &adapters.MPCGraph{},
	}

	for _, id := range nodeIDs {
		node := env.Graph.Node(id)
		if node == nil {
			return nil, &BuildError{NodeID: id, Err: fmt.Errorf("batch node %s not in graph", id)}
		}
		mpcID, ok := mpcNodeIDs[node.BlockID]
		if !ok {
			return nil, &BuildError{NodeID: id, Err: fmt.Errorf("block %s is not MPC-eligible", node.BlockID)}
		}

		internal := internalHandles(env, id, member)
		data := dispatch.GatherInputs(env, node)
		operands, err := dispatch.ResolveOperands(env, node, data, func(handle string) bool {
			return !internal[handle]
		})
		if err != nil {
			return nil, &BuildError{NodeID: id, Err: err}
		}

		b.Inputs[id] = operands
		b.graph.Nodes = append(b.graph.Nodes, adapters.MPCGraphNode{
			ID:      id,
			BlockID: mpcID,
			Inputs:  operands,
		})
	}

	for _, edge := range env.Graph.Edges {
		if member[edge.Source] && member[edge.Target] {
			b.graph.Edges = append(b.graph.Edges, adapters.MPCGraphEdge{
				Source:       edge.Source,
				Target:       edge.Target,
				SourceHandle: edge.SourceHandle,
				TargetHandle: edge.TargetHandle,
			})
		}
	}

	return b, nil
}

// internalHandles returns the operand handles of a node that are fed by
// edges from inside the batch
func internalHandles(env *dispatch.Env, id string, member map[string]bool) map[string]bool {
	internal := make(map[string]bool)
	for _, edge := range env.Graph.IncomingEdges(id) {
		if !member[edge.Source] {
			continue
		}
		handle := edge.TargetHandle
		if handle == "" {
			handle = "value"
		}
		internal[handle] = true
	}
	return internal
}

// Execute submits the batch as one remote job and splits the output
// mapping back across batch nodes, normalizing each node's result.
// Returned results are keyed by node id.
func (p *Planner) Execute(ctx context.Context, env *dispatch.Env, b *Batch) (map[string]any, error) {
	result, err := p.mpc.ExecuteBlockGraph(ctx, b.graph, flattenInputs(b), env.RunID)
	if err != nil {
		return nil, err
	}

	p.log.Debug("batch executed",
		"run_id", env.RunID,
		"nodes", len(b.NodeIDs),
		"outputs", len(result.Output))

	results := make(map[string]any, len(b.NodeIDs))
	for _, id := range b.NodeIDs {
		node := env.Graph.Node(id)

		raw, ok := result.Output[id+".result"]
		if !ok {
			// Multi-output node: collect every "nodeId.<out>" entry
			outputs := make(map[string]any)
			for key, value := range result.Output {
				if len(key) > len(id)+1 && key[:len(id)+1] == id+"." {
					outputs[key[len(id)+1:]] = value
				}
			}
			if len(outputs) == 0 {
				return nil, fmt.Errorf("batch output missing node %s", id)
			}
			if len(outputs) == 1 {
				for _, value := range outputs {
					raw = value
				}
			} else {
				results[id] = outputs
				continue
			}
		}

		results[id] = dispatch.NormalizeResult(node.BlockID, raw)
	}

	return results, nil
}

// flattenInputs builds the submission-level input mapping keyed by
// "nodeId.handle"
func flattenInputs(b *Batch) map[string]any {
	flat := make(map[string]any)
	for nodeID, operands := range b.Inputs {
		for handle, value := range operands {
			flat[nodeID+"."+handle] = value
		}
	}
	return flat
}
