package batch

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chigozzdevv/zecflow-sub000/cmd/engine/adapters"
	"github.com/chigozzdevv/zecflow-sub000/cmd/engine/dispatch"
	"github.com/chigozzdevv/zecflow-sub000/cmd/engine/execctx"
	"github.com/chigozzdevv/zecflow-sub000/common/logger"
	"github.com/chigozzdevv/zecflow-sub000/common/models"
	"github.com/chigozzdevv/zecflow-sub000/common/registry"
)

type fakeMPC struct {
	result      *adapters.MPCGraphResult
	err         error
	submissions int
	lastGraph   *adapters.MPCGraph
	lastInputs  map[string]any
}

func (f *fakeMPC) Execute(ctx context.Context, workloadID string, input any, relativePath string) (*adapters.MPCResult, error) {
	return nil, fmt.Errorf("not used")
}

func (f *fakeMPC) ExecuteBlockGraph(ctx context.Context, g *adapters.MPCGraph, inputs map[string]any, runTag string) (*adapters.MPCGraphResult, error) {
	f.submissions++
	f.lastGraph = g
	f.lastInputs = inputs
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func testPlanner(mpc *fakeMPC) *Planner {
	return NewPlanner(mpc, logger.New("error", "text"))
}

// loanEnv models two payload inputs feeding an add whose sum is scaled
// by a multiply: N1 -> N3(a), N2 -> N3(b), N3 -> N4(a), N4.b = 5.
func loanEnv() (*dispatch.Env, []string) {
	env := &dispatch.Env{
		RunID:   "run-1",
		Payload: map[string]any{"salary": 3.0, "bonus": 5.0, "factor": 5.0},
		Ctx:     execctx.New(),
		Graph: &models.WorkflowGraph{
			Nodes: []models.GraphNode{
				{ID: "N1", BlockID: registry.BlockPayloadInput, Type: models.NodeInput,
					Data: map[string]any{"path": "payload.salary"}},
				{ID: "N2", BlockID: registry.BlockPayloadInput, Type: models.NodeInput,
					Data: map[string]any{"path": "payload.bonus"}},
				{ID: "N3", BlockID: registry.BlockMathAdd, Type: models.NodeCompute,
					Data: map[string]any{}},
				{ID: "N4", BlockID: registry.BlockMathMultiply, Type: models.NodeCompute,
					Data: map[string]any{"bPath": "payload.factor"}},
			},
			Edges: []models.GraphEdge{
				{Source: "N1", Target: "N3", TargetHandle: "a"},
				{Source: "N2", Target: "N3", TargetHandle: "b"},
				{Source: "N3", Target: "N4", TargetHandle: "a"},
			},
		},
	}
	return env, []string{"N1", "N2", "N3", "N4"}
}

func TestPlanChainedBatch(t *testing.T) {
	env, order := loanEnv()
	p := testPlanner(&fakeMPC{})

	// Inputs already executed, N3 is the seed: N4 joins because its only
	// unexecuted dependency is a batch member.
	executed := map[string]bool{"N1": true, "N2": true}
	batch := p.Plan(env, order, 2, executed)
	assert.Equal(t, []string{"N3", "N4"}, batch)
}

func TestPlanStopsAtExternalDependency(t *testing.T) {
	env := &dispatch.Env{
		RunID:   "run-1",
		Payload: map[string]any{},
		Ctx:     execctx.New(),
		Graph: &models.WorkflowGraph{
			Nodes: []models.GraphNode{
				{ID: "A", BlockID: registry.BlockMathAdd, Type: models.NodeCompute, Data: map[string]any{}},
				{ID: "L", BlockID: registry.BlockNilaiLLM, Type: models.NodeAction, Data: map[string]any{}},
				{ID: "B", BlockID: registry.BlockMathAdd, Type: models.NodeCompute, Data: map[string]any{}},
			},
			Edges: []models.GraphEdge{
				{Source: "A", Target: "L"},
				{Source: "L", Target: "B", TargetHandle: "a"},
			},
		},
	}
	order := []string{"A", "L", "B"}

	p := testPlanner(&fakeMPC{})

	// B depends on the LLM node, which is neither executed nor batchable,
	// so the batch is just the seed.
	batch := p.Plan(env, order, 0, map[string]bool{})
	assert.Equal(t, []string{"A"}, batch)
}

func TestPlanSeedFallback(t *testing.T) {
	env, order := loanEnv()
	p := testPlanner(&fakeMPC{})

	// Nothing executed: N3's inputs are unexecuted non-members, so the
	// fixed point rejects it, and it falls back to a 1-node batch.
	batch := p.Plan(env, order, 2, map[string]bool{})
	assert.Equal(t, []string{"N3"}, batch)
}

func TestPlanNoCandidates(t *testing.T) {
	env := &dispatch.Env{
		RunID:   "run-1",
		Payload: map[string]any{},
		Ctx:     execctx.New(),
		Graph: &models.WorkflowGraph{
			Nodes: []models.GraphNode{
				{ID: "L", BlockID: registry.BlockNilaiLLM, Type: models.NodeAction, Data: map[string]any{}},
			},
		},
	}

	p := testPlanner(&fakeMPC{})
	assert.Nil(t, p.Plan(env, []string{"L"}, 0, map[string]bool{}))
}

func TestBuildExternalOperandsOnly(t *testing.T) {
	env, _ := loanEnv()
	env.Ctx.Set("N1.value", 3.0)
	env.Ctx.Set("N2.value", 5.0)

	p := testPlanner(&fakeMPC{})
	b, err := p.Build(env, []string{"N3", "N4"})
	require.NoError(t, err)

	// N3's operands both come from outside the batch
	assert.Equal(t, map[string]any{"a": int64(3), "b": int64(5)}, b.Inputs["N3"])

	// N4's "a" is fed by N3 inside the batch; only the literal "b" remains
	assert.Equal(t, map[string]any{"b": int64(5)}, b.Inputs["N4"])

	require.Len(t, b.graph.Nodes, 2)
	assert.Equal(t, "nillion-add", b.graph.Nodes[0].BlockID)
	assert.Equal(t, "nillion-multiply", b.graph.Nodes[1].BlockID)

	require.Len(t, b.graph.Edges, 1)
	assert.Equal(t, "N3", b.graph.Edges[0].Source)
	assert.Equal(t, "N4", b.graph.Edges[0].Target)
}

func TestBuildInvalidOperandAttributed(t *testing.T) {
	env, _ := loanEnv()
	env.Ctx.Set("N1.value", "abc")
	env.Ctx.Set("N2.value", 5.0)

	p := testPlanner(&fakeMPC{})
	_, err := p.Build(env, []string{"N3", "N4"})
	require.Error(t, err)

	var buildErr *BuildError
	require.ErrorAs(t, err, &buildErr)
	assert.Equal(t, "N3", buildErr.NodeID)
	assert.Contains(t, err.Error(), "Invalid integer")
}

func TestBuildRejectsNonEligibleNode(t *testing.T) {
	env := &dispatch.Env{
		RunID:   "run-1",
		Payload: map[string]any{},
		Ctx:     execctx.New(),
		Graph: &models.WorkflowGraph{
			Nodes: []models.GraphNode{
				{ID: "L", BlockID: registry.BlockNilaiLLM, Type: models.NodeAction, Data: map[string]any{}},
			},
		},
	}

	p := testPlanner(&fakeMPC{})
	_, err := p.Build(env, []string{"L"})
	require.Error(t, err)

	var buildErr *BuildError
	require.ErrorAs(t, err, &buildErr)
	assert.Equal(t, "L", buildErr.NodeID)
}

func TestExecuteSplitsOutputs(t *testing.T) {
	env, _ := loanEnv()
	env.Ctx.Set("N1.value", 3.0)
	env.Ctx.Set("N2.value", 5.0)

	mpc := &fakeMPC{result: &adapters.MPCGraphResult{
		Output: map[string]any{
			"N3.result": 8.0,
			"N4.result": 40.0,
		},
	}}
	p := testPlanner(mpc)

	b, err := p.Build(env, []string{"N3", "N4"})
	require.NoError(t, err)

	results, err := p.Execute(context.Background(), env, b)
	require.NoError(t, err)

	assert.Equal(t, 1, mpc.submissions, "the whole batch is one submission")
	assert.Equal(t, 8.0, results["N3"])
	assert.Equal(t, 40.0, results["N4"])

	// Submission inputs are flattened by "nodeId.handle"
	assert.Equal(t, int64(3), mpc.lastInputs["N3.a"])
	assert.Equal(t, int64(5), mpc.lastInputs["N3.b"])
	assert.Equal(t, int64(5), mpc.lastInputs["N4.b"])
}

func TestExecuteNormalizesComparisons(t *testing.T) {
	env := &dispatch.Env{
		RunID:   "run-1",
		Payload: map[string]any{"score": 9.0, "threshold": 4.0},
		Ctx:     execctx.New(),
		Graph: &models.WorkflowGraph{
			Nodes: []models.GraphNode{
				{ID: "G", BlockID: registry.BlockMathGreaterThan, Type: models.NodeCompute,
					Data: map[string]any{"aPath": "payload.score", "bPath": "payload.threshold"}},
			},
		},
	}

	mpc := &fakeMPC{result: &adapters.MPCGraphResult{
		Output: map[string]any{"G.result": 1.0},
	}}
	p := testPlanner(mpc)

	b, err := p.Build(env, []string{"G"})
	require.NoError(t, err)

	results, err := p.Execute(context.Background(), env, b)
	require.NoError(t, err)
	assert.Equal(t, true, results["G"])
}

func TestExecuteMissingOutput(t *testing.T) {
	env, _ := loanEnv()
	env.Ctx.Set("N1.value", 3.0)
	env.Ctx.Set("N2.value", 5.0)

	mpc := &fakeMPC{result: &adapters.MPCGraphResult{
		Output: map[string]any{"N3.result": 8.0},
	}}
	p := testPlanner(mpc)

	b, err := p.Build(env, []string{"N3", "N4"})
	require.NoError(t, err)

	_, err = p.Execute(context.Background(), env, b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing node N4")
}

func TestExecuteAdapterError(t *testing.T) {
	env, _ := loanEnv()
	env.Ctx.Set("N1.value", 3.0)
	env.Ctx.Set("N2.value", 5.0)

	mpc := &fakeMPC{err: errors.New("attestation failed")}
	p := testPlanner(mpc)

	b, err := p.Build(env, []string{"N3", "N4"})
	require.NoError(t, err)

	_, err = p.Execute(context.Background(), env, b)
	require.EqualError(t, err, "attestation failed")
}

func TestExecuteAlternateOutputName(t *testing.T) {
	env := &dispatch.Env{
		RunID:   "run-1",
		Payload: map[string]any{"eligible": true, "approved": 1.0, "rejected": 2.0},
		Ctx:     execctx.New(),
		Graph: &models.WorkflowGraph{
			Nodes: []models.GraphNode{
				{ID: "C", BlockID: registry.BlockLogicIfElse, Type: models.NodeCompute,
					Data: map[string]any{
						"conditionPath": "payload.eligible",
						"truePath":      "payload.approved",
						"falsePath":     "payload.rejected",
					}},
			},
		},
	}

	// Output published under a non-"result" name still maps back
	mpc := &fakeMPC{result: &adapters.MPCGraphResult{
		Output: map[string]any{"C.selected": 1.0},
	}}
	p := testPlanner(mpc)

	b, err := p.Build(env, []string{"C"})
	require.NoError(t, err)

	results, err := p.Execute(context.Background(), env, b)
	require.NoError(t, err)
	assert.Equal(t, 1.0, results["C"])
}
