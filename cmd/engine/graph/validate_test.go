package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chigozzdevv/zecflow-sub000/common/models"
	"github.com/chigozzdevv/zecflow-sub000/common/registry"
)

func node(id, blockID string) models.GraphNode {
	return models.GraphNode{ID: id, BlockID: blockID, Data: map[string]any{}}
}

func edge(source, target string) models.GraphEdge {
	return models.GraphEdge{ID: "e-" + source + "-" + target, Source: source, Target: target}
}

func TestValidateEmptyGraph(t *testing.T) {
	err := Validate(&models.WorkflowGraph{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no nodes")

	require.Error(t, Validate(nil))
}

func TestValidateDuplicateNode(t *testing.T) {
	g := &models.WorkflowGraph{
		Nodes: []models.GraphNode{
			node("n1", registry.BlockPayloadInput),
			node("n1", registry.BlockPayloadInput),
		},
	}
	err := Validate(g)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate node id")
}

func TestValidateDanglingEdge(t *testing.T) {
	g := &models.WorkflowGraph{
		Nodes: []models.GraphNode{node("n1", registry.BlockPayloadInput)},
		Edges: []models.GraphEdge{edge("n1", "ghost")},
	}
	err := Validate(g)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown target node")
}

func TestValidateCycle(t *testing.T) {
	g := &models.WorkflowGraph{
		Nodes: []models.GraphNode{
			node("n1", registry.BlockMathAdd),
			node("n2", registry.BlockMathMultiply),
		},
		Edges: []models.GraphEdge{
			edge("n1", "n2"),
			edge("n2", "n1"),
		},
	}
	err := Validate(g)
	require.Error(t, err)
	assert.Equal(t, "Workflow graph contains cycles", err.Error())
}

func TestValidateAcceptsDAG(t *testing.T) {
	g := &models.WorkflowGraph{
		Nodes: []models.GraphNode{
			node("n1", registry.BlockPayloadInput),
			node("n2", registry.BlockJSONExtract),
			node("n3", registry.BlockNilaiLLM),
		},
		Edges: []models.GraphEdge{
			edge("n1", "n2"),
			edge("n2", "n3"),
		},
	}
	require.NoError(t, Validate(g))
}

func TestTopoSortLinear(t *testing.T) {
	g := &models.WorkflowGraph{
		Nodes: []models.GraphNode{
			node("n3", registry.BlockNilaiLLM),
			node("n1", registry.BlockPayloadInput),
			node("n2", registry.BlockJSONExtract),
		},
		Edges: []models.GraphEdge{
			edge("n1", "n2"),
			edge("n2", "n3"),
		},
	}

	order, err := TopoSort(g)
	require.NoError(t, err)
	assert.Equal(t, []string{"n1", "n2", "n3"}, order)
}

func TestTopoSortTieBreakByInsertionOrder(t *testing.T) {
	// n1 and n2 are both roots; declaration order decides
	g := &models.WorkflowGraph{
		Nodes: []models.GraphNode{
			node("n2", registry.BlockPayloadInput),
			node("n1", registry.BlockPayloadInput),
			node("n3", registry.BlockMathAdd),
		},
		Edges: []models.GraphEdge{
			edge("n2", "n3"),
			edge("n1", "n3"),
		},
	}

	for i := 0; i < 10; i++ {
		order, err := TopoSort(g)
		require.NoError(t, err)
		assert.Equal(t, []string{"n2", "n1", "n3"}, order)
	}
}

func TestTopoSortDiamond(t *testing.T) {
	g := &models.WorkflowGraph{
		Nodes: []models.GraphNode{
			node("a", registry.BlockPayloadInput),
			node("b", registry.BlockMathAdd),
			node("c", registry.BlockMathMultiply),
			node("d", registry.BlockMathAdd),
		},
		Edges: []models.GraphEdge{
			edge("a", "b"),
			edge("a", "c"),
			edge("b", "d"),
			edge("c", "d"),
		},
	}

	order, err := TopoSort(g)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, order)
}
