package graph

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chigozzdevv/zecflow-sub000/common/logger"
	"github.com/chigozzdevv/zecflow-sub000/common/models"
	"github.com/chigozzdevv/zecflow-sub000/common/registry"
)

type fakeBlockLoader struct {
	blocks []models.Block
	err    error
}

func (f *fakeBlockLoader) ListByWorkflow(ctx context.Context, workflowID uuid.UUID) ([]models.Block, error) {
	return f.blocks, f.err
}

type fakeConnectorLoader struct {
	connectors map[uuid.UUID]*models.Connector
}

func (f *fakeConnectorLoader) GetConnector(ctx context.Context, id uuid.UUID) (*models.Connector, error) {
	if c, ok := f.connectors[id]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("connector %s: not found", id)
}

func testMaterializer(blocks []models.Block) *Materializer {
	return NewMaterializer(
		&fakeBlockLoader{blocks: blocks},
		&fakeConnectorLoader{},
		logger.New("error", "text"),
	)
}

func TestMaterializeEmptyWorkflow(t *testing.T) {
	m := testMaterializer(nil)
	_, err := m.Materialize(context.Background(), uuid.New())
	require.ErrorIs(t, err, ErrNoBlocks)
	assert.Equal(t, "workflow has no blocks yet", err.Error())
}

func TestMaterializeLinear(t *testing.T) {
	b1 := uuid.New()
	b2 := uuid.New()

	blocks := []models.Block{
		{ID: b1, BlockID: registry.BlockPayloadInput, Data: map[string]any{"path": "payload"}},
		{ID: b2, BlockID: registry.BlockJSONExtract,
			Data:         map[string]any{"source": "payload", "path": "income"},
			Dependencies: []models.Dependency{{Source: b1.String()}}},
	}

	g, err := testMaterializer(blocks).Materialize(context.Background(), uuid.New())
	require.NoError(t, err)

	require.Len(t, g.Nodes, 2)
	assert.Equal(t, b1.String(), g.Nodes[0].ID)
	assert.Equal(t, models.NodeInput, g.Nodes[0].Type)
	assert.Equal(t, models.NodeTransform, g.Nodes[1].Type)

	require.Len(t, g.Edges, 1)
	assert.Equal(t, b1.String(), g.Edges[0].Source)
	assert.Equal(t, b2.String(), g.Edges[0].Target)
}

func TestMaterializeUnknownBlockType(t *testing.T) {
	blocks := []models.Block{
		{ID: uuid.New(), BlockID: "quantum-oracle"},
	}
	_, err := testMaterializer(blocks).Materialize(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown block type: quantum-oracle")
}

func TestMaterializeDeduplicatesEdges(t *testing.T) {
	b1 := uuid.New()
	b2 := uuid.New()

	blocks := []models.Block{
		{ID: b1, BlockID: registry.BlockPayloadInput},
		{ID: b2, BlockID: registry.BlockMathAdd,
			Dependencies: []models.Dependency{
				{Source: b1.String(), TargetHandle: "a"},
				{Source: b1.String(), TargetHandle: "a"},
			}},
	}

	g, err := testMaterializer(blocks).Materialize(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Len(t, g.Edges, 1)
}

func TestMaterializeSynthesizesSlotEdges(t *testing.T) {
	b1 := uuid.New()
	b2 := uuid.New()

	// No dependency list at all: the slot metadata alone produces the edge
	blocks := []models.Block{
		{ID: b1, BlockID: registry.BlockPayloadInput},
		{ID: b2, BlockID: registry.BlockMathAdd,
			Data: map[string]any{
				"__inputSlots": map[string]any{
					"a": map[string]any{"source": b1.String(), "output": "value"},
				},
			}},
	}

	g, err := testMaterializer(blocks).Materialize(context.Background(), uuid.New())
	require.NoError(t, err)

	require.Len(t, g.Edges, 1)
	assert.Equal(t, b1.String(), g.Edges[0].Source)
	assert.Equal(t, "a", g.Edges[0].TargetHandle)
	assert.Equal(t, "value", g.Edges[0].SourceHandle)
}

func TestMaterializeSlotEdgeContradiction(t *testing.T) {
	b1 := uuid.New()
	b2 := uuid.New()
	b3 := uuid.New()

	// The slot claims "a" comes from b1 but the edge claims b2
	blocks := []models.Block{
		{ID: b1, BlockID: registry.BlockPayloadInput},
		{ID: b2, BlockID: registry.BlockPayloadInput},
		{ID: b3, BlockID: registry.BlockMathAdd,
			Data: map[string]any{
				"__inputSlots": map[string]any{
					"a": map[string]any{"source": b1.String()},
				},
			},
			Dependencies: []models.Dependency{
				{Source: b2.String(), TargetHandle: "a"},
			}},
	}

	_, err := testMaterializer(blocks).Materialize(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "input slot")
}

func TestMaterializeAdoptsSlotHandles(t *testing.T) {
	b1 := uuid.New()
	b2 := uuid.New()

	// Bare dependency, handle filled in from slot metadata
	blocks := []models.Block{
		{ID: b1, BlockID: registry.BlockPayloadInput},
		{ID: b2, BlockID: registry.BlockMathAdd,
			Data: map[string]any{
				"__inputSlots": map[string]any{
					"b": map[string]any{"source": b1.String(), "output": "value"},
				},
			},
			Dependencies: []models.Dependency{{Source: b1.String()}}},
	}

	g, err := testMaterializer(blocks).Materialize(context.Background(), uuid.New())
	require.NoError(t, err)

	require.Len(t, g.Edges, 1)
	assert.Equal(t, "b", g.Edges[0].TargetHandle)
	assert.Equal(t, "value", g.Edges[0].SourceHandle)
}

func TestMaterializeConnectorRequired(t *testing.T) {
	blocks := []models.Block{
		{ID: uuid.New(), BlockID: registry.BlockConnectorReq},
	}
	_, err := testMaterializer(blocks).Materialize(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires a connector")
}

func TestMaterializeResolvesConnector(t *testing.T) {
	connectorID := uuid.New()
	blockID := uuid.New()

	m := NewMaterializer(
		&fakeBlockLoader{blocks: []models.Block{
			{ID: blockID, BlockID: registry.BlockConnectorReq, ConnectorID: &connectorID},
		}},
		&fakeConnectorLoader{connectors: map[uuid.UUID]*models.Connector{
			connectorID: {ID: connectorID, BaseURL: "https://api.example.com"},
		}},
		logger.New("error", "text"),
	)

	g, err := m.Materialize(context.Background(), uuid.New())
	require.NoError(t, err)
	require.NotNil(t, g.Nodes[0].Connector)
	assert.Equal(t, "https://api.example.com", g.Nodes[0].Connector.BaseURL)
}

func TestNormalizeLayoutMissingPositions(t *testing.T) {
	blocks := []models.Block{
		{ID: uuid.New(), BlockID: registry.BlockPayloadInput},
		{ID: uuid.New(), BlockID: registry.BlockJSONExtract},
		{ID: uuid.New(), BlockID: registry.BlockNilaiLLM},
		{ID: uuid.New(), BlockID: registry.BlockStateRead},
		{ID: uuid.New(), BlockID: registry.BlockStateStore},
	}

	g, err := testMaterializer(blocks).Materialize(context.Background(), uuid.New())
	require.NoError(t, err)

	// Grid layout: 4 columns starting at (120, 80), step (220, 140)
	expected := []models.Position{
		{X: 120, Y: 80},
		{X: 340, Y: 80},
		{X: 560, Y: 80},
		{X: 780, Y: 80},
		{X: 120, Y: 220},
	}
	for i, n := range g.Nodes {
		require.NotNil(t, n.Position)
		assert.Equal(t, expected[i], *n.Position, "node %d", i)
	}
}

func TestNormalizeLayoutStackedPositions(t *testing.T) {
	// All nodes on the same point: degenerate, replaced by the grid
	samePos := func() *models.Position { return &models.Position{X: 50, Y: 50} }
	blocks := []models.Block{
		{ID: uuid.New(), BlockID: registry.BlockPayloadInput, Position: samePos()},
		{ID: uuid.New(), BlockID: registry.BlockJSONExtract, Position: samePos()},
		{ID: uuid.New(), BlockID: registry.BlockNilaiLLM, Position: samePos()},
	}

	g, err := testMaterializer(blocks).Materialize(context.Background(), uuid.New())
	require.NoError(t, err)

	distinct := map[models.Position]bool{}
	for _, n := range g.Nodes {
		distinct[*n.Position] = true
	}
	assert.Len(t, distinct, 3)
}

func TestNormalizeLayoutKeepsHealthyPositions(t *testing.T) {
	blocks := []models.Block{
		{ID: uuid.New(), BlockID: registry.BlockPayloadInput, Position: &models.Position{X: 0, Y: 0}},
		{ID: uuid.New(), BlockID: registry.BlockJSONExtract, Position: &models.Position{X: 300, Y: 50}},
		{ID: uuid.New(), BlockID: registry.BlockNilaiLLM, Position: &models.Position{X: 600, Y: 100}},
	}

	g, err := testMaterializer(blocks).Materialize(context.Background(), uuid.New())
	require.NoError(t, err)

	assert.Equal(t, models.Position{X: 0, Y: 0}, *g.Nodes[0].Position)
	assert.Equal(t, models.Position{X: 300, Y: 50}, *g.Nodes[1].Position)
	assert.Equal(t, models.Position{X: 600, Y: 100}, *g.Nodes[2].Position)
}

func TestNormalizeLayoutNonFinite(t *testing.T) {
	blocks := []models.Block{
		{ID: uuid.New(), BlockID: registry.BlockPayloadInput, Position: &models.Position{X: math.NaN(), Y: 0}},
		{ID: uuid.New(), BlockID: registry.BlockJSONExtract, Position: &models.Position{X: 300, Y: 50}},
	}

	g, err := testMaterializer(blocks).Materialize(context.Background(), uuid.New())
	require.NoError(t, err)

	for _, n := range g.Nodes {
		assert.False(t, math.IsNaN(n.Position.X))
	}
}
