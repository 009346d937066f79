package registry

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	def, err := Lookup(BlockNilaiLLM)
	require.NoError(t, err)
	assert.Equal(t, HandlerNilai, def.Handler)
	assert.Equal(t, 10, def.Cost)

	_, err = Lookup("quantum-oracle")
	require.Error(t, err)
	assert.Equal(t, "unknown block type: quantum-oracle", err.Error())
}

func TestCostTable(t *testing.T) {
	assert.Equal(t, 10, Cost(BlockNilaiLLM))
	assert.Equal(t, 5, Cost(BlockNillionCompute))
	assert.Equal(t, 5, Cost(BlockNillionGraph))
	assert.Equal(t, 3, Cost(BlockZcashSend))
	assert.Equal(t, 2, Cost(BlockStateStore))
	assert.Equal(t, 2, Cost(BlockLogicIfElse))
	assert.Equal(t, 1, Cost(BlockStateRead))
	assert.Equal(t, 1, Cost(BlockConnectorReq))
	assert.Equal(t, 1, Cost(BlockCustomHTTP))

	// Input, transform and arithmetic blocks are free
	for _, id := range []string{
		BlockPayloadInput, BlockJSONExtract, BlockMemoParser,
		BlockMathAdd, BlockMathSubtract, BlockMathMultiply,
		BlockMathDivide, BlockMathGreaterThan,
	} {
		assert.Zero(t, Cost(id), id)
	}

	assert.Zero(t, Cost("unknown"))
}

func TestAllSorted(t *testing.T) {
	defs := All()
	assert.Len(t, defs, 17)
	assert.True(t, sort.SliceIsSorted(defs, func(i, j int) bool {
		return defs[i].ID < defs[j].ID
	}))
}

func TestConnectorRequirement(t *testing.T) {
	for _, def := range All() {
		assert.Equal(t, def.ID == BlockConnectorReq, def.RequiresConnector, def.ID)
	}
}

func TestNodeTypeFor(t *testing.T) {
	assert.Equal(t, "input", NodeTypeFor(CategoryInput))
	assert.Equal(t, "transform", NodeTypeFor(CategoryTransform))
	assert.Equal(t, "compute", NodeTypeFor(CategoryCompute))
	assert.Equal(t, "compute", NodeTypeFor(CategoryStorage))
	assert.Equal(t, "action", NodeTypeFor(CategoryAction))
}

func TestValidateConfig(t *testing.T) {
	valid := func(blockID string, data map[string]any) error {
		def, err := Lookup(blockID)
		require.NoError(t, err)
		return def.ValidateConfig(data)
	}

	t.Run("payload-input", func(t *testing.T) {
		assert.NoError(t, valid(BlockPayloadInput, map[string]any{}))
		assert.NoError(t, valid(BlockPayloadInput, map[string]any{"path": "payload.x"}))
		assert.Error(t, valid(BlockPayloadInput, map[string]any{"path": 1.0}))
	})

	t.Run("json-extract", func(t *testing.T) {
		assert.NoError(t, valid(BlockJSONExtract, map[string]any{"path": "income"}))
		assert.NoError(t, valid(BlockJSONExtract, map[string]any{"path": "x", "source": "memory"}))
		assert.Error(t, valid(BlockJSONExtract, map[string]any{}), "path is required")
		assert.Error(t, valid(BlockJSONExtract, map[string]any{"path": "x", "source": "redis"}))
	})

	t.Run("nilai-llm", func(t *testing.T) {
		assert.NoError(t, valid(BlockNilaiLLM, map[string]any{"promptTemplate": "p"}))
		assert.Error(t, valid(BlockNilaiLLM, map[string]any{}))
		assert.Error(t, valid(BlockNilaiLLM, map[string]any{"promptTemplate": ""}))
	})

	t.Run("nillion-compute", func(t *testing.T) {
		assert.NoError(t, valid(BlockNillionCompute, map[string]any{"workloadId": "w-1"}))
		assert.Error(t, valid(BlockNillionCompute, map[string]any{}))
	})

	t.Run("nillion-block-graph", func(t *testing.T) {
		assert.NoError(t, valid(BlockNillionGraph, map[string]any{
			"nillionGraph": map[string]any{"nodes": []any{}},
		}))
		assert.Error(t, valid(BlockNillionGraph, map[string]any{}))
		assert.Error(t, valid(BlockNillionGraph, map[string]any{
			"nillionGraph": map[string]any{},
			"inputMapping": map[string]any{"a": 1.0},
		}))
	})

	t.Run("custom-http-action", func(t *testing.T) {
		assert.NoError(t, valid(BlockCustomHTTP, map[string]any{"url": "https://x"}))
		assert.Error(t, valid(BlockCustomHTTP, map[string]any{}))
	})

	t.Run("state-store", func(t *testing.T) {
		assert.NoError(t, valid(BlockStateStore, map[string]any{"collectionId": "c-1"}))
		assert.NoError(t, valid(BlockStateStore, map[string]any{
			"collectionId":  "c-1",
			"encryptFields": []any{"ssn"},
		}))
		assert.Error(t, valid(BlockStateStore, map[string]any{}))
		assert.Error(t, valid(BlockStateStore, map[string]any{
			"collectionId":  "c-1",
			"encryptFields": "ssn",
		}))
	})

	t.Run("state-read", func(t *testing.T) {
		assert.NoError(t, valid(BlockStateRead, map[string]any{"collectionId": "c-1"}))
		assert.Error(t, valid(BlockStateRead, map[string]any{}))
	})

	t.Run("math blocks accept anything", func(t *testing.T) {
		assert.NoError(t, valid(BlockMathAdd, map[string]any{"whatever": 1.0}))
	})
}
