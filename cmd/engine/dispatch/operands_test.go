package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chigozzdevv/zecflow-sub000/cmd/engine/execctx"
	"github.com/chigozzdevv/zecflow-sub000/common/models"
	"github.com/chigozzdevv/zecflow-sub000/common/registry"
)

func testEnv() *Env {
	return &Env{
		RunID:   "run-1",
		Payload: map[string]any{"amount": 7.0},
		Ctx:     execctx.New(),
		Graph:   &models.WorkflowGraph{},
	}
}

func TestOperandHandles(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, OperandHandles(registry.BlockMathAdd))
	assert.Equal(t, []string{"a", "b"}, OperandHandles(registry.BlockMathGreaterThan))
	assert.Equal(t, []string{"condition", "true", "false"}, OperandHandles(registry.BlockLogicIfElse))
}

func TestResolveOperandPriority(t *testing.T) {
	env := testEnv()
	env.Ctx.SetResult("upstream", 42.0)

	t.Run("input slots win", func(t *testing.T) {
		data := map[string]any{
			"__inputSlots": map[string]any{
				"a": map[string]any{"source": "upstream"},
			},
			"__inputs": map[string]any{"a": 1.0},
			"aPath":    "payload.amount",
		}
		value, ok := ResolveOperand(env, data, "a")
		require.True(t, ok)
		assert.Equal(t, 42.0, value)
	})

	t.Run("edge inputs beat path config", func(t *testing.T) {
		data := map[string]any{
			"__inputs": map[string]any{"a": 1.0},
			"aPath":    "payload.amount",
		}
		value, ok := ResolveOperand(env, data, "a")
		require.True(t, ok)
		assert.Equal(t, 1.0, value)
	})

	t.Run("path config as fallback", func(t *testing.T) {
		data := map[string]any{"aPath": "payload.amount"}
		value, ok := ResolveOperand(env, data, "a")
		require.True(t, ok)
		assert.Equal(t, 7.0, value)
	})

	t.Run("nothing resolves", func(t *testing.T) {
		_, ok := ResolveOperand(env, map[string]any{}, "a")
		assert.False(t, ok)
	})
}

func TestResolveOperandSlotOutputName(t *testing.T) {
	env := testEnv()
	env.Ctx.Set("upstream.total", 9.0)

	data := map[string]any{
		"__inputSlots": map[string]any{
			"b": map[string]any{"source": "upstream", "output": "total"},
		},
	}
	value, ok := ResolveOperand(env, data, "b")
	require.True(t, ok)
	assert.Equal(t, 9.0, value)
}

func TestCoerceInteger(t *testing.T) {
	cases := []struct {
		in   any
		want int64
	}{
		{3.0, 3},
		{int(5), 5},
		{int64(8), 8},
		{true, 1},
		{false, 0},
		{"12", 12},
		{"true", 1},
		{"false", 0},
	}
	for _, c := range cases {
		got, err := CoerceInteger(c.in)
		require.NoError(t, err, "input %v", c.in)
		assert.Equal(t, c.want, got)
	}
}

func TestCoerceIntegerRejects(t *testing.T) {
	for _, in := range []any{"abc", 3.5, map[string]any{}, nil} {
		_, err := CoerceInteger(in)
		require.Error(t, err, "input %v", in)
		assert.Contains(t, err.Error(), "Invalid integer")
	}
}

func TestResolveOperandsMissing(t *testing.T) {
	env := testEnv()
	node := &models.GraphNode{ID: "n1", BlockID: registry.BlockMathAdd, Data: map[string]any{}}

	_, err := ResolveOperands(env, node, map[string]any{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing operand "a"`)
}

func TestResolveOperandsSkipsInternal(t *testing.T) {
	env := testEnv()
	node := &models.GraphNode{ID: "n1", BlockID: registry.BlockMathAdd, Data: map[string]any{}}

	data := map[string]any{"__inputs": map[string]any{"b": 5.0}}
	operands, err := ResolveOperands(env, node, data, func(handle string) bool {
		return handle != "a" // a is fed by an internal edge
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"b": int64(5)}, operands)
}

func TestResolveOperandsInvalidValue(t *testing.T) {
	env := testEnv()
	node := &models.GraphNode{ID: "n1", BlockID: registry.BlockMathAdd, Data: map[string]any{}}

	data := map[string]any{"__inputs": map[string]any{"a": "abc", "b": 1.0}}
	_, err := ResolveOperands(env, node, data, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid integer")
}

func TestNormalizeResult(t *testing.T) {
	t.Run("greater-than to boolean", func(t *testing.T) {
		assert.Equal(t, true, NormalizeResult(registry.BlockMathGreaterThan, 1.0))
		assert.Equal(t, false, NormalizeResult(registry.BlockMathGreaterThan, 0.0))
		assert.Equal(t, true, NormalizeResult(registry.BlockMathGreaterThan, "1"))
		assert.Equal(t, false, NormalizeResult(registry.BlockMathGreaterThan, "false"))
		assert.Equal(t, true, NormalizeResult(registry.BlockMathGreaterThan, true))
	})

	t.Run("arithmetic to number", func(t *testing.T) {
		assert.Equal(t, 40.0, NormalizeResult(registry.BlockMathMultiply, "40"))
		assert.Equal(t, 8.0, NormalizeResult(registry.BlockMathAdd, 8.0))
		assert.Equal(t, 1, NormalizeResult(registry.BlockMathAdd, true))
	})

	t.Run("unparseable value preserved", func(t *testing.T) {
		assert.Equal(t, "n/a", NormalizeResult(registry.BlockMathAdd, "n/a"))
	})
}
