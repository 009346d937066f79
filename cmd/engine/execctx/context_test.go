package execctx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetFlatAndNested(t *testing.T) {
	ctx := New()

	ctx.Set("extract.result", 75000.0)

	value, ok := ctx.Get("extract.result")
	require.True(t, ok)
	assert.Equal(t, 75000.0, value)

	// The nested view materializes alongside the flat key
	nested, ok := ctx.Get("extract")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"result": 75000.0}, nested)
}

func TestSetCopyOnWrite(t *testing.T) {
	ctx := New()

	ctx.Set("node.a", 1)
	before, _ := ctx.Get("node")
	beforeMap := before.(map[string]any)

	ctx.Set("node.b", 2)

	// The earlier reference must not observe the later write
	_, leaked := beforeMap["b"]
	assert.False(t, leaked)

	after, _ := ctx.Get("node")
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, after)
}

func TestSetResultScalar(t *testing.T) {
	ctx := New()

	ctx.SetResult("extract", 42.0)

	value, ok := ctx.Get("extract.result")
	require.True(t, ok)
	assert.Equal(t, 42.0, value)
}

func TestSetResultObject(t *testing.T) {
	ctx := New()

	result := map[string]any{
		"message":   "approved",
		"signature": "sig123",
	}
	ctx.SetResult("llm", result)

	// Each key binds individually
	message, ok := ctx.Get("llm.message")
	require.True(t, ok)
	assert.Equal(t, "approved", message)

	signature, ok := ctx.Get("llm.signature")
	require.True(t, ok)
	assert.Equal(t, "sig123", signature)

	// The whole object also binds under .result
	whole, ok := ctx.Get("llm.result")
	require.True(t, ok)
	assert.Equal(t, result, whole)
}

func TestSetResultEmptyNameIgnored(t *testing.T) {
	ctx := New()
	ctx.SetResult("", 1)
	assert.Empty(t, ctx.Keys())
}

func TestSetResultOverwrite(t *testing.T) {
	ctx := New()

	ctx.SetResult("node", 1.0)
	ctx.SetResult("node", 2.0)

	value, _ := ctx.Get("node.result")
	assert.Equal(t, 2.0, value)
}

func TestAsObjectSkipsDottedKeys(t *testing.T) {
	ctx := New()

	ctx.SetResult("alias", map[string]any{"txId": "t-1"})

	obj := ctx.AsObject()
	require.Contains(t, obj, "alias")
	assert.NotContains(t, obj, "alias.txId")
	assert.NotContains(t, obj, "alias.result")

	nested := obj["alias"].(map[string]any)
	assert.Equal(t, "t-1", nested["txId"])
}
