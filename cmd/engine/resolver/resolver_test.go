package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRead(t *testing.T) {
	root := map[string]any{
		"payload": map[string]any{
			"income": 75000.0,
			"applicant": map[string]any{
				"name": "alice",
			},
		},
		"flag": true,
	}

	t.Run("empty path returns root", func(t *testing.T) {
		value, ok := Read(root, "")
		require.True(t, ok)
		assert.Equal(t, root, value)
	})

	t.Run("top-level key", func(t *testing.T) {
		value, ok := Read(root, "flag")
		require.True(t, ok)
		assert.Equal(t, true, value)
	})

	t.Run("nested path", func(t *testing.T) {
		value, ok := Read(root, "payload.income")
		require.True(t, ok)
		assert.Equal(t, 75000.0, value)
	})

	t.Run("deep nested path", func(t *testing.T) {
		value, ok := Read(root, "payload.applicant.name")
		require.True(t, ok)
		assert.Equal(t, "alice", value)
	})

	t.Run("missing key", func(t *testing.T) {
		_, ok := Read(root, "payload.missing")
		assert.False(t, ok)
	})

	t.Run("traversal into scalar fails", func(t *testing.T) {
		_, ok := Read(root, "payload.income.cents")
		assert.False(t, ok)
	})

	t.Run("nil root", func(t *testing.T) {
		_, ok := Read(nil, "anything")
		assert.False(t, ok)
	})
}

func TestReadString(t *testing.T) {
	root := map[string]any{
		"name":  "bob",
		"count": 3.0,
	}

	assert.Equal(t, "bob", ReadString(root, "name"))
	assert.Equal(t, "3", ReadString(root, "count"))
	assert.Equal(t, "", ReadString(root, "absent"))
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "hello", Stringify("hello"))
	assert.Equal(t, "42", Stringify(42.0))
	assert.Equal(t, "true", Stringify(true))
	assert.Equal(t, `{"a":1}`, Stringify(map[string]any{"a": 1}))
	assert.Equal(t, "", Stringify(nil))
}

func TestRenderTemplate(t *testing.T) {
	root := map[string]any{
		"payload": map[string]any{
			"income": 75000.0,
			"name":   "alice",
		},
	}

	t.Run("substitutes paths", func(t *testing.T) {
		out := RenderTemplate(root, "Assess income {{payload.income}} for {{payload.name}}")
		assert.Equal(t, "Assess income 75000 for alice", out)
	})

	t.Run("unresolved placeholder renders empty", func(t *testing.T) {
		out := RenderTemplate(root, "missing: [{{payload.absent}}]")
		assert.Equal(t, "missing: []", out)
	})

	t.Run("no placeholders", func(t *testing.T) {
		out := RenderTemplate(root, "static prompt")
		assert.Equal(t, "static prompt", out)
	})
}
