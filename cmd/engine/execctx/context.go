// Package execctx holds the executor's value store: a mapping from flat
// keys ("nodeId.output") to values, kept consistent with a nested view
// so dotted reads against the whole context behave the same as reads
// into the payload.
package execctx

import (
	"strings"
)

// Context is the per-run value store. Not safe for concurrent use; a
// run executes sequentially within its own task.
type Context struct {
	values map[string]any
}

// New creates an empty context
func New() *Context {
	return &Context{values: make(map[string]any)}
}

// Get returns the value bound to a flat key
func (c *Context) Get(key string) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}

// Set binds a value to a flat key. For a dotted key "a.b.c" it also
// materializes the nested object at "a" (copy-on-write: existing nested
// objects are cloned, never mutated through prior references).
func (c *Context) Set(key string, value any) {
	c.values[key] = value

	segments := strings.Split(key, ".")
	if len(segments) < 2 {
		return
	}

	root := segments[0]
	nested := cloneMap(c.values[root])

	current := nested
	for _, segment := range segments[1 : len(segments)-1] {
		child := cloneMap(current[segment])
		current[segment] = child
		current = child
	}
	current[segments[len(segments)-1]] = value

	c.values[root] = nested
}

// SetResult writes a node's result under each applicable name using the
// overlay rules: a scalar result binds "<name>.result"; an object
// result binds one entry per key plus "<name>.result" for the whole
// object. Later writes overwrite.
func (c *Context) SetResult(name string, result any) {
	if name == "" {
		return
	}

	if obj, ok := result.(map[string]any); ok {
		for k, v := range obj {
			c.Set(name+"."+k, v)
		}
	}
	c.Set(name+".result", result)
}

// AsObject returns the nested view of the context, suitable as the
// "memory" root for dotted-path reads
func (c *Context) AsObject() map[string]any {
	obj := make(map[string]any, len(c.values))
	for key, value := range c.values {
		if strings.Contains(key, ".") {
			continue
		}
		obj[key] = value
	}
	return obj
}

// Keys returns every flat key currently bound
func (c *Context) Keys() []string {
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	return keys
}

func cloneMap(v any) map[string]any {
	existing, ok := v.(map[string]any)
	if !ok {
		return make(map[string]any)
	}
	clone := make(map[string]any, len(existing))
	for k, val := range existing {
		clone[k] = val
	}
	return clone
}
