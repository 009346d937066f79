package dispatch

import (
	"fmt"
	"math"
	"strconv"

	"github.com/chigozzdevv/zecflow-sub000/cmd/engine/resolver"
	"github.com/chigozzdevv/zecflow-sub000/common/models"
	"github.com/chigozzdevv/zecflow-sub000/common/registry"
)

// OperandHandles returns the named input slots of an MPC-eligible
// block, in declaration order
func OperandHandles(blockID string) []string {
	if blockID == registry.BlockLogicIfElse {
		return []string{"condition", "true", "false"}
	}
	return []string{"a", "b"}
}

var operandPathKeys = map[string]string{
	"a":         "aPath",
	"b":         "bPath",
	"condition": "conditionPath",
	"true":      "truePath",
	"false":     "falsePath",
}

// ResolveOperand resolves one named operand of an MPC-eligible node, in
// priority order: input-slot metadata, then edge-provided inputs
// gathered under __inputs, then the block's path config.
func ResolveOperand(e *Env, data map[string]any, handle string) (any, bool) {
	// 1. __inputSlots.<handle> -> memory.<slot.source>.<slot.output|result>
	if slots, ok := data["__inputSlots"].(map[string]any); ok {
		if entry, ok := slots[handle].(map[string]any); ok {
			if source, ok := entry["source"].(string); ok && source != "" {
				output, _ := entry["output"].(string)
				if output == "" {
					output = "result"
				}
				if value, ok := e.Resolve("memory." + source + "." + output); ok {
					return value, true
				}
			}
		}
	}

	// 2. edge-provided input
	if inputs, ok := data["__inputs"].(map[string]any); ok {
		if value, ok := inputs[handle]; ok {
			return value, true
		}
	}

	// 3. path config
	if pathKey, ok := operandPathKeys[handle]; ok {
		if path, ok := data[pathKey].(string); ok && path != "" {
			if value, ok := e.Resolve(path); ok {
				return value, true
			}
		}
	}

	return nil, false
}

// ResolveOperands resolves every operand of an MPC-eligible node and
// validates each as an integer literal or boolean (booleans coerce to
// 0/1). The returned mapping is keyed by handle name.
func ResolveOperands(e *Env, node *models.GraphNode, data map[string]any, external func(handle string) bool) (map[string]any, error) {
	operands := make(map[string]any)
	for _, handle := range OperandHandles(node.BlockID) {
		if external != nil && !external(handle) {
			continue
		}
		raw, ok := ResolveOperand(e, data, handle)
		if !ok {
			return nil, fmt.Errorf("missing operand %q for %s node %s", handle, node.BlockID, node.ID)
		}
		value, err := CoerceInteger(raw)
		if err != nil {
			return nil, fmt.Errorf("operand %q of node %s: %w", handle, node.ID, err)
		}
		operands[handle] = value
	}
	return operands, nil
}

// CoerceInteger validates a private-compute operand. Integers pass
// through, booleans coerce to 0/1, and integral strings parse.
// Anything else is rejected.
func CoerceInteger(v any) (int64, error) {
	switch value := v.(type) {
	case bool:
		if value {
			return 1, nil
		}
		return 0, nil
	case int:
		return int64(value), nil
	case int64:
		return value, nil
	case float64:
		if value != math.Trunc(value) {
			return 0, fmt.Errorf("Invalid integer operand: %v", value)
		}
		return int64(value), nil
	case string:
		if value == "true" {
			return 1, nil
		}
		if value == "false" {
			return 0, nil
		}
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("Invalid integer operand: %q", value)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("Invalid integer operand: %s", resolver.Stringify(v))
	}
}

// NormalizeResult converts a raw private-compute output into the value
// the context records: comparisons and branch conditions normalize
// 0/1/"0"/"1"/"true"/"false"/bool to a boolean, arithmetic normalizes
// to a number where possible and otherwise keeps the raw value.
func NormalizeResult(blockID string, raw any) any {
	if blockID == registry.BlockMathGreaterThan {
		return normalizeBool(raw)
	}
	return normalizeNumber(raw)
}

func normalizeBool(raw any) any {
	switch v := raw.(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case int:
		return v != 0
	case int64:
		return v != 0
	case string:
		switch v {
		case "1", "true":
			return true
		case "0", "false":
			return false
		}
	}
	return raw
}

func normalizeNumber(raw any) any {
	switch v := raw.(type) {
	case float64, int, int64:
		return v
	case bool:
		if v {
			return 1
		}
		return 0
	case string:
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return raw
}
