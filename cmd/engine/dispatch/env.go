package dispatch

import (
	"github.com/chigozzdevv/zecflow-sub000/cmd/engine/execctx"
	"github.com/chigozzdevv/zecflow-sub000/cmd/engine/resolver"
	"github.com/chigozzdevv/zecflow-sub000/common/models"
)

// Env bundles everything a node sees at dispatch time
type Env struct {
	RunID   string
	Payload map[string]any
	Ctx     *execctx.Context
	Graph   *models.WorkflowGraph
}

// Root builds the object dotted config paths resolve against:
// "payload.*" reads the trigger payload, "memory.*" reads the value
// context, and node-id or alias prefixed paths read the context
// overlays directly.
func (e *Env) Root() map[string]any {
	memory := e.Ctx.AsObject()

	root := make(map[string]any, len(memory)+2)
	for k, v := range memory {
		root[k] = v
	}
	root["payload"] = e.Payload
	root["memory"] = memory
	return root
}

// Resolve reads a dotted path against the env root
func (e *Env) Resolve(path string) (any, bool) {
	return resolver.Read(e.Root(), path)
}

// GatherInputs starts from a copy of the node's data and attaches the
// values flowing in over edges under "__inputs". For each incoming
// edge: the source output name is the edge's sourceHandle, defaulting
// to "value" for input nodes and "result" otherwise; the target handle
// is the edge's targetHandle, defaulting to the input node's fieldName
// when set, else "value".
func GatherInputs(e *Env, node *models.GraphNode) map[string]any {
	data := make(map[string]any, len(node.Data)+1)
	for k, v := range node.Data {
		data[k] = v
	}

	inputs := make(map[string]any)
	for _, edge := range e.Graph.IncomingEdges(node.ID) {
		source := e.Graph.Node(edge.Source)
		if source == nil {
			continue
		}

		sourceOutput := edge.SourceHandle
		if sourceOutput == "" {
			if source.Type == models.NodeInput {
				sourceOutput = "value"
			} else {
				sourceOutput = "result"
			}
		}

		handle := edge.TargetHandle
		if handle == "" {
			if source.Type == models.NodeInput {
				if fieldName, ok := source.Data["fieldName"].(string); ok && fieldName != "" {
					handle = fieldName
				} else {
					handle = "value"
				}
			} else {
				handle = "value"
			}
		}

		if value, ok := e.Ctx.Get(edge.Source + "." + sourceOutput); ok {
			inputs[handle] = value
		}
	}

	data["__inputs"] = inputs
	return data
}
