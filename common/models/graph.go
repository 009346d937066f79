package models

// NodeType classifies a graph node by the role it plays at execution time
type NodeType string

const (
	NodeInput     NodeType = "input"
	NodeCompute   NodeType = "compute"
	NodeAction    NodeType = "action"
	NodeOutput    NodeType = "output"
	NodeCondition NodeType = "condition"
	NodeTransform NodeType = "transform"
)

// Position is a 2D layout coordinate
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// GraphNode is one vertex of a materialized, runnable workflow graph
type GraphNode struct {
	ID        string         `json:"id"`
	BlockID   string         `json:"blockId"`
	Type      NodeType       `json:"type"`
	Data      map[string]any `json:"data"`
	Alias     string         `json:"alias,omitempty"`
	Connector *Connector     `json:"connector,omitempty"`
	Position  *Position      `json:"position,omitempty"`
}

// GraphEdge is a directed data dependency between two nodes. Identity is
// (source, target, targetHandle); the materializer deduplicates by it.
type GraphEdge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
}

// WorkflowGraph is the materialized DAG embedded in a workflow on publish
type WorkflowGraph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// Node returns the node with the given id, or nil
func (g *WorkflowGraph) Node(id string) *GraphNode {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i]
		}
	}
	return nil
}

// IncomingEdges returns all edges targeting the given node, in graph order
func (g *WorkflowGraph) IncomingEdges(nodeID string) []GraphEdge {
	var edges []GraphEdge
	for _, e := range g.Edges {
		if e.Target == nodeID {
			edges = append(edges, e)
		}
	}
	return edges
}

// OutputNodes returns the nodes whose bindings form the run result
func (g *WorkflowGraph) OutputNodes() []GraphNode {
	var outputs []GraphNode
	for _, n := range g.Nodes {
		if n.Type == NodeOutput {
			outputs = append(outputs, n)
		}
	}
	return outputs
}
