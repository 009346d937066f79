// Package graph assembles and validates runnable workflow graphs from
// persisted block records.
package graph

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/chigozzdevv/zecflow-sub000/common/logger"
	"github.com/chigozzdevv/zecflow-sub000/common/models"
	"github.com/chigozzdevv/zecflow-sub000/common/registry"
)

// ErrNoBlocks is returned when a workflow has nothing to materialize
var ErrNoBlocks = errors.New("workflow has no blocks yet")

// BlockLoader loads a workflow's blocks ordered by (order, created_at)
type BlockLoader interface {
	ListByWorkflow(ctx context.Context, workflowID uuid.UUID) ([]models.Block, error)
}

// ConnectorLoader resolves connector references on blocks
type ConnectorLoader interface {
	GetConnector(ctx context.Context, id uuid.UUID) (*models.Connector, error)
}

// Materializer builds a canonical WorkflowGraph from stored blocks and
// their dependency edges
type Materializer struct {
	blocks     BlockLoader
	connectors ConnectorLoader
	log        *logger.Logger
}

// NewMaterializer creates a new materializer
func NewMaterializer(blocks BlockLoader, connectors ConnectorLoader, log *logger.Logger) *Materializer {
	return &Materializer{
		blocks:     blocks,
		connectors: connectors,
		log:        log,
	}
}

// Materialize assembles the runnable graph for a workflow. The result
// satisfies the graph invariants: edges reference existing nodes, at
// most one incoming edge per target handle, input-slot metadata agrees
// with the edge set, and layout positions are normalized.
func (m *Materializer) Materialize(ctx context.Context, workflowID uuid.UUID) (*models.WorkflowGraph, error) {
	blocks, err := m.blocks.ListByWorkflow(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("load blocks: %w", err)
	}
	if len(blocks) == 0 {
		return nil, ErrNoBlocks
	}

	g := &models.WorkflowGraph{}

	for _, block := range blocks {
		def, err := registry.Lookup(block.BlockID)
		if err != nil {
			return nil, err
		}

		node := models.GraphNode{
			ID:       block.ID.String(),
			BlockID:  block.BlockID,
			Type:     models.NodeType(registry.NodeTypeFor(def.Category)),
			Data:     block.Data,
			Alias:    block.Alias,
			Position: block.Position,
		}
		if node.Data == nil {
			node.Data = map[string]any{}
		}

		if block.ConnectorID != nil {
			connector, err := m.connectors.GetConnector(ctx, *block.ConnectorID)
			if err != nil {
				return nil, fmt.Errorf("load connector for block %s: %w", block.ID, err)
			}
			node.Connector = connector
		} else if def.RequiresConnector {
			return nil, fmt.Errorf("block %s (%s) requires a connector", block.ID, block.BlockID)
		}

		g.Nodes = append(g.Nodes, node)

		edges, err := m.edgesFor(&block)
		if err != nil {
			return nil, err
		}
		g.Edges = append(g.Edges, edges...)
	}

	normalizeLayout(g)

	return g, nil
}

// edgesFor normalizes a block's dependency list, reconciles it with the
// block's __inputSlots metadata, and deduplicates by
// (source, target, targetHandle). Slots without a corresponding
// dependency edge produce one; a slot that contradicts an edge on the
// same handle is a materialization error.
func (m *Materializer) edgesFor(block *models.Block) ([]models.GraphEdge, error) {
	target := block.ID.String()
	slots := block.InputSlots()

	seen := make(map[string]bool)
	handleSource := make(map[string]string)
	var edges []models.GraphEdge

	appendEdge := func(edge models.GraphEdge) error {
		if edge.TargetHandle != "" {
			if prev, ok := handleSource[edge.TargetHandle]; ok {
				if prev != edge.Source {
					return fmt.Errorf("block %s: input slot %q bound to both %s and %s",
						target, edge.TargetHandle, prev, edge.Source)
				}
			} else {
				handleSource[edge.TargetHandle] = edge.Source
			}
		}

		key := edge.Source + "\x00" + edge.Target + "\x00" + edge.TargetHandle
		if seen[key] {
			return nil
		}
		seen[key] = true

		edge.ID = fmt.Sprintf("e-%s-%s-%s", edge.Source, edge.Target, edge.TargetHandle)
		edges = append(edges, edge)
		return nil
	}

	for _, dep := range block.Dependencies {
		edge := models.GraphEdge{
			Source:       dep.Source,
			Target:       target,
			SourceHandle: dep.SourceHandle,
			TargetHandle: dep.TargetHandle,
		}

		// Adopt slot metadata where the persisted dependency is silent
		if edge.TargetHandle == "" {
			for handle, slot := range slots {
				if slot.Source == dep.Source {
					edge.TargetHandle = handle
					if edge.SourceHandle == "" {
						edge.SourceHandle = slot.Output
					}
					break
				}
			}
		} else if slot, ok := slots[edge.TargetHandle]; ok {
			if slot.Source != edge.Source {
				return nil, fmt.Errorf("block %s: input slot %q names source %s but edge names %s",
					target, edge.TargetHandle, slot.Source, edge.Source)
			}
			if edge.SourceHandle == "" {
				edge.SourceHandle = slot.Output
			}
		}

		if err := appendEdge(edge); err != nil {
			return nil, err
		}
	}

	// Slots are authoritative too: synthesize edges the dependency list
	// dropped so the invariant holds either way the UI wrote the block.
	for handle, slot := range slots {
		if _, covered := handleSource[handle]; covered {
			continue
		}
		edge := models.GraphEdge{
			Source:       slot.Source,
			Target:       target,
			SourceHandle: slot.Output,
			TargetHandle: handle,
		}
		if err := appendEdge(edge); err != nil {
			return nil, err
		}
	}

	return edges, nil
}

const (
	gridOriginX = 120
	gridOriginY = 80
	gridStepX   = 220
	gridStepY   = 140
	minSpread   = 140
	gridColumns = 4
)

// normalizeLayout replaces degenerate layouts with a grid. A layout is
// degenerate when any position is missing or non-finite, when the nodes
// collapse onto fewer than ceil(N/3) distinct points, or when both axis
// spreads fall below the minimum spread.
func normalizeLayout(g *models.WorkflowGraph) {
	if len(g.Nodes) == 0 {
		return
	}

	if !layoutDegenerate(g) {
		return
	}

	for i := range g.Nodes {
		col := i % gridColumns
		row := i / gridColumns
		g.Nodes[i].Position = &models.Position{
			X: float64(gridOriginX + col*gridStepX),
			Y: float64(gridOriginY + row*gridStepY),
		}
	}
}

func layoutDegenerate(g *models.WorkflowGraph) bool {
	distinct := make(map[[2]float64]bool)
	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)

	for i := range g.Nodes {
		p := g.Nodes[i].Position
		if p == nil || !finite(p.X) || !finite(p.Y) {
			return true
		}
		distinct[[2]float64{p.X, p.Y}] = true
		minX = math.Min(minX, p.X)
		maxX = math.Max(maxX, p.X)
		minY = math.Min(minY, p.Y)
		maxY = math.Max(maxY, p.Y)
	}

	required := (len(g.Nodes) + 2) / 3
	if len(distinct) < required {
		return true
	}

	return maxX-minX < minSpread && maxY-minY < minSpread
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
