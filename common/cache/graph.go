package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/chigozzdevv/zecflow-sub000/common/models"
)

// GraphCache caches materialized workflow graphs. Keys carry the
// workflow version, so a publish naturally invalidates older entries by
// never reading them again.
type GraphCache struct {
	cache Cache
	ttl   time.Duration
}

// NewGraphCache wraps a cache with graph encoding
func NewGraphCache(cache Cache, ttl time.Duration) *GraphCache {
	return &GraphCache{cache: cache, ttl: ttl}
}

func graphKey(workflowID uuid.UUID, version int) string {
	return fmt.Sprintf("graph:%s:%d", workflowID, version)
}

// Get returns the cached graph for a workflow version, if present
func (g *GraphCache) Get(ctx context.Context, workflowID uuid.UUID, version int) (*models.WorkflowGraph, bool) {
	raw, found, err := g.cache.Get(ctx, graphKey(workflowID, version))
	if err != nil || !found {
		return nil, false
	}

	graph := &models.WorkflowGraph{}
	if err := json.Unmarshal(raw, graph); err != nil {
		return nil, false
	}
	return graph, true
}

// Put stores a materialized graph for a workflow version
func (g *GraphCache) Put(ctx context.Context, workflowID uuid.UUID, version int, graph *models.WorkflowGraph) error {
	raw, err := json.Marshal(graph)
	if err != nil {
		return fmt.Errorf("encode graph: %w", err)
	}
	return g.cache.Set(ctx, graphKey(workflowID, version), raw, g.ttl)
}
