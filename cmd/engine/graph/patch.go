package graph

import (
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"

	"github.com/chigozzdevv/zecflow-sub000/common/models"
)

// ApplyPatch applies an RFC-6902 JSON Patch to a graph, producing a new
// graph. Used for run-level overrides: the published graph stays
// untouched and the patched copy lives only for that run.
func ApplyPatch(g *models.WorkflowGraph, patchJSON []byte) (*models.WorkflowGraph, error) {
	patch, err := jsonpatch.DecodePatch(patchJSON)
	if err != nil {
		return nil, fmt.Errorf("decode graph patch: %w", err)
	}

	base, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("marshal graph: %w", err)
	}

	modified, err := patch.Apply(base)
	if err != nil {
		return nil, fmt.Errorf("apply graph patch: %w", err)
	}

	var patched models.WorkflowGraph
	if err := json.Unmarshal(modified, &patched); err != nil {
		return nil, fmt.Errorf("unmarshal patched graph: %w", err)
	}

	return &patched, nil
}
