package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/chigozzdevv/zecflow-sub000/cmd/engine/condition"
	"github.com/chigozzdevv/zecflow-sub000/cmd/engine/graph"
	"github.com/chigozzdevv/zecflow-sub000/common/logger"
	"github.com/chigozzdevv/zecflow-sub000/common/models"
	"github.com/chigozzdevv/zecflow-sub000/common/registry"
	"github.com/chigozzdevv/zecflow-sub000/common/repository"
)

// WorkflowHandler handles workflow publish, block and registry requests
type WorkflowHandler struct {
	workflows    *repository.WorkflowRepository
	blocks       *repository.BlockRepository
	materializer *graph.Materializer
	filters      *condition.Evaluator
	log          *logger.Logger
}

// NewWorkflowHandler creates a new workflow handler
func NewWorkflowHandler(workflows *repository.WorkflowRepository, blocks *repository.BlockRepository, materializer *graph.Materializer, filters *condition.Evaluator, log *logger.Logger) *WorkflowHandler {
	return &WorkflowHandler{
		workflows:    workflows,
		blocks:       blocks,
		materializer: materializer,
		filters:      filters,
		log:          log,
	}
}

// PublishWorkflow materializes the workflow's blocks, validates the
// graph and embeds it. Publish is the commit point: runs always execute
// the graph embedded at the latest publish.
// POST /api/v1/workflows/:id/publish
func (h *WorkflowHandler) PublishWorkflow(c echo.Context) error {
	workflowID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "invalid workflow id"})
	}

	g, err := h.materializer.Materialize(c.Request().Context(), workflowID)
	if err != nil {
		if errors.Is(err, graph.ErrNoBlocks) {
			return c.JSON(http.StatusUnprocessableEntity, map[string]any{"error": err.Error()})
		}
		h.log.Error("materialization failed", "workflow_id", workflowID, "error", err)
		return c.JSON(http.StatusUnprocessableEntity, map[string]any{"error": err.Error()})
	}

	if err := graph.Validate(g); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, map[string]any{"error": err.Error()})
	}

	version, err := h.workflows.Publish(c.Request().Context(), workflowID, g)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]any{"error": "workflow not found"})
		}
		h.log.Error("publish failed", "workflow_id", workflowID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]any{"error": "failed to publish workflow"})
	}

	h.log.Info("workflow published", "workflow_id", workflowID, "version", version, "nodes", len(g.Nodes))
	return c.JSON(http.StatusOK, map[string]any{
		"workflow_id": workflowID,
		"version":     version,
		"nodes":       len(g.Nodes),
		"edges":       len(g.Edges),
	})
}

type addBlockRequest struct {
	BlockID      string              `json:"block_id"`
	Data         map[string]any      `json:"data"`
	Order        int                 `json:"order"`
	Alias        string              `json:"alias"`
	ConnectorID  *uuid.UUID          `json:"connector_id"`
	Dependencies []models.Dependency `json:"dependencies"`
}

// AddBlock appends a block to a draft workflow. The block's config is
// schema-checked against the registry here so a published graph never
// carries a config the dispatcher cannot use.
// POST /api/v1/workflows/:id/blocks
func (h *WorkflowHandler) AddBlock(c echo.Context) error {
	workflowID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "invalid workflow id"})
	}

	var req addBlockRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "invalid request body"})
	}

	def, err := registry.Lookup(req.BlockID)
	if err != nil {
		return c.JSON(http.StatusUnprocessableEntity, map[string]any{"error": err.Error()})
	}
	if req.Data == nil {
		req.Data = map[string]any{}
	}
	if err := def.ValidateConfig(req.Data); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, map[string]any{"error": err.Error()})
	}
	if def.RequiresConnector && req.ConnectorID == nil {
		return c.JSON(http.StatusUnprocessableEntity, map[string]any{"error": req.BlockID + " requires a connector"})
	}

	if _, err := h.workflows.GetWorkflow(c.Request().Context(), workflowID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]any{"error": "workflow not found"})
		}
		h.log.Error("workflow lookup failed", "workflow_id", workflowID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]any{"error": "failed to load workflow"})
	}

	block := &models.Block{
		ID:           uuid.New(),
		WorkflowID:   workflowID,
		BlockID:      req.BlockID,
		Data:         req.Data,
		Order:        req.Order,
		Alias:        req.Alias,
		ConnectorID:  req.ConnectorID,
		Dependencies: req.Dependencies,
	}
	if err := h.blocks.Create(c.Request().Context(), block); err != nil {
		h.log.Error("block create failed", "workflow_id", workflowID, "block_id", req.BlockID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]any{"error": "failed to create block"})
	}

	h.log.Info("block added", "workflow_id", workflowID, "block_id", req.BlockID, "id", block.ID)
	return c.JSON(http.StatusCreated, map[string]any{"id": block.ID, "block_id": block.BlockID})
}

type setTriggerFilterRequest struct {
	Expression string `json:"expression"`
}

// SetTriggerFilter updates the workflow's payload filter. The
// expression is compiled here so a trigger never hits a filter that
// cannot run; an empty expression clears the filter.
// PUT /api/v1/workflows/:id/trigger-filter
func (h *WorkflowHandler) SetTriggerFilter(c echo.Context) error {
	workflowID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "invalid workflow id"})
	}

	var req setTriggerFilterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "invalid request body"})
	}

	if err := h.filters.Check(req.Expression); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, map[string]any{"error": err.Error()})
	}

	if err := h.workflows.SetTriggerFilter(c.Request().Context(), workflowID, req.Expression); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]any{"error": "workflow not found"})
		}
		h.log.Error("trigger filter update failed", "workflow_id", workflowID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]any{"error": "failed to update trigger filter"})
	}

	h.log.Info("trigger filter updated", "workflow_id", workflowID)
	return c.JSON(http.StatusOK, map[string]any{"workflow_id": workflowID})
}

// ListBlocks returns the closed block-definition registry
// GET /api/v1/blocks
func (h *WorkflowHandler) ListBlocks(c echo.Context) error {
	definitions := registry.All()

	blocks := make([]map[string]any, 0, len(definitions))
	for _, def := range definitions {
		blocks = append(blocks, map[string]any{
			"id":                 def.ID,
			"handler":            def.Handler,
			"category":           def.Category,
			"cost":               def.Cost,
			"requires_connector": def.RequiresConnector,
		})
	}

	return c.JSON(http.StatusOK, map[string]any{"blocks": blocks})
}
