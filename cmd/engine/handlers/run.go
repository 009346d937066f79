package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/chigozzdevv/zecflow-sub000/cmd/engine/consumer"
	"github.com/chigozzdevv/zecflow-sub000/common/logger"
	"github.com/chigozzdevv/zecflow-sub000/common/models"
	"github.com/chigozzdevv/zecflow-sub000/common/queue"
	"github.com/chigozzdevv/zecflow-sub000/common/redis"
	"github.com/chigozzdevv/zecflow-sub000/common/repository"
)

// RunHandler handles run trigger, inspection and cancellation requests
type RunHandler struct {
	runs      *repository.RunRepository
	workflows *repository.WorkflowRepository
	queue     queue.Queue
	redis     *redis.Client
	log       *logger.Logger
}

// NewRunHandler creates a new run handler
func NewRunHandler(runs *repository.RunRepository, workflows *repository.WorkflowRepository, q queue.Queue, client *redis.Client, log *logger.Logger) *RunHandler {
	return &RunHandler{
		runs:      runs,
		workflows: workflows,
		queue:     q,
		redis:     client,
		log:       log,
	}
}

// TriggerRunRequest is the body of a manual run trigger
type TriggerRunRequest struct {
	Payload    map[string]any  `json:"payload"`
	GraphPatch json.RawMessage `json:"graph_patch,omitempty"`
}

// TriggerRun creates a pending run and queues it for execution
// POST /api/v1/workflows/:id/runs
func (h *RunHandler) TriggerRun(c echo.Context) error {
	workflowID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "invalid workflow id"})
	}

	var request TriggerRunRequest
	if err := c.Bind(&request); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "invalid request body"})
	}

	workflow, err := h.workflows.GetWorkflow(c.Request().Context(), workflowID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]any{"error": "workflow not found"})
		}
		h.log.Error("failed to load workflow", "workflow_id", workflowID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]any{"error": "failed to load workflow"})
	}
	if !workflow.IsPublished() {
		return c.JSON(http.StatusConflict, map[string]any{"error": "workflow is not published"})
	}

	run := &models.Run{
		ID:         uuid.New(),
		WorkflowID: workflowID,
		OrgID:      workflow.OrgID,
		Payload:    request.Payload,
		GraphPatch: request.GraphPatch,
		Status:     models.RunPending,
	}
	if err := h.runs.Create(c.Request().Context(), run); err != nil {
		h.log.Error("failed to create run", "workflow_id", workflowID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]any{"error": "failed to create run"})
	}

	if err := h.queue.Publish(c.Request().Context(), consumer.RunQueueTopic, run.ID.String(), []byte(run.ID.String())); err != nil {
		h.log.Error("failed to queue run", "run_id", run.ID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]any{"error": "failed to queue run"})
	}

	h.log.Info("run triggered", "run_id", run.ID, "workflow_id", workflowID)
	return c.JSON(http.StatusCreated, map[string]any{
		"run_id": run.ID,
		"status": run.Status,
	})
}

// GetRun retrieves a run record
// GET /api/v1/runs/:id
func (h *RunHandler) GetRun(c echo.Context) error {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "invalid run id"})
	}

	run, err := h.runs.GetRun(c.Request().Context(), runID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]any{"error": "run not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]any{"error": "failed to load run"})
	}

	return c.JSON(http.StatusOK, run)
}

// GetTrace returns the execution trace of a run scoped to its workflow
// GET /api/v1/workflows/:id/runs/:run_id/trace
func (h *RunHandler) GetTrace(c echo.Context) error {
	workflowID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "invalid workflow id"})
	}
	runID, err := uuid.Parse(c.Param("run_id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "invalid run id"})
	}

	run, err := h.runs.GetRun(c.Request().Context(), runID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]any{"error": "run not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]any{"error": "failed to load run"})
	}
	if run.WorkflowID != workflowID {
		return c.JSON(http.StatusNotFound, map[string]any{"error": "run not found"})
	}

	trace := map[string]any{
		"run_id":      run.ID,
		"workflow_id": run.WorkflowID,
		"status":      run.Status,
		"created_at":  run.CreatedAt,
		"started_at":  run.StartedAt,
		"finished_at": run.FinishedAt,
	}
	if run.Result != nil {
		trace["steps"] = run.Result.Steps
		trace["outputs"] = run.Result.Outputs
		if run.Result.Error != "" {
			trace["error"] = run.Result.Error
		}
		if run.Result.CreditsUsed > 0 {
			trace["credits_used"] = run.Result.CreditsUsed
		}
	}

	return c.JSON(http.StatusOK, trace)
}

// ListRuns lists recent runs of a workflow
// GET /api/v1/workflows/:id/runs?limit=20
func (h *RunHandler) ListRuns(c echo.Context) error {
	workflowID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "invalid workflow id"})
	}

	limit := 20
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 200 {
			return c.JSON(http.StatusBadRequest, map[string]any{"error": "invalid limit"})
		}
		limit = parsed
	}

	runs, err := h.runs.ListByWorkflow(c.Request().Context(), workflowID, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]any{"error": "failed to list runs"})
	}

	return c.JSON(http.StatusOK, map[string]any{"runs": runs})
}

// CancelRun raises the cancellation flag for a run. The executor stops
// at the next node boundary.
// POST /api/v1/runs/:id/cancel
func (h *RunHandler) CancelRun(c echo.Context) error {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "invalid run id"})
	}

	run, err := h.runs.GetRun(c.Request().Context(), runID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]any{"error": "run not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]any{"error": "failed to load run"})
	}
	if run.Terminal() {
		return c.JSON(http.StatusConflict, map[string]any{"error": "run already finished", "status": run.Status})
	}

	if err := h.redis.RequestCancel(c.Request().Context(), runID); err != nil {
		h.log.Error("failed to flag cancellation", "run_id", runID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]any{"error": "failed to cancel run"})
	}

	h.log.Info("run cancellation requested", "run_id", runID)
	return c.JSON(http.StatusAccepted, map[string]any{"run_id": runID, "cancelling": true})
}
