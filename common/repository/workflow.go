package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/chigozzdevv/zecflow-sub000/common/db"
	"github.com/chigozzdevv/zecflow-sub000/common/models"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("not found")

// WorkflowRepository handles database operations for workflows
type WorkflowRepository struct {
	db *db.DB
}

// NewWorkflowRepository creates a new workflow repository
func NewWorkflowRepository(database *db.DB) *WorkflowRepository {
	return &WorkflowRepository{db: database}
}

// GetWorkflow retrieves a workflow by its ID
func (r *WorkflowRepository) GetWorkflow(ctx context.Context, id uuid.UUID) (*models.Workflow, error) {
	query := `
		SELECT id, org_id, name, status, trigger_filter, graph, version, created_at, updated_at
		FROM workflow
		WHERE id = $1
	`

	workflow := &models.Workflow{}
	var graphJSON []byte
	err := r.db.QueryRow(ctx, query, id).Scan(
		&workflow.ID,
		&workflow.OrgID,
		&workflow.Name,
		&workflow.Status,
		&workflow.TriggerFilter,
		&graphJSON,
		&workflow.Version,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("workflow %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}

	if len(graphJSON) > 0 {
		workflow.Graph = &models.WorkflowGraph{}
		if err := json.Unmarshal(graphJSON, workflow.Graph); err != nil {
			return nil, fmt.Errorf("failed to decode workflow graph: %w", err)
		}
	}

	return workflow, nil
}

// Publish embeds a materialized graph, bumps the version and marks the
// workflow published, in one statement
func (r *WorkflowRepository) Publish(ctx context.Context, id uuid.UUID, graph *models.WorkflowGraph) (int, error) {
	graphJSON, err := json.Marshal(graph)
	if err != nil {
		return 0, fmt.Errorf("failed to encode graph: %w", err)
	}

	query := `
		UPDATE workflow
		SET graph = $2, status = 'published', version = version + 1, updated_at = now()
		WHERE id = $1
		RETURNING version
	`

	var version int
	err = r.db.QueryRow(ctx, query, id, graphJSON).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("workflow %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to publish workflow: %w", err)
	}

	return version, nil
}

// SetTriggerFilter updates the workflow's payload filter expression
func (r *WorkflowRepository) SetTriggerFilter(ctx context.Context, id uuid.UUID, expression string) error {
	query := `
		UPDATE workflow
		SET trigger_filter = $2, updated_at = now()
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query, id, expression)
	if err != nil {
		return fmt.Errorf("failed to set trigger filter: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("workflow %s: %w", id, ErrNotFound)
	}
	return nil
}
