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

// RunRepository handles database operations for workflow runs
type RunRepository struct {
	db *db.DB
}

// NewRunRepository creates a new run repository
func NewRunRepository(database *db.DB) *RunRepository {
	return &RunRepository{db: database}
}

// Create inserts a new pending run
func (r *RunRepository) Create(ctx context.Context, run *models.Run) error {
	payloadJSON, err := json.Marshal(run.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	query := `
		INSERT INTO run (id, workflow_id, org_id, payload, graph_patch, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
	`

	var patch any
	if len(run.GraphPatch) > 0 {
		patch = run.GraphPatch
	}

	_, err = r.db.Exec(ctx, query, run.ID, run.WorkflowID, run.OrgID, payloadJSON, patch, models.RunPending)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by its ID
func (r *RunRepository) GetRun(ctx context.Context, id uuid.UUID) (*models.Run, error) {
	query := `
		SELECT id, workflow_id, org_id, payload, graph_patch, status, result, created_at, started_at, finished_at
		FROM run
		WHERE id = $1
	`

	run := &models.Run{}
	var payloadJSON, resultJSON []byte
	err := r.db.QueryRow(ctx, query, id).Scan(
		&run.ID,
		&run.WorkflowID,
		&run.OrgID,
		&payloadJSON,
		&run.GraphPatch,
		&run.Status,
		&resultJSON,
		&run.CreatedAt,
		&run.StartedAt,
		&run.FinishedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	if len(payloadJSON) > 0 {
		if err := json.Unmarshal(payloadJSON, &run.Payload); err != nil {
			return nil, fmt.Errorf("failed to decode run payload: %w", err)
		}
	}
	if len(resultJSON) > 0 {
		run.Result = &models.RunResult{}
		if err := json.Unmarshal(resultJSON, run.Result); err != nil {
			return nil, fmt.Errorf("failed to decode run result: %w", err)
		}
	}

	return run, nil
}

// MarkRunning transitions a pending run to running and stamps started_at.
// The WHERE clause keeps the transition idempotent under retries.
func (r *RunRepository) MarkRunning(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE run
		SET status = $2, started_at = now()
		WHERE id = $1 AND status = $3
	`

	_, err := r.db.Exec(ctx, query, id, models.RunRunning, models.RunPending)
	if err != nil {
		return fmt.Errorf("failed to mark run running: %w", err)
	}
	return nil
}

// Finish writes the terminal status and result atomically
func (r *RunRepository) Finish(ctx context.Context, id uuid.UUID, status models.RunStatus, result *models.RunResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode run result: %w", err)
	}

	query := `
		UPDATE run
		SET status = $2, result = $3, finished_at = now()
		WHERE id = $1
	`

	_, err = r.db.Exec(ctx, query, id, status, resultJSON)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

// ListByWorkflow retrieves recent runs of a workflow, newest first
func (r *RunRepository) ListByWorkflow(ctx context.Context, workflowID uuid.UUID, limit int) ([]*models.Run, error) {
	query := `
		SELECT id, workflow_id, org_id, status, created_at, started_at, finished_at
		FROM run
		WHERE workflow_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, workflowID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run := &models.Run{}
		err := rows.Scan(
			&run.ID,
			&run.WorkflowID,
			&run.OrgID,
			&run.Status,
			&run.CreatedAt,
			&run.StartedAt,
			&run.FinishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}
