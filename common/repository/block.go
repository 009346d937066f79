package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/chigozzdevv/zecflow-sub000/common/db"
	"github.com/chigozzdevv/zecflow-sub000/common/models"
)

// BlockRepository handles database operations for workflow blocks
type BlockRepository struct {
	db *db.DB
}

// NewBlockRepository creates a new block repository
func NewBlockRepository(database *db.DB) *BlockRepository {
	return &BlockRepository{db: database}
}

// ListByWorkflow retrieves a workflow's blocks in materialization order:
// (position_order, created_at) ascending. The materializer depends on
// this ordering for deterministic layout and topological tie-breaks.
func (r *BlockRepository) ListByWorkflow(ctx context.Context, workflowID uuid.UUID) ([]models.Block, error) {
	query := `
		SELECT id, workflow_id, block_id, data, position_order, alias, connector_id, dependencies, position, created_at, updated_at
		FROM block
		WHERE workflow_id = $1
		ORDER BY position_order ASC, created_at ASC
	`

	rows, err := r.db.Query(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to list blocks: %w", err)
	}
	defer rows.Close()

	var blocks []models.Block
	for rows.Next() {
		block := models.Block{}
		var dataJSON, depsJSON, positionJSON []byte
		err := rows.Scan(
			&block.ID,
			&block.WorkflowID,
			&block.BlockID,
			&dataJSON,
			&block.Order,
			&block.Alias,
			&block.ConnectorID,
			&depsJSON,
			&positionJSON,
			&block.CreatedAt,
			&block.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan block: %w", err)
		}

		if len(dataJSON) > 0 {
			if err := json.Unmarshal(dataJSON, &block.Data); err != nil {
				return nil, fmt.Errorf("failed to decode block data: %w", err)
			}
		}
		if len(depsJSON) > 0 {
			if err := json.Unmarshal(depsJSON, &block.Dependencies); err != nil {
				return nil, fmt.Errorf("failed to decode block dependencies: %w", err)
			}
		}
		if len(positionJSON) > 0 {
			block.Position = &models.Position{}
			if err := json.Unmarshal(positionJSON, block.Position); err != nil {
				return nil, fmt.Errorf("failed to decode block position: %w", err)
			}
		}

		blocks = append(blocks, block)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating blocks: %w", err)
	}

	return blocks, nil
}

// Create inserts a new block
func (r *BlockRepository) Create(ctx context.Context, block *models.Block) error {
	dataJSON, err := json.Marshal(block.Data)
	if err != nil {
		return fmt.Errorf("failed to encode block data: %w", err)
	}
	depsJSON, err := json.Marshal(block.Dependencies)
	if err != nil {
		return fmt.Errorf("failed to encode block dependencies: %w", err)
	}

	query := `
		INSERT INTO block (id, workflow_id, block_id, data, position_order, alias, connector_id, dependencies, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
	`

	_, err = r.db.Exec(ctx, query,
		block.ID, block.WorkflowID, block.BlockID, dataJSON,
		block.Order, block.Alias, block.ConnectorID, depsJSON)
	if err != nil {
		return fmt.Errorf("failed to create block: %w", err)
	}
	return nil
}
