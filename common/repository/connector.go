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

// ConnectorRepository handles database operations for connectors
type ConnectorRepository struct {
	db *db.DB
}

// NewConnectorRepository creates a new connector repository
func NewConnectorRepository(database *db.DB) *ConnectorRepository {
	return &ConnectorRepository{db: database}
}

// GetConnector retrieves a connector by its ID
func (r *ConnectorRepository) GetConnector(ctx context.Context, id uuid.UUID) (*models.Connector, error) {
	query := `
		SELECT id, org_id, name, base_url, headers, created_at, updated_at
		FROM connector
		WHERE id = $1
	`

	connector := &models.Connector{}
	var headersJSON []byte
	err := r.db.QueryRow(ctx, query, id).Scan(
		&connector.ID,
		&connector.OrgID,
		&connector.Name,
		&connector.BaseURL,
		&headersJSON,
		&connector.CreatedAt,
		&connector.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("connector %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get connector: %w", err)
	}

	if len(headersJSON) > 0 {
		if err := json.Unmarshal(headersJSON, &connector.Headers); err != nil {
			return nil, fmt.Errorf("failed to decode connector headers: %w", err)
		}
	}

	return connector, nil
}
