package models

import (
	"time"

	"github.com/google/uuid"
)

// Connector holds a reusable HTTP endpoint definition referenced by
// connector-request blocks. Headers arrive pre-decrypted from the
// secrets collaborator; the engine never reads ciphertexts.
type Connector struct {
	ID      uuid.UUID         `db:"id" json:"id"`
	OrgID   string            `db:"org_id" json:"org_id"`
	Name    string            `db:"name" json:"name"`
	BaseURL string            `db:"base_url" json:"baseUrl"`
	Headers map[string]string `db:"headers" json:"headers,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
