package models

import (
	"time"

	"github.com/google/uuid"
)

// WorkflowStatus represents the lifecycle status of a workflow
type WorkflowStatus string

const (
	WorkflowDraft     WorkflowStatus = "draft"
	WorkflowPublished WorkflowStatus = "published"
	WorkflowPaused    WorkflowStatus = "paused"
)

// Workflow represents a persisted automation workflow.
// Maps to: workflow table.
type Workflow struct {
	ID     uuid.UUID      `db:"id" json:"id"`
	OrgID  string         `db:"org_id" json:"org_id"`
	Name   string         `db:"name" json:"name"`
	Status WorkflowStatus `db:"status" json:"status"`

	// Optional references wired by the CRUD surface
	DatasetID *uuid.UUID `db:"dataset_id" json:"dataset_id,omitempty"`
	TriggerID *uuid.UUID `db:"trigger_id" json:"trigger_id,omitempty"`

	// Optional CEL expression over the trigger payload. A run whose
	// payload fails the filter terminates before any node dispatch.
	TriggerFilter string `db:"trigger_filter" json:"trigger_filter,omitempty"`

	// Graph is materialized and embedded on publish. Publish is the
	// commit point: block edits after publish do not affect runs until
	// the workflow is re-published.
	Graph *WorkflowGraph `db:"graph" json:"graph,omitempty"`

	// Version increments on every publish; cache keys include it.
	Version int `db:"version" json:"version"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// IsPublished reports whether the workflow has an embedded runnable graph
func (w *Workflow) IsPublished() bool {
	return w.Status == WorkflowPublished && w.Graph != nil
}
