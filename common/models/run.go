package models

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus represents the status of a workflow run
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// StepStatus represents the outcome of a single node dispatch
type StepStatus string

const (
	StepSuccess StepStatus = "success"
	StepFailed  StepStatus = "failed"
)

// ExecutionStep is one append-only record in a run's trace
type ExecutionStep struct {
	NodeID     string         `json:"nodeId"`
	BlockID    string         `json:"blockId"`
	Inputs     map[string]any `json:"inputs,omitempty"`
	Outputs    any            `json:"outputs,omitempty"`
	DurationMs int64          `json:"durationMs"`
	Status     StepStatus     `json:"status"`
	Error      string         `json:"error,omitempty"`
}

// RunResult is the persisted terminal result of a run:
// {steps, outputs, creditsUsed?} on success, {error} plus the partial
// step history on failure.
type RunResult struct {
	Steps       []ExecutionStep `json:"steps,omitempty"`
	Outputs     map[string]any  `json:"outputs,omitempty"`
	CreditsUsed int             `json:"creditsUsed,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// Run represents one execution of a workflow.
// Maps to: run table. Created by trigger paths in pending state; owned
// by exactly one executor which drives it to a terminal status.
type Run struct {
	ID         uuid.UUID `db:"id" json:"id"`
	WorkflowID uuid.UUID `db:"workflow_id" json:"workflow_id"`
	OrgID      string    `db:"org_id" json:"org_id"`

	// Trigger payload seeded into the value context
	Payload map[string]any `db:"payload" json:"payload,omitempty"`

	// Optional RFC-6902 patch applied to the published graph before
	// validation, for one-off run overrides
	GraphPatch []byte `db:"graph_patch" json:"graph_patch,omitempty"`

	Status RunStatus  `db:"status" json:"status"`
	Result *RunResult `db:"result" json:"result,omitempty"`

	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	StartedAt  *time.Time `db:"started_at" json:"started_at,omitempty"`
	FinishedAt *time.Time `db:"finished_at" json:"finished_at,omitempty"`
}

// Terminal reports whether the run has reached a final status
func (r *Run) Terminal() bool {
	switch r.Status {
	case RunSucceeded, RunFailed, RunCancelled:
		return true
	}
	return false
}
