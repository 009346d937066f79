package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Block represents one persisted node configuration inside a workflow.
// Maps to: block table (ordered by (position_order, created_at)).
type Block struct {
	ID         uuid.UUID `db:"id" json:"id"`
	WorkflowID uuid.UUID `db:"workflow_id" json:"workflow_id"`

	// Type tag drawn from the closed block-definition registry
	BlockID string `db:"block_id" json:"block_id"`

	// Opaque configuration mapping, schema-checked at write time by the
	// registry's per-type validator
	Data map[string]any `db:"data" json:"data"`

	// Ordering integer used by the materializer
	Order int `db:"position_order" json:"order"`

	Alias       string     `db:"alias" json:"alias,omitempty"`
	ConnectorID *uuid.UUID `db:"connector_id" json:"connector_id,omitempty"`

	// Dependency edges on other blocks in the same workflow
	Dependencies []Dependency `db:"dependencies" json:"dependencies,omitempty"`

	// Layout position, absent until the UI persists a drag
	Position *Position `db:"position" json:"position,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Dependency is a directed data dependency on another block. The bare
// string form ("<blockID>") is accepted on the wire and normalized to
// {Source: blockID}.
type Dependency struct {
	Source       string `json:"source"`
	TargetHandle string `json:"targetHandle,omitempty"`
	SourceHandle string `json:"sourceHandle,omitempty"`
}

// UnmarshalJSON accepts either a bare block-id string or the object form
func (d *Dependency) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		d.Source = s
		d.TargetHandle = ""
		d.SourceHandle = ""
		return nil
	}

	type dependency Dependency
	var obj dependency
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("dependency must be a string or an object: %w", err)
	}
	*d = Dependency(obj)
	return nil
}

// InputSlot is per-block metadata binding a target handle to the
// upstream (source, output) pair. Redundant with edges; the materializer
// reconciles the two and treats both as authoritative.
type InputSlot struct {
	Source string `json:"source"`
	Output string `json:"output,omitempty"`
}

// InputSlots extracts the __inputSlots mapping from block data, if present
func (b *Block) InputSlots() map[string]InputSlot {
	raw, ok := b.Data["__inputSlots"]
	if !ok {
		return nil
	}

	slots := make(map[string]InputSlot)
	rawMap, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	for handle, v := range rawMap {
		entry, ok := v.(map[string]any)
		if !ok {
			continue
		}
		slot := InputSlot{}
		if s, ok := entry["source"].(string); ok {
			slot.Source = s
		}
		if o, ok := entry["output"].(string); ok {
			slot.Output = o
		}
		if slot.Source != "" {
			slots[handle] = slot
		}
	}
	if len(slots) == 0 {
		return nil
	}
	return slots
}
