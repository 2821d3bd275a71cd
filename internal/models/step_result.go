package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// StepResult is one executed pipeline step. At most one row exists per
// (project_id, step_number). LLMOutput is the worker's opaque payload;
// UserSelection and Approved transition at most once from unset to set.
// Regenerating a step deletes the row so the worker can re-create it.
type StepResult struct {
	ID            uuid.UUID
	ProjectID     uuid.UUID
	StepNumber    int
	StepName      string
	LLMOutput     json.RawMessage
	UserSelection json.RawMessage
	Approved      bool
	CreatedAt     time.Time
}
