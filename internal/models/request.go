package models

import "encoding/json"

type CreateProjectRequest struct {
	// Display name for the pipeline run
	Name string `json:"name" binding:"required"`
	// Free-form link or prompt that seeds the run
	Prompt string `json:"prompt" binding:"required"`
}

type UpdateProjectRequest struct {
	Name   string `json:"name,omitempty"`
	Status string `json:"status,omitempty"`
}

type AdvanceRequest struct {
	UserInput string `json:"user_input,omitempty"`
	// Public URLs of previously uploaded attachments
	Attachments []string `json:"attachments,omitempty"`
}

type SelectOptionRequest struct {
	OptionIndex int `json:"option_index"`
}

// WorkerStepEvent is the callback body the external generation worker
// posts when it finishes a step.
type WorkerStepEvent struct {
	ProjectID  string          `json:"project_id"`
	StepNumber int             `json:"step_number"`
	StepName   string          `json:"step_name"`
	LLMOutput  json.RawMessage `json:"llm_output"`
	// Optional terminal status for the project: "completed" or "error"
	ProjectStatus string `json:"project_status,omitempty"`
	ErrorMessage  string `json:"error_message,omitempty"`
}
