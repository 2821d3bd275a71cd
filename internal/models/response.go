package models

import (
	"encoding/json"
	"time"
)

type ProjectResponse struct {
	ID           string    `json:"project_id"`
	Name         string    `json:"name"`
	SeedPrompt   string    `json:"seed_prompt"`
	CurrentStep  int       `json:"current_step"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type ProjectListResponse struct {
	Projects []ProjectSummary `json:"projects"`
}

type ProjectSummary struct {
	ID          string    `json:"project_id"`
	Name        string    `json:"name"`
	CurrentStep int       `json:"current_step"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type StepResultResponse struct {
	ID            string          `json:"id"`
	ProjectID     string          `json:"project_id"`
	StepNumber    int             `json:"step_number"`
	StepName      string          `json:"step_name"`
	LLMOutput     json.RawMessage `json:"llm_output"`
	UserSelection json.RawMessage `json:"user_selection,omitempty"`
	Approved      bool            `json:"approved"`
	CreatedAt     time.Time       `json:"created_at"`
}

type StepListResponse struct {
	Steps []StepResultResponse `json:"steps"`
}

type AdvanceResponse struct {
	ProjectID string `json:"project_id"`
	Accepted  bool   `json:"accepted"`
}

type MessageResponse struct {
	ID           string          `json:"id"`
	Author       string          `json:"author"`
	Content      string          `json:"content"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	StepResultID string          `json:"step_result_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

type MessageListResponse struct {
	Messages  []MessageResponse `json:"messages"`
	IsWorking bool              `json:"is_working"`
}

type AttachmentResponse struct {
	Filename   string `json:"filename"`
	StorageURL string `json:"storage_url"`
}

type UploadResponse struct {
	ProjectID   string               `json:"project_id"`
	Attachments []AttachmentResponse `json:"attachments"`
	Errors      []string             `json:"errors,omitempty"`
}

type StatusResponse struct {
	ProjectID   string    `json:"project_id"`
	Status      string    `json:"status"`
	CurrentStep int       `json:"current_step"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
