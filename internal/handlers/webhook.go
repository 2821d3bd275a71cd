package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"stepchat-backend/internal/config"
	"stepchat-backend/internal/models"
	"stepchat-backend/internal/supabase"
)

// StepEventStore is the slice of the database client the webhook needs.
type StepEventStore interface {
	FetchProject(ctx context.Context, id uuid.UUID) (models.Project, error)
	CreateStepResult(projectID uuid.UUID, stepNumber int, stepName string, llmOutput json.RawMessage) (*models.StepResult, error)
	UpdateProjectStep(projectID uuid.UUID, currentStep int) error
	UpdateProjectStatus(projectID uuid.UUID, status string) error
	SetProjectError(projectID uuid.UUID, errorMsg string) error
}

type WebhookHandler struct {
	config         *config.Config
	store          StepEventStore
	realtimeClient *supabase.RealtimeClient
}

func NewWebhookHandler(cfg *config.Config, store StepEventStore, realtimeClient *supabase.RealtimeClient) *WebhookHandler {
	return &WebhookHandler{
		config:         cfg,
		store:          store,
		realtimeClient: realtimeClient,
	}
}

// HandleStepEvent receives the worker's callback when a step finishes.
// Writing the step row is what fans the result out to clients: the row
// insert fires the change feed, and the sync engine takes it from
// there. Replayed callbacks land on the same (project, step) row.
func (h *WebhookHandler) HandleStepEvent(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "database not available"})
		return
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "missing authorization token"})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if h.config.WorkerWebhookToken != "" && token != h.config.WorkerWebhookToken {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "invalid authorization token"})
		return
	}

	var event models.WorkerStepEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "failed to parse event",
			Message: err.Error(),
		})
		return
	}

	projectID, err := uuid.Parse(event.ProjectID)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid project id"})
		return
	}

	project, err := h.store.FetchProject(c.Request.Context(), projectID)
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "project not found",
			Message: err.Error(),
		})
		return
	}

	if event.StepNumber > 0 {
		if _, err := h.store.CreateStepResult(projectID, event.StepNumber, event.StepName, event.LLMOutput); err != nil {
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{
				Error:   "failed to record step result",
				Message: err.Error(),
			})
			return
		}
		if event.StepNumber > project.CurrentStep {
			if err := h.store.UpdateProjectStep(projectID, event.StepNumber); err != nil {
				c.JSON(http.StatusInternalServerError, models.ErrorResponse{
					Error:   "failed to record current step",
					Message: err.Error(),
				})
				return
			}
		}
	}

	// A failed status write must not get a 200: the worker never retries
	// an acknowledged callback, and the project would stay in_progress
	// forever.
	switch event.ProjectStatus {
	case "":
		// step-only event
	case models.StatusCompleted:
		if models.CanTransition(project.Status, models.StatusCompleted) {
			if err := h.store.UpdateProjectStatus(projectID, models.StatusCompleted); err != nil {
				c.JSON(http.StatusInternalServerError, models.ErrorResponse{
					Error:   "failed to update project status",
					Message: err.Error(),
				})
				return
			}
			h.publishStatus(projectID, models.StatusCompleted)
		}
	case models.StatusError:
		if models.CanTransition(project.Status, models.StatusError) {
			if err := h.store.SetProjectError(projectID, event.ErrorMessage); err != nil {
				c.JSON(http.StatusInternalServerError, models.ErrorResponse{
					Error:   "failed to record project error",
					Message: err.Error(),
				})
				return
			}
			h.publishStatus(projectID, models.StatusError)
		}
	default:
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid project status"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *WebhookHandler) publishStatus(projectID uuid.UUID, status string) {
	if h.realtimeClient == nil {
		return
	}
	h.realtimeClient.PublishProjectEvent(projectID, "project_status",
		supabase.ProjectStatusPayload(projectID, status))
}
