package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"stepchat-backend/internal/config"
	"stepchat-backend/internal/handlers"
	"stepchat-backend/internal/models"
)

type fakeStepEventStore struct {
	project models.Project

	stepErr   error
	statusErr error

	currentStep int
	status      string
	errorMsg    string
}

func (f *fakeStepEventStore) FetchProject(_ context.Context, _ uuid.UUID) (models.Project, error) {
	return f.project, nil
}

func (f *fakeStepEventStore) CreateStepResult(projectID uuid.UUID, stepNumber int, stepName string, llmOutput json.RawMessage) (*models.StepResult, error) {
	if f.stepErr != nil {
		return nil, f.stepErr
	}
	return &models.StepResult{ID: uuid.New(), ProjectID: projectID, StepNumber: stepNumber, StepName: stepName, LLMOutput: llmOutput}, nil
}

func (f *fakeStepEventStore) UpdateProjectStep(_ uuid.UUID, currentStep int) error {
	f.currentStep = currentStep
	return nil
}

func (f *fakeStepEventStore) UpdateProjectStatus(_ uuid.UUID, status string) error {
	if f.statusErr != nil {
		return f.statusErr
	}
	f.status = status
	return nil
}

func (f *fakeStepEventStore) SetProjectError(_ uuid.UUID, errorMsg string) error {
	if f.statusErr != nil {
		return f.statusErr
	}
	f.status = models.StatusError
	f.errorMsg = errorMsg
	return nil
}

func webhookRouter(store handlers.StepEventStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{WorkerWebhookToken: "hook-secret"}
	handler := handlers.NewWebhookHandler(cfg, store, nil)

	router := gin.New()
	router.POST("/webhooks/worker", handler.HandleStepEvent)
	return router
}

func postEvent(router *gin.Engine, event models.WorkerStepEvent) *httptest.ResponseRecorder {
	body, _ := json.Marshal(event)
	req, _ := http.NewRequest("POST", "/webhooks/worker", bytes.NewBuffer(body))
	req.Header.Set("Authorization", "Bearer hook-secret")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestWebhookHandler_NoDatabase(t *testing.T) {
	router := webhookRouter(nil)

	body := bytes.NewBufferString(`{"project_id":"x","step_number":1}`)
	req, _ := http.NewRequest("POST", "/webhooks/worker", body)
	req.Header.Set("Authorization", "Bearer hook-secret")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "database not available")
}

func TestWebhookHandler_InvalidToken(t *testing.T) {
	router := webhookRouter(&fakeStepEventStore{})

	body := bytes.NewBufferString(`{"project_id":"x"}`)
	req, _ := http.NewRequest("POST", "/webhooks/worker", body)
	req.Header.Set("Authorization", "Bearer wrong-secret")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWebhookHandler_StepEvent(t *testing.T) {
	projectID := uuid.New()
	store := &fakeStepEventStore{
		project: models.Project{ID: projectID, Status: models.StatusInProgress, CurrentStep: 1},
	}
	router := webhookRouter(store)

	w := postEvent(router, models.WorkerStepEvent{
		ProjectID:  projectID.String(),
		StepNumber: 2,
		StepName:   "draft",
		LLMOutput:  json.RawMessage(`"chapter text"`),
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, store.currentStep)
}

func TestWebhookHandler_TerminalStatus(t *testing.T) {
	projectID := uuid.New()
	store := &fakeStepEventStore{
		project: models.Project{ID: projectID, Status: models.StatusInProgress},
	}
	router := webhookRouter(store)

	w := postEvent(router, models.WorkerStepEvent{
		ProjectID:     projectID.String(),
		ProjectStatus: models.StatusCompleted,
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StatusCompleted, store.status)
}

func TestWebhookHandler_StatusWriteFailureNotAcknowledged(t *testing.T) {
	projectID := uuid.New()
	store := &fakeStepEventStore{
		project:   models.Project{ID: projectID, Status: models.StatusInProgress},
		statusErr: fmt.Errorf("connection reset"),
	}
	router := webhookRouter(store)

	// A 200 here would stop the worker from retrying and leave the
	// project in_progress forever.
	w := postEvent(router, models.WorkerStepEvent{
		ProjectID:     projectID.String(),
		ProjectStatus: models.StatusCompleted,
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "failed to update project status")
}

func TestWebhookHandler_ErrorWriteFailureNotAcknowledged(t *testing.T) {
	projectID := uuid.New()
	store := &fakeStepEventStore{
		project:   models.Project{ID: projectID, Status: models.StatusInProgress},
		statusErr: fmt.Errorf("connection reset"),
	}
	router := webhookRouter(store)

	w := postEvent(router, models.WorkerStepEvent{
		ProjectID:     projectID.String(),
		ProjectStatus: models.StatusError,
		ErrorMessage:  "worker blew up",
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "failed to record project error")
}

func TestWebhookHandler_TerminalProjectIgnoresStatus(t *testing.T) {
	projectID := uuid.New()
	store := &fakeStepEventStore{
		project: models.Project{ID: projectID, Status: models.StatusCompleted},
	}
	router := webhookRouter(store)

	// Terminal states are final; a late status callback is a no-op.
	w := postEvent(router, models.WorkerStepEvent{
		ProjectID:     projectID.String(),
		ProjectStatus: models.StatusError,
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, store.status)
}
