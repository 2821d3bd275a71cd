package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"stepchat-backend/internal/chat"
	"stepchat-backend/internal/middleware"
	"stepchat-backend/internal/models"
	"stepchat-backend/internal/services"
	"stepchat-backend/internal/supabase"
)

type StepsHandler struct {
	dbClient  *supabase.DatabaseClient
	admission *services.AdmissionService
}

func NewStepsHandler(dbClient *supabase.DatabaseClient, admission *services.AdmissionService) *StepsHandler {
	return &StepsHandler{
		dbClient:  dbClient,
		admission: admission,
	}
}

func (h *StepsHandler) ListSteps(c *gin.Context) {
	if h.dbClient == nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "database not available"})
		return
	}

	project, ok := h.ownedProject(c)
	if !ok {
		return
	}

	steps, err := h.dbClient.FetchStepResults(c.Request.Context(), project.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to list steps",
			Message: err.Error(),
		})
		return
	}

	responses := make([]models.StepResultResponse, len(steps))
	for i, step := range steps {
		responses[i] = models.StepResultResponse{
			ID:            step.ID.String(),
			ProjectID:     step.ProjectID.String(),
			StepNumber:    step.StepNumber,
			StepName:      step.StepName,
			LLMOutput:     step.LLMOutput,
			UserSelection: step.UserSelection,
			Approved:      step.Approved,
			CreatedAt:     step.CreatedAt,
		}
	}

	c.JSON(http.StatusOK, models.StepListResponse{Steps: responses})
}

// SelectOption records the user's choice among the step's offered
// options, then gates the next step. The selection transitions once
// from unset to set; a repeat call conflicts instead of overwriting.
func (h *StepsHandler) SelectOption(c *gin.Context) {
	if h.dbClient == nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "database not available"})
		return
	}

	step, project, ok := h.ownedStep(c)
	if !ok {
		return
	}

	var req models.SelectOptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid request body",
			Message: err.Error(),
		})
		return
	}

	payload := chat.ParsePayload(step.LLMOutput)
	if req.OptionIndex < 0 || req.OptionIndex >= len(payload.Options) {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid option index",
			Message: fmt.Sprintf("step offers %d options", len(payload.Options)),
		})
		return
	}

	selection, _ := json.Marshal(map[string]interface{}{
		"content": payload.Options[req.OptionIndex],
		"index":   req.OptionIndex,
	})
	changed, err := h.dbClient.SetStepSelection(step.ID, selection)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to record selection",
			Message: err.Error(),
		})
		return
	}
	if !changed {
		c.JSON(http.StatusConflict, models.ErrorResponse{Error: "selection already recorded"})
		return
	}

	// The recorded choice is what unblocks the worker for the next step.
	if err := h.admission.Advance(project, models.AdvanceRequest{
		UserInput: payload.Options[req.OptionIndex],
	}, c.GetBool(middleware.IsAdminKey)); err != nil {
		respondAdmissionError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.AdvanceResponse{
		ProjectID: project.ID.String(),
		Accepted:  true,
	})
}

// Approve records a generic approval with no option choice and gates
// the next step.
func (h *StepsHandler) Approve(c *gin.Context) {
	if h.dbClient == nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "database not available"})
		return
	}

	step, project, ok := h.ownedStep(c)
	if !ok {
		return
	}

	changed, err := h.dbClient.ApproveStep(step.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to approve step",
			Message: err.Error(),
		})
		return
	}
	if !changed {
		c.JSON(http.StatusConflict, models.ErrorResponse{Error: "step already approved"})
		return
	}

	if err := h.admission.Advance(project, models.AdvanceRequest{}, c.GetBool(middleware.IsAdminKey)); err != nil {
		respondAdmissionError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.AdvanceResponse{
		ProjectID: project.ID.String(),
		Accepted:  true,
	})
}

// Regenerate deletes the step row so the worker re-creates it. The
// delete is authoritative; clients treat an already-deleted step as
// success.
func (h *StepsHandler) Regenerate(c *gin.Context) {
	if h.dbClient == nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "database not available"})
		return
	}

	step, project, ok := h.ownedStep(c)
	if !ok {
		return
	}

	if _, err := h.admission.Regenerate(project, step, c.GetBool(middleware.IsAdminKey)); err != nil {
		respondAdmissionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{})
}

func (h *StepsHandler) ownedProject(c *gin.Context) (*models.Project, bool) {
	userIDStr, exists := c.Get(middleware.UserIDKey)
	if !exists {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "user id not found"})
		return nil, false
	}

	userID, err := uuid.Parse(userIDStr.(string))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid user id"})
		return nil, false
	}

	projectID, err := uuid.Parse(c.Param("project_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid project id"})
		return nil, false
	}

	project, err := h.dbClient.GetProject(projectID, userID)
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "project not found",
			Message: err.Error(),
		})
		return nil, false
	}
	return project, true
}

func (h *StepsHandler) ownedStep(c *gin.Context) (*models.StepResult, *models.Project, bool) {
	userIDStr, exists := c.Get(middleware.UserIDKey)
	if !exists {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "user id not found"})
		return nil, nil, false
	}

	userID, err := uuid.Parse(userIDStr.(string))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid user id"})
		return nil, nil, false
	}

	stepResultID, err := uuid.Parse(c.Param("step_result_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid step result id"})
		return nil, nil, false
	}

	step, err := h.dbClient.GetStepResult(stepResultID)
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "step result not found",
			Message: err.Error(),
		})
		return nil, nil, false
	}

	project, err := h.dbClient.GetProject(step.ProjectID, userID)
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "project not found",
			Message: err.Error(),
		})
		return nil, nil, false
	}
	return step, project, true
}
