package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"stepchat-backend/internal/middleware"
	"stepchat-backend/internal/models"
	"stepchat-backend/internal/services"
	"stepchat-backend/internal/supabase"
)

type AdvanceHandler struct {
	dbClient  *supabase.DatabaseClient
	admission *services.AdmissionService
}

func NewAdvanceHandler(dbClient *supabase.DatabaseClient, admission *services.AdmissionService) *AdvanceHandler {
	return &AdvanceHandler{
		dbClient:  dbClient,
		admission: admission,
	}
}

// Advance is the admission gate endpoint. It authorizes the worker to
// produce the next step and returns immediately; the step itself
// arrives later through the change feed. Callers must branch on 402 to
// show the credits-specific message.
func (h *AdvanceHandler) Advance(c *gin.Context) {
	if h.dbClient == nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "database not available"})
		return
	}

	userIDStr, exists := c.Get(middleware.UserIDKey)
	if !exists {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "user id not found"})
		return
	}

	userID, err := uuid.Parse(userIDStr.(string))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid user id"})
		return
	}

	projectID, err := uuid.Parse(c.Param("project_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid project id"})
		return
	}

	project, err := h.dbClient.GetProject(projectID, userID)
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "project not found",
			Message: err.Error(),
		})
		return
	}

	var req models.AdvanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// Advance without a body is a bare "continue"
		req = models.AdvanceRequest{}
	}

	if err := h.admission.Advance(project, req, c.GetBool(middleware.IsAdminKey)); err != nil {
		respondAdmissionError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.AdvanceResponse{
		ProjectID: projectID.String(),
		Accepted:  true,
	})
}

// respondAdmissionError maps gate failures onto the wire: 402 for the
// distinguished insufficient-credits rejection, 409 for closed
// pipelines, 500 otherwise.
func respondAdmissionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInsufficientCredits):
		c.JSON(http.StatusPaymentRequired, models.ErrorResponse{
			Error:   "insufficient_credits",
			Message: "credit balance is exhausted",
		})
	case errors.Is(err, services.ErrPipelineClosed):
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Error:   "pipeline closed",
			Message: err.Error(),
		})
	default:
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to advance workflow",
			Message: err.Error(),
		})
	}
}
