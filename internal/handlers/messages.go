package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"stepchat-backend/internal/chat"
	"stepchat-backend/internal/middleware"
	"stepchat-backend/internal/models"
	"stepchat-backend/internal/supabase"
)

type MessagesHandler struct {
	dbClient *supabase.DatabaseClient
}

func NewMessagesHandler(dbClient *supabase.DatabaseClient) *MessagesHandler {
	return &MessagesHandler{
		dbClient: dbClient,
	}
}

// GetMessages serves the confirmed conversation read model: the step
// history run through the same transformer and ordering the sync engine
// uses, plus the inferred is_working flag. Optimistic entries are a
// client concern and never appear here.
func (h *MessagesHandler) GetMessages(c *gin.Context) {
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

	steps, err := h.dbClient.FetchStepResults(c.Request.Context(), projectID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "failed to list steps",
			Message: err.Error(),
		})
		return
	}

	rec := chat.NewReconciler()
	rec.Reset(steps)
	messages := rec.Messages()

	responses := make([]models.MessageResponse, len(messages))
	for i, m := range messages {
		responses[i] = models.MessageResponse{
			ID:        m.ID,
			Author:    string(m.Author),
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		}
		if m.StepResultID != uuid.Nil {
			responses[i].StepResultID = m.StepResultID.String()
		}
	}

	c.JSON(http.StatusOK, models.MessageListResponse{
		Messages:  responses,
		IsWorking: chat.IsWorking(*project, messages),
	})
}
