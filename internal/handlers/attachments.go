package handlers

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"stepchat-backend/internal/middleware"
	"stepchat-backend/internal/models"
	"stepchat-backend/internal/supabase"
)

const maxAttachmentSize = 25 << 20 // 25 MB per file

type AttachmentsHandler struct {
	dbClient      *supabase.DatabaseClient
	storageClient *supabase.StorageClient
}

func NewAttachmentsHandler(dbClient *supabase.DatabaseClient, storageClient *supabase.StorageClient) *AttachmentsHandler {
	return &AttachmentsHandler{
		dbClient:      dbClient,
		storageClient: storageClient,
	}
}

// Upload stores attachments for later reference in an advance payload.
// Per-file failures are collected rather than failing the batch.
func (h *AttachmentsHandler) Upload(c *gin.Context) {
	if h.dbClient == nil || h.storageClient == nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "storage not available"})
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

	if _, err := h.dbClient.GetProject(projectID, userID); err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "project not found",
			Message: err.Error(),
		})
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid multipart form",
			Message: err.Error(),
		})
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "no files provided"})
		return
	}

	var uploaded []models.AttachmentResponse
	var uploadErrors []string
	for _, fileHeader := range files {
		if fileHeader.Size > maxAttachmentSize {
			uploadErrors = append(uploadErrors, fmt.Sprintf("%s: file too large", fileHeader.Filename))
			continue
		}

		file, err := fileHeader.Open()
		if err != nil {
			uploadErrors = append(uploadErrors, fmt.Sprintf("%s: %v", fileHeader.Filename, err))
			continue
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			uploadErrors = append(uploadErrors, fmt.Sprintf("%s: %v", fileHeader.Filename, err))
			continue
		}

		filename := filepath.Base(fileHeader.Filename)
		_, publicURL, err := h.storageClient.UploadAttachment(
			userID, projectID, filename, fileHeader.Header.Get("Content-Type"), data)
		if err != nil {
			uploadErrors = append(uploadErrors, fmt.Sprintf("%s: %v", filename, err))
			continue
		}

		uploaded = append(uploaded, models.AttachmentResponse{
			Filename:   filename,
			StorageURL: publicURL,
		})
	}

	c.JSON(http.StatusOK, models.UploadResponse{
		ProjectID:   projectID.String(),
		Attachments: uploaded,
		Errors:      uploadErrors,
	})
}
