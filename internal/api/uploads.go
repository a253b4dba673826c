package api

import (
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/groceryflow/groceryflow/internal/models"
	"github.com/groceryflow/groceryflow/internal/store"
)

// handleCreateUpload serves POST /uploads: allocate an upload record in
// awaiting_upload and mint a signed PUT URL the client writes the artifact
// to. Nothing is processed until the storage trigger or an explicit queue
// call moves the record forward.
func (s *Server) handleCreateUpload(c echo.Context) error {
	var req models.CreateUploadRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid JSON body")
	}
	if strings.TrimSpace(req.Filename) == "" || strings.TrimSpace(req.ContentType) == "" {
		return badRequest(c, "filename and contentType are required")
	}
	if req.SizeBytes > models.MaxUploadBytes {
		return badRequest(c, fmt.Sprintf("upload exceeds the %d byte limit", int64(models.MaxUploadBytes)))
	}
	if s.signer == nil {
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "Configuration Error",
			Message: "uploads require a configured storage bucket",
		})
	}

	ownerID := owner(c)
	uploadID := uuid.NewString()
	filename := path.Base(req.Filename)
	storagePath := fmt.Sprintf("uploads/%s/%s/%s", ownerID, uploadID, filename)

	uploadURL, expires, err := s.signer.SignedUploadURL(storagePath, req.ContentType)
	if err != nil {
		s.logger.Error("Failed to sign upload URL.", "ownerId", ownerID, "error", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Internal Error"})
	}

	record := models.UploadRecord{
		ID:          uploadID,
		OwnerID:     ownerID,
		Filename:    filename,
		ContentType: req.ContentType,
		SourceType:  req.SourceType,
		SizeBytes:   req.SizeBytes,
		Status:      models.UploadStatusAwaiting,
		StoragePath: storagePath,
	}
	if _, err := s.uploads.CreateUpload(c.Request().Context(), ownerID, record); err != nil {
		s.logger.Error("Failed to create upload record.", "ownerId", ownerID, "error", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Internal Error"})
	}

	return c.JSON(http.StatusOK, models.CreateUploadResponse{
		Success:     true,
		UploadID:    uploadID,
		UploadURL:   uploadURL,
		StoragePath: storagePath,
		Status:      models.UploadStatusAwaiting,
		ExpiresAt:   expires,
	})
}

func (s *Server) handleGetUpload(c echo.Context) error {
	ownerID := owner(c)
	record, err := s.uploads.GetUpload(c.Request().Context(), ownerID, c.Param("id"))
	if err != nil {
		if isNotFound(err) {
			return c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "Not Found"})
		}
		s.logger.Error("Failed to load upload.", "ownerId", ownerID, "uploadId", c.Param("id"), "error", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Internal Error"})
	}
	return c.JSON(http.StatusOK, record)
}

// handleQueueUpload serves POST /uploads/:id/queue: the explicit hand-off
// into the upload state machine for clients that cannot rely on the storage
// trigger. Extraction runs synchronously when a runner is wired.
func (s *Server) handleQueueUpload(c echo.Context) error {
	ownerID := owner(c)
	uploadID := c.Param("id")
	ctx := c.Request().Context()

	if err := s.uploads.QueueUpload(ctx, ownerID, uploadID); err != nil {
		if errors.Is(err, store.ErrUploadNotQueueable) {
			return c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error: store.ErrUploadNotQueueable.Error(),
			})
		}
		if isNotFound(err) {
			return c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "Not Found"})
		}
		s.logger.Error("Failed to queue upload.", "ownerId", ownerID, "uploadId", uploadID, "error", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Internal Error"})
	}

	status := models.UploadStatusQueued
	if s.uploadRunner != nil {
		if err := s.uploadRunner.ProcessUpload(ctx, ownerID, uploadID); err != nil {
			// The record carries its own terminal state; surface the queue
			// success and let the client poll.
			s.logger.Error("Synchronous upload processing failed.", "ownerId", ownerID, "uploadId", uploadID, "error", err)
		} else if record, err := s.uploads.GetUpload(ctx, ownerID, uploadID); err == nil {
			status = record.Status
		}
	}

	return c.JSON(http.StatusOK, models.QueueUploadResponse{Success: true, Status: status})
}
