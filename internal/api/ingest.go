package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/groceryflow/groceryflow/internal/models"
	"github.com/groceryflow/groceryflow/internal/pipeline"
)

// handleIngest serves POST /inventory/ingest: create a pending ingestion job
// from free text or from a completed upload's extracted text. The job is
// picked up asynchronously by the document-creation trigger.
func (s *Server) handleIngest(c echo.Context) error {
	var req models.IngestRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid JSON body")
	}

	text := strings.TrimSpace(req.Text)
	hasText := text != ""
	hasUpload := req.UploadID != ""
	switch {
	case !hasText && !hasUpload:
		return badRequest(c, "provide either text or uploadId")
	case hasText && hasUpload:
		return badRequest(c, "provide either text or uploadId, not both")
	case len(text) > models.MaxIngestTextChars:
		return badRequest(c, fmt.Sprintf("text exceeds the %d character limit", models.MaxIngestTextChars))
	}
	if req.Metadata != nil {
		encoded, err := json.Marshal(req.Metadata)
		if err != nil || len(encoded) > models.MaxMetadataBytes {
			return badRequest(c, fmt.Sprintf("metadata exceeds the %d byte limit", models.MaxMetadataBytes))
		}
	}

	ctx := c.Request().Context()
	ownerID := owner(c)
	job := models.IngestionJob{
		OwnerID:  ownerID,
		Status:   models.JobStatusPending,
		Text:     text,
		Metadata: req.Metadata,
	}

	if hasUpload {
		record, err := s.uploads.GetUpload(ctx, ownerID, req.UploadID)
		if err != nil {
			if isNotFound(err) {
				return c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "Not Found"})
			}
			s.logger.Error("Failed to load upload for ingestion.", "ownerId", ownerID, "uploadId", req.UploadID, "error", err)
			return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Internal Error"})
		}
		if record.Status != models.UploadStatusCompleted || record.ExtractedText == "" {
			return badRequest(c, "upload has no extracted text to ingest")
		}
		job.Text = record.ExtractedText
		job.UploadID = req.UploadID
	}

	jobID, err := s.jobs.CreateIngestionJob(ctx, ownerID, job)
	if err != nil {
		s.logger.Error("Failed to create ingestion job.", "ownerId", ownerID, "error", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Internal Error"})
	}

	return c.JSON(http.StatusOK, models.IngestResponse{
		Success: true,
		JobID:   jobID,
		Status:  models.JobStatusPending,
		JobPath: fmt.Sprintf("users/%s/ingestion_jobs/%s", ownerID, jobID),
	})
}

// handleAgentIngest serves POST /agent/ingest: the full pipeline run,
// synchronously, inside the request.
func (s *Server) handleAgentIngest(c echo.Context) error {
	var req models.AgentIngestRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid JSON body")
	}
	if strings.TrimSpace(req.Text) == "" {
		return badRequest(c, "text is required")
	}

	ownerID := owner(c)
	outcome, err := s.executor.Execute(c.Request().Context(), pipeline.Input{
		UserID:   ownerID,
		Text:     req.Text,
		Metadata: req.Metadata,
	})
	if err != nil {
		s.logger.Error("Agent ingestion failed.", "ownerId", ownerID, "error", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "Agent Error",
			Message: err.Error(),
		})
	}
	if !outcome.Success {
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "Agent Error",
			Message: outcome.Error,
		})
	}

	return c.JSON(http.StatusOK, models.AgentIngestResponse{
		Success:         true,
		Response:        outcome.AgentResponse,
		Summary:         outcome.Summary,
		UsedFallback:    outcome.UsedFallback,
		ToolInvocations: outcome.ToolInvocations,
	})
}
