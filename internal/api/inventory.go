package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/groceryflow/groceryflow/internal/models"
	"github.com/groceryflow/groceryflow/internal/parser"
)

// handleApplyUpdates serves POST /inventory/update and /inventory/apply.
// Per-item failures are embedded in the 200 body; only a malformed request
// body gets a 400.
func (s *Server) handleApplyUpdates(c echo.Context) error {
	var req models.ApplyUpdatesRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid JSON body")
	}
	if len(req.Updates) == 0 {
		return badRequest(c, "updates must be a non-empty array")
	}
	var raws []map[string]any
	if err := json.Unmarshal(req.Updates, &raws); err != nil {
		return badRequest(c, "updates must be an array of objects")
	}

	batch, err := s.engine.ApplyRaw(c.Request().Context(), owner(c), raws, "manual_update")
	if err != nil {
		s.logger.Error("Failed to apply inventory updates.", "ownerId", owner(c), "error", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Internal Error"})
	}

	return c.JSON(http.StatusOK, models.ApplyUpdatesResponse{
		Success:          len(batch.ValidationErrors) == 0,
		Results:          batch.Results,
		Summary:          batch.Summary,
		ValidationErrors: batch.ValidationErrors,
	})
}

// handleParse serves POST /inventory/parse: text or image, never both.
func (s *Server) handleParse(c echo.Context) error {
	var req models.ParseRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid JSON body")
	}
	hasText := strings.TrimSpace(req.Text) != ""
	hasImage := req.Image != ""
	switch {
	case hasText && hasImage:
		return badRequest(c, "provide either text or image, not both")
	case hasText:
		return s.parseText(c, req.Text)
	case hasImage:
		return s.parseImage(c, req.Image, req.ImageType)
	default:
		return badRequest(c, "provide either text or image")
	}
}

func (s *Server) handleParseText(c echo.Context) error {
	var req models.ParseRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid JSON body")
	}
	if strings.TrimSpace(req.Text) == "" {
		return badRequest(c, "text is required")
	}
	return s.parseText(c, req.Text)
}

func (s *Server) handleParseImage(c echo.Context) error {
	var req models.ParseRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid JSON body")
	}
	if req.Image == "" {
		return badRequest(c, "image is required")
	}
	return s.parseImage(c, req.Image, req.ImageType)
}

func (s *Server) parseText(c echo.Context, text string) error {
	result, err := s.parser.ParseText(c.Request().Context(), text)
	if err != nil {
		s.logger.Error("Text parse failed.", "ownerId", owner(c), "error", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "Parse Error",
			Message: err.Error(),
		})
	}
	return c.JSON(http.StatusOK, parseResponse(result))
}

func (s *Server) parseImage(c echo.Context, image, imageType string) error {
	result, err := s.parser.ParseImage(c.Request().Context(), image, imageType)
	if err != nil {
		if errors.Is(err, parser.ErrLLMNotConfigured) {
			return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
				Error:   "Configuration Error",
				Message: "image parsing requires a configured generative model",
			})
		}
		s.logger.Error("Image parse failed.", "ownerId", owner(c), "error", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "Parse Error",
			Message: err.Error(),
		})
	}
	return c.JSON(http.StatusOK, parseResponse(result))
}

func parseResponse(result *parser.ParseResult) models.ParseResponse {
	message := fmt.Sprintf("Parsed %d inventory update(s).", len(result.Items))
	if len(result.Items) == 0 {
		message = "No inventory updates found."
	}
	return models.ParseResponse{
		Success:      true,
		Updates:      result.Items,
		Confidence:   result.Confidence,
		Warnings:     result.Warnings,
		UsedFallback: result.UsedFallback,
		OriginalText: result.OriginalText,
		NeedsReview:  result.NeedsReview,
		Message:      message,
	}
}

// handleSearchItems serves GET /inventory/items?q=&fuzzy=.
func (s *Server) handleSearchItems(c echo.Context) error {
	query := c.QueryParam("q")
	fuzzyMode := c.QueryParam("fuzzy") == "true" || c.QueryParam("fuzzy") == "1"

	items, err := s.engine.Search(c.Request().Context(), owner(c), query, fuzzyMode)
	if err != nil {
		s.logger.Error("Inventory search failed.", "ownerId", owner(c), "error", err)
		return c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Internal Error"})
	}
	return c.JSON(http.StatusOK, models.SearchResponse{Items: items, Total: len(items)})
}
