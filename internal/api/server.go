// Package api exposes the REST surface over the inventory engine, the
// parser, the ingestion pipeline, and the upload lifecycle.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/groceryflow/groceryflow/internal/inventory"
	"github.com/groceryflow/groceryflow/internal/models"
	"github.com/groceryflow/groceryflow/internal/parser"
	"github.com/groceryflow/groceryflow/internal/pipeline"
	"github.com/groceryflow/groceryflow/internal/store"
)

const ownerContextKey = "ownerID"

// UpdateEngine is the slice of the inventory engine the handlers use.
type UpdateEngine interface {
	ApplyRaw(ctx context.Context, ownerID string, raws []map[string]any, actionType string) (*inventory.BatchResult, error)
	Search(ctx context.Context, ownerID, query string, fuzzyMode bool) ([]models.InventoryItem, error)
}

// GroceryParser is the slice of the parser the handlers use.
type GroceryParser interface {
	ParseText(ctx context.Context, text string) (*parser.ParseResult, error)
	ParseImage(ctx context.Context, imageBase64, imageType string) (*parser.ParseResult, error)
}

// URLSigner mints signed PUT URLs for direct-to-bucket uploads.
type URLSigner interface {
	SignedUploadURL(object, contentType string) (string, time.Time, error)
}

// UploadRunner processes a queued upload synchronously; the explicit queue
// endpoint uses it so callers without storage triggers still get extraction.
type UploadRunner interface {
	ProcessUpload(ctx context.Context, ownerID, uploadID string) error
}

// Server holds the handler dependencies behind their capability interfaces.
type Server struct {
	engine       UpdateEngine
	parser       GroceryParser
	executor     pipeline.Executor
	jobs         store.JobStore
	uploads      store.UploadStore
	signer       URLSigner
	uploadRunner UploadRunner
	logger       *slog.Logger
}

func NewServer(engine UpdateEngine, groceryParser GroceryParser, executor pipeline.Executor, jobs store.JobStore, uploads store.UploadStore, signer URLSigner, uploadRunner UploadRunner) *Server {
	return &Server{
		engine:       engine,
		parser:       groceryParser,
		executor:     executor,
		jobs:         jobs,
		uploads:      uploads,
		signer:       signer,
		uploadRunner: uploadRunner,
		logger:       slog.Default(),
	}
}

// Echo builds the routed echo instance.
func (s *Server) Echo() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(s.requestLogger())

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	authed := e.Group("", s.requireOwner)
	authed.POST("/inventory/update", s.handleApplyUpdates)
	authed.POST("/inventory/apply", s.handleApplyUpdates)
	authed.POST("/inventory/parse", s.handleParse)
	authed.POST("/inventory/parse/text", s.handleParseText)
	authed.POST("/inventory/parse/image", s.handleParseImage)
	authed.GET("/inventory/items", s.handleSearchItems)
	authed.POST("/inventory/ingest", s.handleIngest)
	authed.POST("/agent/ingest", s.handleAgentIngest)
	authed.POST("/uploads", s.handleCreateUpload)
	authed.GET("/uploads/:id", s.handleGetUpload)
	authed.POST("/uploads/:id/queue", s.handleQueueUpload)

	return e
}

// requireOwner resolves the authenticated owner identity. Identity
// verification happens upstream; this layer only refuses anonymous requests
// and scopes every handler to the caller's document subtree.
func (s *Server) requireOwner(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ownerID := c.Request().Header.Get("X-User-ID")
		if ownerID == "" {
			return c.JSON(http.StatusUnauthorized, models.ErrorResponse{
				Error:   "Unauthorized",
				Message: "X-User-ID header required",
			})
		}
		c.Set(ownerContextKey, ownerID)
		return next(c)
	}
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogMethod: true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			s.logger.LogAttrs(c.Request().Context(), level, "request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
			)
			return nil
		},
	})
}

func owner(c echo.Context) string {
	ownerID, _ := c.Get(ownerContextKey).(string)
	return ownerID
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error:   "Invalid request",
		Message: message,
	})
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}
