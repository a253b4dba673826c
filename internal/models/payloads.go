package models

import (
	"encoding/json"
	"time"
)

// These structs define the JSON payloads for the REST API. Request shapes
// are validated at the boundary before anything reaches the core engines.

// ApplyUpdatesRequest carries a batch of raw proposed updates. Updates is
// kept as raw JSON so a non-array payload can be rejected with a 400 instead
// of a decode panic deeper in.
type ApplyUpdatesRequest struct {
	Updates json.RawMessage `json:"updates"`
}

// ApplyUpdatesResponse reports a batch outcome. Partial failure is embedded,
// not an HTTP error: Success means no update in the batch was rejected.
type ApplyUpdatesResponse struct {
	Success          bool           `json:"success"`
	Results          []UpdateResult `json:"results"`
	Summary          BatchSummary   `json:"summary"`
	ValidationErrors []string       `json:"validationErrors"`
}

// ParseRequest accepts either free text or a base64 image, never both.
type ParseRequest struct {
	Text      string `json:"text,omitempty"`
	Image     string `json:"image,omitempty"`
	ImageType string `json:"imageType,omitempty"`
}

type ParseResponse struct {
	Success      bool              `json:"success"`
	Updates      []*ProposedUpdate `json:"updates"`
	Confidence   float64           `json:"confidence"`
	Warnings     []string          `json:"warnings,omitempty"`
	UsedFallback bool              `json:"usedFallback"`
	OriginalText string            `json:"originalText,omitempty"`
	NeedsReview  bool              `json:"needsReview"`
	Message      string            `json:"message"`
}

// IngestRequest creates an asynchronous ingestion job from text or from a
// completed upload.
type IngestRequest struct {
	Text     string         `json:"text,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
	UploadID string         `json:"uploadId,omitempty"`
}

type IngestResponse struct {
	Success bool   `json:"success"`
	JobID   string `json:"jobId"`
	Status  string `json:"status"`
	JobPath string `json:"jobPath"`
}

// AgentIngestRequest runs the ingestion pipeline synchronously.
type AgentIngestRequest struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type AgentIngestResponse struct {
	Success         bool             `json:"success"`
	Response        string           `json:"response"`
	Summary         string           `json:"summary"`
	UsedFallback    bool             `json:"usedFallback"`
	ToolInvocations []ToolInvocation `json:"toolInvocations"`
}

type CreateUploadRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	SizeBytes   int64  `json:"sizeBytes,omitempty"`
	SourceType  string `json:"sourceType,omitempty"`
}

type CreateUploadResponse struct {
	Success     bool      `json:"success"`
	UploadID    string    `json:"uploadId"`
	UploadURL   string    `json:"uploadUrl"`
	StoragePath string    `json:"storagePath"`
	Status      string    `json:"status"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

type QueueUploadResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
}

type SearchResponse struct {
	Items []InventoryItem `json:"items"`
	Total int             `json:"total"`
}

// ErrorResponse is the uniform 4xx/5xx body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
