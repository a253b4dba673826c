package models

import "time"

// Ingestion job statuses. Jobs start pending and always end in a terminal
// state; completed and failed are the only terminal states.
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// Upload record statuses.
const (
	UploadStatusAwaiting   = "awaiting_upload"
	UploadStatusQueued     = "queued"
	UploadStatusProcessing = "processing"
	UploadStatusCompleted  = "completed"
	UploadStatusFailed     = "failed"
)

const (
	// MaxIngestTextChars caps the free-text payload of one ingestion job.
	MaxIngestTextChars = 6000
	// MaxUploadBytes caps uploaded artifacts at 25 MB.
	MaxUploadBytes = 25 << 20
	// MaxMetadataBytes caps the serialized metadata attached to a job.
	MaxMetadataBytes = 4096
)

// ToolInvocation records one tool call reported by the agent runtime.
type ToolInvocation struct {
	Name  string         `firestore:"name" json:"name"`
	Input map[string]any `firestore:"input,omitempty" json:"input,omitempty"`
	Error string         `firestore:"error,omitempty" json:"error,omitempty"`
}

// IngestionJob is the persisted state of one asynchronous ingestion run.
// Transitions are driven exclusively by the pipeline orchestrator worker.
type IngestionJob struct {
	ID              string           `firestore:"-" json:"id"`
	OwnerID         string           `firestore:"ownerId" json:"ownerId"`
	Status          string           `firestore:"status" json:"status"`
	Text            string           `firestore:"text,omitempty" json:"text,omitempty"`
	UploadID        string           `firestore:"uploadId,omitempty" json:"uploadId,omitempty"`
	Metadata        map[string]any   `firestore:"metadata,omitempty" json:"metadata,omitempty"`
	AgentResponse   string           `firestore:"agentResponse,omitempty" json:"agentResponse,omitempty"`
	ResultSummary   string           `firestore:"resultSummary,omitempty" json:"resultSummary,omitempty"`
	LastError       string           `firestore:"lastError,omitempty" json:"lastError,omitempty"`
	ToolInvocations []ToolInvocation `firestore:"toolInvocations,omitempty" json:"toolInvocations,omitempty"`
	FallbackApplied bool             `firestore:"fallbackApplied" json:"fallbackApplied"`
	FallbackDetails map[string]any   `firestore:"fallbackDetails,omitempty" json:"fallbackDetails,omitempty"`
	CreatedAt       time.Time        `firestore:"createdAt,serverTimestamp" json:"createdAt"`
	UpdatedAt       time.Time        `firestore:"updatedAt,serverTimestamp" json:"updatedAt"`
	CompletedAt     time.Time        `firestore:"completedAt,omitempty" json:"completedAt,omitempty"`
}

// UploadRecord tracks a large binary artifact from URL allocation through
// extraction. On success it spawns exactly one IngestionJob carrying the
// extracted text.
type UploadRecord struct {
	ID             string         `firestore:"-" json:"id"`
	OwnerID        string         `firestore:"ownerId" json:"ownerId"`
	Filename       string         `firestore:"filename" json:"filename"`
	ContentType    string         `firestore:"contentType" json:"contentType"`
	SourceType     string         `firestore:"sourceType,omitempty" json:"sourceType,omitempty"`
	SizeBytes      int64          `firestore:"sizeBytes,omitempty" json:"sizeBytes,omitempty"`
	Status         string         `firestore:"status" json:"status"`
	Detail         string         `firestore:"detail,omitempty" json:"detail,omitempty"`
	StoragePath    string         `firestore:"storagePath" json:"storagePath"`
	TextPreview    string         `firestore:"textPreview,omitempty" json:"textPreview,omitempty"`
	ExtractedText  string         `firestore:"extractedText,omitempty" json:"-"`
	Extraction     map[string]any `firestore:"extraction,omitempty" json:"extraction,omitempty"`
	IngestionJobID string         `firestore:"ingestionJobId,omitempty" json:"ingestionJobId,omitempty"`
	LastError      string         `firestore:"lastError,omitempty" json:"lastError,omitempty"`
	CreatedAt      time.Time      `firestore:"createdAt,serverTimestamp" json:"createdAt"`
	UpdatedAt      time.Time      `firestore:"updatedAt,serverTimestamp" json:"updatedAt"`
}
