package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/groceryflow/groceryflow/internal/gcp"
	"github.com/groceryflow/groceryflow/internal/models"
	"github.com/groceryflow/groceryflow/internal/parser"
	"github.com/groceryflow/groceryflow/internal/store"
)

// StorageEvent mirrors the GCS object-finalize payload the upload worker
// receives.
type StorageEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

// BlobReader fetches an uploaded artifact by object name.
type BlobReader interface {
	ReadObject(ctx context.Context, object string) ([]byte, error)
}

// GCSBlobReader implements BlobReader against the upload bucket with the
// 25 MB artifact cap enforced on read.
type GCSBlobReader struct {
	client *storage.Client
	bucket string
}

func NewGCSBlobReader(client *storage.Client, bucket string) *GCSBlobReader {
	return &GCSBlobReader{client: client, bucket: bucket}
}

func (r *GCSBlobReader) ReadObject(ctx context.Context, object string) ([]byte, error) {
	return gcp.ReadObject(ctx, r.client, r.bucket, object, models.MaxUploadBytes)
}

// ArtifactExtractor is the slice of the multi-format extractor the upload
// processor needs.
type ArtifactExtractor interface {
	Extract(ctx context.Context, data []byte, contentType, sourceType, filename string) (*parser.Extraction, error)
}

// UploadProcessor drives upload records through awaiting_upload → queued →
// processing → completed|failed. Completion spawns exactly one ingestion job
// carrying the extracted text.
type UploadProcessor struct {
	uploads   store.UploadStore
	jobs      store.JobStore
	blobs     BlobReader
	extractor ArtifactExtractor
	logger    *slog.Logger
}

func NewUploadProcessor(uploads store.UploadStore, jobs store.JobStore, blobs BlobReader, extractor ArtifactExtractor) *UploadProcessor {
	return &UploadProcessor{
		uploads:   uploads,
		jobs:      jobs,
		blobs:     blobs,
		extractor: extractor,
		logger:    slog.Default(),
	}
}

// HandleStorageEvent reacts to a finalized object write: queue the matching
// upload record and process it. Objects outside the uploads/ layout and
// records that already left awaiting_upload are skipped, so retried events
// are harmless.
func (p *UploadProcessor) HandleStorageEvent(ctx context.Context, event StorageEvent) error {
	ownerID, uploadID, ok := parseUploadPath(event.Name)
	if !ok {
		p.logger.Info("Ignoring object outside the uploads layout.", "gcsObject", event.Name)
		return nil
	}
	logCtx := p.logger.With("ownerId", ownerID, "uploadId", uploadID)

	if err := p.uploads.QueueUpload(ctx, ownerID, uploadID); err != nil {
		if errors.Is(err, store.ErrUploadNotQueueable) {
			logCtx.Info("Upload already queued or processed. Skipping.")
			return nil
		}
		logCtx.Error("Failed to queue upload.", "error", err)
		return err
	}

	return p.ProcessUpload(ctx, ownerID, uploadID)
}

// ProcessUpload runs extraction for a queued upload. Extraction errors land
// in a failed terminal state with lastError; they never crash the handler.
func (p *UploadProcessor) ProcessUpload(ctx context.Context, ownerID, uploadID string) error {
	logCtx := p.logger.With("ownerId", ownerID, "uploadId", uploadID)

	record, err := p.uploads.GetUpload(ctx, ownerID, uploadID)
	if err != nil {
		logCtx.Error("Failed to load upload record.", "error", err)
		return err
	}
	if record.Status != models.UploadStatusQueued {
		logCtx.Info("Skipping upload in non-queued state.", "status", record.Status)
		return nil
	}

	if err := p.uploads.UpdateUpload(ctx, ownerID, uploadID, map[string]any{
		"status": models.UploadStatusProcessing,
	}); err != nil {
		logCtx.Error("Failed to mark upload processing.", "error", err)
		return err
	}

	extraction, err := p.extract(ctx, record)
	if err != nil {
		logCtx.Error("Upload extraction failed.", "error", err)
		p.failUpload(ctx, logCtx, ownerID, uploadID, err)
		return nil
	}

	text := extraction.Text
	if len(text) > models.MaxIngestTextChars {
		text = text[:models.MaxIngestTextChars]
	}
	jobID, err := p.jobs.CreateIngestionJob(ctx, ownerID, models.IngestionJob{
		OwnerID:  ownerID,
		Status:   models.JobStatusPending,
		Text:     text,
		UploadID: uploadID,
		Metadata: map[string]any{
			"source":      "upload",
			"uploadId":    uploadID,
			"storagePath": record.StoragePath,
			"contentType": record.ContentType,
			"extraction":  extraction.Metadata,
		},
	})
	if err != nil {
		logCtx.Error("Failed to spawn ingestion job for upload.", "error", err)
		p.failUpload(ctx, logCtx, ownerID, uploadID, err)
		return nil
	}

	if err := p.uploads.UpdateUpload(ctx, ownerID, uploadID, map[string]any{
		"status":         models.UploadStatusCompleted,
		"detail":         "ingestion_job_created",
		"textPreview":    extraction.Preview,
		"extractedText":  text,
		"extraction":     extraction.Metadata,
		"ingestionJobId": jobID,
	}); err != nil {
		logCtx.Error("Failed to finalize upload record.", "error", err)
		return err
	}

	logCtx.Info("Upload processed.", "ingestionJobId", jobID)
	return nil
}

func (p *UploadProcessor) extract(ctx context.Context, record *models.UploadRecord) (*parser.Extraction, error) {
	data, err := p.blobs.ReadObject(ctx, record.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read uploaded artifact: %w", err)
	}
	if int64(len(data)) > models.MaxUploadBytes {
		return nil, fmt.Errorf("artifact exceeds the %d byte limit", models.MaxUploadBytes)
	}
	return p.extractor.Extract(ctx, data, record.ContentType, record.SourceType, record.Filename)
}

func (p *UploadProcessor) failUpload(ctx context.Context, logCtx *slog.Logger, ownerID, uploadID string, cause error) {
	if err := p.uploads.UpdateUpload(ctx, ownerID, uploadID, map[string]any{
		"status":    models.UploadStatusFailed,
		"lastError": cause.Error(),
	}); err != nil {
		logCtx.Error("CRITICAL: Failed to write failed upload state.", "error", err)
	}
}

// parseUploadPath splits "uploads/{ownerId}/{uploadId}/{filename}".
func parseUploadPath(object string) (ownerID, uploadID string, ok bool) {
	parts := strings.Split(object, "/")
	if len(parts) < 4 || parts[0] != "uploads" || parts[1] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}
