package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"

	"github.com/groceryflow/groceryflow/internal/models"
	"github.com/groceryflow/groceryflow/internal/store"
)

// IngestionJobEvent is the payload delivered when an ingestion job document
// is created.
type IngestionJobEvent struct {
	OwnerID string `json:"ownerId"`
	JobID   string `json:"jobId"`
}

// IngestionProcessor drives pending jobs through the state machine:
// pending → processing → completed|failed. A job whose processing fails, or
// even panics, still lands in failed with lastError set; nothing is ever
// left stuck in processing.
type IngestionProcessor struct {
	jobs     store.JobStore
	executor Executor
	logger   *slog.Logger
}

func NewIngestionProcessor(jobs store.JobStore, executor Executor) *IngestionProcessor {
	return &IngestionProcessor{jobs: jobs, executor: executor, logger: slog.Default()}
}

// Process handles one job-created event. It returns an error only for
// pre-processing failures (unreadable job); once a job reaches processing,
// its outcome is persisted on the document and nil is returned so the
// trigger is not redelivered pointlessly.
func (p *IngestionProcessor) Process(ctx context.Context, event IngestionJobEvent) error {
	logCtx := p.logger.With("ownerId", event.OwnerID, "jobId", event.JobID)

	job, err := p.jobs.GetIngestionJob(ctx, event.OwnerID, event.JobID)
	if err != nil {
		logCtx.Error("Failed to load ingestion job.", "error", err)
		return err
	}
	if job.Status != models.JobStatusPending {
		// Retried delivery of an already-claimed job.
		logCtx.Info("Skipping ingestion job in non-pending state.", "status", job.Status)
		return nil
	}

	if err := p.jobs.UpdateIngestionJob(ctx, event.OwnerID, event.JobID, map[string]any{
		"status": models.JobStatusProcessing,
	}); err != nil {
		logCtx.Error("Failed to mark ingestion job processing.", "error", err)
		return err
	}
	logCtx.Info("Processing ingestion job.")

	outcome, runErr := p.run(ctx, job)
	if runErr != nil {
		p.writeTerminal(ctx, logCtx, event, map[string]any{
			"status":    models.JobStatusFailed,
			"lastError": runErr.Error(),
		})
		return nil
	}

	fields := map[string]any{
		"agentResponse":   outcome.AgentResponse,
		"resultSummary":   outcome.Summary,
		"toolInvocations": outcome.ToolInvocations,
		"fallbackApplied": outcome.UsedFallback,
	}
	if outcome.FallbackDetails != nil {
		fields["fallbackDetails"] = outcome.FallbackDetails
	}
	if outcome.Success {
		fields["status"] = models.JobStatusCompleted
		fields["completedAt"] = firestore.ServerTimestamp
	} else {
		fields["status"] = models.JobStatusFailed
		fields["lastError"] = outcome.Error
	}
	p.writeTerminal(ctx, logCtx, event, fields)
	logCtx.Info("Ingestion job finished.", "status", fields["status"], "usedFallback", outcome.UsedFallback)
	return nil
}

// run executes the pipeline with a panic guard so the terminal-state write
// always happens.
func (p *IngestionProcessor) run(ctx context.Context, job *models.IngestionJob) (outcome *Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome = nil
			err = fmt.Errorf("panic during ingestion: %v", r)
		}
	}()

	if job.Text == "" {
		return nil, fmt.Errorf("ingestion job %s has no text to process", job.ID)
	}
	return p.executor.Execute(ctx, Input{
		UserID:   job.OwnerID,
		Text:     job.Text,
		Metadata: job.Metadata,
	})
}

func (p *IngestionProcessor) writeTerminal(ctx context.Context, logCtx *slog.Logger, event IngestionJobEvent, fields map[string]any) {
	if err := p.jobs.UpdateIngestionJob(ctx, event.OwnerID, event.JobID, fields); err != nil {
		logCtx.Error("CRITICAL: Failed to write terminal job state.", "fields", fields["status"], "error", err)
	}
}
