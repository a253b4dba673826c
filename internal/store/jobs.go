package store

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"

	"github.com/groceryflow/groceryflow/internal/models"
)

// ErrUploadNotQueueable signals a precondition failure: the upload has
// already left awaiting_upload, so queuing it again must not silently re-run
// the pipeline.
var ErrUploadNotQueueable = errors.New("Upload is already being processed")

// JobStore persists ingestion jobs. Status transitions are merge upserts so
// retried trigger deliveries are safe.
type JobStore interface {
	CreateIngestionJob(ctx context.Context, ownerID string, job models.IngestionJob) (string, error)
	GetIngestionJob(ctx context.Context, ownerID, jobID string) (*models.IngestionJob, error)
	UpdateIngestionJob(ctx context.Context, ownerID, jobID string, fields map[string]any) error
}

// UploadStore persists upload records and guards the queue transition.
type UploadStore interface {
	CreateUpload(ctx context.Context, ownerID string, record models.UploadRecord) (string, error)
	GetUpload(ctx context.Context, ownerID, uploadID string) (*models.UploadRecord, error)
	QueueUpload(ctx context.Context, ownerID, uploadID string) error
	UpdateUpload(ctx context.Context, ownerID, uploadID string, fields map[string]any) error
}

// FirestoreJobs implements JobStore and UploadStore on Firestore.
type FirestoreJobs struct {
	client *firestore.Client
}

func NewFirestoreJobs(client *firestore.Client) *FirestoreJobs {
	return &FirestoreJobs{client: client}
}

func (s *FirestoreJobs) jobRef(ownerID, jobID string) *firestore.DocumentRef {
	return s.client.Collection(usersCollection).Doc(ownerID).Collection(jobsCollection).Doc(jobID)
}

func (s *FirestoreJobs) uploadRef(ownerID, uploadID string) *firestore.DocumentRef {
	return s.client.Collection(usersCollection).Doc(ownerID).Collection(uploadsCollection).Doc(uploadID)
}

func (s *FirestoreJobs) CreateIngestionJob(ctx context.Context, ownerID string, job models.IngestionJob) (string, error) {
	collection := s.client.Collection(usersCollection).Doc(ownerID).Collection(jobsCollection)
	docRef, _, err := collection.Add(ctx, job)
	if err != nil {
		return "", fmt.Errorf("failed to create ingestion job for %s: %w", ownerID, err)
	}
	return docRef.ID, nil
}

func (s *FirestoreJobs) GetIngestionJob(ctx context.Context, ownerID, jobID string) (*models.IngestionJob, error) {
	snap, err := s.jobRef(ownerID, jobID).Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read ingestion job %s: %w", jobID, err)
	}
	var job models.IngestionJob
	if err := snap.DataTo(&job); err != nil {
		return nil, fmt.Errorf("failed to decode ingestion job %s: %w", jobID, err)
	}
	job.ID = snap.Ref.ID
	return &job, nil
}

func (s *FirestoreJobs) UpdateIngestionJob(ctx context.Context, ownerID, jobID string, fields map[string]any) error {
	merged := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		merged[k] = v
	}
	merged["updatedAt"] = firestore.ServerTimestamp

	if _, err := s.jobRef(ownerID, jobID).Set(ctx, merged, firestore.MergeAll); err != nil {
		return fmt.Errorf("failed to update ingestion job %s: %w", jobID, err)
	}
	return nil
}

func (s *FirestoreJobs) CreateUpload(ctx context.Context, ownerID string, record models.UploadRecord) (string, error) {
	docRef := s.client.Collection(usersCollection).Doc(ownerID).Collection(uploadsCollection).Doc(record.ID)
	if _, err := docRef.Set(ctx, record); err != nil {
		return "", fmt.Errorf("failed to create upload record for %s: %w", ownerID, err)
	}
	return docRef.ID, nil
}

func (s *FirestoreJobs) GetUpload(ctx context.Context, ownerID, uploadID string) (*models.UploadRecord, error) {
	snap, err := s.uploadRef(ownerID, uploadID).Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload %s: %w", uploadID, err)
	}
	var record models.UploadRecord
	if err := snap.DataTo(&record); err != nil {
		return nil, fmt.Errorf("failed to decode upload %s: %w", uploadID, err)
	}
	record.ID = snap.Ref.ID
	return &record, nil
}

// QueueUpload moves awaiting_upload to queued inside a transaction. Any other
// current state fails with ErrUploadNotQueueable, so double-queuing a
// concurrent retry cannot re-run the extraction.
func (s *FirestoreJobs) QueueUpload(ctx context.Context, ownerID, uploadID string) error {
	ref := s.uploadRef(ownerID, uploadID)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		var record models.UploadRecord
		if err := snap.DataTo(&record); err != nil {
			return err
		}
		if record.Status != models.UploadStatusAwaiting {
			return ErrUploadNotQueueable
		}
		return tx.Set(ref, map[string]any{
			"status":    models.UploadStatusQueued,
			"updatedAt": firestore.ServerTimestamp,
		}, firestore.MergeAll)
	})
	if errors.Is(err, ErrUploadNotQueueable) {
		return ErrUploadNotQueueable
	}
	if err != nil {
		return fmt.Errorf("failed to queue upload %s: %w", uploadID, err)
	}
	return nil
}

func (s *FirestoreJobs) UpdateUpload(ctx context.Context, ownerID, uploadID string, fields map[string]any) error {
	merged := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		merged[k] = v
	}
	merged["updatedAt"] = firestore.ServerTimestamp

	if _, err := s.uploadRef(ownerID, uploadID).Set(ctx, merged, firestore.MergeAll); err != nil {
		return fmt.Errorf("failed to update upload %s: %w", uploadID, err)
	}
	return nil
}
