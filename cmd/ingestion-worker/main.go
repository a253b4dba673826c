package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/groceryflow/groceryflow/internal/pipeline"
)

var (
	processorInstance *pipeline.IngestionProcessor
	once              sync.Once
	initErr           error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.CloudEvent("ProcessIngestionJob", processIngestionJob)
}

// main is required by the Go Functions Framework.
func main() {}

// processIngestionJob fires when an ingestion job document is created under
// users/{ownerId}/ingestion_jobs/{jobId}.
func processIngestionJob(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		processorInstance, _, initErr = pipeline.NewIngestionProcessorFromEnv(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	ownerID, jobID, err := ingestionJobPath(e)
	if err != nil {
		slog.Error("Failed to resolve job document from event", "error", err, "subject", e.Subject())
		return err
	}

	return processorInstance.Process(ctx, pipeline.IngestionJobEvent{OwnerID: ownerID, JobID: jobID})
}

// ingestionJobPath pulls the owner and job ids out of the trigger's document
// path, e.g. ".../documents/users/u1/ingestion_jobs/j1".
func ingestionJobPath(e cloudevents.Event) (string, string, error) {
	docPath := firestoreDocumentPath(e)
	parts := strings.Split(docPath, "/")
	if len(parts) != 4 || parts[0] != "users" || parts[2] != "ingestion_jobs" {
		return "", "", fmt.Errorf("unexpected document path %q", docPath)
	}
	return parts[1], parts[3], nil
}

func firestoreDocumentPath(e cloudevents.Event) string {
	subject := e.Subject()
	if idx := strings.Index(subject, "/documents/"); idx >= 0 {
		return subject[idx+len("/documents/"):]
	}
	return subject
}
