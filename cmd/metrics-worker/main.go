package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"cloud.google.com/go/firestore"
	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/groceryflow/groceryflow/internal/gcp"
	"github.com/groceryflow/groceryflow/internal/metrics"
	"github.com/groceryflow/groceryflow/internal/models"
)

var (
	fsClient   *firestore.Client
	aggregator *metrics.Aggregator
	once       sync.Once
	initErr    error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.CloudEvent("AggregateInteraction", aggregateInteraction)
}

// main is required by the Go Functions Framework.
func main() {}

// aggregateInteraction fires when an agent_interactions document is created.
// The event only carries the document path; the worker reads the document
// back and folds it into the daily and global counters.
func aggregateInteraction(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		projectID := gcp.GetEnv("PROJECT_ID", "")
		if projectID == "" {
			initErr = fmt.Errorf("PROJECT_ID environment variable not set")
			return
		}
		fsClient, initErr = gcp.NewFirestoreClient(context.Background(), projectID)
		if initErr != nil {
			return
		}
		aggregator = metrics.NewAggregator(fsClient)
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	docPath, err := interactionDocumentPath(e)
	if err != nil {
		slog.Error("Failed to resolve interaction document from event", "error", err, "subject", e.Subject())
		return err
	}

	snap, err := fsClient.Doc(docPath).Get(ctx)
	if err != nil {
		slog.Error("Failed to read interaction document", "path", docPath, "error", err)
		return err
	}
	var event models.InteractionEvent
	if err := snap.DataTo(&event); err != nil {
		slog.Error("Failed to decode interaction document", "path", docPath, "error", err)
		return err
	}
	event.ID = snap.Ref.ID

	if err := aggregator.Apply(ctx, event); err != nil {
		slog.Error("Failed to aggregate interaction", "path", docPath, "error", err)
		return err
	}
	return nil
}

func interactionDocumentPath(e cloudevents.Event) (string, error) {
	subject := e.Subject()
	idx := strings.Index(subject, "/documents/")
	if idx < 0 {
		return "", fmt.Errorf("unexpected event subject %q", subject)
	}
	docPath := subject[idx+len("/documents/"):]
	if !strings.HasPrefix(docPath, "agent_interactions/") {
		return "", fmt.Errorf("unexpected document path %q", docPath)
	}
	return docPath, nil
}
