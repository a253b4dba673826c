package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/groceryflow/groceryflow/internal/pipeline"
)

var (
	processorInstance *pipeline.UploadProcessor
	once              sync.Once
	initErr           error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.CloudEvent("ProcessUpload", processUpload)
}

// main is required by the Go Functions Framework.
func main() {}

// processUpload fires on every object finalize in the upload bucket.
func processUpload(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		processorInstance, _, initErr = pipeline.NewUploadProcessorFromEnv(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	var event pipeline.StorageEvent
	if err := json.Unmarshal(e.Data(), &event); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "data", string(e.Data()))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}

	return processorInstance.HandleStorageEvent(ctx, event)
}
