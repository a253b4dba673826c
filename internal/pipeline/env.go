package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/storage"

	"github.com/groceryflow/groceryflow/internal/agent"
	"github.com/groceryflow/groceryflow/internal/gcp"
	"github.com/groceryflow/groceryflow/internal/inventory"
	"github.com/groceryflow/groceryflow/internal/parser"
	"github.com/groceryflow/groceryflow/internal/store"
)

// unavailableRunner stands in for the agent tier when Vertex AI could not be
// initialized. Every run fails immediately, which routes the pipeline through
// the fallback parser.
type unavailableRunner struct {
	err error
}

func (r unavailableRunner) Run(ctx context.Context, req agent.Request) (*agent.Result, error) {
	return nil, r.err
}

// UnavailableRunner is the degraded-mode agent tier: every run fails, which
// forces the fallback parser path.
func UnavailableRunner() agent.Runner {
	return unavailableRunner{err: errors.New("agent unavailable: no generative model configured")}
}

// NewIngestionProcessorFromEnv wires the full ingestion worker from the
// process environment: PROJECT_ID (required) and VERTEX_AI_REGION. When the
// Vertex client cannot be built the worker still starts in degraded mode,
// parsing with the heuristic parser only.
func NewIngestionProcessorFromEnv(ctx context.Context) (*IngestionProcessor, func(), error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, nil, fmt.Errorf("PROJECT_ID environment variable not set")
	}
	region := gcp.GetEnv("VERTEX_AI_REGION", "us-central1")

	fsClient, err := gcp.NewFirestoreClient(ctx, projectID)
	if err != nil {
		return nil, nil, err
	}

	var runner agent.Runner
	vertex, err := gcp.NewVertexClient(ctx, projectID, region)
	if err != nil {
		slog.Warn("Vertex AI unavailable. Running in degraded mode.", "error", err)
		vertex = nil
		runner = unavailableRunner{err: fmt.Errorf("agent unavailable: %w", err)}
	}

	inventoryStore := store.NewFirestoreInventory(fsClient)
	engine := inventory.NewEngine(inventoryStore, inventory.Config{})
	if runner == nil {
		runner = agent.NewVertexRunner(vertex, engine, inventoryStore)
	}

	orchestrator := NewOrchestrator(
		runner,
		parser.New(vertex),
		engine,
		store.NewFirestoreInteractions(fsClient),
		gcp.GetEnv("AGENT_NAME", "grocery-agent"),
	)
	processor := NewIngestionProcessor(store.NewFirestoreJobs(fsClient), orchestrator)

	cleanup := func() {
		if vertex != nil {
			vertex.Close()
		}
		fsClient.Close()
	}
	return processor, cleanup, nil
}

// NewUploadProcessorFromEnv wires the upload worker from the process
// environment: PROJECT_ID and UPLOAD_BUCKET (both required), plus
// VERTEX_AI_REGION for image extraction. Without Vertex, image uploads fail
// their extraction while text, PDF, and spreadsheet uploads keep working.
func NewUploadProcessorFromEnv(ctx context.Context) (*UploadProcessor, func(), error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, nil, fmt.Errorf("PROJECT_ID environment variable not set")
	}
	bucket := gcp.GetEnv("UPLOAD_BUCKET", "")
	if bucket == "" {
		return nil, nil, fmt.Errorf("UPLOAD_BUCKET environment variable not set")
	}
	region := gcp.GetEnv("VERTEX_AI_REGION", "us-central1")

	fsClient, err := gcp.NewFirestoreClient(ctx, projectID)
	if err != nil {
		return nil, nil, err
	}
	gcsClient, err := storage.NewClient(ctx)
	if err != nil {
		fsClient.Close()
		return nil, nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	vertex, err := gcp.NewVertexClient(ctx, projectID, region)
	if err != nil {
		slog.Warn("Vertex AI unavailable. Image extraction disabled.", "error", err)
		vertex = nil
	}

	jobs := store.NewFirestoreJobs(fsClient)
	processor := NewUploadProcessor(
		jobs,
		jobs,
		NewGCSBlobReader(gcsClient, bucket),
		parser.NewExtractor(parser.New(vertex)),
	)

	cleanup := func() {
		if vertex != nil {
			vertex.Close()
		}
		gcsClient.Close()
		fsClient.Close()
	}
	return processor, cleanup, nil
}
