package main

import (
	"context"
	"log/slog"
	"os"

	"cloud.google.com/go/storage"

	"github.com/groceryflow/groceryflow/internal/agent"
	"github.com/groceryflow/groceryflow/internal/api"
	"github.com/groceryflow/groceryflow/internal/gcp"
	"github.com/groceryflow/groceryflow/internal/inventory"
	"github.com/groceryflow/groceryflow/internal/parser"
	"github.com/groceryflow/groceryflow/internal/pipeline"
	"github.com/groceryflow/groceryflow/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := api.LoadConfig()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	fsClient, err := gcp.NewFirestoreClient(ctx, cfg.ProjectID)
	if err != nil {
		slog.Error("Failed to create Firestore client", "error", err)
		os.Exit(1)
	}
	defer fsClient.Close()

	// Vertex is optional: without it the parser degrades to heuristic text
	// parsing and the agent tier always falls back.
	vertex, err := gcp.NewVertexClient(ctx, cfg.ProjectID, cfg.VertexAIRegion)
	if err != nil {
		slog.Warn("Vertex AI unavailable. Running in degraded mode.", "error", err)
		vertex = nil
	} else {
		defer vertex.Close()
	}

	inventoryStore := store.NewFirestoreInventory(fsClient)
	jobs := store.NewFirestoreJobs(fsClient)
	engine := inventory.NewEngine(inventoryStore, inventory.Config{})
	groceryParser := parser.New(vertex)

	var runner agent.Runner = pipeline.UnavailableRunner()
	if vertex != nil {
		runner = agent.NewVertexRunner(vertex, engine, inventoryStore)
	}
	orchestrator := pipeline.NewOrchestrator(
		runner,
		groceryParser,
		engine,
		store.NewFirestoreInteractions(fsClient),
		cfg.AgentName,
	)

	// The upload surface only exists when a bucket is configured.
	var signer api.URLSigner
	var uploadRunner api.UploadRunner
	if cfg.UploadBucket != "" {
		gcsClient, err := storage.NewClient(ctx)
		if err != nil {
			slog.Error("Failed to create storage client", "error", err)
			os.Exit(1)
		}
		defer gcsClient.Close()
		signer = gcp.NewUploadSigner(gcsClient, cfg.UploadBucket, cfg.SignedURLTTL)
		uploadRunner = pipeline.NewUploadProcessor(
			jobs,
			jobs,
			pipeline.NewGCSBlobReader(gcsClient, cfg.UploadBucket),
			parser.NewExtractor(groceryParser),
		)
	}

	server := api.NewServer(engine, groceryParser, orchestrator, jobs, jobs, signer, uploadRunner)
	e := server.Echo()
	slog.Info("Starting API server", "port", cfg.Port)
	if err := e.Start(":" + cfg.Port); err != nil {
		slog.Error("Server stopped", "error", err)
		os.Exit(1)
	}
}
