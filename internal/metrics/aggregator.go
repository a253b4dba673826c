// Package metrics folds agent interaction events into daily and global
// counter documents.
package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/groceryflow/groceryflow/internal/models"
)

const (
	metricsCollection = "agent_metrics"
	globalDocID       = "global"
)

// LatencyBucket maps a latency sample to its histogram key.
func LatencyBucket(latencyMs int64) string {
	switch {
	case latencyMs < 2000:
		return "lt_2s"
	case latencyMs < 5000:
		return "2s_5s"
	default:
		return "gt_5s"
	}
}

// ConfidenceBucket maps a confidence sample to its histogram key.
func ConfidenceBucket(confidence float64) string {
	switch {
	case confidence <= 0.5:
		return "low"
	case confidence <= 0.8:
		return "medium"
	default:
		return "high"
	}
}

// CounterUpdates builds the increment-only merge payload for one event.
// Increments are idempotent arithmetic under at-least-once delivery: a
// retried event adds again, but concurrent events never lose counts. Missing
// latency or confidence samples simply contribute nothing to their buckets.
func CounterUpdates(event models.InteractionEvent) map[string]any {
	updates := map[string]any{
		"totalCount": firestore.Increment(1),
	}
	if event.Success {
		updates["successCount"] = firestore.Increment(1)
	}
	if event.UsedFallback {
		updates["fallbackCount"] = firestore.Increment(1)
	}
	if event.LatencyMs != nil {
		updates["sumLatencyMs"] = firestore.Increment(*event.LatencyMs)
		updates["latencySamples"] = firestore.Increment(1)
		updates["latencyBuckets"] = map[string]any{
			LatencyBucket(*event.LatencyMs): firestore.Increment(1),
		}
	}
	if event.Confidence != nil {
		updates["sumConfidence"] = firestore.Increment(*event.Confidence)
		updates["confidenceSamples"] = firestore.Increment(1)
		updates["confidenceBuckets"] = map[string]any{
			ConfidenceBucket(*event.Confidence): firestore.Increment(1),
		}
	}
	if event.AgentName != "" {
		perAgent := map[string]any{"count": firestore.Increment(1)}
		if event.Success {
			perAgent["success"] = firestore.Increment(1)
		}
		if event.UsedFallback {
			perAgent["fallback"] = firestore.Increment(1)
		}
		updates["perAgent"] = map[string]any{event.AgentName: perAgent}
	}
	return updates
}

// Aggregator applies interaction events to the counter documents.
type Aggregator struct {
	client *firestore.Client
	logger *slog.Logger
}

func NewAggregator(client *firestore.Client) *Aggregator {
	return &Aggregator{client: client, logger: slog.Default()}
}

// Apply increments the per-day and global counter documents, each inside its
// own read-modify-write transaction. The two documents are independent, so
// they run concurrently.
func (a *Aggregator) Apply(ctx context.Context, event models.InteractionEvent) error {
	day := event.CreatedAt
	if day.IsZero() {
		day = time.Now()
	}
	dayID := day.UTC().Format("2006-01-02")
	updates := CounterUpdates(event)

	eg, gctx := errgroup.WithContext(ctx)
	for _, docID := range []string{dayID, globalDocID} {
		ref := a.client.Collection(metricsCollection).Doc(docID)
		eg.Go(func() error {
			return a.applyToDocument(gctx, ref, updates)
		})
	}
	if err := eg.Wait(); err != nil {
		return fmt.Errorf("failed to aggregate interaction event: %w", err)
	}
	return nil
}

func (a *Aggregator) applyToDocument(ctx context.Context, ref *firestore.DocumentRef, updates map[string]any) error {
	return a.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(ref); err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		return tx.Set(ref, updates, firestore.MergeAll)
	})
}
