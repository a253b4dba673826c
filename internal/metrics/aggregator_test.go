package metrics

import (
	"testing"

	"cloud.google.com/go/firestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groceryflow/groceryflow/internal/models"
)

func TestLatencyBucket(t *testing.T) {
	assert.Equal(t, "lt_2s", LatencyBucket(0))
	assert.Equal(t, "lt_2s", LatencyBucket(1999))
	assert.Equal(t, "2s_5s", LatencyBucket(2000))
	assert.Equal(t, "2s_5s", LatencyBucket(4999))
	assert.Equal(t, "gt_5s", LatencyBucket(5000))
	assert.Equal(t, "gt_5s", LatencyBucket(60000))
}

func TestConfidenceBucket(t *testing.T) {
	assert.Equal(t, "low", ConfidenceBucket(0))
	assert.Equal(t, "low", ConfidenceBucket(0.5))
	assert.Equal(t, "medium", ConfidenceBucket(0.51))
	assert.Equal(t, "medium", ConfidenceBucket(0.8))
	assert.Equal(t, "high", ConfidenceBucket(0.81))
	assert.Equal(t, "high", ConfidenceBucket(1))
}

func TestCounterUpdatesFullEvent(t *testing.T) {
	latency := int64(2500)
	confidence := 0.9
	event := models.InteractionEvent{
		AgentName:    "grocery-agent",
		Success:      true,
		UsedFallback: true,
		LatencyMs:    &latency,
		Confidence:   &confidence,
	}

	updates := CounterUpdates(event)

	assert.Equal(t, firestore.Increment(1), updates["totalCount"])
	assert.Equal(t, firestore.Increment(1), updates["successCount"])
	assert.Equal(t, firestore.Increment(1), updates["fallbackCount"])
	assert.Equal(t, firestore.Increment(int64(2500)), updates["sumLatencyMs"])
	assert.Equal(t, firestore.Increment(1), updates["latencySamples"])
	assert.Equal(t,
		map[string]any{"2s_5s": firestore.Increment(1)},
		updates["latencyBuckets"])
	assert.Equal(t, firestore.Increment(0.9), updates["sumConfidence"])
	assert.Equal(t,
		map[string]any{"high": firestore.Increment(1)},
		updates["confidenceBuckets"])

	perAgent, ok := updates["perAgent"].(map[string]any)
	require.True(t, ok)
	agent, ok := perAgent["grocery-agent"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, firestore.Increment(1), agent["count"])
	assert.Equal(t, firestore.Increment(1), agent["success"])
	assert.Equal(t, firestore.Increment(1), agent["fallback"])
}

func TestCounterUpdatesMinimalEvent(t *testing.T) {
	updates := CounterUpdates(models.InteractionEvent{})

	assert.Equal(t, firestore.Increment(1), updates["totalCount"])
	assert.NotContains(t, updates, "successCount")
	assert.NotContains(t, updates, "fallbackCount")
	assert.NotContains(t, updates, "sumLatencyMs")
	assert.NotContains(t, updates, "latencyBuckets")
	assert.NotContains(t, updates, "sumConfidence")
	assert.NotContains(t, updates, "confidenceBuckets")
	assert.NotContains(t, updates, "perAgent")
}
