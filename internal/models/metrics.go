package models

import "time"

// InteractionEvent is one logged pipeline run. Creating an
// agent_interactions document fires the metrics aggregator, which folds the
// event into the daily and global counter documents. LatencyMs and
// Confidence are pointers because a missing sample is simply not counted.
type InteractionEvent struct {
	ID           string    `firestore:"-" json:"id"`
	OwnerID      string    `firestore:"ownerId" json:"ownerId"`
	AgentName    string    `firestore:"agentName,omitempty" json:"agentName,omitempty"`
	Success      bool      `firestore:"success" json:"success"`
	UsedFallback bool      `firestore:"usedFallback" json:"usedFallback"`
	LatencyMs    *int64    `firestore:"latencyMs,omitempty" json:"latencyMs,omitempty"`
	Confidence   *float64  `firestore:"confidence,omitempty" json:"confidence,omitempty"`
	Error        string    `firestore:"error,omitempty" json:"error,omitempty"`
	CreatedAt    time.Time `firestore:"createdAt,serverTimestamp" json:"createdAt"`
}
