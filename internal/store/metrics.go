package store

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"

	"github.com/groceryflow/groceryflow/internal/models"
)

const interactionsCollection = "agent_interactions"

// FirestoreInteractions writes one agent_interactions document per pipeline
// run. Document creation is what fires the metrics aggregator trigger; this
// type never touches the counter documents itself.
type FirestoreInteractions struct {
	client *firestore.Client
}

func NewFirestoreInteractions(client *firestore.Client) *FirestoreInteractions {
	return &FirestoreInteractions{client: client}
}

func (s *FirestoreInteractions) RecordAgentInteraction(ctx context.Context, event models.InteractionEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	docRef := s.client.Collection(interactionsCollection).Doc(event.ID)
	if _, err := docRef.Set(ctx, event); err != nil {
		return fmt.Errorf("failed to record agent interaction: %w", err)
	}
	return nil
}
