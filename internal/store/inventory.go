// Package store holds the Firestore-backed repositories behind narrow
// interfaces, so the engines and pipeline take an explicitly constructed
// document-store dependency instead of a package-level client.
package store

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/groceryflow/groceryflow/internal/models"
)

// Collection names under users/{uid}.
const (
	inventoryCollection = "inventory"
	auditLogCollection  = "audit_logs"
	jobsCollection      = "ingestion_jobs"
	uploadsCollection   = "uploads"
	usersCollection     = "users"
)

// InventoryStore is the persistence boundary for inventory items and their
// audit trail. The inventory collection is logically owned per user; no
// cross-owner access path exists.
type InventoryStore interface {
	ListItems(ctx context.Context, ownerID string) ([]models.InventoryItem, error)
	CreateItem(ctx context.Context, ownerID string, item models.InventoryItem) (string, error)
	UpdateItem(ctx context.Context, ownerID, itemID string, fields map[string]any) error
	AppendAuditLog(ctx context.Context, ownerID string, entry models.AuditLogEntry) error
}

// FirestoreInventory implements InventoryStore on Firestore.
type FirestoreInventory struct {
	client *firestore.Client
}

func NewFirestoreInventory(client *firestore.Client) *FirestoreInventory {
	return &FirestoreInventory{client: client}
}

func (s *FirestoreInventory) items(ownerID string) *firestore.CollectionRef {
	return s.client.Collection(usersCollection).Doc(ownerID).Collection(inventoryCollection)
}

// ListItems reads the owner's full inventory. Per-user inventories are small,
// so a full read per resolution lookup is the accepted tradeoff for correct
// case-insensitive matching.
func (s *FirestoreInventory) ListItems(ctx context.Context, ownerID string) ([]models.InventoryItem, error) {
	it := s.items(ownerID).Documents(ctx)
	defer it.Stop()

	var items []models.InventoryItem
	for {
		doc, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list inventory for %s: %w", ownerID, err)
		}
		var item models.InventoryItem
		if err := doc.DataTo(&item); err != nil {
			return nil, fmt.Errorf("failed to decode inventory item %s: %w", doc.Ref.ID, err)
		}
		item.ID = doc.Ref.ID
		items = append(items, item)
	}
	return items, nil
}

func (s *FirestoreInventory) CreateItem(ctx context.Context, ownerID string, item models.InventoryItem) (string, error) {
	docRef, _, err := s.items(ownerID).Add(ctx, item)
	if err != nil {
		return "", fmt.Errorf("failed to create inventory item %q: %w", item.Name, err)
	}
	return docRef.ID, nil
}

// UpdateItem merges the given fields into an existing item. The store stamps
// the update timestamps; callers never pass sentinels.
func (s *FirestoreInventory) UpdateItem(ctx context.Context, ownerID, itemID string, fields map[string]any) error {
	merged := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		merged[k] = v
	}
	merged["updatedAt"] = firestore.ServerTimestamp
	merged["lastUpdated"] = firestore.ServerTimestamp

	if _, err := s.items(ownerID).Doc(itemID).Set(ctx, merged, firestore.MergeAll); err != nil {
		return fmt.Errorf("failed to update inventory item %s: %w", itemID, err)
	}
	return nil
}

func (s *FirestoreInventory) AppendAuditLog(ctx context.Context, ownerID string, entry models.AuditLogEntry) error {
	collection := s.client.Collection(usersCollection).Doc(ownerID).Collection(auditLogCollection)
	if _, _, err := collection.Add(ctx, entry); err != nil {
		return fmt.Errorf("failed to append audit log for %s: %w", ownerID, err)
	}
	return nil
}
