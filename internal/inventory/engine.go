package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/groceryflow/groceryflow/internal/fuzzy"
	"github.com/groceryflow/groceryflow/internal/models"
	"github.com/groceryflow/groceryflow/internal/store"
)

// Config carries the audit-log truncation caps. The defaults mirror what the
// mobile clients expect; they are caps on document size, not semantics.
type Config struct {
	AuditMaxItemIDs   int
	AuditMaxSnapshots int
}

func (c *Config) applyDefaults() {
	if c.AuditMaxItemIDs <= 0 {
		c.AuditMaxItemIDs = 100
	}
	if c.AuditMaxSnapshots <= 0 {
		c.AuditMaxSnapshots = 50
	}
}

// BatchResult is the outcome of one applied batch. Success for the batch is
// defined as an empty ValidationErrors list, not "any item succeeded".
type BatchResult struct {
	Results          []models.UpdateResult
	Summary          models.BatchSummary
	ValidationErrors []string
}

// Engine applies batches of proposed updates against a per-owner inventory.
// Updates are processed sequentially, in input order: a later update to the
// same item name sees the earlier update's write.
type Engine struct {
	store  store.InventoryStore
	config Config
	logger *slog.Logger
}

func NewEngine(st store.InventoryStore, config Config) *Engine {
	config.applyDefaults()
	return &Engine{store: st, config: config, logger: slog.Default()}
}

// ApplyRaw validates each raw update and applies the batch. Rejected updates
// become failed results without aborting the rest of the batch.
func (e *Engine) ApplyRaw(ctx context.Context, ownerID string, raws []map[string]any, actionType string) (*BatchResult, error) {
	result := &BatchResult{Summary: models.BatchSummary{Total: len(raws)}}
	requests := make([]*models.ProposedUpdate, 0, len(raws))
	for _, raw := range raws {
		update, err := NormalizeUpdate(raw)
		if err != nil {
			name := strings.TrimSpace(stringValue(raw["name"]))
			e.recordFailure(result, name, err.Error())
			requests = append(requests, &models.ProposedUpdate{Name: name, NeedsReview: true})
			continue
		}
		requests = append(requests, update)
		e.applyOne(ctx, ownerID, update, result)
	}

	e.writeAudit(ctx, ownerID, actionType, requests, result)
	return result, nil
}

// Apply runs a batch of already-validated updates (the parser output path).
func (e *Engine) Apply(ctx context.Context, ownerID string, updates []*models.ProposedUpdate, actionType string) (*BatchResult, error) {
	result := &BatchResult{Summary: models.BatchSummary{Total: len(updates)}}
	for _, update := range updates {
		e.applyOne(ctx, ownerID, update, result)
	}
	e.writeAudit(ctx, ownerID, actionType, updates, result)
	return result, nil
}

// Search filters the owner's inventory with the fuzzy engine. Every query
// token must match across the item's searchable fields.
func (e *Engine) Search(ctx context.Context, ownerID, query string, fuzzyMode bool) ([]models.InventoryItem, error) {
	items, err := e.store.ListItems(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return items, nil
	}
	var matched []models.InventoryItem
	for _, item := range items {
		fields := []string{item.Name, item.Category, item.Location, item.Brand, item.Notes}
		if fuzzy.MatchesQuery(fields, query, fuzzyMode) {
			matched = append(matched, item)
		}
	}
	return matched, nil
}

// applyOne resolves the update against a fresh inventory snapshot and writes
// the outcome. Store failures count as item failures; they never abort the
// batch.
func (e *Engine) applyOne(ctx context.Context, ownerID string, update *models.ProposedUpdate, result *BatchResult) {
	items, err := e.store.ListItems(ctx, ownerID)
	if err != nil {
		e.recordFailure(result, update.Name, fmt.Sprintf("failed to read inventory: %v", err))
		return
	}

	existing := resolveByName(items, update.Name)
	if existing == nil {
		e.createItem(ctx, ownerID, update, result)
		return
	}

	quantity := computeQuantity(existing.Quantity, update)
	fields := mergeFields(update, quantity)
	if err := e.store.UpdateItem(ctx, ownerID, existing.ID, fields); err != nil {
		e.recordFailure(result, update.Name, fmt.Sprintf("failed to write item: %v", err))
		return
	}

	result.Results = append(result.Results, models.UpdateResult{
		Name:     existing.Name,
		Success:  true,
		ItemID:   existing.ID,
		Quantity: quantity,
		Message:  fmt.Sprintf("Updated %s: quantity %g", existing.Name, quantity),
	})
	result.Summary.Successful++
}

func (e *Engine) createItem(ctx context.Context, ownerID string, update *models.ProposedUpdate, result *BatchResult) {
	quantity := computeQuantity(0, update)
	item := models.InventoryItem{
		Name:              update.Name,
		Quantity:          quantity,
		Unit:              DefaultUnit,
		Category:          DefaultCategory,
		LowStockThreshold: DefaultLowStockThreshold,
		SearchKeywords:    DeriveSearchKeywords(update.Name),
	}
	if update.Unit != nil {
		item.Unit = *update.Unit
	}
	if update.Category != nil {
		item.Category = *update.Category
	}
	if update.Location != nil {
		item.Location = *update.Location
	}
	if update.Notes != nil {
		item.Notes = *update.Notes
	}
	if update.Brand != nil {
		item.Brand = *update.Brand
	}
	if update.Size != nil {
		item.Size = *update.Size
	}
	if update.LowStockThreshold != nil {
		item.LowStockThreshold = *update.LowStockThreshold
	}
	if update.ExpirationDate != nil {
		item.ExpirationDate = *update.ExpirationDate
	}

	itemID, err := e.store.CreateItem(ctx, ownerID, item)
	if err != nil {
		e.recordFailure(result, update.Name, fmt.Sprintf("failed to create item: %v", err))
		return
	}

	result.Results = append(result.Results, models.UpdateResult{
		Name:     update.Name,
		Success:  true,
		ItemID:   itemID,
		Quantity: quantity,
		Message:  fmt.Sprintf("Created %s: quantity %g", update.Name, quantity),
	})
	result.Summary.Successful++
}

func (e *Engine) recordFailure(result *BatchResult, name, message string) {
	if name == "" {
		name = "(unnamed)"
	}
	result.Results = append(result.Results, models.UpdateResult{
		Name:    name,
		Success: false,
		Error:   message,
	})
	result.Summary.Failed++
	result.ValidationErrors = append(result.ValidationErrors, fmt.Sprintf("%s: %s", name, message))
}

// writeAudit appends exactly one truncated audit entry per batch. Audit
// failures are logged and swallowed; they never fail the batch.
func (e *Engine) writeAudit(ctx context.Context, ownerID, actionType string, updates []*models.ProposedUpdate, result *BatchResult) {
	entry := models.AuditLogEntry{
		Action:           actionType,
		OwnerID:          ownerID,
		Summary:          result.Summary,
		ValidationErrors: result.ValidationErrors,
	}
	for _, r := range result.Results {
		if r.ItemID != "" && len(entry.ItemIDs) < e.config.AuditMaxItemIDs {
			entry.ItemIDs = append(entry.ItemIDs, r.ItemID)
		}
	}
	for i, r := range result.Results {
		if i >= e.config.AuditMaxSnapshots {
			break
		}
		entry.Results = append(entry.Results, r)
	}
	for i, u := range updates {
		if i >= e.config.AuditMaxSnapshots {
			break
		}
		if u != nil {
			entry.Requests = append(entry.Requests, *u)
		}
	}

	if err := e.store.AppendAuditLog(ctx, ownerID, entry); err != nil {
		e.logger.Warn("Failed to append audit log entry.", "ownerId", ownerID, "action", actionType, "error", err)
	}
}

// resolveByName finds the case-insensitive match for name, if any.
func resolveByName(items []models.InventoryItem, name string) *models.InventoryItem {
	for i := range items {
		if strings.EqualFold(items[i].Name, name) {
			return &items[i]
		}
	}
	return nil
}

// computeQuantity applies the action semantics against the current quantity.
// Subtract floors at zero; quantities are never negative.
func computeQuantity(current float64, update *models.ProposedUpdate) float64 {
	switch update.Action {
	case models.ActionAdd:
		return current + update.Quantity
	case models.ActionSubtract:
		return math.Max(0, current-update.Quantity)
	default:
		return update.Quantity
	}
}

// mergeFields builds the partial update for an existing item: the computed
// quantity plus only the fields the update explicitly carried. Omitted fields
// retain their prior values.
func mergeFields(update *models.ProposedUpdate, quantity float64) map[string]any {
	fields := map[string]any{"quantity": quantity}
	if update.Unit != nil {
		fields["unit"] = *update.Unit
	}
	if update.Category != nil {
		fields["category"] = *update.Category
	}
	if update.Location != nil {
		fields["location"] = *update.Location
	}
	if update.Notes != nil {
		fields["notes"] = *update.Notes
	}
	if update.Brand != nil {
		fields["brand"] = *update.Brand
	}
	if update.Size != nil {
		fields["size"] = *update.Size
	}
	if update.LowStockThreshold != nil {
		fields["lowStockThreshold"] = *update.LowStockThreshold
	}
	if update.ExpirationDate != nil {
		fields["expirationDate"] = *update.ExpirationDate
	}
	return fields
}
