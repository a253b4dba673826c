package inventory

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groceryflow/groceryflow/internal/models"
)

// fakeInventory is an in-memory InventoryStore.
type fakeInventory struct {
	items  map[string]*models.InventoryItem
	audits []models.AuditLogEntry
	nextID int
}

func newFakeInventory() *fakeInventory {
	return &fakeInventory{items: map[string]*models.InventoryItem{}}
}

func (f *fakeInventory) ListItems(ctx context.Context, ownerID string) ([]models.InventoryItem, error) {
	var items []models.InventoryItem
	for _, item := range f.items {
		items = append(items, *item)
	}
	return items, nil
}

func (f *fakeInventory) CreateItem(ctx context.Context, ownerID string, item models.InventoryItem) (string, error) {
	f.nextID++
	id := fmt.Sprintf("item-%d", f.nextID)
	item.ID = id
	f.items[id] = &item
	return id, nil
}

func (f *fakeInventory) UpdateItem(ctx context.Context, ownerID, itemID string, fields map[string]any) error {
	item, ok := f.items[itemID]
	if !ok {
		return fmt.Errorf("item %s not found", itemID)
	}
	for key, value := range fields {
		switch key {
		case "quantity":
			item.Quantity = value.(float64)
		case "unit":
			item.Unit = value.(string)
		case "category":
			item.Category = value.(string)
		case "location":
			item.Location = value.(string)
		case "notes":
			item.Notes = value.(string)
		case "brand":
			item.Brand = value.(string)
		case "expirationDate":
			item.ExpirationDate = value.(string)
		}
	}
	return nil
}

func (f *fakeInventory) AppendAuditLog(ctx context.Context, ownerID string, entry models.AuditLogEntry) error {
	f.audits = append(f.audits, entry)
	return nil
}

func (f *fakeInventory) byName(name string) *models.InventoryItem {
	for _, item := range f.items {
		if item.Name == name {
			return item
		}
	}
	return nil
}

func rawUpdate(name string, quantity float64, action string) map[string]any {
	return map[string]any{"name": name, "quantity": quantity, "action": action}
}

func TestApplySetIsIdempotent(t *testing.T) {
	fake := newFakeInventory()
	engine := NewEngine(fake, Config{})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		batch, err := engine.ApplyRaw(ctx, "u1", []map[string]any{rawUpdate("Milk", 2, "set")}, "manual_update")
		require.NoError(t, err)
		assert.Empty(t, batch.ValidationErrors)
	}

	item := fake.byName("Milk")
	require.NotNil(t, item)
	assert.Equal(t, 2.0, item.Quantity)
}

func TestApplyAddAndSubtract(t *testing.T) {
	fake := newFakeInventory()
	engine := NewEngine(fake, Config{})
	ctx := context.Background()

	_, err := engine.ApplyRaw(ctx, "u1", []map[string]any{rawUpdate("eggs", 6, "add")}, "manual_update")
	require.NoError(t, err)
	_, err = engine.ApplyRaw(ctx, "u1", []map[string]any{rawUpdate("eggs", 4, "add")}, "manual_update")
	require.NoError(t, err)
	assert.Equal(t, 10.0, fake.byName("eggs").Quantity)

	// Subtract floors at zero.
	_, err = engine.ApplyRaw(ctx, "u1", []map[string]any{rawUpdate("eggs", 25, "subtract")}, "manual_update")
	require.NoError(t, err)
	assert.Equal(t, 0.0, fake.byName("eggs").Quantity)
}

func TestApplyResolvesNamesCaseInsensitively(t *testing.T) {
	fake := newFakeInventory()
	engine := NewEngine(fake, Config{})
	ctx := context.Background()

	_, err := engine.ApplyRaw(ctx, "u1", []map[string]any{rawUpdate("Milk", 1, "add")}, "manual_update")
	require.NoError(t, err)
	_, err = engine.ApplyRaw(ctx, "u1", []map[string]any{rawUpdate("milk", 2, "add")}, "manual_update")
	require.NoError(t, err)

	assert.Len(t, fake.items, 1, "both spellings resolve to the same item")
	assert.Equal(t, 3.0, fake.byName("Milk").Quantity)
}

func TestApplyMergesOnlyStatedFields(t *testing.T) {
	fake := newFakeInventory()
	engine := NewEngine(fake, Config{})
	ctx := context.Background()

	_, err := engine.ApplyRaw(ctx, "u1", []map[string]any{{
		"name": "milk", "quantity": 1, "action": "add", "category": "dairy", "unit": "litre",
	}}, "manual_update")
	require.NoError(t, err)

	// Omitting category must leave it untouched.
	_, err = engine.ApplyRaw(ctx, "u1", []map[string]any{rawUpdate("milk", 1, "add")}, "manual_update")
	require.NoError(t, err)
	assert.Equal(t, "dairy", fake.byName("milk").Category)

	// Explicitly setting it overwrites.
	_, err = engine.ApplyRaw(ctx, "u1", []map[string]any{{
		"name": "milk", "quantity": 0, "action": "add", "category": "chilled",
	}}, "manual_update")
	require.NoError(t, err)
	assert.Equal(t, "chilled", fake.byName("milk").Category)
}

func TestApplyRejectsInvalidWithoutMutating(t *testing.T) {
	fake := newFakeInventory()
	engine := NewEngine(fake, Config{})
	ctx := context.Background()

	batch, err := engine.ApplyRaw(ctx, "u1", []map[string]any{
		rawUpdate("milk", 2, "add"),
		{"name": "eggs", "quantity": -1, "action": "add"},
		{"quantity": 1, "action": "add"},
	}, "manual_update")
	require.NoError(t, err)

	assert.Equal(t, 3, batch.Summary.Total)
	assert.Equal(t, 1, batch.Summary.Successful)
	assert.Equal(t, 2, batch.Summary.Failed)
	assert.Equal(t, []string{
		"eggs: Quantity must be a non-negative number",
		"(unnamed): Missing required fields: name, quantity, action",
	}, batch.ValidationErrors)

	assert.Len(t, fake.items, 1)
	assert.Nil(t, fake.byName("eggs"))
}

func TestApplySequentialBatchSeesEarlierWrite(t *testing.T) {
	fake := newFakeInventory()
	engine := NewEngine(fake, Config{})
	ctx := context.Background()

	batch, err := engine.ApplyRaw(ctx, "u1", []map[string]any{
		rawUpdate("milk", 2, "add"),
		rawUpdate("milk", 3, "add"),
	}, "manual_update")
	require.NoError(t, err)

	assert.Equal(t, 2, batch.Summary.Successful)
	assert.Len(t, fake.items, 1)
	assert.Equal(t, 5.0, fake.byName("milk").Quantity)
}

func TestApplyCreatesWithDefaults(t *testing.T) {
	fake := newFakeInventory()
	engine := NewEngine(fake, Config{})

	_, err := engine.ApplyRaw(context.Background(), "u1", []map[string]any{rawUpdate("Semi-Skimmed Milk", 1, "add")}, "manual_update")
	require.NoError(t, err)

	item := fake.byName("Semi-Skimmed Milk")
	require.NotNil(t, item)
	assert.Equal(t, DefaultUnit, item.Unit)
	assert.Equal(t, DefaultCategory, item.Category)
	assert.Equal(t, float64(DefaultLowStockThreshold), item.LowStockThreshold)
	assert.Contains(t, item.SearchKeywords, "skimmed")
}

func TestAuditTruncation(t *testing.T) {
	fake := newFakeInventory()
	engine := NewEngine(fake, Config{AuditMaxItemIDs: 3, AuditMaxSnapshots: 2})
	ctx := context.Background()

	var raws []map[string]any
	for i := 0; i < 5; i++ {
		raws = append(raws, rawUpdate(fmt.Sprintf("item-%d", i), 1, "add"))
	}
	_, err := engine.ApplyRaw(ctx, "u1", raws, "manual_update")
	require.NoError(t, err)

	require.Len(t, fake.audits, 1)
	entry := fake.audits[0]
	assert.Equal(t, "manual_update", entry.Action)
	assert.Len(t, entry.ItemIDs, 3)
	assert.Len(t, entry.Results, 2)
	assert.Len(t, entry.Requests, 2)
	assert.Equal(t, 5, entry.Summary.Successful)
}

func TestSearch(t *testing.T) {
	fake := newFakeInventory()
	engine := NewEngine(fake, Config{})
	ctx := context.Background()

	_, err := engine.ApplyRaw(ctx, "u1", []map[string]any{
		{"name": "Semi-Skimmed Milk", "quantity": 1, "action": "add", "category": "dairy"},
		{"name": "Bread", "quantity": 1, "action": "add", "category": "bakery"},
	}, "manual_update")
	require.NoError(t, err)

	all, err := engine.Search(ctx, "u1", "", false)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	substr, err := engine.Search(ctx, "u1", "milk", false)
	require.NoError(t, err)
	require.Len(t, substr, 1)
	assert.Equal(t, "Semi-Skimmed Milk", substr[0].Name)

	fuzzy, err := engine.Search(ctx, "u1", "sskmd", true)
	require.NoError(t, err)
	require.Len(t, fuzzy, 1)
	assert.Equal(t, "Semi-Skimmed Milk", fuzzy[0].Name)

	none, err := engine.Search(ctx, "u1", "sskmd", false)
	require.NoError(t, err)
	assert.Empty(t, none)
}
