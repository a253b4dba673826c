package models

import "time"

// Action verbs understood by the inventory update engine.
const (
	ActionAdd      = "add"
	ActionSubtract = "subtract"
	ActionSet      = "set"
)

// InventoryItem is the Firestore record for a single tracked grocery item.
// Within one owner's inventory the name acts as a case-insensitive natural
// key: at most one item exists per folded name.
type InventoryItem struct {
	ID                string    `firestore:"-" json:"id"`
	Name              string    `firestore:"name" json:"name"`
	Quantity          float64   `firestore:"quantity" json:"quantity"`
	Unit              string    `firestore:"unit" json:"unit"`
	Category          string    `firestore:"category" json:"category"`
	Location          string    `firestore:"location,omitempty" json:"location,omitempty"`
	LowStockThreshold float64   `firestore:"lowStockThreshold" json:"lowStockThreshold"`
	Notes             string    `firestore:"notes,omitempty" json:"notes,omitempty"`
	Brand             string    `firestore:"brand,omitempty" json:"brand,omitempty"`
	Size              string    `firestore:"size,omitempty" json:"size,omitempty"`
	ExpirationDate    string    `firestore:"expirationDate,omitempty" json:"expirationDate,omitempty"`
	SearchKeywords    []string  `firestore:"searchKeywords,omitempty" json:"-"`
	CreatedAt         time.Time `firestore:"createdAt,serverTimestamp" json:"createdAt"`
	UpdatedAt         time.Time `firestore:"updatedAt,serverTimestamp" json:"updatedAt"`
	LastUpdated       time.Time `firestore:"lastUpdated,serverTimestamp" json:"lastUpdated"`
}

// ProposedUpdate is a validated, normalized inventory mutation. It is
// produced by the field validator (from raw client or parser output) and
// consumed by the update engine. Optional fields are pointers: a nil field
// was not present in the input and must not overwrite an existing value.
type ProposedUpdate struct {
	Name              string   `json:"name"`
	Quantity          float64  `json:"quantity"`
	Action            string   `json:"action"`
	Unit              *string  `json:"unit,omitempty"`
	Category          *string  `json:"category,omitempty"`
	Location          *string  `json:"location,omitempty"`
	Notes             *string  `json:"notes,omitempty"`
	Brand             *string  `json:"brand,omitempty"`
	Size              *string  `json:"size,omitempty"`
	LowStockThreshold *float64 `json:"lowStockThreshold,omitempty"`
	ExpirationDate    *string  `json:"expirationDate,omitempty"`
	Confidence        float64  `json:"confidence,omitempty"`
	NeedsReview       bool     `json:"needsReview,omitempty"`
}

// UpdateResult is the per-item outcome of one applied update.
type UpdateResult struct {
	Name     string  `firestore:"name" json:"name"`
	Success  bool    `firestore:"success" json:"success"`
	ItemID   string  `firestore:"itemId,omitempty" json:"itemId,omitempty"`
	Quantity float64 `firestore:"quantity" json:"quantity"`
	Message  string  `firestore:"message,omitempty" json:"message,omitempty"`
	Error    string  `firestore:"error,omitempty" json:"error,omitempty"`
}

// BatchSummary aggregates one batch of update results.
type BatchSummary struct {
	Total      int `firestore:"total" json:"total"`
	Successful int `firestore:"successful" json:"successful"`
	Failed     int `firestore:"failed" json:"failed"`
}

// AuditLogEntry is the append-only record written once per applied batch.
// ItemIDs and the result/request snapshots are truncated to configured caps
// before writing; entries are never mutated afterwards.
type AuditLogEntry struct {
	Action           string           `firestore:"action" json:"action"`
	OwnerID          string           `firestore:"ownerId" json:"ownerId"`
	ItemIDs          []string         `firestore:"itemIds" json:"itemIds"`
	Results          []UpdateResult   `firestore:"results" json:"results"`
	Requests         []ProposedUpdate `firestore:"requests" json:"requests"`
	Summary          BatchSummary     `firestore:"summary" json:"summary"`
	ValidationErrors []string         `firestore:"validationErrors,omitempty" json:"validationErrors,omitempty"`
	CreatedAt        time.Time        `firestore:"createdAt,serverTimestamp" json:"createdAt"`
}
