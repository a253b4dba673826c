// Package inventory implements the field validator and the update engine for
// the grocery inventory collection.
package inventory

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/groceryflow/groceryflow/internal/models"
)

// Defaults applied when a brand-new item is created from an update that does
// not state them.
const (
	DefaultUnit              = "unit"
	DefaultCategory          = "uncategorized"
	DefaultLowStockThreshold = 1
)

// NormalizeUpdate validates one raw proposed update and produces a typed
// ProposedUpdate, or a rejection whose message is surfaced verbatim to the
// client. Optional fields come back as pointers so the engine can merge only
// what was explicitly present.
func NormalizeUpdate(raw map[string]any) (*models.ProposedUpdate, error) {
	name := strings.TrimSpace(stringValue(raw["name"]))
	quantityRaw, hasQuantity := raw["quantity"]
	actionRaw, hasAction := raw["action"]
	if name == "" || !hasQuantity || !hasAction {
		return nil, errors.New("Missing required fields: name, quantity, action")
	}

	action := strings.ToLower(strings.TrimSpace(stringValue(actionRaw)))
	switch action {
	case models.ActionAdd, models.ActionSubtract, models.ActionSet:
	default:
		return nil, fmt.Errorf("Invalid action %q. Use add, subtract, or set.", stringValue(actionRaw))
	}

	quantity, ok := toNumber(quantityRaw)
	if !ok || math.IsNaN(quantity) || math.IsInf(quantity, 0) || quantity < 0 {
		return nil, errors.New("Quantity must be a non-negative number")
	}

	update := &models.ProposedUpdate{
		Name:     name,
		Quantity: quantity,
		Action:   action,
	}

	update.Unit = optionalString(raw, "unit")
	update.Category = optionalString(raw, "category")
	update.Location = optionalString(raw, "location")
	update.Notes = optionalString(raw, "notes")
	update.Brand = optionalString(raw, "brand")
	update.Size = optionalString(raw, "size")

	if v, ok := raw["lowStockThreshold"]; ok && v != nil {
		if threshold, ok := toNumber(v); ok && threshold >= 0 {
			update.LowStockThreshold = &threshold
		}
	}

	// expirationDate and expiryDate are interchangeable on input.
	for _, key := range []string{"expirationDate", "expiryDate"} {
		v, ok := raw[key]
		if !ok || v == nil {
			continue
		}
		iso, err := NormalizeExpiration(v)
		if err != nil {
			return nil, err
		}
		if iso != "" {
			update.ExpirationDate = &iso
		}
		break
	}

	if v, ok := raw["confidence"]; ok {
		if confidence, ok := toNumber(v); ok {
			update.Confidence = math.Max(0, math.Min(1, confidence))
		}
	}
	if v, ok := raw["needsReview"].(bool); ok {
		update.NeedsReview = v
	}

	return update, nil
}

// NormalizeExpiration converts any accepted expiration representation into an
// RFC 3339 UTC string. Accepted inputs: ISO date or datetime strings, epoch
// milliseconds, and Firestore-timestamp-shaped maps ({seconds,nanoseconds} or
// {_seconds,_nanoseconds}). Empty input normalizes to "".
func NormalizeExpiration(v any) (string, error) {
	switch value := v.(type) {
	case nil:
		return "", nil
	case time.Time:
		return value.UTC().Format(time.RFC3339), nil
	case string:
		s := strings.TrimSpace(value)
		if s == "" {
			return "", nil
		}
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC().Format(time.RFC3339), nil
			}
		}
		return "", fmt.Errorf("Invalid expiration date %q", s)
	case map[string]any:
		seconds, ok := timestampSeconds(value)
		if !ok {
			return "", fmt.Errorf("Invalid expiration date %v", value)
		}
		return time.Unix(seconds, 0).UTC().Format(time.RFC3339), nil
	default:
		millis, ok := toNumber(v)
		if !ok || math.IsNaN(millis) || math.IsInf(millis, 0) || millis < 0 {
			return "", fmt.Errorf("Invalid expiration date %v", v)
		}
		return time.UnixMilli(int64(millis)).UTC().Format(time.RFC3339), nil
	}
}

func timestampSeconds(m map[string]any) (int64, bool) {
	for _, key := range []string{"seconds", "_seconds"} {
		if v, ok := m[key]; ok {
			if seconds, ok := toNumber(v); ok {
				return int64(seconds), true
			}
			return 0, false
		}
	}
	return 0, false
}

var keywordSplitRe = regexp.MustCompile(`[^a-z0-9]+`)

// DeriveSearchKeywords produces the token set stored alongside an item for
// substring search: the folded full name plus its alphanumeric tokens.
func DeriveSearchKeywords(name string) []string {
	folded := strings.ToLower(strings.TrimSpace(name))
	if folded == "" {
		return nil
	}
	seen := map[string]bool{folded: true}
	keywords := []string{folded}
	for _, token := range keywordSplitRe.Split(folded, -1) {
		if token == "" || seen[token] {
			continue
		}
		seen[token] = true
		keywords = append(keywords, token)
	}
	return keywords
}

func toNumber(v any) (float64, bool) {
	switch value := v.(type) {
	case float64:
		return value, true
	case float32:
		return float64(value), true
	case int:
		return float64(value), true
	case int32:
		return float64(value), true
	case int64:
		return float64(value), true
	case json.Number:
		f, err := value.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func stringValue(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	default:
		return fmt.Sprintf("%v", value)
	}
}

func optionalString(raw map[string]any, key string) *string {
	v, ok := raw[key]
	if !ok || v == nil {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
