package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/groceryflow/groceryflow/internal/inventory"
	"github.com/groceryflow/groceryflow/internal/models"
)

// The heuristic parser handles text like "bought 2 litres milk and 3 eggs"
// without a model: split into segments, read an optional leading verb, a
// number, an optional unit, and take the rest as the item name. The verb
// carries forward across segments ("bought 2 milk and 3 eggs" applies
// "bought" to both).

const basicParserConfidence = 0.5

var segmentRe = regexp.MustCompile(`(?i)^\s*(?:(bought|purchased|got|added|picked up|used|ate|drank|consumed|finished|have|set)\s+)?(?:(\d+(?:\.\d+)?)\s*)?` +
	`(?:(litres?|liters?|l|ml|millilitres?|kg|kilograms?|g|grams?|oz|ounces?|lbs?|pounds?|cans?|bottles?|boxes?|packs?|packets?|bags?|cartons?|dozen|loaves|loaf|units?)\s+(?:of\s+)?)?(.+?)\s*$`)

var actionByVerb = map[string]string{
	"bought":    models.ActionAdd,
	"purchased": models.ActionAdd,
	"got":       models.ActionAdd,
	"added":     models.ActionAdd,
	"picked up": models.ActionAdd,
	"used":      models.ActionSubtract,
	"ate":       models.ActionSubtract,
	"drank":     models.ActionSubtract,
	"consumed":  models.ActionSubtract,
	"finished":  models.ActionSubtract,
	"have":      models.ActionSet,
	"set":       models.ActionSet,
}

// parseBasic is the degraded no-model text parser. Its output always leans
// toward review.
func (p *Parser) parseBasic(text string) *ParseResult {
	result := &ParseResult{
		OriginalText: text,
		UsedFallback: true,
		NeedsReview:  true,
		Warnings:     []string{BasicParserWarning},
	}

	action := models.ActionAdd
	for _, segment := range splitSegments(text) {
		m := segmentRe.FindStringSubmatch(segment)
		if m == nil {
			continue
		}
		verb, quantity, unit, name := strings.ToLower(m[1]), m[2], strings.ToLower(m[3]), m[4]
		if verb != "" {
			action = actionByVerb[verb]
		}
		if quantity == "" {
			if verb == "" {
				continue
			}
			quantity = "1"
		}

		name = cleanItemName(name)
		if name == "" {
			continue
		}

		raw := map[string]any{
			"name":        name,
			"quantity":    quantity,
			"action":      action,
			"confidence":  basicParserConfidence,
			"needsReview": true,
		}
		if unit != "" {
			raw["unit"] = unit
		}
		update, err := inventory.NormalizeUpdate(raw)
		if err != nil {
			continue
		}
		result.Items = append(result.Items, update)
	}

	result.Confidence = overallConfidence(result.Items)
	return result
}

// NarrativeFromItems renders structured items back into parser-friendly
// prose, one line per item, the verb chosen by action. The extractor uses it
// to turn vision output into ingestion text.
func NarrativeFromItems(items []*models.ProposedUpdate) string {
	var lines []string
	for _, item := range items {
		verb := "bought"
		switch item.Action {
		case models.ActionSubtract:
			verb = "used"
		case models.ActionSet:
			verb = "have"
		}
		parts := []string{verb, trimFloat(item.Quantity)}
		if item.Unit != nil {
			parts = append(parts, *item.Unit)
		}
		parts = append(parts, item.Name)
		lines = append(lines, strings.Join(parts, " "))
	}
	return strings.Join(lines, "\n")
}

func splitSegments(text string) []string {
	normalized := regexp.MustCompile(`(?i)\s+and\s+`).ReplaceAllString(text, "\n")
	return strings.FieldsFunc(normalized, func(r rune) bool {
		return r == '\n' || r == ',' || r == ';'
	})
}

func cleanItemName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.Trim(name, ".!? ")
}

func trimFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
