// Package parser turns free-form grocery text, images, and uploaded
// artifacts into validated proposed inventory updates.
package parser

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"cloud.google.com/go/vertexai/genai"

	"github.com/groceryflow/groceryflow/internal/gcp"
	"github.com/groceryflow/groceryflow/internal/inventory"
	"github.com/groceryflow/groceryflow/internal/models"
)

// ErrLLMNotConfigured means an operation that requires the generative model
// (image parsing) was attempted without one configured. The API maps this to
// a 500 Configuration Error.
var ErrLLMNotConfigured = errors.New("no generative model configured")

// BasicParserWarning is attached to every degraded-mode parse.
const BasicParserWarning = "Using basic parser. Configure GEMINI_API_KEY for better results."

// Confidence thresholds for UI-level bucketing.
const (
	ConfidenceHigh   = 0.9
	ConfidenceMedium = 0.7
)

// LLM is the slice of the generative model surface the parser needs.
// *genai.GenerativeModel satisfies it.
type LLM interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// ParseResult is the outcome of one parse: validated items plus an overall
// confidence and review flag.
type ParseResult struct {
	Items        []*models.ProposedUpdate `json:"items"`
	Confidence   float64                  `json:"confidence"`
	NeedsReview  bool                     `json:"needsReview"`
	UsedFallback bool                     `json:"usedFallback"`
	Warnings     []string                 `json:"warnings,omitempty"`
	OriginalText string                   `json:"originalText,omitempty"`
}

// Parser converts grocery text or images into proposed updates. With no
// model configured it degrades to the heuristic parser for text and refuses
// images.
type Parser struct {
	textModel   LLM
	visionModel LLM
	logger      *slog.Logger
}

// New builds a parser from the shared Vertex client. A nil client puts the
// parser in degraded mode.
func New(vertex *gcp.VertexClient) *Parser {
	p := &Parser{logger: slog.Default()}
	if vertex != nil {
		p.textModel = vertex.ParserModel
		p.visionModel = vertex.VisionModel
	}
	return p
}

// NewWithModels wires explicit models; tests use it to inject fakes.
func NewWithModels(textModel, visionModel LLM) *Parser {
	return &Parser{textModel: textModel, visionModel: visionModel, logger: slog.Default()}
}

// Configured reports whether the primary (LLM) mode is available.
func (p *Parser) Configured() bool {
	return p.textModel != nil
}

// ParseText parses free-form grocery text. Primary mode asks the JSON-forced
// model; degraded mode falls back to the heuristic parser.
func (p *Parser) ParseText(ctx context.Context, text string) (*ParseResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("no text to parse")
	}
	if p.textModel == nil {
		return p.parseBasic(text), nil
	}

	resp, err := p.textModel.GenerateContent(ctx, genai.Text(gcp.ParserUserPrompt), genai.Text(text))
	if err != nil {
		p.logger.Error("Call to Vertex AI for text parsing failed", "error", err)
		return nil, fmt.Errorf("failed to generate updates from gemini: %w", err)
	}

	result := p.resultFromResponse(resp, text)
	return result, nil
}

// ParseImage parses a base64-encoded shopping list or receipt photo.
// imageType selects the prompt: "receipt" or "list" (the default).
func (p *Parser) ParseImage(ctx context.Context, imageBase64, imageType string) (*ParseResult, error) {
	if p.visionModel == nil {
		return nil, ErrLLMNotConfigured
	}

	data, err := decodeImage(imageBase64)
	if err != nil {
		return nil, err
	}

	prompt := gcp.VisionListPrompt
	if imageType == "receipt" {
		prompt = gcp.VisionReceiptPrompt
	}

	resp, err := p.visionModel.GenerateContent(ctx,
		genai.Blob{MIMEType: http.DetectContentType(data), Data: data},
		genai.Text(prompt),
	)
	if err != nil {
		p.logger.Error("Call to Vertex AI for image parsing failed", "imageType", imageType, "error", err)
		return nil, fmt.Errorf("failed to parse image with gemini: %w", err)
	}

	return p.resultFromResponse(resp, ""), nil
}

// resultFromResponse decodes the model's JSON array, re-validates every item
// through the field validator, and folds per-item confidences into the
// overall score. Invalid items are dropped with a warning, never applied.
func (p *Parser) resultFromResponse(resp *genai.GenerateContentResponse, originalText string) *ParseResult {
	result := &ParseResult{OriginalText: originalText}

	jsonString := extractJSONContent(resp)
	if jsonString == "" {
		result.NeedsReview = true
		result.Warnings = append(result.Warnings, "model returned no parseable output")
		return result
	}

	var rawItems []map[string]any
	if err := json.Unmarshal([]byte(jsonString), &rawItems); err != nil {
		p.logger.Error("Failed to unmarshal JSON response from model", "error", err, "responseBody", jsonString)
		result.NeedsReview = true
		result.Warnings = append(result.Warnings, "model returned malformed output")
		return result
	}

	items, warnings := ValidateItems(rawItems)
	result.Items = items
	result.Warnings = append(result.Warnings, warnings...)
	result.Confidence = overallConfidence(items)
	result.NeedsReview = result.Confidence < ConfidenceMedium || anyNeedsReview(items)
	return result
}

// ValidateItems re-runs the field validator over parsed items. Invalid items
// are discarded; each discard is reported as a "<name>: <error>" warning.
func ValidateItems(rawItems []map[string]any) ([]*models.ProposedUpdate, []string) {
	var items []*models.ProposedUpdate
	var warnings []string
	for _, raw := range rawItems {
		update, err := inventory.NormalizeUpdate(raw)
		if err != nil {
			name, _ := raw["name"].(string)
			if strings.TrimSpace(name) == "" {
				name = "(unnamed)"
			}
			warnings = append(warnings, fmt.Sprintf("%s: %s", name, err.Error()))
			continue
		}
		if update.Confidence == 0 {
			// Model omitted the score; treat as reviewable, not worthless.
			update.Confidence = ConfidenceMedium
		}
		items = append(items, update)
	}
	return items, warnings
}

// ConfidenceBucket maps a score to the UI-level label.
func ConfidenceBucket(confidence float64) string {
	switch {
	case confidence >= ConfidenceHigh:
		return "high"
	case confidence >= ConfidenceMedium:
		return "medium"
	default:
		return "low"
	}
}

func overallConfidence(items []*models.ProposedUpdate) float64 {
	if len(items) == 0 {
		return 0
	}
	var sum float64
	for _, item := range items {
		sum += item.Confidence
	}
	return sum / float64(len(items))
}

func anyNeedsReview(items []*models.ProposedUpdate) bool {
	for _, item := range items {
		if item.NeedsReview {
			return true
		}
	}
	return false
}

// extractJSONContent robustly gets the raw text content from the model
// response, stripping markdown fences the model sometimes adds.
func extractJSONContent(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return ""
	}
	var builder strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			builder.WriteString(string(txt))
		}
	}
	cleanJSON := strings.TrimSpace(builder.String())
	cleanJSON = strings.TrimPrefix(cleanJSON, "```json")
	cleanJSON = strings.TrimPrefix(cleanJSON, "```")
	cleanJSON = strings.TrimSuffix(cleanJSON, "```")
	return strings.TrimSpace(cleanJSON)
}

func decodeImage(imageBase64 string) ([]byte, error) {
	payload := imageBase64
	if idx := strings.Index(payload, "base64,"); idx >= 0 {
		payload = payload[idx+len("base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 image payload: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("empty image payload")
	}
	return data, nil
}
