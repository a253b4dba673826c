package gcp

import (
	"context"
	"fmt"

	"cloud.google.com/go/vertexai/genai"
)

// --- Grocery Parser Model Prompts ---
const ParserSystemPrompt = "You are a grocery inventory parser. Your task is to convert free-form text about groceries into structured inventory updates. You must output your response as a valid JSON array."
const ParserUserPrompt = `Analyze the provided text and extract every grocery inventory change it describes.

Follow these rules precisely:
1.  Create one JSON object per distinct item. Each object must have these keys:
    - "name": the item name, lowercase, singular where natural (e.g. "milk", "eggs").
    - "quantity": a non-negative number.
    - "action": one of "add" (bought/acquired), "subtract" (used/consumed), or "set" (a stated current amount).
    - "confidence": a number between 0 and 1 for how certain you are about this item.
2.  Include these keys ONLY when the text states them: "unit", "category", "location", "brand", "size", "notes", "expirationDate" (ISO-8601).
3.  Do not invent items, quantities, or fields that the text does not support.
4.  The final output MUST be a single, valid JSON array of these objects. Do not include any text before or after the JSON array. Output [] if no items are present.`

// --- Vision Parser Model Prompts ---
const VisionSystemPrompt = "You are a grocery image parser. Your task is to read a photo of a shopping list or a purchase receipt and convert it into structured inventory updates. You must output your response as a valid JSON array."
const VisionListPrompt = `The image is a handwritten or printed shopping/grocery list. Extract every item as a JSON object with keys "name", "quantity", "action" (use "add"), "confidence", and optionally "unit", "brand", "size", "notes". Ignore crossed-out entries. Output ONLY the JSON array.`
const VisionReceiptPrompt = `The image is a purchase receipt. Extract every purchased grocery line as a JSON object with keys "name", "quantity", "action" (use "add"), "confidence", and optionally "unit", "brand", "size". Ignore totals, taxes, discounts, and non-grocery lines. Output ONLY the JSON array.`

// --- Agent Model Prompt ---
const AgentSystemPrompt = `You are a household grocery inventory assistant. The user tells you, in plain language, what they bought, used, or currently have. Use the get_inventory tool to inspect the current inventory when it helps, and use the apply_inventory_updates tool to record every change the user describes. Always apply the updates through the tool; never just describe them. After applying, reply with a short confirmation of what changed.`

// VertexClient holds the pre-configured generative models for the ingestion
// pipeline.
type VertexClient struct {
	ParserModel *genai.GenerativeModel
	VisionModel *genai.GenerativeModel
	AgentModel  *genai.GenerativeModel
	baseClient  *genai.Client
}

// NewVertexClient creates a new client holding all necessary models.
func NewVertexClient(ctx context.Context, projectID, region string) (*VertexClient, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexClient: projectID and region cannot be empty")
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	// The parser and vision models are forced into JSON mode with a low
	// temperature; their output feeds straight into the field validator.
	parserModel := baseClient.GenerativeModel("gemini-1.5-pro")
	parserModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(ParserSystemPrompt)},
	}
	parserModel.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.0),
	}
	parserModel.SafetySettings = permissiveSafetySettings()

	visionModel := baseClient.GenerativeModel("gemini-1.5-pro")
	visionModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(VisionSystemPrompt)},
	}
	visionModel.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.0),
	}
	visionModel.SafetySettings = permissiveSafetySettings()

	// The agent model keeps free-form output; the agent runner attaches its
	// tool declarations.
	agentModel := baseClient.GenerativeModel("gemini-1.5-pro")
	agentModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(AgentSystemPrompt)},
	}
	agentModel.GenerationConfig = genai.GenerationConfig{
		Temperature: genai.Ptr[float32](0.2),
	}

	return &VertexClient{
		ParserModel: parserModel,
		VisionModel: visionModel,
		AgentModel:  agentModel,
		baseClient:  baseClient,
	}, nil
}

func permissiveSafetySettings() []*genai.SafetySetting {
	return []*genai.SafetySetting{
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
	}
}

func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}
