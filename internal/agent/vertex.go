package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"cloud.google.com/go/vertexai/genai"

	"github.com/groceryflow/groceryflow/internal/gcp"
	"github.com/groceryflow/groceryflow/internal/inventory"
	"github.com/groceryflow/groceryflow/internal/models"
	"github.com/groceryflow/groceryflow/internal/store"
)

const defaultMaxIterations = 6

// VertexRunner drives a Gemini function-calling conversation: the model is
// given the inventory tools and the runner executes each requested call until
// the model answers in plain text or the iteration budget runs out.
type VertexRunner struct {
	model         *genai.GenerativeModel
	engine        *inventory.Engine
	inventory     store.InventoryStore
	maxIterations int
	logger        *slog.Logger
}

func NewVertexRunner(vertex *gcp.VertexClient, engine *inventory.Engine, inventoryStore store.InventoryStore) *VertexRunner {
	model := vertex.AgentModel
	model.Tools = []*genai.Tool{{
		FunctionDeclarations: []*genai.FunctionDeclaration{
			{
				Name:        ToolApplyInventoryUpdates,
				Description: "Apply a batch of inventory updates. Each update has name, quantity, and action (add, subtract, or set), plus optional unit, category, location, brand, size, notes, expirationDate.",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"updates": {
							Type:  genai.TypeArray,
							Items: &genai.Schema{Type: genai.TypeObject},
						},
					},
					Required: []string{"updates"},
				},
			},
			{
				Name:        ToolGetInventory,
				Description: "Read the user's current inventory: item names, quantities, units, and categories.",
				Parameters:  &genai.Schema{Type: genai.TypeObject},
			},
		},
	}}

	return &VertexRunner{
		model:         model,
		engine:        engine,
		inventory:     inventoryStore,
		maxIterations: defaultMaxIterations,
		logger:        slog.Default(),
	}
}

// Run executes one conversation for the request's user.
func (r *VertexRunner) Run(ctx context.Context, req Request) (*Result, error) {
	result := &Result{}
	session := r.model.StartChat()

	resp, err := session.SendMessage(ctx, genai.Text(req.Text))
	if err != nil {
		return nil, fmt.Errorf("agent model call failed: %w", err)
	}

	for iteration := 0; iteration < r.maxIterations; iteration++ {
		calls := functionCalls(resp)
		if len(calls) == 0 {
			break
		}

		var replies []genai.Part
		for _, call := range calls {
			invocation := models.ToolInvocation{Name: call.Name, Input: call.Args}
			output, err := r.executeTool(ctx, req.UserID, call)
			if err != nil {
				invocation.Error = err.Error()
				output = map[string]any{"error": err.Error()}
				r.logger.Warn("Agent tool execution failed.", "tool", call.Name, "userId", req.UserID, "error", err)
			}
			result.ToolInvocations = append(result.ToolInvocations, invocation)
			replies = append(replies, genai.FunctionResponse{Name: call.Name, Response: output})
		}

		resp, err = session.SendMessage(ctx, replies...)
		if err != nil {
			return nil, fmt.Errorf("agent model call failed after tool round: %w", err)
		}
	}

	result.Response = responseText(resp)
	result.Success = true
	return result, nil
}

func (r *VertexRunner) executeTool(ctx context.Context, userID string, call genai.FunctionCall) (map[string]any, error) {
	switch call.Name {
	case ToolApplyInventoryUpdates:
		raws, err := updatesArgument(call.Args)
		if err != nil {
			return nil, err
		}
		batch, err := r.engine.ApplyRaw(ctx, userID, raws, "agent_tool")
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"summary":          batch.Summary,
			"validationErrors": batch.ValidationErrors,
		}, nil
	case ToolGetInventory:
		items, err := r.inventory.ListItems(ctx, userID)
		if err != nil {
			return nil, err
		}
		listing := make([]map[string]any, 0, len(items))
		for _, item := range items {
			listing = append(listing, map[string]any{
				"name":     item.Name,
				"quantity": item.Quantity,
				"unit":     item.Unit,
				"category": item.Category,
			})
		}
		return map[string]any{"items": listing}, nil
	default:
		return nil, fmt.Errorf("unknown tool %q", call.Name)
	}
}

func updatesArgument(args map[string]any) ([]map[string]any, error) {
	rawList, ok := args["updates"].([]any)
	if !ok {
		return nil, fmt.Errorf("updates argument must be an array")
	}
	raws := make([]map[string]any, 0, len(rawList))
	for _, entry := range rawList {
		raw, ok := entry.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("each update must be an object")
		}
		raws = append(raws, raw)
	}
	return raws, nil
}

func functionCalls(resp *genai.GenerateContentResponse) []genai.FunctionCall {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}
	var calls []genai.FunctionCall
	for _, part := range resp.Candidates[0].Content.Parts {
		if call, ok := part.(genai.FunctionCall); ok {
			calls = append(calls, call)
		}
	}
	return calls
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var builder strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			builder.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(builder.String())
}
