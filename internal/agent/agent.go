// Package agent defines the capability boundary for the conversational
// inventory agent. The pipeline depends only on Runner; the Vertex-backed
// implementation lives in vertex.go.
package agent

import (
	"context"

	"github.com/groceryflow/groceryflow/internal/models"
)

// Tool names a runner may report. The orchestrator inspects invocations for
// ToolApplyInventoryUpdates to decide whether the agent actually changed
// inventory.
const (
	ToolApplyInventoryUpdates = "apply_inventory_updates"
	ToolGetInventory          = "get_inventory"
)

// Request is one agent run over the user's text.
type Request struct {
	UserID   string
	Text     string
	Metadata map[string]any
}

// Result is what the agent runtime reports back: its final text, whether it
// considers the run successful, and every tool call it made.
type Result struct {
	Response        string
	Success         bool
	Error           string
	ToolInvocations []models.ToolInvocation
}

// Runner executes one agent conversation. A transport-level failure comes
// back as an error; an agent-level failure as Result.Success=false.
type Runner interface {
	Run(ctx context.Context, req Request) (*Result, error)
}

// HasInvocation reports whether the result contains a call to the named tool.
func HasInvocation(result *Result, toolName string) bool {
	if result == nil {
		return false
	}
	for _, invocation := range result.ToolInvocations {
		if invocation.Name == toolName {
			return true
		}
	}
	return false
}
