// Package pipeline coordinates end-to-end ingestion runs: agent invocation,
// fallback parsing, inventory application, and job state transitions.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/groceryflow/groceryflow/internal/agent"
	"github.com/groceryflow/groceryflow/internal/inventory"
	"github.com/groceryflow/groceryflow/internal/models"
	"github.com/groceryflow/groceryflow/internal/parser"
)

// FallbackActionType labels audit entries written by the fallback path.
const FallbackActionType = "inventory_agent"

// GroceryParser is the slice of the parser the orchestrator needs.
type GroceryParser interface {
	ParseText(ctx context.Context, text string) (*parser.ParseResult, error)
}

// UpdateApplier is the slice of the inventory engine the orchestrator needs.
type UpdateApplier interface {
	Apply(ctx context.Context, ownerID string, updates []*models.ProposedUpdate, actionType string) (*inventory.BatchResult, error)
}

// Recorder persists one interaction event per pipeline run.
type Recorder interface {
	RecordAgentInteraction(ctx context.Context, event models.InteractionEvent) error
}

// Input is one ingestion request.
type Input struct {
	UserID   string
	Text     string
	Metadata map[string]any
}

// Outcome is the full result of one pipeline run.
type Outcome struct {
	Success         bool
	AgentResponse   string
	Summary         string
	Error           string
	ToolInvocations []models.ToolInvocation
	UsedFallback    bool
	FallbackDetails map[string]any
	LatencyMs       int64
}

// Executor runs one pipeline input to completion. The job processor depends
// on this rather than the concrete orchestrator.
type Executor interface {
	Execute(ctx context.Context, in Input) (*Outcome, error)
}

// Orchestrator implements the two-tier strategy: try the agent, and when it
// failed or merely talked without acting, run the parser plus the update
// engine over the same text.
type Orchestrator struct {
	agent     agent.Runner
	parser    GroceryParser
	engine    UpdateApplier
	recorder  Recorder
	agentName string
	logger    *slog.Logger
}

func NewOrchestrator(runner agent.Runner, groceryParser GroceryParser, engine UpdateApplier, recorder Recorder, agentName string) *Orchestrator {
	if agentName == "" {
		agentName = "grocery-agent"
	}
	return &Orchestrator{
		agent:     runner,
		parser:    groceryParser,
		engine:    engine,
		recorder:  recorder,
		agentName: agentName,
		logger:    slog.Default(),
	}
}

// Execute never returns an error for pipeline-level failures; those are
// reported in the Outcome so the caller can persist them. One interaction
// event is recorded per run regardless of which path was taken.
func (o *Orchestrator) Execute(ctx context.Context, in Input) (*Outcome, error) {
	out := &Outcome{}
	var confidence *float64

	start := time.Now()
	result, agentErr := o.agent.Run(ctx, agent.Request{UserID: in.UserID, Text: in.Text, Metadata: in.Metadata})
	out.LatencyMs = time.Since(start).Milliseconds()

	if result != nil {
		out.AgentResponse = result.Response
		out.ToolInvocations = result.ToolInvocations
		if result.Error != "" {
			out.Error = result.Error
		}
	}
	if agentErr != nil {
		out.Error = agentErr.Error()
		o.logger.Warn("Agent run failed.", "userId", in.UserID, "error", agentErr)
	}

	agentActed := agentErr == nil && result != nil && result.Success &&
		agent.HasInvocation(result, agent.ToolApplyInventoryUpdates)

	if agentActed {
		out.Success = true
		out.Summary = result.Response
	} else {
		// The agent either failed or talked without acting; run the parser
		// over the same text. Fallback wall-clock time counts toward the run
		// even when the fallback itself fails.
		fallbackStart := time.Now()
		fallbackErr := o.runFallback(ctx, in, out, &confidence)
		out.LatencyMs += time.Since(fallbackStart).Milliseconds()

		if fallbackErr != nil {
			out.Success = false
			out.Error = fallbackErr.Error()
			if out.Summary == "" {
				out.Summary = fallbackErr.Error()
			}
			o.logger.Error("Fallback ingestion failed.", "userId", in.UserID, "error", fallbackErr)
		}
	}

	o.record(ctx, in, out, confidence)
	return out, nil
}

// runFallback parses the text and applies the result. It mutates out as it
// goes so partial progress (UsedFallback, details) survives a late failure.
func (o *Orchestrator) runFallback(ctx context.Context, in Input, out *Outcome, confidence **float64) error {
	out.UsedFallback = true

	parsed, err := o.parser.ParseText(ctx, in.Text)
	if err != nil {
		return fmt.Errorf("fallback parser failed: %w", err)
	}
	*confidence = &parsed.Confidence
	if len(parsed.Items) == 0 {
		return errors.New("fallback parser found no inventory updates")
	}

	batch, err := o.engine.Apply(ctx, in.UserID, parsed.Items, FallbackActionType)
	if err != nil {
		return fmt.Errorf("fallback apply failed: %w", err)
	}

	fallbackSummary := fmt.Sprintf("Fallback parser applied %d/%d updates (%d failed).",
		batch.Summary.Successful, batch.Summary.Total, batch.Summary.Failed)
	out.FallbackDetails = map[string]any{
		"itemsParsed":      len(parsed.Items),
		"applied":          batch.Summary.Successful,
		"failed":           batch.Summary.Failed,
		"summary":          fallbackSummary,
		"validationErrors": batch.ValidationErrors,
	}

	parts := []string{}
	if strings.TrimSpace(out.AgentResponse) != "" {
		parts = append(parts, strings.TrimSpace(out.AgentResponse))
	}
	parts = append(parts, fallbackSummary)
	out.Summary = strings.Join(parts, " ")

	out.Success = true
	out.Error = ""
	return nil
}

// record writes the interaction event. Failures here are swallowed: metrics
// must never break the primary operation.
func (o *Orchestrator) record(ctx context.Context, in Input, out *Outcome, confidence *float64) {
	if o.recorder == nil {
		return
	}
	latency := out.LatencyMs
	event := models.InteractionEvent{
		OwnerID:      in.UserID,
		AgentName:    o.agentName,
		Success:      out.Success,
		UsedFallback: out.UsedFallback,
		LatencyMs:    &latency,
		Confidence:   confidence,
		Error:        out.Error,
	}
	if err := o.recorder.RecordAgentInteraction(ctx, event); err != nil {
		o.logger.Warn("Failed to record agent interaction.", "userId", in.UserID, "error", err)
	}
}
