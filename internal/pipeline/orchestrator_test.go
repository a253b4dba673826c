package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groceryflow/groceryflow/internal/agent"
	"github.com/groceryflow/groceryflow/internal/inventory"
	"github.com/groceryflow/groceryflow/internal/models"
	"github.com/groceryflow/groceryflow/internal/parser"
)

type fakeRunner struct {
	result *agent.Result
	err    error
}

func (f *fakeRunner) Run(ctx context.Context, req agent.Request) (*agent.Result, error) {
	return f.result, f.err
}

type fakeParser struct {
	result *parser.ParseResult
	err    error
	calls  int
}

func (f *fakeParser) ParseText(ctx context.Context, text string) (*parser.ParseResult, error) {
	f.calls++
	return f.result, f.err
}

type fakeApplier struct {
	batch *inventory.BatchResult
	err   error
	calls int
}

func (f *fakeApplier) Apply(ctx context.Context, ownerID string, updates []*models.ProposedUpdate, actionType string) (*inventory.BatchResult, error) {
	f.calls++
	return f.batch, f.err
}

type fakeRecorder struct {
	events []models.InteractionEvent
	err    error
}

func (f *fakeRecorder) RecordAgentInteraction(ctx context.Context, event models.InteractionEvent) error {
	f.events = append(f.events, event)
	return f.err
}

func parsedItems() *parser.ParseResult {
	return &parser.ParseResult{
		Items: []*models.ProposedUpdate{
			{Name: "milk", Quantity: 2, Action: models.ActionAdd},
		},
		Confidence: 0.5,
	}
}

func appliedBatch() *inventory.BatchResult {
	return &inventory.BatchResult{
		Summary: models.BatchSummary{Total: 1, Successful: 1},
	}
}

func TestExecuteAgentActed(t *testing.T) {
	runner := &fakeRunner{result: &agent.Result{
		Response: "Added 2 milk.",
		Success:  true,
		ToolInvocations: []models.ToolInvocation{
			{Name: agent.ToolApplyInventoryUpdates},
		},
	}}
	groceryParser := &fakeParser{}
	applier := &fakeApplier{}
	recorder := &fakeRecorder{}
	o := NewOrchestrator(runner, groceryParser, applier, recorder, "")

	out, err := o.Execute(context.Background(), Input{UserID: "u1", Text: "bought 2 milk"})
	require.NoError(t, err)

	assert.True(t, out.Success)
	assert.False(t, out.UsedFallback)
	assert.Equal(t, "Added 2 milk.", out.Summary)
	assert.Zero(t, groceryParser.calls, "fallback must not run when the agent acted")
	require.Len(t, recorder.events, 1)
	assert.True(t, recorder.events[0].Success)
	assert.Equal(t, "grocery-agent", recorder.events[0].AgentName)
}

func TestExecuteFallbackOnSuccessWithoutToolCall(t *testing.T) {
	// The agent "succeeded" but only talked; the fallback must run anyway.
	runner := &fakeRunner{result: &agent.Result{Response: "Sounds good!", Success: true}}
	groceryParser := &fakeParser{result: parsedItems()}
	applier := &fakeApplier{batch: appliedBatch()}
	recorder := &fakeRecorder{}
	o := NewOrchestrator(runner, groceryParser, applier, recorder, "grocery-agent")

	out, err := o.Execute(context.Background(), Input{UserID: "u1", Text: "bought 2 milk"})
	require.NoError(t, err)

	assert.True(t, out.Success)
	assert.True(t, out.UsedFallback)
	assert.Equal(t, 1, groceryParser.calls)
	assert.Equal(t, 1, applier.calls)
	assert.Equal(t, "Sounds good! Fallback parser applied 1/1 updates (0 failed).", out.Summary)
	require.NotNil(t, out.FallbackDetails)
	assert.Equal(t, 1, out.FallbackDetails["itemsParsed"])

	require.Len(t, recorder.events, 1)
	event := recorder.events[0]
	assert.True(t, event.UsedFallback)
	require.NotNil(t, event.Confidence)
	assert.Equal(t, 0.5, *event.Confidence)
}

func TestExecuteFallbackOnAgentError(t *testing.T) {
	runner := &fakeRunner{err: errors.New("model unavailable")}
	groceryParser := &fakeParser{result: parsedItems()}
	applier := &fakeApplier{batch: appliedBatch()}
	recorder := &fakeRecorder{}
	o := NewOrchestrator(runner, groceryParser, applier, recorder, "grocery-agent")

	out, err := o.Execute(context.Background(), Input{UserID: "u1", Text: "bought 2 milk"})
	require.NoError(t, err)

	assert.True(t, out.Success, "fallback recovery clears the agent error")
	assert.True(t, out.UsedFallback)
	assert.Empty(t, out.Error)
}

func TestExecuteFallbackFindsNothing(t *testing.T) {
	runner := &fakeRunner{err: errors.New("model unavailable")}
	groceryParser := &fakeParser{result: &parser.ParseResult{Confidence: 0.2}}
	applier := &fakeApplier{}
	recorder := &fakeRecorder{}
	o := NewOrchestrator(runner, groceryParser, applier, recorder, "grocery-agent")

	out, err := o.Execute(context.Background(), Input{UserID: "u1", Text: "hello"})
	require.NoError(t, err)

	assert.False(t, out.Success)
	assert.True(t, out.UsedFallback)
	assert.Equal(t, "fallback parser found no inventory updates", out.Error)
	assert.Zero(t, applier.calls)

	require.Len(t, recorder.events, 1)
	assert.False(t, recorder.events[0].Success)
}

func TestExecuteRecorderFailureIsSwallowed(t *testing.T) {
	runner := &fakeRunner{result: &agent.Result{
		Success:         true,
		ToolInvocations: []models.ToolInvocation{{Name: agent.ToolApplyInventoryUpdates}},
	}}
	recorder := &fakeRecorder{err: errors.New("firestore down")}
	o := NewOrchestrator(runner, &fakeParser{}, &fakeApplier{}, recorder, "grocery-agent")

	out, err := o.Execute(context.Background(), Input{UserID: "u1", Text: "bought milk"})
	require.NoError(t, err)
	assert.True(t, out.Success)
}

func TestExecuteRecordsLatency(t *testing.T) {
	runner := &fakeRunner{err: errors.New("down")}
	groceryParser := &fakeParser{result: parsedItems()}
	applier := &fakeApplier{batch: appliedBatch()}
	recorder := &fakeRecorder{}
	o := NewOrchestrator(runner, groceryParser, applier, recorder, "grocery-agent")

	out, err := o.Execute(context.Background(), Input{UserID: "u1", Text: "bought 2 milk"})
	require.NoError(t, err)

	require.Len(t, recorder.events, 1)
	require.NotNil(t, recorder.events[0].LatencyMs)
	assert.GreaterOrEqual(t, *recorder.events[0].LatencyMs, int64(0))
	assert.Equal(t, out.LatencyMs, *recorder.events[0].LatencyMs)
}
