package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groceryflow/groceryflow/internal/models"
)

// fakeJobs is an in-memory JobStore.
type fakeJobs struct {
	jobs   map[string]*models.IngestionJob
	nextID int
	getErr error
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{jobs: map[string]*models.IngestionJob{}}
}

func (f *fakeJobs) CreateIngestionJob(ctx context.Context, ownerID string, job models.IngestionJob) (string, error) {
	f.nextID++
	id := fmt.Sprintf("job-%d", f.nextID)
	job.ID = id
	f.jobs[id] = &job
	return id, nil
}

func (f *fakeJobs) GetIngestionJob(ctx context.Context, ownerID, jobID string) (*models.IngestionJob, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	job, ok := f.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("job %s not found", jobID)
	}
	copied := *job
	return &copied, nil
}

func (f *fakeJobs) UpdateIngestionJob(ctx context.Context, ownerID, jobID string, fields map[string]any) error {
	job, ok := f.jobs[jobID]
	if !ok {
		return fmt.Errorf("job %s not found", jobID)
	}
	for key, value := range fields {
		switch key {
		case "status":
			job.Status = value.(string)
		case "lastError":
			job.LastError = value.(string)
		case "agentResponse":
			job.AgentResponse = value.(string)
		case "resultSummary":
			job.ResultSummary = value.(string)
		case "fallbackApplied":
			job.FallbackApplied = value.(bool)
		case "fallbackDetails":
			job.FallbackDetails = value.(map[string]any)
		case "toolInvocations":
			job.ToolInvocations = value.([]models.ToolInvocation)
		}
	}
	return nil
}

type fakeExecutor struct {
	outcome *Outcome
	err     error
	panics  bool
	inputs  []Input
}

func (f *fakeExecutor) Execute(ctx context.Context, in Input) (*Outcome, error) {
	f.inputs = append(f.inputs, in)
	if f.panics {
		panic("boom")
	}
	return f.outcome, f.err
}

func seedJob(jobs *fakeJobs, status, text string) string {
	id, _ := jobs.CreateIngestionJob(context.Background(), "u1", models.IngestionJob{
		OwnerID: "u1",
		Status:  status,
		Text:    text,
	})
	return id
}

func TestProcessCompletesJob(t *testing.T) {
	jobs := newFakeJobs()
	jobID := seedJob(jobs, models.JobStatusPending, "bought 2 milk")
	executor := &fakeExecutor{outcome: &Outcome{
		Success:       true,
		AgentResponse: "Added 2 milk.",
		Summary:       "Added 2 milk.",
	}}
	p := NewIngestionProcessor(jobs, executor)

	err := p.Process(context.Background(), IngestionJobEvent{OwnerID: "u1", JobID: jobID})
	require.NoError(t, err)

	job := jobs.jobs[jobID]
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Equal(t, "Added 2 milk.", job.ResultSummary)
	assert.Empty(t, job.LastError)
	require.Len(t, executor.inputs, 1)
	assert.Equal(t, "bought 2 milk", executor.inputs[0].Text)
}

func TestProcessSkipsNonPending(t *testing.T) {
	jobs := newFakeJobs()
	jobID := seedJob(jobs, models.JobStatusCompleted, "bought 2 milk")
	executor := &fakeExecutor{}
	p := NewIngestionProcessor(jobs, executor)

	err := p.Process(context.Background(), IngestionJobEvent{OwnerID: "u1", JobID: jobID})
	require.NoError(t, err)
	assert.Empty(t, executor.inputs)
	assert.Equal(t, models.JobStatusCompleted, jobs.jobs[jobID].Status)
}

func TestProcessFailureLandsInFailed(t *testing.T) {
	jobs := newFakeJobs()
	jobID := seedJob(jobs, models.JobStatusPending, "bought 2 milk")
	executor := &fakeExecutor{err: errors.New("pipeline exploded")}
	p := NewIngestionProcessor(jobs, executor)

	err := p.Process(context.Background(), IngestionJobEvent{OwnerID: "u1", JobID: jobID})
	require.NoError(t, err, "terminal failures must not trigger redelivery")

	job := jobs.jobs[jobID]
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Equal(t, "pipeline exploded", job.LastError)
}

func TestProcessPanicStillTerminal(t *testing.T) {
	jobs := newFakeJobs()
	jobID := seedJob(jobs, models.JobStatusPending, "bought 2 milk")
	p := NewIngestionProcessor(jobs, &fakeExecutor{panics: true})

	err := p.Process(context.Background(), IngestionJobEvent{OwnerID: "u1", JobID: jobID})
	require.NoError(t, err)

	job := jobs.jobs[jobID]
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Contains(t, job.LastError, "panic during ingestion")
}

func TestProcessEmptyTextFails(t *testing.T) {
	jobs := newFakeJobs()
	jobID := seedJob(jobs, models.JobStatusPending, "")
	p := NewIngestionProcessor(jobs, &fakeExecutor{outcome: &Outcome{Success: true}})

	err := p.Process(context.Background(), IngestionJobEvent{OwnerID: "u1", JobID: jobID})
	require.NoError(t, err)

	job := jobs.jobs[jobID]
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Contains(t, job.LastError, "no text to process")
}

func TestProcessUnsuccessfulOutcome(t *testing.T) {
	jobs := newFakeJobs()
	jobID := seedJob(jobs, models.JobStatusPending, "hello")
	executor := &fakeExecutor{outcome: &Outcome{
		Success:      false,
		Error:        "fallback parser found no inventory updates",
		UsedFallback: true,
	}}
	p := NewIngestionProcessor(jobs, executor)

	err := p.Process(context.Background(), IngestionJobEvent{OwnerID: "u1", JobID: jobID})
	require.NoError(t, err)

	job := jobs.jobs[jobID]
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.Equal(t, "fallback parser found no inventory updates", job.LastError)
	assert.True(t, job.FallbackApplied)
}

func TestProcessUnreadableJobReturnsError(t *testing.T) {
	jobs := newFakeJobs()
	jobs.getErr = errors.New("firestore unavailable")
	p := NewIngestionProcessor(jobs, &fakeExecutor{})

	err := p.Process(context.Background(), IngestionJobEvent{OwnerID: "u1", JobID: "job-1"})
	require.Error(t, err)
}
