package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/consilium/internal/common"
	"github.com/ternarybob/consilium/internal/interfaces"
	"github.com/ternarybob/consilium/internal/models"
	"github.com/ternarybob/consilium/internal/services/persona"
)

// fakeDocSearch is a scriptable document search client
type fakeDocSearch struct {
	calls  atomic.Int64
	delay  time.Duration
	result *models.ToolResult
	err    error
}

func (f *fakeDocSearch) Search(ctx context.Context, question string, filters models.ToolFilters) (*models.ToolResult, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, &models.ToolError{Tool: models.ToolDocumentSearch, Kind: models.ToolErrTimeout, Cause: ctx.Err()}
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

// fakeStructured is a scriptable structured data client
type fakeStructured struct {
	calls  atomic.Int64
	delay  time.Duration
	result *models.ToolResult
	err    error
}

func (f *fakeStructured) Query(ctx context.Context, question string, filters models.ToolFilters) (*models.ToolResult, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, &models.ToolError{Tool: models.ToolStructuredData, Kind: models.ToolErrTimeout, Cause: ctx.Err()}
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

// fakeGateway returns a scripted generation outcome
type fakeGateway struct {
	result *models.GenerationResult
	err    error
}

func (f *fakeGateway) Generate(ctx context.Context, systemPrompt, prompt string) (*models.GenerationResult, error) {
	if ctx.Err() != nil {
		return &models.GenerationResult{}, ctx.Err()
	}
	return f.result, f.err
}

func (f *fakeGateway) Health() []models.ProviderHealth { return nil }
func (f *fakeGateway) Close() error                    { return nil }

// fakeEvents records published stages in order
type fakeEvents struct {
	mu     sync.Mutex
	stages []models.Stage
}

func (f *fakeEvents) PublishStage(queryID string, stage models.Stage, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stages = append(f.stages, stage)
}

func (f *fakeEvents) recorded() []models.Stage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Stage(nil), f.stages...)
}

// fakeSessions is an in-memory session store
type fakeSessions struct {
	mu      sync.Mutex
	turns   map[string][]models.Turn
	readErr error
}

func (f *fakeSessions) AppendTurn(ctx context.Context, turn *models.Turn) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.turns == nil {
		f.turns = make(map[string][]models.Turn)
	}
	turn.Sequence = uint64(len(f.turns[turn.SessionID]) + 1)
	f.turns[turn.SessionID] = append(f.turns[turn.SessionID], *turn)
	return nil
}

func (f *fakeSessions) RecentTurns(ctx context.Context, sessionID string, limit int) ([]models.Turn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	turns := f.turns[sessionID]
	if len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return turns, nil
}

func (f *fakeSessions) TurnCount(ctx context.Context, sessionID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.turns[sessionID]), nil
}

func (f *fakeSessions) Close() error { return nil }

func docResult(chunks ...models.Chunk) *models.ToolResult {
	return &models.ToolResult{
		Kind:   models.ToolDocumentSearch,
		Search: &models.SearchResult{Chunks: chunks},
	}
}

func dataResult(rows ...models.Record) *models.ToolResult {
	return &models.ToolResult{
		Kind:      models.ToolStructuredData,
		Analytics: &models.AnalyticsResult{Rows: rows, GeneratedQuery: "SELECT count(*) FROM admissions"},
	}
}

type testDeps struct {
	docs     *fakeDocSearch
	data     *fakeStructured
	gateway  *fakeGateway
	events   *fakeEvents
	sessions *fakeSessions
}

func newTestService(t *testing.T, deps *testDeps) interfaces.AnswerService {
	t.Helper()

	selector, err := persona.NewSelector(&common.PersonasConfig{Default: "clinical"}, common.GetLogger())
	require.NoError(t, err)

	var sessions interfaces.SessionStore
	if deps.sessions != nil {
		sessions = deps.sessions
	}
	var events interfaces.EventPublisher
	if deps.events != nil {
		events = deps.events
	}

	return NewService(
		selector,
		deps.docs,
		deps.data,
		deps.gateway,
		sessions,
		events,
		common.OrchestratorConfig{
			MaxHistoryTurns:      6,
			ToolTimeout:          2 * time.Second,
			MinConcordantSources: 2,
		},
		common.GetLogger(),
	)
}

func okGateway(text string) *fakeGateway {
	return &fakeGateway{result: &models.GenerationResult{
		Text:     text,
		Provider: "claude",
		Attempts: []models.Attempt{{ProviderID: "claude", Succeeded: true}},
	}}
}

func TestAnswer_HybridRunsToolsConcurrently(t *testing.T) {
	deps := &testDeps{
		docs:    &fakeDocSearch{delay: 120 * time.Millisecond, result: docResult(models.Chunk{Text: "discharge policy", SourceID: "doc-1", Score: 0.9})},
		data:    &fakeStructured{delay: 120 * time.Millisecond, result: dataResult(models.Record{"rate": 0.12})},
		gateway: okGateway("Readmission rate is 12% [S1], per the discharge policy [D1]."),
	}
	svc := newTestService(t, deps)

	start := time.Now()
	answer, err := svc.Answer(context.Background(), &models.Query{
		Question: "What is the readmission rate and which discharge policy applies?",
	})
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, models.IntentHybrid, answer.Intent)
	assert.Equal(t, int64(1), deps.docs.calls.Load())
	assert.Equal(t, int64(1), deps.data.calls.Load())

	// Tools overlap: wall time tracks the slower tool, not the sum
	assert.Less(t, elapsed, 220*time.Millisecond)

	// Citations span both evidence kinds
	var hasDoc, hasData bool
	for _, c := range answer.Citations {
		switch c.ID[0] {
		case 'D':
			hasDoc = true
		case 'S':
			hasData = true
		}
	}
	assert.True(t, hasDoc)
	assert.True(t, hasData)
}

func TestAnswer_StructuredOnlySkipsDocumentSearch(t *testing.T) {
	deps := &testDeps{
		docs:    &fakeDocSearch{result: docResult()},
		data:    &fakeStructured{result: dataResult(models.Record{"count": 42})},
		gateway: okGateway("42 patients were admitted last month [S1]."),
	}
	svc := newTestService(t, deps)

	answer, err := svc.Answer(context.Background(), &models.Query{
		Question: "How many patients were admitted last month?",
	})

	require.NoError(t, err)
	assert.Equal(t, models.IntentStructuredOnly, answer.Intent)
	assert.Equal(t, int64(0), deps.docs.calls.Load())
	assert.Equal(t, int64(1), deps.data.calls.Load())
	assert.Equal(t, "data_analyst", answer.Persona)
	assert.NotEmpty(t, answer.Disclaimer)
}

func TestAnswer_UnknownIntentDispatchesBothTools(t *testing.T) {
	deps := &testDeps{
		docs:    &fakeDocSearch{result: docResult(models.Chunk{Text: "ward info", SourceID: "doc-9", Score: 0.5})},
		data:    &fakeStructured{result: dataResult()},
		gateway: okGateway("The cardiology ward handles acute cases [D1]."),
	}
	svc := newTestService(t, deps)

	answer, err := svc.Answer(context.Background(), &models.Query{
		Question: "Tell me about the cardiology ward",
	})

	require.NoError(t, err)
	assert.Equal(t, models.IntentUnknown, answer.Intent)
	assert.Equal(t, int64(1), deps.docs.calls.Load())
	assert.Equal(t, int64(1), deps.data.calls.Load())
}

func TestAnswer_PartialToolFailureDegrades(t *testing.T) {
	deps := &testDeps{
		docs: &fakeDocSearch{result: docResult(models.Chunk{Text: "policy text", SourceID: "doc-2", Score: 0.8})},
		data: &fakeStructured{err: &models.ToolError{
			Tool: models.ToolStructuredData, Kind: models.ToolErrUnavailable, Cause: errors.New("connection refused"),
		}},
		gateway: okGateway("Per the policy [D1], readmissions are reviewed weekly."),
	}
	svc := newTestService(t, deps)

	answer, err := svc.Answer(context.Background(), &models.Query{
		Question: "What is the readmission rate and which discharge policy applies?",
	})

	require.NoError(t, err)
	assert.True(t, answer.Degraded)
	assert.Equal(t, models.EvidenceModerate, answer.EvidenceGrade)
}

func TestAnswer_AllToolsFailFailsAtDispatch(t *testing.T) {
	deps := &testDeps{
		docs: &fakeDocSearch{err: &models.ToolError{
			Tool: models.ToolDocumentSearch, Kind: models.ToolErrTimeout, Cause: context.DeadlineExceeded,
		}},
		data: &fakeStructured{err: &models.ToolError{
			Tool: models.ToolStructuredData, Kind: models.ToolErrUnavailable, Cause: errors.New("connection refused"),
		}},
		gateway: okGateway("unused"),
	}
	svc := newTestService(t, deps)

	answer, err := svc.Answer(context.Background(), &models.Query{
		Question: "What is the readmission rate and which discharge policy applies?",
	})

	require.Error(t, err)
	assert.Nil(t, answer)

	failure, ok := models.AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, models.StageToolsDispatch, failure.Stage)
	assert.Contains(t, failure.Cause, "document_search")
	assert.Contains(t, failure.Cause, "structured_data")
	assert.NotContains(t, failure.Cause, "connection refused")
}

func TestAnswer_AllProvidersFailFailsAtGenerating(t *testing.T) {
	trail := []models.Attempt{
		{ProviderID: "local-llama", Err: "timeout"},
		{ProviderID: "claude", Err: "transport"},
	}
	deps := &testDeps{
		docs: &fakeDocSearch{result: docResult(models.Chunk{Text: "text", SourceID: "doc-3", Score: 0.7})},
		data: &fakeStructured{result: dataResult()},
		gateway: &fakeGateway{
			result: &models.GenerationResult{Attempts: trail},
			err:    models.ErrAllProvidersFailed,
		},
	}
	svc := newTestService(t, deps)

	_, err := svc.Answer(context.Background(), &models.Query{
		Question: "What is the protocol for sepsis management?",
	})

	require.Error(t, err)
	failure, ok := models.AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, models.StageGenerating, failure.Stage)
	assert.Equal(t, trail, failure.Attempts)
}

func TestAnswer_CancellationStopsQuery(t *testing.T) {
	deps := &testDeps{
		docs:    &fakeDocSearch{delay: 5 * time.Second},
		data:    &fakeStructured{delay: 5 * time.Second},
		gateway: okGateway("unused"),
	}
	svc := newTestService(t, deps)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	_, err := svc.Answer(ctx, &models.Query{
		Question: "What is the readmission rate and which discharge policy applies?",
	})

	require.Error(t, err)
	failure, ok := models.AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, models.StageCancelled, failure.Stage)
}

func TestAnswer_PublishesStagesInOrder(t *testing.T) {
	deps := &testDeps{
		docs:    &fakeDocSearch{result: docResult(models.Chunk{Text: "text", SourceID: "doc-4", Score: 0.9})},
		data:    &fakeStructured{result: dataResult()},
		gateway: okGateway("answer [D1]"),
		events:  &fakeEvents{},
	}
	svc := newTestService(t, deps)

	_, err := svc.Answer(context.Background(), &models.Query{
		Question: "What is the protocol for sepsis management?",
	})
	require.NoError(t, err)

	assert.Equal(t, []models.Stage{
		models.StageReceived,
		models.StageClassified,
		models.StageToolsDispatch,
		models.StageToolsCompleted,
		models.StagePromptAssembly,
		models.StageGenerating,
		models.StageSynthesized,
		models.StageDone,
	}, deps.events.recorded())
}

func TestAnswer_SessionReadFailureIsNonFatal(t *testing.T) {
	deps := &testDeps{
		docs:     &fakeDocSearch{result: docResult(models.Chunk{Text: "text", SourceID: "doc-5", Score: 0.9})},
		data:     &fakeStructured{result: dataResult()},
		gateway:  okGateway("answer [D1]"),
		sessions: &fakeSessions{readErr: errors.New("db closed")},
	}
	svc := newTestService(t, deps)

	answer, err := svc.Answer(context.Background(), &models.Query{
		Question:  "What is the protocol for sepsis management?",
		SessionID: "ses_1",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, answer.Text)
}

func TestAnswer_AppendsSessionTurn(t *testing.T) {
	deps := &testDeps{
		docs:     &fakeDocSearch{result: docResult(models.Chunk{Text: "text", SourceID: "doc-6", Score: 0.9})},
		data:     &fakeStructured{result: dataResult()},
		gateway:  okGateway("answer [D1]"),
		sessions: &fakeSessions{},
	}
	svc := newTestService(t, deps)

	_, err := svc.Answer(context.Background(), &models.Query{
		Question:  "What is the protocol for sepsis management?",
		SessionID: "ses_2",
	})
	require.NoError(t, err)

	turns := deps.sessions.turns["ses_2"]
	require.Len(t, turns, 1)
	assert.Equal(t, "What is the protocol for sepsis management?", turns[0].Question)
	assert.Equal(t, models.IntentUnstructuredOnly, turns[0].Intent)
}

func TestAnswer_AssignsQueryID(t *testing.T) {
	deps := &testDeps{
		docs:    &fakeDocSearch{result: docResult(models.Chunk{Text: "text", SourceID: "doc-7", Score: 0.9})},
		data:    &fakeStructured{result: dataResult()},
		gateway: okGateway("answer [D1]"),
	}
	svc := newTestService(t, deps)

	answer, err := svc.Answer(context.Background(), &models.Query{
		Question: "What is the protocol for sepsis management?",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, answer.QueryID)
	assert.Contains(t, answer.QueryID, "qry_")
	assert.GreaterOrEqual(t, answer.ElapsedMs, int64(0))
}

func TestAnswer_ClinicalPersonaCarriesDisclaimer(t *testing.T) {
	deps := &testDeps{
		docs:    &fakeDocSearch{result: docResult(models.Chunk{Text: "text", SourceID: "doc-8", Score: 0.9})},
		data:    &fakeStructured{result: dataResult()},
		gateway: okGateway("answer [D1]"),
	}
	svc := newTestService(t, deps)

	answer, err := svc.Answer(context.Background(), &models.Query{
		Question: "What is the protocol for sepsis management?",
	})

	require.NoError(t, err)
	assert.Equal(t, "clinical", answer.Persona)
	assert.NotEmpty(t, answer.Disclaimer)
}
