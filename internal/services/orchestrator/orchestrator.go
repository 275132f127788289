package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/consilium/internal/common"
	"github.com/ternarybob/consilium/internal/interfaces"
	"github.com/ternarybob/consilium/internal/models"
	"github.com/ternarybob/consilium/internal/services/intent"
)

// Service coordinates one query through the orchestration state machine:
// classify, dispatch tools, assemble the grounded prompt, generate through
// the gateway, synthesize. Each query is one independent unit of work; the
// only shared mutable state lives inside the gateway's health table.
type Service struct {
	personas   interfaces.PersonaSelector
	docSearch  interfaces.DocumentSearchClient
	structured interfaces.StructuredDataClient
	gateway    interfaces.ProviderGateway
	sessions   interfaces.SessionStore
	events     interfaces.EventPublisher // optional, nil = no progress events
	cfg        common.OrchestratorConfig
	logger     arbor.ILogger
}

// NewService creates the orchestrator over its collaborators. events and
// sessions may be nil for callers that need neither progress streaming nor
// history.
func NewService(
	personas interfaces.PersonaSelector,
	docSearch interfaces.DocumentSearchClient,
	structured interfaces.StructuredDataClient,
	gateway interfaces.ProviderGateway,
	sessions interfaces.SessionStore,
	events interfaces.EventPublisher,
	cfg common.OrchestratorConfig,
	logger arbor.ILogger,
) interfaces.AnswerService {
	return &Service{
		personas:   personas,
		docSearch:  docSearch,
		structured: structured,
		gateway:    gateway,
		sessions:   sessions,
		events:     events,
		cfg:        cfg,
		logger:     logger,
	}
}

// toolOutcome is the join value for one tool invocation in the fan-out
type toolOutcome struct {
	kind   models.ToolKind
	result *models.ToolResult
	err    error
}

// Answer runs one query end to end. On failure it returns a *models.Failure
// naming the stage and a display-safe cause; callers never see raw provider
// or tool errors.
func (s *Service) Answer(ctx context.Context, query *models.Query) (*models.Answer, error) {
	start := time.Now()
	if query.ID == "" {
		query.ID = common.NewQueryID()
	}
	s.publish(query.ID, models.StageReceived, "")

	// Received -> Classified. Classification is a pure lookup and never fails.
	qIntent := intent.Classify(query.Question, query.PersonaHint)
	persona := s.personas.Select(query.PersonaHint, qIntent)
	s.publish(query.ID, models.StageClassified, string(qIntent))

	s.logger.Info().
		Str("query_id", query.ID).
		Str("intent", string(qIntent)).
		Str("persona", persona.ID).
		Msg("Query classified")

	// Classified -> ToolsDispatched -> ToolsCompleted
	s.publish(query.ID, models.StageToolsDispatch, "")
	results, toolErrs, err := s.runTools(ctx, query, qIntent)
	if err != nil {
		return nil, err
	}
	degraded := len(toolErrs) > 0 && len(results) > 0
	s.publish(query.ID, models.StageToolsCompleted, fmt.Sprintf("%d results", len(results)))

	// ToolsCompleted -> PromptAssembled. Session read failures degrade to an
	// empty history rather than failing the query.
	var history []models.Turn
	if s.sessions != nil && query.SessionID != "" {
		history, err = s.sessions.RecentTurns(ctx, query.SessionID, s.cfg.MaxHistoryTurns)
		if err != nil {
			s.logger.Warn().Err(err).Str("session_id", query.SessionID).Msg("Failed to load session history, continuing without it")
			history = nil
		}
	}
	prompt, candidates := buildPrompt(query.Question, history, results)
	s.publish(query.ID, models.StagePromptAssembly, "")

	// PromptAssembled -> Generating -> Synthesized
	s.publish(query.ID, models.StageGenerating, "")
	genResult, err := s.gateway.Generate(ctx, persona.SystemPrompt, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return nil, models.NewFailure(models.StageCancelled, "query cancelled by caller")
		}
		failure := models.NewFailure(models.StageGenerating, "all generation providers failed")
		failure.Attempts = genResult.Attempts
		return nil, failure
	}
	s.publish(query.ID, models.StageSynthesized, genResult.Provider)

	// Synthesized -> Done
	answer := &models.Answer{
		QueryID:       query.ID,
		Text:          genResult.Text,
		Citations:     extractCitations(genResult.Text, candidates),
		EvidenceGrade: gradeEvidence(results, s.cfg.MinConcordantSources),
		Degraded:      degraded,
		Intent:        qIntent,
		Persona:       persona.ID,
		Provider:      genResult.Provider,
		ElapsedMs:     time.Since(start).Milliseconds(),
	}
	if needsDisclaimer(qIntent, persona) {
		answer.Disclaimer = persona.Disclaimer
	}

	s.appendTurn(ctx, query, answer)
	s.publish(query.ID, models.StageDone, string(answer.EvidenceGrade))

	s.logger.Info().
		Str("query_id", query.ID).
		Str("provider", answer.Provider).
		Str("evidence_grade", string(answer.EvidenceGrade)).
		Bool("degraded", answer.Degraded).
		Int64("elapsed_ms", answer.ElapsedMs).
		Msg("Query answered")

	return answer, nil
}

// runTools invokes the tool clients the intent requires. Under hybrid both
// clients run concurrently under a shared deadline and are joined here: one
// tool's latency never adds to the other's. Partial failure degrades;
// failure of every required tool is fatal for the query.
func (s *Service) runTools(ctx context.Context, query *models.Query, qIntent models.Intent) ([]*models.ToolResult, []error, error) {
	needDocs := qIntent.NeedsDocumentSearch()
	needData := qIntent.NeedsStructuredData()

	toolCtx := ctx
	if s.cfg.ToolTimeout > 0 {
		var cancel context.CancelFunc
		toolCtx, cancel = context.WithTimeout(ctx, s.cfg.ToolTimeout)
		defer cancel()
	}

	outcomes := make(chan toolOutcome, 2)
	dispatched := 0

	if needDocs {
		dispatched++
		go func() {
			result, err := s.docSearch.Search(toolCtx, query.Question, query.Filters)
			outcomes <- toolOutcome{kind: models.ToolDocumentSearch, result: result, err: err}
		}()
	}
	if needData {
		dispatched++
		go func() {
			result, err := s.structured.Query(toolCtx, query.Question, query.Filters)
			outcomes <- toolOutcome{kind: models.ToolStructuredData, result: result, err: err}
		}()
	}

	byKind := make(map[models.ToolKind]*models.ToolResult, dispatched)
	var toolErrs []error
	for i := 0; i < dispatched; i++ {
		outcome := <-outcomes
		if outcome.err != nil {
			s.logger.Warn().
				Err(outcome.err).
				Str("query_id", query.ID).
				Str("tool", string(outcome.kind)).
				Msg("Tool invocation failed")
			toolErrs = append(toolErrs, outcome.err)
			continue
		}
		byKind[outcome.kind] = outcome.result
	}

	if ctx.Err() != nil {
		return nil, nil, models.NewFailure(models.StageCancelled, "query cancelled by caller")
	}

	if len(byKind) == 0 {
		kinds := make([]string, 0, len(toolErrs))
		for _, err := range toolErrs {
			if toolErr, ok := err.(*models.ToolError); ok {
				kinds = append(kinds, fmt.Sprintf("%s: %s", toolErr.Tool, toolErr.Kind))
			}
		}
		cause := "all required tools failed"
		if len(kinds) > 0 {
			cause = fmt.Sprintf("all required tools failed (%s)", strings.Join(kinds, "; "))
		}
		return nil, nil, models.NewFailure(models.StageToolsDispatch, cause)
	}

	// Deterministic evidence order: documents first, then structured data
	var results []*models.ToolResult
	if r, ok := byKind[models.ToolDocumentSearch]; ok {
		results = append(results, r)
	}
	if r, ok := byKind[models.ToolStructuredData]; ok {
		results = append(results, r)
	}
	return results, toolErrs, nil
}

// appendTurn records the completed turn on the caller's session. Persistence
// failures are logged, not surfaced: the answer is already produced.
func (s *Service) appendTurn(ctx context.Context, query *models.Query, answer *models.Answer) {
	if s.sessions == nil || query.SessionID == "" {
		return
	}

	turn := &models.Turn{
		SessionID: query.SessionID,
		Question:  query.Question,
		Answer:    answer.Text,
		Intent:    answer.Intent,
	}
	if err := s.sessions.AppendTurn(ctx, turn); err != nil {
		s.logger.Warn().Err(err).Str("session_id", query.SessionID).Msg("Failed to append session turn")
	}
}

func (s *Service) publish(queryID string, stage models.Stage, detail string) {
	if s.events != nil {
		s.events.PublishStage(queryID, stage, detail)
	}
}
