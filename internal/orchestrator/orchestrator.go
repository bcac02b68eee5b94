package orchestrator

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/meetmind/insight-engine/internal/cache"
	"github.com/meetmind/insight-engine/internal/cost"
	"github.com/meetmind/insight-engine/internal/llm"
	"github.com/meetmind/insight-engine/internal/observability"
)

// ErrUnavailable is returned when no LLM capability is configured and the
// requested operation cannot degrade to a useful verdict.
var ErrUnavailable = errors.New("llm capability not configured")

// Orchestrator runs the tiered AI pipeline for one session: cheap
// screening on buffered transcript text, conditional analysis when the
// screener flags it, ad-hoc copilot answers, and the post-meeting
// summary. Every paid call goes through the ledger so the session
// budget holds.
//
// A nil invoker puts the orchestrator in transcription-only mode:
// screening reports "not relevant" and paid operations are refused.
type Orchestrator struct {
	invoker llm.Invoker
	models  llm.RoleModels
	ledger  *cost.Ledger
	cache   *cache.ResponseCache
	logger  zerolog.Logger
}

func New(invoker llm.Invoker, models llm.RoleModels, ledger *cost.Ledger, responseCache *cache.ResponseCache, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		invoker: invoker,
		models:  models,
		ledger:  ledger,
		cache:   responseCache,
		logger:  logger.With().Str("component", "orchestrator").Logger(),
	}
}

// RunScreening executes one screening cycle: verdict on text, then
// analysis of (text, fullContext) when relevant. The returned error is
// nil except for budget exhaustion, which the caller must surface; the
// partial CycleResult is still valid in that case. Transient LLM
// failures degrade to a not-relevant verdict.
func (o *Orchestrator) RunScreening(ctx context.Context, text, fullContext string) (*CycleResult, error) {
	result := &CycleResult{}

	if strings.TrimSpace(text) == "" {
		result.Screening = &ScreeningResult{Relevant: false, Reason: "Empty text"}
		return result, nil
	}
	if o.invoker == nil {
		result.Screening = &ScreeningResult{
			Relevant:   false,
			Reason:     "AI agents unavailable",
			TextLength: len(text),
		}
		observability.RecordScreening("degraded")
		return result, nil
	}
	if o.ledger.Exhausted() {
		return nil, cost.ErrBudgetExceeded
	}

	screening, budgetErr := o.screen(ctx, text)
	result.Screening = screening
	if budgetErr != nil {
		return result, budgetErr
	}

	if !screening.Relevant {
		return result, nil
	}
	if o.ledger.Exhausted() {
		return result, cost.ErrBudgetExceeded
	}

	insight, budgetErr := o.analyze(ctx, text, fullContext, screening.Reason)
	result.Insight = insight
	return result, budgetErr
}

func (o *Orchestrator) screen(ctx context.Context, text string) (*ScreeningResult, error) {
	if o.cache != nil {
		if cached, ok := o.cache.Get(text); ok {
			verdict := &ScreeningResult{
				Relevant:   cached["relevant"] == true,
				TextLength: len(text),
				FromCache:  true,
			}
			if reason, ok := cached["reason"].(string); ok {
				verdict.Reason = reason
			}
			o.logger.Debug().Bool("relevant", verdict.Relevant).Msg("Screening served from cache")
			return verdict, nil
		}
	}

	started := time.Now()
	resp, err := o.invoker.Invoke(ctx, o.models.Screening, llm.Request{
		Prompt:       text,
		SystemPrompt: screeningSystemPrompt,
		MaxTokens:    256,
		Temperature:  0.1,
	})
	if err != nil {
		o.logger.Error().Err(err).Int("text_length", len(text)).Msg("Screening call failed")
		observability.RecordScreening("error")
		return &ScreeningResult{
			Relevant:   false,
			Reason:     "Screening error: " + err.Error(),
			TextLength: len(text),
		}, nil
	}
	observability.RecordLLMLatency(string(llm.RoleScreening), time.Since(started).Seconds())

	budgetErr := o.ledger.Record(resp.ModelID, resp.InputTokens, resp.OutputTokens)

	verdict := &ScreeningResult{TextLength: len(text)}
	var parsed struct {
		Relevant bool   `json:"relevant"`
		Reason   string `json:"reason"`
	}
	if err := extractJSON(resp.Content, &parsed); err != nil {
		// Fail open: losing meeting content is worse than one extra
		// analysis call.
		o.logger.Warn().
			Str("raw_content", truncateText(resp.Content, 200)).
			Msg("Screening response was not parsable JSON")
		verdict.Relevant = true
		verdict.Reason = "Failed to parse screening response"
	} else {
		verdict.Relevant = parsed.Relevant
		verdict.Reason = parsed.Reason
		if verdict.Reason == "" {
			verdict.Reason = "No reason provided"
		}
	}

	if o.cache != nil && budgetErr == nil {
		o.cache.Put(text, map[string]any{
			"relevant": verdict.Relevant,
			"reason":   verdict.Reason,
		})
	}

	observability.RecordScreening(screeningStatus(verdict.Relevant))
	o.logger.Info().
		Bool("relevant", verdict.Relevant).
		Str("reason", verdict.Reason).
		Int("text_length", len(text)).
		Float64("latency_ms", resp.LatencyMs).
		Msg("Screening complete")

	if budgetErr != nil {
		return verdict, budgetErr
	}
	return verdict, nil
}

func (o *Orchestrator) analyze(ctx context.Context, segment, fullContext, screeningReason string) (*AnalysisInsight, error) {
	started := time.Now()
	resp, err := o.invoker.Invoke(ctx, o.models.Analysis, llm.Request{
		Prompt:       analysisPrompt(segment, fullContext, screeningReason),
		SystemPrompt: analysisSystemPrompt,
		MaxTokens:    2048,
		Temperature:  0.3,
	})
	if err != nil {
		o.logger.Error().Err(err).Msg("Analysis call failed")
		observability.RecordAnalysis("error")
		return nil, nil
	}
	observability.RecordLLMLatency(string(llm.RoleAnalysis), time.Since(started).Seconds())

	budgetErr := o.ledger.Record(resp.ModelID, resp.InputTokens, resp.OutputTokens)

	insight := &AnalysisInsight{}
	if err := extractJSON(resp.Content, insight); err != nil {
		o.logger.Warn().
			Str("raw_content", truncateText(resp.Content, 200)).
			Msg("Analysis response was not parsable JSON")
		observability.RecordAnalysis("parse_error")
		return nil, budgetErr
	}
	if insight.Title == "" {
		insight.Title = "Untitled Insight"
	}
	if insight.Category == "" {
		insight.Category = "idea"
	}

	observability.RecordAnalysis("ok")
	o.logger.Info().
		Str("title", insight.Title).
		Str("category", insight.Category).
		Float64("latency_ms", resp.LatencyMs).
		Msg("Analysis complete")

	return insight, budgetErr
}

// Ask answers an ad-hoc user question with the transcript as context.
// Simple factual questions route to the cheap screening-tier model,
// analytical ones to the copilot model.
func (o *Orchestrator) Ask(ctx context.Context, question, fullContext string) (*CopilotAnswer, error) {
	if o.invoker == nil {
		return nil, ErrUnavailable
	}
	if o.ledger.Exhausted() {
		return nil, cost.ErrBudgetExceeded
	}

	modelID := o.models.Copilot
	if ClassifyQuery(question) == ComplexitySimple {
		modelID = o.models.Screening
	}

	started := time.Now()
	resp, err := o.invoker.Invoke(ctx, modelID, llm.Request{
		Prompt:       copilotPrompt(question, fullContext),
		SystemPrompt: copilotSystemPrompt,
		MaxTokens:    4096,
		Temperature:  0.4,
	})
	if err != nil {
		o.logger.Error().Err(err).Int("question_length", len(question)).Msg("Copilot call failed")
		return nil, err
	}
	observability.RecordLLMLatency(string(llm.RoleCopilot), time.Since(started).Seconds())

	budgetErr := o.ledger.Record(resp.ModelID, resp.InputTokens, resp.OutputTokens)

	answer := &CopilotAnswer{
		Answer:    strings.TrimSpace(resp.Content),
		LatencyMs: resp.LatencyMs,
		ModelTier: cost.ClassifyModel(resp.ModelID),
	}
	o.logger.Info().
		Int("question_length", len(question)).
		Int("answer_length", len(answer.Answer)).
		Str("model_tier", answer.ModelTier).
		Float64("latency_ms", resp.LatencyMs).
		Msg("Copilot response ready")

	return answer, budgetErr
}

// Summarize produces the structured post-meeting report from the full
// transcript.
func (o *Orchestrator) Summarize(ctx context.Context, fullTranscript string) (*MeetingSummary, error) {
	if strings.TrimSpace(fullTranscript) == "" {
		return &MeetingSummary{
			Title:   "Empty Meeting",
			Summary: "No transcript content was captured.",
		}, nil
	}
	if o.invoker == nil {
		return nil, ErrUnavailable
	}
	if o.ledger.Exhausted() {
		return nil, cost.ErrBudgetExceeded
	}

	started := time.Now()
	resp, err := o.invoker.Invoke(ctx, o.models.Summary, llm.Request{
		Prompt:       summaryPrompt(fullTranscript),
		SystemPrompt: summarySystemPrompt,
		MaxTokens:    2048,
		Temperature:  0.3,
	})
	if err != nil {
		o.logger.Error().Err(err).Msg("Summary call failed")
		return nil, err
	}
	observability.RecordLLMLatency(string(llm.RoleSummary), time.Since(started).Seconds())

	budgetErr := o.ledger.Record(resp.ModelID, resp.InputTokens, resp.OutputTokens)

	summary := &MeetingSummary{}
	if err := extractJSON(resp.Content, summary); err != nil {
		o.logger.Warn().
			Str("raw_content", truncateText(resp.Content, 200)).
			Msg("Summary response was not parsable JSON")
		summary = &MeetingSummary{
			Title:   "Meeting Summary",
			Summary: truncateText(resp.Content, 500),
		}
	}
	if summary.Title == "" {
		summary.Title = "Meeting Summary"
	}

	o.logger.Info().
		Str("title", summary.Title).
		Int("decisions", len(summary.Decisions)).
		Int("action_items", len(summary.ActionItems)).
		Int("risks", len(summary.Risks)).
		Float64("latency_ms", resp.LatencyMs).
		Msg("Summary generated")

	return summary, budgetErr
}

func screeningStatus(relevant bool) string {
	if relevant {
		return "relevant"
	}
	return "not_relevant"
}

func truncateText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
