package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/meetmind/insight-engine/internal/cache"
	"github.com/meetmind/insight-engine/internal/cost"
	"github.com/meetmind/insight-engine/internal/llm"
)

type invocation struct {
	ModelID string
	Request llm.Request
}

type fakeInvoker struct {
	mu        sync.Mutex
	responses map[string]*llm.Response
	err       error
	calls     []invocation
}

func (f *fakeInvoker) Invoke(_ context.Context, modelID string, req llm.Request) (*llm.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, invocation{ModelID: modelID, Request: req})
	if f.err != nil {
		return nil, f.err
	}
	resp, ok := f.responses[modelID]
	if !ok {
		resp = &llm.Response{Content: "{}", InputTokens: 10, OutputTokens: 5}
	}
	out := *resp
	out.ModelID = modelID
	return &out, nil
}

func (f *fakeInvoker) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeInvoker) call(i int) invocation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[i]
}

var testModels = llm.RoleModels{
	Screening: "claude-3-5-haiku",
	Analysis:  "claude-sonnet-4-5",
	Copilot:   "claude-sonnet-4-5",
	Summary:   "claude-sonnet-4-5",
}

func newTestOrchestrator(t *testing.T, invoker llm.Invoker, budget float64) (*Orchestrator, *cost.Ledger) {
	t.Helper()
	ledger, err := cost.NewLedger(budget, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewLedger() error = %v", err)
	}
	c := cache.New(10, time.Minute, zerolog.Nop())
	return New(invoker, testModels, ledger, c, zerolog.Nop()), ledger
}

func TestRunScreening_DegradedWithoutInvoker(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil, 1.0)
	o.invoker = nil

	result, err := o.RunScreening(context.Background(), "we decided to migrate", "full context")
	if err != nil {
		t.Fatalf("RunScreening() error = %v", err)
	}
	if result.Screening == nil || result.Screening.Relevant {
		t.Errorf("Expected not-relevant degraded verdict, got %+v", result.Screening)
	}
	if result.Insight != nil {
		t.Error("Expected no insight in degraded mode")
	}
}

func TestRunScreening_EmptyText(t *testing.T) {
	invoker := &fakeInvoker{}
	o, _ := newTestOrchestrator(t, invoker, 1.0)

	result, err := o.RunScreening(context.Background(), "   ", "ctx")
	if err != nil {
		t.Fatalf("RunScreening() error = %v", err)
	}
	if result.Screening.Relevant {
		t.Error("Expected empty text to be not relevant")
	}
	if invoker.callCount() != 0 {
		t.Errorf("Expected no LLM calls for empty text, got %d", invoker.callCount())
	}
}

func TestRunScreening_RelevantTriggersAnalysis(t *testing.T) {
	invoker := &fakeInvoker{responses: map[string]*llm.Response{
		"claude-3-5-haiku": {
			Content:      `{"relevant": true, "reason": "decision about release date"}`,
			InputTokens:  100,
			OutputTokens: 20,
		},
		"claude-sonnet-4-5": {
			Content:      `{"title": "Ship date fixed", "analysis": "The team committed to friday.", "recommendation": "Confirm staffing.", "category": "decision"}`,
			InputTokens:  500,
			OutputTokens: 100,
		},
	}}
	o, ledger := newTestOrchestrator(t, invoker, 1.0)

	result, err := o.RunScreening(context.Background(), "we agreed to ship on friday.", "full transcript here")
	if err != nil {
		t.Fatalf("RunScreening() error = %v", err)
	}
	if !result.Screening.Relevant {
		t.Fatal("Expected relevant verdict")
	}
	if result.Insight == nil {
		t.Fatal("Expected an insight for a relevant segment")
	}
	if result.Insight.Title != "Ship date fixed" || result.Insight.Category != "decision" {
		t.Errorf("unexpected insight: %+v", result.Insight)
	}

	if invoker.callCount() != 2 {
		t.Fatalf("Expected 2 LLM calls, got %d", invoker.callCount())
	}
	analysisCall := invoker.call(1)
	if analysisCall.ModelID != "claude-sonnet-4-5" {
		t.Errorf("Expected analysis on the analysis model, got %q", analysisCall.ModelID)
	}
	if !strings.Contains(analysisCall.Request.Prompt, "decision about release date") {
		t.Error("Expected the screening reason to appear in the analysis prompt")
	}
	if !strings.Contains(analysisCall.Request.Prompt, "full transcript here") {
		t.Error("Expected the full context to appear in the analysis prompt")
	}

	if ledger.TotalCostUSD() <= 0 {
		t.Error("Expected both calls to be recorded in the ledger")
	}
}

func TestRunScreening_NotRelevantSkipsAnalysis(t *testing.T) {
	invoker := &fakeInvoker{responses: map[string]*llm.Response{
		"claude-3-5-haiku": {Content: `{"relevant": false, "reason": "small talk"}`, InputTokens: 50, OutputTokens: 10},
	}}
	o, _ := newTestOrchestrator(t, invoker, 1.0)

	result, err := o.RunScreening(context.Background(), "how was your weekend", "ctx")
	if err != nil {
		t.Fatalf("RunScreening() error = %v", err)
	}
	if result.Screening.Relevant {
		t.Error("Expected not relevant")
	}
	if result.Insight != nil {
		t.Error("Expected no insight")
	}
	if invoker.callCount() != 1 {
		t.Errorf("Expected 1 LLM call, got %d", invoker.callCount())
	}
}

func TestRunScreening_MalformedVerdictFailsOpen(t *testing.T) {
	invoker := &fakeInvoker{responses: map[string]*llm.Response{
		"claude-3-5-haiku":  {Content: "I think this is definitely relevant!", InputTokens: 50, OutputTokens: 10},
		"claude-sonnet-4-5": {Content: `{"title": "T", "analysis": "A", "recommendation": "R", "category": "risk"}`, InputTokens: 100, OutputTokens: 50},
	}}
	o, _ := newTestOrchestrator(t, invoker, 1.0)

	result, err := o.RunScreening(context.Background(), "the budget overrun is concerning", "ctx")
	if err != nil {
		t.Fatalf("RunScreening() error = %v", err)
	}
	if !result.Screening.Relevant {
		t.Error("Expected fail-open relevant verdict on parse failure")
	}
	if !strings.Contains(result.Screening.Reason, "parse") {
		t.Errorf("Expected parse-failure reason, got %q", result.Screening.Reason)
	}
	if result.Insight == nil {
		t.Error("Expected fail-open verdict to still trigger analysis")
	}
}

func TestRunScreening_TransientErrorAbsorbed(t *testing.T) {
	invoker := &fakeInvoker{err: errors.New("connection refused")}
	o, _ := newTestOrchestrator(t, invoker, 1.0)

	result, err := o.RunScreening(context.Background(), "some text to screen", "ctx")
	if err != nil {
		t.Fatalf("Expected transient failure to be absorbed, got %v", err)
	}
	if result.Screening.Relevant {
		t.Error("Expected not-relevant verdict on screening failure")
	}
}

func TestRunScreening_BudgetExceededPropagates(t *testing.T) {
	// 1M input + 100k output on haiku is ~$0.375, far above the budget.
	invoker := &fakeInvoker{responses: map[string]*llm.Response{
		"claude-3-5-haiku": {Content: `{"relevant": true, "reason": "r"}`, InputTokens: 1_000_000, OutputTokens: 100_000},
	}}
	o, ledger := newTestOrchestrator(t, invoker, 0.001)

	result, err := o.RunScreening(context.Background(), "expensive text", "ctx")
	if !errors.Is(err, cost.ErrBudgetExceeded) {
		t.Fatalf("Expected ErrBudgetExceeded, got %v", err)
	}
	if result.Screening == nil {
		t.Error("Expected the screening verdict despite budget exhaustion")
	}
	if result.Insight != nil {
		t.Error("Expected no analysis after budget exhaustion")
	}
	if invoker.callCount() != 1 {
		t.Errorf("Expected 1 call, got %d", invoker.callCount())
	}
	if !ledger.Exhausted() {
		t.Error("Expected ledger to be exhausted")
	}

	// Further cycles refuse immediately without calling the LLM.
	if _, err := o.RunScreening(context.Background(), "more text", "ctx"); !errors.Is(err, cost.ErrBudgetExceeded) {
		t.Fatalf("Expected ErrBudgetExceeded on exhausted ledger, got %v", err)
	}
	if invoker.callCount() != 1 {
		t.Errorf("Expected no further calls, got %d", invoker.callCount())
	}
}

func TestRunScreening_CacheBypassesPaidCall(t *testing.T) {
	invoker := &fakeInvoker{responses: map[string]*llm.Response{
		"claude-3-5-haiku": {Content: `{"relevant": false, "reason": "small talk"}`, InputTokens: 50, OutputTokens: 10},
	}}
	o, ledger := newTestOrchestrator(t, invoker, 1.0)

	text := "So anyway, how was the weekend for everyone here?"
	if _, err := o.RunScreening(context.Background(), text, "ctx"); err != nil {
		t.Fatalf("RunScreening() error = %v", err)
	}
	costAfterFirst := ledger.TotalCostUSD()

	result, err := o.RunScreening(context.Background(), text, "ctx")
	if err != nil {
		t.Fatalf("RunScreening() error = %v", err)
	}
	if !result.Screening.FromCache {
		t.Error("Expected the second identical cycle to be served from cache")
	}
	if result.Screening.Relevant {
		t.Error("Expected cached not-relevant verdict")
	}
	if invoker.callCount() != 1 {
		t.Errorf("Expected 1 paid call across both cycles, got %d", invoker.callCount())
	}
	if ledger.TotalCostUSD() != costAfterFirst {
		t.Error("Expected no additional cost for the cached cycle")
	}
}

func TestAsk_RoutesSimpleToCheapTier(t *testing.T) {
	invoker := &fakeInvoker{responses: map[string]*llm.Response{
		"claude-3-5-haiku": {Content: "Maria said it.", InputTokens: 200, OutputTokens: 10},
	}}
	o, _ := newTestOrchestrator(t, invoker, 1.0)

	answer, err := o.Ask(context.Background(), "who said that?", "Maria: the deploy is blocked.")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if answer.ModelTier != "haiku" {
		t.Errorf("Expected haiku tier, got %q", answer.ModelTier)
	}
	if invoker.call(0).ModelID != "claude-3-5-haiku" {
		t.Errorf("Expected the screening model, got %q", invoker.call(0).ModelID)
	}
	if answer.Answer != "Maria said it." {
		t.Errorf("unexpected answer: %q", answer.Answer)
	}
}

func TestAsk_RoutesComplexToCopilotTier(t *testing.T) {
	invoker := &fakeInvoker{responses: map[string]*llm.Response{
		"claude-sonnet-4-5": {Content: "Because of the latency budget.", InputTokens: 300, OutputTokens: 30},
	}}
	o, _ := newTestOrchestrator(t, invoker, 1.0)

	answer, err := o.Ask(context.Background(), "Why did they choose Kubernetes over ECS?", "ctx")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if answer.ModelTier != "sonnet" {
		t.Errorf("Expected sonnet tier, got %q", answer.ModelTier)
	}
	if invoker.call(0).ModelID != "claude-sonnet-4-5" {
		t.Errorf("Expected the copilot model, got %q", invoker.call(0).ModelID)
	}
}

func TestAsk_RefusedWhenExhausted(t *testing.T) {
	invoker := &fakeInvoker{}
	o, ledger := newTestOrchestrator(t, invoker, 0.001)
	_ = ledger.Record("claude-3-opus", 1_000_000, 0)

	if _, err := o.Ask(context.Background(), "who said that?", "ctx"); !errors.Is(err, cost.ErrBudgetExceeded) {
		t.Fatalf("Expected ErrBudgetExceeded, got %v", err)
	}
	if invoker.callCount() != 0 {
		t.Errorf("Expected no LLM calls, got %d", invoker.callCount())
	}
}

func TestAsk_UnavailableWithoutInvoker(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil, 1.0)
	o.invoker = nil

	if _, err := o.Ask(context.Background(), "who said that?", "ctx"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Expected ErrUnavailable, got %v", err)
	}
}

func TestSummarize_EmptyTranscript(t *testing.T) {
	invoker := &fakeInvoker{}
	o, _ := newTestOrchestrator(t, invoker, 1.0)

	summary, err := o.Summarize(context.Background(), "  ")
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if summary.Title != "Empty Meeting" {
		t.Errorf("unexpected title: %q", summary.Title)
	}
	if invoker.callCount() != 0 {
		t.Errorf("Expected no LLM calls for empty transcript, got %d", invoker.callCount())
	}
}

func TestSummarize_ParsesStructuredReport(t *testing.T) {
	invoker := &fakeInvoker{responses: map[string]*llm.Response{
		"claude-sonnet-4-5": {
			Content: "```json\n" + `{
				"title": "Release Planning",
				"key_topics": ["release", "staffing"],
				"decisions": [{"what": "Ship friday", "who": "Team"}],
				"action_items": [{"task": "Update runbook", "owner": "TBD", "deadline": "Not specified"}],
				"risks": [{"description": "Tight timeline", "severity": "medium"}],
				"next_steps": ["Confirm staffing"],
				"summary": "The team committed to a friday release."
			}` + "\n```",
			InputTokens:  2000,
			OutputTokens: 300,
		},
	}}
	o, _ := newTestOrchestrator(t, invoker, 1.0)

	summary, err := o.Summarize(context.Background(), "long transcript")
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	req := invoker.call(0).Request
	if req.MaxTokens != 2048 || req.Temperature != 0.3 {
		t.Errorf("Expected summary call with 2048 tokens at 0.3, got %d at %v", req.MaxTokens, req.Temperature)
	}
	if summary.Title != "Release Planning" {
		t.Errorf("unexpected title: %q", summary.Title)
	}
	if len(summary.Decisions) != 1 || summary.Decisions[0].What != "Ship friday" {
		t.Errorf("unexpected decisions: %+v", summary.Decisions)
	}
	if len(summary.Risks) != 1 || summary.Risks[0].Severity != "medium" {
		t.Errorf("unexpected risks: %+v", summary.Risks)
	}
}

func TestSummarize_MalformedFallsBackToRawContent(t *testing.T) {
	invoker := &fakeInvoker{responses: map[string]*llm.Response{
		"claude-sonnet-4-5": {Content: "The meeting covered release planning.", InputTokens: 100, OutputTokens: 20},
	}}
	o, _ := newTestOrchestrator(t, invoker, 1.0)

	summary, err := o.Summarize(context.Background(), "transcript")
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if summary.Title != "Meeting Summary" {
		t.Errorf("unexpected title: %q", summary.Title)
	}
	if !strings.Contains(summary.Summary, "release planning") {
		t.Errorf("Expected raw content fallback, got %q", summary.Summary)
	}
}
