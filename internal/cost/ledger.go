package cost

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/meetmind/insight-engine/internal/observability"
)

// ErrBudgetExceeded signals that the session budget has been reached. It is
// expected control flow, not a defect: the triggering call's usage is still
// recorded (the spend already happened) and only subsequent paid calls are
// refused.
var ErrBudgetExceeded = errors.New("session budget exceeded")

// Pricing per 1M tokens in USD, by tier
type Pricing struct {
	Input  float64
	Output float64
}

// Tier names. Classification of a model ID checks cheapest first and falls
// back to the mid tier when unrecognized.
const (
	TierHaiku  = "haiku"
	TierSonnet = "sonnet"
	TierOpus   = "opus"
)

var pricingTable = map[string]Pricing{
	TierHaiku:  {Input: 0.25, Output: 1.25},
	TierSonnet: {Input: 3.00, Output: 15.00},
	TierOpus:   {Input: 15.00, Output: 75.00},
}

// ClassifyModel maps a model identifier onto a pricing tier by substring
// match, cheapest marker first, defaulting to the mid tier.
func ClassifyModel(modelID string) string {
	lower := strings.ToLower(modelID)
	if strings.Contains(lower, TierHaiku) {
		return TierHaiku
	}
	if strings.Contains(lower, TierOpus) {
		return TierOpus
	}
	return TierSonnet
}

// TierUsage is cumulative token usage for one pricing tier
type TierUsage struct {
	Tier         string `json:"tier"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
	Requests     int    `json:"requests"`
}

// CostUSD computes the USD cost for this tier from the fixed price table
func (u TierUsage) CostUSD() float64 {
	pricing, ok := pricingTable[u.Tier]
	if !ok {
		pricing = pricingTable[TierSonnet]
	}
	inputCost := float64(u.InputTokens) / 1_000_000 * pricing.Input
	outputCost := float64(u.OutputTokens) / 1_000_000 * pricing.Output
	return inputCost + outputCost
}

// Snapshot is a point-in-time view of the ledger for cost_update events
type Snapshot struct {
	TotalCostUSD       float64              `json:"total_cost_usd"`
	BudgetUSD          float64              `json:"budget_usd"`
	BudgetRemainingUSD float64              `json:"budget_remaining_usd"`
	BudgetPct          float64              `json:"budget_pct"`
	TotalInputTokens   int                  `json:"total_input_tokens"`
	TotalOutputTokens  int                  `json:"total_output_tokens"`
	TotalRequests      int                  `json:"total_requests"`
	SessionDurationS   float64              `json:"session_duration_s"`
	ByTier             map[string]TierStats `json:"by_tier"`
}

// TierStats is the per-tier portion of a Snapshot
type TierStats struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	Requests     int     `json:"requests"`
	CostUSD      float64 `json:"cost_usd"`
}

// Ledger tracks per-session token usage across pricing tiers and enforces
// the session budget. The budget is checked strictly after cost is added
// because actual token counts are only known once a call completes; the
// budget can therefore be exceeded by at most one request's spend.
type Ledger struct {
	mu        sync.Mutex
	budgetUSD float64
	usage     map[string]*TierUsage
	requests  int
	exhausted bool
	startedAt time.Time
	logger    zerolog.Logger
}

// NewLedger creates a ledger for one session. Budget must be positive.
func NewLedger(budgetUSD float64, logger zerolog.Logger) (*Ledger, error) {
	if budgetUSD <= 0 {
		return nil, fmt.Errorf("budget must be positive, got %f", budgetUSD)
	}
	return &Ledger{
		budgetUSD: budgetUSD,
		usage:     make(map[string]*TierUsage),
		startedAt: time.Now(),
		logger:    logger,
	}, nil
}

// Record accumulates token usage for the tier the model classifies into.
// When the running total reaches the budget it returns ErrBudgetExceeded;
// the usage is recorded either way.
func (l *Ledger) Record(modelID string, inputTokens, outputTokens int) error {
	tier := ClassifyModel(modelID)

	l.mu.Lock()
	u, ok := l.usage[tier]
	if !ok {
		u = &TierUsage{Tier: tier}
		l.usage[tier] = u
	}
	u.InputTokens += inputTokens
	u.OutputTokens += outputTokens
	u.Requests++
	l.requests++

	total := l.totalLocked()
	exceeded := total >= l.budgetUSD
	if exceeded {
		l.exhausted = true
	}
	budgetPct := total / l.budgetUSD * 100
	l.mu.Unlock()

	observability.RecordTokens(tier, inputTokens, outputTokens)
	observability.RecordCost(TierUsage{Tier: tier, InputTokens: inputTokens, OutputTokens: outputTokens}.CostUSD())

	l.logger.Info().
		Str("tier", tier).
		Int("input_tokens", inputTokens).
		Int("output_tokens", outputTokens).
		Float64("total_cost_usd", total).
		Float64("budget_pct", budgetPct).
		Msg("Cost recorded")

	if exceeded {
		observability.RecordBudgetExceeded()
		return fmt.Errorf("budget $%.2f reached (current: $%.4f): %w", l.budgetUSD, total, ErrBudgetExceeded)
	}
	return nil
}

// Exhausted reports whether a previous Record hit the budget. Callers must
// refuse further paid calls once this is true.
func (l *Ledger) Exhausted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.exhausted
}

// TotalCostUSD returns the cumulative cost across all tiers
func (l *Ledger) TotalCostUSD() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalLocked()
}

func (l *Ledger) totalLocked() float64 {
	total := 0.0
	for _, u := range l.usage {
		total += u.CostUSD()
	}
	return total
}

// Snapshot returns a point-in-time view for broadcasting
func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	total := l.totalLocked()
	remaining := l.budgetUSD - total
	if remaining < 0 {
		remaining = 0
	}

	byTier := make(map[string]TierStats, len(l.usage))
	inputTotal, outputTotal := 0, 0
	for tier, u := range l.usage {
		byTier[tier] = TierStats{
			InputTokens:  u.InputTokens,
			OutputTokens: u.OutputTokens,
			Requests:     u.Requests,
			CostUSD:      u.CostUSD(),
		}
		inputTotal += u.InputTokens
		outputTotal += u.OutputTokens
	}

	return Snapshot{
		TotalCostUSD:       total,
		BudgetUSD:          l.budgetUSD,
		BudgetRemainingUSD: remaining,
		BudgetPct:          total / l.budgetUSD * 100,
		TotalInputTokens:   inputTotal,
		TotalOutputTokens:  outputTotal,
		TotalRequests:      l.requests,
		SessionDurationS:   time.Since(l.startedAt).Seconds(),
		ByTier:             byTier,
	}
}
