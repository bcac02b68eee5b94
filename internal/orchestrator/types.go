package orchestrator

// ScreeningResult is the screening tier's verdict on a transcript segment.
type ScreeningResult struct {
	Relevant   bool   `json:"relevant"`
	Reason     string `json:"reason"`
	TextLength int    `json:"text_length"`
	FromCache  bool   `json:"from_cache,omitempty"`
}

// AnalysisInsight is a structured insight produced by the analysis tier.
type AnalysisInsight struct {
	Title          string `json:"title"`
	Analysis       string `json:"analysis"`
	Recommendation string `json:"recommendation"`
	Category       string `json:"category"`
}

// CycleResult collects everything one screening cycle produced.
// Insight is nil when the segment was not relevant or analysis failed.
type CycleResult struct {
	Screening *ScreeningResult
	Insight   *AnalysisInsight
}

// CopilotAnswer is the response to an ad-hoc user question.
type CopilotAnswer struct {
	Answer    string  `json:"answer"`
	LatencyMs float64 `json:"latency_ms"`
	ModelTier string  `json:"model_tier"`
}

// SummaryDecision records one decision extracted from the meeting.
type SummaryDecision struct {
	What string `json:"what"`
	Who  string `json:"who"`
}

// SummaryActionItem records one action item with owner and deadline.
type SummaryActionItem struct {
	Task     string `json:"task"`
	Owner    string `json:"owner"`
	Deadline string `json:"deadline"`
}

// SummaryRisk records one risk and its severity.
type SummaryRisk struct {
	Description string `json:"description"`
	Severity    string `json:"severity"`
}

// MeetingSummary is the structured post-meeting report.
type MeetingSummary struct {
	Title       string              `json:"title"`
	Summary     string              `json:"summary"`
	KeyTopics   []string            `json:"key_topics"`
	Decisions   []SummaryDecision   `json:"decisions"`
	ActionItems []SummaryActionItem `json:"action_items"`
	Risks       []SummaryRisk       `json:"risks"`
	NextSteps   []string            `json:"next_steps"`
}
