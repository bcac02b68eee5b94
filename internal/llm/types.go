package llm

import "context"

// Request is a single model invocation
type Request struct {
	Prompt       string
	SystemPrompt string
	MaxTokens    int
	Temperature  float64
}

// Response carries the model output and the token accounting the cost
// ledger needs.
type Response struct {
	Content      string
	InputTokens  int
	OutputTokens int
	LatencyMs    float64
	ModelID      string
}

// Invoker is the LLM-invocation capability. The orchestrator is agnostic
// to which concrete backend serves it.
type Invoker interface {
	Invoke(ctx context.Context, modelID string, req Request) (*Response, error)
}

// Role names the four invocation profiles the pipeline uses
type Role string

const (
	RoleScreening Role = "screening"
	RoleAnalysis  Role = "analysis"
	RoleCopilot   Role = "copilot"
	RoleSummary   Role = "summary"
)

// RoleModels maps each role to a concrete model identifier
type RoleModels struct {
	Screening string
	Analysis  string
	Copilot   string
	Summary   string
}

// Model returns the model ID for a role
func (m RoleModels) Model(role Role) string {
	switch role {
	case RoleScreening:
		return m.Screening
	case RoleAnalysis:
		return m.Analysis
	case RoleCopilot:
		return m.Copilot
	case RoleSummary:
		return m.Summary
	}
	return m.Analysis
}
