package session

// Event is one message pushed to the session's external consumer. The
// transport owns the wire encoding; the pipeline only names the type and
// carries the payload.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Event types emitted by a session.
const (
	EventConnected         = "connected"
	EventTranscript        = "transcript"
	EventTranscriptAck     = "transcript_ack"
	EventPartialTranscript = "partial_transcript"
	EventScreening         = "screening"
	EventAnalysis          = "analysis"
	EventCostUpdate        = "cost_update"
	EventBudgetExceeded    = "budget_exceeded"
	EventCopilot           = "copilot"
	EventSummary           = "summary"
	EventPong              = "pong"
	EventError             = "error"
)

// EmitFunc pushes an event toward the consumer. Failures are the
// transport's problem; the session logs and moves on.
type EmitFunc func(event Event) error

// PersistSink receives finalized artifacts for durability. Calls are
// fire-and-forget; a failing sink never affects the pipeline.
type PersistSink interface {
	Persist(kind string, payload any)
}

// Persist kinds handed to the sink.
const (
	PersistTranscript = "transcript"
	PersistInsight    = "insight"
	PersistSummary    = "summary"
)
