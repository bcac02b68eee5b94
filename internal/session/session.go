package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/meetmind/insight-engine/internal/audio"
	"github.com/meetmind/insight-engine/internal/cost"
	"github.com/meetmind/insight-engine/internal/observability"
	"github.com/meetmind/insight-engine/internal/orchestrator"
	"github.com/meetmind/insight-engine/internal/transcript"
)

// Session owns one meeting's full pipeline: the audio segmenter, the
// transcript accumulator, the cost ledger and the orchestrator. Audio
// comes in through FeedAudio, events go out through the emit function.
// Sessions are independent; nothing here is shared across sessions
// except an optional response cache inside the orchestrator.
type Session struct {
	ID string

	segmenter   *audio.Segmenter
	accumulator *transcript.Accumulator
	ledger      *cost.Ledger
	orch        *orchestrator.Orchestrator
	emit        EmitFunc
	persist     PersistSink
	logger      zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	screeningInFlight atomic.Bool
	budgetNotified    atomic.Bool
	startedAt         time.Time
	closeOnce         sync.Once
}

// Deps carries everything a session needs from the composition root.
type Deps struct {
	Segmenter   *audio.Segmenter
	Accumulator *transcript.Accumulator
	Ledger      *cost.Ledger
	Orch        *orchestrator.Orchestrator
	Emit        EmitFunc
	Persist     PersistSink
}

func NewSession(id string, deps Deps) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	persist := deps.Persist
	if persist == nil {
		persist = noopPersist{}
	}
	return &Session{
		ID:          id,
		segmenter:   deps.Segmenter,
		accumulator: deps.Accumulator,
		ledger:      deps.Ledger,
		orch:        deps.Orch,
		emit:        deps.Emit,
		persist:     persist,
		logger:      observability.WithSession(id),
		ctx:         ctx,
		cancel:      cancel,
		startedAt:   time.Now(),
	}
}

// Start launches the segmenter's polling loop and the run loop that
// consumes its segments.
func (s *Session) Start() {
	s.segmenter.Start()
	s.wg.Add(1)
	go s.run()

	observability.RecordSessionStart()
	s.send(Event{Type: EventConnected, Payload: map[string]any{"session_id": s.ID}})
	s.logger.Info().Msg("Session started")
}

// FeedAudio hands one raw audio chunk to the segmenter. Never blocks.
func (s *Session) FeedAudio(raw []byte) {
	s.segmenter.Feed(raw)
}

// run consumes segments until the segmenter closes its channel on Stop.
func (s *Session) run() {
	defer s.wg.Done()

	for seg := range s.segmenter.Segments() {
		if seg.IsPartial {
			s.send(Event{Type: EventPartialTranscript, Payload: map[string]any{
				"text":      seg.Text,
				"timestamp": seg.Timestamp.UnixMilli(),
			}})
			continue
		}

		s.accumulator.AppendChunk(seg.Text, "")
		s.send(Event{Type: EventTranscript, Payload: map[string]any{
			"text":      seg.Text,
			"timestamp": seg.Timestamp.UnixMilli(),
		}})
		s.persist.Persist(PersistTranscript, map[string]any{
			"session_id": s.ID,
			"text":       seg.Text,
			"timestamp":  seg.Timestamp.UnixMilli(),
		})

		s.maybeScreen()
	}
}

// AppendTranscript takes an already-transcribed chunk from the client,
// for consumers that run speech recognition on their side. It feeds the
// same accumulator and screening clock as segmenter output.
func (s *Session) AppendTranscript(text, speaker string) {
	s.accumulator.AppendChunk(text, speaker)
	s.send(Event{Type: EventTranscriptAck, Payload: map[string]any{
		"segments":    s.accumulator.SegmentCount(),
		"buffer_size": s.accumulator.BufferSize(),
	}})
	s.maybeScreen()
}

// maybeScreen starts a screening cycle when the accumulator is due and
// no cycle is already running. The in-flight flag keeps two cycles from
// racing on the unscreened buffer.
func (s *Session) maybeScreen() {
	if !s.accumulator.ShouldScreen() {
		return
	}
	if !s.screeningInFlight.CompareAndSwap(false, true) {
		return
	}

	text := s.accumulator.ExtractScreeningText()
	fullContext := s.accumulator.FullTranscript()
	if text == "" {
		s.screeningInFlight.Store(false)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.screeningInFlight.Store(false)
		s.runScreeningCycle(text, fullContext)
	}()
}

func (s *Session) runScreeningCycle(text, fullContext string) {
	result, err := s.orch.RunScreening(s.ctx, text, fullContext)

	// A session being torn down discards late results.
	if s.ctx.Err() != nil {
		return
	}

	if result != nil && result.Screening != nil {
		s.send(Event{Type: EventScreening, Payload: result.Screening})
		if result.Insight != nil {
			s.send(Event{Type: EventAnalysis, Payload: map[string]any{"insight": result.Insight}})
			s.persist.Persist(PersistInsight, map[string]any{
				"session_id": s.ID,
				"insight":    result.Insight,
			})
		}
	}

	if errors.Is(err, cost.ErrBudgetExceeded) {
		s.notifyBudgetExceeded()
	}
	s.sendCostUpdate()
}

// Ask answers an ad-hoc user question against the transcript so far.
// The orchestrator's budget and availability signals are translated to
// events here so the transport only relays.
func (s *Session) Ask(question string) {
	answer, err := s.orch.Ask(s.ctx, question, s.accumulator.FullTranscript())
	if s.ctx.Err() != nil {
		return
	}

	switch {
	case errors.Is(err, cost.ErrBudgetExceeded):
		if answer != nil {
			s.send(Event{Type: EventCopilot, Payload: answer})
		}
		s.notifyBudgetExceeded()
	case errors.Is(err, orchestrator.ErrUnavailable):
		s.send(Event{Type: EventError, Payload: map[string]any{
			"message": "Copilot unavailable: no LLM capability configured",
		}})
		return
	case err != nil:
		s.send(Event{Type: EventError, Payload: map[string]any{
			"message": "Copilot request failed",
		}})
		return
	default:
		s.send(Event{Type: EventCopilot, Payload: answer})
	}
	s.sendCostUpdate()
}

// Summarize produces the post-meeting report from the full transcript.
func (s *Session) Summarize() {
	summary, err := s.orch.Summarize(s.ctx, s.accumulator.FullTranscript())
	if s.ctx.Err() != nil {
		return
	}

	switch {
	case errors.Is(err, cost.ErrBudgetExceeded):
		if summary != nil {
			s.send(Event{Type: EventSummary, Payload: map[string]any{"summary": summary}})
			s.persist.Persist(PersistSummary, map[string]any{"session_id": s.ID, "summary": summary})
		}
		s.notifyBudgetExceeded()
	case err != nil:
		s.send(Event{Type: EventError, Payload: map[string]any{
			"message": "Summary generation failed",
		}})
		return
	default:
		s.send(Event{Type: EventSummary, Payload: map[string]any{"summary": summary}})
		s.persist.Persist(PersistSummary, map[string]any{"session_id": s.ID, "summary": summary})
	}
	s.sendCostUpdate()
}

// FullTranscript exposes the accumulated transcript for transports.
func (s *Session) FullTranscript() string {
	return s.accumulator.FullTranscript()
}

// CostSnapshot exposes the ledger state for transports.
func (s *Session) CostSnapshot() cost.Snapshot {
	return s.ledger.Snapshot()
}

// Close stops the segmenter, which flushes remaining audio into one
// final segment, then waits for the run loop and any in-flight
// screening cycle. In-flight LLM work is cancelled; results that arrive
// late are discarded.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.segmenter.Stop()
		s.drainAfterStop()
		s.cancel()
		s.wg.Wait()

		observability.RecordSessionEnd(time.Since(s.startedAt).Seconds())
		s.logger.Info().
			Float64("total_cost_usd", s.ledger.TotalCostUSD()).
			Int("segments", s.accumulator.SegmentCount()).
			Msg("Session closed")
	})
}

// drainAfterStop waits for the run loop to consume the segments the
// final flush produced before cancellation, so the flushed text still
// lands in the accumulator and reaches the consumer.
func (s *Session) drainAfterStop() {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		s.logger.Warn().Msg("Timed out draining session pipeline")
	}
}

func (s *Session) notifyBudgetExceeded() {
	if !s.budgetNotified.CompareAndSwap(false, true) {
		return
	}
	s.send(Event{Type: EventBudgetExceeded, Payload: map[string]any{
		"message": "Session budget limit reached. AI paused.",
	}})
	s.logger.Warn().
		Float64("total_cost_usd", s.ledger.TotalCostUSD()).
		Msg("Session budget exhausted")
}

func (s *Session) sendCostUpdate() {
	s.send(Event{Type: EventCostUpdate, Payload: s.ledger.Snapshot()})
}

func (s *Session) send(event Event) {
	if s.emit == nil {
		return
	}
	if err := s.emit(event); err != nil {
		s.logger.Warn().Err(err).Str("event_type", event.Type).Msg("Failed to emit event")
	}
}

// noopPersist is the default durability sink. It only logs.
type noopPersist struct{}

func (noopPersist) Persist(kind string, _ any) {
	logger := observability.GetLogger()
	logger.Debug().Str("kind", kind).Msg("Persist skipped, no sink configured")
}
