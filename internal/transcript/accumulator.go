package transcript

import (
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Entry is one finalized chunk in the session transcript log
type Entry struct {
	Text      string    `json:"text"`
	Speaker   string    `json:"speaker"`
	Timestamp time.Time `json:"timestamp"`
}

// Accumulator manages real-time transcript accumulation for one session.
// It keeps two views of the same text: the permanent append-only log used
// as LLM context, and a transient unscreened buffer that is drained exactly
// once per screening cycle.
type Accumulator struct {
	mu                sync.Mutex
	entries           []Entry
	unscreened        []string
	screeningInterval time.Duration
	lastExtraction    time.Time
	logger            zerolog.Logger
}

// NewAccumulator creates an accumulator with the given screening interval
func NewAccumulator(screeningInterval time.Duration, logger zerolog.Logger) *Accumulator {
	return &Accumulator{
		screeningInterval: screeningInterval,
		lastExtraction:    time.Now(),
		logger:            logger,
	}
}

// AppendChunk stores a finalized transcript chunk in both the permanent log
// and the unscreened buffer. Blank input is ignored.
func (a *Accumulator) AppendChunk(text, speaker string) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return
	}
	if speaker == "" {
		speaker = "unknown"
	}

	a.mu.Lock()
	a.entries = append(a.entries, Entry{
		Text:      trimmed,
		Speaker:   speaker,
		Timestamp: time.Now(),
	})
	a.unscreened = append(a.unscreened, trimmed)
	total := len(a.entries)
	a.mu.Unlock()

	a.logger.Debug().
		Str("speaker", speaker).
		Int("chunk_length", len(trimmed)).
		Int("total_segments", total).
		Msg("Transcript chunk added")
}

// ShouldScreen reports whether the screening interval has elapsed since the
// last extraction and there is unscreened content.
func (a *Accumulator) ShouldScreen() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return time.Since(a.lastExtraction) >= a.screeningInterval && len(a.unscreened) > 0
}

// ExtractScreeningText drains the unscreened buffer and resets the interval
// clock. This is the single transition from "pending" to "in flight": it
// must be called at most once per screening decision.
func (a *Accumulator) ExtractScreeningText() string {
	a.mu.Lock()
	text := strings.Join(a.unscreened, " ")
	a.unscreened = a.unscreened[:0]
	a.lastExtraction = time.Now()
	a.mu.Unlock()

	if text != "" {
		a.logger.Info().
			Int("text_length", len(text)).
			Msg("Screening text extracted")
	}
	return text
}

// FullTranscript returns the entire permanent log concatenated. It never
// shrinks; used as LLM context.
func (a *Accumulator) FullTranscript() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	parts := make([]string, len(a.entries))
	for i, e := range a.entries {
		parts[i] = e.Text
	}
	return strings.Join(parts, " ")
}

// Entries returns a copy of the permanent log
func (a *Accumulator) Entries() []Entry {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]Entry, len(a.entries))
	copy(out, a.entries)
	return out
}

// SegmentCount returns the number of finalized entries
func (a *Accumulator) SegmentCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}

// BufferSize returns the number of unscreened chunks
func (a *Accumulator) BufferSize() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.unscreened)
}
