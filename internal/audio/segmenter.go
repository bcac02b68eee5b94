package audio

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/meetmind/insight-engine/internal/observability"
)

// Transcriber is the speech-to-text capability consumed by the Segmenter.
// It is called repeatedly on the full growing buffer and returns the best
// current text for the whole buffer. Calls within one Segmenter are serial.
type Transcriber interface {
	Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error)
}

// Segment is a contiguous span of transcribed speech. Partial segments are
// superseded by later ones for the same utterance; a final segment is
// immutable once emitted.
type Segment struct {
	Text      string
	IsPartial bool
	Timestamp time.Time
}

// SegmenterConfig holds tuning parameters for the segmentation state machine
type SegmenterConfig struct {
	SampleRate        int
	PollInterval      time.Duration
	MinAudioSeconds   float64 // Skip transcription below this much audio
	SilenceThreshold  float64 // RMS threshold for silence
	SilenceDuration   float64 // Seconds of trailing silence for a natural break
	MaxBufferSeconds  float64 // Hard overflow, always finalizes
	MaxSegmentSeconds float64 // Forced finalization at a sentence boundary
}

// DefaultSegmenterConfig returns production defaults (16kHz mono)
func DefaultSegmenterConfig() SegmenterConfig {
	return SegmenterConfig{
		SampleRate:        16000,
		PollInterval:      500 * time.Millisecond,
		MinAudioSeconds:   0.3,
		SilenceThreshold:  0.01,
		SilenceDuration:   0.5,
		MaxBufferSeconds:  30.0,
		MaxSegmentSeconds: 15.0,
	}
}

// Segmenter turns an irregularly-chunked PCM stream into partial/final
// transcript segments. Feed never blocks on inference: transcription runs
// on a dedicated background goroutine that polls the buffer, and segments
// are handed off through a bounded channel.
type Segmenter struct {
	cfg         SegmenterConfig
	transcriber Transcriber
	logger      zerolog.Logger

	buffer *SampleBuffer
	out    chan Segment

	mu             sync.Mutex
	lastText       string
	emittedPartial string
	segmentStart   time.Time
	running        bool

	done chan struct{}
	wg   sync.WaitGroup
}

// NewSegmenter creates a segmenter for one session
func NewSegmenter(cfg SegmenterConfig, transcriber Transcriber, logger zerolog.Logger) *Segmenter {
	return &Segmenter{
		cfg:         cfg,
		transcriber: transcriber,
		logger:      logger,
		buffer:      NewSampleBuffer(),
		out:         make(chan Segment, 32),
		done:        make(chan struct{}),
	}
}

// Segments returns the channel of emitted segments. The channel is closed
// after Stop has flushed the remaining audio.
func (s *Segmenter) Segments() <-chan Segment {
	return s.out
}

// Feed accepts a raw PCM chunk (Int16 or Float32, auto-detected). It only
// synchronizes on the sample buffer and returns immediately; invalid byte
// lengths are dropped silently.
func (s *Segmenter) Feed(raw []byte) {
	samples := DecodePCM(raw)
	if samples == nil {
		return
	}
	s.buffer.Append(samples)
	observability.RecordAudioBytes(len(raw))
}

// Start launches the background polling loop
func (s *Segmenter) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.segmentStart = time.Now()
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop()
	s.logger.Info().
		Dur("poll_interval", s.cfg.PollInterval).
		Msg("Segmenter started")
}

// Stop joins the background loop, performs one final forced flush so no
// buffered audio is lost, then closes the segment channel.
func (s *Segmenter) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.done)
	s.wg.Wait()

	s.flush()
	close(s.out)
	s.logger.Info().Msg("Segmenter stopped")
}

func (s *Segmenter) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick()
		case <-s.done:
			return
		}
	}
}

// tick runs one segmentation cycle: transcribe the whole buffer, emit a
// partial if the text moved, and finalize when a break condition holds.
// Finalization priority: buffer overflow, then silence at a sentence
// boundary, then segment age at a sentence boundary, then extended silence
// even mid-sentence.
func (s *Segmenter) tick() {
	samples := s.buffer.Snapshot()
	audioSeconds := float64(len(samples)) / float64(s.cfg.SampleRate)
	if audioSeconds < s.cfg.MinAudioSeconds {
		return
	}

	text, ok := s.transcribe(samples)
	if !ok {
		// Transient STT failure: audio stays buffered for the next tick,
		// bounded by the overflow rule below. On overflow the last known
		// text still becomes a final segment so earlier transcription
		// survives the outage.
		if audioSeconds > s.cfg.MaxBufferSeconds {
			s.finalize(Segment{Text: s.lastKnownText(), Timestamp: time.Now()})
		}
		return
	}

	tail := int(s.cfg.SilenceDuration * float64(s.cfg.SampleRate))
	silence := TailIsSilence(samples, tail, s.cfg.SilenceThreshold)
	extendedSilence := TailIsSilence(samples, 3*tail, s.cfg.SilenceThreshold)

	s.mu.Lock()
	segmentAge := time.Since(s.segmentStart).Seconds()
	if text != "" {
		s.lastText = text
	}
	current := s.lastText
	s.mu.Unlock()

	atBoundary := endsAtSentenceBoundary(current)

	var finalize bool
	switch {
	case audioSeconds > s.cfg.MaxBufferSeconds:
		finalize = true
	case silence && atBoundary:
		finalize = true
	case segmentAge > s.cfg.MaxSegmentSeconds && atBoundary:
		finalize = true
	case extendedSilence:
		// Safety break: persistent silence even without clean punctuation.
		finalize = true
	}

	if finalize {
		s.finalize(Segment{Text: current, IsPartial: false, Timestamp: time.Now()})
		return
	}

	if text != "" {
		s.emitPartial(Segment{Text: text, IsPartial: true, Timestamp: time.Now()})
	}
}

// transcribe invokes the STT capability; errors are absorbed so the loop
// continues on the next tick. Request metrics are the STT client's concern.
func (s *Segmenter) transcribe(samples []float32) (string, bool) {
	text, err := s.transcriber.Transcribe(context.Background(), samples, s.cfg.SampleRate)
	if err != nil {
		s.logger.Error().Err(err).
			Int("samples", len(samples)).
			Msg("Transcription failed")
		observability.RecordError("transcribe_error", "segmenter")
		return "", false
	}
	return strings.TrimSpace(text), true
}

// emitPartial pushes a partial segment without ever blocking the loop.
// Partials are superseded by later segments, so dropping one under
// backpressure is harmless.
func (s *Segmenter) emitPartial(seg Segment) {
	s.mu.Lock()
	changed := seg.Text != "" && seg.Text != s.emittedPartial
	if changed {
		s.emittedPartial = seg.Text
	}
	s.mu.Unlock()
	if !changed {
		return
	}

	select {
	case s.out <- seg:
		observability.RecordSegment(true)
	default:
		s.logger.Warn().Msg("Segment channel full, dropping partial")
	}
}

// finalize emits a final segment (if there is any text), clears the
// buffer, and resets the segmentation state.
func (s *Segmenter) finalize(seg Segment) {
	if seg.Text != "" {
		s.out <- seg
		observability.RecordSegment(false)
		s.logger.Debug().
			Int("text_length", len(seg.Text)).
			Msg("Segment finalized")
	}

	s.buffer.Reset()
	s.mu.Lock()
	s.lastText = ""
	s.emittedPartial = ""
	s.segmentStart = time.Now()
	s.mu.Unlock()
}

// flush runs one last transcription over whatever is buffered and emits it
// as a final segment. Called on Stop only.
func (s *Segmenter) flush() {
	samples := s.buffer.Snapshot()
	audioSeconds := float64(len(samples)) / float64(s.cfg.SampleRate)

	text := s.lastKnownText()
	if audioSeconds >= s.cfg.MinAudioSeconds {
		if fresh, ok := s.transcribe(samples); ok && fresh != "" {
			text = fresh
		}
	}

	s.finalize(Segment{Text: text, IsPartial: false, Timestamp: time.Now()})
}

func (s *Segmenter) lastKnownText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastText
}

// endsAtSentenceBoundary reports whether the text ends with sentence-final
// punctuation. Locale-covering, no language-specific grammar.
func endsAtSentenceBoundary(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	runes := []rune(trimmed)
	switch runes[len(runes)-1] {
	case '.', '?', '!', '…':
		return true
	}
	return false
}
