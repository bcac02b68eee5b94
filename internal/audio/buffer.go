package audio

import (
	"sync"
)

// SampleBuffer is a thread-safe, append-only buffer of normalized PCM
// samples owned by one Segmenter. Writers never block on transcription:
// the background loop snapshots the buffer instead of holding the lock.
type SampleBuffer struct {
	mu      sync.Mutex
	samples []float32
}

// NewSampleBuffer creates an empty sample buffer
func NewSampleBuffer() *SampleBuffer {
	return &SampleBuffer{}
}

// Append adds decoded samples to the buffer
func (b *SampleBuffer) Append(samples []float32) {
	if len(samples) == 0 {
		return
	}
	b.mu.Lock()
	b.samples = append(b.samples, samples...)
	b.mu.Unlock()
}

// Snapshot returns a copy of all buffered samples
func (b *SampleBuffer) Snapshot() []float32 {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.samples) == 0 {
		return nil
	}
	out := make([]float32, len(b.samples))
	copy(out, b.samples)
	return out
}

// Len returns the number of buffered samples
func (b *SampleBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.samples)
}

// Seconds returns the buffered audio duration at the given sample rate
func (b *SampleBuffer) Seconds(sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return float64(b.Len()) / float64(sampleRate)
}

// Reset clears the buffer after a segment is finalized
func (b *SampleBuffer) Reset() {
	b.mu.Lock()
	b.samples = b.samples[:0]
	b.mu.Unlock()
}
