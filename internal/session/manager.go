package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/meetmind/insight-engine/internal/audio"
	"github.com/meetmind/insight-engine/internal/cache"
	"github.com/meetmind/insight-engine/internal/config"
	"github.com/meetmind/insight-engine/internal/cost"
	"github.com/meetmind/insight-engine/internal/llm"
	"github.com/meetmind/insight-engine/internal/observability"
	"github.com/meetmind/insight-engine/internal/orchestrator"
	"github.com/meetmind/insight-engine/internal/transcript"
)

// Manager is the per-process session registry. It is built once at
// startup by the composition root and handed to transports by
// reference; there is no package-level state.
type Manager struct {
	cfg         *config.Config
	transcriber audio.Transcriber
	invoker     llm.Invoker
	models      llm.RoleModels
	persist     PersistSink
	logger      zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(cfg *config.Config, transcriber audio.Transcriber, invoker llm.Invoker, models llm.RoleModels, persist PersistSink) *Manager {
	return &Manager{
		cfg:         cfg,
		transcriber: transcriber,
		invoker:     invoker,
		models:      models,
		persist:     persist,
		logger:      observability.GetLogger().With().Str("component", "session_manager").Logger(),
		sessions:    make(map[string]*Session),
	}
}

// Create builds a fresh session with its own segmenter, accumulator,
// ledger, cache and orchestrator, registers it and starts it.
func (m *Manager) Create(emit EmitFunc) (*Session, error) {
	id := uuid.New().String()
	logger := observability.WithSession(id)

	ledger, err := cost.NewLedger(m.cfg.SessionBudgetUSD, logger)
	if err != nil {
		return nil, err
	}

	segCfg := audio.SegmenterConfig{
		SampleRate:        m.cfg.SampleRate,
		PollInterval:      time.Duration(m.cfg.PollIntervalMs) * time.Millisecond,
		MinAudioSeconds:   m.cfg.MinAudioSeconds,
		SilenceThreshold:  m.cfg.SilenceThreshold,
		SilenceDuration:   m.cfg.SilenceDuration,
		MaxBufferSeconds:  m.cfg.MaxBufferSeconds,
		MaxSegmentSeconds: m.cfg.MaxSegmentSeconds,
	}

	responseCache := cache.New(m.cfg.CacheMaxEntries, time.Duration(m.cfg.CacheTTLSeconds*float64(time.Second)), logger)
	orch := orchestrator.New(m.invoker, m.models, ledger, responseCache, logger)

	s := NewSession(id, Deps{
		Segmenter:   audio.NewSegmenter(segCfg, m.transcriber, logger),
		Accumulator: transcript.NewAccumulator(time.Duration(m.cfg.ScreeningIntervalSeconds)*time.Second, logger),
		Ledger:      ledger,
		Orch:        orch,
		Emit:        emit,
		Persist:     m.persist,
	})

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	s.Start()
	m.logger.Info().Str("session_id", id).Int("active", m.Count()).Msg("Session created")
	return s, nil
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Remove closes the session and drops it from the registry.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		s.Close()
		m.logger.Info().Str("session_id", id).Int("active", m.Count()).Msg("Session removed")
	}
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Shutdown closes every active session. Used on process teardown.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	m.logger.Info().Int("closed", len(sessions)).Msg("All sessions shut down")
}
