package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/meetmind/insight-engine/internal/config"
	"github.com/meetmind/insight-engine/internal/llm"
	"github.com/meetmind/insight-engine/internal/observability"
	"github.com/meetmind/insight-engine/internal/resilience"
	"github.com/meetmind/insight-engine/internal/server"
	"github.com/meetmind/insight-engine/internal/session"
	"github.com/meetmind/insight-engine/internal/stt"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("stt_base_url", cfg.STTBaseURL).
		Str("llm_base_url", cfg.LLMBaseURL).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Insight Engine starting")

	// STT client with its own circuit breaker
	sttBreaker := resilience.NewCircuitBreaker("stt",
		cfg.CircuitBreakerMaxFailures,
		time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second)
	transcriber := stt.NewClient(cfg.STTBaseURL, cfg.STTModel,
		time.Duration(cfg.STTTimeout)*time.Second,
		stt.WithCircuitBreaker(sttBreaker),
		stt.WithLanguage(cfg.Language))

	// LLM client. Without an API key the engine runs transcription-only.
	var invoker llm.Invoker
	if cfg.LLMAPIKey != "" {
		llmBreaker := resilience.NewCircuitBreaker("llm",
			cfg.CircuitBreakerMaxFailures,
			time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second)
		retryCfg := &resilience.RetryConfig{
			MaxAttempts:       cfg.RetryMaxAttempts,
			InitialBackoff:    time.Duration(cfg.RetryInitialBackoff) * time.Millisecond,
			MaxBackoff:        5 * time.Second,
			BackoffMultiplier: 2.0,
			Jitter:            true,
		}
		invoker = llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey,
			time.Duration(cfg.LLMTimeout)*time.Second,
			llm.WithCircuitBreaker(llmBreaker),
			llm.WithRetry(retryCfg))
	} else {
		logger.Warn().Msg("LLM_API_KEY not set, running in transcription-only mode")
	}

	models := llm.RoleModels{
		Screening: cfg.ScreeningModel,
		Analysis:  cfg.AnalysisModel,
		Copilot:   cfg.CopilotModel,
		Summary:   cfg.SummaryModel,
	}

	manager := session.NewManager(cfg, transcriber, invoker, models, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", server.HandleMeetingWS(manager))
	mux.HandleFunc("/health", observability.HealthCheckHandler())

	mux.HandleFunc("/ready", observability.ReadinessHandler(map[string]observability.HealthCheckFunc{
		"stt": func(ctx context.Context) (bool, error) {
			if sttBreaker.GetState() == resilience.StateOpen {
				return false, fmt.Errorf("stt circuit breaker open")
			}
			return true, nil
		},
		"llm": func(ctx context.Context) (bool, error) {
			// Transcription-only mode is a valid degraded state
			return true, nil
		},
	}))

	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", fmt.Sprintf("ws://localhost:%s/ws", cfg.Port)).
			Msg("Server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shut down
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Flush and close every live session before exit
	manager.Shutdown()

	logger.Info().Msg("Server stopped")
}
