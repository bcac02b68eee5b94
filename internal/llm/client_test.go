package llm

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/meetmind/insight-engine/internal/resilience"
)

func TestClient_InvokeParsesContentAndUsage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Fatalf("unexpected auth header: %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"{\"relevant\": true}"}}],"usage":{"prompt_tokens":42,"completion_tokens":7}}`)
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "test-key", 5*time.Second)
	resp, err := c.Invoke(context.Background(), "claude-3-5-haiku", Request{
		Prompt:       "screen this",
		SystemPrompt: "you are a screener",
		MaxTokens:    256,
		Temperature:  0.1,
	})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if resp.Content != `{"relevant": true}` {
		t.Errorf("unexpected content: %q", resp.Content)
	}
	if resp.InputTokens != 42 || resp.OutputTokens != 7 {
		t.Errorf("unexpected usage: %d/%d", resp.InputTokens, resp.OutputTokens)
	}
	if resp.ModelID != "claude-3-5-haiku" {
		t.Errorf("unexpected model id: %q", resp.ModelID)
	}
}

func TestClient_InvokeUpstreamError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"message":"bad prompt"}}`)
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "test-key", 5*time.Second)
	_, err := c.Invoke(context.Background(), "m", Request{Prompt: "x"})
	if err == nil {
		t.Fatal("Expected error for 400 response")
	}
	upstream, ok := err.(*UpstreamError)
	if !ok {
		t.Fatalf("Expected *UpstreamError, got %T", err)
	}
	if upstream.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", upstream.StatusCode)
	}
}

func TestClient_InvokeRetriesServerErrors(t *testing.T) {
	attempts := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"ok"}}],"usage":{"prompt_tokens":1,"completion_tokens":1}}`)
	}))
	defer ts.Close()

	retryCfg := &resilience.RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
	c := NewClient(ts.URL, "", 5*time.Second, WithRetry(retryCfg))

	resp, err := c.Invoke(context.Background(), "m", Request{Prompt: "x"})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("unexpected content: %q", resp.Content)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestClient_InvokeDoesNotRetryClientErrors(t *testing.T) {
	attempts := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	retryCfg := &resilience.RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
	c := NewClient(ts.URL, "", 5*time.Second, WithRetry(retryCfg))

	if _, err := c.Invoke(context.Background(), "m", Request{Prompt: "x"}); err == nil {
		t.Fatal("Expected error")
	}
	if attempts != 1 {
		t.Errorf("Expected 1 attempt for a 401, got %d", attempts)
	}
}

func TestClient_CircuitBreakerOpensAfterFailures(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	cb := resilience.NewCircuitBreaker("llm", 2, time.Minute)
	c := NewClient(ts.URL, "", 5*time.Second, WithCircuitBreaker(cb))

	for i := 0; i < 2; i++ {
		if _, err := c.Invoke(context.Background(), "m", Request{Prompt: "x"}); err == nil {
			t.Fatal("Expected error")
		}
	}

	if cb.GetState() != resilience.StateOpen {
		t.Errorf("Expected circuit to be open, got state %d", cb.GetState())
	}
}
