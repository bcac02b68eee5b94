package stt

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// sttRequestCount reads the request counter for one status label from the
// default registry
func sttRequestCount(t *testing.T, status string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, family := range families {
		if family.GetName() != "insight_engine_stt_requests_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "status" && label.GetValue() == status {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestClient_TranscribeUploadsWAV(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("failed to parse multipart form: %v", err)
		}
		if got := r.FormValue("model"); got != "whisper-1" {
			t.Errorf("Expected model whisper-1, got %q", got)
		}
		if got := r.FormValue("language"); got != "en" {
			t.Errorf("Expected language en, got %q", got)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("missing file part: %v", err)
		}
		defer file.Close()
		if header.Filename != "segment.wav" {
			t.Errorf("Expected filename segment.wav, got %q", header.Filename)
		}
		raw, _ := io.ReadAll(file)
		if len(raw) < 44 || string(raw[0:4]) != "RIFF" {
			t.Errorf("Expected a WAV payload, got %d bytes", len(raw))
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"text": "  we agreed to ship on friday.  "}`)
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "whisper-1", 5*time.Second, WithLanguage("en"))
	text, err := c.Transcribe(context.Background(), make([]float32, 1600), 16000)
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if text != "we agreed to ship on friday." {
		t.Errorf("Expected trimmed transcript, got %q", text)
	}
}

func TestClient_TranscribeRecordsOneRequest(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"text": "ok"}`)
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "whisper-1", 5*time.Second)
	before := sttRequestCount(t, "success")

	if _, err := c.Transcribe(context.Background(), make([]float32, 100), 16000); err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}

	if got := sttRequestCount(t, "success") - before; got != 1 {
		t.Errorf("Expected exactly one request recorded, counter moved by %v", got)
	}
}

func TestClient_TranscribeEmptyInput(t *testing.T) {
	c := NewClient("http://localhost:1", "whisper-1", time.Second)
	text, err := c.Transcribe(context.Background(), nil, 16000)
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if text != "" {
		t.Errorf("Expected empty text for empty input, got %q", text)
	}
}

func TestClient_TranscribeUpstreamError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, "model not loaded")
	}))
	defer ts.Close()

	c := NewClient(ts.URL, "whisper-1", 5*time.Second)
	_, err := c.Transcribe(context.Background(), make([]float32, 100), 16000)
	if err == nil {
		t.Fatal("Expected error for 500 response")
	}
	upstream, ok := err.(*UpstreamError)
	if !ok {
		t.Fatalf("Expected *UpstreamError, got %T", err)
	}
	if upstream.StatusCode != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", upstream.StatusCode)
	}
}
