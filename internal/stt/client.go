package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/meetmind/insight-engine/internal/observability"
	"github.com/meetmind/insight-engine/internal/resilience"
)

// Client transcribes audio through an OpenAI-compatible transcription
// endpoint. It satisfies the segmenter's Transcriber contract: each call
// carries the full buffered utterance and returns the full text.
type Client struct {
	baseURL        string
	model          string
	language       string
	httpClient     *http.Client
	circuitBreaker *resilience.CircuitBreaker
	logger         zerolog.Logger
}

// UpstreamError reports a non-200 response from the transcription backend.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("stt request failed with status %d: %s", e.StatusCode, e.Body)
}

type Option func(*Client)

func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *Client) {
		c.circuitBreaker = cb
	}
}

func WithLanguage(language string) Option {
	return func(c *Client) {
		c.language = language
	}
}

func NewClient(baseURL, model string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: observability.GetLogger().With().Str("component", "stt_client").Logger(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

// Transcribe uploads the samples as a WAV file and returns the recognized
// text. An empty string with a nil error means the backend heard nothing.
func (c *Client) Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	if len(samples) == 0 {
		return "", nil
	}

	started := time.Now()
	var text string
	call := func() error {
		var err error
		text, err = c.doTranscribe(ctx, samples, sampleRate)
		return err
	}

	var err error
	if c.circuitBreaker != nil {
		err = c.circuitBreaker.Call(call)
	} else {
		err = call()
	}

	observability.RecordSTT(err == nil, time.Since(started).Seconds())
	if err != nil {
		c.logger.Warn().
			Err(err).
			Int("samples", len(samples)).
			Msg("Transcription failed")
		return "", err
	}
	return text, nil
}

func (c *Client) doTranscribe(ctx context.Context, samples []float32, sampleRate int) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if err := writer.WriteField("model", c.model); err != nil {
		return "", err
	}
	if err := writer.WriteField("response_format", "json"); err != nil {
		return "", err
	}
	if c.language != "" {
		if err := writer.WriteField("language", c.language); err != nil {
			return "", err
		}
	}
	part, err := writer.CreateFormFile("file", "segment.wav")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(EncodeWAV(samples, sampleRate)); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	url := c.baseURL + "/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body.Bytes()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		return "", &UpstreamError{StatusCode: resp.StatusCode, Body: truncateBody(string(respBody))}
	}

	var parsed transcriptionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode transcription response: %w", err)
	}
	return strings.TrimSpace(parsed.Text), nil
}

func truncateBody(s string) string {
	const max = 256
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
