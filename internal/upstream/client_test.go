package upstream

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"golang.org/x/oauth2"

	"github.com/corvidlabs/vertexpass/internal/anthropicapi"
	"github.com/corvidlabs/vertexpass/internal/apperrors"
	"github.com/corvidlabs/vertexpass/internal/metrics"
)

func testRequest() *anthropicapi.Request {
	return &anthropicapi.Request{
		Model:     "claude-sonnet-4@vertex",
		MaxTokens: 16,
		Messages: []anthropicapi.Message{
			{Role: anthropicapi.RoleUser, Content: []anthropicapi.Block{{Type: "text", Text: "Hi"}}},
		},
	}
}

func okResponse() anthropicapi.Response {
	return anthropicapi.Response{
		ID:         "msg_1",
		Type:       "message",
		Role:       anthropicapi.RoleAssistant,
		Content:    []anthropicapi.Block{{Type: "text", Text: "Hello."}},
		StopReason: anthropicapi.StopReasonEndTurn,
		Usage:      anthropicapi.Usage{InputTokens: 1, OutputTokens: 2},
	}
}

func TestQuotaErrorsRetriedThenSucceed(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q", got)
		}
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"Quota exceeded for model"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(okResponse())
	}))
	defer server.Close()

	m := metrics.New()
	backend, err := NewBearerBackend(server.URL, "claude-sonnet-4", "test-token")
	if err != nil {
		t.Fatalf("NewBearerBackend: %v", err)
	}
	client := NewClient(backend, m, WithRetry(true, 3))

	resp, err := client.Do(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.Content[0].Text != "Hello." {
		t.Errorf("content = %+v", resp.Content)
	}

	s := m.Snapshot()
	if s.RetryAttempts != 2 {
		t.Errorf("RetryAttempts = %d, want 2", s.RetryAttempts)
	}
	if s.QuotaErrors != 2 {
		t.Errorf("QuotaErrors = %d, want 2", s.QuotaErrors)
	}
}

func TestClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad request"}}`))
	}))
	defer server.Close()

	m := metrics.New()
	backend, _ := NewBearerBackend(server.URL, "m", "t")
	client := NewClient(backend, m, WithRetry(true, 3))

	_, err := client.Do(context.Background(), testRequest())
	if err == nil {
		t.Fatal("expected error")
	}
	var appErr *apperrors.Error
	if !apperrors.As(err, &appErr) {
		t.Fatalf("error is not *apperrors.Error: %v", err)
	}
	if appErr.Kind != apperrors.KindUpstream || appErr.Status != http.StatusBadRequest {
		t.Errorf("error = %+v, want upstream 400", appErr)
	}
	if !strings.Contains(appErr.Body, "bad request") {
		t.Errorf("upstream body not carried verbatim: %q", appErr.Body)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("upstream called %d times, want 1 (4xx not retried)", got)
	}
	if m.Snapshot().RetryAttempts != 0 {
		t.Errorf("RetryAttempts = %d, want 0", m.Snapshot().RetryAttempts)
	}
}

func TestRetriesDisabledSurfaceFirstFailure(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	m := metrics.New()
	backend, _ := NewBearerBackend(server.URL, "m", "t")
	client := NewClient(backend, m, WithRetry(false, 3))

	_, err := client.Do(context.Background(), testRequest())
	if err == nil {
		t.Fatal("expected error")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("upstream called %d times, want 1", got)
	}
}

func TestStreamReturnsRawSSEBody(t *testing.T) {
	frames := "event: message_start\ndata: {\"type\":\"message_start\"}\n\nevent: message_stop\ndata: {\"type\":\"message_stop\"}\n\n"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Accept"); got != "text/event-stream" {
			t.Errorf("Accept = %q", got)
		}
		var req anthropicapi.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if !req.Stream {
			t.Error("stream flag not set on upstream request")
		}
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(frames))
	}))
	defer server.Close()

	m := metrics.New()
	backend, _ := NewBearerBackend(server.URL, "m", "t")
	client := NewClient(backend, m)

	body, err := client.Stream(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	defer func() { _ = body.Close() }()

	got := make([]byte, len(frames))
	n, _ := io.ReadFull(body, got)
	if string(got[:n]) != frames {
		t.Errorf("stream body = %q, want raw SSE frames", got[:n])
	}
}

func TestVertexBackendURLPerMode(t *testing.T) {
	backend, err := NewVertexBackend(
		"https://us-east5-aiplatform.googleapis.com/v1/projects/p/locations/us-east5/publishers/anthropic/models/claude-sonnet-4:rawPredict",
		"claude-sonnet-4",
		staticTokenSource{},
	)
	if err != nil {
		t.Fatalf("NewVertexBackend: %v", err)
	}
	if got := backend.URL(false); !strings.HasSuffix(got, "claude-sonnet-4:rawPredict") {
		t.Errorf("non-streaming URL = %q", got)
	}
	if got := backend.URL(true); !strings.HasSuffix(got, "claude-sonnet-4:streamRawPredict") {
		t.Errorf("streaming URL = %q", got)
	}
}

type staticTokenSource struct{}

func (staticTokenSource) Token() (*oauth2.Token, error) {
	return &oauth2.Token{AccessToken: "static"}, nil
}
