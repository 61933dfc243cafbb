package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leeway/agentlee/internal/config"
	"github.com/leeway/agentlee/internal/models"
)

func newTestClient(t *testing.T, url string, maxRetries int) *OpenRouterClient {
	t.Helper()
	c := NewOpenRouter(config.RemoteModelConfig{
		BaseURL:    url,
		APIKey:     "test-key",
		Model:      "test/model",
		MaxRetries: maxRetries,
	}, withSleep(func(time.Duration) {}))
	if err := c.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}
	return c
}

func completion(text string) []byte {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"content": text}},
		},
	})
	return b
}

func TestOpenRouter_Chat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "test/model" {
			t.Errorf("model = %q", req.Model)
		}
		if n := len(req.Messages); n != 2 {
			t.Errorf("got %d messages, want history + user", n)
		}
		w.Write(completion("the schedule slips two weeks"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 3)
	resp, err := c.Chat(context.Background(), "what changed?", []models.ChatTurn{
		{Role: "assistant", Content: "prior answer"},
	})
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}
	if resp.Text != "the schedule slips two weeks" {
		t.Errorf("text = %q", resp.Text)
	}
	if resp.Origin != models.OriginRemote {
		t.Errorf("origin = %q, want remote", resp.Origin)
	}
	if resp.TokenCount != 5 {
		t.Errorf("token count = %d, want 5", resp.TokenCount)
	}
}

func TestOpenRouter_RetriesOn429ThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write(completion("recovered"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 3)
	resp, err := c.Chat(context.Background(), "q", nil)
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}
	if resp.Text != "recovered" || resp.Origin != models.OriginRemote {
		t.Errorf("got %q origin %q", resp.Text, resp.Origin)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("server called %d times, want 3", got)
	}
}

func TestOpenRouter_ExhaustedRetriesFallBack(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 2)
	resp, err := c.Chat(context.Background(), "budget question", nil)
	if err != nil {
		t.Fatalf("Chat() must not error on exhaustion, got: %v", err)
	}
	if resp.Origin != models.OriginFallback {
		t.Errorf("origin = %q, want fallback", resp.Origin)
	}
	if !strings.Contains(resp.Text, "fallback answer") {
		t.Errorf("fallback text should carry the filter marker, got %q", resp.Text)
	}
	if got := calls.Load(); got != 3 { // initial attempt + 2 retries
		t.Errorf("server called %d times, want 3", got)
	}
}

func TestOpenRouter_NonRetryableStatusFallsBackImmediately(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 3)
	resp, err := c.Chat(context.Background(), "q", nil)
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}
	if resp.Origin != models.OriginFallback {
		t.Errorf("origin = %q, want fallback", resp.Origin)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server called %d times, want 1 (401 is not retryable)", got)
	}
}

func TestOpenRouter_InitializeRequiresKey(t *testing.T) {
	c := NewOpenRouter(config.RemoteModelConfig{BaseURL: "http://x", Model: "m"})
	if err := c.Initialize(context.Background()); err == nil {
		t.Fatal("Initialize() should fail without an API key")
	}
	if c.Status() != StatusFailed {
		t.Errorf("status = %q, want failed", c.Status())
	}
	if _, err := c.Chat(context.Background(), "q", nil); err == nil {
		t.Error("Chat() on a failed client should error")
	}
}

func TestTemplateClient_Deterministic(t *testing.T) {
	c := NewTemplate("llama")
	if c.Status() != StatusUninitialized {
		t.Fatalf("status = %q", c.Status())
	}
	if _, err := c.Chat(context.Background(), "q", nil); err == nil {
		t.Fatal("Chat() before Initialize should error")
	}
	if err := c.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}
	a, err := c.Chat(context.Background(), "same question", nil)
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}
	b, _ := c.Chat(context.Background(), "same question", nil)
	if a.Text != b.Text {
		t.Errorf("stand-in output not deterministic:\n%q\n%q", a.Text, b.Text)
	}
	if a.ModelID != "llama" || a.Origin != models.OriginLocal {
		t.Errorf("ModelID=%q Origin=%q", a.ModelID, a.Origin)
	}
	// Stand-ins must stay eligible for best-answer selection, unlike the
	// boilerplate-marked text the remote client degrades to.
	lower := strings.ToLower(a.Text)
	for _, marker := range []string{"fallback", "not available", "error"} {
		if strings.Contains(lower, marker) {
			t.Errorf("stand-in reply carries filter marker %q:\n%s", marker, a.Text)
		}
	}
	if len(strings.Fields(a.Text)) < 8 {
		t.Errorf("stand-in reply too short to be selectable:\n%s", a.Text)
	}
}
