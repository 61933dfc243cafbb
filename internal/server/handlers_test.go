package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/leeway/agentlee/internal/config"
	"github.com/leeway/agentlee/internal/ensemble"
	"github.com/leeway/agentlee/internal/evidence"
	"github.com/leeway/agentlee/internal/llm"
	"github.com/leeway/agentlee/internal/prefs"
	"github.com/leeway/agentlee/internal/speech"
)

// okEngine is a speech engine that always succeeds instantly.
type okEngine struct{ name string }

func (e *okEngine) Name() string { return e.name }

func (e *okEngine) Speak(context.Context, string) error { return nil }

// nullSink discards audio.
type nullSink struct{}

func (nullSink) Play(context.Context, []byte, speech.Format, int) error { return nil }

func newTestServer(t *testing.T, mutate func(*config.Config)) (*Server, *prefs.Store) {
	t.Helper()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	if mutate != nil {
		mutate(cfg)
	}

	store, err := prefs.Open(filepath.Join(t.TempDir(), "prefs.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	ix := evidence.NewMemoryIndex()
	ix.AddDocument("costs::row::0", "item: liner amount: 1200")
	ix.AddDocument("sched::row::0", "phase: excavation start: march")
	handle := evidence.NewHandle(ix)

	orch := ensemble.New(
		[]llm.Client{llm.NewTemplate("llama"), llm.NewTemplate("phi3")},
		handle, cfg.Answers)

	speaker := speech.NewSelector(cfg.Speech, []speech.Engine{
		&okEngine{name: speech.EngineAzure},
		&okEngine{name: speech.EngineGemini},
	}, nullSink{})

	return NewServer(orch, handle, speaker, store, cfg, zap.NewNop()), store
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandleAsk(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := doJSON(t, s.Router(), http.MethodPost, "/api/v1/ask",
		map[string]string{"question": "what did the liner cost?"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		RequestID string `json:"request_id"`
		Result    struct {
			Best *struct {
				Text   string `json:"text"`
				Origin string `json:"origin"`
			} `json:"best"`
		} `json:"result"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.RequestID == "" {
		t.Error("missing request_id")
	}
	if resp.Result.Best == nil || resp.Result.Best.Text == "" {
		t.Error("best answer missing")
	}
	// The deterministic stand-ins clear the helpfulness filter.
	if resp.Result.Best.Origin != "local" {
		t.Errorf("origin = %q, want local", resp.Result.Best.Origin)
	}
}

func TestHandleAsk_RequiresQuestion(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := doJSON(t, s.Router(), http.MethodPost, "/api/v1/ask", map[string]string{"question": "  "})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleExplain(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := doJSON(t, s.Router(), http.MethodPost, "/api/v1/explain",
		map[string]string{"title": "Bid Amounts", "data": "acme: 50000"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestHandleSearch(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := doJSON(t, s.Router(), http.MethodPost, "/api/v1/search",
		map[string]interface{}{"query": "excavation", "limit": 5})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Hits  []struct{ DocumentID string } `json:"hits"`
		Count int                           `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 1 {
		t.Errorf("count = %d, want 1", resp.Count)
	}
}

func TestHandleSearch_EmptyQueryReturnsEmptyHits(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := doJSON(t, s.Router(), http.MethodPost, "/api/v1/search",
		map[string]string{"query": ""})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Hits []json.RawMessage `json:"hits"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Hits == nil {
		t.Error("hits must be an empty array, not null")
	}
}

func TestHandleSpeak_ConsentFlow(t *testing.T) {
	s, _ := newTestServer(t, nil)
	r := s.Router()

	rec := doJSON(t, r, http.MethodPost, "/api/v1/speak", map[string]string{"text": "hello"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403 before consent", rec.Code)
	}

	rec = doJSON(t, r, http.MethodPut, "/api/v1/prefs/consent", map[string]bool{"granted": true})
	if rec.Code != http.StatusOK {
		t.Fatalf("consent status = %d", rec.Code)
	}

	rec = doJSON(t, r, http.MethodPost, "/api/v1/speak", map[string]string{"text": "hello"})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202 after consent, body %s", rec.Code, rec.Body.String())
	}
	s.speaker.Stop()
}

func TestHandleSpeak_RequiresText(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := doJSON(t, s.Router(), http.MethodPost, "/api/v1/speak", map[string]string{"text": ""})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleSetEngine_LockConflict(t *testing.T) {
	s, _ := newTestServer(t, func(cfg *config.Config) {
		cfg.Speech.DefaultEngine = speech.EngineAzure
		cfg.Speech.EngineLock = true
	})
	rec := doJSON(t, s.Router(), http.MethodPut, "/api/v1/engine",
		map[string]string{"engine": speech.EngineGemini})
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409 when locked", rec.Code)
	}
}

func TestHandleSetEngine_Unknown(t *testing.T) {
	s, _ := newTestServer(t, func(cfg *config.Config) {
		cfg.Speech.DefaultEngine = speech.EngineAzure
	})
	rec := doJSON(t, s.Router(), http.MethodPut, "/api/v1/engine",
		map[string]string{"engine": "winamp"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleSetEngine_Switch(t *testing.T) {
	s, _ := newTestServer(t, func(cfg *config.Config) {
		cfg.Speech.DefaultEngine = speech.EngineAzure
	})
	rec := doJSON(t, s.Router(), http.MethodPut, "/api/v1/engine",
		map[string]string{"engine": speech.EngineGemini})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if s.speaker.Engine() != speech.EngineGemini {
		t.Errorf("engine = %s after switch", s.speaker.Engine())
	}
}

func TestHandleStatus(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := doJSON(t, s.Router(), http.MethodGet, "/api/v1/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Documents int               `json:"documents"`
		Models    map[string]string `json:"models"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Documents != 2 {
		t.Errorf("documents = %d, want 2", resp.Documents)
	}
	if len(resp.Models) != 2 {
		t.Errorf("models = %v, want llama and phi3", resp.Models)
	}
}

func TestHandleVoicePrefs(t *testing.T) {
	s, _ := newTestServer(t, nil)
	r := s.Router()

	rec := doJSON(t, r, http.MethodPut, "/api/v1/prefs/voice", map[string]string{"voice": "Samantha"})
	if rec.Code != http.StatusOK {
		t.Fatalf("put status = %d", rec.Code)
	}
	rec = doJSON(t, r, http.MethodGet, "/api/v1/prefs/voice", nil)
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["voice"] != "Samantha" {
		t.Errorf("voice = %q", resp["voice"])
	}
}

func TestHandleHealth(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := doJSON(t, s.Router(), http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}
