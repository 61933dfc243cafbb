package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/leeway/agentlee/internal/models"
	"github.com/leeway/agentlee/internal/prefs"
	"github.com/leeway/agentlee/internal/speech"
)

type askRequest struct {
	Question string            `json:"question"`
	History  []models.ChatTurn `json:"history,omitempty"`
	Context  string            `json:"context,omitempty"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		s.respondError(w, http.StatusBadRequest, "question is required")
		return
	}
	requestID := uuid.NewString()
	s.logger.Debug("ask request",
		zap.String("request_id", requestID),
		zap.String("question", req.Question))
	result := s.orchestrator.AskAll(r.Context(), req.Question, req.History, req.Context)
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"request_id": requestID,
		"result":     result,
	})
}

type explainRequest struct {
	Title string `json:"title"`
	Data  string `json:"data"`
}

func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	var req explainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Data) == "" {
		s.respondError(w, http.StatusBadRequest, "data is required")
		return
	}
	requestID := uuid.NewString()
	s.logger.Debug("explain request",
		zap.String("request_id", requestID),
		zap.String("title", req.Title))
	result := s.orchestrator.ExplainChart(r.Context(), req.Title, req.Data)
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"request_id": requestID,
		"result":     result,
	})
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	limit := req.Limit
	if limit <= 0 {
		limit = s.config.Search.DefaultLimit
	}
	if limit > s.config.Search.MaxLimit {
		limit = s.config.Search.MaxLimit
	}
	hits := s.index.Get().Search(req.Query, limit)
	if hits == nil {
		hits = []models.SearchHit{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"hits":  hits,
		"count": len(hits),
	})
}

type speakRequest struct {
	Text   string `json:"text"`
	Engine string `json:"engine,omitempty"`
}

func (s *Server) handleSpeak(w http.ResponseWriter, r *http.Request) {
	var req speakRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		s.respondError(w, http.StatusBadRequest, "text is required")
		return
	}
	granted, err := s.prefs.VoiceConsent(r.Context())
	if err != nil {
		s.logger.Error("consent lookup failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !granted {
		s.respondError(w, http.StatusForbidden, "voice consent not granted")
		return
	}
	if req.Engine != "" {
		if err := s.setEngine(w, req.Engine); err != nil {
			return
		}
	}
	if err := s.speaker.Speak(req.Text); err != nil {
		s.logger.Error("speak failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusAccepted, map[string]string{
		"status": "speaking",
		"engine": s.speaker.Engine(),
	})
}

func (s *Server) handleSpeakStop(w http.ResponseWriter, r *http.Request) {
	s.speaker.Stop()
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (s *Server) handleGetEngine(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.speaker.Status())
}

type engineRequest struct {
	Engine string `json:"engine"`
}

func (s *Server) handleSetEngine(w http.ResponseWriter, r *http.Request) {
	var req engineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.setEngine(w, req.Engine); err != nil {
		return
	}
	if err := s.prefs.Set(r.Context(), prefs.KeyEngine, req.Engine); err != nil {
		s.logger.Warn("failed to persist engine preference", zap.Error(err))
	}
	s.respondJSON(w, http.StatusOK, s.speaker.Status())
}

// setEngine applies an engine switch and writes the error response itself.
// The returned error only signals the caller to stop.
func (s *Server) setEngine(w http.ResponseWriter, engine string) error {
	err := s.speaker.SetEngine(engine)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, speech.ErrEngineLocked):
		s.respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, speech.ErrUnknownEngine):
		s.respondError(w, http.StatusBadRequest, err.Error())
	default:
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
	return err
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"documents": s.index.Get().Len(),
		"models":    s.orchestrator.ClientStatuses(),
		"speech":    s.speaker.Status(),
		"config": map[string]interface{}{
			"search_backend":  s.config.Search.Backend,
			"default_limit":   s.config.Search.DefaultLimit,
			"default_engine":  s.config.Speech.DefaultEngine,
			"engine_lock":     s.config.Speech.EngineLock,
			"fallback":        s.config.Speech.FallbackOnFailure,
			"provider_order":  s.config.Speech.ProviderOrder,
			"asset_files":     len(s.config.Assets.Files),
			"assets_base_url": s.config.Assets.BaseURL,
		},
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetVoice(w http.ResponseWriter, r *http.Request) {
	voice, ok, err := s.prefs.Get(r.Context(), prefs.KeyVoice)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		voice = s.config.Speech.Voice
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"voice": voice})
}

type voiceRequest struct {
	Voice string `json:"voice"`
}

func (s *Server) handleSetVoice(w http.ResponseWriter, r *http.Request) {
	var req voiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Voice == "" {
		s.respondError(w, http.StatusBadRequest, "voice is required")
		return
	}
	if err := s.prefs.Set(r.Context(), prefs.KeyVoice, req.Voice); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"voice": req.Voice})
}

func (s *Server) handleGetConsent(w http.ResponseWriter, r *http.Request) {
	granted, err := s.prefs.VoiceConsent(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]bool{"granted": granted})
}

type consentRequest struct {
	Granted bool `json:"granted"`
}

func (s *Server) handleSetConsent(w http.ResponseWriter, r *http.Request) {
	var req consentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.prefs.SetVoiceConsent(r.Context(), req.Granted); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	// Granting consent is the explicit user action that unlocks local audio.
	if req.Granted {
		s.speaker.Arm()
	} else {
		s.speaker.Stop()
	}
	s.respondJSON(w, http.StatusOK, map[string]bool{"granted": req.Granted})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
