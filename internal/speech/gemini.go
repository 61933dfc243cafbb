package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/leeway/agentlee/internal/config"
)

// geminiSampleRate is the PCM rate Gemini TTS emits.
const geminiSampleRate = 24000

// GeminiProvider synthesizes speech through the Gemini generateContent API
// with an audio response modality. Audio comes back as base64 16-bit PCM.
type GeminiProvider struct {
	cfg    config.GeminiSpeechConfig
	client *http.Client
	// endpoint overrides the public API URL in tests.
	endpoint string
}

func NewGemini(cfg config.GeminiSpeechConfig) *GeminiProvider {
	return &GeminiProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *GeminiProvider) Name() string { return EngineGemini }

func (p *GeminiProvider) Available() bool { return p.cfg.APIKey != "" || p.endpoint != "" }

func (p *GeminiProvider) MaxChunk() int {
	if p.cfg.MaxChunk > 0 {
		return p.cfg.MaxChunk
	}
	return 2000
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiVoiceConfig struct {
	PrebuiltVoiceConfig struct {
		VoiceName string `json:"voiceName"`
	} `json:"prebuiltVoiceConfig"`
}

type geminiGenerationConfig struct {
	ResponseModalities []string `json:"responseModalities"`
	SpeechConfig       struct {
		VoiceConfig geminiVoiceConfig `json:"voiceConfig"`
	} `json:"speechConfig"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				InlineData struct {
					Data string `json:"data"`
				} `json:"inlineData"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (p *GeminiProvider) Synthesize(ctx context.Context, text string) ([]byte, Format, int, error) {
	if !p.Available() {
		return nil, "", 0, fmt.Errorf("gemini: not configured")
	}
	url := p.endpoint
	if url == "" {
		url = fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent", p.cfg.Model)
	}

	var reqBody geminiRequest
	reqBody.Contents = []geminiContent{{Parts: []geminiPart{{Text: text}}}}
	reqBody.GenerationConfig.ResponseModalities = []string{"AUDIO"}
	reqBody.GenerationConfig.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName = p.cfg.Voice

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, "", 0, fmt.Errorf("gemini: marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, "", 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", p.cfg.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, "", 0, fmt.Errorf("gemini: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, "", 0, fmt.Errorf("gemini: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var parsed geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, "", 0, fmt.Errorf("gemini: decode: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return nil, "", 0, fmt.Errorf("gemini: no audio in response")
	}
	pcm, err := base64.StdEncoding.DecodeString(parsed.Candidates[0].Content.Parts[0].InlineData.Data)
	if err != nil {
		return nil, "", 0, fmt.Errorf("gemini: decode audio: %w", err)
	}
	if len(pcm) == 0 {
		return nil, "", 0, fmt.Errorf("gemini: empty audio")
	}
	return pcm, FormatPCM16, geminiSampleRate, nil
}
