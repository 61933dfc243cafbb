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

// orpheusSampleRate is the PCM rate Orpheus checkpoints emit.
const orpheusSampleRate = 24000

// OrpheusProvider synthesizes speech through a self-hosted Orpheus TTS
// endpoint. The bearer token is optional since local deployments often run
// unauthenticated.
type OrpheusProvider struct {
	cfg    config.OrpheusSpeechConfig
	client *http.Client
}

func NewOrpheus(cfg config.OrpheusSpeechConfig) *OrpheusProvider {
	return &OrpheusProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

func (p *OrpheusProvider) Name() string { return EngineOrpheus }

func (p *OrpheusProvider) Available() bool { return p.cfg.Endpoint != "" }

func (p *OrpheusProvider) MaxChunk() int {
	if p.cfg.MaxChunk > 0 {
		return p.cfg.MaxChunk
	}
	return 1500
}

type orpheusRequest struct {
	Model string `json:"model"`
	Voice string `json:"voice"`
	Input string `json:"input"`
}

type orpheusResponse struct {
	Audio string `json:"audio"`
}

func (p *OrpheusProvider) Synthesize(ctx context.Context, text string) ([]byte, Format, int, error) {
	if !p.Available() {
		return nil, "", 0, fmt.Errorf("orpheus: not configured")
	}
	body, err := json.Marshal(orpheusRequest{
		Model: p.cfg.Model,
		Voice: p.cfg.Voice,
		Input: text,
	})
	if err != nil {
		return nil, "", 0, fmt.Errorf("orpheus: marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, "", 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, "", 0, fmt.Errorf("orpheus: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, "", 0, fmt.Errorf("orpheus: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var parsed orpheusResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, "", 0, fmt.Errorf("orpheus: decode: %w", err)
	}
	pcm, err := base64.StdEncoding.DecodeString(parsed.Audio)
	if err != nil {
		return nil, "", 0, fmt.Errorf("orpheus: decode audio: %w", err)
	}
	if len(pcm) == 0 {
		return nil, "", 0, fmt.Errorf("orpheus: empty audio")
	}
	return pcm, FormatPCM16, orpheusSampleRate, nil
}
