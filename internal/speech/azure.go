package speech

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/leeway/agentlee/internal/config"
)

// AzureProvider synthesizes speech through the Azure Cognitive Services TTS
// REST endpoint. The response is MP3.
type AzureProvider struct {
	cfg    config.AzureSpeechConfig
	client *http.Client
	// endpoint overrides the regional URL in tests.
	endpoint string
}

func NewAzure(cfg config.AzureSpeechConfig) *AzureProvider {
	return &AzureProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *AzureProvider) Name() string { return EngineAzure }

// Available reports whether the provider is configured well enough to try.
func (p *AzureProvider) Available() bool {
	return p.cfg.Key != "" && (p.cfg.Region != "" || p.endpoint != "")
}

func (p *AzureProvider) MaxChunk() int {
	if p.cfg.MaxChunk > 0 {
		return p.cfg.MaxChunk
	}
	return 2800
}

func (p *AzureProvider) Synthesize(ctx context.Context, text string) ([]byte, Format, int, error) {
	if !p.Available() {
		return nil, "", 0, fmt.Errorf("azure: not configured")
	}
	url := p.endpoint
	if url == "" {
		url = fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", p.cfg.Region)
	}

	ssml := buildSSML(text, p.cfg.Voice, p.cfg.Style)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(ssml))
	if err != nil {
		return nil, "", 0, err
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", p.cfg.Key)
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", "audio-24khz-48kbitrate-mono-mp3")
	req.Header.Set("User-Agent", "agentlee")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, "", 0, fmt.Errorf("azure: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, "", 0, fmt.Errorf("azure: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", 0, fmt.Errorf("azure: read body: %w", err)
	}
	if len(data) == 0 {
		return nil, "", 0, fmt.Errorf("azure: empty audio")
	}
	return data, FormatMP3, 0, nil
}

// buildSSML wraps text in the express-as SSML envelope Azure expects. Text
// is XML-escaped; the style is dropped when it is the neutral default.
func buildSSML(text, voice, style string) string {
	esc := xmlEscape(text)
	inner := esc
	if style != "" && style != "general" {
		inner = fmt.Sprintf(`<mstts:express-as style=%q>%s</mstts:express-as>`, style, esc)
	}
	return fmt.Sprintf(
		`<speak version="1.0" xmlns="http://www.w3.org/2001/10/synthesis" xmlns:mstts="https://www.w3.org/2001/mstts" xml:lang="en-US"><voice name=%q>%s</voice></speak>`,
		voice, inner)
}

func xmlEscape(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
	)
	return r.Replace(s)
}
