package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/leeway/agentlee/internal/config"
	"github.com/leeway/agentlee/internal/models"
)

const gemmaID = "gemma"

// chatMessage is the OpenAI-compatible wire shape OpenRouter accepts.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// OpenRouterClient talks to an OpenRouter-compatible chat completions
// endpoint. Rate limiting (429) is retried with linear backoff; when every
// attempt fails the client degrades to a local template answer instead of
// surfacing the error, so one flaky provider never silences the ensemble.
type OpenRouterClient struct {
	cfg    config.RemoteModelConfig
	client *http.Client
	logger *zap.Logger
	sleep  func(time.Duration)

	mu     sync.Mutex
	status Status
}

// OpenRouterOption configures an OpenRouterClient.
type OpenRouterOption func(*OpenRouterClient)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) OpenRouterOption {
	return func(c *OpenRouterClient) { c.logger = logger }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) OpenRouterOption {
	return func(c *OpenRouterClient) { c.client = hc }
}

// withSleep overrides the backoff sleeper in tests.
func withSleep(fn func(time.Duration)) OpenRouterOption {
	return func(c *OpenRouterClient) { c.sleep = fn }
}

// NewOpenRouter creates the remote client from configuration.
func NewOpenRouter(cfg config.RemoteModelConfig, opts ...OpenRouterOption) *OpenRouterClient {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	c := &OpenRouterClient{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: zap.NewNop(),
		sleep:  time.Sleep,
		status: StatusUninitialized,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *OpenRouterClient) ID() string { return gemmaID }

// Initialize validates configuration. No network call is made; the first Chat
// surfaces connectivity problems and falls back locally.
func (c *OpenRouterClient) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status == StatusReady {
		return nil
	}
	if c.cfg.APIKey == "" {
		c.status = StatusFailed
		return fmt.Errorf("%s: no API key configured", gemmaID)
	}
	if c.cfg.BaseURL == "" || c.cfg.Model == "" {
		c.status = StatusFailed
		return fmt.Errorf("%s: base URL and model are required", gemmaID)
	}
	c.status = StatusReady
	return nil
}

func (c *OpenRouterClient) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Chat sends the conversation to the remote model. On 429 it retries up to
// MaxRetries times with linear backoff. On exhaustion or any other failure it
// returns a deterministic fallback response rather than an error.
func (c *OpenRouterClient) Chat(ctx context.Context, message string, history []models.ChatTurn) (*models.ModelResponse, error) {
	if c.Status() != StatusReady {
		return nil, fmt.Errorf("%s: client not initialized", gemmaID)
	}

	msgs := make([]chatMessage, 0, len(history)+1)
	for _, t := range history {
		msgs = append(msgs, chatMessage{Role: t.Role, Content: t.Content})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: message})

	body, err := json.Marshal(chatRequest{Model: c.cfg.Model, Messages: msgs})
	if err != nil {
		return nil, fmt.Errorf("%s: marshal request: %w", gemmaID, err)
	}

	maxRetries := c.cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			c.sleep(time.Duration(attempt) * time.Second)
		}
		text, retryable, err := c.post(ctx, body)
		if err == nil {
			return &models.ModelResponse{
				Text:       text,
				ModelID:    gemmaID,
				TokenCount: models.WordCount(text),
				Origin:     models.OriginRemote,
			}, nil
		}
		lastErr = err
		if !retryable {
			break
		}
		c.logger.Warn("remote model rate limited, retrying",
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}

	c.logger.Warn("remote model unavailable, using local fallback", zap.Error(lastErr))
	text := fallbackAnswer(gemmaID, message)
	return &models.ModelResponse{
		Text:       text,
		ModelID:    gemmaID,
		TokenCount: models.WordCount(text),
		Origin:     models.OriginFallback,
	}, nil
}

// post performs one request. retryable is true only for HTTP 429.
func (c *OpenRouterClient) post(ctx context.Context, body []byte) (text string, retryable bool, err error) {
	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if c.cfg.SiteURL != "" {
		req.Header.Set("HTTP-Referer", c.cfg.SiteURL)
	}
	if c.cfg.SiteTitle != "" {
		req.Header.Set("X-Title", c.cfg.SiteTitle)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", true, fmt.Errorf("status 429")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", false, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", false, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return "", false, fmt.Errorf("empty completion")
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), false, nil
}
