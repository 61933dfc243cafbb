// Package llm defines the model client contract and its implementations: a
// remote OpenRouter-backed client and deterministic local stand-ins that keep
// the assistant answering when no network or key is available.
package llm

import (
	"context"

	"github.com/leeway/agentlee/internal/models"
)

// Status describes a client's readiness.
type Status string

const (
	StatusUninitialized Status = "uninitialized"
	StatusReady         Status = "ready"
	StatusFailed        Status = "failed"
)

// Client is a single conversational model. Initialize is idempotent; calling
// it on an already-ready client is a no-op. Chat never blocks past the
// context deadline.
type Client interface {
	// ID returns the stable model identifier used in responses and errors.
	ID() string
	// Initialize prepares the client. A failed client stays usable for
	// Status reporting but Chat returns an error.
	Initialize(ctx context.Context) error
	// Chat sends the message with prior turns and returns the reply.
	Chat(ctx context.Context, message string, history []models.ChatTurn) (*models.ModelResponse, error)
	// Status reports readiness without side effects.
	Status() Status
}
