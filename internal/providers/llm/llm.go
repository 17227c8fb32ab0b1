package llm

import (
	"context"

	"github.com/phraser/location-server/internal/models"
)

// Provider is the external chat-completion collaborator.
type Provider interface {
	// Complete sends the conversation and returns the assistant's reply
	// text.
	Complete(ctx context.Context, messages []models.ChatMessage) (string, error)
	Close() error
}

// Sampling parameters shared by all providers.
const (
	Temperature = 0.7
	TopP        = 1.0
	MaxTokens   = 2000
)
