package interfaces

import (
	"context"

	"github.com/ternarybob/colligo/internal/models"
)

// LLMService is the downstream completion collaborator. It receives a message
// list whose system turn carries the assembled context block.
type LLMService interface {
	Complete(ctx context.Context, messages []models.Message) (string, error)
	ModelName() string
}

// ChatService answers a conversation grounded in one workspace's documents
type ChatService interface {
	// Chat assembles context for the last user message and completes. An
	// empty context degrades gracefully: the model is instructed to say it
	// does not know.
	Chat(ctx context.Context, namespaceID string, messages []models.Message) (*ChatResult, error)
}

// ChatResult is the grounded completion plus the context that informed it
type ChatResult struct {
	Reply        string `json:"reply"`
	Context      string `json:"context"`
	ContextChars int    `json:"context_chars"`
}
