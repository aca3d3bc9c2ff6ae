package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/colligo/internal/models"
)

// ContextOptions tunes one retrieval. Zero values fall back to the
// configured defaults.
type ContextOptions struct {
	TopK            int
	MinScore        float64
	MaxContextChars int

	// RecencyWindow restricts matches to published_at >= now - window
	RecencyWindow time.Duration

	// TextOnly deduplicates and joins match text into a single context blob
	TextOnly bool
}

// ContextResult carries the qualifying matches and, for TextOnly requests,
// the assembled context string (already truncated to MaxContextChars)
type ContextResult struct {
	Matches []models.Match `json:"matches"`
	Text    string         `json:"text"`
}

// ContextService assembles the bounded context blob consumed by the
// downstream LLM call
type ContextService interface {
	GetContext(ctx context.Context, query, namespace string, opts ContextOptions) (*ContextResult, error)
}
