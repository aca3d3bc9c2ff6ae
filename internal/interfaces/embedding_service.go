package interfaces

import "context"

// EmbeddingService converts text into fixed-dimension vectors via a remote
// embedding API
type EmbeddingService interface {
	// EmbedTexts embeds a batch, splitting internally above the provider's
	// item limit. Result order matches input order; result[i] always
	// corresponds to texts[i]. Failures surface as *models.EmbeddingError
	// carrying the offending batch; no internal retry beyond request pacing.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery embeds a single query string
	EmbedQuery(ctx context.Context, query string) ([]float32, error)

	// ModelName returns the embedding model identifier
	ModelName() string

	// Dimension returns the fixed output dimensionality
	Dimension() int
}
