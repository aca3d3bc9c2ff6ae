package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// Service assembles the retrieval context for a query: embed, search the
// workspace namespace, drop weak matches, deduplicate by source document and
// cap the assembled text. The output is the grounding block handed to the
// chat model.
type Service struct {
	config   *common.RetrievalConfig
	vectors  interfaces.VectorStore
	embedder interfaces.EmbeddingService
	logger   arbor.ILogger
}

// Compile-time interface assertion
var _ interfaces.ContextService = (*Service)(nil)

// NewService creates the context assembly service
func NewService(cfg *common.RetrievalConfig, vectors interfaces.VectorStore, embedder interfaces.EmbeddingService, logger arbor.ILogger) *Service {
	return &Service{
		config:   cfg,
		vectors:  vectors,
		embedder: embedder,
		logger:   logger,
	}
}

// GetContext runs one retrieval. Zero-valued options fall back to the
// configured defaults; MinScore is an exclusive lower bound, so a threshold
// of 0 still admits every match.
func (s *Service) GetContext(ctx context.Context, query, namespace string, opts interfaces.ContextOptions) (*interfaces.ContextResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, &models.ValidationError{Field: "query", Reason: "cannot be empty"}
	}
	if namespace == "" {
		return nil, &models.ValidationError{Field: "namespace", Reason: "cannot be empty"}
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = s.config.TopK
	}
	minScore := opts.MinScore
	if minScore == 0 {
		minScore = s.config.MinScore
	}
	maxChars := opts.MaxContextChars
	if maxChars <= 0 {
		maxChars = s.config.MaxContextChars
	}

	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	var filter models.MetadataFilter
	if opts.RecencyWindow > 0 {
		cutoff := time.Now().Add(-opts.RecencyWindow).Unix()
		filter = models.RecencyFilter(models.MetadataPublishedAt, cutoff)
	}

	matches, err := s.vectors.Query(ctx, namespace, vector, topK, filter)
	if err != nil {
		return nil, fmt.Errorf("context query failed: %w", err)
	}

	qualified := make([]models.Match, 0, len(matches))
	for _, m := range matches {
		if m.Score > minScore {
			qualified = append(qualified, m)
		}
	}

	result := &interfaces.ContextResult{Matches: qualified}
	if opts.TextOnly {
		result.Text = assembleText(qualified, maxChars)
	}

	s.logger.Debug().
		Str("namespace", namespace).
		Int("matches", len(matches)).
		Int("qualified", len(qualified)).
		Int("context_chars", len(result.Text)).
		Msg("Assembled retrieval context")

	return result, nil
}

// assembleText deduplicates matches by their reference URL, formats each
// surviving match as a labelled block and joins them, truncating the whole
// to maxChars. Matches arrive score-descending, so dedup keeps the best
// chunk per source and truncation drops the weakest tail.
func assembleText(matches []models.Match, maxChars int) string {
	seen := make(map[string]bool, len(matches))
	blocks := make([]string, 0, len(matches))

	for _, m := range matches {
		text, _ := m.Metadata[models.MetadataText].(string)
		if strings.TrimSpace(text) == "" {
			continue
		}

		url, _ := m.Metadata[models.MetadataReferenceURL].(string)
		if url != "" {
			if seen[url] {
				continue
			}
			seen[url] = true
		}

		blocks = append(blocks, fmt.Sprintf("REFERENCE URL: %s CONTENT: %s", url, text))
	}

	joined := strings.Join(blocks, " ")
	if len(joined) > maxChars {
		// Back off to a rune boundary so the cut never leaves a partial
		// UTF-8 sequence
		cut := maxChars
		for cut > 0 && !utf8.RuneStart(joined[cut]) {
			cut--
		}
		joined = joined[:cut]
	}
	return joined
}
