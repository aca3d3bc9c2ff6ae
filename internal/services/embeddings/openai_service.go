package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// Service is an OpenAI-compatible embeddings client. Inputs above the
// provider's per-request item cap are split into sequential batches and the
// results recombined in input order. Requests are paced with a token-bucket
// limiter; retry policy belongs to callers.
type Service struct {
	baseURL   string
	apiKey    string
	model     string
	dimension int
	maxBatch  int
	limiter   *rate.Limiter
	client    *http.Client
	logger    arbor.ILogger
}

// Compile-time interface assertion
var _ interfaces.EmbeddingService = (*Service)(nil)

// NewService creates an embedding client from configuration
func NewService(cfg *common.EmbeddingConfig, logger arbor.ILogger) *Service {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	maxBatch := cfg.MaxBatchSize
	if maxBatch <= 0 {
		maxBatch = 96
	}

	return &Service{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		dimension: cfg.Dimension,
		maxBatch:  maxBatch,
		limiter:   rate.NewLimiter(rate.Limit(rps), 1),
		client:    &http.Client{Timeout: 60 * time.Second},
		logger:    logger,
	}
}

type embeddingRequest struct {
	Model          string   `json:"model"`
	Input          []string `json:"input"`
	EncodingFormat string   `json:"encoding_format"`
	Dimensions     int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// EmbedTexts embeds texts, preserving order across internal batch splits.
// result[i] corresponds to texts[i] for every i; a scrambled mapping would
// corrupt retrieval silently, so the correspondence is re-checked against the
// provider's index field.
func (s *Service) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += s.maxBatch {
		end := start + s.maxBatch
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		batchVectors, err := s.embedBatch(ctx, batch)
		if err != nil {
			return nil, &models.EmbeddingError{BatchStart: start, BatchSize: len(batch), Err: err}
		}
		vectors = append(vectors, batchVectors...)
	}

	s.logger.Debug().
		Int("texts", len(texts)).
		Int("dimension", s.dimension).
		Str("model", s.model).
		Msg("Embedded texts")

	return vectors, nil
}

// EmbedQuery embeds a single query string
func (s *Service) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	if strings.TrimSpace(query) == "" {
		return nil, &models.ValidationError{Field: "query", Reason: "cannot be empty"}
	}

	vectors, err := s.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// ModelName returns the embedding model identifier
func (s *Service) ModelName() string { return s.model }

// Dimension returns the fixed output dimensionality
func (s *Service) Dimension() int { return s.dimension }

func (s *Service) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(embeddingRequest{
		Model:          s.model,
		Input:          batch,
		EncodingFormat: "float",
		Dimensions:     s.dimension,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &models.TransientError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, statusError(resp, payload)
	}

	var parsed embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode embedding response: %w", err)
	}

	if len(parsed.Data) != len(batch) {
		return nil, fmt.Errorf("embedding service returned %d vectors for %d inputs", len(parsed.Data), len(batch))
	}

	// The API documents data as input-ordered; the index field makes the
	// chunk/embedding correspondence explicit regardless
	vectors := make([][]float32, len(batch))
	for i, item := range parsed.Data {
		idx := item.Index
		if idx < 0 || idx >= len(batch) {
			idx = i
		}
		if s.dimension > 0 && len(item.Embedding) != s.dimension {
			return nil, &models.ConfigurationError{
				Reason: fmt.Sprintf("embedding dimension %d does not match configured %d", len(item.Embedding), s.dimension),
			}
		}
		vectors[idx] = item.Embedding
	}

	return vectors, nil
}

func statusError(resp *http.Response, payload []byte) error {
	detail := fmt.Errorf("embedding service returned %s: %s", resp.Status, strings.TrimSpace(string(payload)))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &models.RateLimitedError{RetryAfter: retryAfter(resp), Err: detail}
	case resp.StatusCode >= 500:
		return &models.TransientError{Err: detail}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &models.ConfigurationError{Reason: "embedding service rejected credentials", Err: detail}
	default:
		return detail
	}
}

func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}
