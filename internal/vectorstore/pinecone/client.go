package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

const apiVersion = "2024-07"

// Client talks to the Pinecone control and data planes over REST. Upserts
// are split into provider-safe batches (record count and payload byte caps)
// and sent sequentially; a mid-sequence failure leaves earlier batches
// committed, which is safe because upsert is idempotent by record id.
type Client struct {
	config   *common.VectorConfig
	dataHost string
	client   *http.Client
	logger   arbor.ILogger
}

// Compile-time interface assertion
var _ interfaces.VectorStore = (*Client)(nil)

// NewClient creates a Pinecone client from configuration. The data-plane
// host is taken from config when set, otherwise discovered from the
// controller during EnsureIndex.
func NewClient(cfg *common.VectorConfig, logger arbor.ILogger) *Client {
	return &Client{
		config:   cfg,
		dataHost: normalizeHost(cfg.Host),
		client:   &http.Client{Timeout: 60 * time.Second},
		logger:   logger,
	}
}

func normalizeHost(host string) string {
	if host == "" {
		return ""
	}
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return strings.TrimRight(host, "/")
	}
	return "https://" + strings.TrimRight(host, "/")
}

type indexSpec struct {
	Serverless struct {
		Cloud  string `json:"cloud"`
		Region string `json:"region"`
	} `json:"serverless"`
}

type indexDescription struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
	Metric    string `json:"metric"`
	Host      string `json:"host"`
	Status    struct {
		Ready bool   `json:"ready"`
		State string `json:"state"`
	} `json:"status"`
}

// EnsureIndex creates the configured serverless index if it does not exist.
// An existing index with a matching dimension is success; a mismatch is a
// configuration error because silently querying it would return garbage.
func (c *Client) EnsureIndex(ctx context.Context) error {
	spec := indexSpec{}
	spec.Serverless.Cloud = c.config.Cloud
	spec.Serverless.Region = c.config.Region

	body := map[string]interface{}{
		"name":      c.config.Index,
		"dimension": c.config.Dimension,
		"metric":    c.config.Metric,
		"spec":      spec,
	}

	var created indexDescription
	err := c.do(ctx, http.MethodPost, c.controllerURL("/indexes"), body, &created)
	if err == nil {
		c.logger.Info().
			Str("index", created.Name).
			Int("dimension", created.Dimension).
			Msg("Created vector index")
		if created.Host != "" {
			c.dataHost = normalizeHost(created.Host)
		}
		return nil
	}
	if !isConflict(err) {
		return fmt.Errorf("failed to create index %s: %w", c.config.Index, err)
	}

	// Index already exists: verify it is compatible and learn its host
	var existing indexDescription
	if err := c.do(ctx, http.MethodGet, c.controllerURL("/indexes/"+c.config.Index), nil, &existing); err != nil {
		return fmt.Errorf("failed to describe index %s: %w", c.config.Index, err)
	}
	if existing.Dimension != c.config.Dimension {
		return &models.ConfigurationError{
			Reason: fmt.Sprintf("index %s has dimension %d, configuration expects %d",
				c.config.Index, existing.Dimension, c.config.Dimension),
		}
	}
	if existing.Host != "" {
		c.dataHost = normalizeHost(existing.Host)
	}

	c.logger.Debug().
		Str("index", existing.Name).
		Str("host", c.dataHost).
		Msg("Vector index already exists")

	return nil
}

// Upsert writes records in batches capped by count and payload size
func (c *Client) Upsert(ctx context.Context, namespace string, records []models.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	maxRecords := c.config.UpsertBatchSize
	if maxRecords <= 0 {
		maxRecords = 200
	}
	maxBytes := c.config.UpsertByteLimit
	if maxBytes <= 0 {
		maxBytes = 2 * 1024 * 1024
	}

	batch := make([]models.VectorRecord, 0, maxRecords)
	batchBytes := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		body := map[string]interface{}{
			"vectors":   batch,
			"namespace": namespace,
		}
		if err := c.do(ctx, http.MethodPost, c.dataURL("/vectors/upsert"), body, nil); err != nil {
			return fmt.Errorf("failed to upsert %d vectors: %w", len(batch), err)
		}
		batch = batch[:0]
		batchBytes = 0
		return nil
	}

	for _, r := range records {
		size := recordSize(r)
		if len(batch) > 0 && (len(batch) >= maxRecords || batchBytes+size > maxBytes) {
			if err := flush(); err != nil {
				return err
			}
		}
		batch = append(batch, r)
		batchBytes += size
	}
	if err := flush(); err != nil {
		return err
	}

	c.logger.Debug().
		Str("namespace", namespace).
		Int("records", len(records)).
		Msg("Upserted vectors")

	return nil
}

// recordSize approximates the serialized payload size of one record
func recordSize(r models.VectorRecord) int {
	size := len(r.ID) + len(r.Values)*12
	for k, v := range r.Metadata {
		size += len(k) + len(fmt.Sprintf("%v", v)) + 8
	}
	return size
}

type queryResponse struct {
	Matches []struct {
		ID       string                 `json:"id"`
		Score    float64                `json:"score"`
		Metadata map[string]interface{} `json:"metadata"`
	} `json:"matches"`
}

// Query runs a similarity search with optional metadata filter. An absent
// namespace yields an empty result.
func (c *Client) Query(ctx context.Context, namespace string, vector []float32, topK int, filter models.MetadataFilter) ([]models.Match, error) {
	if topK <= 0 {
		topK = 10
	}

	body := map[string]interface{}{
		"vector":          vector,
		"topK":            topK,
		"namespace":       namespace,
		"includeMetadata": true,
		"includeValues":   false,
	}
	if len(filter) > 0 {
		body["filter"] = filter
	}

	var parsed queryResponse
	if err := c.do(ctx, http.MethodPost, c.dataURL("/query"), body, &parsed); err != nil {
		if models.IsNotFound(err) {
			return []models.Match{}, nil
		}
		return nil, fmt.Errorf("query failed: %w", err)
	}

	matches := make([]models.Match, len(parsed.Matches))
	for i, m := range parsed.Matches {
		matches[i] = models.Match{ID: m.ID, Score: m.Score, Metadata: m.Metadata}
	}
	return matches, nil
}

type listResponse struct {
	Vectors []struct {
		ID string `json:"id"`
	} `json:"vectors"`
	Pagination struct {
		Next string `json:"next"`
	} `json:"pagination"`
}

// ListIDs pages through record ids with the given prefix
func (c *Client) ListIDs(ctx context.Context, namespace, prefix string, limit int, paginationToken string) ([]string, string, error) {
	if limit <= 0 {
		limit = c.config.ListPageSize
	}
	if limit <= 0 {
		limit = 100
	}

	params := url.Values{}
	params.Set("namespace", namespace)
	params.Set("limit", strconv.Itoa(limit))
	if prefix != "" {
		params.Set("prefix", prefix)
	}
	if paginationToken != "" {
		params.Set("paginationToken", paginationToken)
	}

	var parsed listResponse
	if err := c.do(ctx, http.MethodGet, c.dataURL("/vectors/list")+"?"+params.Encode(), nil, &parsed); err != nil {
		if models.IsNotFound(err) {
			return []string{}, "", nil
		}
		return nil, "", fmt.Errorf("list failed: %w", err)
	}

	ids := make([]string, len(parsed.Vectors))
	for i, v := range parsed.Vectors {
		ids[i] = v.ID
	}
	return ids, parsed.Pagination.Next, nil
}

// DeleteByIDs removes the given records; unknown ids are ignored by the
// service, and an absent namespace is success
func (c *Client) DeleteByIDs(ctx context.Context, namespace string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	body := map[string]interface{}{
		"ids":       ids,
		"namespace": namespace,
	}
	if err := c.do(ctx, http.MethodPost, c.dataURL("/vectors/delete"), body, nil); err != nil {
		if models.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to delete %d vectors: %w", len(ids), err)
	}
	return nil
}

// DeleteNamespace removes every record in the namespace. Deleting a
// namespace that never existed is success.
func (c *Client) DeleteNamespace(ctx context.Context, namespace string) error {
	body := map[string]interface{}{
		"deleteAll": true,
		"namespace": namespace,
	}
	if err := c.do(ctx, http.MethodPost, c.dataURL("/vectors/delete"), body, nil); err != nil {
		if models.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to delete namespace %s: %w", namespace, err)
	}

	c.logger.Info().Str("namespace", namespace).Msg("Deleted vector namespace")
	return nil
}

type statsResponse struct {
	Dimension        int `json:"dimension"`
	TotalVectorCount int `json:"totalVectorCount"`
	Namespaces       map[string]struct {
		VectorCount int `json:"vectorCount"`
	} `json:"namespaces"`
}

// Stats describes the backing index
func (c *Client) Stats(ctx context.Context) (*models.IndexStats, error) {
	var parsed statsResponse
	if err := c.do(ctx, http.MethodPost, c.dataURL("/describe_index_stats"), map[string]interface{}{}, &parsed); err != nil {
		return nil, fmt.Errorf("failed to describe index stats: %w", err)
	}

	stats := &models.IndexStats{
		Dimension:        parsed.Dimension,
		TotalRecordCount: parsed.TotalVectorCount,
		Namespaces:       make(map[string]int, len(parsed.Namespaces)),
	}
	for name, ns := range parsed.Namespaces {
		stats.Namespaces[name] = ns.VectorCount
	}
	return stats, nil
}

func (c *Client) controllerURL(path string) string {
	return strings.TrimRight(c.config.ControllerURL, "/") + path
}

func (c *Client) dataURL(path string) string {
	return c.dataHost + path
}

// do executes one request with Pinecone headers and decodes the response
// into out when non-nil. Non-2xx statuses map onto the error taxonomy.
func (c *Client) do(ctx context.Context, method, requestURL string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Api-Key", c.config.APIKey)
	req.Header.Set("X-Pinecone-Api-Version", apiVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &models.TransientError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return statusError(resp, payload)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// conflictError marks an index-already-exists response so EnsureIndex can
// fall through to describe
type conflictError struct {
	detail error
}

func (e *conflictError) Error() string { return e.detail.Error() }
func (e *conflictError) Unwrap() error { return e.detail }

func isConflict(err error) bool {
	var ce *conflictError
	return errors.As(err, &ce)
}

func statusError(resp *http.Response, payload []byte) error {
	detail := fmt.Errorf("vector service returned %s: %s", resp.Status, strings.TrimSpace(string(payload)))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %v", models.ErrNotFound, detail)
	case resp.StatusCode == http.StatusConflict:
		return &conflictError{detail: detail}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &models.RateLimitedError{RetryAfter: retryAfter(resp), Err: detail}
	case resp.StatusCode >= 500:
		return &models.TransientError{Err: detail}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &models.ConfigurationError{Reason: "vector service rejected credentials", Err: detail}
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
