package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync"

	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// Store is a brute-force cosine-similarity vector store with the same
// namespace, prefix-listing and metadata-filter semantics as the remote
// index. It backs local development (vector.backend = "memory") and the
// package test suites.
type Store struct {
	mu         sync.RWMutex
	dimension  int
	namespaces map[string]map[string]models.VectorRecord
}

// Compile-time interface assertion
var _ interfaces.VectorStore = (*Store)(nil)

// NewStore creates an empty in-memory store for the given dimension
func NewStore(dimension int) *Store {
	return &Store{
		dimension:  dimension,
		namespaces: make(map[string]map[string]models.VectorRecord),
	}
}

// EnsureIndex validates the configured dimension. Idempotent by nature.
func (s *Store) EnsureIndex(ctx context.Context) error {
	if s.dimension <= 0 {
		return &models.ConfigurationError{Reason: fmt.Sprintf("invalid dimension %d", s.dimension)}
	}
	return nil
}

// Upsert inserts or replaces records by id
func (s *Store) Upsert(ctx context.Context, namespace string, records []models.VectorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		if len(r.Values) != s.dimension {
			return &models.ConfigurationError{
				Reason: fmt.Sprintf("vector %s has dimension %d, index expects %d", r.ID, len(r.Values), s.dimension),
			}
		}
	}

	ns, ok := s.namespaces[namespace]
	if !ok {
		ns = make(map[string]models.VectorRecord, len(records))
		s.namespaces[namespace] = ns
	}
	for _, r := range records {
		ns[r.ID] = r
	}
	return nil
}

// Query returns up to topK matches by descending cosine similarity. An
// absent namespace yields an empty result, not an error.
func (s *Store) Query(ctx context.Context, namespace string, vector []float32, topK int, filter models.MetadataFilter) ([]models.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if topK <= 0 {
		topK = 10
	}

	ns, ok := s.namespaces[namespace]
	if !ok {
		return []models.Match{}, nil
	}

	matches := make([]models.Match, 0, len(ns))
	for _, r := range ns {
		if !matchesFilter(r.Metadata, filter) {
			continue
		}
		matches = append(matches, models.Match{
			ID:       r.ID,
			Score:    cosine(vector, r.Values),
			Metadata: r.Metadata,
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// ListIDs pages through ids with the given prefix in lexicographic order
func (s *Store) ListIDs(ctx context.Context, namespace, prefix string, limit int, paginationToken string) ([]string, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	ns, ok := s.namespaces[namespace]
	if !ok {
		return []string{}, "", nil
	}

	all := make([]string, 0, len(ns))
	for id := range ns {
		if prefix == "" || hasPrefix(id, prefix) {
			all = append(all, id)
		}
	}
	sort.Strings(all)

	offset := 0
	if paginationToken != "" {
		parsed, err := strconv.Atoi(paginationToken)
		if err != nil || parsed < 0 {
			return nil, "", &models.ValidationError{Field: "paginationToken", Reason: "malformed"}
		}
		offset = parsed
	}
	if offset >= len(all) {
		return []string{}, "", nil
	}

	end := offset + limit
	next := ""
	if end < len(all) {
		next = strconv.Itoa(end)
	} else {
		end = len(all)
	}

	return all[offset:end], next, nil
}

// DeleteByIDs removes records; unknown ids are ignored
func (s *Store) DeleteByIDs(ctx context.Context, namespace string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.namespaces[namespace]
	if !ok {
		return nil
	}
	for _, id := range ids {
		delete(ns, id)
	}
	return nil
}

// DeleteNamespace drops the whole namespace; absent namespaces are success
func (s *Store) DeleteNamespace(ctx context.Context, namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.namespaces, namespace)
	return nil
}

// Stats summarizes the store contents
func (s *Store) Stats(ctx context.Context) (*models.IndexStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &models.IndexStats{
		Dimension:  s.dimension,
		Namespaces: make(map[string]int, len(s.namespaces)),
	}
	for name, ns := range s.namespaces {
		stats.Namespaces[name] = len(ns)
		stats.TotalRecordCount += len(ns)
	}
	return stats, nil
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// matchesFilter evaluates the store's operator syntax: a value clause is
// either a literal (equality) or an operator map with $eq/$gte/$lte.
func matchesFilter(metadata map[string]interface{}, filter models.MetadataFilter) bool {
	if len(filter) == 0 {
		return true
	}
	for field, clause := range filter {
		value, ok := metadata[field]
		if !ok {
			return false
		}

		ops, isOps := clause.(map[string]interface{})
		if !isOps {
			if fmt.Sprintf("%v", value) != fmt.Sprintf("%v", clause) {
				return false
			}
			continue
		}

		for op, operand := range ops {
			switch op {
			case "$eq":
				if fmt.Sprintf("%v", value) != fmt.Sprintf("%v", operand) {
					return false
				}
			case "$gte":
				v, a, ok := asNumbers(value, operand)
				if !ok || v < a {
					return false
				}
			case "$lte":
				v, a, ok := asNumbers(value, operand)
				if !ok || v > a {
					return false
				}
			default:
				return false
			}
		}
	}
	return true
}

func asNumbers(a, b interface{}) (float64, float64, bool) {
	av, aok := asFloat(a)
	bv, bok := asFloat(b)
	return av, bv, aok && bok
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
