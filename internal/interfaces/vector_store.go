package interfaces

import (
	"context"

	"github.com/ternarybob/colligo/internal/models"
)

// VectorStore abstracts the namespaced vector index service. Upsert is the
// sole mutation primitive: insert-or-update by id, atomic per record. The
// store performs no read-modify-write, so concurrent requests against the
// same namespace need no in-process locking.
type VectorStore interface {
	// EnsureIndex creates the configured index if missing. Idempotent: an
	// index that already exists with a matching dimension is success; a
	// dimension mismatch is a ConfigurationError.
	EnsureIndex(ctx context.Context) error

	// Upsert writes records into the namespace, batching internally to
	// provider-safe sizes and upserting sequentially. Partial-batch failure
	// leaves earlier batches committed (at-least-once, idempotent by id).
	Upsert(ctx context.Context, namespace string, records []models.VectorRecord) error

	// Query returns up to topK matches ordered by descending score. A nil
	// filter matches everything. Absent namespaces yield an empty result,
	// never an error.
	Query(ctx context.Context, namespace string, vector []float32, topK int, filter models.MetadataFilter) ([]models.Match, error)

	// ListIDs pages through record ids with the given prefix. A non-empty
	// next token means more pages remain.
	ListIDs(ctx context.Context, namespace, prefix string, limit int, paginationToken string) (ids []string, next string, err error)

	// DeleteByIDs removes the given records. Unknown ids are ignored.
	DeleteByIDs(ctx context.Context, namespace string, ids []string) error

	// DeleteNamespace removes every record in the namespace
	DeleteNamespace(ctx context.Context, namespace string) error

	// Stats describes the backing index
	Stats(ctx context.Context) (*models.IndexStats, error)
}
