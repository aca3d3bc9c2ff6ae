package interfaces

import (
	"context"

	"github.com/ternarybob/colligo/internal/models"
)

// ObjectStorage stores raw uploaded file bytes, keyed
// {workspaceId}/{documentId}/{fileName}. It is the system of record for the
// original files and is deliberately not transactional with the vector
// store; deletion across the two is best-effort cleanup.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data []byte) error

	// Read returns the stored bytes, or models.ErrNotFound
	Read(ctx context.Context, key string) ([]byte, error)

	// List returns the files stored under the prefix
	List(ctx context.Context, prefix string) ([]models.StoredFile, error)

	// Delete removes a single object; deleting an absent key is success
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes every object under the prefix
	DeletePrefix(ctx context.Context, prefix string) error

	// Namespaces returns the top-level key prefixes (workspace ids)
	Namespaces(ctx context.Context) ([]string, error)

	// URLFor constructs the serving URL for a key
	URLFor(key string) string
}
