package interfaces

import (
	"context"

	"github.com/ternarybob/colligo/internal/models"
)

// IngestionService orchestrates file storage, chunking, embedding and vector
// upsert as one logical unit per document, and owns the complementary
// deletion contracts.
type IngestionService interface {
	// IngestFiles processes the files of one upload request. Per-file
	// processing runs on a bounded pool with no cross-file ordering; a
	// single document's stages are strictly sequential. The result reports
	// success or failure per file, never a single atomic outcome.
	IngestFiles(ctx context.Context, workspaceID string, newWorkspace bool, files []models.FileUpload) (*models.IngestBatchResult, error)

	// ListDocuments lists the stored files of a workspace
	ListDocuments(ctx context.Context, workspaceID string) ([]models.StoredFile, error)

	// DeleteDocument removes a document's chunks (prefix-listed, paginated,
	// batch-deleted) and then best-effort deletes its stored file. Zero
	// matching chunk ids is success, not an error.
	DeleteDocument(ctx context.Context, workspaceID, documentID string) error

	// DeleteWorkspace drops the whole vector namespace, best-effort deletes
	// the storage prefix, and removes the registry entry.
	DeleteWorkspace(ctx context.Context, workspaceID string) error

	// SweepOrphans deletes storage namespaces that have no registry entry,
	// the eventual cleanup path for partial failures. Returns the number of
	// namespaces removed.
	SweepOrphans(ctx context.Context) (int, error)
}
