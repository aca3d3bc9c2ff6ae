package interfaces

import (
	"context"

	"github.com/ternarybob/colligo/internal/models"
)

// WorkspaceStorage is the workspace metadata registry
type WorkspaceStorage interface {
	Create(ctx context.Context, ws *models.Workspace) error

	// Get returns the workspace or models.ErrNotFound
	Get(ctx context.Context, id string) (*models.Workspace, error)

	List(ctx context.Context) ([]*models.Workspace, error)

	// Delete removes the registry entry; deleting an absent id is success
	Delete(ctx context.Context, id string) error
}
