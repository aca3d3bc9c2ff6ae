package badger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// WorkspaceStorage implements the workspace registry on Badger
type WorkspaceStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// Compile-time interface assertion
var _ interfaces.WorkspaceStorage = (*WorkspaceStorage)(nil)

// NewWorkspaceStorage creates a new WorkspaceStorage instance
func NewWorkspaceStorage(db *BadgerDB, logger arbor.ILogger) *WorkspaceStorage {
	return &WorkspaceStorage{
		db:     db,
		logger: logger,
	}
}

func (s *WorkspaceStorage) Create(ctx context.Context, ws *models.Workspace) error {
	if ws.ID == "" {
		return &models.ValidationError{Field: "id", Reason: "workspace id is required"}
	}
	if ws.CreatedAt.IsZero() {
		ws.CreatedAt = time.Now()
	}

	if err := s.db.Store().Upsert(ws.ID, ws); err != nil {
		return fmt.Errorf("failed to store workspace: %w", err)
	}

	s.logger.Debug().Str("workspace_id", ws.ID).Msg("Registered workspace")
	return nil
}

func (s *WorkspaceStorage) Get(ctx context.Context, id string) (*models.Workspace, error) {
	var ws models.Workspace
	if err := s.db.Store().Get(id, &ws); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("workspace %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get workspace: %w", err)
	}
	return &ws, nil
}

func (s *WorkspaceStorage) List(ctx context.Context) ([]*models.Workspace, error) {
	var workspaces []models.Workspace
	if err := s.db.Store().Find(&workspaces, nil); err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}

	sort.Slice(workspaces, func(i, j int) bool {
		return workspaces[i].CreatedAt.Before(workspaces[j].CreatedAt)
	})

	result := make([]*models.Workspace, len(workspaces))
	for i := range workspaces {
		result[i] = &workspaces[i]
	}
	return result, nil
}

func (s *WorkspaceStorage) Delete(ctx context.Context, id string) error {
	if err := s.db.Store().Delete(id, &models.Workspace{}); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete workspace: %w", err)
	}

	s.logger.Debug().Str("workspace_id", id).Msg("Deleted workspace registration")
	return nil
}
