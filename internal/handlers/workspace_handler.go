package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// WorkspaceHandler serves workspace listing and creation
type WorkspaceHandler struct {
	workspaces interfaces.WorkspaceStorage
	logger     arbor.ILogger
}

func NewWorkspaceHandler(workspaces interfaces.WorkspaceStorage) *WorkspaceHandler {
	return &WorkspaceHandler{
		workspaces: workspaces,
		logger:     common.GetLogger(),
	}
}

// Handler dispatches GET (list) and POST (create) on /api/workspaces
func (h *WorkspaceHandler) Handler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.create(w, r)
	default:
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *WorkspaceHandler) list(w http.ResponseWriter, r *http.Request) {
	workspaces, err := h.workspaces.List(r.Context())
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"workspaces": workspaces,
	})
}

func (h *WorkspaceHandler) create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ws := &models.Workspace{
		ID:        common.NewWorkspaceID(),
		Name:      strings.TrimSpace(req.Name),
		CreatedAt: time.Now(),
	}
	if ws.Name == "" {
		ws.Name = ws.ID
	}

	if err := h.workspaces.Create(r.Context(), ws); err != nil {
		WriteServiceError(w, err)
		return
	}

	h.logger.Info().Str("workspace_id", ws.ID).Msg("Workspace created")
	WriteJSON(w, http.StatusCreated, ws)
}
