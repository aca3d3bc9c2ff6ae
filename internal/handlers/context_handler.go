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

// ContextHandler exposes raw context assembly for clients that run their
// own completion
type ContextHandler struct {
	retriever interfaces.ContextService
	logger    arbor.ILogger
}

func NewContextHandler(retriever interfaces.ContextService) *ContextHandler {
	return &ContextHandler{
		retriever: retriever,
		logger:    common.GetLogger(),
	}
}

type contextRequest struct {
	NamespaceID string           `json:"namespaceId"`
	Messages    []models.Message `json:"messages"`

	TopK          int     `json:"topK,omitempty"`
	MinScore      float64 `json:"minScore,omitempty"`
	MaxChars      int     `json:"maxChars,omitempty"`
	RecencyHours  int     `json:"recencyHours,omitempty"`
	IncludeScores bool    `json:"includeScores,omitempty"`
}

// FetchHandler handles POST /api/context/fetch: assemble the context blob
// for the last user message of the conversation.
func (h *ContextHandler) FetchHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req contextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	query := ""
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" && strings.TrimSpace(req.Messages[i].Content) != "" {
			query = req.Messages[i].Content
			break
		}
	}
	if query == "" {
		WriteError(w, http.StatusBadRequest, "a user message is required")
		return
	}

	opts := interfaces.ContextOptions{
		TopK:            req.TopK,
		MinScore:        req.MinScore,
		MaxContextChars: req.MaxChars,
		TextOnly:        true,
	}
	if req.RecencyHours > 0 {
		opts.RecencyWindow = time.Duration(req.RecencyHours) * time.Hour
	}

	result, err := h.retriever.GetContext(r.Context(), query, req.NamespaceID, opts)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	response := map[string]interface{}{
		"query":   query,
		"context": result.Text,
	}
	if req.IncludeScores {
		response["matches"] = result.Matches
	}
	WriteJSON(w, http.StatusOK, response)
}
