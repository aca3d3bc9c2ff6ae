package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// ChatHandler serves the grounded chat endpoint
type ChatHandler struct {
	chat     interfaces.ChatService
	validate *validator.Validate
	logger   arbor.ILogger
}

func NewChatHandler(chat interfaces.ChatService) *ChatHandler {
	return &ChatHandler{
		chat:     chat,
		validate: validator.New(),
		logger:   common.GetLogger(),
	}
}

type chatRequest struct {
	NamespaceID string           `json:"namespaceId" validate:"required"`
	Messages    []models.Message `json:"messages" validate:"required,min=1,dive"`
}

// ChatHandler handles POST /api/chat
func (h *ChatHandler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}
	if h.chat == nil {
		WriteError(w, http.StatusServiceUnavailable, "chat is not configured (missing Anthropic API key)")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.chat.Chat(r.Context(), req.NamespaceID, req.Messages)
	if err != nil {
		h.logger.Warn().
			Str("namespace", req.NamespaceID).
			Err(err).
			Msg("Chat request failed")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, result)
}
