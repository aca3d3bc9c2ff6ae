package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

type stubContext struct {
	text     string
	lastQ    string
	lastNS   string
	lastOpts interfaces.ContextOptions
	err      error
}

func (s *stubContext) GetContext(ctx context.Context, query, namespace string, opts interfaces.ContextOptions) (*interfaces.ContextResult, error) {
	s.lastQ, s.lastNS, s.lastOpts = query, namespace, opts
	if s.err != nil {
		return nil, s.err
	}
	return &interfaces.ContextResult{Text: s.text}, nil
}

func postJSON(t *testing.T, target string, payload interface{}) *http.Request {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(string(data)))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestFetchHandlerUsesLastUserMessage(t *testing.T) {
	retriever := &stubContext{text: "assembled context"}
	handler := NewContextHandler(retriever)

	req := postJSON(t, "/api/context/fetch", map[string]interface{}{
		"namespaceId": "ws_a",
		"messages": []models.Message{
			{Role: "user", Content: "first question"},
			{Role: "assistant", Content: "an answer"},
			{Role: "user", Content: "second question"},
		},
		"recencyHours": 24,
	})
	rec := httptest.NewRecorder()

	handler.FetchHandler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "second question", retriever.lastQ)
	assert.Equal(t, "ws_a", retriever.lastNS)
	assert.True(t, retriever.lastOpts.TextOnly)
	assert.Equal(t, 24*time.Hour, retriever.lastOpts.RecencyWindow)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "assembled context", resp["context"])
	assert.Equal(t, "second question", resp["query"])
	assert.NotContains(t, resp, "matches")
}

func TestFetchHandlerRequiresUserMessage(t *testing.T) {
	handler := NewContextHandler(&stubContext{})

	req := postJSON(t, "/api/context/fetch", map[string]interface{}{
		"namespaceId": "ws_a",
		"messages": []models.Message{
			{Role: "assistant", Content: "nothing to ground"},
		},
	})
	rec := httptest.NewRecorder()

	handler.FetchHandler(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFetchHandlerValidationErrorIs400(t *testing.T) {
	handler := NewContextHandler(&stubContext{
		err: &models.ValidationError{Field: "namespace", Reason: "cannot be empty"},
	})

	req := postJSON(t, "/api/context/fetch", map[string]interface{}{
		"messages": []models.Message{{Role: "user", Content: "hi"}},
	})
	rec := httptest.NewRecorder()

	handler.FetchHandler(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatHandlerWithoutLLMIs503(t *testing.T) {
	handler := NewChatHandler(nil)

	req := postJSON(t, "/api/chat", map[string]interface{}{
		"namespaceId": "ws_a",
		"messages":    []models.Message{{Role: "user", Content: "hello"}},
	})
	rec := httptest.NewRecorder()

	handler.ChatHandler(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestChatHandlerValidatesRequest(t *testing.T) {
	handler := NewChatHandler(&stubChat{})

	req := postJSON(t, "/api/chat", map[string]interface{}{
		"messages": []models.Message{{Role: "user", Content: "hello"}},
	})
	rec := httptest.NewRecorder()

	handler.ChatHandler(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type stubChat struct{}

func (s *stubChat) Chat(ctx context.Context, namespaceID string, messages []models.Message) (*interfaces.ChatResult, error) {
	return &interfaces.ChatResult{Reply: "ok"}, nil
}

func TestChatHandlerHappyPath(t *testing.T) {
	handler := NewChatHandler(&stubChat{})

	req := postJSON(t, "/api/chat", map[string]interface{}{
		"namespaceId": "ws_a",
		"messages":    []models.Message{{Role: "user", Content: "hello"}},
	})
	rec := httptest.NewRecorder()

	handler.ChatHandler(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}
