package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/interfaces"
	"github.com/ternarybob/colligo/internal/models"
)

// systemPromptTemplate frames the retrieved context for the model. The
// delimiters matter: the instructions refer to the span between them, and an
// empty span instructs the model to say it does not know.
const systemPromptTemplate = `AI assistant is a brand new, powerful, human-like artificial intelligence.
DO NOT SHARE REFERENCE URLS THAT ARE NOT INCLUDED IN THE CONTEXT BLOCK.
AI assistant will not apologize for previous responses, but instead will indicated new information was gained.
If user asks about or refers to the current "workspace" AI will refer to the the content after START CONTEXT BLOCK and before END OF CONTEXT BLOCK as the CONTEXT BLOCK.
If AI sees a REFERENCE URL in the provided CONTEXT BLOCK, please use reference that URL in your response as a link reference right next to the relevant information in a numbered link format e.g. ([reference number](link))
If link is a pdf and you are CERTAIN of the page number, please include the page number in the pdf href (e.g. .pdf#page=x ).
If AI is asked to give quotes, please bias towards providing reference links to the original source of the quote.
AI assistant will take into account any CONTEXT BLOCK that is provided in a conversation. It will say it does not know if the CONTEXT BLOCK is empty.
AI assistant will not invent anything that is not drawn directly from the context.
AI assistant will not answer questions that are not related to the context.
START CONTEXT BLOCK
%s
END OF CONTEXT BLOCK`

// Service answers conversations grounded in one workspace's documents:
// retrieve context for the latest user turn, frame it in the system prompt
// and complete with the configured model.
type Service struct {
	retriever interfaces.ContextService
	llm       interfaces.LLMService
	logger    arbor.ILogger
}

// Compile-time interface assertion
var _ interfaces.ChatService = (*Service)(nil)

// NewService creates the grounded chat service
func NewService(retriever interfaces.ContextService, llm interfaces.LLMService, logger arbor.ILogger) *Service {
	return &Service{
		retriever: retriever,
		llm:       llm,
		logger:    logger,
	}
}

// Chat grounds the conversation and completes. Context retrieval uses the
// content of the last user turn only; the full conversation still travels to
// the model for continuity.
func (s *Service) Chat(ctx context.Context, namespaceID string, messages []models.Message) (*interfaces.ChatResult, error) {
	query, err := lastUserContent(messages)
	if err != nil {
		return nil, err
	}

	retrieved, err := s.retriever.GetContext(ctx, query, namespaceID, interfaces.ContextOptions{
		TextOnly: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to assemble context: %w", err)
	}

	prompt := make([]models.Message, 0, len(messages)+1)
	prompt = append(prompt, models.Message{
		Role:    "system",
		Content: fmt.Sprintf(systemPromptTemplate, retrieved.Text),
	})
	for _, msg := range messages {
		if msg.Role == "system" {
			continue // the grounding prompt owns the system turn
		}
		prompt = append(prompt, msg)
	}

	reply, err := s.llm.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("namespace", namespaceID).
		Str("model", s.llm.ModelName()).
		Int("context_chars", len(retrieved.Text)).
		Int("reply_chars", len(reply)).
		Msg("Chat completed")

	return &interfaces.ChatResult{
		Reply:        reply,
		Context:      retrieved.Text,
		ContextChars: len(retrieved.Text),
	}, nil
}

// lastUserContent returns the content of the final user turn
func lastUserContent(messages []models.Message) (string, error) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" && strings.TrimSpace(messages[i].Content) != "" {
			return messages[i].Content, nil
		}
	}
	return "", &models.ValidationError{Field: "messages", Reason: "a user message is required"}
}
