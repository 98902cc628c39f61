package ollama

import (
	"github.com/kirillkom/uniconnect/internal/core/domain"
	"github.com/kirillkom/uniconnect/internal/infrastructure/llm"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

func buildChatMessages(req domain.GenerationRequest) []chatMessage {
	messages := make([]chatMessage, 0, 2)
	if req.SystemFraming != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemFraming})
	}
	return append(messages, chatMessage{Role: "user", Content: llm.UserMessage(req)})
}
