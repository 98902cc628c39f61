// Package llm holds what the model providers share.
package llm

import (
	"strings"

	"github.com/kirillkom/uniconnect/internal/core/domain"
)

// UserMessage renders the retrieved context and the question into the user
// turn sent after the system framing.
func UserMessage(req domain.GenerationRequest) string {
	var b strings.Builder
	b.WriteString("Context:\n")
	b.WriteString(req.Context)
	b.WriteString("\n\nQuestion: ")
	b.WriteString(req.Question)
	b.WriteString("\n\nProvide a helpful, accurate and friendly response. If citing specific documents or policies, mention the source.")
	return b.String()
}
