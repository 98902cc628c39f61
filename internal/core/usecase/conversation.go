package usecase

import (
	"slices"
	"sync"

	"github.com/kirillkom/uniconnect/internal/core/domain"
)

// ConversationLog is an append-only record of answered questions. It is
// never fed back into retrieval or generation.
type ConversationLog struct {
	mu    sync.Mutex
	turns []domain.ConversationTurn
}

func NewConversationLog() *ConversationLog {
	return &ConversationLog{}
}

func (l *ConversationLog) Append(turn domain.ConversationTurn) {
	l.mu.Lock()
	l.turns = append(l.turns, turn)
	l.mu.Unlock()
}

// Turns returns a copy in insertion order; never nil.
func (l *ConversationLog) Turns() []domain.ConversationTurn {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := slices.Clone(l.turns)
	if out == nil {
		out = []domain.ConversationTurn{}
	}
	return out
}

func (l *ConversationLog) Clear() {
	l.mu.Lock()
	l.turns = nil
	l.mu.Unlock()
}
