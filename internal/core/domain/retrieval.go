package domain

import "time"

type RetrievedChunk struct {
	Chunk
	Score float64 `json:"score"`
}

// SourceAttribution links an answer back to one retrieved chunk.
type SourceAttribution struct {
	Content string `json:"content"`
	Source  string `json:"source"`
	Page    string `json:"page"`
}

// PageNotAvailable is reported when a chunk carries no page metadata.
const PageNotAvailable = "N/A"

// UnknownSource is reported when a chunk carries no source metadata.
const UnknownSource = "Unknown"

type Answer struct {
	Text    string              `json:"answer"`
	Sources []SourceAttribution `json:"sources"`
}

type ConversationTurn struct {
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	AskedAt  time.Time `json:"asked_at"`
}

// GenerationRequest is the single stateless call made to the language model.
type GenerationRequest struct {
	SystemFraming string
	Context       string
	Question      string
}
