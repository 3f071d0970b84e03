package models

import (
	"time"

	"github.com/google/uuid"
)

// ChatTurn is one user message paired with its generated response.
// Rows are append-only; a turn is written once, after its stream completed.
type ChatTurn struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Message   string    `json:"message"`
	Response  string    `json:"response"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatRequest is the payload sent to the chat endpoint.
type ChatRequest struct {
	Message string `json:"message"`
}

// HistoryPage is one page of a user's chat history, newest first.
type HistoryPage struct {
	Chats       []*ChatTurn `json:"chats"`
	TotalPages  int         `json:"totalPages"`
	CurrentPage int         `json:"currentPage"`
}

// StreamDelta is one SSE data frame carrying an incremental text fragment.
type StreamDelta struct {
	Choices []StreamChoice `json:"choices"`
}

type StreamChoice struct {
	Delta DeltaContent `json:"delta"`
}

type DeltaContent struct {
	Content string `json:"content"`
}

// StreamError is the in-band error frame emitted when a stream fails after
// the response headers are already committed.
type StreamError struct {
	Error string `json:"error"`
}
