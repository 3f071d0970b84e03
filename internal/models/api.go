package models

// ErrorResponse is the JSON envelope for every non-stream error.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// WSMessage is the envelope pushed to websocket clients via pub/sub.
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// ChatCompleted notifies a user's other sessions that a turn was persisted.
type ChatCompleted struct {
	ChatID  string `json:"chat_id"`
	Preview string `json:"preview"`
}
