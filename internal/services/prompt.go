package services

import (
	"strings"

	"converse-backend/internal/models"
)

// BuildPrompt serializes the conversation window plus the new message into a
// model-ready prompt. Each stored turn expands into an instruction-wrapped
// user line and a plain assistant line; the new message comes last. History
// is consumed in the order it was fetched (newest first). An empty window is
// valid and yields just the new message.
func BuildPrompt(history []*models.ChatTurn, message string) string {
	var b strings.Builder

	for _, t := range history {
		b.WriteString("[INST] ")
		b.WriteString(t.Message)
		b.WriteString(" [/INST]\n")
		b.WriteString(t.Response)
		b.WriteString("\n")
	}

	b.WriteString("[INST] ")
	b.WriteString(message)
	b.WriteString(" [/INST]")

	return b.String()
}
