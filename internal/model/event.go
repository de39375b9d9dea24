package model

import "time"

type MessageEventType string

const (
	MessageCreated MessageEventType = "message.created"
	MessageUpdated MessageEventType = "message.updated"
	MessageDeleted MessageEventType = "message.deleted"
)

// MessageEvent is published after a committed mutation. Deleted events carry
// the row as it was before removal.
type MessageEvent struct {
	Type       MessageEventType `json:"type"`
	Message    Message          `json:"message"`
	OccurredAt time.Time        `json:"occurred_at"`
}
