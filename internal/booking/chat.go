package booking

import "time"

// Sender identifies who wrote a chat message.
type Sender string

const (
	SenderUser   Sender = "user"
	SenderSystem Sender = "system"
)

// ChatMessage is one transcript entry.
type ChatMessage struct {
	Sender    Sender
	Text      string
	Timestamp time.Time
	IsError   bool
}
