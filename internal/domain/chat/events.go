package chat

import (
	"time"

	"github.com/matiasleandrokruk/parley/internal/infra/llm"
)

// Outcome of a turn as reported on the event bus.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
)

// TurnEvent is published after every SendTurn, successful or not.
type TurnEvent struct {
	ConversationID string
	Model          string
	Provider       string
	Mode           llm.Mode
	Attachments    int
	Outcome        Outcome
	Error          string
	ReplyChars     int
	Latency        time.Duration
	At             time.Time
}

// Publisher is the subset of the event bus the orchestrator needs.
type Publisher interface {
	Publish(topic string, payload any)
}
