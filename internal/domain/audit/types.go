package audit

import "time"

// Outcome represents the result of a recorded turn
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
)

// TurnRecord is one row of the turn audit log.
// This is immutable - once created, it should never be modified
type TurnRecord struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Model          string    `json:"model"`
	Provider       string    `json:"provider"`
	Mode           string    `json:"mode"`
	Attachments    int       `json:"attachments"`
	Outcome        Outcome   `json:"outcome"`
	Error          *string   `json:"error,omitempty"`
	ReplyChars     int       `json:"reply_chars"`
	LatencyMS      int64     `json:"latency_ms"`
	CreatedAt      time.Time `json:"created_at"`
}
