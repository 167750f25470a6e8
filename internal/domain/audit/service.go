// Package audit keeps an append-only log of chat turn outcomes in SQLite.
// It records which model answered, how long it took and whether it failed;
// message content is never stored.
package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/matiasleandrokruk/parley/internal/domain/chat"
	"github.com/matiasleandrokruk/parley/internal/infra/eventbus"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

const writeTimeout = 5 * time.Second

// timeLayout is fixed width so created_at sorts lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Recorder provides audit logging of chat turns
// All operations are append-only; no updates or deletes are supported
type Recorder struct {
	db  *sql.DB
	log logrus.FieldLogger
}

// NewRecorder creates a recorder over a migrated database
func NewRecorder(db *sql.DB, log logrus.FieldLogger) *Recorder {
	return &Recorder{db: db, log: log}
}

// Log appends a record. Empty ids and timestamps are filled in.
func (r *Recorder) Log(ctx context.Context, rec *TurnRecord) error {
	if rec.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("audit: new id: %w", err)
		}
		rec.ID = id.String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO chat_turn_event
			(id, conversation_id, model, provider, mode, attachments, outcome, error, reply_chars, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ConversationID, rec.Model, rec.Provider, rec.Mode, rec.Attachments,
		string(rec.Outcome), rec.Error, rec.ReplyChars, rec.LatencyMS,
		rec.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("audit: insert: %w", err)
	}
	return nil
}

// List returns the newest records first. limit is clamped to (0, MaxListLimit].
func (r *Recorder) List(ctx context.Context, limit int) ([]*TurnRecord, error) {
	return r.query(ctx, `SELECT `+columns+` FROM chat_turn_event
		ORDER BY created_at DESC, id DESC LIMIT ?`, clampLimit(limit))
}

// ListByConversation returns the newest records of one conversation first.
func (r *Recorder) ListByConversation(ctx context.Context, conversationID string, limit int) ([]*TurnRecord, error) {
	return r.query(ctx, `SELECT `+columns+` FROM chat_turn_event
		WHERE conversation_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ?`, conversationID, clampLimit(limit))
}

// Run records every chat.TurnEvent received on events until ctx is done or
// the channel is closed. Write failures are logged and do not stop the loop.
func (r *Recorder) Run(ctx context.Context, events <-chan eventbus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			turn, ok := evt.Payload.(chat.TurnEvent)
			if !ok {
				r.log.WithField("topic", evt.Topic).Warn("audit: unexpected payload")
				continue
			}
			wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
			if err := r.Log(wctx, FromTurnEvent(turn)); err != nil {
				r.log.WithError(err).WithField("conversation_id", turn.ConversationID).Error("audit write failed")
			}
			cancel()
		}
	}
}

// FromTurnEvent converts a published turn outcome into a record.
func FromTurnEvent(e chat.TurnEvent) *TurnRecord {
	rec := &TurnRecord{
		ConversationID: e.ConversationID,
		Model:          e.Model,
		Provider:       e.Provider,
		Mode:           string(e.Mode),
		Attachments:    e.Attachments,
		Outcome:        OutcomeSuccess,
		ReplyChars:     e.ReplyChars,
		LatencyMS:      e.Latency.Milliseconds(),
		CreatedAt:      e.At,
	}
	if e.Outcome == chat.OutcomeError {
		rec.Outcome = OutcomeError
		msg := e.Error
		rec.Error = &msg
	}
	return rec
}

const columns = `id, conversation_id, model, provider, mode, attachments, outcome, error, reply_chars, latency_ms, created_at`

func (r *Recorder) query(ctx context.Context, q string, args ...any) ([]*TurnRecord, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: list: %w", err)
	}
	defer rows.Close()

	var out []*TurnRecord
	for rows.Next() {
		var (
			rec       TurnRecord
			outcome   string
			errText   sql.NullString
			createdAt string
		)
		if err := rows.Scan(&rec.ID, &rec.ConversationID, &rec.Model, &rec.Provider, &rec.Mode,
			&rec.Attachments, &outcome, &errText, &rec.ReplyChars, &rec.LatencyMS, &createdAt); err != nil {
			return nil, fmt.Errorf("audit: scan: %w", err)
		}
		rec.Outcome = Outcome(outcome)
		if errText.Valid {
			rec.Error = &errText.String
		}
		if rec.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("audit: parse created_at %q: %w", createdAt, err)
		}
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("audit: list: %w", err)
	}
	return out, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	}
	return limit
}
