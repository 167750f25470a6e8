package handlers

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/matiasleandrokruk/parley/internal/domain/audit"
)

// TurnLog lists recorded turns. *audit.Recorder satisfies it.
type TurnLog interface {
	List(ctx context.Context, limit int) ([]*audit.TurnRecord, error)
	ListByConversation(ctx context.Context, conversationID string, limit int) ([]*audit.TurnRecord, error)
}

type EventHandler struct {
	turns TurnLog
	log   logrus.FieldLogger
}

func NewEventHandler(turns TurnLog, log logrus.FieldLogger) *EventHandler {
	return &EventHandler{turns: turns, log: log}
}

// ListEvents handles GET /events?limit=&conversation=. Without a
// conversation filter every conversation is listed, newest first.
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r)
	var (
		records []*audit.TurnRecord
		err     error
	)
	if conv := r.URL.Query().Get("conversation"); conv != "" {
		records, err = h.turns.ListByConversation(r.Context(), conv, limit)
	} else {
		records, err = h.turns.List(r.Context(), limit)
	}
	if err != nil {
		h.log.WithError(err).Error("list turn events failed")
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	if records == nil {
		records = []*audit.TurnRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": records, "meta": map[string]int{"limit": limit, "count": len(records)}})
}
