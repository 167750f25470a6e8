package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/matiasleandrokruk/parley/internal/api/ctxkeys"
	"github.com/matiasleandrokruk/parley/internal/domain/chat"
)

// ConversationHeader names the request header that selects a conversation.
const ConversationHeader = "X-Conversation-ID"

const maxConversationIDLen = 128

// Conversation injects the conversation id from ConversationHeader into the
// request context. A missing header selects chat.DefaultConversationID.
// The id is echoed back on the response.
func Conversation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(ConversationHeader))
		if id == "" {
			id = chat.DefaultConversationID
		}
		if len(id) > maxConversationIDLen || strings.ContainsAny(id, " \t\r\n/") {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid conversation id"})
			return
		}

		w.Header().Set(ConversationHeader, id)
		ctx := ctxkeys.WithValue(r.Context(), ctxkeys.ConversationID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
