// Handler helper functions shared by every endpoint
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/matiasleandrokruk/parley/internal/api/ctxkeys"
	"github.com/matiasleandrokruk/parley/internal/domain/chat"
)

const (
	headerContentType = "Content-Type"
	mimeJSON          = "application/json"

	// maxBodyBytes bounds request bodies; attachments arrive inline as base64.
	maxBodyBytes = 32 << 20

	defaultEventLimit = 50
	maxEventLimit     = 500
)

// conversationID retrieves conversation_id from context, falling back to the
// default conversation when the middleware did not run.
func conversationID(r *http.Request) string {
	id, ok := r.Context().Value(ctxkeys.ConversationID).(string)
	if !ok || id == "" {
		return chat.DefaultConversationID
	}
	return id
}

// decodeJSON reads a bounded JSON body into dst. An empty body leaves dst
// untouched when allowEmpty is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil {
		return nil
	}
	if allowEmpty && errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("decode request body: %w", err)
}

// parseLimit extracts and clamps the limit query parameter.
func parseLimit(r *http.Request) int {
	limit := defaultEventLimit
	if lim, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && lim > 0 {
		if lim > maxEventLimit {
			lim = maxEventLimit
		}
		limit = lim
	}
	return limit
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set(headerContentType, mimeJSON)
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set(headerContentType, mimeJSON)
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		http.Error(w, `{"error":"failed to encode error response"}`, http.StatusInternalServerError)
	}
}
