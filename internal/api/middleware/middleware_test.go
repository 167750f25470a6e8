package middleware_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/matiasleandrokruk/parley/internal/api/ctxkeys"
	"github.com/matiasleandrokruk/parley/internal/api/middleware"
)

// ===== HELPER =====

// nextHandler returns an http.Handler that sets called=true and records the context.
func nextHandler(called *bool, capturedCtx *context.Context) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		if capturedCtx != nil {
			*capturedCtx = r.Context()
		}
		w.WriteHeader(http.StatusOK)
	})
}

// ===== TESTS: CONVERSATION =====

func TestConversation_MissingHeader_UsesDefault(t *testing.T) {
	t.Parallel()

	var called bool
	var ctx context.Context
	rr := httptest.NewRecorder()
	middleware.Conversation(nextHandler(&called, &ctx)).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/export_chat", nil))

	if !called {
		t.Fatal("expected next handler to be called")
	}
	if got, _ := ctx.Value(ctxkeys.ConversationID).(string); got != "default" {
		t.Fatalf("expected default conversation, got %q", got)
	}
	if got := rr.Header().Get(middleware.ConversationHeader); got != "default" {
		t.Fatalf("expected echoed header, got %q", got)
	}
}

func TestConversation_HeaderIsInjected(t *testing.T) {
	t.Parallel()

	var called bool
	var ctx context.Context
	req := httptest.NewRequest(http.MethodPost, "/chat", nil)
	req.Header.Set(middleware.ConversationHeader, "  conv-42 ")
	middleware.Conversation(nextHandler(&called, &ctx)).ServeHTTP(httptest.NewRecorder(), req)

	if got, _ := ctx.Value(ctxkeys.ConversationID).(string); got != "conv-42" {
		t.Fatalf("expected conv-42, got %q", got)
	}
}

func TestConversation_InvalidHeader_Rejected(t *testing.T) {
	t.Parallel()

	for name, id := range map[string]string{
		"slash":    "a/b",
		"space":    "a b",
		"too long": strings.Repeat("x", 129),
	} {
		id := id
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			var called bool
			req := httptest.NewRequest(http.MethodPost, "/chat", nil)
			req.Header.Set(middleware.ConversationHeader, id)
			rr := httptest.NewRecorder()
			middleware.Conversation(nextHandler(&called, nil)).ServeHTTP(rr, req)

			if called {
				t.Fatal("next handler should not run")
			}
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rr.Code)
			}
		})
	}
}

// ===== TESTS: ACCESS LOG =====

func TestAccessLog_RecordsStatusAndIDs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.JSONFormatter{})

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.AccessLog(log))
	r.Use(middleware.Conversation)
	r.Get("/missing", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.WriteHeader(http.StatusInternalServerError)
	})

	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	req.Header.Set(middleware.ConversationHeader, "c7")
	r.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected one JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["status_code"] != float64(http.StatusNotFound) {
		t.Errorf("expected first status to be logged, got %v", entry["status_code"])
	}
	if entry["level"] != "warning" {
		t.Errorf("expected warning level, got %v", entry["level"])
	}
	if entry["conversation_id"] != "c7" {
		t.Errorf("expected conversation id, got %v", entry["conversation_id"])
	}
	if id, _ := entry["request_id"].(string); id == "" {
		t.Error("expected request id")
	}
}
