package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/matiasleandrokruk/parley/internal/domain/chat"
	"github.com/matiasleandrokruk/parley/internal/domain/conversation"
	"github.com/matiasleandrokruk/parley/internal/domain/preview"
	"github.com/matiasleandrokruk/parley/internal/infra/llm"
)

// Conversation is the per-conversation surface the chat endpoints drive.
// *chat.Orchestrator satisfies it.
type Conversation interface {
	ID() string
	SendTurn(ctx context.Context, in chat.TurnInput) (string, error)
	SetModel(ctx context.Context, model string) error
	ExportConversation() string
	NewConversation()
	ActiveModel() llm.ModelSpec
}

// Conversations resolves conversation ids. Get creates unknown
// conversations; Lookup does not and is used by read-only routes.
type Conversations interface {
	Get(id string) (Conversation, error)
	Lookup(id string) (Conversation, bool)
	Create() (Conversation, error)
	DefaultModel() string
}

type ChatHandler struct {
	convs Conversations
	log   logrus.FieldLogger
}

func NewChatHandler(convs Conversations, log logrus.FieldLogger) *ChatHandler {
	return &ChatHandler{convs: convs, log: log}
}

type chatRequest struct {
	Message string               `json:"message"`
	Files   []preview.Attachment `json:"files"`
	Model   string               `json:"model,omitempty"`
}

type switchModelRequest struct {
	LLM string `json:"llm"`
}

type newConversationRequest struct {
	// Fresh starts a conversation under a new id instead of resetting the current one.
	Fresh bool `json:"fresh"`
}

// Chat handles POST /chat.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	conv, ok := h.conversation(w, r)
	if !ok {
		return
	}
	reply, err := conv.SendTurn(r.Context(), chat.TurnInput{
		Text:        req.Message,
		Attachments: req.Files,
		Model:       strings.TrimSpace(req.Model),
	})
	if err != nil {
		writeJSON(w, statusForError(err), map[string]string{"error": err.Error(), "kind": errorKind(err)})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"response": reply})
}

// NewConversation handles POST /new_conversation.
func (h *ChatHandler) NewConversation(w http.ResponseWriter, r *http.Request) {
	var req newConversationRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id := conversationID(r)
	if req.Fresh {
		created, err := h.convs.Create()
		if err != nil {
			h.log.WithError(err).Error("create conversation failed")
			writeError(w, http.StatusInternalServerError, "failed to create conversation")
			return
		}
		id = created.ID()
	} else if current, ok := h.convs.Lookup(id); ok {
		current.NewConversation()
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message":        "New conversation started",
		"conversationId": id,
	})
}

// ExportChat handles GET /export_chat. An unknown conversation exports as
// empty text.
func (h *ChatHandler) ExportChat(w http.ResponseWriter, r *http.Request) {
	export := ""
	if conv, ok := h.convs.Lookup(conversationID(r)); ok {
		export = conv.ExportConversation()
	}
	writeJSON(w, http.StatusOK, map[string]string{"export": export})
}

// SwitchLLM handles POST /switch_llm. A provisioning failure for session
// models is logged but the switch stands, so the response is still 200.
func (h *ChatHandler) SwitchLLM(w http.ResponseWriter, r *http.Request) {
	var req switchModelRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	model := strings.TrimSpace(req.LLM)
	if model == "" {
		writeError(w, http.StatusBadRequest, "llm is required")
		return
	}

	conv, ok := h.conversation(w, r)
	if !ok {
		return
	}
	if err := conv.SetModel(r.Context(), model); err != nil {
		if errors.Is(err, chat.ErrUnsupportedModel) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.log.WithError(err).WithField("model", model).Warn("model selected, session provisioning deferred")
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Switched to " + model})
}

func (h *ChatHandler) conversation(w http.ResponseWriter, r *http.Request) (Conversation, bool) {
	conv, err := h.convs.Get(conversationID(r))
	if err != nil {
		h.log.WithError(err).Error("open conversation failed")
		writeError(w, http.StatusInternalServerError, "failed to open conversation")
		return nil, false
	}
	return conv, true
}

// statusForError maps turn failures onto HTTP statuses: caller mistakes
// are 400, everything else is 500.
func statusForError(err error) int {
	if errors.Is(err, chat.ErrUnsupportedModel) || errors.Is(err, conversation.ErrEmptyTurn) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// errorKind names the failure class reported alongside the message.
func errorKind(err error) string {
	switch {
	case errors.Is(err, chat.ErrUnsupportedModel):
		return "unsupported_model"
	case errors.Is(err, conversation.ErrEmptyTurn):
		return "empty_turn"
	case errors.Is(err, llm.ErrTimeout):
		return "timeout"
	case errors.Is(err, llm.ErrRunFailed):
		return "run_failed"
	case errors.Is(err, llm.ErrTransport):
		return "transport"
	case errors.Is(err, llm.ErrNotConfigured):
		return "not_configured"
	case errors.Is(err, chat.ErrEmptyReply):
		return "empty_reply"
	default:
		return "internal"
	}
}
