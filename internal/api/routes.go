// Route registration and go-chi router setup
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/matiasleandrokruk/parley/internal/api/handlers"
	apmiddleware "github.com/matiasleandrokruk/parley/internal/api/middleware"
	"github.com/matiasleandrokruk/parley/internal/domain/chat"
)

// Deps are the services the HTTP surface is built on.
type Deps struct {
	Conversations *chat.Manager
	Providers     handlers.ProviderRegistry
	Turns         handlers.TurnLog
	Log           logrus.FieldLogger
}

// NewRouter creates and configures a new chi router with all routes.
func NewRouter(deps Deps) *chi.Mux {
	log := deps.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	convs := managerConversations{m: deps.Conversations}

	r := chi.NewRouter()

	// Global middleware (runs on all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apmiddleware.AccessLog(log))
	r.Use(middleware.Recoverer)

	// Health check, used by load balancers and orchestrators
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`)) //nolint:errcheck
	})

	modelHandler := handlers.NewModelHandler(deps.Providers, convs, log)
	r.Get("/health/providers", modelHandler.ProviderHealth)

	if deps.Turns != nil {
		eventHandler := handlers.NewEventHandler(deps.Turns, log)
		r.Get("/events", eventHandler.ListEvents) // GET /events?limit=&conversation=
	}

	// Conversation-scoped routes, selected by the X-Conversation-ID header
	chatHandler := handlers.NewChatHandler(convs, log)
	r.Group(func(r chi.Router) {
		r.Use(apmiddleware.Conversation)

		r.Post("/chat", chatHandler.Chat)
		r.Post("/new_conversation", chatHandler.NewConversation)
		r.Get("/export_chat", chatHandler.ExportChat)
		r.Post("/switch_llm", chatHandler.SwitchLLM)
		r.Get("/models", modelHandler.ListModels)
	})

	return r
}

// managerConversations adapts chat.Manager to handlers.Conversations.
type managerConversations struct {
	m *chat.Manager
}

func (c managerConversations) Get(id string) (handlers.Conversation, error) {
	o, err := c.m.Get(id)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (c managerConversations) Lookup(id string) (handlers.Conversation, bool) {
	o, ok := c.m.Lookup(id)
	if !ok {
		return nil, false
	}
	return o, true
}

func (c managerConversations) DefaultModel() string { return c.m.DefaultModel() }

func (c managerConversations) Create() (handlers.Conversation, error) {
	o, err := c.m.Create()
	if err != nil {
		return nil, err
	}
	return o, nil
}
