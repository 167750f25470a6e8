// Package chat runs conversations against the configured LLM providers.
//
// An Orchestrator owns one conversation: its turn history, the selected
// model and, for session-based providers, the assistant and thread handles.
// Every operation on an Orchestrator is serialized. A Manager hands out one
// Orchestrator per conversation id.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/matiasleandrokruk/parley/internal/domain/conversation"
	"github.com/matiasleandrokruk/parley/internal/domain/preview"
	"github.com/matiasleandrokruk/parley/internal/infra/eventbus"
	"github.com/matiasleandrokruk/parley/internal/infra/llm"
)

// Config tunes conversation behavior. Zero values are usable.
type Config struct {
	// DefaultModel is selected for new conversations; empty means the catalog default.
	DefaultModel string
	// HistoryDedupe drops repeated turns from one-shot payloads.
	HistoryDedupe bool
	Assistant     llm.AssistantSpec
	Poll          llm.PollConfig
	// MaxConversations caps the conversations a Manager keeps; zero means
	// DefaultMaxConversations.
	MaxConversations int
}

// Deps are the collaborators shared by every conversation.
type Deps struct {
	Router   *llm.Router
	Previews *preview.Adapter
	Bus      Publisher // optional
	Log      logrus.FieldLogger
}

// TurnInput is one user message with its optional attachments and model override.
type TurnInput struct {
	Text        string
	Attachments []preview.Attachment
	Model       string
}

// Orchestrator runs one conversation.
type Orchestrator struct {
	mu       sync.Mutex
	id       string
	cfg      Config
	deps     Deps
	log      logrus.FieldLogger
	history  *conversation.History
	sessions *SessionManager
	route    llm.Route
}

// NewOrchestrator creates a conversation with the configured default model selected.
func NewOrchestrator(id string, cfg Config, deps Deps) (*Orchestrator, error) {
	if deps.Router == nil {
		return nil, errors.New("chat: router is required")
	}
	if deps.Previews == nil {
		deps.Previews = preview.NewAdapter(preview.DefaultConfig())
	}
	if deps.Log == nil {
		deps.Log = logrus.StandardLogger()
	}
	log := deps.Log.WithField("conversation_id", id)
	o := &Orchestrator{
		id:       id,
		cfg:      cfg,
		deps:     deps,
		log:      log,
		history:  conversation.NewHistory(),
		sessions: NewSessionManager(cfg.Assistant, log),
	}

	model := cfg.DefaultModel
	if model == "" {
		model = deps.Router.Catalog().Default
	}
	route, err := o.resolve(context.Background(), model)
	if err != nil {
		return nil, err
	}
	o.apply(route)
	return o, nil
}

// ID returns the conversation id.
func (o *Orchestrator) ID() string { return o.id }

// ActiveModel returns the catalog entry of the selected model.
func (o *Orchestrator) ActiveModel() llm.ModelSpec {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.route.Model
}

// Turns returns a snapshot of the conversation.
func (o *Orchestrator) Turns() []conversation.Turn {
	return o.history.Turns()
}

// Session returns the provider-side handles; both are empty for one-shot models.
func (o *Orchestrator) Session() llm.SessionIDs {
	return o.sessions.IDs()
}

// SendTurn appends the user turn, asks the active model for a reply,
// appends the reply and returns it. On failure the user turn stays in the
// conversation and no assistant turn is added.
func (o *Orchestrator) SendTurn(ctx context.Context, in TurnInput) (reply string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if in.Model != "" {
		if err := o.setModel(ctx, in.Model); err != nil {
			if errors.Is(err, ErrUnsupportedModel) {
				return "", err
			}
			o.log.WithError(err).Warn("session provisioning failed, retrying on dispatch")
		}
	}

	route := o.route
	session := route.Mode() == llm.ModeSession
	turn, uploads := o.composeTurn(in, session)
	if err := o.history.Append(turn); err != nil {
		return "", fmt.Errorf("send turn: %w", err)
	}

	start := time.Now()
	defer func() { o.publish(route, len(in.Attachments), reply, err, start) }()

	log := o.log.WithFields(logrus.Fields{"model": route.Model.ID, "provider": route.Model.Provider})
	if session {
		reply, err = o.dispatchSession(ctx, route, turn, uploads)
	} else {
		reply, err = o.dispatchOneShot(ctx, route)
	}
	if err != nil {
		log.WithError(err).Error("turn failed")
		return "", err
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		log.Warn("empty reply")
		return "", fmt.Errorf("%s: %w", route.Model.ID, ErrEmptyReply)
	}
	if err := o.history.Append(conversation.Turn{
		Role:    conversation.RoleAssistant,
		Content: []conversation.ContentBlock{conversation.TextBlock(reply)},
	}); err != nil {
		return "", fmt.Errorf("send turn: %w", err)
	}
	log.WithField("reply_chars", len(reply)).Debug("turn completed")
	return reply, nil
}

// SetModel switches the active model. Unknown models return
// ErrUnsupportedModel and leave the selection unchanged. Selecting a
// session model provisions its assistant and thread; a provisioning error
// is returned but the switch stands and creation is retried on the next turn.
func (o *Orchestrator) SetModel(ctx context.Context, model string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.setModel(ctx, model)
}

// ExportConversation renders the conversation as plain text.
func (o *Orchestrator) ExportConversation() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return conversation.Export(o.history.Turns())
}

// NewConversation clears the history and forgets the provider session.
// The selected model is kept.
func (o *Orchestrator) NewConversation() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.history.Reset()
	o.sessions.Reset()
	o.log.Info("conversation reset")
}

func (o *Orchestrator) setModel(ctx context.Context, model string) error {
	route, err := o.resolve(ctx, model)
	if err != nil {
		return err
	}
	o.apply(route)
	o.log.WithFields(logrus.Fields{"model": route.Model.ID, "mode": route.Mode()}).Info("model selected")
	if route.Mode() != llm.ModeSession {
		return nil
	}
	if _, err := o.sessions.Ensure(ctx); err != nil {
		return fmt.Errorf("provision %s: %w", route.Model.ID, err)
	}
	return nil
}

func (o *Orchestrator) resolve(ctx context.Context, model string) (llm.Route, error) {
	route, err := o.deps.Router.Route(ctx, model)
	if err != nil {
		if errors.Is(err, llm.ErrUnknownModel) {
			return llm.Route{}, fmt.Errorf("%w: %q", ErrUnsupportedModel, model)
		}
		return llm.Route{}, err
	}
	return route, nil
}

func (o *Orchestrator) apply(route llm.Route) {
	o.route = route
	if route.Mode() == llm.ModeSession {
		o.sessions.Bind(route.Session, route.Model.ID)
	}
}

// composeTurn builds the user turn from the typed text and the attachment
// previews. For session models the raw attachment bytes are returned as
// uploads too.
func (o *Orchestrator) composeTurn(in TurnInput, session bool) (conversation.Turn, []llm.FileUpload) {
	turn := conversation.Turn{Role: conversation.RoleUser}
	if strings.TrimSpace(in.Text) != "" {
		turn.Content = append(turn.Content, conversation.TextBlock(in.Text))
	}

	var uploads []llm.FileUpload
	for _, att := range in.Attachments {
		log := o.log.WithField("attachment", att.Name)
		block, err := o.deps.Previews.Preview(att)
		if err != nil {
			log.WithError(err).Warn("attachment skipped")
		} else {
			turn.Content = append(turn.Content, *block)
		}
		if !session {
			continue
		}
		raw, err := o.deps.Previews.Decode(att)
		if err != nil {
			log.WithError(err).Warn("attachment not uploaded")
			continue
		}
		uploads = append(uploads, llm.FileUpload{Name: uploadName(att), Data: raw})
	}
	return turn, uploads
}

func (o *Orchestrator) dispatchOneShot(ctx context.Context, route llm.Route) (string, error) {
	turns := o.history.Turns()
	if o.cfg.HistoryDedupe {
		turns = o.history.Deduplicated()
	}
	resp, err := route.OneShot.ChatCompletion(ctx, llm.ChatRequest{
		Model:     route.Model.ID,
		Messages:  oneShotMessages(turns, route.Model.InlineAttachments),
		MaxTokens: route.Model.MaxTokens,
	})
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", nil
	}
	return resp.Content, nil
}

func (o *Orchestrator) dispatchSession(ctx context.Context, route llm.Route, turn conversation.Turn, uploads []llm.FileUpload) (string, error) {
	ids, err := o.sessions.Ensure(ctx)
	if err != nil {
		return "", err
	}
	runner := llm.NewThreadRunner(route.Session, o.cfg.Poll, o.log)
	return runner.Run(ctx, ids, threadMessage(turn, uploads))
}

func (o *Orchestrator) publish(route llm.Route, attachments int, reply string, err error, start time.Time) {
	if o.deps.Bus == nil {
		return
	}
	evt := TurnEvent{
		ConversationID: o.id,
		Model:          route.Model.ID,
		Provider:       route.Model.Provider,
		Mode:           route.Mode(),
		Attachments:    attachments,
		Outcome:        OutcomeSuccess,
		ReplyChars:     len(reply),
		Latency:        time.Since(start),
		At:             time.Now().UTC(),
	}
	if err != nil {
		evt.Outcome = OutcomeError
		evt.Error = err.Error()
	}
	o.deps.Bus.Publish(eventbus.TopicTurnCompleted, evt)
}
