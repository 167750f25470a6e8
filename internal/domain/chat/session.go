package chat

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/matiasleandrokruk/parley/internal/infra/llm"
)

// Assistant defaults used when none are configured.
const (
	DefaultAssistantName         = "Chat Assistant"
	DefaultAssistantInstructions = "You are a helpful assistant. Use the attached files when they are relevant to the question."
)

// SessionManager owns the provider-side handles of one conversation:
// the assistant and the thread. Both are created lazily and at most once
// until Reset.
type SessionManager struct {
	mu       sync.Mutex
	provider llm.SessionProvider
	spec     llm.AssistantSpec
	ids      llm.SessionIDs
	log      logrus.FieldLogger
}

// NewSessionManager returns a manager with no provider bound.
func NewSessionManager(spec llm.AssistantSpec, log logrus.FieldLogger) *SessionManager {
	if spec.Name == "" {
		spec.Name = DefaultAssistantName
	}
	if spec.Instructions == "" {
		spec.Instructions = DefaultAssistantInstructions
	}
	return &SessionManager{spec: spec, log: log}
}

// Bind selects the provider and model future sessions are created against.
// A new model drops the cached assistant, which is bound to a model. A new
// provider drops the thread as well.
func (s *SessionManager) Bind(p llm.SessionProvider, model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.provider != p {
		s.ids = llm.SessionIDs{}
	} else if s.spec.Model != model {
		s.ids.AssistantID = ""
	}
	s.provider = p
	s.spec.Model = model
}

// Provider returns the bound provider, or nil.
func (s *SessionManager) Provider() llm.SessionProvider {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.provider
}

// EnsureAssistant returns the cached assistant id, creating the assistant on first use.
func (s *SessionManager) EnsureAssistant(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureAssistant(ctx)
}

// EnsureThread returns the cached thread id, creating the thread on first use.
func (s *SessionManager) EnsureThread(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureThread(ctx)
}

// Ensure provisions both handles and returns them.
func (s *SessionManager) Ensure(ctx context.Context) (llm.SessionIDs, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.ensureAssistant(ctx); err != nil {
		return llm.SessionIDs{}, err
	}
	if _, err := s.ensureThread(ctx); err != nil {
		return llm.SessionIDs{}, err
	}
	return s.ids, nil
}

// IDs returns the cached handles; empty fields have not been created yet.
func (s *SessionManager) IDs() llm.SessionIDs {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ids
}

// Reset forgets both handles. The provider binding is kept.
func (s *SessionManager) Reset() {
	s.mu.Lock()
	s.ids = llm.SessionIDs{}
	s.mu.Unlock()
}

func (s *SessionManager) ensureAssistant(ctx context.Context) (string, error) {
	if s.ids.AssistantID != "" {
		return s.ids.AssistantID, nil
	}
	if s.provider == nil {
		return "", ErrNoSession
	}
	id, err := s.provider.CreateAssistant(ctx, s.spec)
	if err != nil {
		return "", fmt.Errorf("create assistant: %w", err)
	}
	s.ids.AssistantID = id
	s.log.WithFields(logrus.Fields{"assistant_id": id, "model": s.spec.Model}).Info("assistant created")
	return id, nil
}

func (s *SessionManager) ensureThread(ctx context.Context) (string, error) {
	if s.ids.ThreadID != "" {
		return s.ids.ThreadID, nil
	}
	if s.provider == nil {
		return "", ErrNoSession
	}
	id, err := s.provider.CreateThread(ctx)
	if err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}
	s.ids.ThreadID = id
	s.log.WithField("thread_id", id).Info("thread created")
	return id, nil
}
