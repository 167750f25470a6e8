package chat

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultConversationID is used when a caller does not name a conversation.
const DefaultConversationID = "default"

// DefaultMaxConversations bounds a Manager when Config leaves it unset.
const DefaultMaxConversations = 1000

// Manager maps conversation ids to orchestrators, creating them on first use.
// Past MaxConversations the least recently used conversation is dropped;
// the default conversation is never dropped.
type Manager struct {
	mu    sync.RWMutex
	cfg   Config
	deps  Deps
	max   int
	convs map[string]*managed
	now   func() time.Time
}

type managed struct {
	o        *Orchestrator
	lastUsed atomic.Int64 // unix nanos
}

func (e *managed) touch(t time.Time) { e.lastUsed.Store(t.UnixNano()) }

// NewManager returns an empty Manager.
func NewManager(cfg Config, deps Deps) *Manager {
	if deps.Log == nil {
		deps.Log = logrus.StandardLogger()
	}
	limit := cfg.MaxConversations
	if limit <= 0 {
		limit = DefaultMaxConversations
	}
	return &Manager{cfg: cfg, deps: deps, max: limit, convs: make(map[string]*managed), now: time.Now}
}

// Get returns the orchestrator for id, creating it if needed.
// An empty id selects DefaultConversationID.
func (m *Manager) Get(id string) (*Orchestrator, error) {
	if id == "" {
		id = DefaultConversationID
	}
	if o, ok := m.Lookup(id); ok {
		return o, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.convs[id]; ok {
		e.touch(m.now())
		return e.o, nil
	}
	o, err := NewOrchestrator(id, m.cfg, m.deps)
	if err != nil {
		return nil, err
	}
	for len(m.convs) >= m.max {
		if !m.evictOldest() {
			break
		}
	}
	e := &managed{o: o}
	e.touch(m.now())
	m.convs[id] = e
	return o, nil
}

// Lookup returns the orchestrator for id without creating one.
// An empty id selects DefaultConversationID.
func (m *Manager) Lookup(id string) (*Orchestrator, bool) {
	if id == "" {
		id = DefaultConversationID
	}
	m.mu.RLock()
	e, ok := m.convs[id]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	e.touch(m.now())
	return e.o, true
}

// Create starts a conversation under a fresh UUIDv7 id.
func (m *Manager) Create() (*Orchestrator, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	return m.Get(id.String())
}

// DefaultModel returns the model id a new conversation starts with.
func (m *Manager) DefaultModel() string {
	if m.deps.Router == nil {
		return m.cfg.DefaultModel
	}
	catalog := m.deps.Router.Catalog()
	name := m.cfg.DefaultModel
	if name == "" {
		name = catalog.Default
	}
	if spec, ok := catalog.Lookup(name); ok {
		return spec.ID
	}
	return name
}

// IDs lists the known conversation ids, sorted.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.convs))
	for id := range m.convs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// evictOldest drops the least recently used conversation other than the
// default one. Callers hold m.mu.
func (m *Manager) evictOldest() bool {
	var (
		oldestID string
		oldest   int64
	)
	for id, e := range m.convs {
		if id == DefaultConversationID {
			continue
		}
		if t := e.lastUsed.Load(); oldestID == "" || t < oldest {
			oldestID, oldest = id, t
		}
	}
	if oldestID == "" {
		return false
	}
	delete(m.convs, oldestID)
	m.deps.Log.WithField("conversation_id", oldestID).Info("conversation evicted")
	return true
}
