package conversation

import (
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/samber/lo"
)

// ErrEmptyTurn is returned when a turn without content is appended.
var ErrEmptyTurn = errors.New("conversation: turn has no content")

// History is the append-only turn log of one conversation.
// Reset is the only mutation besides Append.
type History struct {
	mu    sync.RWMutex
	turns []Turn
}

// NewHistory returns an empty History.
func NewHistory() *History {
	return &History{}
}

// Append adds a turn at the end of the log.
func (h *History) Append(t Turn) error {
	if len(t.Content) == 0 {
		return ErrEmptyTurn
	}
	t.Content = slices.Clone(t.Content)

	h.mu.Lock()
	h.turns = append(h.turns, t)
	h.mu.Unlock()
	return nil
}

// Len returns the number of turns.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.turns)
}

// Turns returns a copy of the log in order.
func (h *History) Turns() []Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Turn, len(h.turns))
	for i, t := range h.turns {
		out[i] = Turn{Role: t.Role, Content: slices.Clone(t.Content)}
	}
	return out
}

// Last returns the newest turn, or false when the log is empty.
func (h *History) Last() (Turn, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.turns) == 0 {
		return Turn{}, false
	}
	t := h.turns[len(h.turns)-1]
	return Turn{Role: t.Role, Content: slices.Clone(t.Content)}, true
}

// Deduplicated returns the log with repeated turns removed, keeping the
// first occurrence. Two turns are equal when role and rendered text match.
// The newest turn always stays last, so a payload built from the result
// still ends with the message being answered.
func (h *History) Deduplicated() []Turn {
	turns := h.Turns()
	if len(turns) < 2 {
		return turns
	}
	last := turns[len(turns)-1]
	lastKey := dedupeKey(last)
	prior := lo.Reject(lo.UniqBy(turns[:len(turns)-1], dedupeKey), func(t Turn, _ int) bool {
		return dedupeKey(t) == lastKey
	})
	return append(prior, last)
}

// Reset drops every turn.
func (h *History) Reset() {
	h.mu.Lock()
	h.turns = nil
	h.mu.Unlock()
}

func dedupeKey(t Turn) string {
	var b strings.Builder
	b.WriteString(string(t.Role))
	for _, c := range t.Content {
		b.WriteByte(0)
		switch c.Kind {
		case BlockImage:
			b.WriteString(c.DataURI())
		default:
			b.WriteString(c.Text)
		}
	}
	return b.String()
}
