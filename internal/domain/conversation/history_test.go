package conversation

import (
	"errors"
	"testing"
)

func userText(s string) Turn {
	return Turn{Role: RoleUser, Content: []ContentBlock{TextBlock(s)}}
}

func assistantText(s string) Turn {
	return Turn{Role: RoleAssistant, Content: []ContentBlock{TextBlock(s)}}
}

func TestHistory_Append_KeepsOrder(t *testing.T) {
	t.Parallel()

	h := NewHistory()
	for _, turn := range []Turn{userText("a"), assistantText("b"), userText("c")} {
		if err := h.Append(turn); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	got := h.Turns()
	if len(got) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(got))
	}
	want := []string{"a", "b", "c"}
	for i, w := range want {
		if got[i].Text() != w {
			t.Errorf("turn %d: expected %q, got %q", i, w, got[i].Text())
		}
	}
}

func TestHistory_Append_EmptyTurn_Rejected(t *testing.T) {
	t.Parallel()

	h := NewHistory()
	err := h.Append(Turn{Role: RoleUser})
	if !errors.Is(err, ErrEmptyTurn) {
		t.Fatalf("expected ErrEmptyTurn, got %v", err)
	}
	if h.Len() != 0 {
		t.Errorf("expected empty history, got %d turns", h.Len())
	}
}

func TestHistory_Turns_ReturnsCopy(t *testing.T) {
	t.Parallel()

	h := NewHistory()
	_ = h.Append(userText("original"))

	snapshot := h.Turns()
	snapshot[0].Content[0].Text = "mutated"

	if got := h.Turns()[0].Text(); got != "original" {
		t.Errorf("history was mutated through snapshot: %q", got)
	}
}

func TestHistory_Deduplicated_KeepsFirstOccurrence(t *testing.T) {
	t.Parallel()

	h := NewHistory()
	_ = h.Append(userText("hello"))
	_ = h.Append(assistantText("hi"))
	_ = h.Append(userText("hello"))
	_ = h.Append(assistantText("hello"))

	got := h.Deduplicated()
	if len(got) != 3 {
		t.Fatalf("expected 3 unique turns, got %d", len(got))
	}
	if got[2].Role != RoleAssistant || got[2].Text() != "hello" {
		t.Errorf("assistant 'hello' must survive (role is part of the key), got %+v", got[2])
	}
	if h.Len() != 4 {
		t.Errorf("Deduplicated must not mutate the log, got %d turns", h.Len())
	}
}

func TestHistory_Deduplicated_RepeatedNewestTurnStaysLast(t *testing.T) {
	t.Parallel()

	h := NewHistory()
	_ = h.Append(userText("yes"))
	_ = h.Append(assistantText("ok"))
	_ = h.Append(userText("yes"))

	got := h.Deduplicated()
	if len(got) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(got))
	}
	if got[0].Role != RoleAssistant || got[1].Role != RoleUser || got[1].Text() != "yes" {
		t.Errorf("newest user turn must be last, got %+v", got)
	}
}

func TestHistory_Reset_Empties(t *testing.T) {
	t.Parallel()

	h := NewHistory()
	_ = h.Append(userText("a"))
	h.Reset()

	if h.Len() != 0 {
		t.Errorf("expected empty history after Reset, got %d", h.Len())
	}
	if _, ok := h.Last(); ok {
		t.Error("Last should report false on an empty history")
	}
}

func TestTurn_AuthoredText_SkipsAttachments(t *testing.T) {
	t.Parallel()

	preview := TextBlock("Content of notes.txt:\nsecret")
	preview.Source = "notes.txt"
	turn := Turn{Role: RoleUser, Content: []ContentBlock{TextBlock("summarize"), preview}}

	if got := turn.AuthoredText(); got != "summarize" {
		t.Errorf("expected only authored text, got %q", got)
	}
	if n := len(turn.Attachments()); n != 1 {
		t.Errorf("expected 1 attachment block, got %d", n)
	}
}
