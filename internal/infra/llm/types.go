// Package llm defines the model-agnostic LLM provider abstraction.
// All types here are shared between the provider interfaces and adapters.
package llm

import "strings"

// Mode tags how a provider keeps conversation state.
type Mode string

const (
	// ModeOneShot providers receive the whole conversation on every call.
	ModeOneShot Mode = "one_shot"
	// ModeSession providers keep history server-side in an assistant thread.
	ModeSession Mode = "session"
)

// PartKind tags the variant carried by a Part.
type PartKind string

const (
	PartText  PartKind = "text"
	PartImage PartKind = "image"
)

// Part is one piece of message content.
type Part struct {
	Kind      PartKind
	Text      string
	MediaType string // images only
	Data      string // base64, images only
}

// TextPart builds a text Part.
func TextPart(s string) Part { return Part{Kind: PartText, Text: s} }

// ImagePart builds an image Part from base64 data.
func ImagePart(mediaType, data string) Part {
	return Part{Kind: PartImage, MediaType: mediaType, Data: data}
}

// DataURI renders an image part as a data URI.
func (p Part) DataURI() string {
	return "data:" + p.MediaType + ";base64," + p.Data
}

// Message represents a single turn in a conversation (role + content parts).
type Message struct {
	Role  string // "system" | "user" | "assistant"
	Parts []Part
}

// Text joins the text parts of the message with blank lines.
func (m Message) Text() string {
	var texts []string
	for _, p := range m.Parts {
		if p.Kind == PartText {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n\n")
}

// Images returns the image parts of the message.
func (m Message) Images() []Part {
	var out []Part
	for _, p := range m.Parts {
		if p.Kind == PartImage {
			out = append(out, p)
		}
	}
	return out
}

// ChatRequest is the input for a non-streaming chat completion.
type ChatRequest struct {
	// Model overrides the provider default when non-empty.
	Model       string
	Messages    []Message
	Temperature float32
	MaxTokens   int
}

// ChatResponse is the output from a non-streaming chat completion.
type ChatResponse struct {
	Content    string // The assistant message text.
	StopReason string
	Tokens     int // Total tokens consumed (prompt + completion), when reported.
}

// ModelMeta describes the model / provider identity.
type ModelMeta struct {
	ID        string
	Provider  string
	Mode      Mode
	MaxTokens int
}

// AssistantSpec configures the assistant created for session providers.
type AssistantSpec struct {
	Model        string
	Name         string
	Instructions string
}

// FileUpload is a raw attachment sent to a session provider.
type FileUpload struct {
	Name string
	Data []byte
}

// ThreadMessage is the newest user turn posted to a thread.
type ThreadMessage struct {
	Text    string
	Uploads []FileUpload
}

// SessionIDs are the provider-side handles of one conversation.
type SessionIDs struct {
	AssistantID string
	ThreadID    string
}

// RunStatus is the lifecycle state of an assistant run.
type RunStatus string

const (
	RunQueued         RunStatus = "queued"
	RunInProgress     RunStatus = "in_progress"
	RunRequiresAction RunStatus = "requires_action"
	RunCancelling     RunStatus = "cancelling"
	RunCompleted      RunStatus = "completed"
	RunFailed         RunStatus = "failed"
	RunCancelled      RunStatus = "cancelled"
	RunExpired        RunStatus = "expired"
	RunIncomplete     RunStatus = "incomplete"
)

// Terminal reports whether polling can stop.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunCompleted, RunFailed, RunCancelled, RunExpired, RunIncomplete, RunRequiresAction:
		return true
	}
	return false
}

// Run is a snapshot of a run's state.
type Run struct {
	ID        string
	Status    RunStatus
	LastError string
}
