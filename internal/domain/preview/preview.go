// Package preview turns uploaded files into short text or image blocks that
// can be folded into a chat turn.
//
// Supported kinds:
//   - image: re-encoded to JPEG, returned as an image block
//   - csv:   first rows rendered as indented JSON
//   - text, code: decoded and truncated to a character budget
//
// Preview never panics: malformed payloads yield a nil block and an error
// wrapping ErrAttachment, which callers log and skip.
package preview

import (
	"encoding/base64"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/matiasleandrokruk/parley/internal/domain/conversation"
)

// Kind is the declared type of an attachment.
type Kind string

const (
	KindImage Kind = "image"
	KindCSV   Kind = "csv"
	KindText  Kind = "text"
	KindCode  Kind = "code"
)

const (
	DefaultCSVRowLimit   = 2000
	DefaultTextCharLimit = 1_000_000
	// DefaultMaxPixels caps width*height of an image before it is decoded.
	DefaultMaxPixels = 25_000_000
)

var (
	// ErrAttachment marks every failure to preview a single attachment.
	ErrAttachment = errors.New("attachment processing failure")
	// ErrUnsupportedKind is returned for kinds Preview cannot handle.
	ErrUnsupportedKind = errors.New("unsupported attachment kind")
	// ErrEmptyPayload is returned when an attachment carries no data.
	ErrEmptyPayload = errors.New("attachment has no data")
	// ErrImageTooLarge is returned when an image declares more than MaxPixels.
	ErrImageTooLarge = errors.New("image dimensions exceed limit")
)

// Attachment is a user-supplied file as received from the caller.
// Data is base64, a data URI, or (for text kinds) plain text.
type Attachment struct {
	Name string `json:"name"`
	Kind Kind   `json:"type"`
	Data string `json:"data"`
}

// Config bounds the size of generated previews.
type Config struct {
	CSVRowLimit   int
	TextCharLimit int
	MaxPixels     int
}

// DefaultConfig returns the limits used when none are configured.
func DefaultConfig() Config {
	return Config{CSVRowLimit: DefaultCSVRowLimit, TextCharLimit: DefaultTextCharLimit, MaxPixels: DefaultMaxPixels}
}

// Adapter builds previews. The zero value is not usable; call NewAdapter.
type Adapter struct {
	cfg Config
}

// NewAdapter creates an Adapter; non-positive limits fall back to defaults.
func NewAdapter(cfg Config) *Adapter {
	if cfg.CSVRowLimit <= 0 {
		cfg.CSVRowLimit = DefaultCSVRowLimit
	}
	if cfg.TextCharLimit <= 0 {
		cfg.TextCharLimit = DefaultTextCharLimit
	}
	if cfg.MaxPixels <= 0 {
		cfg.MaxPixels = DefaultMaxPixels
	}
	return &Adapter{cfg: cfg}
}

// Preview converts att into a content block tagged with the attachment name.
func (a *Adapter) Preview(att Attachment) (block *conversation.ContentBlock, err error) {
	defer func() {
		if r := recover(); r != nil {
			block, err = nil, fmt.Errorf("%w: %s: panic: %v", ErrAttachment, displayName(att), r)
		}
	}()

	var b conversation.ContentBlock
	switch ResolveKind(att) {
	case KindImage:
		b, err = a.previewImage(att)
	case KindCSV:
		b, err = a.previewCSV(att)
	case KindText, KindCode:
		b, err = a.previewText(att)
	default:
		err = fmt.Errorf("%w %q", ErrUnsupportedKind, att.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrAttachment, displayName(att), err)
	}
	b.Source = displayName(att)
	return &b, nil
}

// Decode returns the raw bytes carried by att: data URI prefixes are
// stripped and base64 is decoded. Text kinds fall back to the literal
// payload when it is not base64 encoded UTF-8.
func (a *Adapter) Decode(att Attachment) ([]byte, error) {
	payload := stripDataURI(att.Data)
	if strings.TrimSpace(payload) == "" {
		return nil, ErrEmptyPayload
	}
	raw, err := decodeBase64(payload)
	switch ResolveKind(att) {
	case KindImage:
		if err != nil {
			return nil, fmt.Errorf("decode base64: %w", err)
		}
		return raw, nil
	default:
		if err != nil || !utf8.Valid(raw) {
			return []byte(payload), nil
		}
		return raw, nil
	}
}

// ResolveKind returns the declared kind, or infers one from the file
// extension when the caller left it empty.
func ResolveKind(att Attachment) Kind {
	if att.Kind != "" {
		return Kind(strings.ToLower(string(att.Kind)))
	}
	if strings.HasPrefix(att.Data, "data:image/") {
		return KindImage
	}
	switch strings.ToLower(filepath.Ext(att.Name)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp":
		return KindImage
	case ".csv":
		return KindCSV
	case ".txt", ".md", ".log", ".json", ".yaml", ".yml", ".xml":
		return KindText
	case ".go", ".py", ".js", ".ts", ".java", ".c", ".h", ".cpp", ".rs", ".rb", ".sh", ".sql", ".html", ".css":
		return KindCode
	}
	return ""
}

func displayName(att Attachment) string {
	if att.Name == "" {
		return "Unnamed file"
	}
	return att.Name
}

// stripDataURI removes a "data:<mime>;base64," prefix if present.
func stripDataURI(s string) string {
	if !strings.HasPrefix(s, "data:") {
		return s
	}
	if _, after, ok := strings.Cut(s, ","); ok {
		return after
	}
	return s
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	raw, err := base64.StdEncoding.DecodeString(s)
	if err == nil {
		return raw, nil
	}
	// browsers occasionally drop padding
	if raw, rawErr := base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "=")); rawErr == nil {
		return raw, nil
	}
	return nil, err
}
