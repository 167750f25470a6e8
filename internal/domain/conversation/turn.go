// Package conversation holds the ordered turn log of a single chat and its
// plain-text export.
package conversation

import "strings"

// Role identifies who authored a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// BlockKind tags the variant carried by a ContentBlock.
type BlockKind string

const (
	BlockText  BlockKind = "text"
	BlockImage BlockKind = "image"
)

// ImagePlaceholder is how image blocks appear in exports and text-only payloads.
const ImagePlaceholder = "[Image uploaded]"

// ContentBlock is one unit of turn content: text, or a base64 image.
type ContentBlock struct {
	Kind      BlockKind `json:"kind"`
	Text      string    `json:"text,omitempty"`
	MediaType string    `json:"mediaType,omitempty"`
	Data      string    `json:"data,omitempty"` // base64, images only
	// Source is the attachment name the block was built from; empty for
	// text typed by the user.
	Source string `json:"source,omitempty"`
}

// TextBlock builds a user-authored text block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Kind: BlockText, Text: text}
}

// ImageBlock builds an image block from base64 data.
func ImageBlock(mediaType, data string) ContentBlock {
	return ContentBlock{Kind: BlockImage, MediaType: mediaType, Data: data}
}

// IsAttachment reports whether the block came from an uploaded file.
func (b ContentBlock) IsAttachment() bool {
	return b.Source != ""
}

// DataURI renders an image block as a data URI. Text blocks return "".
func (b ContentBlock) DataURI() string {
	if b.Kind != BlockImage {
		return ""
	}
	return "data:" + b.MediaType + ";base64," + b.Data
}

// Turn is one message of the conversation.
type Turn struct {
	Role    Role           `json:"role"`
	Content []ContentBlock `json:"content"`
}

// Text joins the text blocks of the turn with blank lines.
func (t Turn) Text() string {
	parts := make([]string, 0, len(t.Content))
	for _, b := range t.Content {
		if b.Kind == BlockText {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// AuthoredText joins only the blocks typed by the user, skipping attachment previews.
func (t Turn) AuthoredText() string {
	parts := make([]string, 0, len(t.Content))
	for _, b := range t.Content {
		if b.Kind == BlockText && !b.IsAttachment() {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Attachments returns the blocks that were built from uploaded files.
func (t Turn) Attachments() []ContentBlock {
	var out []ContentBlock
	for _, b := range t.Content {
		if b.IsAttachment() {
			out = append(out, b)
		}
	}
	return out
}
