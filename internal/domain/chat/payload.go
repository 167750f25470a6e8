package chat

import (
	"strings"

	"github.com/samber/lo"

	"github.com/matiasleandrokruk/parley/internal/domain/conversation"
	"github.com/matiasleandrokruk/parley/internal/domain/preview"
	"github.com/matiasleandrokruk/parley/internal/infra/llm"
)

// oneShotMessages converts the conversation into provider messages.
// With inline set, attachment blocks are folded into the turn text instead
// of being sent as separate parts.
func oneShotMessages(turns []conversation.Turn, inline bool) []llm.Message {
	return lo.Map(turns, func(t conversation.Turn, _ int) llm.Message {
		if inline && len(t.Attachments()) > 0 {
			return llm.Message{Role: string(t.Role), Parts: []llm.Part{llm.TextPart(inlineText(t))}}
		}
		parts := lo.Map(t.Content, func(b conversation.ContentBlock, _ int) llm.Part {
			if b.Kind == conversation.BlockImage {
				return llm.ImagePart(b.MediaType, b.Data)
			}
			return llm.TextPart(b.Text)
		})
		return llm.Message{Role: string(t.Role), Parts: parts}
	})
}

// inlineText renders the turn as its authored text followed by an
// "Attached files" section listing every attachment.
func inlineText(t conversation.Turn) string {
	files := lo.Map(t.Attachments(), func(b conversation.ContentBlock, _ int) string {
		content := b.Text
		if b.Kind == conversation.BlockImage {
			content = b.DataURI()
		}
		return "File: " + b.Source + "\nContent: " + content
	})
	section := "Attached files:\n" + strings.Join(files, "\n")
	text := t.AuthoredText()
	if text == "" {
		return section
	}
	return text + "\n\n" + section
}

// threadMessage builds the newest-turn message posted to a session
// provider. Uploads carry the original attachment bytes; attachments that
// cannot be decoded are left out here and logged by the caller.
func threadMessage(t conversation.Turn, uploads []llm.FileUpload) llm.ThreadMessage {
	text := t.AuthoredText()
	if text == "" {
		text = t.Text()
	}
	if text == "" {
		text = conversation.ImagePlaceholder
	}
	return llm.ThreadMessage{Text: text, Uploads: uploads}
}

// uploadName picks the file name sent to the provider.
func uploadName(att preview.Attachment) string {
	if att.Name != "" {
		return att.Name
	}
	return "attachment"
}
