package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const providerAnthropic = "anthropic"

// AnthropicProvider implements LLMProvider on the Messages API.
// Messages carry structured text and base64 image blocks.
type AnthropicProvider struct {
	client    anthropic.Client
	apiKey    string
	model     string
	maxTokens int
}

// NewAnthropicProvider builds a provider for model. baseURL may be empty.
// SDK retries are disabled; a failed call surfaces immediately.
func NewAnthropicProvider(apiKey, baseURL, model string, maxTokens int) *AnthropicProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &AnthropicProvider{
		client:    anthropic.NewClient(opts...),
		apiKey:    apiKey,
		model:     model,
		maxTokens: maxTokens,
	}
}

// ChatCompletion sends the conversation and returns the first text block of the reply.
func (p *AnthropicProvider) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if p.apiKey == "" {
		return nil, &ProviderError{Provider: providerAnthropic, Op: "messages", Kind: ErrNotConfigured}
	}
	model := req.Model
	if model == "" {
		model = p.model
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.maxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  toAnthropicMessages(req.Messages),
	}
	if system := systemPrompt(req.Messages); system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return nil, transportErr(providerAnthropic, "messages", apiErr.StatusCode, err)
		}
		return nil, transportErr(providerAnthropic, "messages", 0, err)
	}

	for _, block := range msg.Content {
		if block.Type == "text" {
			return &ChatResponse{
				Content:    block.Text,
				StopReason: string(msg.StopReason),
				Tokens:     int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
			}, nil
		}
	}
	return nil, malformed(providerAnthropic, "messages", "no text block in content")
}

func toAnthropicMessages(msgs []Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == "system" {
			continue
		}
		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(m.Parts))
		for _, part := range m.Parts {
			switch part.Kind {
			case PartImage:
				blocks = append(blocks, anthropic.NewImageBlockBase64(part.MediaType, part.Data))
			default:
				blocks = append(blocks, anthropic.NewTextBlock(part.Text))
			}
		}
		if m.Role == "assistant" {
			out = append(out, anthropic.NewAssistantMessage(blocks...))
			continue
		}
		out = append(out, anthropic.NewUserMessage(blocks...))
	}
	return out
}

// systemPrompt joins the text of every system message.
func systemPrompt(msgs []Message) string {
	var parts []string
	for _, m := range msgs {
		if m.Role == "system" {
			parts = append(parts, m.Text())
		}
	}
	return strings.Join(parts, "\n\n")
}

func (p *AnthropicProvider) ModelInfo() ModelMeta {
	return ModelMeta{ID: p.model, Provider: providerAnthropic, Mode: ModeOneShot, MaxTokens: p.maxTokens}
}

// HealthCheck only verifies that an API key is configured.
func (p *AnthropicProvider) HealthCheck(_ context.Context) error {
	if p.apiKey == "" {
		return &ProviderError{Provider: providerAnthropic, Op: "healthcheck", Kind: ErrNotConfigured}
	}
	return nil
}
