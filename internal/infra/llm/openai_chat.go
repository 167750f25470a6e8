package llm

import (
	"context"
	"errors"

	openai "github.com/sashabaranov/go-openai"
)

const providerOpenAI = "openai"

// newOpenAIClient builds a go-openai client; baseURL may be empty.
func newOpenAIClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

// openAIError maps go-openai errors onto ProviderError.
func openAIError(provider, op string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return transportErr(provider, op, apiErr.HTTPStatusCode, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return transportErr(provider, op, reqErr.HTTPStatusCode, err)
	}
	return transportErr(provider, op, 0, err)
}

// OpenAIChatProvider implements LLMProvider on the chat completions endpoint.
type OpenAIChatProvider struct {
	client    *openai.Client
	apiKey    string
	model     string
	maxTokens int
}

// NewOpenAIChatProvider builds a chat-completions provider for model.
func NewOpenAIChatProvider(apiKey, baseURL, model string, maxTokens int) *OpenAIChatProvider {
	return &OpenAIChatProvider{
		client:    newOpenAIClient(apiKey, baseURL),
		apiKey:    apiKey,
		model:     model,
		maxTokens: maxTokens,
	}
}

// ChatCompletion returns choices[0].message.content.
func (p *OpenAIChatProvider) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if p.apiKey == "" {
		return nil, &ProviderError{Provider: providerOpenAI, Op: "chat", Kind: ErrNotConfigured}
	}
	model := req.Model
	if model == "" {
		model = p.model
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.maxTokens
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Messages:    toOpenAIMessages(req.Messages),
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, openAIError(providerOpenAI, "chat", err)
	}
	if len(resp.Choices) == 0 {
		return nil, malformed(providerOpenAI, "chat", "no choices")
	}
	return &ChatResponse{
		Content:    resp.Choices[0].Message.Content,
		StopReason: string(resp.Choices[0].FinishReason),
		Tokens:     resp.Usage.TotalTokens,
	}, nil
}

// toOpenAIMessages sends plain content for text-only messages and
// multi-part content when images are present.
func toOpenAIMessages(msgs []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		if len(m.Images()) == 0 {
			out = append(out, openai.ChatCompletionMessage{Role: m.Role, Content: m.Text()})
			continue
		}
		parts := make([]openai.ChatMessagePart, 0, len(m.Parts))
		for _, part := range m.Parts {
			if part.Kind == PartImage {
				parts = append(parts, openai.ChatMessagePart{
					Type:     openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{URL: part.DataURI(), Detail: openai.ImageURLDetailAuto},
				})
				continue
			}
			parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: part.Text})
		}
		out = append(out, openai.ChatCompletionMessage{Role: m.Role, MultiContent: parts})
	}
	return out
}

func (p *OpenAIChatProvider) ModelInfo() ModelMeta {
	return ModelMeta{ID: p.model, Provider: providerOpenAI, Mode: ModeOneShot, MaxTokens: p.maxTokens}
}

// HealthCheck lists models, which needs only a valid key.
func (p *OpenAIChatProvider) HealthCheck(ctx context.Context) error {
	return openAIHealth(ctx, p.client, p.apiKey, providerOpenAI)
}

func openAIHealth(ctx context.Context, client *openai.Client, apiKey, provider string) error {
	if apiKey == "" {
		return &ProviderError{Provider: provider, Op: "healthcheck", Kind: ErrNotConfigured}
	}
	if _, err := client.ListModels(ctx); err != nil {
		return openAIError(provider, "healthcheck", err)
	}
	return nil
}
