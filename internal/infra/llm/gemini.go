package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const providerGemini = "gemini"

// GeminiProvider implements LLMProvider with generative-ai-go. Each call
// starts a fresh chat session seeded with the prior turns, so no state is
// kept between calls.
type GeminiProvider struct {
	apiKey    string
	model     string
	maxTokens int
	opts      []option.ClientOption

	mu     sync.Mutex
	client *genai.Client
}

// NewGeminiProvider builds a provider; the client is dialed on first use.
func NewGeminiProvider(apiKey, model string, maxTokens int, opts ...option.ClientOption) *GeminiProvider {
	return &GeminiProvider{apiKey: apiKey, model: model, maxTokens: maxTokens, opts: opts}
}

func (p *GeminiProvider) genaiClient(ctx context.Context) (*genai.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		return p.client, nil
	}
	opts := append([]option.ClientOption{option.WithAPIKey(p.apiKey)}, p.opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, transportErr(providerGemini, "dial", 0, err)
	}
	p.client = client
	return client, nil
}

// ChatCompletion sends the last message with every earlier one as history.
func (p *GeminiProvider) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if p.apiKey == "" {
		return nil, &ProviderError{Provider: providerGemini, Op: "generate", Kind: ErrNotConfigured}
	}
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("gemini: no messages to send")
	}
	client, err := p.genaiClient(ctx)
	if err != nil {
		return nil, err
	}

	name := req.Model
	if name == "" {
		name = p.model
	}
	model := client.GenerativeModel(name)
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.maxTokens
	}
	if maxTokens > 0 {
		model.SetMaxOutputTokens(int32(maxTokens))
	}
	if req.Temperature != 0 {
		model.SetTemperature(req.Temperature)
	}
	if system := systemPrompt(req.Messages); system != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(system))
	}

	history, last := toGeminiContents(req.Messages)
	cs := model.StartChat()
	cs.History = history

	resp, err := cs.SendMessage(ctx, last.Parts...)
	if err != nil {
		return nil, transportErr(providerGemini, "generate", 0, err)
	}
	text, ok := geminiText(resp)
	if !ok {
		return nil, malformed(providerGemini, "generate", "no text in first candidate")
	}
	out := &ChatResponse{Content: text}
	if resp.UsageMetadata != nil {
		out.Tokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	if fr := resp.Candidates[0].FinishReason; fr != genai.FinishReasonUnspecified {
		out.StopReason = fr.String()
	}
	return out, nil
}

// toGeminiContents splits msgs into history and the message to send.
// System messages are carried by SystemInstruction instead.
func toGeminiContents(msgs []Message) ([]*genai.Content, *genai.Content) {
	contents := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == "system" {
			continue
		}
		role := "user"
		if m.Role == "assistant" {
			role = "model"
		}
		c := &genai.Content{Role: role}
		for _, part := range m.Parts {
			if part.Kind == PartImage {
				data, err := base64.StdEncoding.DecodeString(part.Data)
				if err != nil {
					continue
				}
				c.Parts = append(c.Parts, genai.Blob{MIMEType: part.MediaType, Data: data})
				continue
			}
			c.Parts = append(c.Parts, genai.Text(part.Text))
		}
		if len(c.Parts) > 0 {
			contents = append(contents, c)
		}
	}
	if len(contents) == 0 {
		return nil, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text("")}}
	}
	return contents[:len(contents)-1], contents[len(contents)-1]
}

// geminiText concatenates the text parts of the first candidate.
func geminiText(resp *genai.GenerateContentResponse) (string, bool) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", false
	}
	var b strings.Builder
	found := false
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			if found {
				b.WriteString("\n")
			}
			b.WriteString(string(text))
			found = true
		}
	}
	return b.String(), found
}

func (p *GeminiProvider) ModelInfo() ModelMeta {
	return ModelMeta{ID: p.model, Provider: providerGemini, Mode: ModeOneShot, MaxTokens: p.maxTokens}
}

// HealthCheck only verifies that an API key is configured.
func (p *GeminiProvider) HealthCheck(_ context.Context) error {
	if p.apiKey == "" {
		return &ProviderError{Provider: providerGemini, Op: "healthcheck", Kind: ErrNotConfigured}
	}
	return nil
}

// Close releases the underlying client, if one was dialed.
func (p *GeminiProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client == nil {
		return nil
	}
	err := p.client.Close()
	p.client = nil
	return err
}
