package llm

import "google.golang.org/api/option"

// DefaultMaxTokens bounds replies when neither the catalog nor the settings do.
const DefaultMaxTokens = 1000

// Settings carries the credentials and endpoints of every provider.
// Empty base URLs select the vendor default.
type Settings struct {
	AnthropicAPIKey  string
	AnthropicBaseURL string
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	GeminiAPIKey     string
	GeminiBaseURL    string
	OllamaBaseURL    string
	DefaultMaxTokens int
}

// BuildRouter registers a provider for every provider id the catalog uses.
// The model passed to each constructor is only a default: requests carry
// the catalog model, and its max_tokens when set, explicitly.
func BuildRouter(catalog *Catalog, s Settings) *Router {
	r := NewRouter(catalog)
	for _, id := range catalog.Providers() {
		model := firstModelOf(catalog, id)
		maxTokens := s.DefaultMaxTokens
		if maxTokens <= 0 {
			maxTokens = DefaultMaxTokens
		}
		switch id {
		case providerAnthropic:
			r.Register(id, NewAnthropicProvider(s.AnthropicAPIKey, s.AnthropicBaseURL, model.ID, maxTokens))
		case providerOpenAI:
			r.Register(id, NewOpenAIChatProvider(s.OpenAIAPIKey, s.OpenAIBaseURL, model.ID, maxTokens))
		case providerOpenAIAssistants:
			r.RegisterSession(id, NewOpenAIAssistantsProvider(s.OpenAIAPIKey, s.OpenAIBaseURL, model.ID))
		case providerGemini:
			var opts []option.ClientOption
			if s.GeminiBaseURL != "" {
				opts = append(opts, option.WithEndpoint(s.GeminiBaseURL))
			}
			r.Register(id, NewGeminiProvider(s.GeminiAPIKey, model.ID, maxTokens, opts...))
		case providerOllama:
			r.Register(id, NewOllamaProvider(s.OllamaBaseURL, model.ID, maxTokens))
		}
	}
	return r
}

func firstModelOf(c *Catalog, provider string) ModelSpec {
	for _, m := range c.Models {
		if m.Provider == provider {
			return m
		}
	}
	return ModelSpec{}
}
