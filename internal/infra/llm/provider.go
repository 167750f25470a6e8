// Package llm: provider contracts.
// Adapters (Anthropic, OpenAI, Gemini, Ollama) implement these interfaces so the
// chat domain is never coupled to a specific LLM vendor.
package llm

import "context"

// LLMProvider is the one-shot contract: the full conversation goes in, one reply comes out.
type LLMProvider interface {
	// ChatCompletion performs a non-streaming chat completion.
	ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// ModelInfo returns static metadata about the provider/model.
	ModelInfo() ModelMeta

	// HealthCheck returns nil if the provider is reachable and operational.
	HealthCheck(ctx context.Context) error
}

// SessionProvider is the assistant + thread + run contract. History lives
// server-side; callers post only the newest turn.
type SessionProvider interface {
	CreateAssistant(ctx context.Context, spec AssistantSpec) (string, error)
	CreateThread(ctx context.Context) (string, error)
	UploadFile(ctx context.Context, f FileUpload) (string, error)
	PostMessage(ctx context.Context, threadID, text string, fileIDs []string) error
	StartRun(ctx context.Context, threadID, assistantID string) (Run, error)
	RetrieveRun(ctx context.Context, threadID, runID string) (Run, error)
	// LatestReply returns the first text value of the newest thread message.
	LatestReply(ctx context.Context, threadID string) (string, error)

	ModelInfo() ModelMeta
	HealthCheck(ctx context.Context) error
}
