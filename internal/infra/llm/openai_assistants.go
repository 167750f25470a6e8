package llm

import (
	"context"

	openai "github.com/sashabaranov/go-openai"
)

const providerOpenAIAssistants = "openai-assistants"

// fileSearchTool lets the assistant read uploaded attachments.
const fileSearchTool = "file_search"

// OpenAIAssistantsProvider implements SessionProvider on the Assistants v2 API
// (assistants, threads, messages, runs, files).
type OpenAIAssistantsProvider struct {
	client *openai.Client
	apiKey string
	model  string
}

// NewOpenAIAssistantsProvider builds a session provider for model.
func NewOpenAIAssistantsProvider(apiKey, baseURL, model string) *OpenAIAssistantsProvider {
	return &OpenAIAssistantsProvider{
		client: newOpenAIClient(apiKey, baseURL),
		apiKey: apiKey,
		model:  model,
	}
}

func (p *OpenAIAssistantsProvider) configured(op string) error {
	if p.apiKey == "" {
		return &ProviderError{Provider: providerOpenAIAssistants, Op: op, Kind: ErrNotConfigured}
	}
	return nil
}

// CreateAssistant creates an assistant with file search enabled.
func (p *OpenAIAssistantsProvider) CreateAssistant(ctx context.Context, spec AssistantSpec) (string, error) {
	if err := p.configured("create assistant"); err != nil {
		return "", err
	}
	model := spec.Model
	if model == "" {
		model = p.model
	}
	req := openai.AssistantRequest{
		Model: model,
		Tools: []openai.AssistantTool{{Type: openai.AssistantToolTypeFileSearch}},
	}
	if spec.Name != "" {
		req.Name = &spec.Name
	}
	if spec.Instructions != "" {
		req.Instructions = &spec.Instructions
	}

	a, err := p.client.CreateAssistant(ctx, req)
	if err != nil {
		return "", openAIError(providerOpenAIAssistants, "create assistant", err)
	}
	if a.ID == "" {
		return "", malformed(providerOpenAIAssistants, "create assistant", "empty assistant id")
	}
	return a.ID, nil
}

func (p *OpenAIAssistantsProvider) CreateThread(ctx context.Context) (string, error) {
	if err := p.configured("create thread"); err != nil {
		return "", err
	}
	th, err := p.client.CreateThread(ctx, openai.ThreadRequest{})
	if err != nil {
		return "", openAIError(providerOpenAIAssistants, "create thread", err)
	}
	if th.ID == "" {
		return "", malformed(providerOpenAIAssistants, "create thread", "empty thread id")
	}
	return th.ID, nil
}

// UploadFile stores f with purpose "assistants" and returns its file id.
func (p *OpenAIAssistantsProvider) UploadFile(ctx context.Context, f FileUpload) (string, error) {
	if err := p.configured("upload file"); err != nil {
		return "", err
	}
	file, err := p.client.CreateFileBytes(ctx, openai.FileBytesRequest{
		Name:    f.Name,
		Bytes:   f.Data,
		Purpose: openai.PurposeAssistants,
	})
	if err != nil {
		return "", openAIError(providerOpenAIAssistants, "upload file", err)
	}
	if file.ID == "" {
		return "", malformed(providerOpenAIAssistants, "upload file", "empty file id")
	}
	return file.ID, nil
}

// PostMessage appends a user message to the thread with the given files attached.
func (p *OpenAIAssistantsProvider) PostMessage(ctx context.Context, threadID, text string, fileIDs []string) error {
	if err := p.configured("post message"); err != nil {
		return err
	}
	req := openai.MessageRequest{
		Role:    string(openai.ThreadMessageRoleUser),
		Content: text,
	}
	for _, id := range fileIDs {
		req.Attachments = append(req.Attachments, openai.ThreadAttachment{
			FileID: id,
			Tools:  []openai.ThreadAttachmentTool{{Type: fileSearchTool}},
		})
	}
	if _, err := p.client.CreateMessage(ctx, threadID, req); err != nil {
		return openAIError(providerOpenAIAssistants, "post message", err)
	}
	return nil
}

func (p *OpenAIAssistantsProvider) StartRun(ctx context.Context, threadID, assistantID string) (Run, error) {
	if err := p.configured("start run"); err != nil {
		return Run{}, err
	}
	run, err := p.client.CreateRun(ctx, threadID, openai.RunRequest{AssistantID: assistantID})
	if err != nil {
		return Run{}, openAIError(providerOpenAIAssistants, "start run", err)
	}
	return fromOpenAIRun(run), nil
}

func (p *OpenAIAssistantsProvider) RetrieveRun(ctx context.Context, threadID, runID string) (Run, error) {
	if err := p.configured("retrieve run"); err != nil {
		return Run{}, err
	}
	run, err := p.client.RetrieveRun(ctx, threadID, runID)
	if err != nil {
		return Run{}, openAIError(providerOpenAIAssistants, "retrieve run", err)
	}
	return fromOpenAIRun(run), nil
}

// LatestReply fetches the newest message of the thread and returns its first text value.
func (p *OpenAIAssistantsProvider) LatestReply(ctx context.Context, threadID string) (string, error) {
	if err := p.configured("list messages"); err != nil {
		return "", err
	}
	limit, order := 1, "desc"
	list, err := p.client.ListMessage(ctx, threadID, &limit, &order, nil, nil, nil)
	if err != nil {
		return "", openAIError(providerOpenAIAssistants, "list messages", err)
	}
	if len(list.Messages) == 0 {
		return "", malformed(providerOpenAIAssistants, "list messages", "thread has no messages")
	}
	for _, c := range list.Messages[0].Content {
		if c.Text != nil {
			return c.Text.Value, nil
		}
	}
	return "", malformed(providerOpenAIAssistants, "list messages", "newest message has no text")
}

func fromOpenAIRun(r openai.Run) Run {
	out := Run{ID: r.ID, Status: RunStatus(r.Status)}
	if r.LastError != nil {
		out.LastError = r.LastError.Message
	}
	return out
}

func (p *OpenAIAssistantsProvider) ModelInfo() ModelMeta {
	return ModelMeta{ID: p.model, Provider: providerOpenAIAssistants, Mode: ModeSession}
}

func (p *OpenAIAssistantsProvider) HealthCheck(ctx context.Context) error {
	return openAIHealth(ctx, p.client, p.apiKey, providerOpenAIAssistants)
}
