// Tests for the SDK-backed adapters against local fakes of the vendor APIs.
package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/generative-ai-go/genai"
)

func writeFakeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// ============================================================================
// OpenAI chat completions
// ============================================================================

func TestOpenAIChatProvider_ChatCompletion_Success(t *testing.T) {
	t.Parallel()

	var got map[string]any
	r := chi.NewRouter()
	r.Post("/v1/chat/completions", func(w http.ResponseWriter, req *http.Request) {
		_ = json.NewDecoder(req.Body).Decode(&got)
		writeFakeJSON(w, http.StatusOK, `{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"Hi from gpt"},"finish_reason":"stop"}],"usage":{"total_tokens":7}}`)
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	p := NewOpenAIChatProvider("sk-test", srv.URL+"/v1", "gpt-4o-mini", 100)
	resp, err := p.ChatCompletion(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Parts: []Part{TextPart("Hello")}}},
	})
	if err != nil {
		t.Fatalf("ChatCompletion failed: %v", err)
	}
	if resp.Content != "Hi from gpt" || resp.Tokens != 7 {
		t.Errorf("unexpected response: %+v", resp)
	}
	if got["model"] != "gpt-4o-mini" {
		t.Errorf("expected default model in request, got %v", got["model"])
	}
}

func TestOpenAIChatProvider_ChatCompletion_ImageUsesMultiContent(t *testing.T) {
	t.Parallel()

	var got struct {
		Messages []struct {
			Content json.RawMessage `json:"content"`
		} `json:"messages"`
	}
	r := chi.NewRouter()
	r.Post("/v1/chat/completions", func(w http.ResponseWriter, req *http.Request) {
		_ = json.NewDecoder(req.Body).Decode(&got)
		writeFakeJSON(w, http.StatusOK, `{"choices":[{"message":{"role":"assistant","content":"a cat"}}]}`)
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	p := NewOpenAIChatProvider("sk-test", srv.URL+"/v1", "gpt-4o-mini", 100)
	_, err := p.ChatCompletion(context.Background(), ChatRequest{
		Messages: []Message{{Role: "user", Parts: []Part{TextPart("what is it?"), ImagePart("image/jpeg", "QUJD")}}},
	})
	if err != nil {
		t.Fatalf("ChatCompletion failed: %v", err)
	}
	if len(got.Messages) != 1 || len(got.Messages[0].Content) == 0 || got.Messages[0].Content[0] != '[' {
		t.Errorf("expected array content for image message, got %s", got.Messages[0].Content)
	}
}

func TestOpenAIChatProvider_ChatCompletion_Errors(t *testing.T) {
	t.Parallel()

	r := chi.NewRouter()
	r.Post("/v1/chat/completions", func(w http.ResponseWriter, _ *http.Request) {
		writeFakeJSON(w, http.StatusInternalServerError, `{"error":{"message":"boom","type":"server_error"}}`)
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	p := NewOpenAIChatProvider("sk-test", srv.URL+"/v1", "gpt-4o-mini", 100)
	_, err := p.ChatCompletion(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Parts: []Part{TextPart("x")}}}})
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected status 500 on ProviderError, got %v", err)
	}

	unconfigured := NewOpenAIChatProvider("", srv.URL+"/v1", "gpt-4o-mini", 100)
	if _, err := unconfigured.ChatCompletion(context.Background(), ChatRequest{}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestOpenAIChatProvider_ChatCompletion_NoChoices_IsTransportError(t *testing.T) {
	t.Parallel()

	r := chi.NewRouter()
	r.Post("/v1/chat/completions", func(w http.ResponseWriter, _ *http.Request) {
		writeFakeJSON(w, http.StatusOK, `{"choices":[]}`)
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	p := NewOpenAIChatProvider("sk-test", srv.URL+"/v1", "gpt-4o-mini", 100)
	_, err := p.ChatCompletion(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Parts: []Part{TextPart("x")}}}})
	if !errors.Is(err, ErrTransport) {
		t.Errorf("expected ErrTransport, got %v", err)
	}
}

// ============================================================================
// OpenAI assistants
// ============================================================================

// fakeAssistantsAPI serves the subset of the Assistants v2 API the adapter uses.
type fakeAssistantsAPI struct {
	mu          sync.Mutex
	runChecks   int
	attachments int
	uploaded    bool
}

func (f *fakeAssistantsAPI) routes() http.Handler {
	r := chi.NewRouter()
	r.Route("/v1", func(r chi.Router) {
		r.Post("/assistants", func(w http.ResponseWriter, _ *http.Request) {
			writeFakeJSON(w, http.StatusOK, `{"id":"asst_abc","object":"assistant","model":"gpt-4o"}`)
		})
		r.Post("/threads", func(w http.ResponseWriter, _ *http.Request) {
			writeFakeJSON(w, http.StatusOK, `{"id":"thread_abc","object":"thread"}`)
		})
		r.Post("/files", func(w http.ResponseWriter, _ *http.Request) {
			f.mu.Lock()
			f.uploaded = true
			f.mu.Unlock()
			writeFakeJSON(w, http.StatusOK, `{"id":"file_abc","object":"file","purpose":"assistants"}`)
		})
		r.Post("/threads/{thread}/messages", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				Attachments []json.RawMessage `json:"attachments"`
			}
			_ = json.NewDecoder(req.Body).Decode(&body)
			f.mu.Lock()
			f.attachments += len(body.Attachments)
			f.mu.Unlock()
			writeFakeJSON(w, http.StatusOK, `{"id":"msg_user","object":"thread.message","role":"user","content":[]}`)
		})
		r.Get("/threads/{thread}/messages", func(w http.ResponseWriter, _ *http.Request) {
			writeFakeJSON(w, http.StatusOK, `{"object":"list","data":[{"id":"msg_1","object":"thread.message","role":"assistant","content":[{"type":"text","text":{"value":"assistant says hi","annotations":[]}}]}]}`)
		})
		r.Post("/threads/{thread}/runs", func(w http.ResponseWriter, _ *http.Request) {
			writeFakeJSON(w, http.StatusOK, `{"id":"run_abc","object":"thread.run","status":"queued"}`)
		})
		r.Get("/threads/{thread}/runs/{run}", func(w http.ResponseWriter, _ *http.Request) {
			f.mu.Lock()
			f.runChecks++
			status := "in_progress"
			if f.runChecks > 1 {
				status = "completed"
			}
			f.mu.Unlock()
			writeFakeJSON(w, http.StatusOK, `{"id":"run_abc","object":"thread.run","status":"`+status+`"}`)
		})
	})
	return r
}

func TestOpenAIAssistantsProvider_FullTurn(t *testing.T) {
	t.Parallel()

	api := &fakeAssistantsAPI{}
	srv := httptest.NewServer(api.routes())
	defer srv.Close()

	p := NewOpenAIAssistantsProvider("sk-test", srv.URL+"/v1", "gpt-4o")
	ctx := context.Background()

	asst, err := p.CreateAssistant(ctx, AssistantSpec{Name: "Chat Assistant"})
	if err != nil || asst != "asst_abc" {
		t.Fatalf("CreateAssistant = %q, %v", asst, err)
	}
	thread, err := p.CreateThread(ctx)
	if err != nil || thread != "thread_abc" {
		t.Fatalf("CreateThread = %q, %v", thread, err)
	}

	runner := NewThreadRunner(p, fastPoll(), quietLogger())
	reply, err := runner.Run(ctx, SessionIDs{AssistantID: asst, ThreadID: thread}, ThreadMessage{
		Text:    "summarise",
		Uploads: []FileUpload{{Name: "notes.txt", Data: []byte("some notes")}},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if reply != "assistant says hi" {
		t.Errorf("unexpected reply %q", reply)
	}
	if !api.uploaded || api.attachments != 1 {
		t.Errorf("expected one uploaded attachment, got uploaded=%v attachments=%d", api.uploaded, api.attachments)
	}
}

func TestOpenAIAssistantsProvider_Unconfigured(t *testing.T) {
	t.Parallel()

	p := NewOpenAIAssistantsProvider("", "", "gpt-4o")
	if _, err := p.CreateThread(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
	if err := p.HealthCheck(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

// ============================================================================
// Anthropic
// ============================================================================

func TestAnthropicProvider_ChatCompletion_Success(t *testing.T) {
	t.Parallel()

	var got map[string]any
	r := chi.NewRouter()
	r.Post("/v1/messages", func(w http.ResponseWriter, req *http.Request) {
		_ = json.NewDecoder(req.Body).Decode(&got)
		writeFakeJSON(w, http.StatusOK, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-5-sonnet-20240620","content":[{"type":"text","text":"Hello from Claude"}],"stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":4}}`)
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	p := NewAnthropicProvider("test-key", srv.URL, "claude-3-5-sonnet-20240620", 1000)
	resp, err := p.ChatCompletion(context.Background(), ChatRequest{
		Messages: []Message{
			{Role: "system", Parts: []Part{TextPart("be brief")}},
			{Role: "user", Parts: []Part{TextPart("Hi")}},
		},
	})
	if err != nil {
		t.Fatalf("ChatCompletion failed: %v", err)
	}
	if resp.Content != "Hello from Claude" || resp.Tokens != 7 {
		t.Errorf("unexpected response: %+v", resp)
	}
	if msgs, _ := got["messages"].([]any); len(msgs) != 1 {
		t.Errorf("system message should not be sent as a turn, got %v", got["messages"])
	}
	if got["system"] == nil {
		t.Error("expected system prompt in request")
	}
}

func TestAnthropicProvider_ChatCompletion_Errors(t *testing.T) {
	t.Parallel()

	r := chi.NewRouter()
	r.Post("/v1/messages", func(w http.ResponseWriter, _ *http.Request) {
		writeFakeJSON(w, http.StatusBadRequest, `{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`)
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	p := NewAnthropicProvider("test-key", srv.URL, "claude-3-5-sonnet-20240620", 1000)
	_, err := p.ChatCompletion(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Parts: []Part{TextPart("x")}}}})
	var pe *ProviderError
	if !errors.Is(err, ErrTransport) || !errors.As(err, &pe) || pe.StatusCode != http.StatusBadRequest {
		t.Errorf("expected ErrTransport with status 400, got %v", err)
	}

	unconfigured := NewAnthropicProvider("", srv.URL, "claude", 1000)
	if _, err := unconfigured.ChatCompletion(context.Background(), ChatRequest{}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestAnthropicProvider_ChatCompletion_NoTextBlock(t *testing.T) {
	t.Parallel()

	r := chi.NewRouter()
	r.Post("/v1/messages", func(w http.ResponseWriter, _ *http.Request) {
		writeFakeJSON(w, http.StatusOK, `{"id":"msg_1","type":"message","role":"assistant","content":[],"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":0}}`)
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	p := NewAnthropicProvider("test-key", srv.URL, "claude", 1000)
	_, err := p.ChatCompletion(context.Background(), ChatRequest{Messages: []Message{{Role: "user", Parts: []Part{TextPart("x")}}}})
	if !errors.Is(err, ErrTransport) {
		t.Errorf("expected ErrTransport, got %v", err)
	}
}

// ============================================================================
// Gemini conversions (no network)
// ============================================================================

func TestToGeminiContents_SplitsHistoryAndMapsRoles(t *testing.T) {
	t.Parallel()

	img := base64.StdEncoding.EncodeToString([]byte{0xff, 0xd8})
	history, last := toGeminiContents([]Message{
		{Role: "system", Parts: []Part{TextPart("ignored")}},
		{Role: "user", Parts: []Part{TextPart("Hello")}},
		{Role: "assistant", Parts: []Part{TextPart("Hi")}},
		{Role: "user", Parts: []Part{TextPart("look"), ImagePart("image/jpeg", img)}},
	})
	if len(history) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(history))
	}
	if history[1].Role != "model" {
		t.Errorf("assistant turns should map to role model, got %q", history[1].Role)
	}
	if last.Role != "user" || len(last.Parts) != 2 {
		t.Fatalf("unexpected last content: %+v", last)
	}
	if blob, ok := last.Parts[1].(genai.Blob); !ok || blob.MIMEType != "image/jpeg" || len(blob.Data) != 2 {
		t.Errorf("expected decoded image blob, got %#v", last.Parts[1])
	}
}

func TestGeminiText(t *testing.T) {
	t.Parallel()

	if _, ok := geminiText(nil); ok {
		t.Error("nil response should not yield text")
	}
	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []genai.Part{genai.Text("one"), genai.Text("two")}},
	}}}
	text, ok := geminiText(resp)
	if !ok || text != "one\ntwo" {
		t.Errorf("geminiText = %q, %v", text, ok)
	}
}

func TestGeminiProvider_Unconfigured(t *testing.T) {
	t.Parallel()

	p := NewGeminiProvider("", "gemini-1.5-flash", 100)
	if _, err := p.ChatCompletion(context.Background(), ChatRequest{}); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close on undialed provider: %v", err)
	}
}
