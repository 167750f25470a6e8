package chat

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/matiasleandrokruk/parley/internal/infra/llm"
)

type mockProvider struct{ mock.Mock }

func (m *mockProvider) ChatCompletion(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*llm.ChatResponse)
	return resp, args.Error(1)
}

func (m *mockProvider) ModelInfo() llm.ModelMeta {
	return llm.ModelMeta{ID: "mock", Provider: "stub", Mode: llm.ModeOneShot}
}

func (m *mockProvider) HealthCheck(_ context.Context) error { return nil }

type mockSession struct{ mock.Mock }

func (m *mockSession) CreateAssistant(ctx context.Context, spec llm.AssistantSpec) (string, error) {
	args := m.Called(ctx, spec)
	return args.String(0), args.Error(1)
}

func (m *mockSession) CreateThread(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockSession) UploadFile(ctx context.Context, f llm.FileUpload) (string, error) {
	args := m.Called(ctx, f)
	return args.String(0), args.Error(1)
}

func (m *mockSession) PostMessage(ctx context.Context, threadID, text string, fileIDs []string) error {
	return m.Called(ctx, threadID, text, fileIDs).Error(0)
}

func (m *mockSession) StartRun(ctx context.Context, threadID, assistantID string) (llm.Run, error) {
	args := m.Called(ctx, threadID, assistantID)
	return args.Get(0).(llm.Run), args.Error(1)
}

func (m *mockSession) RetrieveRun(ctx context.Context, threadID, runID string) (llm.Run, error) {
	args := m.Called(ctx, threadID, runID)
	return args.Get(0).(llm.Run), args.Error(1)
}

func (m *mockSession) LatestReply(ctx context.Context, threadID string) (string, error) {
	args := m.Called(ctx, threadID)
	return args.String(0), args.Error(1)
}

func (m *mockSession) ModelInfo() llm.ModelMeta {
	return llm.ModelMeta{ID: "mock", Provider: "assist", Mode: llm.ModeSession}
}

func (m *mockSession) HealthCheck(_ context.Context) error { return nil }

// recordingBus captures published events.
type recordingBus struct {
	mu     sync.Mutex
	events []any
}

func (b *recordingBus) Publish(_ string, payload any) {
	b.mu.Lock()
	b.events = append(b.events, payload)
	b.mu.Unlock()
}

func (b *recordingBus) all() []any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]any(nil), b.events...)
}

const testCatalogYAML = `
default: oneshot
models:
  - id: oneshot
    aliases: [quick]
    provider: stub
  - id: inline
    provider: stub
    inline_attachments: true
  - id: threaded
    provider: assist
    mode: session
`

type fixture struct {
	provider *mockProvider
	session  *mockSession
	bus      *recordingBus
	router   *llm.Router
	cfg      Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	catalog, err := llm.ParseCatalog([]byte(testCatalogYAML))
	require.NoError(t, err)

	f := &fixture{
		provider: &mockProvider{},
		session:  &mockSession{},
		bus:      &recordingBus{},
		router:   llm.NewRouter(catalog),
		cfg: Config{
			HistoryDedupe: true,
			Poll:          llm.PollConfig{Interval: time.Millisecond, MaxInterval: time.Millisecond, Timeout: time.Second},
		},
	}
	f.router.Register("stub", f.provider)
	f.router.RegisterSession("assist", f.session)
	return f
}

func (f *fixture) deps() Deps {
	return Deps{Router: f.router, Bus: f.bus, Log: quietLogger()}
}

func (f *fixture) orchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator("conv-1", f.cfg, f.deps())
	require.NoError(t, err)
	return o
}

// expectSessionProvisioning stubs one assistant and one thread creation.
func (f *fixture) expectSessionProvisioning() {
	f.session.On("CreateAssistant", mock.Anything, mock.Anything).Return("asst_1", nil).Once()
	f.session.On("CreateThread", mock.Anything).Return("thread_1", nil).Once()
}

// expectCompletedRun stubs a run that completes on the first status check.
func (f *fixture) expectCompletedRun(reply string) {
	f.session.On("PostMessage", mock.Anything, "thread_1", mock.Anything, mock.Anything).Return(nil)
	f.session.On("StartRun", mock.Anything, "thread_1", "asst_1").Return(llm.Run{ID: "run_1", Status: llm.RunQueued}, nil)
	f.session.On("RetrieveRun", mock.Anything, "thread_1", "run_1").Return(llm.Run{ID: "run_1", Status: llm.RunCompleted}, nil)
	f.session.On("LatestReply", mock.Anything, "thread_1").Return(reply, nil)
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func pngBase64(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}
