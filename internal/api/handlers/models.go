package handlers

import (
	"context"
	"net/http"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/matiasleandrokruk/parley/internal/infra/llm"
)

// ProviderRegistry exposes the model catalog and provider health checks.
// *llm.Router satisfies it.
type ProviderRegistry interface {
	Catalog() *llm.Catalog
	HealthCheck(ctx context.Context) map[string]error
}

type ModelHandler struct {
	registry ProviderRegistry
	convs    Conversations
	log      logrus.FieldLogger
}

func NewModelHandler(registry ProviderRegistry, convs Conversations, log logrus.FieldLogger) *ModelHandler {
	return &ModelHandler{registry: registry, convs: convs, log: log}
}

type modelsResponse struct {
	Models  []llm.ModelSpec `json:"models"`
	Default string          `json:"default"`
	Active  string          `json:"active"`
}

type providerStatus struct {
	Provider string `json:"provider"`
	Healthy  bool   `json:"healthy"`
	Error    string `json:"error,omitempty"`
}

// ListModels handles GET /models: the catalog plus the model selected for
// the current conversation, or the starting model when it does not exist yet.
func (h *ModelHandler) ListModels(w http.ResponseWriter, r *http.Request) {
	catalog := h.registry.Catalog()
	active := h.convs.DefaultModel()
	if conv, ok := h.convs.Lookup(conversationID(r)); ok {
		active = conv.ActiveModel().ID
	}
	writeJSON(w, http.StatusOK, modelsResponse{
		Models:  catalog.Models,
		Default: catalog.Default,
		Active:  active,
	})
}

// ProviderHealth handles GET /health/providers. It answers 503 when any
// registered provider fails its health check.
func (h *ModelHandler) ProviderHealth(w http.ResponseWriter, r *http.Request) {
	results := h.registry.HealthCheck(r.Context())
	status := http.StatusOK
	out := make([]providerStatus, 0, len(results))
	for name, err := range results {
		ps := providerStatus{Provider: name, Healthy: err == nil}
		if err != nil {
			ps.Error = err.Error()
			status = http.StatusServiceUnavailable
		}
		out = append(out, ps)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	writeJSON(w, status, map[string]any{"providers": out})
}
