// Package llm: LLM provider router.
// Router resolves a catalog model to the provider that serves it. The
// capability (one-shot or session) is fixed by the catalog entry, never
// derived from the model name.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
)

// ErrUnknownModel is returned when a model is not in the catalog.
var ErrUnknownModel = errors.New("model not in catalog")

// Route is a resolved model selection: exactly one of OneShot or Session is set.
type Route struct {
	Model   ModelSpec
	OneShot LLMProvider
	Session SessionProvider
}

// Mode reports the capability of the selected provider.
func (r Route) Mode() Mode { return r.Model.Mode }

// Router selects a provider for each model.
type Router struct {
	catalog  *Catalog
	oneShot  map[string]LLMProvider
	sessions map[string]SessionProvider
}

// NewRouter creates a Router over catalog with no providers registered.
func NewRouter(catalog *Catalog) *Router {
	return &Router{
		catalog:  catalog,
		oneShot:  make(map[string]LLMProvider),
		sessions: make(map[string]SessionProvider),
	}
}

// Register adds (or replaces) a one-shot provider under the given provider id.
func (r *Router) Register(key string, p LLMProvider) {
	r.oneShot[key] = p
}

// RegisterSession adds (or replaces) a session provider under the given provider id.
func (r *Router) RegisterSession(key string, p SessionProvider) {
	r.sessions[key] = p
}

// Catalog returns the catalog the router resolves against.
func (r *Router) Catalog() *Catalog { return r.catalog }

// Route resolves model (id or alias) to its provider.
// Returns ErrUnknownModel when the catalog does not list it, and a plain
// error when the catalog names a provider that was never registered.
func (r *Router) Route(_ context.Context, model string) (Route, error) {
	spec, ok := r.catalog.Lookup(model)
	if !ok {
		return Route{}, fmt.Errorf("llm router: %w: %q", ErrUnknownModel, model)
	}
	switch spec.Mode {
	case ModeSession:
		p, ok := r.sessions[spec.Provider]
		if !ok {
			return Route{}, fmt.Errorf("llm router: session provider %q not registered (available: %v)", spec.Provider, r.keys())
		}
		return Route{Model: spec, Session: p}, nil
	default:
		p, ok := r.oneShot[spec.Provider]
		if !ok {
			return Route{}, fmt.Errorf("llm router: provider %q not registered (available: %v)", spec.Provider, r.keys())
		}
		return Route{Model: spec, OneShot: p}, nil
	}
}

// HealthCheck checks every registered provider.
func (r *Router) HealthCheck(ctx context.Context) map[string]error {
	out := make(map[string]error, len(r.oneShot)+len(r.sessions))
	for k, p := range r.oneShot {
		out[k] = p.HealthCheck(ctx)
	}
	for k, p := range r.sessions {
		out[k] = p.HealthCheck(ctx)
	}
	return out
}

// Close releases every registered provider that holds resources.
// All providers are closed even if one fails; the errors are joined.
func (r *Router) Close() error {
	var errs []error
	closeOne := func(key string, p any) {
		if c, ok := p.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("llm router: close %q: %w", key, err))
			}
		}
	}
	for k, p := range r.oneShot {
		closeOne(k, p)
	}
	for k, p := range r.sessions {
		closeOne(k, p)
	}
	return errors.Join(errs...)
}

// keys returns the registered provider names (for error messages).
func (r *Router) keys() []string {
	out := make([]string, 0, len(r.oneShot)+len(r.sessions))
	for k := range r.oneShot {
		out = append(out, k)
	}
	for k := range r.sessions {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
