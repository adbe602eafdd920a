package provider

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/crusont/crusont/internal/model"
)

// Registry manages the live provider clients. It mirrors the store's
// provider table: the server loads active providers at startup and the
// admin handlers keep it in sync on every create, update, and delete.
type Registry struct {
	mu      sync.RWMutex
	active  map[string]*Client // keyed by provider name
	timeout time.Duration
}

// NewRegistry creates an empty Registry. timeout bounds every
// forwarded request.
func NewRegistry(timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Registry{
		active:  make(map[string]*Client),
		timeout: timeout,
	}
}

// Register adds or replaces the client for a provider definition.
// Inactive providers are removed instead.
func (r *Registry) Register(cfg model.Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !cfg.IsActive {
		delete(r.active, cfg.Name)
		return
	}
	r.active[cfg.Name] = NewClient(cfg, r.timeout)
}

// Remove drops a provider from the registry.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, name)
}

// Get returns the client for a provider name.
func (r *Registry) Get(name string) (*Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.active[name]
	if !ok {
		return nil, fmt.Errorf("provider %q not found", name)
	}
	return c, nil
}

// Resolve picks the client serving modelName on the given endpoint.
// Providers are scanned in name order so resolution is deterministic
// when two providers list the same model.
func (r *Registry) Resolve(modelName, endpoint string) (*Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	modelExists := false
	for _, name := range r.names() {
		c := r.active[name]
		if c.cfg.Serves(modelName, endpoint) {
			return c, nil
		}
		if c.cfg.HasModel(modelName) {
			modelExists = true
		}
	}
	if modelExists {
		return nil, ErrEndpointMismatch
	}
	return nil, ErrModelNotFound
}

// Names returns the active provider names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.names()
}

// Models returns the aggregated catalog across all active providers,
// sorted by model name.
func (r *Registry) Models() []model.ModelSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	var out []model.ModelSpec
	for _, name := range r.names() {
		for _, m := range r.active[name].cfg.Models {
			if seen[m.Name] {
				continue
			}
			seen[m.Name] = true
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// names returns sorted active names; callers must hold the lock.
func (r *Registry) names() []string {
	names := make([]string, 0, len(r.active))
	for name := range r.active {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
