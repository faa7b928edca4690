package snapshotters

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/brettbedarf/vfs"
	"github.com/brettbedarf/vfs/internal/util"
)

// Provider builds snapshotters from a source's raw JSON config
type Provider interface {
	NewSnapshotter(raw []byte) (vfs.Snapshotter, error)
}

// Registry ties source types ("local", "http", ...) to their providers.
// It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register ties a provider to a source type. The first registration of a
// type wins; later ones are ignored.
func (r *Registry) Register(sourceType string, provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[sourceType]; exists {
		logger := util.GetLogger("Registry")
		logger.Warn().Str("type", sourceType).Msg("Provider already registered")
		return
	}
	r.providers[sourceType] = provider
}

// GetProvider returns the provider registered for sourceType
func (r *Registry) GetProvider(sourceType string) (Provider, error) {
	r.mu.RLock()
	p, ok := r.providers[sourceType]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no provider for source type %q", sourceType)
	}
	return p, nil
}

// Types returns the registered source types
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.providers))
	for t := range r.providers {
		types = append(types, t)
	}
	return types
}

// NewSnapshotter picks the provider named by the "type" field of raw and builds a
// snapshotter from the rest of it
func (r *Registry) NewSnapshotter(raw []byte) (vfs.Snapshotter, error) {
	var meta struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("failed to determine source type: %w", err)
	}
	p, err := r.GetProvider(meta.Type)
	if err != nil {
		return nil, err
	}
	return p.NewSnapshotter(raw)
}
