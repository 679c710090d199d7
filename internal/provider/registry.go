package provider

import (
	"sync"

	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

// Registry holds the configured provider adapters keyed by kind
type Registry struct {
	mu        sync.RWMutex
	providers map[types.ProviderKind]Provider
}

func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[types.ProviderKind]Provider),
	}
}

func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Kind()] = p
}

func (r *Registry) Get(kind types.ProviderKind) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[kind]
	if !ok {
		return nil, ierr.NewError("payment provider not configured").
			WithHint("The requested payment provider is not configured").
			WithReportableDetails(map[string]any{"provider": kind}).
			Mark(ierr.ErrProviderUnavailable)
	}
	return p, nil
}

func (r *Registry) Kinds() []types.ProviderKind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]types.ProviderKind, 0, len(r.providers))
	for k := range r.providers {
		kinds = append(kinds, k)
	}
	return kinds
}
