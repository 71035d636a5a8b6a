package providers

import (
	"fmt"
	"sort"

	"github.com/dropDatabas3/notesauth/internal/auth"
	"github.com/dropDatabas3/notesauth/internal/domain/repository"
)

// Registry maps authentication methods to providers. It is built once at
// startup and never mutated, so lookups need no locking.
type Registry struct {
	byMethod map[repository.AuthMethod]Provider
}

// NewRegistry builds a registry from ps. Registering two providers for the
// same method, or a provider for EMAIL, is an error.
func NewRegistry(ps ...Provider) (*Registry, error) {
	m := make(map[repository.AuthMethod]Provider, len(ps))
	for _, p := range ps {
		if p == nil {
			continue
		}
		method := p.Method()
		if !method.Valid() || method == repository.MethodEmail {
			return nil, fmt.Errorf("providers: invalid method %q", method)
		}
		if _, dup := m[method]; dup {
			return nil, fmt.Errorf("providers: duplicate provider for %s", method)
		}
		m[method] = p
	}
	return &Registry{byMethod: m}, nil
}

// Get returns the provider for method or auth.ErrUnknownProvider.
func (r *Registry) Get(method repository.AuthMethod) (Provider, error) {
	if r != nil {
		if p, ok := r.byMethod[method]; ok {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", auth.ErrUnknownProvider, method)
}

// Methods lists the registered methods in stable order.
func (r *Registry) Methods() []repository.AuthMethod {
	if r == nil {
		return nil
	}
	out := make([]repository.AuthMethod, 0, len(r.byMethod))
	for m := range r.byMethod {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
