package gateway

// Registry holds constructed provider adapters and the global verification
// order. Adapters are injected at wiring time; there is no package-level
// provider state.
type Registry struct {
	providers map[Name]Provider
	order     []Name
}

func NewRegistry(order []Name, providers ...Provider) *Registry {
	r := &Registry{providers: make(map[Name]Provider, len(providers)), order: order}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

func (r *Registry) Get(name Name) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// VerifyOrder returns the providers to probe for a reference: the preferred
// provider (the one recorded on the payment row, if any) first, then the
// configured global order. One provider's failure is not proof the
// transaction does not exist elsewhere, so callers walk the whole list.
func (r *Registry) VerifyOrder(preferred Name) []Provider {
	var out []Provider
	seen := make(map[Name]bool)
	if p, ok := r.providers[preferred]; ok {
		out = append(out, p)
		seen[preferred] = true
	}
	for _, name := range r.order {
		if seen[name] {
			continue
		}
		if p, ok := r.providers[name]; ok {
			out = append(out, p)
			seen[name] = true
		}
	}
	return out
}
