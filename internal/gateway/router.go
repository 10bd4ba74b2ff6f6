package gateway

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Router dispatches each kind to the provider that serves it
type Router struct {
	routes map[Kind]Gateway
}

// NewRouter builds a router from a kind to provider table
func NewRouter(routes map[Kind]Gateway) *Router {
	r := &Router{routes: make(map[Kind]Gateway, len(routes))}
	for k, g := range routes {
		if g != nil {
			r.routes[k] = g
		}
	}
	return r
}

// Name lists the routed providers
func (r *Router) Name() string {
	names := make([]string, 0, len(r.routes))
	for k, g := range r.routes {
		names = append(names, fmt.Sprintf("%s=%s", k, g.Name()))
	}
	sort.Strings(names)
	return "router(" + strings.Join(names, ",") + ")"
}

// Provider returns the gateway serving kind
func (r *Router) Provider(kind Kind) (Gateway, bool) {
	g, ok := r.routes[kind]
	return g, ok
}

// Fetch implements Gateway
func (r *Router) Fetch(ctx context.Context, ticker string, kind Kind) (RawPayload, error) {
	g, ok := r.routes[kind]
	if !ok {
		return RawPayload{}, fmt.Errorf("%w: %s", ErrUnsupportedKind, kind)
	}
	return g.Fetch(ctx, ticker, kind)
}
