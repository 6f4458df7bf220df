package domain

import "context"

// Principal is the authenticated identity attached to inbound requests by
// the platform's auth layer. Audit appends use it as actor_id; alert
// dispositions use it as acknowledged_by.
type Principal struct {
	ID   string
	Role string
}

type principalContextKey struct{}

// WithPrincipal returns a context carrying the authenticated principal.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the authenticated principal, if present.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}
