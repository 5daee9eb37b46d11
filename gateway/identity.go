package gateway

import "context"

type identityKey struct{}

// AnonymousIdentity is the rate-limit identity for requests that carry no
// caller identity.
const AnonymousIdentity = "anonymous"

// WithIdentity attaches the caller identity used for rate-limit accounting.
func WithIdentity(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFromContext returns the attached identity, or AnonymousIdentity.
func IdentityFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(identityKey{}).(string); ok && v != "" {
		return v
	}
	return AnonymousIdentity
}
