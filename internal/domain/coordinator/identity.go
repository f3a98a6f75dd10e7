package coordinator

import "context"

// AnonymousUser is attached to records created without an identity in the context.
const AnonymousUser = "anonymous"

type identityKey struct{}

// WithIdentity returns a context carrying a pre-validated user id.
func WithIdentity(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, identityKey{}, userID)
}

// IdentityFromContext returns the user id placed by WithIdentity.
func IdentityFromContext(ctx context.Context) string {
	if userID, ok := ctx.Value(identityKey{}).(string); ok && userID != "" {
		return userID
	}
	return AnonymousUser
}
