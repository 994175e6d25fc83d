package middleware

import "context"

type ownerKey struct{}

// OwnerFromContext returns the owner key resolved by Owner, or "" when the
// request never passed through it.
func OwnerFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	owner, _ := ctx.Value(ownerKey{}).(string)
	return owner
}

// WithOwner attaches an owner key; handlers under test use it to skip Owner.
func WithOwner(ctx context.Context, owner string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ownerKey{}, owner)
}
