// Package auth carries the authenticated user on a context.
package auth

import "context"

type ctxKey struct{}

// WithUser marks ctx as authenticated for userID. A zero id is ignored.
func WithUser(ctx context.Context, userID int64) context.Context {
	if userID == 0 {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, userID)
}

// UserFromContext returns the authenticated user id.
func UserFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(ctxKey{}).(int64)
	return id, ok && id != 0
}
