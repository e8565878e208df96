// Package ctxkeys holds the typed context keys shared by middleware and
// handlers. It is a leaf package so both can import it without a cycle.
package ctxkeys

import "context"

// Key is the named type for all API context keys. context.Value compares
// both type and value, so these never collide with plain string keys.
type Key string

const (
	// Subject is the authenticated token subject, injected by the auth middleware.
	Subject Key = "subject"

	// Role is the role claim of the authenticated token.
	Role Key = "role"
)

// WithValue adds a ctxkeys.Key value to the context.
func WithValue(ctx context.Context, key Key, value string) context.Context {
	return context.WithValue(ctx, key, value)
}

// String returns the non-empty string stored under key.
func String(ctx context.Context, key Key) (string, bool) {
	v, ok := ctx.Value(key).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
