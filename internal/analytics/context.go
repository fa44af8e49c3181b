// ABOUTME: Context plumbing for the per-request Scope and current user
// ABOUTME: Upstream auth sets the user; handlers read the Scope back

package analytics

import "context"

type scopeKey struct{}

type userKey struct{}

// WithScope returns a context carrying the request's Scope.
func WithScope(ctx context.Context, s *Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// ScopeFrom returns the Scope attached by Middleware, or nil when the
// request did not pass through it.
func ScopeFrom(ctx context.Context) *Scope {
	s, _ := ctx.Value(scopeKey{}).(*Scope)
	return s
}

// WithUser returns a context carrying the current user. Authentication
// middleware calls this before the tracking middleware runs.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// UserFrom returns the current user from the context, or nil.
func UserFrom(ctx context.Context) *User {
	u, _ := ctx.Value(userKey{}).(*User)
	return u
}
