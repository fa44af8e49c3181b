// ABOUTME: Gin adapter for the tracking middleware
// ABOUTME: Same semantics as Middleware, Scope reachable from the gin context

package analytics

import "github.com/gin-gonic/gin"

// ginScopeKey is the gin context key holding the request Scope.
const ginScopeKey = "percept.scope"

// GinMiddleware returns a gin handler equivalent to Middleware for
// applications built on gin. The Scope is stored both on the gin
// context and on the request context, so ScopeFrom keeps working in
// framework-agnostic code.
func (t *Tracker) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		scope := t.Process(c.Request, UserFrom(c.Request.Context()))
		c.Request = c.Request.WithContext(WithScope(c.Request.Context(), scope))
		c.Set(ginScopeKey, scope)
		c.Next()
	}
}

// ScopeFromGin returns the Scope attached by GinMiddleware, or nil.
func ScopeFromGin(c *gin.Context) *Scope {
	if v, ok := c.Get(ginScopeKey); ok {
		if s, ok := v.(*Scope); ok {
			return s
		}
	}
	return ScopeFrom(c.Request.Context())
}
