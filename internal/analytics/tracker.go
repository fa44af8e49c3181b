// ABOUTME: Tracking middleware entry points and the do-not-track predicate
// ABOUTME: Builds per-request scopes and performs the conditional profile sync

package analytics

import (
	"log/slog"
	"net/http"
	"slices"

	"github.com/percept-io/percept/internal/observability"
)

// Config holds tracker construction options. Client is required; the
// rest default to no-ops.
type Config struct {
	// Client receives every event and profile sync.
	Client Client

	// Gate, when set, dedupes profile sync payloads before they reach
	// the client.
	Gate ProfileGate

	// Logger for dispatch failures. Defaults to slog.Default.
	Logger *slog.Logger

	// Metrics collector. Defaults to a private collector.
	Metrics *observability.Metrics
}

// Tracker builds request-scoped tracking state and forwards events to
// the configured client. A single Tracker serves all requests; all
// mutable state lives on the per-request Scope.
type Tracker struct {
	client  Client
	gate    ProfileGate
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates a Tracker with the given configuration.
func New(cfg Config) *Tracker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observability.NewMetrics()
	}
	return &Tracker{
		client:  cfg.Client,
		gate:    cfg.Gate,
		logger:  logger,
		metrics: metrics,
	}
}

// TrackingDisabled reports whether the request opted out of tracking
// via the DNT header. Pure function of the headers: it never consults
// or mutates request-scoped state, so it is safe to call repeatedly
// and independently of Process.
func TrackingDisabled(r *http.Request) bool {
	return slices.Contains(r.Header.Values("Dnt"), "1")
}

// Process computes the tracking disposition for a request and, when
// tracking is enabled and the current user is well formed, syncs the
// user's profile. It returns the request's Scope; Middleware attaches
// the same Scope to the request context.
func (t *Tracker) Process(r *http.Request, user *User) *Scope {
	s := &Scope{
		tracker:    t,
		doNotTrack: TrackingDisabled(r),
	}
	if s.doNotTrack {
		t.metrics.RequestSuppressed()
		return s
	}

	if vu, ok := user.validate(); ok {
		s.user = vu
		s.hasUser = true
		s.UpdateProfile(r.Context(), r, user)
	}
	return s
}

// Middleware wraps next so that every request carries a Scope in its
// context. The current user, when known, must already be on the
// context via WithUser (typically set by an upstream auth middleware).
func (t *Tracker) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scope := t.Process(r, UserFrom(r.Context()))
		ctx := WithScope(r.Context(), scope)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
