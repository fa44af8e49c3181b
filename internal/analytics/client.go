// ABOUTME: Narrow client contract for tracking backends
// ABOUTME: Concrete sinks (Mixpanel, NATS, journal) and test doubles implement it

package analytics

import "context"

// Client is the injected tracking backend. Delivery semantics, retries,
// batching, and transport belong to the implementation; the middleware
// dispatches and moves on.
type Client interface {
	// TrackEvent records a named event with derived properties and
	// delivery options (ip, distinct_id).
	TrackEvent(ctx context.Context, name string, props Properties, opts Options) error

	// SetProfile synchronizes a user profile keyed by distinct ID.
	SetProfile(ctx context.Context, distinctID any, props Properties, opts Options) error
}

// ProfileGate decides whether a profile sync payload needs to reach the
// backend at all. Implementations may dedupe on the last-synced payload;
// the zero configuration (no gate) syncs every time.
type ProfileGate interface {
	// ShouldSync reports whether the payload differs from what the
	// backend last received for this distinct ID.
	ShouldSync(ctx context.Context, distinctID any, props Properties) bool

	// MarkSynced records the payload as delivered.
	MarkSynced(ctx context.Context, distinctID any, props Properties)
}
