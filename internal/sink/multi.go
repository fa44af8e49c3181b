// ABOUTME: Composite backend fanning out each call to several clients
// ABOUTME: Collects per-backend failures without short-circuiting the rest

package sink

import (
	"context"
	"errors"

	"github.com/percept-io/percept/internal/analytics"
)

// Multi dispatches every call to each of its backends. A failing
// backend never prevents the others from receiving the call; the
// joined error reports all failures.
type Multi []analytics.Client

// NewMulti builds a composite from the given backends. Nil entries are
// skipped so optional backends can be passed unconditionally.
func NewMulti(clients ...analytics.Client) Multi {
	m := make(Multi, 0, len(clients))
	for _, c := range clients {
		if c != nil {
			m = append(m, c)
		}
	}
	return m
}

// TrackEvent forwards the event to every backend.
func (m Multi) TrackEvent(ctx context.Context, name string, props analytics.Properties, opts analytics.Options) error {
	var errs []error
	for _, c := range m {
		if err := c.TrackEvent(ctx, name, props, opts); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SetProfile forwards the profile sync to every backend.
func (m Multi) SetProfile(ctx context.Context, distinctID any, props analytics.Properties, opts analytics.Options) error {
	var errs []error
	for _, c := range m {
		if err := c.SetProfile(ctx, distinctID, props, opts); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
