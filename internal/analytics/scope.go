// ABOUTME: Request-scoped tracking state: disposition, profile snapshot, event records
// ABOUTME: Track and UpdateProfile enrich caller data and dispatch to the client

package analytics

import (
	"context"
	"log/slog"
	"net/http"
	"slices"

	"github.com/percept-io/percept/internal/observability"
)

// TrackedEvent is the record of one dispatched event, kept on the Scope
// for observability. Not persisted beyond the request by this package.
type TrackedEvent struct {
	Name       string     `json:"event"`
	Properties Properties `json:"properties"`
	Options    Options    `json:"options"`
}

// Scope is the tracking state of a single request. It is created by
// Process, carried on the request context, and never shared across
// requests.
type Scope struct {
	tracker    *Tracker
	doNotTrack bool
	user       validUser
	hasUser    bool

	profile Properties
	events  []TrackedEvent
}

// DoNotTrack reports the request's opt-out disposition as computed by
// Process.
func (s *Scope) DoNotTrack() bool {
	return s.doNotTrack
}

// Profile returns the last profile property set sent for this request,
// or nil when no profile sync happened.
func (s *Scope) Profile() Properties {
	return s.profile
}

// TrackedEvents returns the events dispatched during this request,
// most recent first.
func (s *Scope) TrackedEvents() []TrackedEvent {
	return s.events
}

// Track derives the full property bag for the event, dispatches it to
// the client, and records it on the Scope. Under DNT it is a no-op.
//
// The event record is appended synchronously before Track returns;
// whether the client delivers asynchronously is its own concern.
// Client errors are logged and swallowed — tracking never fails the
// request being served.
func (s *Scope) Track(ctx context.Context, r *http.Request, name string, callerProps Properties) {
	if s.doNotTrack {
		return
	}

	props := deriveProperties(r, callerProps)

	opts := Options{"ip": clientIP(r)}
	if s.hasUser {
		opts["distinct_id"] = s.user.id
	}

	ctx, span := observability.StartSpan(ctx, "analytics.track")
	defer span.End()

	if err := s.tracker.client.TrackEvent(ctx, name, props, opts); err != nil {
		s.tracker.metrics.SinkError()
		s.tracker.logger.WarnContext(ctx, "event dispatch failed",
			slog.String("event", name),
			slog.Any("error", err),
		)
	}
	s.tracker.metrics.EventTracked()

	s.events = slices.Insert(s.events, 0, TrackedEvent{
		Name:       name,
		Properties: props,
		Options:    opts,
	})
}

// UpdateProfile syncs the user's attributes to the tracking backend and
// records the property set as the request's profile snapshot. No-op
// under DNT or when the user is absent or malformed.
//
// When a ProfileGate is configured and reports the payload unchanged,
// the client call is elided; the snapshot is still recorded so the
// observable request state is identical either way.
func (s *Scope) UpdateProfile(ctx context.Context, r *http.Request, user *User) {
	if s.doNotTrack {
		return
	}

	vu, ok := user.validate()
	if !ok {
		return
	}

	props := Properties{
		"$name":  vu.name,
		"$email": vu.email,
		"ID":     vu.id,
	}
	opts := Options{"ip": clientIP(r)}

	ctx, span := observability.StartSpan(ctx, "analytics.update_profile")
	defer span.End()

	if s.tracker.gate != nil && !s.tracker.gate.ShouldSync(ctx, vu.id, props) {
		s.tracker.metrics.ProfileDeduped()
		s.profile = props
		return
	}

	if err := s.tracker.client.SetProfile(ctx, vu.id, props, opts); err != nil {
		s.tracker.metrics.SinkError()
		s.tracker.logger.WarnContext(ctx, "profile sync failed",
			slog.String("email", observability.MaskEmail(vu.email)),
			slog.Any("error", err),
		)
	} else if s.tracker.gate != nil {
		s.tracker.gate.MarkSynced(ctx, vu.id, props)
	}
	s.tracker.metrics.ProfileSynced()

	s.profile = props
}
