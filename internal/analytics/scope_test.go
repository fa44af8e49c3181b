// ABOUTME: Tests for request-scoped tracking state and dispatch
// ABOUTME: Validates DNT gating, event records, options, and profile snapshots

package analytics

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// recordingClient captures dispatched calls for assertions.
type recordingClient struct {
	mu       sync.Mutex
	events   []TrackedEvent
	profiles []Properties
	err      error
}

func (c *recordingClient) TrackEvent(ctx context.Context, name string, props Properties, opts Options) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, TrackedEvent{Name: name, Properties: props, Options: opts})
	return c.err
}

func (c *recordingClient) SetProfile(ctx context.Context, distinctID any, props Properties, opts Options) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.profiles = append(c.profiles, props)
	return c.err
}

func newTestTracker(client Client) *Tracker {
	return New(Config{
		Client: client,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func testUser() *User {
	return &User{ID: 1, Name: "Callum", Email: "callum@example.com"}
}

func TestScope_Track_RecordsDistinctID(t *testing.T) {
	t.Parallel()

	client := &recordingClient{}
	tracker := newTestTracker(client)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	scope := tracker.Process(r, testUser())

	scope.Track(r.Context(), r, "test", nil)

	events := scope.TrackedEvents()
	if len(events) != 1 {
		t.Fatalf("TrackedEvents() len = %d, want 1", len(events))
	}
	if got := events[0].Options["distinct_id"]; got != 1 {
		t.Errorf("distinct_id = %v, want 1", got)
	}
	if got := events[0].Options["ip"]; got == "" {
		t.Error("options missing client ip")
	}
}

func TestScope_Track_NoUserOmitsDistinctID(t *testing.T) {
	t.Parallel()

	tracker := newTestTracker(&recordingClient{})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	scope := tracker.Process(r, nil)
	scope.Track(r.Context(), r, "test", nil)

	events := scope.TrackedEvents()
	if len(events) != 1 {
		t.Fatalf("TrackedEvents() len = %d, want 1", len(events))
	}
	if _, ok := events[0].Options["distinct_id"]; ok {
		t.Error("distinct_id present without a current user")
	}
}

func TestScope_Track_MostRecentFirst(t *testing.T) {
	t.Parallel()

	tracker := newTestTracker(&recordingClient{})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	scope := tracker.Process(r, nil)

	scope.Track(r.Context(), r, "first", nil)
	scope.Track(r.Context(), r, "second", nil)
	scope.Track(r.Context(), r, "third", nil)

	events := scope.TrackedEvents()
	want := []string{"third", "second", "first"}
	if len(events) != len(want) {
		t.Fatalf("TrackedEvents() len = %d, want %d", len(events), len(want))
	}
	for i, name := range want {
		if events[i].Name != name {
			t.Errorf("events[%d].Name = %q, want %q", i, events[i].Name, name)
		}
	}
}

func TestScope_Track_DNTLeavesStateUntouched(t *testing.T) {
	t.Parallel()

	client := &recordingClient{}
	tracker := newTestTracker(client)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Dnt", "1")
	scope := tracker.Process(r, testUser())

	scope.Track(r.Context(), r, "test", nil)
	scope.UpdateProfile(r.Context(), r, testUser())

	if !scope.DoNotTrack() {
		t.Error("DoNotTrack() = false, want true")
	}
	if scope.Profile() != nil {
		t.Errorf("Profile() = %v, want nil", scope.Profile())
	}
	if len(scope.TrackedEvents()) != 0 {
		t.Errorf("TrackedEvents() len = %d, want 0", len(scope.TrackedEvents()))
	}
	if len(client.events) != 0 || len(client.profiles) != 0 {
		t.Error("client received calls despite DNT")
	}
}

func TestScope_Track_ClientErrorIsSwallowed(t *testing.T) {
	t.Parallel()

	client := &recordingClient{err: errors.New("backend down")}
	tracker := newTestTracker(client)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	scope := tracker.Process(r, nil)
	scope.Track(r.Context(), r, "test", nil)

	// The record is still appended; delivery failures never surface.
	if len(scope.TrackedEvents()) != 1 {
		t.Errorf("TrackedEvents() len = %d, want 1", len(scope.TrackedEvents()))
	}
}

func TestScope_UpdateProfile_Snapshot(t *testing.T) {
	t.Parallel()

	client := &recordingClient{}
	tracker := newTestTracker(client)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	scope := tracker.Process(r, nil)
	scope.UpdateProfile(r.Context(), r, testUser())

	profile := scope.Profile()
	if profile == nil {
		t.Fatal("Profile() = nil, want snapshot")
	}
	if got := profile["ID"]; got != 1 {
		t.Errorf(`profile["ID"] = %v, want 1`, got)
	}
	if got := profile["$name"]; got != "Callum" {
		t.Errorf(`profile["$name"] = %v, want "Callum"`, got)
	}
	if got := profile["$email"]; got != "callum@example.com" {
		t.Errorf(`profile["$email"] = %v, want "callum@example.com"`, got)
	}
	if len(client.profiles) != 1 {
		t.Errorf("client received %d profile syncs, want 1", len(client.profiles))
	}
}

func TestScope_UpdateProfile_MalformedUser(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		user *User
	}{
		{"nil user", nil},
		{"missing id", &User{Name: "Callum", Email: "callum@example.com"}},
		{"missing name", &User{ID: 1, Email: "callum@example.com"}},
		{"missing email", &User{ID: 1, Name: "Callum"}},
		{"empty string id", &User{ID: "", Name: "Callum", Email: "callum@example.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client := &recordingClient{}
			tracker := newTestTracker(client)

			r := httptest.NewRequest(http.MethodGet, "/", nil)
			scope := tracker.Process(r, nil)
			scope.UpdateProfile(r.Context(), r, tt.user)

			if scope.Profile() != nil {
				t.Errorf("Profile() = %v, want nil", scope.Profile())
			}
			if len(client.profiles) != 0 {
				t.Error("client received a profile sync for a malformed user")
			}
		})
	}
}

// stubGate lets tests force the dedupe decision.
type stubGate struct {
	shouldSync bool
	marked     int
}

func (g *stubGate) ShouldSync(ctx context.Context, distinctID any, props Properties) bool {
	return g.shouldSync
}

func (g *stubGate) MarkSynced(ctx context.Context, distinctID any, props Properties) {
	g.marked++
}

func TestScope_UpdateProfile_GateDedupe(t *testing.T) {
	t.Parallel()

	client := &recordingClient{}
	gate := &stubGate{shouldSync: false}
	tracker := New(Config{
		Client: client,
		Gate:   gate,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	scope := &Scope{tracker: tracker}
	scope.UpdateProfile(r.Context(), r, testUser())

	if len(client.profiles) != 0 {
		t.Error("client called although gate reported payload unchanged")
	}
	// Snapshot is recorded either way; only the network call is elided.
	if scope.Profile() == nil {
		t.Error("Profile() = nil, want snapshot despite dedupe")
	}
}

func TestScope_UpdateProfile_GateMarksSynced(t *testing.T) {
	t.Parallel()

	client := &recordingClient{}
	gate := &stubGate{shouldSync: true}
	tracker := New(Config{
		Client: client,
		Gate:   gate,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	scope := &Scope{tracker: tracker}
	scope.UpdateProfile(r.Context(), r, testUser())

	if len(client.profiles) != 1 {
		t.Fatalf("client received %d profile syncs, want 1", len(client.profiles))
	}
	if gate.marked != 1 {
		t.Errorf("MarkSynced called %d times, want 1", gate.marked)
	}
}
