// ABOUTME: Tests for the tracker entry points and middleware
// ABOUTME: Validates the DNT predicate, Process profile sync, and context plumbing

package analytics

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTrackingDisabled(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		headers map[string]string
		want    bool
	}{
		{
			name:    "dnt set to 1",
			headers: map[string]string{"Dnt": "1"},
			want:    true,
		},
		{
			name:    "dnt set to 0",
			headers: map[string]string{"Dnt": "0"},
			want:    false,
		},
		{
			name:    "no dnt header",
			headers: nil,
			want:    false,
		},
		{
			name:    "dnt with other value",
			headers: map[string]string{"Dnt": "yes"},
			want:    false,
		},
		{
			name:    "lowercase header name is canonicalized",
			headers: map[string]string{"dnt": "1"},
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}

			if got := TrackingDisabled(r); got != tt.want {
				t.Errorf("TrackingDisabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTrackingDisabled_Idempotent(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Dnt", "1")

	first := TrackingDisabled(r)
	second := TrackingDisabled(r)
	if first != second {
		t.Errorf("TrackingDisabled() = %v then %v, want identical results", first, second)
	}
}

func TestTracker_Process_SyncsProfile(t *testing.T) {
	t.Parallel()

	client := &recordingClient{}
	tracker := newTestTracker(client)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	scope := tracker.Process(r, testUser())

	if scope.DoNotTrack() {
		t.Error("DoNotTrack() = true, want false")
	}
	if scope.Profile() == nil {
		t.Error("Profile() = nil, want snapshot after Process with a valid user")
	}
	if len(client.profiles) != 1 {
		t.Errorf("client received %d profile syncs, want 1", len(client.profiles))
	}
}

func TestTracker_Process_DNTSkipsProfileSync(t *testing.T) {
	t.Parallel()

	client := &recordingClient{}
	tracker := newTestTracker(client)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Dnt", "1")
	scope := tracker.Process(r, testUser())

	if !scope.DoNotTrack() {
		t.Error("DoNotTrack() = false, want true")
	}
	if scope.Profile() != nil {
		t.Error("Profile() non-nil under DNT")
	}
	if len(client.profiles) != 0 {
		t.Error("client received a profile sync under DNT")
	}
}

func TestTracker_Process_MalformedUserSkipsProfileSync(t *testing.T) {
	t.Parallel()

	client := &recordingClient{}
	tracker := newTestTracker(client)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	scope := tracker.Process(r, &User{Name: "Callum"})

	if scope.Profile() != nil {
		t.Error("Profile() non-nil for malformed user")
	}
	if len(client.profiles) != 0 {
		t.Error("client received a profile sync for a malformed user")
	}
}

func TestTracker_Middleware(t *testing.T) {
	t.Parallel()

	tracker := newTestTracker(&recordingClient{})

	var scope *Scope
	h := tracker.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scope = ScopeFrom(r.Context())
		if scope != nil {
			scope.Track(r.Context(), r, "Page View", nil)
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/some_page_url", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if scope == nil {
		t.Fatal("handler saw no Scope on the request context")
	}
	events := scope.TrackedEvents()
	if len(events) != 1 {
		t.Fatalf("TrackedEvents() len = %d, want 1", len(events))
	}
	if got := events[0].Properties["Current Path"]; got != "/some_page_url" {
		t.Errorf(`properties["Current Path"] = %v, want "/some_page_url"`, got)
	}
}

func TestTracker_Middleware_UserFromContext(t *testing.T) {
	t.Parallel()

	client := &recordingClient{}
	tracker := newTestTracker(client)

	// Simulate an auth middleware installed ahead of tracking.
	auth := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), testUser())))
		})
	}

	var scope *Scope
	h := auth(tracker.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scope = ScopeFrom(r.Context())
	})))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)

	if scope == nil || scope.Profile() == nil {
		t.Fatal("profile not synced for user installed by upstream middleware")
	}
	if got := scope.Profile()["$name"]; got != "Callum" {
		t.Errorf(`profile["$name"] = %v, want "Callum"`, got)
	}
}
