// ABOUTME: Tests for the BadgerDB journal
// ABOUTME: Uses in-memory mode to validate appends, ordering, and iteration

package journal

import (
	"context"
	"testing"
	"time"

	"github.com/percept-io/percept/internal/analytics"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()

	j, err := Open(Config{InMemory: true})
	if err != nil {
		t.Fatalf("opening journal: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournal_TrackEvent(t *testing.T) {
	t.Parallel()

	j := openTestJournal(t)
	ctx := context.Background()

	err := j.TrackEvent(ctx, "Page View",
		analytics.Properties{"Current Path": "/some_page_url"},
		analytics.Options{"ip": "192.0.2.1", "distinct_id": 1},
	)
	if err != nil {
		t.Fatalf("TrackEvent() error = %v", err)
	}

	records, err := j.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Recent() len = %d, want 1", len(records))
	}

	rec := records[0]
	if rec.Kind != KindEvent {
		t.Errorf("Kind = %q, want %q", rec.Kind, KindEvent)
	}
	if rec.Event != "Page View" {
		t.Errorf("Event = %q, want Page View", rec.Event)
	}
	if rec.Properties["Current Path"] != "/some_page_url" {
		t.Errorf(`Properties["Current Path"] = %v, want /some_page_url`, rec.Properties["Current Path"])
	}
}

func TestJournal_Recent_MostRecentFirst(t *testing.T) {
	t.Parallel()

	j := openTestJournal(t)
	ctx := context.Background()

	for _, name := range []string{"first", "second", "third"} {
		if err := j.TrackEvent(ctx, name, nil, nil); err != nil {
			t.Fatalf("TrackEvent(%q) error = %v", name, err)
		}
		// Distinct timestamps keep key order deterministic.
		time.Sleep(time.Millisecond)
	}

	records, err := j.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Recent(2) len = %d, want 2", len(records))
	}
	if records[0].Event != "third" || records[1].Event != "second" {
		t.Errorf("Recent() order = [%s, %s], want [third, second]",
			records[0].Event, records[1].Event)
	}
}

func TestJournal_SetProfile(t *testing.T) {
	t.Parallel()

	j := openTestJournal(t)
	ctx := context.Background()

	err := j.SetProfile(ctx, 1,
		analytics.Properties{"$name": "Callum", "$email": "callum@example.com", "ID": 1},
		analytics.Options{"ip": "192.0.2.1"},
	)
	if err != nil {
		t.Fatalf("SetProfile() error = %v", err)
	}

	records, err := j.Recent(ctx, 1)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Recent() len = %d, want 1", len(records))
	}
	if records[0].Kind != KindProfile {
		t.Errorf("Kind = %q, want %q", records[0].Kind, KindProfile)
	}
	if records[0].Properties["$name"] != "Callum" {
		t.Errorf(`Properties["$name"] = %v, want Callum`, records[0].Properties["$name"])
	}
}

func TestJournal_All_ChronologicalOrder(t *testing.T) {
	t.Parallel()

	j := openTestJournal(t)
	ctx := context.Background()

	for _, name := range []string{"first", "second", "third"} {
		if err := j.TrackEvent(ctx, name, nil, nil); err != nil {
			t.Fatalf("TrackEvent(%q) error = %v", name, err)
		}
		time.Sleep(time.Millisecond)
	}

	var seen []string
	err := j.All(ctx, func(rec Record) error {
		seen = append(seen, rec.Event)
		return nil
	})
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}

	want := []string{"first", "second", "third"}
	if len(seen) != len(want) {
		t.Fatalf("All() visited %d records, want %d", len(seen), len(want))
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("seen[%d] = %q, want %q", i, seen[i], want[i])
		}
	}
}

func TestJournal_Stats(t *testing.T) {
	t.Parallel()

	j := openTestJournal(t)
	ctx := context.Background()

	if got := j.Stats().Records; got != 0 {
		t.Errorf("Records = %d, want 0", got)
	}

	for range 5 {
		if err := j.TrackEvent(ctx, "test", nil, nil); err != nil {
			t.Fatalf("TrackEvent() error = %v", err)
		}
	}

	if got := j.Stats().Records; got != 5 {
		t.Errorf("Records = %d, want 5", got)
	}
}

func TestJournal_Recent_EmptyJournal(t *testing.T) {
	t.Parallel()

	j := openTestJournal(t)

	records, err := j.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(records) != 0 {
		t.Errorf("Recent() len = %d, want 0", len(records))
	}
}
