// ABOUTME: Tests for NATS envelope construction and configuration defaults
// ABOUTME: Server round-trips are covered by integration environments, not here

package sink

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDefaultNATSConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultNATSConfig()
	if cfg.Subject != "percept.tracking" {
		t.Errorf("Subject = %q, want percept.tracking", cfg.Subject)
	}
	if cfg.MaxReconnects != -1 {
		t.Errorf("MaxReconnects = %d, want -1", cfg.MaxReconnects)
	}
	if cfg.ReconnectWait != 2*time.Second {
		t.Errorf("ReconnectWait = %v, want 2s", cfg.ReconnectWait)
	}
}

func TestEnvelope_JSON(t *testing.T) {
	t.Parallel()

	env := Envelope{
		Kind:       KindEvent,
		Event:      "Page View",
		DistinctID: 1,
		Properties: map[string]any{"Current Path": "/some_page_url"},
		Options:    map[string]any{"ip": "192.0.2.1"},
		At:         time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshaling envelope: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decoding envelope: %v", err)
	}

	if decoded["kind"] != "event" {
		t.Errorf("kind = %v, want event", decoded["kind"])
	}
	if decoded["event"] != "Page View" {
		t.Errorf("event = %v, want Page View", decoded["event"])
	}

	props, ok := decoded["properties"].(map[string]any)
	if !ok {
		t.Fatal("properties missing from envelope")
	}
	if props["Current Path"] != "/some_page_url" {
		t.Errorf(`properties["Current Path"] = %v, want /some_page_url`, props["Current Path"])
	}
}
