// ABOUTME: Mixpanel tracking backend built on the official Go client
// ABOUTME: Maps events and profile syncs onto /track and /engage ingestion

package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	mp "github.com/mixpanel/mixpanel-go"

	"github.com/percept-io/percept/internal/analytics"
)

// MixpanelConfig holds configuration for the Mixpanel backend.
type MixpanelConfig struct {
	// Token is the Mixpanel project token. Required.
	Token string

	// EUResidency routes ingestion to the EU data residency endpoints.
	EUResidency bool
}

// Mixpanel forwards events and profile syncs to Mixpanel. Transport,
// batching, and delivery semantics belong to the official client.
type Mixpanel struct {
	client *mp.ApiClient
}

// NewMixpanel creates a Mixpanel backend.
func NewMixpanel(cfg MixpanelConfig) (*Mixpanel, error) {
	if cfg.Token == "" {
		return nil, errors.New("mixpanel token is required")
	}

	var opts []mp.Options
	if cfg.EUResidency {
		opts = append(opts, mp.EuResidency())
	}

	return &Mixpanel{client: mp.NewApiClient(cfg.Token, opts...)}, nil
}

// TrackEvent sends one event to the /track endpoint. The delivery
// options are folded into the property bag the way the ingestion API
// expects: "ip" drives geolocation and "$insert_id" deduplicates
// retried deliveries.
func (m *Mixpanel) TrackEvent(ctx context.Context, name string, props analytics.Properties, opts analytics.Options) error {
	payload := make(map[string]any, len(props)+2)
	for k, v := range props {
		payload[k] = v
	}
	if ip, ok := opts["ip"].(string); ok && ip != "" {
		payload["ip"] = ip
	}
	payload["$insert_id"] = uuid.New().String()

	event := m.client.NewEvent(name, distinctIDString(opts["distinct_id"]), payload)
	if err := m.client.Track(ctx, []*mp.Event{event}); err != nil {
		return fmt.Errorf("mixpanel track: %w", err)
	}
	return nil
}

// SetProfile sends a profile update to the /engage endpoint.
func (m *Mixpanel) SetProfile(ctx context.Context, distinctID any, props analytics.Properties, opts analytics.Options) error {
	people := mp.NewPeopleProperties(distinctIDString(distinctID), props)
	if err := m.client.PeopleSet(ctx, []*mp.PeopleProperties{people}); err != nil {
		return fmt.Errorf("mixpanel people set: %w", err)
	}
	return nil
}

// distinctIDString renders a distinct ID for the wire. Integer and
// string IDs both occur; an absent ID becomes the empty string, which
// Mixpanel treats as an anonymous event.
func distinctIDString(id any) string {
	switch v := id.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
