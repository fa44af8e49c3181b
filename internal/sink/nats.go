// ABOUTME: NATS fan-out backend publishing tracking envelopes as JSON
// ABOUTME: Lets downstream consumers subscribe to the event stream

package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/percept-io/percept/internal/analytics"
)

// Envelope kinds published to NATS.
const (
	KindEvent   = "event"
	KindProfile = "profile"
)

// NATSConfig holds configuration for the NATS backend.
type NATSConfig struct {
	// URL is the NATS server URL.
	URL string

	// Subject is the base subject; envelopes are published to
	// "<subject>.events" and "<subject>.profiles".
	Subject string

	// Name is the connection name shown on the server.
	Name string

	// MaxReconnects before the connection gives up (-1 for unlimited).
	MaxReconnects int

	// ReconnectWait between reconnect attempts.
	ReconnectWait time.Duration
}

// DefaultNATSConfig returns a configuration with sensible defaults.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		Subject:       "percept.tracking",
		Name:          "percept",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

// Envelope is the JSON message published for each dispatched call.
type Envelope struct {
	Kind       string         `json:"kind"`
	Event      string         `json:"event,omitempty"`
	DistinctID any            `json:"distinct_id,omitempty"`
	Properties map[string]any `json:"properties"`
	Options    map[string]any `json:"options,omitempty"`
	At         time.Time      `json:"at"`
}

// NATS publishes tracking envelopes to a NATS subject. Publishes are
// fire-and-forget; the server buffers delivery to subscribers.
type NATS struct {
	conn   *nats.Conn
	config NATSConfig
	logger *slog.Logger
}

// NewNATS connects to the NATS server and returns the backend.
func NewNATS(cfg NATSConfig, logger *slog.Logger) (*NATS, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS disconnected", slog.Any("error", err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}

	logger.Info("connected to NATS",
		slog.String("url", conn.ConnectedUrl()),
		slog.String("subject", cfg.Subject),
	)

	return &NATS{conn: conn, config: cfg, logger: logger}, nil
}

// TrackEvent publishes an event envelope.
func (n *NATS) TrackEvent(ctx context.Context, name string, props analytics.Properties, opts analytics.Options) error {
	env := Envelope{
		Kind:       KindEvent,
		Event:      name,
		DistinctID: opts["distinct_id"],
		Properties: props,
		Options:    opts,
		At:         time.Now().UTC(),
	}
	return n.publish(n.config.Subject+".events", env)
}

// SetProfile publishes a profile envelope.
func (n *NATS) SetProfile(ctx context.Context, distinctID any, props analytics.Properties, opts analytics.Options) error {
	env := Envelope{
		Kind:       KindProfile,
		DistinctID: distinctID,
		Properties: props,
		Options:    opts,
		At:         time.Now().UTC(),
	}
	return n.publish(n.config.Subject+".profiles", env)
}

// Close drains and closes the connection.
func (n *NATS) Close() {
	if n.conn != nil {
		n.conn.Close()
	}
}

func (n *NATS) publish(subject string, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshaling envelope: %w", err)
	}
	if err := n.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}
	return nil
}
