// Package mqtt provides the MQTT transport with abstraction for testing.
package mqtt

import (
	"context"
	"strings"

	"github.com/sweeney/washer-sensor/internal/logic"
)

// DefaultBaseTopic is the topic namespace used when none is configured.
const DefaultBaseTopic = "esp32/washer"

// Status payloads. Offline is registered as the last will.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// QoS is used for every publish and subscription (at-most-once).
const QoS byte = 0

// Topics holds the full topic names derived from a base namespace.
type Topics struct {
	Status   string
	Config   string
	Active   string
	Command  string
	Readings string
	Notify   string
}

// NewTopics derives the topic set under base. A trailing slash is ignored.
func NewTopics(base string) Topics {
	base = strings.TrimRight(base, "/")
	if base == "" {
		base = DefaultBaseTopic
	}
	active := base + "/active/1"
	return Topics{
		Status:   base + "/status",
		Config:   base + "/config",
		Active:   active,
		Command:  active + "/set",
		Readings: base + "/readings/1",
		Notify:   base + "/notify",
	}
}

// Subscriptions returns the topics the monitor listens on.
func (t Topics) Subscriptions() []string {
	return []string{t.Command, t.Config}
}

// MessageHandler receives inbound messages. It is called from the client's
// network goroutines and must not block.
type MessageHandler func(topic string, payload []byte, retained bool)

// Client is the transport used by the monitor.
type Client interface {
	// Connect blocks until the broker session is up or ctx is done.
	// Retry and backoff are handled inside the client.
	Connect(ctx context.Context) error

	// Publish sends payload to topic. Returns error if publishing fails
	// (should not crash the process).
	Publish(topic string, payload []byte, retain bool, qos byte) error

	// IsConnected reports whether the connection is currently up.
	IsConnected() bool

	// Connections counts completed (re)connections, including resubscription.
	// A change tells the caller the session was re-established.
	Connections() uint64

	// Close disconnects from the broker.
	Close() error
}

// FormatReadings creates the readings payload, e.g. "(12, 4, 0)".
func FormatReadings(d logic.Deltas) []byte {
	return []byte(d.String())
}
