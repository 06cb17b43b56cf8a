package mqtt

import (
	"context"
	"sync"
)

// Message is a recorded publish.
type Message struct {
	Topic    string
	Payload  string
	Retained bool
	QoS      byte
}

// FakeClient records published messages for test assertions.
type FakeClient struct {
	mu sync.Mutex

	// Messages contains all messages that were published.
	Messages []Message

	// ConnectError, if set, will be returned by Connect.
	ConnectError error

	// PublishError, if set, will be returned by Publish.
	PublishError error

	// ConnectCalls counts calls to Connect.
	ConnectCalls int

	// Closed tracks if Close was called.
	Closed bool

	connected   bool
	connections uint64
}

// NewFakeClient creates a FakeClient for testing.
func NewFakeClient() *FakeClient {
	return &FakeClient{}
}

// Connect marks the client connected unless ConnectError is set.
func (f *FakeClient) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ConnectCalls++
	if f.ConnectError != nil {
		return f.ConnectError
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if !f.connected {
		f.connected = true
		f.connections++
	}
	return nil
}

// Drop simulates a lost connection.
func (f *FakeClient) Drop() {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
}

// Reconnect simulates the client re-establishing its session by itself.
func (f *FakeClient) Reconnect() {
	f.mu.Lock()
	f.connected = true
	f.connections++
	f.mu.Unlock()
}

// Publish records the message.
func (f *FakeClient) Publish(topic string, payload []byte, retain bool, qos byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Messages = append(f.Messages, Message{
		Topic:    topic,
		Payload:  string(payload),
		Retained: retain,
		QoS:      qos,
	})
	return nil
}

// IsConnected reports whether the fake is "connected".
func (f *FakeClient) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// Connections returns the number of simulated (re)connections.
func (f *FakeClient) Connections() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connections
}

// Close marks the client as closed and disconnected.
func (f *FakeClient) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.connected = false
	f.mu.Unlock()
	return nil
}

// Published returns a copy of the recorded messages.
func (f *FakeClient) Published() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Message(nil), f.Messages...)
}

// OnTopic returns the recorded messages published to topic.
func (f *FakeClient) OnTopic(topic string) []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Message
	for _, m := range f.Messages {
		if m.Topic == topic {
			out = append(out, m)
		}
	}
	return out
}

// Reset clears recorded messages and injected errors.
func (f *FakeClient) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Messages = nil
	f.ConnectError = nil
	f.PublishError = nil
	f.ConnectCalls = 0
	f.Closed = false
}
