package mqtt

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/stretchr/testify/require"
)

// startBroker runs an embedded broker on a free local port and returns its URL.
func startBroker(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	server := mochi.New(nil)
	require.NoError(t, server.AddHook(&auth.AllowHook{}, nil))
	require.NoError(t, server.AddListener(listeners.NewTCP(listeners.Config{
		ID:      "t1",
		Type:    "tcp",
		Address: addr,
	})))
	require.NoError(t, server.Serve())
	t.Cleanup(func() { server.Close() })

	return "tcp://" + addr
}

type recorder struct {
	mu   sync.Mutex
	msgs []Message
}

func (r *recorder) add(m Message) {
	r.mu.Lock()
	r.msgs = append(r.msgs, m)
	r.mu.Unlock()
}

func (r *recorder) find(topic string) (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.msgs {
		if m.Topic == topic {
			return m, true
		}
	}
	return Message{}, false
}

// observe connects a plain paho client that records everything under base.
func observe(t *testing.T, broker, base string) *recorder {
	t.Helper()
	rec := &recorder{}
	opts := paho.NewClientOptions().AddBroker(broker).SetClientID("observer")
	c := paho.NewClient(opts)
	tok := c.Connect()
	require.True(t, tok.WaitTimeout(5*time.Second))
	require.NoError(t, tok.Error())
	t.Cleanup(func() { c.Disconnect(100) })

	sub := c.Subscribe(base+"/#", 0, func(_ paho.Client, m paho.Message) {
		rec.add(Message{Topic: m.Topic(), Payload: string(m.Payload()), Retained: m.Retained()})
	})
	require.True(t, sub.WaitTimeout(5*time.Second))
	require.NoError(t, sub.Error())
	return rec
}

func TestRealClientWithBroker(t *testing.T) {
	if testing.Short() {
		t.Skip("starts an embedded broker")
	}

	broker := startBroker(t)
	topics := NewTopics("test/washer")

	type inbound struct {
		topic    string
		payload  string
		retained bool
	}
	received := make(chan inbound, 10)

	client := NewRealClient(Options{
		Broker:   broker,
		ClientID: "washer-test",
		Topics:   topics,
		OnMessage: func(topic string, payload []byte, retained bool) {
			received <- inbound{topic, string(payload), retained}
		},
	})
	t.Cleanup(func() { client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, client.Connect(ctx))
	require.True(t, client.IsConnected())

	require.Eventually(t, func() bool { return client.Connections() == 1 },
		5*time.Second, 20*time.Millisecond, "subscriptions should complete")

	rec := observe(t, broker, "test/washer")

	t.Run("PublishRetained", func(t *testing.T) {
		require.NoError(t, client.Publish(topics.Status, []byte(StatusOnline), true, QoS))
		require.Eventually(t, func() bool {
			m, ok := rec.find(topics.Status)
			return ok && m.Payload == StatusOnline
		}, 5*time.Second, 20*time.Millisecond)
	})

	t.Run("ReceiveCommand", func(t *testing.T) {
		pub := paho.NewClient(paho.NewClientOptions().AddBroker(broker).SetClientID("operator"))
		tok := pub.Connect()
		require.True(t, tok.WaitTimeout(5*time.Second))
		require.NoError(t, tok.Error())
		defer pub.Disconnect(100)

		pt := pub.Publish(topics.Command, 0, false, "ON")
		require.True(t, pt.WaitTimeout(5*time.Second))

		select {
		case msg := <-received:
			require.Equal(t, topics.Command, msg.topic)
			require.Equal(t, "ON", msg.payload)
		case <-time.After(5 * time.Second):
			t.Fatal("command not delivered")
		}
	})
}

func TestRealClientConnectCancelled(t *testing.T) {
	// Nothing listens here; connect keeps retrying until the context ends.
	client := NewRealClient(Options{
		Broker:   "tcp://127.0.0.1:1",
		ClientID: "washer-test-cancel",
		Topics:   NewTopics("test/washer"),
	})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	err := client.Connect(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.False(t, client.IsConnected())
}
