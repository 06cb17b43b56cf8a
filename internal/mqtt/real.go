package mqtt

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// Options configures a RealClient.
type Options struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topics   Topics
	// OnMessage receives messages on Topics.Subscriptions().
	OnMessage MessageHandler
}

// RealClient talks to an actual MQTT broker.
type RealClient struct {
	client    paho.Client
	topics    Topics
	onMessage MessageHandler

	mu    sync.Mutex
	token paho.Token // initial connect, nil until Connect is first called

	connections atomic.Uint64
}

// NewRealClient creates a client. The last will is registered here; nothing
// touches the network until Connect.
func NewRealClient(o Options) *RealClient {
	c := &RealClient{
		topics:    o.Topics,
		onMessage: o.OnMessage,
	}

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetMaxReconnectInterval(time.Minute).
		SetWill(o.Topics.Status, StatusOffline, QoS, true).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		}).
		SetReconnectingHandler(func(_ paho.Client, _ *paho.ClientOptions) {
			log.Printf("mqtt: reconnecting to %s", o.Broker)
		})
	if o.Username != "" {
		opts.SetUsername(o.Username)
		opts.SetPassword(o.Password)
	}

	c.client = paho.NewClient(opts)
	return c
}

// onConnect runs after every (re)connection. With a clean session the broker
// forgets subscriptions, so they are always re-established here.
func (c *RealClient) onConnect(client paho.Client) {
	for _, topic := range c.topics.Subscriptions() {
		token := client.Subscribe(topic, QoS, c.handle)
		if !token.WaitTimeout(5 * time.Second) {
			log.Printf("mqtt: subscribe %s: timeout", topic)
			continue
		}
		if err := token.Error(); err != nil {
			log.Printf("mqtt: subscribe %s: %v", topic, err)
			continue
		}
		log.Printf("mqtt: subscribed to %s", topic)
	}
	c.connections.Add(1)
}

func (c *RealClient) handle(_ paho.Client, msg paho.Message) {
	if c.onMessage != nil {
		c.onMessage(msg.Topic(), msg.Payload(), msg.Retained())
	}
}

// Connect starts the connection on first use and waits until it is open.
// After a connection loss the client reconnects on its own; Connect then only
// waits for that to happen.
func (c *RealClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.token == nil {
		c.token = c.client.Connect()
	}
	token := c.token
	c.mu.Unlock()

	poll := time.NewTicker(250 * time.Millisecond)
	defer poll.Stop()

	for {
		if c.client.IsConnectionOpen() {
			return nil
		}
		select {
		case <-token.Done():
			if err := token.Error(); err != nil {
				c.mu.Lock()
				c.token = nil
				c.mu.Unlock()
				return fmt.Errorf("connect to broker: %w", err)
			}
		default:
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-poll.C:
		}
	}
}

// Publish sends payload to topic.
func (c *RealClient) Publish(topic string, payload []byte, retain bool, qos byte) error {
	token := c.client.Publish(topic, qos, retain, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// IsConnected reports whether the connection is open.
func (c *RealClient) IsConnected() bool {
	return c.client.IsConnectionOpen()
}

// Connections returns the number of completed (re)connections.
func (c *RealClient) Connections() uint64 {
	return c.connections.Load()
}

// Close disconnects from the broker. A clean disconnect suppresses the will.
func (c *RealClient) Close() error {
	c.client.Disconnect(1000) // 1 second timeout
	return nil
}
