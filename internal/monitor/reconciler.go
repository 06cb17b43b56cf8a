package monitor

import (
	"context"
	"log"
	"time"

	"github.com/sweeney/washer-sensor/internal/gpio"
	"github.com/sweeney/washer-sensor/internal/logic"
	"github.com/sweeney/washer-sensor/internal/mqtt"
	"github.com/sweeney/washer-sensor/internal/status"
)

// State is the reconciler's connection/config state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateAwaitingConfig
	StateActive
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateAwaitingConfig:
		return "AWAITING_CONFIG"
	case StateActive:
		return "ACTIVE"
	}
	return "UNKNOWN"
}

// ReconcilerOptions tunes the reconciler. Zero durations take defaults.
type ReconcilerOptions struct {
	// TickInterval is the drain period once configured. Default 1s.
	TickInterval time.Duration
	// AwaitInterval is the poll period while waiting for configuration. Default 5s.
	AwaitInterval time.Duration
	// RetryInterval is the wait after Connect returns an error. Default 5s.
	RetryInterval time.Duration

	// Indicator, if set, mirrors the active flag.
	Indicator gpio.Indicator
	// Tracker, if set, receives state for the status page.
	Tracker *status.Tracker
}

func (o ReconcilerOptions) withDefaults() ReconcilerOptions {
	if o.TickInterval <= 0 {
		o.TickInterval = time.Second
	}
	if o.AwaitInterval <= 0 {
		o.AwaitInterval = 5 * time.Second
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = 5 * time.Second
	}
	return o
}

// Reconciler drains the Cell and publishes pending outputs. It owns the
// operator-visible active flag, derived from staged commands.
// Step and Run must be called from a single goroutine.
type Reconciler struct {
	client   mqtt.Client
	topics   mqtt.Topics
	settings *Settings
	cell     *Cell
	opts     ReconcilerOptions

	state     State
	active    bool
	announced uint64 // client.Connections() value last announced online
}

// NewReconciler creates a Reconciler in StateDisconnected.
func NewReconciler(client mqtt.Client, topics mqtt.Topics, settings *Settings, cell *Cell, opts ReconcilerOptions) *Reconciler {
	return &Reconciler{
		client:   client,
		topics:   topics,
		settings: settings,
		cell:     cell,
		opts:     opts.withDefaults(),
	}
}

// State returns the current state.
func (r *Reconciler) State() State {
	return r.state
}

// Active returns the operator-visible active flag.
func (r *Reconciler) Active() bool {
	return r.active
}

// Step advances the state machine once and returns how long to wait before
// the next step.
func (r *Reconciler) Step(ctx context.Context) time.Duration {
	switch r.state {
	case StateDisconnected:
		r.setState(StateConnecting)
		return 0
	case StateConnecting:
		if err := r.client.Connect(ctx); err != nil {
			if ctx.Err() == nil {
				log.Printf("reconciler: connect failed: %v", err)
			}
			return r.opts.RetryInterval
		}
		r.setConnected(true)
		r.setState(StateAwaitingConfig)
		return 0
	}

	if !r.client.IsConnected() {
		log.Printf("reconciler: connection lost, waiting for reconnect")
		r.setConnected(false)
		r.setState(StateConnecting)
		return 0
	}
	r.announce()

	if r.state == StateAwaitingConfig {
		if !r.settings.Received() {
			log.Printf("reconciler: config not found, will check again in %v", r.opts.AwaitInterval)
			return r.opts.AwaitInterval
		}
		r.setState(StateActive)
		return 0
	}

	r.drain()
	return r.opts.TickInterval
}

// Run steps until ctx is done. after is normally time.After.
func (r *Reconciler) Run(ctx context.Context, after func(time.Duration) <-chan time.Time) {
	for {
		wait := r.Step(ctx)
		if ctx.Err() != nil {
			return
		}
		if wait <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-after(wait):
		}
	}
}

// Shutdown publishes the offline status. A clean disconnect does not trigger
// the last will, so this is the only way observers learn about it.
func (r *Reconciler) Shutdown() error {
	if !r.client.IsConnected() {
		return nil
	}
	return r.client.Publish(r.topics.Status, []byte(mqtt.StatusOffline), true, mqtt.QoS)
}

// announce publishes "online" once per broker session.
func (r *Reconciler) announce() {
	n := r.client.Connections()
	if n == r.announced {
		return
	}
	if err := r.client.Publish(r.topics.Status, []byte(mqtt.StatusOnline), true, mqtt.QoS); err != nil {
		log.Printf("reconciler: publish online: %v", err)
		return
	}
	r.announced = n
}

// drain publishes each staged output at most once.
func (r *Reconciler) drain() {
	if cmd, ok := r.cell.TakeCommand(); ok && cmd == "" {
		// An empty retained publish would clear the broker's active state.
		log.Printf("reconciler: ignoring empty command")
	} else if ok {
		active := logic.IsOnCommand(cmd)
		if r.cell.SetActive(active) {
			log.Printf("reconciler: monitoring activated")
		}
		r.setActive(active)
		r.publish(r.topics.Active, []byte(cmd), true)
	}
	if d, ok := r.cell.TakeReadings(); ok {
		r.publish(r.topics.Readings, mqtt.FormatReadings(d), true)
	}
	if n, ok := r.cell.TakeNotification(); ok {
		r.publish(r.topics.Notify, []byte(n), false)
	}
}

func (r *Reconciler) publish(topic string, payload []byte, retain bool) {
	if err := r.client.Publish(topic, payload, retain, mqtt.QoS); err != nil {
		// Dropped; the next staged value supersedes it.
		log.Printf("reconciler: publish error: %v", err)
	}
}

func (r *Reconciler) setState(s State) {
	if s == r.state {
		return
	}
	log.Printf("reconciler: %s -> %s", r.state, s)
	r.state = s
	if r.opts.Tracker != nil {
		r.opts.Tracker.SetState(s.String())
	}
}

func (r *Reconciler) setActive(active bool) {
	if active == r.active {
		return
	}
	r.active = active
	if r.opts.Indicator != nil {
		if err := r.opts.Indicator.Set(active); err != nil {
			log.Printf("reconciler: indicator error: %v", err)
		}
	}
	if r.opts.Tracker != nil {
		r.opts.Tracker.SetActive(active)
	}
}

func (r *Reconciler) setConnected(connected bool) {
	if r.opts.Tracker != nil {
		r.opts.Tracker.SetMQTTConnected(connected)
	}
}
