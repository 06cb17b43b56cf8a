package internal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/washer-sensor/internal/accel"
	"github.com/sweeney/washer-sensor/internal/gpio"
	"github.com/sweeney/washer-sensor/internal/logic"
	"github.com/sweeney/washer-sensor/internal/monitor"
	"github.com/sweeney/washer-sensor/internal/mqtt"
	"github.com/sweeney/washer-sensor/internal/status"
)

type harness struct {
	topics   mqtt.Topics
	client   *mqtt.FakeClient
	reader   *accel.FakeReader
	led      *gpio.FakeIndicator
	settings *monitor.Settings
	cell     *monitor.Cell
	handler  *monitor.Handler
	sampler  *monitor.Sampler
	recon    *monitor.Reconciler
}

func newHarness(samples ...logic.Reading) *harness {
	h := &harness{
		topics:   mqtt.NewTopics("esp32/washer"),
		client:   mqtt.NewFakeClient(),
		reader:   accel.NewFakeReader(samples...),
		led:      gpio.NewFakeIndicator(),
		settings: monitor.NewSettings(monitor.DefaultConfig()),
		cell:     monitor.NewCell(),
	}
	tr := status.NewTracker(time.Now(), status.Config{})
	h.handler = monitor.NewHandler(h.topics, h.settings, h.cell, nil)
	h.sampler = monitor.NewSampler(h.reader, h.settings, h.cell, logic.Reading{}, tr)
	h.recon = monitor.NewReconciler(h.client, h.topics, h.settings, h.cell, monitor.ReconcilerOptions{
		Indicator: h.led,
		Tracker:   tr,
	})
	return h
}

// tick runs one reconciler step followed by one sampler step, the order in
// which the two loops interleave when the sample period is a multiple of the tick.
func (h *harness) tick() {
	h.recon.Step(context.Background())
	h.sampler.Step()
}

func (h *harness) payloads(topic string) []string {
	var out []string
	for _, m := range h.client.OnTopic(topic) {
		out = append(out, m.Payload)
	}
	return out
}

// TestIntegrationWashCycle tests a full wash: configure, switch on, agitate,
// settle, completion and self-off.
func TestIntegrationWashCycle(t *testing.T) {
	h := newHarness(
		logic.Reading{X: 50, Y: 50, Z: 50},
		logic.Reading{X: 400, Y: -300, Z: 50},
		logic.Reading{X: 410, Y: -295, Z: 52},
		logic.Reading{X: 408, Y: -296, Z: 52},
		logic.Reading{X: 409, Y: -296, Z: 51},
	)

	// Connect and wait for config.
	for i := 0; i < 3; i++ {
		h.tick()
	}
	if h.recon.State() != monitor.StateAwaitingConfig {
		t.Fatalf("expected AWAITING_CONFIG, got %s", h.recon.State())
	}
	if h.reader.Reads != 0 {
		t.Fatal("sensor should not be read before activation")
	}

	h.handler.HandleMessage(h.topics.Config, []byte(`{"sampleSecs": 1, "maxIdlePeriods": 2, "sensitivity": 110}`), true)
	h.handler.HandleMessage(h.topics.Command, []byte("ON"), false)

	// AWAITING_CONFIG -> ACTIVE, then drain the command.
	h.recon.Step(context.Background())
	h.recon.Step(context.Background())
	if !h.led.On() {
		t.Fatal("expected indicator on after ON")
	}

	// Samples: spike, spike, quiet, quiet -> done.
	for i := 0; i < 4; i++ {
		h.sampler.Step()
		h.recon.Step(context.Background())
	}
	h.recon.Step(context.Background())

	if got := h.payloads(h.topics.Status); len(got) != 1 || got[0] != "online" {
		t.Errorf("status: got %v", got)
	}
	if got := h.payloads(h.topics.Active); len(got) != 2 || got[0] != "ON" || got[1] != "off" {
		t.Errorf("active: got %v, want [ON off]", got)
	}
	if got := h.payloads(h.topics.Notify); len(got) != 1 || got[0] != "We're done!" {
		t.Errorf("notify: got %v", got)
	}
	readings := h.payloads(h.topics.Readings)
	if len(readings) != 4 {
		t.Fatalf("expected 4 readings, got %v", readings)
	}
	if readings[0] != "(50, 50, 50)" || readings[3] != "(2, 1, 0)" {
		t.Errorf("readings: got %v", readings)
	}
	if h.led.On() {
		t.Error("indicator should be off after self-off")
	}
	if h.recon.Active() {
		t.Error("monitoring should be inactive after completion")
	}

	// Inactive: further ticks read nothing.
	reads := h.reader.Reads
	h.tick()
	h.tick()
	if h.reader.Reads != reads {
		t.Error("sensor read while inactive")
	}
}

// TestIntegrationReactivationRestartsCount tests that a second ON mid-run
// restarts the idle episode.
func TestIntegrationReactivationRestartsCount(t *testing.T) {
	h := newHarness(logic.Reading{})
	h.handler.HandleMessage(h.topics.Config, []byte(`{"maxIdlePeriods": 3}`), true)
	h.handler.HandleMessage(h.topics.Command, []byte("on"), false)
	for i := 0; i < 4; i++ {
		h.recon.Step(context.Background())
	}

	h.sampler.Step()
	h.sampler.Step()
	h.handler.HandleMessage(h.topics.Command, []byte("on"), false)
	h.recon.Step(context.Background())

	h.sampler.Step()
	h.sampler.Step()
	h.recon.Step(context.Background())
	if len(h.client.OnTopic(h.topics.Notify)) != 0 {
		t.Fatal("completion should not fire before a full new episode")
	}

	h.sampler.Step()
	h.recon.Step(context.Background())
	if len(h.client.OnTopic(h.topics.Notify)) != 1 {
		t.Error("expected completion after three quiet samples since reactivation")
	}
}

// TestIntegrationSensorFailure tests that read errors skip cycles without
// breaking reporting.
func TestIntegrationSensorFailure(t *testing.T) {
	h := newHarness(logic.Reading{X: 200})
	h.handler.HandleMessage(h.topics.Config, []byte(`{}`), true)
	h.handler.HandleMessage(h.topics.Command, []byte("on"), false)
	for i := 0; i < 4; i++ {
		h.recon.Step(context.Background())
	}

	h.reader.ReadError = errors.New("i2c: remote I/O error")
	h.tick()
	h.tick()
	if len(h.client.OnTopic(h.topics.Readings)) != 0 {
		t.Error("failed reads should stage nothing")
	}

	h.reader.ReadError = nil
	h.tick()
	h.tick()
	if got := h.payloads(h.topics.Readings); len(got) != 1 || got[0] != "(200, 0, 0)" {
		t.Errorf("readings after recovery: got %v", got)
	}
}

// TestIntegrationBrokerOutage tests that a dropped connection pauses draining
// and the latest staged values are published after reconnect.
func TestIntegrationBrokerOutage(t *testing.T) {
	h := newHarness(logic.Reading{X: 500}, logic.Reading{}, logic.Reading{X: 500})
	h.handler.HandleMessage(h.topics.Config, []byte(`{"maxIdlePeriods": 10}`), true)
	h.handler.HandleMessage(h.topics.Command, []byte("on"), false)
	for i := 0; i < 4; i++ {
		h.recon.Step(context.Background())
	}

	h.client.Drop()
	h.recon.Step(context.Background())
	h.sampler.Step()
	h.sampler.Step()
	h.sampler.Step()

	// Reconnect, announce, drain.
	for i := 0; i < 3; i++ {
		h.recon.Step(context.Background())
	}

	if got := h.payloads(h.topics.Readings); len(got) != 1 || got[0] != "(500, 0, 0)" {
		t.Errorf("expected only the latest readings, got %v", got)
	}
	if n := len(h.client.OnTopic(h.topics.Status)); n != 2 {
		t.Errorf("expected online published twice, got %d", n)
	}
}
