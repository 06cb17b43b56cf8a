package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/sweeney/washer-sensor/internal/monitor"
)

var brokerSchemes = map[string]bool{
	"tcp": true, "ssl": true, "tls": true, "mqtt": true, "mqtts": true, "ws": true, "wss": true,
}

// Validate checks configuration correctness.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	// ---- mqtt ----

	u, err := url.Parse(cfg.MQTT.Broker)
	if err != nil {
		return fmt.Errorf("mqtt.broker %q: %w", cfg.MQTT.Broker, err)
	}
	if !brokerSchemes[u.Scheme] || u.Host == "" {
		return fmt.Errorf("mqtt.broker %q: want scheme://host:port", cfg.MQTT.Broker)
	}
	if cfg.MQTT.ClientID == "" {
		return fmt.Errorf("mqtt.client_id must be set")
	}
	if strings.ContainsAny(cfg.MQTT.BaseTopic, "+#") {
		return fmt.Errorf("mqtt.base_topic %q: wildcards not allowed", cfg.MQTT.BaseTopic)
	}
	if strings.Trim(cfg.MQTT.BaseTopic, "/") == "" {
		return fmt.Errorf("mqtt.base_topic must not be empty")
	}

	// ---- sensor ----

	if cfg.Sensor.I2CBus == "" {
		return fmt.Errorf("sensor.i2c_bus must be set")
	}
	// 7-bit addresses outside the reserved ranges
	if cfg.Sensor.I2CAddress < 0x08 || cfg.Sensor.I2CAddress > 0x77 {
		return fmt.Errorf("sensor.i2c_address 0x%02x out of range", cfg.Sensor.I2CAddress)
	}
	if cfg.Sensor.LEDPin < -1 {
		return fmt.Errorf("sensor.led_pin %d: must be -1 (disabled) or a line offset", cfg.Sensor.LEDPin)
	}

	// ---- monitor ----

	if _, err := monitor.SamplePeriodFromSecs(cfg.Monitor.SampleSecs); err != nil {
		return fmt.Errorf("monitor.sample_secs: %w", err)
	}
	if cfg.Monitor.MaxIdlePeriods < 1 {
		return fmt.Errorf("monitor.max_idle_periods must be at least 1, got %d", cfg.Monitor.MaxIdlePeriods)
	}
	if cfg.Monitor.Sensitivity < 0 {
		return fmt.Errorf("monitor.sensitivity must not be negative, got %g", cfg.Monitor.Sensitivity)
	}

	// ---- reconcile ----

	if cfg.Reconcile.Tick < 0 || cfg.Reconcile.Await < 0 || cfg.Reconcile.Retry < 0 {
		return fmt.Errorf("reconcile intervals must not be negative")
	}

	return nil
}
