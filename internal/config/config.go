// Package config loads the washer-sensor process configuration from YAML.
// Command-line flags are layered on top by the caller.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Config is the process configuration.
type Config struct {
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Sensor    SensorConfig    `yaml:"sensor"`
	Monitor   MonitorConfig   `yaml:"monitor"`
	Reconcile ReconcileConfig `yaml:"reconcile"`

	// HTTP is the status page listen address. Empty disables it.
	HTTP string `yaml:"http"`
}

// ---- MQTT ----

type MQTTConfig struct {
	Broker    string `yaml:"broker"`
	ClientID  string `yaml:"client_id"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	BaseTopic string `yaml:"base_topic"`
}

// ---- SENSOR ----

type SensorConfig struct {
	I2CBus     string `yaml:"i2c_bus"`
	I2CAddress uint16 `yaml:"i2c_address"`

	// LEDPin is the activity LED BCM line offset, -1 for none.
	LEDPin int `yaml:"led_pin"`
}

// ---- MONITOR ----

// MonitorConfig holds the defaults in effect until a config message arrives.
type MonitorConfig struct {
	SampleSecs     float64 `yaml:"sample_secs"`
	MaxIdlePeriods int     `yaml:"max_idle_periods"`
	Sensitivity    float64 `yaml:"sensitivity"`
}

// SamplePeriod returns SampleSecs as a duration.
func (m MonitorConfig) SamplePeriod() time.Duration {
	return time.Duration(m.SampleSecs * float64(time.Second))
}

// ---- RECONCILE ----

type ReconcileConfig struct {
	Tick  time.Duration `yaml:"tick"`
	Await time.Duration `yaml:"await"`
	Retry time.Duration `yaml:"retry"`
}

// Default values.
const (
	DefaultBroker    = "tcp://192.168.1.200:1883"
	DefaultBaseTopic = "esp32/washer"
	DefaultI2CBus    = "/dev/i2c-1"
	DefaultI2CAddr   = 0x68
	DefaultHTTP      = ":80"

	clientIDPrefix = "washer-sensor-"
)

// Default returns a configuration with every field set except ClientID.
func Default() *Config {
	return &Config{
		MQTT: MQTTConfig{
			Broker:    DefaultBroker,
			BaseTopic: DefaultBaseTopic,
		},
		Sensor: SensorConfig{
			I2CBus:     DefaultI2CBus,
			I2CAddress: DefaultI2CAddr,
			LEDPin:     -1,
		},
		Monitor: MonitorConfig{
			SampleSecs:     10,
			MaxIdlePeriods: 6,
			Sensitivity:    110,
		},
		Reconcile: ReconcileConfig{
			Tick:  time.Second,
			Await: 5 * time.Second,
			Retry: 5 * time.Second,
		},
		HTTP: DefaultHTTP,
	}
}

// Load reads the YAML file at path over Default(). Unknown keys are an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over Default(). An empty document yields the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset fields. It must be called before Validate.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}
	d := Default()
	if cfg.MQTT.Broker == "" {
		cfg.MQTT.Broker = d.MQTT.Broker
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = clientIDPrefix + uuid.NewString()[:8]
	}
	if cfg.MQTT.BaseTopic == "" {
		cfg.MQTT.BaseTopic = d.MQTT.BaseTopic
	}
	if cfg.Sensor.I2CBus == "" {
		cfg.Sensor.I2CBus = d.Sensor.I2CBus
	}
	if cfg.Sensor.I2CAddress == 0 {
		cfg.Sensor.I2CAddress = d.Sensor.I2CAddress
	}
	if cfg.Reconcile.Tick == 0 {
		cfg.Reconcile.Tick = d.Reconcile.Tick
	}
	if cfg.Reconcile.Await == 0 {
		cfg.Reconcile.Await = d.Reconcile.Await
	}
	if cfg.Reconcile.Retry == 0 {
		cfg.Reconcile.Retry = d.Reconcile.Retry
	}
}
