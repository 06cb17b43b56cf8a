package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Active        bool           `json:"active"`
	State         string         `json:"state"`
	IdleCounter   int            `json:"idle_counter"`
	Completions   int            `json:"completions"`
	Readings      *ReadingsJSON  `json:"readings,omitempty"`
	Monitoring    MonitoringJSON `json:"monitoring"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	StartTime     string         `json:"start_time"`
	Timestamp     string         `json:"timestamp"`
	MQTT          MQTTStatus     `json:"mqtt"`
	Network       *NetworkJSON   `json:"network,omitempty"`
	Config        ConfigJSON     `json:"config"`
}

// ReadingsJSON is the most recent per-axis deltas.
type ReadingsJSON struct {
	X         int64  `json:"x"`
	Y         int64  `json:"y"`
	Z         int64  `json:"z"`
	Timestamp string `json:"timestamp"`
}

// MonitoringJSON is the runtime monitoring configuration.
type MonitoringJSON struct {
	Received       bool    `json:"received"`
	SampleSecs     float64 `json:"sample_secs"`
	MaxIdlePeriods int     `json:"max_idle_periods"`
	Sensitivity    float64 `json:"sensitivity"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
	ClientID  string `json:"client_id"`
	BaseTopic string `json:"base_topic"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	I2CBus   string `json:"i2c_bus"`
	LEDPin   int    `json:"led_pin"`
	HTTPAddr string `json:"http_addr"`
}

// StateOrUnknown returns state, or "UNKNOWN" before the reconciler has started.
func StateOrUnknown(state string) string {
	if state == "" {
		return "UNKNOWN"
	}
	return state
}

// FormatJSON returns the indented JSON status for the web endpoint.
func FormatJSON(snap Snapshot) []byte {
	inner := StatusInner{
		Active:      snap.Active,
		State:       StateOrUnknown(snap.State),
		IdleCounter: snap.IdleCounter,
		Completions: snap.Completions,
		Monitoring: MonitoringJSON{
			Received:       snap.Monitoring.Received,
			SampleSecs:     snap.Monitoring.SampleSecs,
			MaxIdlePeriods: snap.Monitoring.MaxIdlePeriods,
			Sensitivity:    snap.Monitoring.Sensitivity,
		},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT: MQTTStatus{
			Connected: snap.MQTTConnected,
			Broker:    snap.Config.Broker,
			ClientID:  snap.Config.ClientID,
			BaseTopic: snap.Config.BaseTopic,
		},
		Config: ConfigJSON{
			I2CBus:   snap.Config.I2CBus,
			LEDPin:   snap.Config.LEDPin,
			HTTPAddr: snap.Config.HTTPAddr,
		},
	}

	if snap.LastDeltas != nil {
		inner.Readings = &ReadingsJSON{
			X:         snap.LastDeltas.X,
			Y:         snap.LastDeltas.Y,
			Z:         snap.LastDeltas.Z,
			Timestamp: snap.LastSampleAt.UTC().Format(time.RFC3339),
		}
	}

	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}
