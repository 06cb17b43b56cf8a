package monitor

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/sweeney/washer-sensor/internal/mqtt"
)

// Config message keys.
const (
	keySampleSecs     = "sampleSecs"
	keyMaxIdlePeriods = "maxIdlePeriods"
	keySensitivity    = "sensitivity"
)

// ErrMalformedConfig is returned when a config payload is not a JSON object.
var ErrMalformedConfig = errors.New("config must be a JSON object")

// Handler routes inbound messages into Settings and the Cell.
type Handler struct {
	topics   mqtt.Topics
	settings *Settings
	cell     *Cell
	onConfig func(Config)
}

// NewHandler creates a Handler. onConfig, if non-nil, is called with the
// resulting configuration after each accepted config message.
func NewHandler(topics mqtt.Topics, settings *Settings, cell *Cell, onConfig func(Config)) *Handler {
	return &Handler{
		topics:   topics,
		settings: settings,
		cell:     cell,
		onConfig: onConfig,
	}
}

// HandleMessage implements mqtt.MessageHandler.
func (h *Handler) HandleMessage(topic string, payload []byte, retained bool) {
	log.Printf("handler: %s: %s", topic, payload)

	switch topic {
	case h.topics.Config:
		if !retained {
			log.Printf("handler: WARNING: config should be published with retain true!")
		}
		if _, err := h.ApplyConfig(payload); err != nil {
			log.Printf("handler: problem with config: %v", err)
		}
	case h.topics.Command:
		h.cell.StageCommand(string(payload))
	default:
		log.Printf("handler: ignoring message on unexpected topic %s", topic)
	}
}

// ApplyConfig parses payload and merges the valid known fields into Settings.
// A payload that is not a JSON object changes nothing. Within an object, each
// known field is applied independently; invalid values are logged and skipped.
func (h *Handler) ApplyConfig(payload []byte) (Config, error) {
	u, err := ParseConfig(payload)
	if err != nil {
		return h.settings.Get(), err
	}
	cfg := h.settings.Apply(u)
	log.Printf("handler: configured with %s", cfg)
	if h.onConfig != nil {
		h.onConfig(cfg)
	}
	return cfg, nil
}

// ParseConfig decodes a config payload into an Update.
func ParseConfig(payload []byte) (Update, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return Update{}, fmt.Errorf("%w: %v", ErrMalformedConfig, err)
	}
	if fields == nil {
		return Update{}, ErrMalformedConfig
	}

	var u Update
	if raw, ok := fields[keySampleSecs]; ok {
		secs, err := decodeNumber(raw)
		if err == nil {
			var d time.Duration
			if d, err = SamplePeriodFromSecs(secs); err == nil {
				u.SamplePeriod = &d
			}
		}
		if err != nil {
			log.Printf("handler: ignoring %s=%s: must be a positive number of seconds (min %v)", keySampleSecs, raw, MinSamplePeriod)
		}
	}
	if raw, ok := fields[keyMaxIdlePeriods]; ok {
		if n, err := decodeNumber(raw); err != nil || n < 1 || n != math.Trunc(n) || n > math.MaxInt32 {
			log.Printf("handler: ignoring %s=%s: must be a positive integer", keyMaxIdlePeriods, raw)
		} else {
			v := int(n)
			u.MaxIdlePeriods = &v
		}
	}
	if raw, ok := fields[keySensitivity]; ok {
		if s, err := decodeNumber(raw); err != nil || s < 0 {
			log.Printf("handler: ignoring %s=%s: must be a non-negative number", keySensitivity, raw)
		} else {
			u.Sensitivity = &s
		}
	}
	return u, nil
}

func decodeNumber(raw json.RawMessage) (float64, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not finite")
	}
	return f, nil
}
