// Command washer-sensor watches a washing machine or dryer for the end of its
// cycle and reports over MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sweeney/washer-sensor/internal/accel"
	"github.com/sweeney/washer-sensor/internal/config"
	"github.com/sweeney/washer-sensor/internal/gpio"
	"github.com/sweeney/washer-sensor/internal/logic"
	"github.com/sweeney/washer-sensor/internal/monitor"
	"github.com/sweeney/washer-sensor/internal/mqtt"
	"github.com/sweeney/washer-sensor/internal/status"
	"github.com/sweeney/washer-sensor/internal/web"
)

// flags holds command-line values. Only flags set explicitly override the
// config file.
type flags struct {
	configPath   string
	broker       string
	clientID     string
	baseTopic    string
	i2cBus       string
	ledPin       int
	httpAddr     string
	printReading bool
}

func newFlagSet(name string, errorHandling flag.ErrorHandling) (*flag.FlagSet, *flags) {
	f := &flags{}
	fs := flag.NewFlagSet(name, errorHandling)
	fs.StringVar(&f.configPath, "config", "", "YAML config file (optional)")
	fs.StringVar(&f.broker, "broker", config.DefaultBroker, "MQTT broker address")
	fs.StringVar(&f.clientID, "client-id", "", "MQTT client ID (default washer-sensor-<random>)")
	fs.StringVar(&f.baseTopic, "base-topic", config.DefaultBaseTopic, "MQTT topic namespace")
	fs.StringVar(&f.i2cBus, "i2c-bus", config.DefaultI2CBus, "I2C adapter the MPU6050 is attached to")
	fs.IntVar(&f.ledPin, "led-pin", gpio.PinDisabled, "BCM pin number for the activity LED (-1 to disable)")
	fs.StringVar(&f.httpAddr, "http", config.DefaultHTTP, "HTTP status address (empty to disable)")
	fs.BoolVar(&f.printReading, "print-reading", false, "Print one sensor reading and exit")
	return fs, f
}

func main() {
	fs, f := newFlagSet(os.Args[0], flag.ExitOnError)
	fs.Parse(os.Args[1:])

	cfg, err := loadConfig(fs, f)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	if err := run(cfg, f.printReading); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// loadConfig reads the optional config file, applies explicitly set flags,
// fills defaults and validates the result.
func loadConfig(fs *flag.FlagSet, f *flags) (*config.Config, error) {
	cfg := config.Default()
	if f.configPath != "" {
		var err error
		if cfg, err = config.Load(f.configPath); err != nil {
			return nil, err
		}
	}

	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "broker":
			cfg.MQTT.Broker = f.broker
		case "client-id":
			cfg.MQTT.ClientID = f.clientID
		case "base-topic":
			cfg.MQTT.BaseTopic = f.baseTopic
		case "i2c-bus":
			cfg.Sensor.I2CBus = f.i2cBus
		case "led-pin":
			cfg.Sensor.LEDPin = f.ledPin
		case "http":
			cfg.HTTP = f.httpAddr
		}
	})

	config.ApplyDefaults(cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func run(cfg *config.Config, printReading bool) error {
	// Initialize sensor
	reader, err := accel.NewRealReader(cfg.Sensor.I2CBus, cfg.Sensor.I2CAddress)
	if err != nil {
		return fmt.Errorf("init sensor: %w", err)
	}
	defer reader.Close()

	// Print reading mode
	if printReading {
		r, err := reader.Read()
		if err != nil {
			return fmt.Errorf("read sensor: %w", err)
		}
		fmt.Println(formatReading(r))
		return nil
	}

	// Activity LED is optional; the monitor runs without it.
	var indicator gpio.Indicator
	if cfg.Sensor.LEDPin != gpio.PinDisabled {
		led, err := gpio.NewRealIndicator(gpio.DefaultChip, cfg.Sensor.LEDPin)
		if err != nil {
			log.Printf("activity LED disabled: %v", err)
		} else {
			indicator = led
			defer led.Close()
		}
	}

	tracker := status.NewTracker(time.Now(), status.Config{
		Broker:    cfg.MQTT.Broker,
		ClientID:  cfg.MQTT.ClientID,
		BaseTopic: cfg.MQTT.BaseTopic,
		I2CBus:    cfg.Sensor.I2CBus,
		LEDPin:    cfg.Sensor.LEDPin,
		HTTPAddr:  cfg.HTTP,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	topics := mqtt.NewTopics(cfg.MQTT.BaseTopic)
	settings := monitor.NewSettings(monitor.Config{
		SamplePeriod:   cfg.Monitor.SamplePeriod(),
		MaxIdlePeriods: cfg.Monitor.MaxIdlePeriods,
		Sensitivity:    cfg.Monitor.Sensitivity,
	})
	tracker.SetMonitoring(monitoringStatus(settings.Get(), false))
	cell := monitor.NewCell()

	handler := monitor.NewHandler(topics, settings, cell, func(c monitor.Config) {
		tracker.SetMonitoring(monitoringStatus(c, true))
	})

	client := mqtt.NewRealClient(mqtt.Options{
		Broker:    cfg.MQTT.Broker,
		ClientID:  cfg.MQTT.ClientID,
		Username:  cfg.MQTT.Username,
		Password:  cfg.MQTT.Password,
		Topics:    topics,
		OnMessage: handler.HandleMessage,
	})

	// Start HTTP status server
	if cfg.HTTP != "" {
		srv := web.New(cfg.HTTP, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTP)
	}

	log.Printf("started: broker=%s client=%s topics=%s/# sensor=%s@0x%02x",
		cfg.MQTT.Broker, cfg.MQTT.ClientID, cfg.MQTT.BaseTopic, cfg.Sensor.I2CBus, cfg.Sensor.I2CAddress)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return runMonitor(ctx, monitorDeps{
		reader:   reader,
		client:   client,
		topics:   topics,
		settings: settings,
		cell:     cell,
		tracker:  tracker,
		reconcile: monitor.ReconcilerOptions{
			TickInterval:  cfg.Reconcile.Tick,
			AwaitInterval: cfg.Reconcile.Await,
			RetryInterval: cfg.Reconcile.Retry,
			Indicator:     indicator,
			Tracker:       tracker,
		},
	}, time.After)
}

// monitorDeps is everything runMonitor needs, with hardware and broker
// already constructed.
type monitorDeps struct {
	reader    accel.Reader
	client    mqtt.Client
	topics    mqtt.Topics
	settings  *monitor.Settings
	cell      *monitor.Cell
	tracker   *status.Tracker
	reconcile monitor.ReconcilerOptions
}

// runMonitor runs the sampler and reconciler until ctx is done, then
// publishes offline and disconnects.
func runMonitor(ctx context.Context, d monitorDeps, after func(time.Duration) <-chan time.Time) error {
	// The first delta is taken against a reading made before the loop.
	initial, err := d.reader.Read()
	if err != nil {
		log.Printf("initial read failed, starting from zero: %v", err)
		initial = logic.Reading{}
	}

	sampler := monitor.NewSampler(d.reader, d.settings, d.cell, initial, d.tracker)
	reconciler := monitor.NewReconciler(d.client, d.topics, d.settings, d.cell, d.reconcile)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		sampler.Run(ctx, after)
	}()
	go func() {
		defer wg.Done()
		reconciler.Run(ctx, after)
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	wg.Wait()

	if err := reconciler.Shutdown(); err != nil {
		log.Printf("failed to publish offline status: %v", err)
	} else {
		log.Printf("published offline status")
	}
	if err := d.client.Close(); err != nil {
		return fmt.Errorf("close mqtt: %w", err)
	}
	return nil
}

func monitoringStatus(c monitor.Config, received bool) status.Monitoring {
	return status.Monitoring{
		Received:       received,
		SampleSecs:     c.SamplePeriod.Seconds(),
		MaxIdlePeriods: c.MaxIdlePeriods,
		Sensitivity:    c.Sensitivity,
	}
}

func formatReading(r logic.Reading) string {
	return fmt.Sprintf("X: %d, Y: %d, Z: %d", r.X, r.Y, r.Z)
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
