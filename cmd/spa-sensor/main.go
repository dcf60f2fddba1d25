// Command spa-sensor decodes a hot-tub control panel's display bus and
// publishes temperatures and equipment states to MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/spa-sensor/internal/capture"
	"github.com/sweeney/spa-sensor/internal/config"
	"github.com/sweeney/spa-sensor/internal/gpio"
	"github.com/sweeney/spa-sensor/internal/logic"
	"github.com/sweeney/spa-sensor/internal/mqtt"
	"github.com/sweeney/spa-sensor/internal/sched"
	"github.com/sweeney/spa-sensor/internal/status"
	"github.com/sweeney/spa-sensor/internal/web"
)

func main() {
	def := config.Default()
	configPath := flag.String("config", "", "YAML config file (flags override it)")
	poll := flag.Duration("poll", def.Poll, "Decoder loop interval")
	broker := flag.String("broker", def.MQTT.Broker, "MQTT broker address")
	heartbeat := flag.Duration("heartbeat", def.Decoder.Heartbeat, "Heartbeat interval (0 to disable)")
	chip := flag.String("chip", def.GPIO.Chip, "GPIO chip name")
	pinCLK := flag.Int("pin-clk", def.GPIO.ClockPin, "BCM pin number for the display bus clock")
	pinData := flag.Int("pin-data", def.GPIO.DataPin, "BCM pin number for the display bus data")
	pinCool := flag.Int("pin-cool", def.GPIO.CoolPin, "BCM pin number for the COOL button output")
	sampler := flag.String("data-sampler", def.GPIO.DataSampler, "Data line sampler: cdev or mem (/dev/gpiomem)")
	httpAddr := flag.String("http", def.HTTP.Addr, "HTTP status address (empty to disable)")
	debug := flag.Bool("debug", def.Debug, "Enable debug logging")
	printState := flag.Bool("print-state", false, "Print current bus levels and exit")

	flag.Parse()

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	cfg := def
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			log.Fatalf("fatal: %v", err)
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "poll":
			cfg.Poll = *poll
		case "broker":
			cfg.MQTT.Broker = *broker
		case "heartbeat":
			cfg.Decoder.Heartbeat = *heartbeat
		case "chip":
			cfg.GPIO.Chip = *chip
		case "pin-clk":
			cfg.GPIO.ClockPin = *pinCLK
		case "pin-data":
			cfg.GPIO.DataPin = *pinData
		case "pin-cool":
			cfg.GPIO.CoolPin = *pinCool
		case "data-sampler":
			cfg.GPIO.DataSampler = *sampler
		case "http":
			cfg.HTTP.Addr = *httpAddr
		case "debug":
			cfg.Debug = *debug
		}
	})
	if err := config.Validate(&cfg); err != nil {
		log.Fatalf("fatal: invalid config: %v", err)
	}
	setDebug(log.StandardLogger(), cfg.Debug)

	if err := run(cfg, *printState); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(cfg config.Config, printState bool) error {
	// Initialize GPIO
	bus, err := gpio.NewRealBus(cfg.GPIO.Chip, cfg.GPIO.ClockPin, cfg.GPIO.DataPin)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer bus.Close()

	// Print state mode
	if printState {
		clk, data, err := bus.Levels()
		if err != nil {
			return fmt.Errorf("read gpio: %w", err)
		}
		fmt.Printf("CLK: %d, DATA: %d\n", clk, data)
		return nil
	}

	button, err := gpio.NewRealButton(cfg.GPIO.Chip, cfg.GPIO.CoolPin)
	if err != nil {
		return fmt.Errorf("init cool button: %w", err)
	}
	defer button.Close()

	logger := log.StandardLogger()

	// Initialize MQTT
	publisher, err := mqtt.NewRealPublisher(mqtt.Options{
		Broker:          cfg.MQTT.Broker,
		ClientID:        cfg.MQTT.ClientID,
		Username:        cfg.MQTT.Username,
		Password:        cfg.MQTT.Password,
		TopicPrefix:     cfg.MQTT.TopicPrefix,
		DiscoveryPrefix: cfg.MQTT.DiscoveryPrefix,
		Logger:          logger.WithField("component", "mqtt"),
	})
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		PollMs:      cfg.Poll.Milliseconds(),
		HeartbeatMs: cfg.Decoder.Heartbeat.Milliseconds(),
		RefreshMs:   cfg.Decoder.SetRefreshInterval.Milliseconds(),
		Broker:      cfg.MQTT.Broker,
		TopicPrefix: cfg.MQTT.TopicPrefix,
		HTTPAddr:    cfg.HTTP.Addr,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}
	tracker.SetDebug(cfg.Debug)
	tracker.SetMQTTConnected(publisher.IsConnected())

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Warnf("failed to publish startup event: %v", err)
	} else {
		log.Infof("published startup event")
	}

	var data capture.DataLine = bus
	if cfg.GPIO.DataSampler == gpio.SamplerMem {
		mem, err := gpio.NewMemDataLine(cfg.GPIO.DataPin)
		if err != nil {
			return fmt.Errorf("init data sampler: %w", err)
		}
		defer mem.Close()
		data = mem
	}

	// Start frame capture; edges arrive on the gpiocdev event goroutine.
	// Gaps are measured on kernel event stamps, both sides in nanoseconds.
	frames := capture.New(capture.NewNanoCounter(), data, capture.Config{
		GapCycles:    capture.CyclesFor(cfg.Decoder.FrameGap, capture.NanoHz),
		SettleCycles: capture.CyclesFor(cfg.Decoder.SampleDelay, capture.NanoHz),
	})
	err = bus.Watch(func(stamp time.Duration) {
		frames.OnClockEdgeAt(capture.NanoCycles(stamp))
	})
	if err != nil {
		return fmt.Errorf("watch clock: %w", err)
	}

	// Start HTTP status server
	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Errorf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Infof("http status server listening on %s", cfg.HTTP.Addr)
	}

	log.Infof("started: poll=%v broker=%s heartbeat=%v refresh=%v clk=%d data=%d (%s) cool=%d",
		cfg.Poll, cfg.MQTT.Broker, cfg.Decoder.Heartbeat, cfg.Decoder.SetRefreshInterval,
		cfg.GPIO.ClockPin, cfg.GPIO.DataPin, cfg.GPIO.DataSampler, cfg.GPIO.CoolPin)

	ticker := time.NewTicker(cfg.Poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(loopDeps{
		source:     frames,
		button:     button,
		publisher:  publisher,
		mqttStatus: publisher,
		commands:   publisher,
		tracker:    tracker,
		decoder:    cfg.Decoder.Logic(),
		debug:      cfg.Debug,
		logger:     logger,
	}, time.Now, ticker.C, sigCh)
}

// loopDeps are the collaborators of runLoop. Any of mqttStatus, commands
// and tracker may be nil.
type loopDeps struct {
	source     logic.FrameSource
	button     logic.Button
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	commands   mqtt.CommandSource
	tracker    *status.Tracker
	decoder    logic.Config
	debug      bool
	logger     *log.Logger
}

func runLoop(d loopDeps, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	startTime := now()
	timers := sched.New(startTime)
	sensors := mqtt.NewSensors(d.publisher, d.logger.WithField("component", "mqtt"))
	decoder := logic.NewDecoder(d.decoder, d.source, sensors, d.button, timers,
		d.logger.WithField("component", "decoder"), startTime)
	decoder.Boot(startTime)

	debug := d.debug
	publishDebug(d.publisher, debug)

	updateTracker := func() {
		if d.tracker == nil {
			return
		}
		d.tracker.Update(decoder.State(), decoder.CountsSnapshot())
		if d.mqttStatus != nil {
			d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
		}
	}

	var commands <-chan mqtt.Command
	if d.commands != nil {
		commands = d.commands.Commands()
	}
	for {
		select {
		case s := <-sig:
			log.Infof("received %v, shutting down", s)
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if d.tracker != nil {
				updateTracker()
				snap := d.tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
			}
			if err := d.publisher.PublishSystem(event); err != nil {
				log.Warnf("failed to publish shutdown event: %v", err)
			} else {
				log.Infof("published shutdown event")
			}
			return nil

		case cmd, ok := <-commands:
			if !ok {
				commands = nil
				continue
			}
			t := now()
			switch cmd.Kind {
			case mqtt.CommandDebug:
				if cmd.On != debug {
					debug = cmd.On
					setDebug(d.logger, debug)
					log.Infof("debug logging %s", mqtt.FormatState(debug))
				}
				publishDebug(d.publisher, debug)
				if d.tracker != nil {
					d.tracker.SetDebug(debug)
				}
			case mqtt.CommandRefresh:
				log.Infof("set temp refresh requested")
				decoder.Press(t)
			}
			updateTracker()

		case <-tick:
			t := now()
			timers.Run(t)
			res := decoder.Poll(t)

			if res.Heartbeat {
				c := decoder.CountsSnapshot()
				log.Infof("heartbeat: uptime=%v frames=%d valid=%d checksum_failed=%d partial=%d set_captures=%d",
					t.Sub(startTime).Truncate(time.Second), c.Frames, c.Valid, c.ChecksumFailed, c.Partial, c.SetCaptures)

				hbEvent := mqtt.SystemEvent{
					Timestamp: t,
					Event:     "HEARTBEAT",
				}
				if d.tracker != nil {
					// Refresh network info for heartbeat
					if net := readNetworkInfo(); net != nil {
						d.tracker.SetNetwork(net)
					}
					updateTracker()
					snap := d.tracker.Snapshot()
					hbEvent.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
				}
				if err := d.publisher.PublishSystem(hbEvent); err != nil {
					log.Warnf("heartbeat publish error: %v", err)
				}
			}

			// Update status tracker for HTTP consumers
			updateTracker()
		}
	}
}

func setDebug(logger *log.Logger, on bool) {
	if on {
		logger.SetLevel(log.DebugLevel)
	} else {
		logger.SetLevel(log.InfoLevel)
	}
}

func publishDebug(p mqtt.Publisher, on bool) {
	if err := p.PublishState(mqtt.EntityDebug, mqtt.FormatState(on)); err != nil {
		log.Warnf("publish debug state: %v", err)
	}
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
