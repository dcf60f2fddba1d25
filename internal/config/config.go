// Package config loads the daemon configuration from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/spa-sensor/internal/gpio"
	"github.com/sweeney/spa-sensor/internal/logic"
)

type Config struct {
	GPIO    GPIOConfig    `yaml:"gpio"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	HTTP    HTTPConfig    `yaml:"http"`
	Poll    time.Duration `yaml:"poll"`
	Debug   bool          `yaml:"debug"`
	Decoder DecoderConfig `yaml:"decoder"`
}

// ---- GPIO ----

type GPIOConfig struct {
	Chip     string `yaml:"chip"`
	ClockPin int    `yaml:"clock_pin"`
	DataPin  int    `yaml:"data_pin"`
	CoolPin  int    `yaml:"cool_pin"`
	// DataSampler selects how the data line is read after each clock edge.
	DataSampler string `yaml:"data_sampler"`
}

// ---- MQTT ----

type MQTTConfig struct {
	Broker          string `yaml:"broker"`
	ClientID        string `yaml:"client_id"`
	TopicPrefix     string `yaml:"topic_prefix"`
	DiscoveryPrefix string `yaml:"discovery_prefix"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
}

// ---- HTTP ----

type HTTPConfig struct {
	Addr string `yaml:"addr"` // empty disables the status server
}

// ---- DECODER ----

type DecoderConfig struct {
	FrameGap    time.Duration `yaml:"frame_gap"`
	SampleDelay time.Duration `yaml:"sample_delay"`

	StableThreshold      uint8 `yaml:"stable_threshold"`
	PumpStableThreshold  uint8 `yaml:"pump_stable_threshold"`
	LightStableThreshold uint8 `yaml:"light_stable_threshold"`

	SetModeTimeout        time.Duration `yaml:"set_mode_timeout"`
	SetCandidateFreshness time.Duration `yaml:"set_candidate_freshness"`
	HeaterOffHold         time.Duration `yaml:"heater_off_hold"`
	Heartbeat             time.Duration `yaml:"heartbeat"`            // 0 disables
	SetRefreshInterval    time.Duration `yaml:"set_refresh_interval"` // 0 disables
	PressDuration         time.Duration `yaml:"press_duration"`
	BootPressDelay        time.Duration `yaml:"boot_press_delay"`
}

// Default returns the built-in configuration.
func Default() Config {
	lc := logic.DefaultConfig()
	return Config{
		GPIO: GPIOConfig{
			Chip:        gpio.DefaultChip,
			ClockPin:    gpio.DefaultPinCLK,
			DataPin:     gpio.DefaultPinData,
			CoolPin:     gpio.DefaultPinCool,
			DataSampler: gpio.SamplerCdev,
		},
		MQTT: MQTTConfig{
			Broker:          "tcp://192.168.1.200:1883",
			ClientID:        "spa-sensor",
			TopicPrefix:     "spa",
			DiscoveryPrefix: "homeassistant",
		},
		HTTP: HTTPConfig{Addr: ":80"},
		Poll: 10 * time.Millisecond,
		Decoder: DecoderConfig{
			FrameGap:              5 * time.Millisecond,
			SampleDelay:           time.Microsecond,
			StableThreshold:       lc.StableThreshold,
			PumpStableThreshold:   lc.PumpStableThreshold,
			LightStableThreshold:  lc.LightStableThreshold,
			SetModeTimeout:        lc.SetModeTimeout,
			SetCandidateFreshness: lc.SetCandidateFreshness,
			HeaterOffHold:         lc.HeaterOffHold,
			Heartbeat:             lc.Heartbeat,
			SetRefreshInterval:    lc.SetRefreshInterval,
			PressDuration:         lc.PressDuration,
			BootPressDelay:        lc.BootPressDelay,
		},
	}
}

// Load reads a YAML file over the defaults. Unknown keys are an error.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults. Keys not present keep their default.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Logic returns the decoder timing and thresholds.
func (d DecoderConfig) Logic() logic.Config {
	return logic.Config{
		StableThreshold:       d.StableThreshold,
		PumpStableThreshold:   d.PumpStableThreshold,
		LightStableThreshold:  d.LightStableThreshold,
		SetModeTimeout:        d.SetModeTimeout,
		SetCandidateFreshness: d.SetCandidateFreshness,
		HeaterOffHold:         d.HeaterOffHold,
		Heartbeat:             d.Heartbeat,
		SetRefreshInterval:    d.SetRefreshInterval,
		PressDuration:         d.PressDuration,
		BootPressDelay:        d.BootPressDelay,
	}
}
