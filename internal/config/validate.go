package config

import (
	"fmt"
	"time"

	"github.com/sweeney/spa-sensor/internal/gpio"
)

// Validate checks configuration correctness and returns the first problem found.
// It does not mutate the configuration.
func Validate(cfg *Config) error {
	// ---- GPIO ----
	if cfg.GPIO.Chip == "" {
		return fmt.Errorf("gpio.chip must be set")
	}
	pins := map[string]int{
		"clock_pin": cfg.GPIO.ClockPin,
		"data_pin":  cfg.GPIO.DataPin,
		"cool_pin":  cfg.GPIO.CoolPin,
	}
	seen := make(map[int]string)
	for _, name := range []string{"clock_pin", "data_pin", "cool_pin"} {
		pin := pins[name]
		if pin < 0 {
			return fmt.Errorf("gpio.%s must not be negative (got %d)", name, pin)
		}
		if other, ok := seen[pin]; ok {
			return fmt.Errorf("gpio.%s and gpio.%s share pin %d", other, name, pin)
		}
		seen[pin] = name
	}
	switch cfg.GPIO.DataSampler {
	case gpio.SamplerCdev, gpio.SamplerMem:
	default:
		return fmt.Errorf("gpio.data_sampler must be %q or %q (got %q)", gpio.SamplerCdev, gpio.SamplerMem, cfg.GPIO.DataSampler)
	}

	// ---- MQTT ----
	if cfg.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker must be set")
	}
	if cfg.MQTT.ClientID == "" {
		return fmt.Errorf("mqtt.client_id must be set")
	}

	// ---- LOOP ----
	if cfg.Poll <= 0 {
		return fmt.Errorf("poll must be positive (got %v)", cfg.Poll)
	}

	// ---- DECODER ----
	d := cfg.Decoder
	if d.FrameGap <= 0 {
		return fmt.Errorf("decoder.frame_gap must be positive (got %v)", d.FrameGap)
	}
	if d.SampleDelay < 0 || d.SampleDelay >= d.FrameGap {
		return fmt.Errorf("decoder.sample_delay must be in [0, frame_gap) (got %v)", d.SampleDelay)
	}
	thresholds := []struct {
		name string
		v    uint8
	}{
		{"stable_threshold", d.StableThreshold},
		{"pump_stable_threshold", d.PumpStableThreshold},
		{"light_stable_threshold", d.LightStableThreshold},
	}
	for _, th := range thresholds {
		if th.v == 0 {
			return fmt.Errorf("decoder.%s must be at least 1", th.name)
		}
	}
	positive := []namedDuration{
		{"set_mode_timeout", d.SetModeTimeout},
		{"set_candidate_freshness", d.SetCandidateFreshness},
		{"press_duration", d.PressDuration},
	}
	for _, nd := range positive {
		if nd.v <= 0 {
			return fmt.Errorf("decoder.%s must be positive (got %v)", nd.name, nd.v)
		}
	}
	nonNegative := []namedDuration{
		{"heater_off_hold", d.HeaterOffHold},
		{"heartbeat", d.Heartbeat},
		{"set_refresh_interval", d.SetRefreshInterval},
		{"boot_press_delay", d.BootPressDelay},
	}
	for _, nd := range nonNegative {
		if nd.v < 0 {
			return fmt.Errorf("decoder.%s must not be negative (got %v)", nd.name, nd.v)
		}
	}
	if d.SetRefreshInterval > 0 && d.PressDuration >= d.SetRefreshInterval {
		return fmt.Errorf(
			"decoder.press_duration (%v) must be shorter than set_refresh_interval (%v)",
			d.PressDuration,
			d.SetRefreshInterval,
		)
	}
	return nil
}

type namedDuration struct {
	name string
	v    time.Duration
}
