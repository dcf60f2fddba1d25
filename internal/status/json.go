package status

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sweeney/spa-sensor/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Spa           SpaJSON      `json:"spa"`
	Debug         bool         `json:"debug"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// SpaJSON is the decoded display state. Unknown temperatures are null.
type SpaJSON struct {
	MeasuredTemp *int   `json:"measured_temp"`
	SetTemp      *int   `json:"set_temp"`
	Heater       string `json:"heater"`
	Pump         string `json:"pump"`
	Light        string `json:"light"`
	Mode         string `json:"mode"`
	LastFrame    string `json:"last_frame,omitempty"`
	LastPublish  string `json:"last_publish"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of the decoder counters.
type CountsJSON struct {
	Frames         int `json:"frames"`
	Valid          int `json:"valid"`
	ChecksumFailed int `json:"checksum_failed"`
	UnknownDigits  int `json:"unknown_digits"`
	Partial        int `json:"partial"`
	SetCaptures    int `json:"set_captures"`
	StaleSetPoints int `json:"stale_set_points"`
	Presses        int `json:"presses"`
	Heartbeats     int `json:"heartbeats"`
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
	PollMs      int64  `json:"poll_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	RefreshMs   int64  `json:"set_refresh_ms"`
	Broker      string `json:"broker"`
	TopicPrefix string `json:"topic_prefix"`
	HTTPAddr    string `json:"http_addr"`
}

// StateString renders a binary state, using UNKNOWN before the first stable reading.
func StateString(s logic.State) string {
	if s == logic.StateUnknown {
		return "UNKNOWN"
	}
	return string(s)
}

func tempOrNil(v int) *int {
	if v == logic.TempUnknown {
		return nil
	}
	return &v
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Spa: SpaJSON{
			MeasuredTemp: tempOrNil(snap.Spa.Measured),
			SetTemp:      tempOrNil(snap.Spa.Set),
			Heater:       StateString(snap.Spa.Heater),
			Pump:         StateString(snap.Spa.Pump),
			Light:        StateString(snap.Spa.Light),
			Mode:         snap.Spa.Mode.String(),
		},
		Debug:         snap.Debug,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Frames:         snap.Counts.Frames,
			Valid:          snap.Counts.Valid,
			ChecksumFailed: snap.Counts.ChecksumFailed,
			UnknownDigits:  snap.Counts.UnknownDigits,
			Partial:        snap.Counts.Partial,
			SetCaptures:    snap.Counts.SetCaptures,
			StaleSetPoints: snap.Counts.StaleSetPoints,
			Presses:        snap.Counts.Presses,
			Heartbeats:     snap.Counts.Heartbeats,
		},
		Config: ConfigJSON{
			PollMs:      snap.Config.PollMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			RefreshMs:   snap.Config.RefreshMs,
			Broker:      snap.Config.Broker,
			TopicPrefix: snap.Config.TopicPrefix,
			HTTPAddr:    snap.Config.HTTPAddr,
		},
	}
	if snap.Spa.HaveFrame {
		inner.Spa.LastFrame = fmt.Sprintf("0x%06X", snap.Spa.LastFrame)
	}
	if !snap.Spa.LastPublish.IsZero() {
		inner.Spa.LastPublish = snap.Spa.LastPublish.UTC().Format(time.RFC3339)
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
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
