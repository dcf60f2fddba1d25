// Package status provides a thread-safe status tracker for the spa-sensor daemon.
// The loop writes it; HTTP handlers and system events read snapshots.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/spa-sensor/internal/logic"
)

// NetworkInfo contains network state as reported by the host helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs      int64
	HeartbeatMs int64
	RefreshMs   int64
	Broker      string
	TopicPrefix string
	HTTPAddr    string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Spa           logic.Published
	Counts        logic.Counts
	Debug         bool
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
			Spa: logic.Published{
				Measured: logic.TempUnknown,
				Set:      logic.TempUnknown,
			},
		},
		now: time.Now,
	}
}

// Update sets the decoder's published state and counters.
// Called from runLoop on every tick.
func (t *Tracker) Update(spa logic.Published, counts logic.Counts) {
	t.mu.Lock()
	t.snap.Spa = spa
	t.snap.Counts = counts
	t.mu.Unlock()
}

// SetDebug records whether debug logging is on.
func (t *Tracker) SetDebug(on bool) {
	t.mu.Lock()
	t.snap.Debug = on
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
