// Package mqtt publishes spa readings to an MQTT broker with Home Assistant
// discovery, and receives the debug and refresh commands.
package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultTopicPrefix is the root of all state, command and system topics.
const DefaultTopicPrefix = "spa"

// DefaultDiscoveryPrefix is the Home Assistant discovery root.
const DefaultDiscoveryPrefix = "homeassistant"

// Entity object IDs. Each has a state topic; the debug switch and refresh
// button also have a command topic.
const (
	EntityMeasured = "measured_temp"
	EntitySet      = "set_temp"
	EntityHeater   = "heater"
	EntityPump     = "pump"
	EntityLight    = "light"
	EntityDebug    = "debug"
	EntityRefresh  = "refresh_set_temp"
)

// Payload literals shared with Home Assistant.
const (
	PayloadOn      = "ON"
	PayloadOff     = "OFF"
	PayloadPress   = "PRESS"
	PayloadOnline  = "online"
	PayloadOffline = "offline"
)

// Publisher publishes entity states and system events.
type Publisher interface {
	// PublishState sends a retained state payload for an entity.
	// Returns error if publishing fails (should not crash the process).
	PublishState(entity, payload string) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// CommandSource delivers commands received from the broker.
type CommandSource interface {
	Commands() <-chan Command
}

// Topics builds topic names under a prefix.
type Topics struct {
	prefix string
}

// NewTopics creates topics under prefix. An empty prefix uses DefaultTopicPrefix.
func NewTopics(prefix string) Topics {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the topic root.
func (t Topics) Prefix() string { return t.prefix }

// State returns the retained state topic of an entity.
func (t Topics) State(entity string) string { return t.prefix + "/" + entity + "/state" }

// Command returns the command topic of an entity.
func (t Topics) Command(entity string) string { return t.prefix + "/" + entity + "/set" }

// Availability returns the online/offline topic, also used for the LWT.
func (t Topics) Availability() string { return t.prefix + "/status" }

// System returns the topic for lifecycle events.
func (t Topics) System() string { return t.prefix + "/system" }

// CommandKind identifies a command received from the broker.
type CommandKind int

const (
	// CommandDebug switches debug logging on or off.
	CommandDebug CommandKind = iota + 1
	// CommandRefresh requests a set-point refresh press.
	CommandRefresh
)

func (k CommandKind) String() string {
	switch k {
	case CommandDebug:
		return "DEBUG"
	case CommandRefresh:
		return "REFRESH"
	}
	return "UNKNOWN"
}

// Command is one decoded command message.
type Command struct {
	Kind CommandKind
	On   bool // debug only
}

// ErrUnknownCommand is returned for messages that are not a recognised command.
var ErrUnknownCommand = errors.New("unknown command")

// ParseCommand decodes a message received on a command topic.
func (t Topics) ParseCommand(topic string, payload []byte) (Command, error) {
	p := strings.ToUpper(strings.TrimSpace(string(payload)))
	switch topic {
	case t.Command(EntityDebug):
		switch p {
		case PayloadOn:
			return Command{Kind: CommandDebug, On: true}, nil
		case PayloadOff:
			return Command{Kind: CommandDebug, On: false}, nil
		}
	case t.Command(EntityRefresh):
		if p == PayloadPress {
			return Command{Kind: CommandRefresh}, nil
		}
	}
	return Command{}, fmt.Errorf("%w: %s %q", ErrUnknownCommand, topic, payload)
}

// FormatTemperature renders a temperature state payload.
func FormatTemperature(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatState renders a binary state payload.
func FormatState(on bool) string {
	if on {
		return PayloadOn
	}
	return PayloadOff
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// SystemPayload is the payload for events that carry no status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}
	return json.Marshal(SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	})
}
