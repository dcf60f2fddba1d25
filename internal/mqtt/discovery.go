package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Discovery is one retained Home Assistant config message.
type Discovery struct {
	Topic   string
	Payload []byte
}

type entityDef struct {
	component string
	object    string
	name      string
	extra     map[string]interface{}
	command   bool
}

var entityDefs = []entityDef{
	{component: "sensor", object: EntityMeasured, name: "Water temperature", extra: map[string]interface{}{
		"device_class":        "temperature",
		"state_class":         "measurement",
		"unit_of_measurement": "°F",
	}},
	{component: "sensor", object: EntitySet, name: "Set temperature", extra: map[string]interface{}{
		"device_class":        "temperature",
		"unit_of_measurement": "°F",
	}},
	{component: "binary_sensor", object: EntityHeater, name: "Heater", extra: map[string]interface{}{
		"device_class": "heat",
		"payload_on":   PayloadOn,
		"payload_off":  PayloadOff,
	}},
	{component: "binary_sensor", object: EntityPump, name: "Pump", extra: map[string]interface{}{
		"device_class": "running",
		"payload_on":   PayloadOn,
		"payload_off":  PayloadOff,
	}},
	{component: "binary_sensor", object: EntityLight, name: "Light", extra: map[string]interface{}{
		"device_class": "light",
		"payload_on":   PayloadOn,
		"payload_off":  PayloadOff,
	}},
	{component: "switch", object: EntityDebug, name: "Debug logging", command: true, extra: map[string]interface{}{
		"entity_category": "config",
		"payload_on":      PayloadOn,
		"payload_off":     PayloadOff,
		"optimistic":      false,
	}},
	{component: "button", object: EntityRefresh, name: "Refresh set temperature", command: true, extra: map[string]interface{}{
		"payload_press": PayloadPress,
	}},
}

// NodeID turns a client ID into a discovery node ID.
func NodeID(clientID string) string {
	id := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		}
		return '_'
	}, clientID)
	if id == "" {
		return "spa_sensor"
	}
	return id
}

func deviceInfo(node string) map[string]interface{} {
	return map[string]interface{}{
		"identifiers": []string{node},
		"name":        "Spa",
		"model":       "Display bus decoder",
	}
}

// DiscoveryMessages builds the config messages for every entity.
func DiscoveryMessages(t Topics, discoveryPrefix, node string) ([]Discovery, error) {
	if discoveryPrefix == "" {
		discoveryPrefix = DefaultDiscoveryPrefix
	}
	node = NodeID(node)

	msgs := make([]Discovery, 0, len(entityDefs))
	for _, e := range entityDefs {
		payload := map[string]interface{}{
			"name":               e.name,
			"unique_id":          node + "_" + e.object,
			"availability_topic": t.Availability(),
			"device":             deviceInfo(node),
		}
		// Buttons are stateless.
		if e.component != "button" {
			payload["state_topic"] = t.State(e.object)
		}
		if e.command {
			payload["command_topic"] = t.Command(e.object)
		}
		for k, v := range e.extra {
			payload[k] = v
		}

		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal discovery payload for %s: %w", e.object, err)
		}
		msgs = append(msgs, Discovery{
			Topic:   fmt.Sprintf("%s/%s/%s/%s/config", discoveryPrefix, e.component, node, e.object),
			Payload: b,
		})
	}
	return msgs, nil
}
