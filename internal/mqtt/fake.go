package mqtt

// StateMessage is one recorded entity state publish.
type StateMessage struct {
	Entity  string
	Payload string
}

// FakePublisher records published messages for test assertions.
type FakePublisher struct {
	// States contains every entity state publish in order.
	States []StateMessage

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// SystemPayloads contains the JSON payloads for system events.
	SystemPayloads [][]byte

	// PublishError, if set, will be returned by PublishState.
	PublishError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool

	commands chan Command
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{commands: make(chan Command, commandQueueSize)}
}

// PublishState records the entity state.
func (f *FakePublisher) PublishState(entity, payload string) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	f.States = append(f.States, StateMessage{Entity: entity, Payload: payload})
	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}

	f.SystemEvents = append(f.SystemEvents, event)

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemPayloads = append(f.SystemPayloads, payload)

	return nil
}

// StatesFor returns the payloads published for one entity, in order.
func (f *FakePublisher) StatesFor(entity string) []string {
	var out []string
	for _, s := range f.States {
		if s.Entity == entity {
			out = append(out, s.Payload)
		}
	}
	return out
}

// Last returns the latest payload published for an entity.
func (f *FakePublisher) Last(entity string) (string, bool) {
	for i := len(f.States) - 1; i >= 0; i-- {
		if f.States[i].Entity == entity {
			return f.States[i].Payload, true
		}
	}
	return "", false
}

// Send queues a command as if it arrived from the broker.
func (f *FakePublisher) Send(cmd Command) {
	f.commands <- cmd
}

// Commands returns the queued commands.
func (f *FakePublisher) Commands() <-chan Command {
	return f.commands
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}

// Reset clears recorded messages.
func (f *FakePublisher) Reset() {
	f.States = nil
	f.SystemEvents = nil
	f.SystemPayloads = nil
	f.Closed = false
	f.PublishError = nil
	f.PublishSystemError = nil
	f.Connected = false
}
