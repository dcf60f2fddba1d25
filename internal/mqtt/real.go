package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

const (
	connectTimeout    = 10 * time.Second
	publishTimeout    = 5 * time.Second
	retryInterval     = 5 * time.Second
	defaultBufferSize = 64
	commandQueueSize  = 8
)

// Options configures a RealPublisher.
type Options struct {
	Broker          string
	ClientID        string
	Username        string
	Password        string
	TopicPrefix     string
	DiscoveryPrefix string
	BufferSize      int
	Logger          logrus.FieldLogger
}

// RealPublisher publishes to an actual MQTT broker.
type RealPublisher struct {
	client    paho.Client
	topics    Topics
	discovery []Discovery
	log       logrus.FieldLogger
	commands  chan Command

	mu     sync.Mutex
	outbox *outbox
}

// NewRealPublisher creates a publisher connected to the given broker.
// The availability topic carries an "offline" will; discovery, "online" and
// command subscriptions are (re)sent on every connect.
func NewRealPublisher(opts Options) (*RealPublisher, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	size := opts.BufferSize
	if size <= 0 {
		size = defaultBufferSize
	}

	topics := NewTopics(opts.TopicPrefix)
	discovery, err := DiscoveryMessages(topics, opts.DiscoveryPrefix, opts.ClientID)
	if err != nil {
		return nil, err
	}

	p := &RealPublisher{
		topics:    topics,
		discovery: discovery,
		log:       logger,
		commands:  make(chan Command, commandQueueSize),
		outbox:    newOutbox(size, logger),
	}

	co := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetUsername(opts.Username).
		SetPassword(opts.Password).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(retryInterval).
		SetWill(topics.Availability(), PayloadOffline, 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			p.log.Warnf("connection lost: %v", err)
		})

	p.client = paho.NewClient(co)
	token := p.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

// onConnect runs on a paho goroutine after every successful (re)connect.
func (p *RealPublisher) onConnect(c paho.Client) {
	p.log.Infof("connected to broker")

	p.send(c, p.topics.Availability(), 1, true, []byte(PayloadOnline))
	for _, d := range p.discovery {
		p.send(c, d.Topic, 1, true, d.Payload)
	}
	for _, entity := range []string{EntityDebug, EntityRefresh} {
		topic := p.topics.Command(entity)
		token := c.Subscribe(topic, 1, p.handleCommand)
		if !token.WaitTimeout(publishTimeout) || token.Error() != nil {
			p.log.Warnf("subscribe %s: %v", topic, token.Error())
		}
	}

	p.mu.Lock()
	pending := p.outbox.drainAll()
	p.mu.Unlock()
	if len(pending) > 0 {
		p.log.Infof("replaying %d buffered messages", len(pending))
	}
	for _, m := range pending {
		p.send(c, m.topic, m.qos, m.retained, m.payload)
	}
}

func (p *RealPublisher) send(c paho.Client, topic string, qos byte, retained bool, payload []byte) {
	token := c.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		p.log.Warnf("publish %s: timeout", topic)
		return
	}
	if err := token.Error(); err != nil {
		p.log.Warnf("publish %s: %v", topic, err)
	}
}

func (p *RealPublisher) handleCommand(_ paho.Client, msg paho.Message) {
	cmd, err := p.topics.ParseCommand(msg.Topic(), msg.Payload())
	if err != nil {
		p.log.Warnf("ignoring message: %v", err)
		return
	}
	select {
	case p.commands <- cmd:
	default:
		p.log.Warnf("command queue full, dropping %s", cmd.Kind)
	}
}

// publish sends a message, or queues it for replay while disconnected.
func (p *RealPublisher) publish(topic string, qos byte, retained bool, payload []byte) error {
	msg := bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained}
	// onConnect drains under mu once the connection is open; the check and
	// the push must not be split.
	p.mu.Lock()
	if !p.client.IsConnectionOpen() {
		p.outbox.push(msg)
		p.mu.Unlock()
		p.log.Debugf("offline, buffered %s", topic)
		return nil
	}
	p.mu.Unlock()

	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		p.mu.Lock()
		p.outbox.push(msg)
		p.mu.Unlock()
		return fmt.Errorf("publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// PublishState sends a retained entity state.
func (p *RealPublisher) PublishState(entity, payload string) error {
	return p.publish(p.topics.State(entity), 0, true, []byte(payload))
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	// QoS 1 (at-least-once) so shutdown events are delivered
	return p.publish(p.topics.System(), 1, event.Retained, payload)
}

// Commands returns the channel of commands received from the broker.
func (p *RealPublisher) Commands() <-chan Command {
	return p.commands
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close marks the device offline and disconnects from the broker.
func (p *RealPublisher) Close() error {
	if p.client.IsConnectionOpen() {
		p.send(p.client, p.topics.Availability(), 1, true, []byte(PayloadOffline))
	}
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
