package mqtt

import "github.com/sirupsen/logrus"

// bufferedMsg stores a serialized MQTT message for replay after reconnection.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox is a fixed-capacity FIFO that stores messages while disconnected.
// A retained message replaces a queued retained message on the same topic,
// so a long outage replays each state once with its latest value.
// Not safe for concurrent use; the caller must synchronize.
type outbox struct {
	buf      []bufferedMsg
	capacity int
	head     int // next write position
	count    int
	overflow bool // true if any message was dropped since last drain
	log      logrus.FieldLogger
}

func newOutbox(capacity int, logger logrus.FieldLogger) *outbox {
	if capacity < 1 {
		capacity = 1
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &outbox{
		buf:      make([]bufferedMsg, capacity),
		capacity: capacity,
		log:      logger,
	}
}

func (o *outbox) push(msg bufferedMsg) {
	if msg.retained {
		start := o.oldest()
		for i := 0; i < o.count; i++ {
			idx := (start + i) % o.capacity
			if o.buf[idx].retained && o.buf[idx].topic == msg.topic {
				o.buf[idx] = msg
				return
			}
		}
	}

	if o.count == o.capacity {
		if !o.overflow {
			o.log.Warnf("outbox full (%d messages), dropping oldest", o.capacity)
			o.overflow = true
		}
		// head already points at the oldest entry
		o.buf[o.head] = msg
		o.head = (o.head + 1) % o.capacity
		return
	}
	o.buf[o.head] = msg
	o.head = (o.head + 1) % o.capacity
	o.count++
}

func (o *outbox) oldest() int {
	return (o.head - o.count + o.capacity) % o.capacity
}

func (o *outbox) drainAll() []bufferedMsg {
	if o.count == 0 {
		return nil
	}

	result := make([]bufferedMsg, o.count)
	start := o.oldest()
	for i := 0; i < o.count; i++ {
		result[i] = o.buf[(start+i)%o.capacity]
	}

	o.count = 0
	o.head = 0
	o.overflow = false
	return result
}

func (o *outbox) len() int {
	return o.count
}
