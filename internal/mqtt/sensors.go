package mqtt

import (
	"github.com/sirupsen/logrus"

	"github.com/sweeney/spa-sensor/internal/logic"
)

// StatePublisher is the part of Publisher the sensor adapters need.
type StatePublisher interface {
	PublishState(entity, payload string) error
}

type temperatureSensor struct {
	pub    StatePublisher
	entity string
	log    logrus.FieldLogger
}

func (s temperatureSensor) PublishTemperature(v float64) {
	if err := s.pub.PublishState(s.entity, FormatTemperature(v)); err != nil {
		s.log.Warnf("publish %s: %v", s.entity, err)
	}
}

type binarySensor struct {
	pub    StatePublisher
	entity string
	log    logrus.FieldLogger
}

func (s binarySensor) PublishState(on bool) {
	if err := s.pub.PublishState(s.entity, FormatState(on)); err != nil {
		s.log.Warnf("publish %s: %v", s.entity, err)
	}
}

// NewSensors returns decoder sensors that publish through pub.
// Publish failures are logged and dropped.
func NewSensors(pub StatePublisher, logger logrus.FieldLogger) logic.Sensors {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return logic.Sensors{
		Measured: temperatureSensor{pub: pub, entity: EntityMeasured, log: logger},
		Set:      temperatureSensor{pub: pub, entity: EntitySet, log: logger},
		Heater:   binarySensor{pub: pub, entity: EntityHeater, log: logger},
		Pump:     binarySensor{pub: pub, entity: EntityPump, log: logger},
		Light:    binarySensor{pub: pub, entity: EntityLight, log: logger},
	}
}
