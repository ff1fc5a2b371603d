package domain

import (
	"fmt"
	"time"
)

type SensorUpdateEventMixIn struct {
	Id string
}

type SensorUpdateEvent interface {
	SensorUpdateEvent() string
	SensorId() string
}

func (e SensorUpdateEventMixIn) SensorUpdateEvent() string {
	return fmt.Sprintf("%T", e)
}

func (e SensorUpdateEventMixIn) SensorId() string {
	return e.Id
}

// MeterReadingUpdateEvent carries one successful consumption reading. Unit is
// empty when the API reported something other than kWh. LastReset is local
// midnight of the current day in the configured timezone.
type MeterReadingUpdateEvent struct {
	SensorUpdateEventMixIn
	Value     float64
	Decimals  uint
	Unit      string
	LastReset time.Time
}

// SensorAvailabilityUpdateEvent flips one sensor between available and
// unavailable in the host UI.
type SensorAvailabilityUpdateEvent struct {
	SensorUpdateEventMixIn
	Available bool
}

type BridgeStateUpdateEvent struct {
	SensorUpdateEventMixIn
	Value bool
}
