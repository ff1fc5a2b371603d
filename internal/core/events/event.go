package events

import (
	"time"

	. "glow2mqtt/internal/core/domain"
	"glow2mqtt/pkg/glowmarkt"
)

// ReadingToUpdateEvents maps a successful poll to sensor update events.
// Returns nothing for a reading with an empty value series.
func ReadingToUpdateEvents(sensorId string, reading *glowmarkt.Reading, lastReset time.Time) []any {
	var events []any

	value, ok := reading.Value()
	if !ok {
		return events
	}
	events = append(events, MeterReadingUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: sensorId,
		},
		Value:     value,
		Decimals:  3,
		Unit:      DisplayUnit(reading.Units),
		LastReset: lastReset,
	})

	return events
}

func AvailabilityUpdateEvent(sensorId string, available bool) SensorAvailabilityUpdateEvent {
	return SensorAvailabilityUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: sensorId,
		},
		Available: available,
	}
}

// DisplayUnit maps the API's reported unit to a displayable one. Only kWh is
// recognized; anything else yields no unit.
func DisplayUnit(apiUnits string) string {
	if apiUnits == UNIT_KILO_WATT_HOUR {
		return UNIT_KILO_WATT_HOUR
	}
	return ""
}
