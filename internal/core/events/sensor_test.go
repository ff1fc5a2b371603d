package events

import (
	"testing"
	"time"

	"glow2mqtt/internal/core/domain"
	"glow2mqtt/pkg/glowmarkt"

	"github.com/stretchr/testify/assert"
)

func TestConsumptionSensorElectricity(t *testing.T) {

	assert := assert.New(t)

	resource := glowmarkt.Resource{
		ID:         "6ff3cbc6-0b2d-4b4b-a16a-a2a0beed4e1b",
		Label:      "electricity consumption",
		Classifier: glowmarkt.ClassifierElectricityConsumption,
		SourceType: glowmarkt.SourceElectricity,
	}

	sensor := ConsumptionSensor(resource)

	assert.Equal(resource.ID, sensor.UniqueId, "unique id is the resource id")
	assert.Equal("electricity consumption", sensor.Name)
	assert.Equal(ICON_ELECTRICITY, sensor.Icon)
	assert.Equal(DEVICE_CLASS_ENERGY, sensor.DeviceClass)
	assert.Equal(STATE_CLASS_MEASUREMENT, sensor.StateClass)
	assert.Contains(sensor.Device.Name, "electricity")
	assert.True(sensor.WithLastReset)
}

func TestConsumptionSensorGas(t *testing.T) {

	assert := assert.New(t)

	resource := glowmarkt.Resource{
		ID:         "aa1e5d46-e4e9-4092-8bbe-6a7e2a43be2f",
		Label:      "gas consumption",
		Classifier: glowmarkt.ClassifierGasConsumption,
		SourceType: glowmarkt.SourceGas,
	}

	sensor := ConsumptionSensor(resource)

	assert.Equal(ICON_GAS, sensor.Icon)
	assert.Contains(sensor.Device.Name, "gas")
}

func TestUnknownSourceTypeHasNoIcon(t *testing.T) {

	assert := assert.New(t)

	resource := glowmarkt.Resource{
		ID:         "res-x",
		Label:      "mystery meter",
		SourceType: glowmarkt.SourceUnknown,
	}

	sensor := ConsumptionSensor(resource)

	assert.Equal("", sensor.Icon)
	assert.Equal("Smart Meter", sensor.Device.Name)
}

func TestTopicId(t *testing.T) {

	assert := assert.New(t)

	assert.Equal("6ff3cbc6_0b2d_4b4b_a16a_a2a0beed4e1b", TopicId("6ff3cbc6-0b2d-4b4b-a16a-a2a0beed4e1b"))
	assert.Equal("abc_123", TopicId("ABC 123"))
}

func TestReadingToUpdateEvents(t *testing.T) {

	assert := assert.New(t)

	lastReset := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	reading := &glowmarkt.Reading{
		Data:  [][2]float64{{1719792000, 12.3}},
		Units: "kWh",
	}

	evs := ReadingToUpdateEvents("my_sensor", reading, lastReset)
	assert.Len(evs, 1)

	ev, ok := evs[0].(domain.MeterReadingUpdateEvent)
	assert.True(ok)
	assert.Equal("my_sensor", ev.SensorId())
	assert.Equal(12.3, ev.Value)
	assert.Equal(UNIT_KILO_WATT_HOUR, ev.Unit)
	assert.True(ev.LastReset.Equal(lastReset))
}

func TestReadingToUpdateEventsUnknownUnit(t *testing.T) {

	assert := assert.New(t)

	reading := &glowmarkt.Reading{
		Data:  [][2]float64{{1719792000, 0.5}},
		Units: "m3",
	}

	evs := ReadingToUpdateEvents("my_sensor", reading, time.Now())
	assert.Len(evs, 1)

	ev := evs[0].(domain.MeterReadingUpdateEvent)
	assert.Equal("", ev.Unit, "non-kWh units are not displayed")
}

func TestReadingToUpdateEventsEmptySeries(t *testing.T) {

	assert := assert.New(t)

	reading := &glowmarkt.Reading{Units: "kWh"}
	evs := ReadingToUpdateEvents("my_sensor", reading, time.Now())
	assert.Empty(evs, "no events for an empty series")
}
