package events

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"glow2mqtt/internal/core/domain"
	"glow2mqtt/pkg/glowmarkt"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE = "bridge"

	STATE_CLASS_MEASUREMENT      = "measurement"
	STATE_CLASS_TOTAL_INCREASING = "total_increasing"
	DEVICE_CLASS_ENERGY          = "energy"
	DEVICE_CLASS_CONNECTIVITY    = "connectivity"
	ENTITY_CLASS_DIAGNOSTIC      = "diagnostic"
	SENSOR_TYPE_SENSOR           = "sensor"
	SENSOR_TYPE_BINARY           = "binary_sensor"

	ICON_ELECTRICITY = "mdi:flash"
	ICON_GAS         = "mdi:fire"

	UNIT_KILO_WATT_HOUR = "kWh"
)

var topicIdRegexp = regexp.MustCompile(`[^a-z0-9_]+`)

// TopicId maps an opaque resource id to something safe to embed in an MQTT
// topic segment.
func TopicId(id string) string {
	return topicIdRegexp.ReplaceAllString(strings.ToLower(id), "_")
}

func BridgeDevice(baseTopic string) domain.Device {
	return domain.Device{
		Id:           fmt.Sprintf("glow_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "Hildebrand",
		Model:        "glow2mqtt",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("Glow bridge %s", md5HashShort(baseTopic)),
	}
}

func BridgeSensors(bridgeDevice domain.Device) []domain.GenericSensor {
	return []domain.GenericSensor{
		{
			Device:         bridgeDevice,
			Id:             SENSOR_ID_BRIDGE_STATE,
			SensorType:     SENSOR_TYPE_BINARY,
			Name:           "Bridge connection state",
			DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
			EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
			UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
		},
	}
}

// MeterDevice is the one logical device per resource: "Smart Meter,
// electricity" or "Smart Meter, gas". Unknown source types fall back to the
// bare "Smart Meter" name.
func MeterDevice(resource glowmarkt.Resource) domain.Device {
	name := "Smart Meter"
	switch resource.SourceType {
	case glowmarkt.SourceElectricity:
		name = "Smart Meter, electricity"
	case glowmarkt.SourceGas:
		name = "Smart Meter, gas"
	}
	return domain.Device{
		Id:           fmt.Sprintf("glow_meter_%s", TopicId(resource.ID)),
		Manufacturer: "Hildebrand",
		Name:         name,
	}
}

// ConsumptionSensor builds the sensor entity for one recognized resource.
// The unique id is the resource id itself, globally unique across accounts.
func ConsumptionSensor(resource glowmarkt.Resource) domain.GenericSensor {
	return domain.GenericSensor{
		Device:            MeterDevice(resource),
		Id:                TopicId(resource.ID),
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              resource.Label,
		UniqueId:          resource.ID,
		UnitOfMeasurement: UNIT_KILO_WATT_HOUR,
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_ENERGY,
		Icon:              SourceTypeIcon(resource.SourceType),
		WithLastReset:     true,
	}
}

func SourceTypeIcon(sourceType glowmarkt.SourceType) string {
	switch sourceType {
	case glowmarkt.SourceElectricity:
		return ICON_ELECTRICITY
	case glowmarkt.SourceGas:
		return ICON_GAS
	default:
		return ""
	}
}

func uniqueId(deviceId, sensorId string) string {
	return fmt.Sprintf("%s_%s", deviceId, sensorId)
}

func md5HashShort(value string) string {
	hash := md5.Sum([]byte(value))
	return hex.EncodeToString(hash[:])[:8]
}
