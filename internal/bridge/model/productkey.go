package model

import (
	"github.com/nerrad567/vhome-bridge/internal/bridge/attribute"
	"github.com/nerrad567/vhome-bridge/internal/bridge/host"
)

// BridgeProductKey identifies the bridge itself.
const BridgeProductKey = "ha_bridge"

var categoryKeys = map[attribute.DeviceCategory]string{
	attribute.CategoryLight:       "ha_light",
	attribute.CategorySwitch:      "ha_switch",
	attribute.CategoryClimate:     "ha_air_conditioner",
	attribute.CategoryFan:         "ha_fan",
	attribute.CategoryCover:       "ha_curtain",
	attribute.CategoryMedia:       "ha_tv",
	attribute.CategoryWaterHeater: "ha_water_heater",
}

const socketProductKey = "ha_socket"

var sensorKeys = map[string]string{
	attribute.SensorClassEnum:        "ha_common_sensor",
	attribute.SensorClassBattery:     "ha_common_sensor",
	attribute.SensorClassTemperature: "ha_temp_humidity_sensor",
	attribute.SensorClassHumidity:    "ha_temp_humidity_sensor",
	attribute.SensorClassIlluminance: "ha_illuminance_sensor",
	attribute.SensorClassLight:       "ha_illuminance_sensor",
	attribute.SensorClassOccupancy:   "ha_occupancy_sensor",
	attribute.SensorClassMotion:      "ha_occupancy_sensor",
	attribute.SensorClassMoving:      "ha_occupancy_sensor",
	attribute.SensorClassDoor:        "ha_door_sensor",
	attribute.SensorClassGarageDoor:  "ha_door_sensor",
	attribute.SensorClassOpening:     "ha_door_sensor",
}

// ProductKey returns the cloud product key for a device. Switches split
// into sockets and wall switches by device class; sensors are keyed by
// device class.
func ProductKey(category attribute.DeviceCategory, dc attribute.DeviceContext) (string, bool) {
	switch category {
	case attribute.CategorySwitch:
		if dc.DeviceClass() == attribute.DeviceClassOutlet {
			return socketProductKey, true
		}
	case attribute.CategorySensor:
		key, ok := sensorKeys[dc.DeviceClass()]
		return key, ok
	}
	key, ok := categoryKeys[category]
	return key, ok
}

// Sensor device classes offered for selection, per platform.
var (
	addableSensorClasses = map[string]bool{
		attribute.SensorClassTemperature: true,
		attribute.SensorClassHumidity:    true,
		attribute.SensorClassIlluminance: true,
		attribute.SensorClassEnum:        true,
	}
	addableBinarySensorClasses = map[string]bool{
		attribute.SensorClassOccupancy:  true,
		attribute.SensorClassDoor:       true,
		attribute.SensorClassGarageDoor: true,
		attribute.SensorClassOpening:    true,
		attribute.SensorClassMotion:     true,
		attribute.SensorClassMoving:     true,
	}
)

// mediaDeviceClassTV is the only media player device class offered.
const mediaDeviceClassTV = "tv"

// Addable reports whether an entity may be offered in the addable device
// list. The entity must be enabled, belong to a device and config entry,
// sit on a bridged platform, and for sensors and media players carry a
// supported device class.
func Addable(entity host.Entity, state host.State) bool {
	if entity.ID == "" || entity.DeviceID == "" || entity.ConfigEntryID == "" || entity.Disabled() {
		return false
	}
	platform := entity.Platform()
	if _, ok := attribute.CategoryFromPlatform(platform); !ok {
		return false
	}

	class, _ := state.Attributes["device_class"].(string)
	switch platform {
	case attribute.PlatformSensor:
		return addableSensorClasses[class]
	case attribute.PlatformBinarySensor:
		return addableBinarySensorClasses[class]
	case attribute.PlatformMediaPlayer:
		return class == mediaDeviceClassTV
	}
	return true
}
