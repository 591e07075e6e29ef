package attribute

// DeviceCategory is a device's functional class. It selects the property
// table used for conversion and model building.
type DeviceCategory int

// Supported device categories.
const (
	CategoryUnknown DeviceCategory = iota
	CategoryLight
	CategorySwitch
	CategoryClimate
	CategoryFan
	CategoryCover
	CategorySensor
	CategoryMedia
	CategoryWaterHeater
)

// Host platform names as they appear in entity ids ("light.desk").
const (
	PlatformLight        = "light"
	PlatformSwitch       = "switch"
	PlatformClimate      = "climate"
	PlatformFan          = "fan"
	PlatformCover        = "cover"
	PlatformSensor       = "sensor"
	PlatformBinarySensor = "binary_sensor"
	PlatformMediaPlayer  = "media_player"
	PlatformRemote       = "remote"
	PlatformWaterHeater  = "water_heater"
)

// String returns the category's lower-case name.
func (c DeviceCategory) String() string {
	switch c {
	case CategoryLight:
		return "light"
	case CategorySwitch:
		return "switch"
	case CategoryClimate:
		return "climate"
	case CategoryFan:
		return "fan"
	case CategoryCover:
		return "cover"
	case CategorySensor:
		return "sensor"
	case CategoryMedia:
		return "media"
	case CategoryWaterHeater:
		return "water_heater"
	default:
		return "unknown"
	}
}

// CategoryFromPlatform maps a host platform name to its device category.
//
// Parameters:
//   - platform: Host platform (the part of an entity id before the dot)
//
// Returns:
//   - DeviceCategory: The matching category
//   - bool: false if the platform is not bridged
func CategoryFromPlatform(platform string) (DeviceCategory, bool) {
	switch platform {
	case PlatformLight:
		return CategoryLight, true
	case PlatformSwitch:
		return CategorySwitch, true
	case PlatformClimate:
		return CategoryClimate, true
	case PlatformFan:
		return CategoryFan, true
	case PlatformCover:
		return CategoryCover, true
	case PlatformSensor, PlatformBinarySensor:
		return CategorySensor, true
	case PlatformMediaPlayer, PlatformRemote:
		return CategoryMedia, true
	case PlatformWaterHeater:
		return CategoryWaterHeater, true
	default:
		return CategoryUnknown, false
	}
}

// SupportedPlatforms lists every host platform the bridge can register.
func SupportedPlatforms() []string {
	return []string{
		PlatformLight,
		PlatformSwitch,
		PlatformClimate,
		PlatformFan,
		PlatformCover,
		PlatformSensor,
		PlatformBinarySensor,
		PlatformMediaPlayer,
		PlatformRemote,
		PlatformWaterHeater,
	}
}
