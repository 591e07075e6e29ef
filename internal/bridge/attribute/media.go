package attribute

// Media wire property names. Key properties carry their own name as the
// wire value, e.g. {"vivo_std_home": "home"}.
const (
	WireVolume        = "vivo_std_volume"
	WireRemoteControl = "vivo_std_remote_control"
	wireKeyPrefix     = "vivo_std_"
)

// Remote keys.
const (
	KeyHome       = "home"
	KeyMenu       = "menu"
	KeyTopMenu    = "top_menu"
	KeyEnter      = "enter"
	KeyBack       = "back"
	KeyUp         = "up"
	KeyDown       = "down"
	KeyLeft       = "left"
	KeyRight      = "right"
	KeyVolumeUp   = "volume_up"
	KeyVolumeDown = "volume_down"
	KeyMute       = "mute"
	KeyPlay       = "play"
	KeyPause      = "pause"
	KeyPrevious   = "previous"
	KeyNext       = "next"
	KeyStop       = "stop"
	KeyWakeUp     = "wakeup"
)

// Integration identifiers with a dedicated key profile.
const (
	BrandWebOSTV = "webostv"
	BrandAppleTV = "apple_tv"
)

const (
	hostVolumeLevel = "volume_level"
	mediaStandby    = "standby"
)

// Media player supported_features bits.
const (
	mediaFeatPause    = 1
	mediaFeatVolume   = 4
	mediaFeatPrevious = 16
	mediaFeatNext     = 32
	mediaFeatTurnOn   = 128
	mediaFeatTurnOff  = 256
	mediaFeatStop     = 4096
	mediaFeatPlay     = 16384
)

// Apple TV repeats each remote command once with a short delay.
var appleCommandParams = map[string]any{
	"num_repeats": 1,
	"delay_secs":  0.4,
	"hold_secs":   0,
}

type mediaConverter struct{}

// keyProperty builds a write-only key press. Only the key's own name is
// accepted as the wire value.
func keyProperty(key string, call func(dc DeviceContext) *ServiceCall) PropertyDescriptor {
	return PropertyDescriptor{
		WireName: wireKeyPrefix + key,
		HostName: key,
		WireToHost: func(dc DeviceContext, v any) (*ServiceCall, bool) {
			if s, ok := v.(string); !ok || s != key {
				return nil, false
			}
			return call(dc), true
		},
	}
}

func lgButton(button string) func(DeviceContext) *ServiceCall {
	return func(dc DeviceContext) *ServiceCall {
		return newCall(BrandWebOSTV, "button", dc.EntityID).with("button", button)
	}
}

func appleCommand(command string) func(DeviceContext) *ServiceCall {
	return func(dc DeviceContext) *ServiceCall {
		call := newCall(PlatformRemote, "send_command", dc.EntityID).with("command", command)
		for k, v := range appleCommandParams {
			call.with(k, v)
		}
		return call
	}
}

func mediaService(service string) func(DeviceContext) *ServiceCall {
	return func(dc DeviceContext) *ServiceCall {
		return newCall(PlatformMediaPlayer, service, dc.EntityID)
	}
}

// mediaPowerToWire treats off and standby as powered down.
func mediaPowerToWire(_ DeviceContext, v any) (any, bool) {
	s, ok := v.(string)
	if !ok {
		return nil, false
	}
	if s == StateOff || s == mediaStandby {
		return WireOff, true
	}
	return WireOn, true
}

var mediaPower = PropertyDescriptor{
	WireName:   WirePower,
	HostName:   HostPower,
	HostToWire: mediaPowerToWire,
	WireToHost: onOffToHost(PlatformMediaPlayer),
}

var mediaVolume = PropertyDescriptor{
	WireName: WireVolume,
	HostName: hostVolumeLevel,
	HostToWire: func(_ DeviceContext, v any) (any, bool) {
		f, ok := toFloat(v)
		if !ok {
			return nil, false
		}
		return clampInt(roundInt(f*wirePercentMax), 0, wirePercentMax), true
	},
	WireToHost: func(dc DeviceContext, v any) (*ServiceCall, bool) {
		f, ok := toFloat(v)
		if !ok {
			return nil, false
		}
		level := clampFloat(f, 0, wirePercentMax) / wirePercentMax
		return newCall(PlatformMediaPlayer, "volume_set", dc.EntityID).with(hostVolumeLevel, level), true
	},
}

var lgMediaTable = []PropertyDescriptor{
	mediaPower,
	mediaVolume,
	keyProperty(KeyHome, lgButton("HOME")),
	keyProperty(KeyMenu, lgButton("MENU")),
	keyProperty(KeyEnter, lgButton("ENTER")),
	keyProperty(KeyBack, lgButton("BACK")),
	keyProperty(KeyLeft, lgButton("LEFT")),
	keyProperty(KeyRight, lgButton("RIGHT")),
	keyProperty(KeyUp, lgButton("UP")),
	keyProperty(KeyDown, lgButton("DOWN")),
	keyProperty(KeyVolumeUp, lgButton("VOLUMEUP")),
	keyProperty(KeyVolumeDown, lgButton("VOLUMEDOWN")),
	keyProperty(KeyMute, lgButton("MUTE")),
	keyProperty(KeyPlay, mediaService("media_play")),
	keyProperty(KeyPause, mediaService("media_pause")),
	keyProperty(KeyPrevious, mediaService("media_previous_track")),
	keyProperty(KeyNext, mediaService("media_next_track")),
	keyProperty(KeyStop, mediaService("media_stop")),
}

// lgFixedKeys are advertised regardless of supported_features.
var lgFixedKeys = []string{
	KeyLeft, KeyRight, KeyDown, KeyUp, KeyHome, KeyMenu, KeyBack, KeyEnter,
	KeyVolumeUp, KeyVolumeDown, KeyPlay, KeyPause, KeyMute,
}

var appleRemoteTable = []PropertyDescriptor{
	{
		WireName:   WirePower,
		HostName:   HostPower,
		HostToWire: mediaPowerToWire,
		WireToHost: func(dc DeviceContext, v any) (*ServiceCall, bool) {
			switch v {
			case WireOn:
				return appleCommand("turn_on")(dc), true
			case WireOff:
				return appleCommand("turn_off")(dc), true
			default:
				return nil, false
			}
		},
	},
	{
		WireName:   WireRemoteControl,
		HostName:   HostPower,
		HostToWire: mediaPowerToWire,
		WireToHost: onOffToHost(PlatformRemote),
	},
	keyProperty(KeyWakeUp, appleCommand("wakeup")),
	keyProperty(KeyStop, appleCommand("stop")),
	keyProperty(KeyHome, appleCommand("home")),
	keyProperty(KeyTopMenu, appleCommand("top_menu")),
	keyProperty(KeyBack, appleCommand("menu")),
	keyProperty(KeyEnter, appleCommand("select")),
	keyProperty(KeyPlay, appleCommand("play")),
	keyProperty(KeyPause, appleCommand("pause")),
	keyProperty(KeyUp, appleCommand("up")),
	keyProperty(KeyDown, appleCommand("down")),
	keyProperty(KeyLeft, appleCommand("left")),
	keyProperty(KeyRight, appleCommand("right")),
	keyProperty(KeyVolumeUp, appleCommand("volume_up")),
	keyProperty(KeyVolumeDown, appleCommand("volume_down")),
	keyProperty(KeyPrevious, appleCommand("previous")),
	keyProperty(KeyNext, appleCommand("next")),
}

var appleRemoteKeys = []string{
	KeyHome, KeyTopMenu, KeyEnter, KeyPlay, KeyPause, KeyUp, KeyDown, KeyLeft,
	KeyRight, KeyVolumeUp, KeyVolumeDown, KeyPrevious, KeyNext, KeyBack,
}

var genericMediaTable = []PropertyDescriptor{
	mediaPower,
	mediaVolume,
	keyProperty(KeyPlay, mediaService("media_play")),
	keyProperty(KeyPause, mediaService("media_pause")),
	keyProperty(KeyPrevious, mediaService("media_previous_track")),
	keyProperty(KeyNext, mediaService("media_next_track")),
	keyProperty(KeyStop, mediaService("media_stop")),
}

func (mediaConverter) Category() DeviceCategory { return CategoryMedia }

// Properties selects the key profile from the platform and brand.
func (mediaConverter) Properties(dc DeviceContext) []PropertyDescriptor {
	switch {
	case dc.Platform == PlatformRemote && dc.Brand == BrandAppleTV:
		return appleRemoteTable
	case dc.Platform == PlatformRemote:
		return nil
	case dc.Brand == BrandWebOSTV:
		return lgMediaTable
	case dc.Brand == BrandAppleTV:
		// Apple TV media players are controlled through their remote entity.
		return nil
	default:
		return genericMediaTable
	}
}

func (c mediaConverter) Model(dc DeviceContext) []PropertyDescriptor {
	table := c.Properties(dc)
	if len(table) == 0 {
		return nil
	}

	if dc.Platform == PlatformRemote {
		props := []PropertyDescriptor{
			find(table, WirePower),
			find(table, WireRemoteControl),
		}
		for _, key := range appleRemoteKeys {
			props = append(props, find(table, wireKeyPrefix+key))
		}
		return props
	}

	var props []PropertyDescriptor
	if dc.Features()&(mediaFeatTurnOn|mediaFeatTurnOff) != 0 {
		props = append(props, find(table, WirePower))
	}
	if dc.Supports(mediaFeatVolume) {
		props = append(props, withRange(find(table, WireVolume), 0, wirePercentMax, 1))
	}
	if dc.Supports(mediaFeatNext) {
		props = append(props, find(table, wireKeyPrefix+KeyNext))
	}
	if dc.Supports(mediaFeatPrevious) {
		props = append(props, find(table, wireKeyPrefix+KeyPrevious))
	}

	if dc.Brand == BrandWebOSTV {
		for _, key := range lgFixedKeys {
			props = append(props, find(table, wireKeyPrefix+key))
		}
		return props
	}

	if dc.Supports(mediaFeatPlay) {
		props = append(props, find(table, wireKeyPrefix+KeyPlay))
	}
	if dc.Supports(mediaFeatPause) {
		props = append(props, find(table, wireKeyPrefix+KeyPause))
	}
	if dc.Supports(mediaFeatStop) {
		props = append(props, find(table, wireKeyPrefix+KeyStop))
	}
	return props
}

func (mediaConverter) Calibrate(attrs map[string]any, newState, oldState string, flush bool) {
	calibratePower(attrs, newState, oldState, flush)
}
