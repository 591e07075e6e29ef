package attribute

// Cover wire property names.
const (
	WireWindowCovering = "vivo_std_window_covering"
	WireWindowOpen     = "vivo_std_window_open"
	WireWindowClose    = "vivo_std_window_close"
	WireWindowPause    = "vivo_std_window_pause"
)

// DeviceClassCurtain is the only cover device class that is bridged.
const DeviceClassCurtain = "curtain"

const (
	hostPosition        = "position"
	hostCurrentPosition = "current_position"
)

// Cover supported_features bits.
const (
	coverFeatOpen     = 1
	coverFeatClose    = 2
	coverFeatPosition = 4
	coverFeatStop     = 8
)

type coverConverter struct{}

// coverCommand builds a converter for a parameterless cover command. Any
// wire value triggers it.
func coverCommand(service string) WireToHostFunc {
	return func(dc DeviceContext, _ any) (*ServiceCall, bool) {
		return newCall(PlatformCover, service, dc.EntityID), true
	}
}

var coverTable = []PropertyDescriptor{
	{
		WireName:   WireWindowCovering,
		HostName:   hostCurrentPosition,
		HostToWire: passNumber,
		WireToHost: func(dc DeviceContext, v any) (*ServiceCall, bool) {
			f, ok := toFloat(v)
			if !ok {
				return nil, false
			}
			return newCall(PlatformCover, "set_cover_position", dc.EntityID).
				with(hostPosition, clampInt(roundInt(f), 0, wirePercentMax)), true
		},
	},
	{WireName: WireWindowOpen, HostName: "open", WireToHost: coverCommand("open_cover")},
	{WireName: WireWindowClose, HostName: "close", WireToHost: coverCommand("close_cover")},
	{WireName: WireWindowPause, HostName: "stop", WireToHost: coverCommand("stop_cover")},
}

func (coverConverter) Category() DeviceCategory { return CategoryCover }

func (coverConverter) Properties(DeviceContext) []PropertyDescriptor { return coverTable }

// Model returns nothing for covers that are not curtains.
func (coverConverter) Model(dc DeviceContext) []PropertyDescriptor {
	if dc.DeviceClass() != DeviceClassCurtain {
		return nil
	}
	var props []PropertyDescriptor
	if dc.Supports(coverFeatOpen) {
		props = append(props, find(coverTable, WireWindowOpen))
	}
	if dc.Supports(coverFeatClose) {
		props = append(props, find(coverTable, WireWindowClose))
	}
	if dc.Supports(coverFeatPosition) {
		props = append(props, withRange(find(coverTable, WireWindowCovering), 0, wirePercentMax, 1))
	}
	if dc.Supports(coverFeatStop) {
		props = append(props, find(coverTable, WireWindowPause))
	}
	return props
}

func (coverConverter) Calibrate(map[string]any, string, string, bool) {}
