package attribute

// DeviceClassOutlet marks a switch that is a socket rather than a wall switch.
const DeviceClassOutlet = "outlet"

type switchConverter struct{}

var switchTable = []PropertyDescriptor{
	{
		WireName:   WirePower,
		HostName:   HostPower,
		HostToWire: onOffToWire,
		WireToHost: onOffToHost(PlatformSwitch),
	},
}

func (switchConverter) Category() DeviceCategory { return CategorySwitch }

func (switchConverter) Properties(DeviceContext) []PropertyDescriptor { return switchTable }

func (switchConverter) Model(DeviceContext) []PropertyDescriptor { return switchTable }

func (switchConverter) Calibrate(attrs map[string]any, newState, oldState string, flush bool) {
	calibratePower(attrs, newState, oldState, flush)
}
