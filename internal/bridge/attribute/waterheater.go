package attribute

// WireWaterTemperature is the measured tank temperature.
const WireWaterTemperature = "vivo_std_water_temperature"

const (
	hostOperationMode = "operation_mode"
	hostOperationList = "operation_list"
)

// Water heater supported_features bits.
const (
	waterFeatTargetTmp = 1
	waterFeatOperation = 2
	waterFeatOnOff     = 8
)

// Water heater defaults when the entity does not report limits (°C).
const (
	defaultWaterMinTemp = 30
	defaultWaterMaxTemp = 75
)

var waterHeaterModeTable = enumTable{
	{host: "eco", wire: "eco"},
	{host: "electric", wire: "electric"},
	{host: "performance", wire: "performance"},
	{host: "high_demand", wire: "high_demand"},
	{host: "heat_pump", wire: "heat_pump"},
	{host: "gas", wire: "gas"},
}

type waterHeaterConverter struct{}

var waterHeaterTable = []PropertyDescriptor{
	{
		WireName:   WirePower,
		HostName:   HostPower,
		HostToWire: onOffToWire,
		WireToHost: onOffToHost(PlatformWaterHeater),
	},
	{
		WireName:   WireMode,
		HostName:   hostOperationMode,
		HostToWire: enumToWire(waterHeaterModeTable),
		WireToHost: enumToHost(waterHeaterModeTable, PlatformWaterHeater, "set_operation_mode", hostOperationMode),
	},
	{
		WireName:   WireTemperature,
		HostName:   hostTemperature,
		HostToWire: celsiusToWire,
		WireToHost: setTemperature(PlatformWaterHeater),
	},
	{
		WireName:   WireWaterTemperature,
		HostName:   hostCurrentTemperature,
		HostToWire: celsiusToWire,
	},
}

func (waterHeaterConverter) Category() DeviceCategory { return CategoryWaterHeater }

func (waterHeaterConverter) Properties(DeviceContext) []PropertyDescriptor { return waterHeaterTable }

func (waterHeaterConverter) Model(dc DeviceContext) []PropertyDescriptor {
	var props []PropertyDescriptor
	if dc.Supports(waterFeatOnOff) {
		props = append(props, find(waterHeaterTable, WirePower))
	}
	if dc.Supports(waterFeatOperation) {
		if modes := waterHeaterModeTable.wireValues(dc.stringList(hostOperationList), StateOff); len(modes) > 0 {
			props = append(props, withValues(find(waterHeaterTable, WireMode), modes))
		}
	}
	if dc.Supports(waterFeatTargetTmp) {
		lo, hi := temperatureRange(dc, hostMinTemp, hostMaxTemp, defaultWaterMinTemp, defaultWaterMaxTemp)
		props = append(props, withRange(find(waterHeaterTable, WireTemperature), lo, hi, 1))
	}
	if dc.Attr(hostCurrentTemperature) != nil {
		props = append(props, find(waterHeaterTable, WireWaterTemperature))
	}
	return props
}

func (waterHeaterConverter) Calibrate(attrs map[string]any, newState, oldState string, flush bool) {
	calibratePower(attrs, newState, oldState, flush)
}
