package attribute

import (
	"reflect"
	"testing"
)

func climateContext(swingMode string) DeviceContext {
	return DeviceContext{
		EntityID: "climate.bedroom",
		Platform: PlatformClimate,
		State:    "cool",
		Attributes: map[string]any{
			"supported_features": float64(1 | 4 | 8 | 32),
			"hvac_modes":         []any{"off", "cool", "heat", "fan_only"},
			"fan_modes":          []any{"low", "medium", "high", "silent"},
			"swing_modes":        []any{"off", "vertical", "horizontal", "both"},
			"swing_mode":         swingMode,
			"min_temp":           float64(7),
			"max_temp":           float64(35),
			"target_temp_step":   0.5,
		},
	}
}

func TestComposeSwing(t *testing.T) {
	tests := []struct {
		name    string
		current string
		axis    string
		on      bool
		want    string
	}{
		{"both, vertical off keeps horizontal", SwingBoth, SwingVertical, false, SwingHorizontal},
		{"off, horizontal on", SwingOff, SwingHorizontal, true, SwingHorizontal},
		{"horizontal, vertical on gives both", SwingHorizontal, SwingVertical, true, SwingBoth},
		{"vertical, vertical off", SwingVertical, SwingVertical, false, SwingOff},
		{"both, horizontal off keeps vertical", SwingBoth, SwingHorizontal, false, SwingVertical},
		{"vertical, horizontal on gives both", SwingVertical, SwingHorizontal, true, SwingBoth},
		{"unknown current, vertical on", "", SwingVertical, true, SwingVertical},
		{"horizontal, horizontal off", SwingHorizontal, SwingHorizontal, false, SwingOff},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ComposeSwing(tt.current, tt.axis, tt.on)
			if !ok {
				t.Fatal("ComposeSwing() ok = false")
			}
			if got != tt.want {
				t.Errorf("ComposeSwing(%q, %q, %v) = %q, want %q", tt.current, tt.axis, tt.on, got, tt.want)
			}
		})
	}

	if _, ok := ComposeSwing(SwingOff, "diagonal", true); ok {
		t.Error("ComposeSwing() with bad axis ok = true, want false")
	}
}

func TestClimate_SwingCommandPreservesOtherAxis(t *testing.T) {
	conv := mustConverter(t, CategoryClimate)
	dc := climateContext(SwingBoth)

	calls := ConvertWireProps(conv, dc, map[string]any{WireSwingVertical: "off"})
	if len(calls) != 1 {
		t.Fatalf("len(calls) = %d, want 1", len(calls))
	}
	want := &ServiceCall{
		Domain:  "climate",
		Service: "set_swing_mode",
		Data:    map[string]any{"entity_id": "climate.bedroom", "swing_mode": "horizontal"},
	}
	if !reflect.DeepEqual(calls[0], want) {
		t.Errorf("call = %+v, want %+v", calls[0], want)
	}
}

func TestClimate_SwingWireNames(t *testing.T) {
	conv := mustConverter(t, CategoryClimate)

	calls := ConvertWireProps(conv, climateContext(SwingBoth), map[string]any{"vivo_std_wind_swing_up_down": "off"})
	if len(calls) != 1 || calls[0].Data["swing_mode"] != SwingHorizontal {
		t.Errorf("up/down off from both = %+v, want set_swing_mode horizontal", calls)
	}

	calls = ConvertWireProps(conv, climateContext(SwingOff), map[string]any{"vivo_std_wind_swing_left_right": "on"})
	if len(calls) != 1 || calls[0].Data["swing_mode"] != SwingHorizontal {
		t.Errorf("left/right on from off = %+v, want set_swing_mode horizontal", calls)
	}

	attrs := map[string]any{"swing_mode": SwingVertical}
	conv.Calibrate(attrs, "cool", "cool", false)
	got := ConvertHostAttributes(conv, climateContext(SwingVertical), attrs)
	if got["vivo_std_wind_swing_up_down"] != "on" || got["vivo_std_wind_swing_left_right"] != "off" {
		t.Errorf("reported swing = %v, want up/down on and left/right off", got)
	}
}

func TestClimate_SwingCommandUnsupportedAxis(t *testing.T) {
	conv := mustConverter(t, CategoryClimate)
	dc := climateContext(SwingVertical)
	dc.Attributes["swing_modes"] = []any{"off", "vertical"}

	if calls := ConvertWireProps(conv, dc, map[string]any{WireSwingHorizontal: "on"}); len(calls) != 0 {
		t.Errorf("calls = %+v, want none for unsupported axis", calls)
	}
	if calls := ConvertWireProps(conv, dc, map[string]any{WireSwingVertical: "off"}); len(calls) != 1 {
		t.Errorf("len(calls) = %d, want 1 for supported axis", len(calls))
	}
}

func TestClimate_CommandOrder(t *testing.T) {
	conv := mustConverter(t, CategoryClimate)
	dc := climateContext(SwingOff)
	props := map[string]any{WirePower: "on", WireMode: "heat", WireTemperature: float64(25)}

	tests := []struct {
		name  string
		order []string
		want  []string
	}{
		{
			name:  "wire order",
			order: []string{WirePower, WireMode, WireTemperature},
			want:  []string{"turn_on", "set_hvac_mode", "set_temperature"},
		},
		{
			name:  "reversed wire order",
			order: []string{WireTemperature, WireMode, WirePower},
			want:  []string{"set_temperature", "set_hvac_mode", "turn_on"},
		},
		{
			name: "unknown order puts power first",
			want: []string{"turn_on", "set_hvac_mode", "set_temperature"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := ConvertWireProps(conv, dc, props, tt.order...)
			got := make([]string, 0, len(calls))
			for _, c := range calls {
				got = append(got, c.Service)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("services = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClimate_SwingReport(t *testing.T) {
	conv := mustConverter(t, CategoryClimate)

	tests := []struct {
		mode           string
		wantVertical   string
		wantHorizontal string
	}{
		{SwingOff, "off", "off"},
		{SwingVertical, "on", "off"},
		{SwingHorizontal, "off", "on"},
		{SwingBoth, "on", "on"},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			dc := climateContext(tt.mode)
			attrs := map[string]any{"swing_mode": tt.mode}
			conv.Calibrate(attrs, "cool", "cool", false)
			got := ConvertHostAttributes(conv, dc, attrs)
			if got[WireSwingVertical] != tt.wantVertical || got[WireSwingHorizontal] != tt.wantHorizontal {
				t.Errorf("swing = %v/%v, want %v/%v",
					got[WireSwingVertical], got[WireSwingHorizontal], tt.wantVertical, tt.wantHorizontal)
			}
		})
	}
}

func TestClimate_SwingNoneMeansOff(t *testing.T) {
	conv := mustConverter(t, CategoryClimate)
	attrs := map[string]any{"swing_mode": nil}
	conv.Calibrate(attrs, "cool", "cool", false)
	got := ConvertHostAttributes(conv, climateContext(SwingOff), attrs)
	if got[WireSwingVertical] != "off" || got[WireSwingHorizontal] != "off" {
		t.Errorf("swing = %v, want both axes off", got)
	}
}

func TestClimate_UnsupportedAxisSkipped(t *testing.T) {
	conv := mustConverter(t, CategoryClimate)
	dc := climateContext(SwingVertical)
	dc.Attributes["swing_modes"] = []any{"off", "vertical"}

	attrs := map[string]any{"swing_mode": SwingVertical}
	conv.Calibrate(attrs, "cool", "cool", false)
	got := ConvertHostAttributes(conv, dc, attrs)
	if _, ok := got[WireSwingHorizontal]; ok {
		t.Errorf("horizontal swing reported for vertical-only device: %v", got)
	}
	if got[WireSwingVertical] != "on" {
		t.Errorf("vertical swing = %v, want on", got[WireSwingVertical])
	}
}

func TestClimate_ModeFromState(t *testing.T) {
	conv := mustConverter(t, CategoryClimate)
	dc := climateContext(SwingOff)

	attrs := map[string]any{}
	conv.Calibrate(attrs, "fan_only", "cool", false)
	got := ConvertHostAttributes(conv, dc, attrs)
	if got[WireMode] != "fan" || got[WirePower] != "on" {
		t.Errorf("got %v, want mode fan and power on", got)
	}

	attrs = map[string]any{}
	conv.Calibrate(attrs, "off", "cool", false)
	got = ConvertHostAttributes(conv, dc, attrs)
	if _, ok := got[WireMode]; ok {
		t.Errorf("mode reported for off state: %v", got)
	}
	if got[WirePower] != "off" {
		t.Errorf("power = %v, want off", got[WirePower])
	}
}

func TestClimate_Temperature(t *testing.T) {
	conv := mustConverter(t, CategoryClimate)

	dc := climateContext(SwingOff)
	dc.Unit = UnitFahrenheit
	got := ConvertHostAttributes(conv, dc, map[string]any{
		"temperature":         float64(77),
		"current_temperature": 71.6,
		"current_humidity":    float64(40.4),
	})
	want := map[string]any{WireTemperature: 25, WireIndoorTemperature: 22, WireIndoorHumidity: 40}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ConvertHostAttributes() = %v, want %v", got, want)
	}

	calls := ConvertWireProps(conv, dc, map[string]any{WireTemperature: float64(25)})
	if len(calls) != 1 || calls[0].Service != "set_temperature" || calls[0].Data["temperature"] != 77 {
		t.Errorf("calls = %+v, want set_temperature 77", calls)
	}
}

func TestClimate_Model(t *testing.T) {
	conv := mustConverter(t, CategoryClimate)
	dc := climateContext(SwingOff)
	dc.Attributes["current_temperature"] = float64(23)

	model := conv.Model(dc)
	wantNames := []string{
		WirePower, WireMode, WireTemperature, WireWindSpeed,
		WireSwingVertical, WireSwingHorizontal, WireIndoorTemperature, WireIndoorHumidity,
	}
	if got := wireNames(model); !reflect.DeepEqual(got, wantNames) {
		t.Fatalf("Model() = %v, want %v", got, wantNames)
	}

	byName := map[string]PropertyDescriptor{}
	for _, pd := range model {
		byName[pd.WireName] = pd
	}
	if got := byName[WireMode].Values; !reflect.DeepEqual(got, []string{"cool", "heat", "fan"}) {
		t.Errorf("mode values = %v, want [cool heat fan]", got)
	}
	if got := byName[WireWindSpeed].Values; !reflect.DeepEqual(got, []string{"low", "middle", "high"}) {
		t.Errorf("wind speed values = %v, want [low middle high]", got)
	}
	if got := byName[WireTemperature].Range; got == nil || *got != (ValueRange{Min: 7, Max: 35, Step: 0.5}) {
		t.Errorf("temperature range = %v, want [7 35 0.5]", got)
	}
	if got := byName[WireIndoorHumidity].Range; got == nil || *got != (ValueRange{Min: 1, Max: 100, Step: 1}) {
		t.Errorf("humidity range = %v, want [1 100 1]", got)
	}
}

func TestClimate_ModelDefaults(t *testing.T) {
	conv := mustConverter(t, CategoryClimate)
	dc := DeviceContext{Attributes: map[string]any{"supported_features": float64(1)}}

	model := conv.Model(dc)
	if got := wireNames(model); !reflect.DeepEqual(got, []string{WirePower, WireTemperature}) {
		t.Fatalf("Model() = %v", got)
	}
	if r := model[1].Range; r == nil || *r != (ValueRange{Min: 16, Max: 32, Step: 1}) {
		t.Errorf("default range = %v, want [16 32 1]", r)
	}
}
