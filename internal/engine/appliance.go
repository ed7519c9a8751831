package engine

import "strings"

// ApplianceFields is the loosely typed per-appliance configuration as stored
// and submitted by clients. It is always merged against catalog defaults
// before use.
type ApplianceFields map[string]any

// fieldAliases maps canonical field names to the older snake_case names still
// found in stored household state.
var fieldAliases = map[string][]string{
	"setTempC":       {"set_temp", "setTemp"},
	"startHour":      {"start_hour", "charge_start_hour"},
	"endHour":        {"end_hour", "charge_end_hour"},
	"kwhPerDay":      {"kwh_per_day"},
	"batteryKwh":     {"battery_kwh"},
	"chargerKw":      {"charger_kw"},
	"socFrom":        {"soc_from"},
	"socTo":          {"soc_to"},
	"chargesPerWeek": {"charges_per_week"},
}

func (f ApplianceFields) lookup(name string) (any, bool) {
	if v, ok := f[name]; ok && v != nil {
		return v, true
	}
	for _, alias := range fieldAliases[name] {
		if v, ok := f[alias]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// merged layers user fields over defaults, coercing each field on access.
type merged struct {
	user     ApplianceFields
	defaults ApplianceFields
}

func (m merged) float(name string) float64 {
	if v, ok := m.user.lookup(name); ok {
		if f, ok := toFloat(v); ok {
			return f
		}
	}
	if v, ok := m.defaults.lookup(name); ok {
		if f, ok := toFloat(v); ok {
			return f
		}
	}
	return 0
}

func (m merged) bool(name string) bool {
	if v, ok := m.user.lookup(name); ok {
		if b, ok := toBool(v); ok {
			return b
		}
	}
	if v, ok := m.defaults.lookup(name); ok {
		if b, ok := toBool(v); ok {
			return b
		}
	}
	return false
}

func (m merged) string(name string) string {
	if v, ok := m.user.lookup(name); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	if v, ok := m.defaults.lookup(name); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Appliance is a fully resolved appliance configuration
type Appliance interface {
	Key() string
	Category() Category
	Enabled() bool
	// DailyKWh is the unscaled daily energy draw; zero when disabled.
	DailyKWh() float64
}

// ACConfig configures an air conditioner
type ACConfig struct {
	ID        string  `json:"key"`
	On        bool    `json:"enabled"`
	BTU       float64 `json:"btu"`
	SetTempC  float64 `json:"setTempC"`
	Hours     float64 `json:"hours"`
	Inverter  bool    `json:"inverter"`
	StartHour int     `json:"startHour"`
	EndHour   int     `json:"endHour"`
}

// LightsConfig configures lighting
type LightsConfig struct {
	ID    string  `json:"key"`
	On    bool    `json:"enabled"`
	Mode  string  `json:"mode"`
	Watts float64 `json:"watts"`
	Hours float64 `json:"hours"`
}

// FridgeConfig configures an always-on refrigerator
type FridgeConfig struct {
	ID        string  `json:"key"`
	On        bool    `json:"enabled"`
	KWhPerDay float64 `json:"kwhPerDay"`
}

// GenericConfig configures a fixed-wattage load
type GenericConfig struct {
	ID    string  `json:"key"`
	On    bool    `json:"enabled"`
	Watts float64 `json:"watts"`
	Hours float64 `json:"hours"`
}

// EVChargerConfig configures home EV charging
type EVChargerConfig struct {
	ID             string  `json:"key"`
	On             bool    `json:"enabled"`
	BatteryKWh     float64 `json:"batteryKwh"`
	ChargerKW      float64 `json:"chargerKw"`
	Efficiency     float64 `json:"efficiency"`
	SOCFrom        float64 `json:"socFrom"`
	SOCTo          float64 `json:"socTo"`
	ChargesPerWeek float64 `json:"chargesPerWeek"`
	StartHour      int     `json:"startHour"`
}

func (c ACConfig) Key() string        { return c.ID }
func (c ACConfig) Category() Category { return CategoryAC }
func (c ACConfig) Enabled() bool      { return c.On }
func (c ACConfig) DailyKWh() float64 {
	if !c.On {
		return 0
	}
	return ACKWh(c.BTU, c.SetTempC, c.Hours, c.Inverter)
}

func (c LightsConfig) Key() string        { return c.ID }
func (c LightsConfig) Category() Category { return CategoryLights }
func (c LightsConfig) Enabled() bool      { return c.On }
func (c LightsConfig) DailyKWh() float64 {
	if !c.On {
		return 0
	}
	return GenericKWh(c.Watts, c.Hours)
}

// LED reports whether the lighting mode is LED
func (c LightsConfig) LED() bool {
	return strings.EqualFold(c.Mode, "LED")
}

func (c FridgeConfig) Key() string        { return c.ID }
func (c FridgeConfig) Category() Category { return CategoryFridge }
func (c FridgeConfig) Enabled() bool      { return c.On }
func (c FridgeConfig) DailyKWh() float64 {
	if !c.On || c.KWhPerDay <= 0 {
		return 0
	}
	return c.KWhPerDay
}

func (c GenericConfig) Key() string        { return c.ID }
func (c GenericConfig) Category() Category { return CategoryGeneric }
func (c GenericConfig) Enabled() bool      { return c.On }
func (c GenericConfig) DailyKWh() float64 {
	if !c.On {
		return 0
	}
	return GenericKWh(c.Watts, c.Hours)
}

func (c EVChargerConfig) Key() string        { return c.ID }
func (c EVChargerConfig) Category() Category { return CategoryEVCharger }
func (c EVChargerConfig) Enabled() bool      { return c.On }
func (c EVChargerConfig) DailyKWh() float64 {
	if !c.On {
		return 0
	}
	return c.PerChargeKWh() * c.ChargesPerWeek / 7
}

// PerChargeKWh is the grid energy drawn by a single charging session
func (c EVChargerConfig) PerChargeKWh() float64 {
	if !c.On {
		return 0
	}
	return EVChargeKWh(c.BatteryKWh, c.SOCFrom, c.SOCTo, c.Efficiency)
}

// ValidRange reports whether the target state of charge is above the start
func (c EVChargerConfig) ValidRange() bool {
	return c.SOCTo > c.SOCFrom
}

// ChargingHours is the whole-hour charging duration of one session
func (c EVChargerConfig) ChargingHours() int {
	return EVChargingHours(c.PerChargeKWh(), c.ChargerKW)
}

// ResolveAppliance merges user fields for key against the catalog defaults and
// returns the typed configuration.
func ResolveAppliance(key string, fields ApplianceFields) Appliance {
	def, _ := Lookup(key)
	m := merged{user: fields, defaults: def.Defaults}
	switch def.Category {
	case CategoryAC:
		return ACConfig{
			ID:        key,
			On:        m.bool("enabled"),
			BTU:       m.float("btu"),
			SetTempC:  m.float("setTempC"),
			Hours:     m.float("hours"),
			Inverter:  m.bool("inverter"),
			StartHour: normalizeHour(m.float("startHour")),
			EndHour:   normalizeHour(m.float("endHour")),
		}
	case CategoryLights:
		return LightsConfig{
			ID:    key,
			On:    m.bool("enabled"),
			Mode:  m.string("mode"),
			Watts: m.float("watts"),
			Hours: m.float("hours"),
		}
	case CategoryFridge:
		return FridgeConfig{
			ID:        key,
			On:        m.bool("enabled"),
			KWhPerDay: m.float("kwhPerDay"),
		}
	case CategoryEVCharger:
		return resolveEV(key, m)
	default:
		return GenericConfig{
			ID:    key,
			On:    m.bool("enabled"),
			Watts: m.float("watts"),
			Hours: m.float("hours"),
		}
	}
}

func resolveEV(key string, m merged) EVChargerConfig {
	return EVChargerConfig{
		ID:             key,
		On:             m.bool("enabled"),
		BatteryKWh:     m.float("batteryKwh"),
		ChargerKW:      m.float("chargerKw"),
		Efficiency:     clamp(m.float("efficiency"), 0.5, 1.0),
		SOCFrom:        clamp(m.float("socFrom"), 0, 100),
		SOCTo:          clamp(m.float("socTo"), 0, 100),
		ChargesPerWeek: clamp(m.float("chargesPerWeek"), 0, 14),
		StartHour:      normalizeHour(m.float("startHour")),
	}
}
