package engine

import (
	"maps"
	"sort"
	"strconv"
	"strings"
)

// Category selects the energy formula applied to an appliance
type Category string

const (
	CategoryAC        Category = "ac"
	CategoryLights    Category = "lights"
	CategoryFridge    Category = "fridge"
	CategoryGeneric   Category = "generic"
	CategoryEVCharger Category = "ev_charger"
)

// ApplianceDefinition is a static catalog entry
type ApplianceDefinition struct {
	Key      string          `json:"key"`
	Name     string          `json:"name"`
	Category Category        `json:"category"`
	Defaults ApplianceFields `json:"defaults"`
}

// RoomType enumerates the rooms the layout builder knows about
type RoomType string

const (
	RoomBedroom  RoomType = "bedroom"
	RoomLiving   RoomType = "living"
	RoomKitchen  RoomType = "kitchen"
	RoomBathroom RoomType = "bathroom"
	RoomWork     RoomType = "work"
	RoomParking  RoomType = "parking"
)

// RoomTypes lists room types in display order
var RoomTypes = []RoomType{RoomBedroom, RoomLiving, RoomKitchen, RoomBathroom, RoomWork, RoomParking}

var catalog = []ApplianceDefinition{
	{
		Key: "ac", Name: "Air conditioner", Category: CategoryAC,
		Defaults: ApplianceFields{"enabled": true, "btu": 12000.0, "setTempC": 26.0, "hours": 6.0, "inverter": true, "startHour": 20.0, "endHour": 2.0},
	},
	{
		Key: "lights", Name: "Lighting", Category: CategoryLights,
		Defaults: ApplianceFields{"enabled": true, "mode": "LED", "watts": 30.0, "hours": 5.0},
	},
	{
		Key: "tv", Name: "Television", Category: CategoryGeneric,
		Defaults: ApplianceFields{"enabled": true, "watts": 120.0, "hours": 3.0},
	},
	{
		Key: "fridge", Name: "Refrigerator", Category: CategoryFridge,
		Defaults: ApplianceFields{"enabled": true, "kwhPerDay": 1.2},
	},
	{
		Key: "water_heater", Name: "Water heater", Category: CategoryGeneric,
		Defaults: ApplianceFields{"enabled": false, "watts": 3500.0, "hours": 0.3},
	},
	{
		Key: "washer", Name: "Washing machine", Category: CategoryGeneric,
		Defaults: ApplianceFields{"enabled": false, "watts": 500.0, "hours": 0.5},
	},
	{
		Key: "microwave", Name: "Microwave", Category: CategoryGeneric,
		Defaults: ApplianceFields{"enabled": false, "watts": 1200.0, "hours": 0.1},
	},
	{
		Key: "computer", Name: "Computer", Category: CategoryGeneric,
		Defaults: ApplianceFields{"enabled": false, "watts": 200.0, "hours": 2.0},
	},
	{
		Key: "standby", Name: "Standby load", Category: CategoryGeneric,
		Defaults: ApplianceFields{"enabled": true, "watts": 20.0, "hours": 24.0},
	},
	{
		Key: "ev_charger", Name: "EV charger", Category: CategoryEVCharger,
		Defaults: ApplianceFields{
			"enabled": true, "batteryKwh": 60.0, "chargerKw": 7.4, "efficiency": 0.9,
			"socFrom": 30.0, "socTo": 80.0, "chargesPerWeek": 2.0, "startHour": 22.0,
		},
	},
}

var catalogByKey = func() map[string]ApplianceDefinition {
	m := make(map[string]ApplianceDefinition, len(catalog))
	for _, d := range catalog {
		m[d.Key] = d
	}
	return m
}()

// roomDefaults is the appliance set a freshly built room starts with
var roomDefaults = map[RoomType][]string{
	RoomBedroom:  {"ac", "lights"},
	RoomLiving:   {"ac", "lights", "tv"},
	RoomKitchen:  {"fridge", "lights", "microwave"},
	RoomBathroom: {"lights", "water_heater"},
	RoomWork:     {"computer", "lights"},
	RoomParking:  {"ev_charger", "lights"},
}

var roomLabels = map[RoomType]string{
	RoomBedroom:  "Bedroom",
	RoomLiving:   "Living room",
	RoomKitchen:  "Kitchen",
	RoomBathroom: "Bathroom",
	RoomWork:     "Work room",
	RoomParking:  "Parking",
}

// Catalog returns a copy of the appliance catalog
func Catalog() []ApplianceDefinition {
	out := make([]ApplianceDefinition, len(catalog))
	for i, d := range catalog {
		d.Defaults = maps.Clone(d.Defaults)
		out[i] = d
	}
	return out
}

// Lookup resolves an appliance key to its definition. Keys carrying a numeric
// suffix ("ac_2") resolve to their base entry. Unknown keys get a generic
// definition with no defaults, so they only draw power when watts and hours are
// both given.
func Lookup(key string) (ApplianceDefinition, bool) {
	if d, ok := catalogByKey[key]; ok {
		return d, true
	}
	if i := strings.LastIndexByte(key, '_'); i > 0 {
		if _, err := strconv.Atoi(key[i+1:]); err == nil {
			if d, ok := catalogByKey[key[:i]]; ok {
				return d, true
			}
		}
	}
	return ApplianceDefinition{
		Key:      key,
		Name:     key,
		Category: CategoryGeneric,
		Defaults: ApplianceFields{"enabled": true, "watts": 0.0, "hours": 0.0},
	}, false
}

// RoomDefaultAppliances returns the default appliance keys for a room type
func RoomDefaultAppliances(t RoomType) []string {
	return append([]string(nil), roomDefaults[t]...)
}

// ValidRoomType reports whether t is a known room type
func ValidRoomType(t RoomType) bool {
	_, ok := roomDefaults[t]
	return ok
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
