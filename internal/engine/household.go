package engine

import (
	"fmt"
	"maps"
	"math"
	"time"
)

// TariffMode selects the billing structure a household is on
type TariffMode string

const (
	TariffFlat TariffMode = "non_tou"
	TariffTOU  TariffMode = "tou"
)

// SolarMode selects how solar capacity is chosen
type SolarMode string

const (
	SolarManual  SolarMode = "manual"
	SolarAdvisor SolarMode = "advisor"
)

// Profile describes the occupants and the dwelling
type Profile struct {
	DisplayName string `json:"displayName,omitempty"`
	// small, medium or large
	HouseSize string `json:"houseSize"`
	Residents Number `json:"residents"`
	// condo or anything else
	HouseType string `json:"houseType"`
	// kid, adult or family
	PlayerType string `json:"playerType"`
}

// SizeFactor scales consumption by dwelling size
func (p Profile) SizeFactor() float64 {
	switch p.HouseSize {
	case "small":
		return 0.9
	case "large":
		return 1.15
	default:
		return 1.0
	}
}

// ResidentCount is the resident count, defaulting to 3 and floored at 1
func (p Profile) ResidentCount() int {
	return max(1, int(math.Trunc(p.Residents.Or(3))))
}

// ResidentFactor scales consumption with diminishing returns per resident
func (p Profile) ResidentFactor() float64 {
	return 0.85 + math.Min(0.6, float64(p.ResidentCount()-1)*0.08)
}

// IsCondo reports whether the dwelling is a condominium
func (p Profile) IsCondo() bool {
	return p.HouseType == "" || p.HouseType == "condo"
}

// LegacyEV is the whole-house EV charging block that predates room-based EV
// chargers.
type LegacyEV struct {
	BatteryKWh      Number `json:"batteryKwh"`
	ChargerKW       Number `json:"chargerKw"`
	Efficiency      Number `json:"efficiency"`
	SOCFrom         Number `json:"socFrom"`
	SOCTo           Number `json:"socTo"`
	ChargesPerWeek  Number `json:"chargesPerWeek"`
	ChargeStartHour Number `json:"chargeStartHour"`
	// accepted and stored for older clients; the charge window always runs
	// from ChargeStartHour for the computed charging duration
	ChargeEndHour Number `json:"chargeEndHour"`
}

// Charger converts the legacy block into a charger configuration. The legacy
// block historically modelled one charge per day.
func (ev LegacyEV) Charger() EVChargerConfig {
	return EVChargerConfig{
		ID:             "ev",
		On:             true,
		BatteryKWh:     ev.BatteryKWh.Or(60),
		ChargerKW:      ev.ChargerKW.Or(7.4),
		Efficiency:     clamp(ev.Efficiency.Or(0.9), 0.5, 1.0),
		SOCFrom:        clamp(ev.SOCFrom.Or(30), 0, 100),
		SOCTo:          clamp(ev.SOCTo.Or(80), 0, 100),
		ChargesPerWeek: clamp(ev.ChargesPerWeek.Or(7), 0, 14),
		StartHour:      normalizeHour(ev.ChargeStartHour.Or(22)),
	}
}

// Room is one room instance of the house layout
type Room struct {
	ID         string                     `json:"id"`
	Type       RoomType                   `json:"type"`
	Label      string                     `json:"label"`
	Appliances map[string]ApplianceFields `json:"appliances"`
	Configured bool                       `json:"configured"`
}

// Configure replaces the room's appliance configs. A room becomes configured
// once at least one non-empty config has been saved.
func (r *Room) Configure(appliances map[string]ApplianceFields) {
	r.Appliances = make(map[string]ApplianceFields, len(appliances))
	for k, v := range appliances {
		r.Appliances[k] = maps.Clone(v)
		if len(v) > 0 {
			r.Configured = true
		}
	}
}

// State is the mutable household configuration
type State struct {
	TariffMode TariffMode                 `json:"tariffMode"`
	SolarKW    Number                     `json:"solarKw"`
	SolarMode  SolarMode                  `json:"solarMode"`
	EVEnabled  bool                       `json:"evEnabled"`
	EV         LegacyEV                   `json:"ev"`
	Appliances map[string]ApplianceFields `json:"appliances"`
	Rooms      map[string]*Room           `json:"rooms,omitempty"`
}

// UsesRooms reports whether the room layout is authoritative
func (s State) UsesRooms() bool {
	return len(s.Rooms) > 0
}

// Input is a household snapshot handed to the estimator
type Input struct {
	Profile Profile `json:"profile"`
	State   State   `json:"state"`
}

// Household is a persisted household
type Household struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Profile   Profile   `json:"profile"`
	State     State     `json:"state"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Input returns the estimator input for the household
func (h *Household) Input() *Input {
	return &Input{Profile: h.Profile, State: h.State}
}

// DefaultProfile returns the profile of a new household
func DefaultProfile() Profile {
	return Profile{
		HouseSize:  "medium",
		Residents:  N(3),
		HouseType:  "condo",
		PlayerType: "family",
	}
}

// DefaultState returns the state of a new household: flat tariff, no solar,
// whole-house appliances at catalog defaults.
func DefaultState() State {
	appliances := make(map[string]ApplianceFields)
	for _, d := range catalog {
		if d.Category == CategoryEVCharger {
			continue
		}
		appliances[d.Key] = maps.Clone(d.Defaults)
	}
	return State{
		TariffMode: TariffFlat,
		SolarKW:    N(0),
		SolarMode:  SolarManual,
		EV: LegacyEV{
			BatteryKWh:      N(60),
			ChargerKW:       N(7.4),
			SOCFrom:         N(30),
			SOCTo:           N(80),
			ChargeStartHour: N(22),
			ChargeEndHour:   N(6),
		},
		Appliances: appliances,
	}
}

// BuildLayout creates rooms from a room-type count map. Room ids are
// {type}_{index} with 1-based indexes; each room starts with its type's
// default appliances. Unknown room types and non-positive counts are skipped.
func BuildLayout(counts map[RoomType]int) map[string]*Room {
	rooms := make(map[string]*Room)
	for _, t := range RoomTypes {
		n := counts[t]
		for i := 1; i <= n; i++ {
			r := &Room{
				ID:         fmt.Sprintf("%s_%d", t, i),
				Type:       t,
				Label:      fmt.Sprintf("%s %d", roomLabels[t], i),
				Appliances: make(map[string]ApplianceFields),
			}
			for _, key := range roomDefaults[t] {
				def, _ := Lookup(key)
				r.Appliances[key] = maps.Clone(def.Defaults)
			}
			rooms[r.ID] = r
		}
	}
	return rooms
}
