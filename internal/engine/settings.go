package engine

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

var (
	ErrNilInput      = errors.New("nil household input")
	ErrInvalidTariff = errors.New("invalid tariff settings")
)

// Setting keys as stored in the settings table
const (
	KeyOnPeakStart    = "on_peak_start"
	KeyOnPeakEnd      = "on_peak_end"
	KeyTier1KWh       = "non_tou_tier1_kwh"
	KeyTier2KWh       = "non_tou_tier2_kwh"
	KeyRate1          = "non_tou_rate1"
	KeyRate2          = "non_tou_rate2"
	KeyRate3          = "non_tou_rate3"
	KeyFlatServiceFee = "non_tou_service_fee"
	KeyTOUOnRate      = "tou_on_rate_real"
	KeyTOUOffRate     = "tou_off_rate_real"
	KeyTOUServiceFee  = "tou_service_fee"
	KeyFtRate         = "ft_rate"
	KeyVATRate        = "vat_rate"
)

// ft_rate is stored in minor currency units per kWh
const ftMinorUnitsPerUnit = 100

// SettingKeys lists every tariff setting key
var SettingKeys = []string{
	KeyOnPeakStart, KeyOnPeakEnd,
	KeyTier1KWh, KeyTier2KWh, KeyRate1, KeyRate2, KeyRate3, KeyFlatServiceFee,
	KeyTOUOnRate, KeyTOUOffRate, KeyTOUServiceFee,
	KeyFtRate, KeyVATRate,
}

// TariffSettings is the tariff schedule for one calculation. Rates and fees
// are in currency units (baht) per kWh or per month.
type TariffSettings struct {
	OnPeak         Window  `json:"on_peak"`
	Tier1KWh       float64 `json:"tier1_kwh"`
	Tier2KWh       float64 `json:"tier2_kwh"`
	Rate1          float64 `json:"rate1"`
	Rate2          float64 `json:"rate2"`
	Rate3          float64 `json:"rate3"`
	FlatServiceFee float64 `json:"flat_service_fee"`
	TOUOnRate      float64 `json:"tou_on_rate"`
	TOUOffRate     float64 `json:"tou_off_rate"`
	TOUServiceFee  float64 `json:"tou_service_fee"`
	FtPerKWh       float64 `json:"ft_per_kwh"`
	VATRate        float64 `json:"vat_rate"`
}

// DefaultTariffSettings returns the residential schedule seeded on first run
func DefaultTariffSettings() TariffSettings {
	return TariffSettings{
		OnPeak:         Window{Start: 9, End: 22},
		Tier1KWh:       150,
		Tier2KWh:       400,
		Rate1:          3.2484,
		Rate2:          4.2218,
		Rate3:          4.4217,
		FlatServiceFee: 24.62,
		TOUOnRate:      5.7982,
		TOUOffRate:     2.6369,
		TOUServiceFee:  24.62,
		FtPerKWh:       0.3972,
		VATRate:        0.07,
	}
}

// TariffSettingsFromMap reads settings from their stored string form.
// Missing or malformed values keep their defaults; ft_rate is stored in minor
// units (satang) per kWh.
func TariffSettingsFromMap(m map[string]string) TariffSettings {
	t := DefaultTariffSettings()
	t.Apply(m)
	return t
}

// Apply overlays stored string values onto t, ignoring malformed entries
func (t *TariffSettings) Apply(m map[string]string) {
	parse := func(key string) (float64, bool) {
		v, ok := m[key]
		if !ok {
			return 0, false
		}
		return toFloat(v)
	}
	num := func(key string, dst *float64) {
		if f, ok := parse(key); ok {
			*dst = f
		}
	}
	hour := func(key string, dst *int) {
		if f, ok := parse(key); ok {
			*dst = normalizeHour(f)
		}
	}

	hour(KeyOnPeakStart, &t.OnPeak.Start)
	hour(KeyOnPeakEnd, &t.OnPeak.End)
	num(KeyTier1KWh, &t.Tier1KWh)
	num(KeyTier2KWh, &t.Tier2KWh)
	num(KeyRate1, &t.Rate1)
	num(KeyRate2, &t.Rate2)
	num(KeyRate3, &t.Rate3)
	num(KeyFlatServiceFee, &t.FlatServiceFee)
	num(KeyTOUOnRate, &t.TOUOnRate)
	num(KeyTOUOffRate, &t.TOUOffRate)
	num(KeyTOUServiceFee, &t.TOUServiceFee)
	num(KeyVATRate, &t.VATRate)

	if ft, ok := parse(KeyFtRate); ok {
		t.FtPerKWh = roundPlaces(ft/ftMinorUnitsPerUnit, 8)
	}
}

// Map returns the stored string form of t
func (t TariffSettings) Map() map[string]string {
	f := func(v float64) string {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return map[string]string{
		KeyOnPeakStart:    strconv.Itoa(t.OnPeak.Start),
		KeyOnPeakEnd:      strconv.Itoa(t.OnPeak.End),
		KeyTier1KWh:       f(t.Tier1KWh),
		KeyTier2KWh:       f(t.Tier2KWh),
		KeyRate1:          f(t.Rate1),
		KeyRate2:          f(t.Rate2),
		KeyRate3:          f(t.Rate3),
		KeyFlatServiceFee: f(t.FlatServiceFee),
		KeyTOUOnRate:      f(t.TOUOnRate),
		KeyTOUOffRate:     f(t.TOUOffRate),
		KeyTOUServiceFee:  f(t.TOUServiceFee),
		KeyFtRate:         f(roundPlaces(t.FtPerKWh*ftMinorUnitsPerUnit, 6)),
		KeyVATRate:        f(t.VATRate),
	}
}

// roundPlaces removes the binary noise the minor unit conversion adds
func roundPlaces(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// Validate checks the schedule invariants
func (t TariffSettings) Validate() error {
	var problems []string
	// tier1 may be 0, which prices everything from the second band
	if t.Tier1KWh < 0 || t.Tier1KWh >= t.Tier2KWh {
		problems = append(problems, fmt.Sprintf("tiers must satisfy 0 <= tier1 < tier2 (got %g, %g)", t.Tier1KWh, t.Tier2KWh))
	}
	for name, rate := range map[string]float64{
		KeyRate1: t.Rate1, KeyRate2: t.Rate2, KeyRate3: t.Rate3,
		KeyTOUOnRate: t.TOUOnRate, KeyTOUOffRate: t.TOUOffRate,
	} {
		if rate <= 0 {
			problems = append(problems, fmt.Sprintf("%s must be positive", name))
		}
	}
	if t.FlatServiceFee < 0 || t.TOUServiceFee < 0 {
		problems = append(problems, "service fees must not be negative")
	}
	if t.FtPerKWh < 0 {
		problems = append(problems, "ft_rate must not be negative")
	}
	if t.VATRate < 0 || t.VATRate >= 1 {
		problems = append(problems, "vat_rate must be in [0,1)")
	}
	if len(problems) > 0 {
		sort.Strings(problems)
		return fmt.Errorf("%w: %s", ErrInvalidTariff, strings.Join(problems, "; "))
	}
	return nil
}

// Heuristics holds the tunable constants of the estimator
type Heuristics struct {
	// kWh produced per installed kW per day
	SolarYieldKWhPerKW float64 `mapstructure:"solar_yield_kwh_per_kw" json:"solar_yield_kwh_per_kw"`
	// share of solar production consumed on site
	SolarSelfConsumption float64 `mapstructure:"solar_self_consumption" json:"solar_self_consumption"`
	// daytime kWh one installed kW offsets, used by the advisor
	AdvisorKWhPerKW float64 `mapstructure:"advisor_kwh_per_kw" json:"advisor_kwh_per_kw"`
	AdvisorMaxKW    float64 `mapstructure:"advisor_max_kw" json:"advisor_max_kw"`
	// on-peak share of load without explicit hours; nil means default and 0
	// is a valid setting
	CondoOnPeakShare *float64 `mapstructure:"condo_on_peak_share" json:"condo_on_peak_share"`
	HouseOnPeakShare *float64 `mapstructure:"house_on_peak_share" json:"house_on_peak_share"`
	DaysPerMonth     float64  `mapstructure:"days_per_month" json:"days_per_month"`
	WeeksPerMonth    float64  `mapstructure:"weeks_per_month" json:"weeks_per_month"`
	// scaled daily kWh below which usage earns points
	BaselineKWhPerDay float64 `mapstructure:"baseline_kwh_per_day" json:"baseline_kwh_per_day"`
	MaxMessages       int     `mapstructure:"max_messages" json:"max_messages"`
}

// DefaultHeuristics returns the stock estimator constants
func DefaultHeuristics() Heuristics {
	return Heuristics{
		SolarYieldKWhPerKW:   4.0,
		SolarSelfConsumption: 0.75,
		AdvisorKWhPerKW:      3.0,
		AdvisorMaxKW:         10,
		CondoOnPeakShare:     Share(0.65),
		HouseOnPeakShare:     Share(0.58),
		DaysPerMonth:         30,
		WeeksPerMonth:        52.0 / 12.0,
		BaselineKWhPerDay:    14.0,
		MaxMessages:          5,
	}
}

// Share returns a pointer to an on-peak share for Heuristics literals
func Share(v float64) *float64 {
	return &v
}

// withDefaults fills zero fields from DefaultHeuristics. The on-peak shares
// are only defaulted when nil.
func (h Heuristics) withDefaults() Heuristics {
	d := DefaultHeuristics()
	fill := func(v *float64, def float64) {
		if *v <= 0 {
			*v = def
		}
	}
	fill(&h.SolarYieldKWhPerKW, d.SolarYieldKWhPerKW)
	fill(&h.SolarSelfConsumption, d.SolarSelfConsumption)
	fill(&h.AdvisorKWhPerKW, d.AdvisorKWhPerKW)
	fill(&h.AdvisorMaxKW, d.AdvisorMaxKW)
	fill(&h.DaysPerMonth, d.DaysPerMonth)
	fill(&h.WeeksPerMonth, d.WeeksPerMonth)
	fill(&h.BaselineKWhPerDay, d.BaselineKWhPerDay)
	if h.MaxMessages <= 0 {
		h.MaxMessages = d.MaxMessages
	}
	h.SolarSelfConsumption = clamp(h.SolarSelfConsumption, 0, 1)
	share := func(v, def *float64) *float64 {
		if v == nil {
			v = def
		}
		return Share(clamp(*v, 0, 1))
	}
	h.CondoOnPeakShare = share(h.CondoOnPeakShare, d.CondoOnPeakShare)
	h.HouseOnPeakShare = share(h.HouseOnPeakShare, d.HouseOnPeakShare)
	return h
}
