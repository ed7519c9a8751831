package engine

import "math"

// Reference set point for the air conditioner model; colder costs 6% per
// degree, warmer saves 3% per degree down to 70% of base.
const (
	acNeutralTempC   = 26.0
	acColderPenalty  = 0.06
	acWarmerDiscount = 0.03
	acMinMultiplier  = 0.70
	acNonInverter    = 1.15
)

// ACKWh estimates daily air conditioner energy
func ACKWh(btu, setTempC, hours float64, inverter bool) float64 {
	if hours <= 0 || btu <= 0 {
		return 0
	}
	baseKW := btu / 12000
	if !inverter {
		baseKW *= acNonInverter
	}
	return baseKW * ACTempMultiplier(setTempC) * hours
}

// ACTempMultiplier scales air conditioner draw by its set point
func ACTempMultiplier(setTempC float64) float64 {
	switch {
	case setTempC < acNeutralTempC:
		return 1 + (acNeutralTempC-setTempC)*acColderPenalty
	case setTempC > acNeutralTempC:
		return math.Max(acMinMultiplier, 1-(setTempC-acNeutralTempC)*acWarmerDiscount)
	default:
		return 1
	}
}

// GenericKWh is watts x hours in kWh
func GenericKWh(watts, hours float64) float64 {
	if watts <= 0 || hours <= 0 {
		return 0
	}
	return watts / 1000 * hours
}

// EVChargeKWh is the grid energy for charging a battery from socFrom to socTo
// percent. Efficiency is clamped to [0.5, 1.0]; grid draw exceeds what the
// battery receives.
func EVChargeKWh(batteryKWh, socFrom, socTo, efficiency float64) float64 {
	if batteryKWh <= 0 {
		return 0
	}
	delta := math.Max(0, socTo-socFrom)
	return batteryKWh * (delta / 100) / clamp(efficiency, 0.5, 1.0)
}

// EVChargingHours rounds the charging duration up to whole hours, with a
// minimum of one hour whenever energy is drawn.
func EVChargingHours(kwh, chargerKW float64) int {
	if kwh <= 0 {
		return 0
	}
	// chargers below 0.1 kW are treated as 0.1 kW
	h := int(math.Ceil(kwh / math.Max(0.1, chargerKW)))
	if h < 1 {
		h = 1
	}
	return h
}
