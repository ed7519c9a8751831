package engine

import (
	"math"

	"github.com/shopspring/decimal"
)

// DailyResult is the outcome of one estimate. It is built fresh by every call
// and never modified afterwards.
type DailyResult struct {
	TariffMode         TariffMode         `json:"tariff_mode"`
	KWhTotal           float64            `json:"kwh_total"`
	KWhNet             float64            `json:"kwh_net"`
	KWhOn              float64            `json:"kwh_on"`
	KWhOff             float64            `json:"kwh_off"`
	KWhSolarProduced   float64            `json:"kwh_solar_produced"`
	KWhSolarUsed       float64            `json:"kwh_solar_used"`
	KWhEV              float64            `json:"kwh_ev"`
	Breakdown          map[string]float64 `json:"breakdown"`
	KWhByRoom          map[string]float64 `json:"kwh_by_room"`
	KWhMonthByRoom     map[string]float64 `json:"kwh_month_by_room"`
	KWhMonth           float64            `json:"kwh_month"`
	KWhMonthNet        float64            `json:"kwh_month_net"`
	KWhMonthOn         float64            `json:"kwh_month_on"`
	KWhMonthOff        float64            `json:"kwh_month_off"`
	Bills              BillComparison     `json:"bills"`
	RecommendedTariff  Recommendation     `json:"recommended_tariff"`
	CostToday          decimal.Decimal    `json:"cost_today"`
	SolarKW            float64            `json:"solar_kw"`
	SolarRecommendedKW float64            `json:"solar_recommended_kw"`
	EVSource           EVSourceKind       `json:"ev_source"`
	Warnings           []string           `json:"warnings"`
	Insights           []string           `json:"insights"`
	PointsEarned       int                `json:"points_earned"`
}

// Estimator turns household snapshots into daily results. It holds no
// mutable state and is safe for concurrent use.
type Estimator struct {
	h Heuristics
}

// NewEstimator returns an estimator using h; zero fields take their defaults
func NewEstimator(h Heuristics) *Estimator {
	return &Estimator{h: h.withDefaults()}
}

// Heuristics returns the constants in effect
func (e *Estimator) Heuristics() Heuristics {
	h := e.h
	h.CondoOnPeakShare = Share(*h.CondoOnPeakShare)
	h.HouseOnPeakShare = Share(*h.HouseOnPeakShare)
	return h
}

// Estimate runs the default estimator
func Estimate(in *Input, t TariffSettings) (*DailyResult, error) {
	return NewEstimator(DefaultHeuristics()).Estimate(in, t)
}

// Estimate computes daily and monthly consumption for a household and prices
// it under both tariff structures. Data-quality problems become warnings;
// only a nil input or invalid tariff settings return an error.
func (e *Estimator) Estimate(in *Input, t TariffSettings) (*DailyResult, error) {
	if in == nil {
		return nil, ErrNilInput
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}

	c := newCalc(e.h, in, t)
	c.collect()
	c.practices()
	c.solar()
	c.split()
	c.monthly()

	bills, err := CompareBills(c.monthNet, c.monthTOUOn, c.monthTOUOff, t)
	if err != nil {
		return nil, err
	}
	c.recommendation(bills)
	c.baseline()

	return c.result(bills), nil
}

func (c *calc) recommendation(bills BillComparison) {
	selected := Recommendation(c.s.TariffMode)
	if c.s.TariffMode != TariffTOU {
		selected = RecommendFlat
	}
	if bills.Recommended == RecommendTie || bills.Recommended == selected {
		return
	}
	name := "the flat tiered rate"
	if bills.Recommended == RecommendTOU {
		name = "time-of-use"
	}
	c.msgs.insight("Switching to %s would save about %s per month", name, bills.SavingsPerMonth.StringFixed(2))
}

func (c *calc) result(bills BillComparison) *DailyResult {
	mode := c.s.TariffMode
	if mode != TariffTOU {
		mode = TariffFlat
	}

	net := round3(c.net)
	on, monthOn := 0.0, 0.0
	monthNet := round3(c.monthNet)
	if mode == TariffTOU {
		on = math.Min(round3(c.touOn), net)
		monthOn = math.Min(round3(c.monthTOUOn), monthNet)
	}

	solarKW := c.solarKW
	if c.s.SolarMode == SolarAdvisor {
		solarKW = c.solarRecoKW
	}

	r := &DailyResult{
		TariffMode:         mode,
		KWhTotal:           round3(c.total),
		KWhNet:             net,
		KWhOn:              on,
		KWhOff:             round3(net - on),
		KWhSolarProduced:   round3(c.solarProduced),
		KWhSolarUsed:       round3(c.solarUsed),
		KWhEV:              round3(c.evKWh),
		Breakdown:          roundAll(c.byItem),
		KWhByRoom:          roundAll(c.byRoom),
		KWhMonthByRoom:     roundAll(c.monthByRoom),
		KWhMonth:           round3(c.monthGross),
		KWhMonthNet:        monthNet,
		KWhMonthOn:         monthOn,
		KWhMonthOff:        round3(monthNet - monthOn),
		Bills:              bills,
		RecommendedTariff:  bills.Recommended,
		CostToday:          money(bills.Selected(mode).Total.Div(decimal.NewFromFloat(c.h.DaysPerMonth))),
		SolarKW:            solarKW,
		SolarRecommendedKW: c.solarRecoKW,
		EVSource:           c.ev.Kind,
		Warnings:           capList(c.msgs.warnings, c.h.MaxMessages),
		Insights:           capList(c.msgs.insights, c.h.MaxMessages),
		PointsEarned:       c.points,
	}
	return r
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func roundAll(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = round3(v)
	}
	return out
}

func capList(l []string, n int) []string {
	out := make([]string, 0, min(len(l), n))
	for i := 0; i < len(l) && i < n; i++ {
		out = append(out, l[i])
	}
	return out
}
