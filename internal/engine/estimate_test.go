package engine

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// single-resident condo, scale 0.85
func soloProfile() Profile {
	return Profile{HouseSize: "medium", Residents: N(1), HouseType: "condo"}
}

func wholeHouse(appliances map[string]ApplianceFields) State {
	return State{TariffMode: TariffFlat, SolarMode: SolarManual, Appliances: appliances}
}

func mustEstimate(t *testing.T, in *Input) *DailyResult {
	t.Helper()
	r, err := Estimate(in, DefaultTariffSettings())
	require.NoError(t, err)
	return r
}

func hasMessage(list []string, substr string) bool {
	for _, m := range list {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

func TestEstimateErrors(t *testing.T) {
	_, err := Estimate(nil, DefaultTariffSettings())
	assert.ErrorIs(t, err, ErrNilInput)

	bad := DefaultTariffSettings()
	bad.Tier2KWh = 10
	_, err = Estimate(&Input{Profile: DefaultProfile(), State: DefaultState()}, bad)
	assert.ErrorIs(t, err, ErrInvalidTariff)
}

func TestEstimateDefaultHousehold(t *testing.T) {
	r := mustEstimate(t, &Input{Profile: DefaultProfile(), State: DefaultState()})

	// 6.0 ac + 0.15 lights + 0.36 tv + 1.2 fridge + 0.48 standby, scaled by 1.01
	assert.InDelta(t, 8.272, r.KWhTotal, 1e-9)
	assert.InDelta(t, 8.272, r.KWhNet, 1e-9)
	assert.Equal(t, TariffFlat, r.TariffMode)
	assert.Zero(t, r.KWhOn)
	assert.InDelta(t, r.KWhNet, r.KWhOff, 1e-9)
	assert.Equal(t, EVSourceNone, r.EVSource)
	assert.Zero(t, r.KWhEV)
	assert.InDelta(t, 248.157, r.KWhMonth, 1e-9)
	assert.Contains(t, r.Breakdown, "ac")
	assert.NotContains(t, r.Breakdown, "ev_charger")

	// whole-house mode still reports the per-room maps, empty
	require.NotNil(t, r.KWhByRoom)
	assert.Empty(t, r.KWhByRoom)
	assert.Empty(t, r.KWhMonthByRoom)
	raw, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"kwh_by_room":{}`)
	assert.Contains(t, string(raw), `"kwh_month_by_room":{}`)
}

func TestEstimateRoomsAreExclusive(t *testing.T) {
	s := wholeHouse(map[string]ApplianceFields{"fridge": {"kwhPerDay": 10.0}})
	s.Rooms = map[string]*Room{
		"kitchen_1": {ID: "kitchen_1", Type: RoomKitchen, Appliances: map[string]ApplianceFields{
			"fridge": {"kwhPerDay": 1.0},
		}},
		"bedroom_1": {ID: "bedroom_1", Type: RoomBedroom, Appliances: map[string]ApplianceFields{}},
	}
	r := mustEstimate(t, &Input{Profile: soloProfile(), State: s})

	assert.InDelta(t, 0.85, r.KWhTotal, 1e-9)
	assert.Equal(t, map[string]float64{"kitchen_1": 0.85, "bedroom_1": 0}, r.KWhByRoom)
	assert.InDelta(t, 25.5, r.KWhMonthByRoom["kitchen_1"], 1e-9)
}

func TestEstimateEVSourcePrecedence(t *testing.T) {
	t.Run("legacy block", func(t *testing.T) {
		s := wholeHouse(nil)
		s.EVEnabled = true
		s.EV = DefaultState().EV
		r := mustEstimate(t, &Input{Profile: soloProfile(), State: s})

		assert.Equal(t, EVSourceLegacy, r.EVSource)
		// 60 kWh * 50% / 0.9, one charge per day, not scaled by residents
		assert.InDelta(t, 33.333, r.KWhEV, 1e-9)
		assert.InDelta(t, 33.333, r.KWhTotal, 1e-9)
		assert.True(t, hasMessage(r.Insights, "33.3 kWh per session"))
	})

	t.Run("legacy wins over whole-house charger", func(t *testing.T) {
		s := wholeHouse(map[string]ApplianceFields{"ev_charger": {}})
		s.EVEnabled = true
		r := mustEstimate(t, &Input{Profile: soloProfile(), State: s})

		assert.Equal(t, EVSourceLegacy, r.EVSource)
		assert.InDelta(t, 33.333, r.KWhEV, 1e-9)
		assert.True(t, hasMessage(r.Warnings, "only the EV settings are counted"))
	})

	t.Run("whole-house charger", func(t *testing.T) {
		s := wholeHouse(map[string]ApplianceFields{"ev_charger": {}})
		r := mustEstimate(t, &Input{Profile: soloProfile(), State: s})

		assert.Equal(t, EVSourceAppliances, r.EVSource)
		// two charges a week
		assert.InDelta(t, 9.524, r.KWhEV, 1e-9)
	})

	t.Run("rooms ignore legacy block", func(t *testing.T) {
		s := wholeHouse(nil)
		s.EVEnabled = true
		s.Rooms = BuildLayout(map[RoomType]int{RoomParking: 1})
		r := mustEstimate(t, &Input{Profile: soloProfile(), State: s})

		assert.Equal(t, EVSourceAppliances, r.EVSource)
		assert.InDelta(t, 9.524, r.KWhEV, 1e-9)
		assert.True(t, hasMessage(r.Warnings, "room layout is in use"))
		// EV monthly follows the weekly charge count: 33.333 * 2 * 52/12, plus lights 0.1275 * 30
		assert.InDelta(t, 292.714, r.KWhMonthByRoom["parking_1"], 1e-9)
		assert.InDelta(t, 292.714, r.KWhMonth, 1e-9)
	})
}

func TestEstimateInvalidSOCRange(t *testing.T) {
	s := wholeHouse(map[string]ApplianceFields{"ev_charger": {"socFrom": 80.0, "socTo": 30.0}})
	r := mustEstimate(t, &Input{Profile: soloProfile(), State: s})

	assert.Zero(t, r.KWhEV)
	assert.True(t, hasMessage(r.Warnings, "EV charge target (30%)"))
}

func TestEstimateSolar(t *testing.T) {
	tests := []struct {
		name    string
		solarKW Number
		net     float64
		used    float64
	}{
		{"none", N(0), 8.5, 0},
		{"small array", N(1), 5.5, 3},
		{"oversized array", N(10), 0, 8.5},
		{"negative treated as none", N(-2), 8.5, 0},
		{"malformed treated as none", Number{}, 8.5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := wholeHouse(map[string]ApplianceFields{"fridge": {"kwhPerDay": 10.0}})
			s.SolarKW = tt.solarKW
			r := mustEstimate(t, &Input{Profile: soloProfile(), State: s})

			assert.InDelta(t, 8.5, r.KWhTotal, 1e-9)
			assert.InDelta(t, tt.net, r.KWhNet, 1e-9)
			assert.InDelta(t, tt.used, r.KWhSolarUsed, 1e-9)
			assert.GreaterOrEqual(t, r.KWhNet, 0.0)
			assert.LessOrEqual(t, r.KWhNet, r.KWhTotal)
		})
	}

	s := wholeHouse(map[string]ApplianceFields{"fridge": {"kwhPerDay": 10.0}})
	s.SolarKW = N(10)
	r := mustEstimate(t, &Input{Profile: soloProfile(), State: s})
	assert.True(t, hasMessage(r.Warnings, "larger than your daytime load"))
}

func TestEstimateSolarAdvisor(t *testing.T) {
	s := wholeHouse(map[string]ApplianceFields{"fridge": {"kwhPerDay": 10.0}})
	s.SolarMode = SolarAdvisor
	s.SolarKW = N(7)
	r := mustEstimate(t, &Input{Profile: soloProfile(), State: s})

	// round(8.5 * 0.45 / 3)
	assert.Equal(t, 1.0, r.SolarRecommendedKW)
	assert.Equal(t, 1.0, r.SolarKW)
	assert.True(t, hasMessage(r.Insights, "Solar advisor"))
}

func TestEstimateTOUSplit(t *testing.T) {
	ac := ApplianceFields{"startHour": 20.0, "endHour": 2.0}

	s := wholeHouse(map[string]ApplianceFields{"ac": ac})
	s.TariffMode = TariffTOU
	r := mustEstimate(t, &Input{Profile: soloProfile(), State: s})
	// 5.1 kWh over 20..2, two of six hours inside 9..22
	assert.InDelta(t, 1.7, r.KWhOn, 1e-9)
	assert.InDelta(t, 3.4, r.KWhOff, 1e-9)

	s = wholeHouse(map[string]ApplianceFields{"ac": ac, "fridge": {}})
	s.TariffMode = TariffTOU
	r = mustEstimate(t, &Input{Profile: soloProfile(), State: s})
	// fridge 1.02 kWh at the condo share of 0.65
	assert.InDelta(t, 2.363, r.KWhOn, 1e-9)
	assert.InDelta(t, 3.757, r.KWhOff, 1e-9)
}

func TestEstimateZeroOnPeakShare(t *testing.T) {
	est := NewEstimator(Heuristics{HouseOnPeakShare: Share(0)})

	s := wholeHouse(map[string]ApplianceFields{"fridge": {"kwhPerDay": 2.0}})
	s.TariffMode = TariffTOU
	p := soloProfile()
	p.HouseType = "detached"
	r, err := est.Estimate(&Input{Profile: p, State: s}, DefaultTariffSettings())
	require.NoError(t, err)
	assert.Zero(t, r.KWhOn)
	assert.InDelta(t, 1.7, r.KWhOff, 1e-9)
}

func TestEstimateFlatModeStillPricesTOU(t *testing.T) {
	s := wholeHouse(map[string]ApplianceFields{"ac": {}, "fridge": {}})
	r := mustEstimate(t, &Input{Profile: soloProfile(), State: s})

	assert.Zero(t, r.KWhOn)
	assert.Zero(t, r.KWhMonthOn)
	assert.InDelta(t, r.KWhMonthNet, r.Bills.TOU.KWh, 1e-3)
	assert.True(t, r.Bills.TOU.Bands[0].KWh > 0)
	assert.True(t, r.Bills.TOU.Total.GreaterThan(decimal.Zero))
}

func TestEstimateConservation(t *testing.T) {
	profiles := []Profile{soloProfile(), DefaultProfile(), {HouseSize: "large", Residents: N(6), HouseType: "detached"}}
	solar := []Number{N(0), N(1.5), N(3), N(12)}
	for _, p := range profiles {
		for _, kw := range solar {
			s := DefaultState()
			s.TariffMode = TariffTOU
			s.SolarKW = kw
			s.EVEnabled = true
			r := mustEstimate(t, &Input{Profile: p, State: s})

			assert.InDelta(t, r.KWhNet, r.KWhOn+r.KWhOff, 1e-9)
			assert.InDelta(t, r.KWhMonthNet, r.KWhMonthOn+r.KWhMonthOff, 1e-9)
			assert.GreaterOrEqual(t, r.KWhOn, 0.0)
			assert.GreaterOrEqual(t, r.KWhOff, 0.0)
			assert.LessOrEqual(t, r.KWhNet, r.KWhTotal)

			touCheaper := r.Bills.TOU.Total.LessThan(r.Bills.Flat.Total)
			assert.Equal(t, touCheaper, r.RecommendedTariff == RecommendTOU)
		}
	}
}

func TestEstimateCostToday(t *testing.T) {
	s := wholeHouse(map[string]ApplianceFields{"fridge": {"kwhPerDay": 10.0}})
	r := mustEstimate(t, &Input{Profile: soloProfile(), State: s})
	want := r.Bills.Flat.Total.Div(decimal.NewFromInt(30)).Round(2)
	assert.True(t, want.Equal(r.CostToday), "got %s want %s", r.CostToday, want)

	s.TariffMode = TariffTOU
	r = mustEstimate(t, &Input{Profile: soloProfile(), State: s})
	want = r.Bills.TOU.Total.Div(decimal.NewFromInt(30)).Round(2)
	assert.True(t, want.Equal(r.CostToday), "got %s want %s", r.CostToday, want)
}

func TestEstimatePoints(t *testing.T) {
	s := wholeHouse(map[string]ApplianceFields{
		"ac":     {"setTempC": 27.0},
		"lights": {},
	})
	s.TariffMode = TariffTOU
	s.EVEnabled = true
	s.EV = DefaultState().EV
	r := mustEstimate(t, &Input{Profile: soloProfile(), State: s})

	assert.True(t, hasMessage(r.Insights, "starts off-peak"))
	// 10 for the set point, 5 for LED, 15 for the off-peak start; usage is above baseline
	assert.Equal(t, 30, r.PointsEarned)

	s.EV.ChargeStartHour = N(18)
	r = mustEstimate(t, &Input{Profile: soloProfile(), State: s})
	assert.True(t, hasMessage(r.Warnings, "during on-peak hours"))
	assert.Equal(t, 15, r.PointsEarned)
}

func TestEstimateMessagesCapped(t *testing.T) {
	s := wholeHouse(map[string]ApplianceFields{
		"ac":         {"setTempC": 18.0},
		"lights":     {"mode": "CFL"},
		"ev_charger": {},
	})
	s.EVEnabled = true
	s.EV = LegacyEV{SOCFrom: N(90), SOCTo: N(10)}
	s.SolarKW = N(20)
	s.Rooms = nil
	r := mustEstimate(t, &Input{Profile: soloProfile(), State: s})

	assert.LessOrEqual(t, len(r.Warnings), 5)
	assert.LessOrEqual(t, len(r.Insights), 5)
	seen := map[string]bool{}
	for _, w := range r.Warnings {
		assert.False(t, seen[w], "duplicate warning %q", w)
		seen[w] = true
	}
}

func TestEstimateMalformedConfig(t *testing.T) {
	raw := `{
		"profile": {"houseSize": 7, "residents": "lots", "houseType": null},
		"state": {
			"tariffMode": "weird",
			"solarKw": "abc",
			"appliances": {
				"ac": {"btu": "big", "hours": "4", "setTempC": null},
				"kettle": {"watts": "2000", "hours": 0.25},
				"fridge": {"enabled": "yes"}
			}
		}
	}`
	var in Input
	// houseSize has the wrong JSON kind; decoding still fills the other fields
	_ = json.Unmarshal([]byte(raw), &in)

	r, err := Estimate(&in, DefaultTariffSettings())
	require.NoError(t, err)
	assert.Equal(t, TariffFlat, r.TariffMode)
	assert.Zero(t, r.SolarKW)
	assert.Greater(t, r.KWhTotal, 0.0)
	assert.InDelta(t, 0.5*1.01, r.Breakdown["kettle"], 1e-3)
}

func TestEstimateDeterministicAndConcurrent(t *testing.T) {
	s := DefaultState()
	s.Rooms = BuildLayout(map[RoomType]int{RoomBedroom: 2, RoomLiving: 1, RoomKitchen: 1, RoomParking: 1})
	s.TariffMode = TariffTOU
	s.SolarKW = N(3)
	in := &Input{Profile: DefaultProfile(), State: s}

	first := mustEstimate(t, in)
	want, err := json.Marshal(first)
	require.NoError(t, err)

	est := NewEstimator(DefaultHeuristics())
	var wg sync.WaitGroup
	results := make([][]byte, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := est.Estimate(in, DefaultTariffSettings())
			if err != nil {
				return
			}
			results[i], _ = json.Marshal(r)
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		assert.JSONEq(t, string(want), string(got))
	}
}

func TestEstimatorHeuristicsOverride(t *testing.T) {
	est := NewEstimator(Heuristics{DaysPerMonth: 31})
	assert.Equal(t, 31.0, est.Heuristics().DaysPerMonth)

	s := wholeHouse(map[string]ApplianceFields{"fridge": {"kwhPerDay": 10.0}})
	r, err := est.Estimate(&Input{Profile: soloProfile(), State: s}, DefaultTariffSettings())
	require.NoError(t, err)
	assert.InDelta(t, 263.5, r.KWhMonth, 1e-9)
}
