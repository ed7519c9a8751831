package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTariffSettingsValid(t *testing.T) {
	assert.NoError(t, DefaultTariffSettings().Validate())
}

func TestTariffSettingsFromMap(t *testing.T) {
	ts := TariffSettingsFromMap(map[string]string{
		KeyOnPeakStart: "8",
		KeyOnPeakEnd:   "23.0",
		KeyRate1:       "not a number",
		KeyRate2:       " 4.5 ",
		KeyFtRate:      "39.72",
		KeyVATRate:     "0.07",
		"unrelated":    "x",
	})

	assert.Equal(t, Window{Start: 8, End: 23}, ts.OnPeak)
	assert.Equal(t, DefaultTariffSettings().Rate1, ts.Rate1)
	assert.Equal(t, 4.5, ts.Rate2)
	assert.InDelta(t, 0.3972, ts.FtPerKWh, 1e-12)
	assert.Equal(t, 0.07, ts.VATRate)
}

func TestTariffSettingsMap(t *testing.T) {
	m := DefaultTariffSettings().Map()
	for _, k := range SettingKeys {
		assert.Contains(t, m, k)
	}
	assert.Equal(t, "39.72", m[KeyFtRate])
	assert.Equal(t, "9", m[KeyOnPeakStart])

	back := TariffSettingsFromMap(m)
	assert.InDelta(t, DefaultTariffSettings().FtPerKWh, back.FtPerKWh, 1e-12)
	assert.Equal(t, DefaultTariffSettings().Tier2KWh, back.Tier2KWh)
}

func TestTariffSettingsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*TariffSettings)
	}{
		{"tiers inverted", func(t *TariffSettings) { t.Tier1KWh, t.Tier2KWh = 400, 150 }},
		{"tiers equal", func(t *TariffSettings) { t.Tier2KWh = t.Tier1KWh }},
		{"negative tier1", func(t *TariffSettings) { t.Tier1KWh = -1 }},
		{"zero rate", func(t *TariffSettings) { t.Rate3 = 0 }},
		{"negative tou rate", func(t *TariffSettings) { t.TOUOffRate = -1 }},
		{"vat of one", func(t *TariffSettings) { t.VATRate = 1 }},
		{"negative vat", func(t *TariffSettings) { t.VATRate = -0.01 }},
		{"negative fee", func(t *TariffSettings) { t.TOUServiceFee = -2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := DefaultTariffSettings()
			tt.mutate(&ts)
			assert.ErrorIs(t, ts.Validate(), ErrInvalidTariff)
		})
	}
}

func TestHeuristicsZeroShareKept(t *testing.T) {
	in := Heuristics{CondoOnPeakShare: Share(0), HouseOnPeakShare: Share(0)}
	h := in.withDefaults()
	assert.Equal(t, 0.0, *h.CondoOnPeakShare)
	assert.Equal(t, 0.0, *h.HouseOnPeakShare)

	// the caller's values are not aliased
	*in.CondoOnPeakShare = 0.4
	assert.Equal(t, 0.0, *h.CondoOnPeakShare)
}

func TestTariffSettingsZeroFirstTier(t *testing.T) {
	ts := DefaultTariffSettings()
	ts.Tier1KWh = 0
	require.NoError(t, ts.Validate())

	b1, b2, b3 := TierBands(200, ts.Tier1KWh, ts.Tier2KWh)
	assert.Equal(t, 0.0, b1)
	assert.Equal(t, 200.0, b2)
	assert.Equal(t, 0.0, b3)
}

func TestHeuristicsDefaults(t *testing.T) {
	h := Heuristics{SolarYieldKWhPerKW: 5, CondoOnPeakShare: Share(2)}.withDefaults()
	assert.Equal(t, 5.0, h.SolarYieldKWhPerKW)
	assert.Equal(t, 1.0, *h.CondoOnPeakShare)
	assert.Equal(t, 0.58, *h.HouseOnPeakShare)
	assert.Equal(t, 0.75, h.SolarSelfConsumption)
	assert.Equal(t, 30.0, h.DaysPerMonth)
	assert.Equal(t, 5, h.MaxMessages)
}

func TestNumberDecoding(t *testing.T) {
	tests := []struct {
		in   string
		want Number
	}{
		{`4`, N(4)},
		{`"4.5"`, N(4.5)},
		{`true`, N(1)},
		{`null`, Number{}},
		{`"many"`, Number{}},
		{`{"a":1}`, Number{}},
		{`[1]`, Number{}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var n Number
			require.NoError(t, json.Unmarshal([]byte(tt.in), &n))
			assert.Equal(t, tt.want, n)
		})
	}

	var p Profile
	require.NoError(t, json.Unmarshal([]byte(`{"houseSize":"large","residents":{"x":1}}`), &p))
	assert.Equal(t, 3, p.ResidentCount())

	out, err := json.Marshal(struct{ A, B Number }{A: N(2), B: Number{}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"A":2,"B":null}`, string(out))
}
