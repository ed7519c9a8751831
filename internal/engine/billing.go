package engine

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

var ErrNegativeEnergy = errors.New("energy quantity must be a non-negative number")

// Recommendation names the cheaper tariff, or a tie
type Recommendation string

const (
	RecommendFlat Recommendation = Recommendation(TariffFlat)
	RecommendTOU  Recommendation = Recommendation(TariffTOU)
	RecommendTie  Recommendation = "tie"
)

// BandCharge is one priced block of energy on a bill
type BandCharge struct {
	Label string          `json:"label"`
	KWh   float64         `json:"kwh"`
	Rate  float64         `json:"rate"`
	Cost  decimal.Decimal `json:"cost"`
}

// Bill is a monthly bill under one tariff structure. VAT applies to energy,
// fuel adjustment and the service fee alike, for both structures.
type Bill struct {
	Tariff     TariffMode      `json:"tariff"`
	KWh        float64         `json:"kwh"`
	Bands      []BandCharge    `json:"bands"`
	EnergyCost decimal.Decimal `json:"energy_cost"`
	FtCost     decimal.Decimal `json:"ft_cost"`
	ServiceFee decimal.Decimal `json:"service_fee"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	VAT        decimal.Decimal `json:"vat"`
	Total      decimal.Decimal `json:"total"`
}

// BillComparison holds both bills and the recommendation
type BillComparison struct {
	Flat            Bill            `json:"non_tou"`
	TOU             Bill            `json:"tou"`
	Recommended     Recommendation  `json:"recommended"`
	SavingsPerMonth decimal.Decimal `json:"savings_per_month"`
}

// Selected returns the bill for the given tariff mode
func (c BillComparison) Selected(mode TariffMode) Bill {
	if mode == TariffTOU {
		return c.TOU
	}
	return c.Flat
}

func money(v decimal.Decimal) decimal.Decimal {
	return v.Round(2)
}

func charge(label string, kwh, rate float64) BandCharge {
	return BandCharge{
		Label: label,
		KWh:   kwh,
		Rate:  rate,
		Cost:  decimal.NewFromFloat(kwh).Mul(decimal.NewFromFloat(rate)),
	}
}

func checkKWh(vals ...float64) error {
	for _, v := range vals {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %v", ErrNegativeEnergy, v)
		}
	}
	return nil
}

// TierBands splits monthly kWh at the tier boundaries: [0,tier1], (tier1,tier2], >tier2
func TierBands(kwh, tier1, tier2 float64) (b1, b2, b3 float64) {
	b1 = math.Min(kwh, tier1)
	b2 = math.Max(0, math.Min(kwh, tier2)-tier1)
	b3 = math.Max(0, kwh-tier2)
	return b1, b2, b3
}

// FlatBill prices monthly kWh on the tiered flat-rate structure
func FlatBill(kwh float64, t TariffSettings) (Bill, error) {
	if err := checkKWh(kwh); err != nil {
		return Bill{}, err
	}
	b1, b2, b3 := TierBands(kwh, t.Tier1KWh, t.Tier2KWh)
	bands := []BandCharge{
		charge(fmt.Sprintf("0-%g kWh", t.Tier1KWh), b1, t.Rate1),
		charge(fmt.Sprintf("%g-%g kWh", t.Tier1KWh, t.Tier2KWh), b2, t.Rate2),
		charge(fmt.Sprintf(">%g kWh", t.Tier2KWh), b3, t.Rate3),
	}
	return finishBill(TariffFlat, kwh, bands, t.FlatServiceFee, t), nil
}

// TOUBill prices monthly on-peak and off-peak kWh on the time-of-use structure
func TOUBill(onKWh, offKWh float64, t TariffSettings) (Bill, error) {
	if err := checkKWh(onKWh, offKWh); err != nil {
		return Bill{}, err
	}
	bands := []BandCharge{
		charge("on-peak", onKWh, t.TOUOnRate),
		charge("off-peak", offKWh, t.TOUOffRate),
	}
	return finishBill(TariffTOU, onKWh+offKWh, bands, t.TOUServiceFee, t), nil
}

func finishBill(mode TariffMode, kwh float64, bands []BandCharge, fee float64, t TariffSettings) Bill {
	energy := decimal.Zero
	for i := range bands {
		bands[i].Cost = money(bands[i].Cost)
		energy = energy.Add(bands[i].Cost)
	}
	b := Bill{
		Tariff:     mode,
		KWh:        kwh,
		Bands:      bands,
		EnergyCost: energy,
		FtCost:     money(decimal.NewFromFloat(kwh).Mul(decimal.NewFromFloat(t.FtPerKWh))),
		ServiceFee: money(decimal.NewFromFloat(fee)),
	}
	b.Subtotal = b.EnergyCost.Add(b.FtCost).Add(b.ServiceFee)
	b.VAT = money(b.Subtotal.Mul(decimal.NewFromFloat(t.VATRate)))
	b.Total = b.Subtotal.Add(b.VAT)
	return b
}

// Recommend returns the strictly cheaper tariff, or a tie
func Recommend(flat, tou Bill) Recommendation {
	switch tou.Total.Cmp(flat.Total) {
	case -1:
		return RecommendTOU
	case 1:
		return RecommendFlat
	default:
		return RecommendTie
	}
}

// CompareBills computes both bills for one month of usage. monthlyKWh feeds the
// flat structure; onKWh and offKWh feed time-of-use.
func CompareBills(monthlyKWh, onKWh, offKWh float64, t TariffSettings) (BillComparison, error) {
	flat, err := FlatBill(monthlyKWh, t)
	if err != nil {
		return BillComparison{}, err
	}
	tou, err := TOUBill(onKWh, offKWh, t)
	if err != nil {
		return BillComparison{}, err
	}
	return BillComparison{
		Flat:            flat,
		TOU:             tou,
		Recommended:     Recommend(flat, tou),
		SavingsPerMonth: flat.Total.Sub(tou.Total).Abs(),
	}, nil
}
