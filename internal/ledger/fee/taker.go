package fee

import "github.com/shopspring/decimal"

// DefaultTakerRate is the default taker fee rate, 0.02% of notional.
const DefaultTakerRate = 0.0002

// TakerFee charges a flat rate on the position's notional exposure.
type TakerFee struct {
	rate float64
}

// NewTakerFee creates a taker fee with the given rate. Rates outside
// [0, 1) fall back to the default.
func NewTakerFee(rate float64) Fee {
	if rate < 0 || rate >= 1 {
		rate = DefaultTakerRate
	}

	return &TakerFee{rate: rate}
}

// Calculate returns rate * notional, never negative. Decimal arithmetic
// keeps small rates exact on round notionals.
func (f *TakerFee) Calculate(notionalUSD float64) float64 {
	if notionalUSD <= 0 {
		return 0
	}

	fee, _ := decimal.NewFromFloat(f.rate).
		Mul(decimal.NewFromFloat(notionalUSD)).
		Float64()

	return fee
}
