package fee

// ZeroFee implements Fee with zero fees, for frictionless simulations.
type ZeroFee struct{}

// NewZeroFee creates a new zero fee.
func NewZeroFee() Fee {
	return &ZeroFee{}
}

// Calculate returns 0 for any notional.
func (f *ZeroFee) Calculate(notionalUSD float64) float64 {
	return 0.0
}
