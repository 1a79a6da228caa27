package fee

// Fee computes the trading fee charged on a position's notional at close.
type Fee interface {
	// Calculate returns the fee in USD for the given notional exposure.
	Calculate(notionalUSD float64) float64
}

type Model string

const (
	ModelTaker Model = "taker"
	ModelZero  Model = "zero"
)

var AllModels = []any{
	ModelTaker,
	ModelZero,
}

// GetFeeHandler returns the fee implementation for the configured model.
// Unknown models fall back to zero fees.
func GetFeeHandler(model Model, takerRate float64) Fee {
	switch model {
	case ModelTaker:
		return NewTakerFee(takerRate)
	case ModelZero:
		return NewZeroFee()
	default:
		return NewZeroFee()
	}
}
