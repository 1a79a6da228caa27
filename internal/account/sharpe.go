package account

import (
	"math"

	"github.com/moznion/go-optional"

	"github.com/kepler-lab/kepler-trading/internal/types"
)

// sharpeRatio computes mean/stddev of the returns, scaled by the square
// root of the annualization factor. Sample standard deviation, so two
// observations are the minimum. Zero variance yields None rather than a
// division by zero.
func sharpeRatio(returns []float64, annualization float64) optional.Option[float64] {
	if len(returns) < 2 {
		return optional.None[float64]()
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns) - 1)

	stddev := math.Sqrt(variance)
	if stddev == 0 {
		return optional.None[float64]()
	}

	return optional.Some(mean / stddev * math.Sqrt(annualization))
}

// equityReturns converts an equity series into period-over-period
// returns. Periods starting from non-positive equity are skipped.
func equityReturns(history []types.EquitySnapshot) []float64 {
	if len(history) < 2 {
		return nil
	}

	returns := make([]float64, 0, len(history)-1)
	for i := 1; i < len(history); i++ {
		previous := history[i-1].Equity
		if previous <= 0 {
			continue
		}

		returns = append(returns, (history[i].Equity-previous)/previous)
	}

	return returns
}

// tradeReturns converts closed positions into per-trade returns on the
// margin committed to each trade.
func tradeReturns(closed []types.Position) []float64 {
	returns := make([]float64, 0, len(closed))
	for _, position := range closed {
		margin := position.Margin()
		if margin <= 0 {
			continue
		}

		returns = append(returns, position.RealizedPnL.TakeOr(0)/margin)
	}

	return returns
}
