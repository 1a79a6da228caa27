// Package risk enforces account-level limits on validated decisions
// before they reach execution. The gate is stateless; every evaluation
// reads the account's current view, so limits hold no matter how many
// cycles ran before.
package risk

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/kepler-lab/kepler-trading/internal/logger"
	"github.com/kepler-lab/kepler-trading/internal/types"
	"github.com/kepler-lab/kepler-trading/pkg/errors"
)

// minNotionalUSD rejects dust entries that would round to nothing after
// fees.
const minNotionalUSD = 1.0

// liquidationWarnDistance triggers an advisory when the entry's
// liquidation price sits closer than this fraction of the entry price.
const liquidationWarnDistance = 0.10

// stopLossWarnFraction triggers an advisory when the exit plan's stop
// would realize more than this fraction of notional.
const stopLossWarnFraction = 0.5

// AccountView is the read-only account state the gate evaluates against.
type AccountView interface {
	// Balance returns the cash balance in USD.
	Balance() float64
	// Exposure returns the summed notional of all open positions.
	Exposure() float64
	// HasOpen reports whether the asset has an open position.
	HasOpen(asset string) bool
	// RealizedPnLSince returns fee-inclusive realized P&L for positions
	// closed at or after the cutoff.
	RealizedPnLSince(cutoff time.Time) float64
}

// Gate applies hard limits to entry and close decisions. Hard failures
// return a typed error; advisory findings only log.
type Gate struct {
	limits types.RiskLimits
	log    *logger.Logger
}

// NewGate creates a gate with the given limits. Invalid limits are a
// configuration error, not something to discover mid-cycle.
func NewGate(limits types.RiskLimits, log *logger.Logger) (*Gate, error) {
	if err := limits.Validate(); err != nil {
		return nil, err
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Gate{
		limits: limits,
		log:    log,
	}, nil
}

// Limits returns the configured limits.
func (g *Gate) Limits() types.RiskLimits {
	return g.limits
}

// Evaluate checks a validated decision against the account's limits.
// Hold always passes. Close requires an open position. Entries run the
// full check sequence: position size, leverage, minimum notional,
// balance, daily loss headroom, portfolio exposure, then duplicate
// position. The first failed check wins. currentPrice feeds the
// advisory stop-loss check only and may be zero when unknown.
func (g *Gate) Evaluate(
	decision types.TradeDecision,
	account AccountView,
	currentPrice float64,
	now time.Time,
) error {
	switch decision.Signal {
	case types.SignalHold:
		return nil
	case types.SignalClose:
		if !account.HasOpen(decision.Asset) {
			return errors.Newf(errors.ErrCodeNoPositionToClose,
				"no open position for %s to close", decision.Asset)
		}

		return nil
	}

	if decision.NotionalUSD > g.limits.MaxPositionSizeUSD {
		return errors.Newf(errors.ErrCodePositionSizeExceeded,
			"notional %.2f exceeds max position size %.2f",
			decision.NotionalUSD, g.limits.MaxPositionSizeUSD)
	}

	if decision.Leverage > g.limits.MaxLeverage {
		return errors.Newf(errors.ErrCodeLeverageExceeded,
			"leverage %.1fx exceeds max %.1fx",
			decision.Leverage, g.limits.MaxLeverage)
	}

	if decision.NotionalUSD < minNotionalUSD {
		return errors.Newf(errors.ErrCodeNotionalTooSmall,
			"notional %.4f below minimum %.2f", decision.NotionalUSD, minNotionalUSD)
	}

	margin := decision.NotionalUSD / decision.Leverage

	if margin > account.Balance() {
		return errors.Newf(errors.ErrCodeInsufficientBalance,
			"margin %.2f exceeds balance %.2f", margin, account.Balance())
	}

	lossToday := math.Max(0, -account.RealizedPnLSince(utcMidnight(now)))
	if lossToday+margin > g.limits.DailyLossLimitUSD {
		return errors.Newf(errors.ErrCodeDailyLossLimit,
			"realized loss %.2f today plus margin %.2f at risk breaches daily limit %.2f",
			lossToday, margin, g.limits.DailyLossLimitUSD)
	}

	if account.Exposure()+decision.NotionalUSD > g.limits.MaxPortfolioExposureUSD {
		return errors.Newf(errors.ErrCodeExposureExceeded,
			"exposure %.2f plus notional %.2f exceeds portfolio cap %.2f",
			account.Exposure(), decision.NotionalUSD, g.limits.MaxPortfolioExposureUSD)
	}

	if account.HasOpen(decision.Asset) {
		return errors.Newf(errors.ErrCodeDuplicatePosition,
			"position already open for %s, no pyramiding", decision.Asset)
	}

	g.advise(decision, currentPrice)

	return nil
}

// advise logs non-blocking findings on an approved entry.
func (g *Gate) advise(decision types.TradeDecision, currentPrice float64) {
	if 1/decision.Leverage < liquidationWarnDistance {
		g.log.Warn("liquidation price within warning distance of entry",
			zap.String("asset", decision.Asset),
			zap.Float64("leverage", decision.Leverage),
			zap.Float64("liquidation_distance_pct", 100/decision.Leverage),
		)
	}

	plan, err := decision.ExitPlan.Take()
	if err != nil || currentPrice <= 0 {
		return
	}

	stop, err := plan.StopLoss.Take()
	if err != nil || stop <= 0 {
		return
	}

	stopDistance := math.Abs(currentPrice-stop) / currentPrice
	if stopDistance*decision.Leverage > stopLossWarnFraction {
		g.log.Warn("stop loss would realize a large share of notional",
			zap.String("asset", decision.Asset),
			zap.Float64("stop_loss", stop),
			zap.Float64("loss_fraction_of_notional", stopDistance*decision.Leverage),
		)
	}
}

// utcMidnight returns the start of the current day in UTC. The daily
// loss window resets on this boundary regardless of local time.
func utcMidnight(now time.Time) time.Time {
	year, month, day := now.UTC().Date()

	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
