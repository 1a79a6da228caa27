// Package account derives the account summary from the position ledger.
// The aggregator owns nothing but the starting capital and the equity
// history; balance and every P&L figure are recomputed from ledger
// state on each snapshot.
package account

import (
	"time"

	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"

	"github.com/kepler-lab/kepler-trading/internal/ledger"
	"github.com/kepler-lab/kepler-trading/internal/logger"
	"github.com/kepler-lab/kepler-trading/internal/types"
	"github.com/kepler-lab/kepler-trading/pkg/errors"
)

// Account wraps a ledger with starting capital and an equity series.
type Account struct {
	startingCapital float64
	annualization   float64
	ledger          *ledger.Ledger
	log             *logger.Logger
	history         []types.EquitySnapshot
}

// NewAccount creates an account over the given ledger. annualization is
// the number of trading cycles per year used to scale the Sharpe ratio.
func NewAccount(
	startingCapital float64,
	annualization float64,
	positionLedger *ledger.Ledger,
	log *logger.Logger,
) (*Account, error) {
	if startingCapital <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration,
			"starting capital %.2f must be positive", startingCapital)
	}

	if annualization <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration,
			"annualization factor %.2f must be positive", annualization)
	}

	if positionLedger == nil {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration,
			"account requires a ledger")
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Account{
		startingCapital: startingCapital,
		annualization:   annualization,
		ledger:          positionLedger,
		log:             log,
		history:         nil,
	}, nil
}

// Balance returns starting capital plus all fee-inclusive realized P&L.
// Opening a position never moves the balance; only closes do.
func (a *Account) Balance() float64 {
	balance, _ := decimal.NewFromFloat(a.startingCapital).
		Add(decimal.NewFromFloat(a.ledger.RealizedPnL())).
		Float64()

	return balance
}

// Equity returns balance plus unrealized P&L at the latest marks.
func (a *Account) Equity() float64 {
	equity, _ := decimal.NewFromFloat(a.Balance()).
		Add(decimal.NewFromFloat(a.ledger.UnrealizedPnL())).
		Float64()

	return equity
}

// Exposure returns the summed notional of open positions.
func (a *Account) Exposure() float64 {
	return a.ledger.Exposure()
}

// HasOpen reports whether the asset has an open position.
func (a *Account) HasOpen(asset string) bool {
	return a.ledger.HasOpen(asset)
}

// RealizedPnLSince returns realized P&L for positions closed at or after
// the cutoff.
func (a *Account) RealizedPnLSince(cutoff time.Time) float64 {
	return a.ledger.RealizedPnLSince(cutoff)
}

// RecordEquity appends the current equity to the history. The engine
// calls this once per cycle after marking positions.
func (a *Account) RecordEquity(now time.Time) types.EquitySnapshot {
	snapshot := types.EquitySnapshot{
		Timestamp: now,
		Equity:    a.Equity(),
	}

	a.history = append(a.history, snapshot)

	return snapshot
}

// History returns a copy of the recorded equity series.
func (a *Account) History() []types.EquitySnapshot {
	history := make([]types.EquitySnapshot, len(a.history))
	copy(history, a.history)

	return history
}

// Snapshot marks every open position at the given prices and returns the
// full account summary. Every open position's asset must have a positive
// price in the map.
func (a *Account) Snapshot(currentPrices map[string]float64) (types.AccountInfo, error) {
	for _, position := range a.ledger.OpenPositions() {
		price, ok := currentPrices[position.Asset]
		if !ok || price <= 0 {
			return types.AccountInfo{}, errors.Newf(errors.ErrCodeMissingAssetPrice,
				"no price for open position %s", position.Asset)
		}
	}

	a.ledger.MarkAll(currentPrices)

	balance := a.Balance()
	unrealized := a.ledger.UnrealizedPnL()
	realized := a.ledger.RealizedPnL()

	totalPnL, _ := decimal.NewFromFloat(unrealized).
		Add(decimal.NewFromFloat(realized)).
		Float64()

	return types.AccountInfo{
		Balance:        balance,
		Equity:         balance + unrealized,
		UnrealizedPnL:  unrealized,
		RealizedPnL:    realized,
		TotalPnL:       totalPnL,
		TotalFees:      a.ledger.TotalFees(),
		MarginUsed:     a.ledger.MarginUsed(),
		Exposure:       a.ledger.Exposure(),
		TotalReturnPct: totalPnL / a.startingCapital * 100,
		NumPositions:   len(a.ledger.OpenPositions()),
		SharpeRatio:    a.SharpeFromEquity(),
	}, nil
}

// SharpeFromEquity computes the annualized Sharpe ratio over the
// recorded equity series. None until at least two return observations
// exist or while returns have zero variance.
func (a *Account) SharpeFromEquity() optional.Option[float64] {
	return sharpeRatio(equityReturns(a.history), a.annualization)
}

// SharpeFromTrades computes an unannualized Sharpe ratio over per-trade
// returns on margin. None with fewer than two closed trades or zero
// variance.
func (a *Account) SharpeFromTrades() optional.Option[float64] {
	return sharpeRatio(tradeReturns(a.ledger.ClosedPositions()), 1)
}
