// Package ledger owns the open and closed positions of a single account
// and applies approved decisions as atomic state transitions.
//
// A Ledger is not safe for concurrent mutation. The trading cycle is
// strictly sequential per account: callers must finish one full
// decision-apply sequence before starting the next. Independent accounts
// each own their own Ledger and may run fully in parallel.
package ledger

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kepler-lab/kepler-trading/internal/ledger/fee"
	"github.com/kepler-lab/kepler-trading/internal/logger"
	"github.com/kepler-lab/kepler-trading/internal/types"
	"github.com/kepler-lab/kepler-trading/pkg/errors"
)

// Ledger tracks at most one open position per asset plus the history of
// closed positions. Prices are always supplied by the caller; the ledger
// never fetches anything itself.
type Ledger struct {
	feeModel fee.Fee
	log      *logger.Logger
	open     map[string]*types.Position
	closed   []types.Position
}

// NewLedger creates an empty ledger using the given fee model.
func NewLedger(feeModel fee.Fee, log *logger.Logger) *Ledger {
	if log == nil {
		log = logger.NewNopLogger()
	}

	if feeModel == nil {
		feeModel = fee.NewZeroFee()
	}

	return &Ledger{
		feeModel: feeModel,
		log:      log,
		open:     make(map[string]*types.Position),
		closed:   nil,
	}
}

// Open transitions an asset's slot from Empty to Open. The entry price
// comes from the execution fill; the entry time is the decision timestamp.
func (l *Ledger) Open(
	asset string,
	side types.PositionSide,
	notionalUSD float64,
	leverage float64,
	plan optional.Option[types.ExitPlan],
	fill types.FillResult,
) (types.Position, error) {
	if fill.Price <= 0 {
		return types.Position{}, errors.Newf(errors.ErrCodeInvalidPrice,
			"fill price %.4f must be positive", fill.Price)
	}

	if side != types.PositionSideLong && side != types.PositionSideShort {
		return types.Position{}, errors.Newf(errors.ErrCodeInvalidPositionSide,
			"unknown position side %q", side)
	}

	if _, exists := l.open[asset]; exists {
		return types.Position{}, errors.Newf(errors.ErrCodePositionAlreadyOpen,
			"position already open for %s", asset)
	}

	position := &types.Position{
		ID:            uuid.New().String(),
		Asset:         asset,
		Side:          side,
		NotionalUSD:   notionalUSD,
		Leverage:      leverage,
		EntryPrice:    fill.Price,
		EntryTime:     fill.Timestamp,
		Status:        types.PositionStatusOpen,
		UnrealizedPnL: 0,
		ExitPlan:      plan,
		ExitPrice:     optional.None[float64](),
		ExitTime:      optional.None[time.Time](),
		RealizedPnL:   optional.None[float64](),
		Fee:           0,
	}

	l.open[asset] = position

	l.log.Info("opened position",
		zap.String("position_id", position.ID),
		zap.String("asset", asset),
		zap.String("side", string(side)),
		zap.Float64("notional_usd", notionalUSD),
		zap.Float64("leverage", leverage),
		zap.Float64("entry_price", fill.Price),
	)

	return *position, nil
}

// MarkToMarket recomputes the unrealized P&L of the asset's open position
// at the given price.
func (l *Ledger) MarkToMarket(asset string, currentPrice float64) (types.Position, error) {
	if currentPrice <= 0 {
		return types.Position{}, errors.Newf(errors.ErrCodeInvalidPrice,
			"mark price %.4f must be positive", currentPrice)
	}

	position, exists := l.open[asset]
	if !exists {
		return types.Position{}, errors.Newf(errors.ErrCodeNoSuchOpenPosition,
			"no open position for %s", asset)
	}

	position.UnrealizedPnL = position.PnLAt(currentPrice)

	return *position, nil
}

// MarkAll refreshes every open position that has a price in the map.
// Positions without a fresh price keep their previous mark.
func (l *Ledger) MarkAll(currentPrices map[string]float64) {
	for asset := range l.open {
		price, ok := currentPrices[asset]
		if !ok || price <= 0 {
			continue
		}

		l.open[asset].UnrealizedPnL = l.open[asset].PnLAt(price)
	}
}

// Close transitions an asset's open position to Closed at the fill price.
// Realized P&L uses the same formula as marking, minus the taker fee on
// notional. The position becomes terminal; a later entry on the same
// asset opens a new, unrelated position.
func (l *Ledger) Close(asset string, fill types.FillResult) (types.Position, error) {
	if fill.Price <= 0 {
		return types.Position{}, errors.Newf(errors.ErrCodeInvalidPrice,
			"fill price %.4f must be positive", fill.Price)
	}

	position, exists := l.open[asset]
	if !exists {
		return types.Position{}, errors.Newf(errors.ErrCodeNoSuchOpenPosition,
			"no open position for %s", asset)
	}

	grossPnL := position.PnLAt(fill.Price)
	feeUSD := l.feeModel.Calculate(position.NotionalUSD)

	realized, _ := decimal.NewFromFloat(grossPnL).
		Sub(decimal.NewFromFloat(feeUSD)).
		Float64()

	position.Status = types.PositionStatusClosed
	position.UnrealizedPnL = 0
	position.ExitPrice = optional.Some(fill.Price)
	position.ExitTime = optional.Some(fill.Timestamp)
	position.RealizedPnL = optional.Some(realized)
	position.Fee = feeUSD

	delete(l.open, asset)
	l.closed = append(l.closed, *position)

	l.log.Info("closed position",
		zap.String("position_id", position.ID),
		zap.String("asset", asset),
		zap.Float64("exit_price", fill.Price),
		zap.Float64("realized_pnl", realized),
		zap.Float64("fee", feeUSD),
	)

	return *position, nil
}

// OpenPosition returns a copy of the asset's open position, if any.
func (l *Ledger) OpenPosition(asset string) (types.Position, bool) {
	position, exists := l.open[asset]
	if !exists {
		return types.Position{}, false
	}

	return *position, true
}

// HasOpen reports whether the asset currently has an open position.
func (l *Ledger) HasOpen(asset string) bool {
	_, exists := l.open[asset]

	return exists
}

// OpenPositions returns copies of all open positions, ordered by asset
// for deterministic iteration.
func (l *Ledger) OpenPositions() []types.Position {
	assets := make([]string, 0, len(l.open))
	for asset := range l.open {
		assets = append(assets, asset)
	}

	sort.Strings(assets)

	positions := make([]types.Position, 0, len(assets))
	for _, asset := range assets {
		positions = append(positions, *l.open[asset])
	}

	return positions
}

// ClosedPositions returns copies of all closed positions in close order.
func (l *Ledger) ClosedPositions() []types.Position {
	closed := make([]types.Position, len(l.closed))
	copy(closed, l.closed)

	return closed
}

// UnrealizedPnL sums the unrealized P&L of all open positions at their
// latest marks.
func (l *Ledger) UnrealizedPnL() float64 {
	total := decimal.Zero
	for _, position := range l.open {
		total = total.Add(decimal.NewFromFloat(position.UnrealizedPnL))
	}

	result, _ := total.Float64()

	return result
}

// RealizedPnL sums the fee-inclusive realized P&L of all closed positions.
func (l *Ledger) RealizedPnL() float64 {
	total := decimal.Zero
	for _, position := range l.closed {
		total = total.Add(decimal.NewFromFloat(position.RealizedPnL.TakeOr(0)))
	}

	result, _ := total.Float64()

	return result
}

// RealizedPnLSince sums realized P&L of positions closed at or after the
// cutoff. The risk gate uses this with the UTC midnight boundary to
// enforce the daily loss limit.
func (l *Ledger) RealizedPnLSince(cutoff time.Time) float64 {
	total := decimal.Zero

	for _, position := range l.closed {
		exitTime, err := position.ExitTime.Take()
		if err != nil || exitTime.Before(cutoff) {
			continue
		}

		total = total.Add(decimal.NewFromFloat(position.RealizedPnL.TakeOr(0)))
	}

	result, _ := total.Float64()

	return result
}

// Exposure sums the notional of all open positions.
func (l *Ledger) Exposure() float64 {
	total := decimal.Zero
	for _, position := range l.open {
		total = total.Add(decimal.NewFromFloat(position.NotionalUSD))
	}

	result, _ := total.Float64()

	return result
}

// MarginUsed sums the margin at risk across all open positions.
func (l *Ledger) MarginUsed() float64 {
	total := decimal.Zero
	for _, position := range l.open {
		total = total.Add(decimal.NewFromFloat(position.Margin()))
	}

	result, _ := total.Float64()

	return result
}

// TotalFees sums fees charged on all closed positions.
func (l *Ledger) TotalFees() float64 {
	total := decimal.Zero
	for _, position := range l.closed {
		total = total.Add(decimal.NewFromFloat(position.Fee))
	}

	result, _ := total.Float64()

	return result
}
