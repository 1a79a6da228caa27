package types

import (
	"time"

	"github.com/moznion/go-optional"
	"github.com/shopspring/decimal"
)

type PositionSide string

type PositionStatus string

const (
	PositionSideLong  PositionSide = "LONG"
	PositionSideShort PositionSide = "SHORT"
)

const (
	// PositionStatusOpen marks a position with live market exposure.
	PositionStatusOpen PositionStatus = "OPEN"
	// PositionStatusClosed is terminal; a closed position never transitions again.
	PositionStatusClosed PositionStatus = "CLOSED"
)

// FillResult is the execution collaborator's report of a completed order.
type FillResult struct {
	// Price is the fill price in USD.
	Price float64 `json:"price" yaml:"price"`
	// Timestamp is when the fill occurred.
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// Position represents one directional exposure owned by a single account.
//
// NotionalUSD is the margin-independent market exposure at entry, so
// leverage scales P&L rather than position size. The margin at risk is
// NotionalUSD / Leverage, and losses are bounded by that margin the way
// an isolated-margin position is bounded by liquidation.
type Position struct {
	// ID is an opaque identifier, unique per account, assigned at open.
	ID string `json:"id" yaml:"id"`
	// Asset is the canonical uppercase symbol.
	Asset string `json:"asset" yaml:"asset"`
	// Side is the direction of the exposure.
	Side PositionSide `json:"side" yaml:"side"`
	// NotionalUSD is the USD market exposure at entry.
	NotionalUSD float64 `json:"notional_usd" yaml:"notional_usd"`
	// Leverage is the P&L multiplier.
	Leverage float64 `json:"leverage" yaml:"leverage"`
	// EntryPrice is the fill price at open.
	EntryPrice float64 `json:"entry_price" yaml:"entry_price"`
	// EntryTime is the decision timestamp at open.
	EntryTime time.Time `json:"entry_time" yaml:"entry_time"`
	// Status is OPEN until the position is closed, then terminal.
	Status PositionStatus `json:"status" yaml:"status"`
	// UnrealizedPnL is the P&L at the most recent mark. Zero after close.
	UnrealizedPnL float64 `json:"unrealized_pnl" yaml:"unrealized_pnl"`
	// ExitPlan carries the exit intent recorded with the opening decision.
	ExitPlan optional.Option[ExitPlan] `json:"exit_plan" yaml:"exit_plan"`
	// ExitPrice is present only once the position is closed.
	ExitPrice optional.Option[float64] `json:"exit_price" yaml:"exit_price"`
	// ExitTime is present only once the position is closed.
	ExitTime optional.Option[time.Time] `json:"exit_time" yaml:"exit_time"`
	// RealizedPnL is the fee-inclusive realized P&L, present only once closed.
	RealizedPnL optional.Option[float64] `json:"realized_pnl" yaml:"realized_pnl"`
	// Fee is the taker fee charged at close. Zero while open.
	Fee float64 `json:"fee" yaml:"fee"`
}

// Margin returns the margin at risk for this position in USD.
func (p *Position) Margin() float64 {
	if p.Leverage <= 0 {
		return 0
	}

	margin, _ := decimal.NewFromFloat(p.NotionalUSD).
		Div(decimal.NewFromFloat(p.Leverage)).
		Float64()

	return margin
}

// PnLAt computes the position's P&L at the given price:
//
//	(price - entry) / entry * notional * leverage   for longs
//	(entry - price) / entry * notional * leverage   for shorts
//
// Losses are clamped at the margin at risk, mirroring liquidation of an
// isolated-margin position. The arithmetic is done in decimals so the
// literal cases in the tests come out exact.
func (p *Position) PnLAt(price float64) float64 {
	if p.EntryPrice <= 0 {
		return 0
	}

	entryDec := decimal.NewFromFloat(p.EntryPrice)
	moveDec := decimal.NewFromFloat(price).Sub(entryDec)

	if p.Side == PositionSideShort {
		moveDec = moveDec.Neg()
	}

	pnlDec := moveDec.
		Div(entryDec).
		Mul(decimal.NewFromFloat(p.NotionalUSD)).
		Mul(decimal.NewFromFloat(p.Leverage))

	marginDec := decimal.NewFromFloat(p.Margin())
	if pnlDec.LessThan(marginDec.Neg()) {
		pnlDec = marginDec.Neg()
	}

	pnl, _ := pnlDec.Float64()

	return pnl
}

// LiquidationPrice returns the price at which the position's loss would
// reach 100% of its margin. A 5x long entered at 100 liquidates at 80.
func (p *Position) LiquidationPrice() float64 {
	if p.Leverage <= 0 {
		return 0
	}

	threshold := 1.0 / p.Leverage

	if p.Side == PositionSideLong {
		return p.EntryPrice * (1 - threshold)
	}

	return p.EntryPrice * (1 + threshold)
}
