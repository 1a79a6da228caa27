package types

import (
	"strings"

	"github.com/moznion/go-optional"
)

// TradeSignal is the action requested by a trade decision.
type TradeSignal string

const (
	// SignalEnterLong opens a new long position.
	SignalEnterLong TradeSignal = "enter_long"
	// SignalEnterShort opens a new short position.
	SignalEnterShort TradeSignal = "enter_short"
	// SignalHold takes no action this cycle.
	SignalHold TradeSignal = "hold"
	// SignalClose closes the open position for the asset.
	SignalClose TradeSignal = "close"
)

// AllSignals lists every recognized trade signal.
var AllSignals = []TradeSignal{
	SignalEnterLong,
	SignalEnterShort,
	SignalHold,
	SignalClose,
}

// ParseSignal matches a raw signal string case-insensitively against the
// recognized signals. Unrecognized values are rejected, never coerced.
func ParseSignal(raw string) (TradeSignal, bool) {
	normalized := TradeSignal(strings.ToLower(strings.TrimSpace(raw)))
	for _, signal := range AllSignals {
		if normalized == signal {
			return signal, true
		}
	}

	return "", false
}

// IsEntry reports whether the signal opens a new directional position.
func (s TradeSignal) IsEntry() bool {
	return s == SignalEnterLong || s == SignalEnterShort
}

// IsActionable reports whether the signal requires a ledger mutation.
func (s TradeSignal) IsActionable() bool {
	return s.IsEntry() || s == SignalClose
}

// ExitPlan describes the exit intent attached to an entering decision.
// All fields are optional; a wholly absent plan means "no plan given yet".
type ExitPlan struct {
	// ProfitTarget is the price at which profit should be taken.
	ProfitTarget optional.Option[float64] `json:"profit_target" yaml:"profit_target"`
	// StopLoss is the price at which the position should be abandoned.
	StopLoss optional.Option[float64] `json:"stop_loss" yaml:"stop_loss"`
	// InvalidationCondition is a free-text condition that voids the trade thesis.
	InvalidationCondition optional.Option[string] `json:"invalidation_condition" yaml:"invalidation_condition"`
}

// IsEmpty reports whether no exit parameters were supplied at all.
func (p ExitPlan) IsEmpty() bool {
	return p.ProfitTarget.IsNone() && p.StopLoss.IsNone() && p.InvalidationCondition.IsNone()
}

// TradeDecision is a validated trading decision derived from raw model
// output. It is immutable after validation: the validator either produces
// one of these or a typed rejection, never a partially valid value.
type TradeDecision struct {
	// Asset is the canonical uppercase symbol of the tradable asset.
	Asset string `json:"asset" yaml:"asset"`
	// Signal is the requested action.
	Signal TradeSignal `json:"signal" yaml:"signal"`
	// NotionalUSD is the USD market exposure of the position at entry.
	NotionalUSD float64 `json:"notional_usd" yaml:"notional_usd"`
	// Leverage scales P&L per unit price move, not position size.
	Leverage float64 `json:"leverage" yaml:"leverage"`
	// Confidence is the model's self-reported confidence in [0, 1].
	Confidence float64 `json:"confidence" yaml:"confidence"`
	// ExitPlan is optional for entering signals and absent for hold/close.
	ExitPlan optional.Option[ExitPlan] `json:"exit_plan" yaml:"exit_plan"`
	// Justification is the model's reasoning, kept for the audit trail.
	Justification string `json:"justification" yaml:"justification"`
}

// Side maps an entering signal to the side of the resulting position.
// The second return value is false for non-entering signals.
func (d TradeDecision) Side() (PositionSide, bool) {
	switch d.Signal {
	case SignalEnterLong:
		return PositionSideLong, true
	case SignalEnterShort:
		return PositionSideShort, true
	default:
		return "", false
	}
}
