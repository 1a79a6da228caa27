package types

import (
	"time"

	"github.com/moznion/go-optional"
)

// AccountInfo represents the current account state including balance, equity, and P&L information.
//
// AccountInfo is a derived, read-only snapshot: Equity is always
// Balance + UnrealizedPnL and is never stored as independently mutable
// truth.
type AccountInfo struct {
	// Balance is the realized cash balance (excluding unrealized P&L)
	Balance float64 `json:"balance" yaml:"balance"`
	// Equity is the total account value (balance + unrealized P&L)
	Equity float64 `json:"equity" yaml:"equity"`
	// UnrealizedPnL is the total unrealized profit/loss from open positions
	UnrealizedPnL float64 `json:"unrealized_pnl" yaml:"unrealized_pnl"`
	// RealizedPnL is the total realized profit/loss from closed positions
	RealizedPnL float64 `json:"realized_pnl" yaml:"realized_pnl"`
	// TotalPnL is RealizedPnL + UnrealizedPnL
	TotalPnL float64 `json:"total_pnl" yaml:"total_pnl"`
	// TotalFees is the total fees paid
	TotalFees float64 `json:"total_fees" yaml:"total_fees"`
	// MarginUsed is the margin committed to open positions
	MarginUsed float64 `json:"margin_used" yaml:"margin_used"`
	// Exposure is the sum of open position notionals
	Exposure float64 `json:"exposure" yaml:"exposure"`
	// TotalReturnPct is TotalPnL as a percentage of starting capital
	TotalReturnPct float64 `json:"total_return_pct" yaml:"total_return_pct"`
	// NumPositions is the count of open positions
	NumPositions int `json:"num_positions" yaml:"num_positions"`
	// SharpeRatio is absent when fewer than 2 return observations exist
	// or when the return series has zero variance
	SharpeRatio optional.Option[float64] `json:"sharpe_ratio" yaml:"sharpe_ratio"`
}

// MarshalYAML renders the Sharpe ratio as a plain number, or null when
// absent.
func (a AccountInfo) MarshalYAML() (interface{}, error) {
	type plainAccountInfo struct {
		Balance        float64  `yaml:"balance"`
		Equity         float64  `yaml:"equity"`
		UnrealizedPnL  float64  `yaml:"unrealized_pnl"`
		RealizedPnL    float64  `yaml:"realized_pnl"`
		TotalPnL       float64  `yaml:"total_pnl"`
		TotalFees      float64  `yaml:"total_fees"`
		MarginUsed     float64  `yaml:"margin_used"`
		Exposure       float64  `yaml:"exposure"`
		TotalReturnPct float64  `yaml:"total_return_pct"`
		NumPositions   int      `yaml:"num_positions"`
		SharpeRatio    *float64 `yaml:"sharpe_ratio"`
	}

	plain := plainAccountInfo{
		Balance:        a.Balance,
		Equity:         a.Equity,
		UnrealizedPnL:  a.UnrealizedPnL,
		RealizedPnL:    a.RealizedPnL,
		TotalPnL:       a.TotalPnL,
		TotalFees:      a.TotalFees,
		MarginUsed:     a.MarginUsed,
		Exposure:       a.Exposure,
		TotalReturnPct: a.TotalReturnPct,
		NumPositions:   a.NumPositions,
		SharpeRatio:    nil,
	}

	if sharpe, err := a.SharpeRatio.Take(); err == nil {
		plain.SharpeRatio = &sharpe
	}

	return plain, nil
}

// EquitySnapshot is one observation of account equity over time, used to
// derive the periodic return series behind the Sharpe ratio.
type EquitySnapshot struct {
	// Timestamp is when the snapshot was taken.
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	// Equity is the account equity at that time.
	Equity float64 `json:"equity" yaml:"equity"`
}
