package engine

import (
	"context"
	"time"

	"github.com/kepler-lab/kepler-trading/internal/types"
	"github.com/kepler-lab/kepler-trading/pkg/errors"
)

// PaperExecution fills every order instantly at the mark price with no
// slippage.
type PaperExecution struct{}

// NewPaperExecution creates a paper execution adapter.
func NewPaperExecution() *PaperExecution {
	return &PaperExecution{}
}

// PlaceOrder fills at the mark price.
func (p *PaperExecution) PlaceOrder(
	ctx context.Context,
	asset string,
	side types.PositionSide,
	notionalUSD, leverage, markPrice float64,
	now time.Time,
) (types.FillResult, error) {
	if err := ctx.Err(); err != nil {
		return types.FillResult{}, errors.Wrap(errors.ErrCodeUnknown,
			"order cancelled", err)
	}

	if markPrice <= 0 {
		return types.FillResult{}, errors.Newf(errors.ErrCodeInvalidPrice,
			"mark price %.4f must be positive", markPrice)
	}

	return types.FillResult{
		Price:     markPrice,
		Timestamp: now,
	}, nil
}

// CloseOrder fills at the mark price.
func (p *PaperExecution) CloseOrder(
	ctx context.Context,
	asset string,
	markPrice float64,
	now time.Time,
) (types.FillResult, error) {
	if err := ctx.Err(); err != nil {
		return types.FillResult{}, errors.Wrap(errors.ErrCodeUnknown,
			"order cancelled", err)
	}

	if markPrice <= 0 {
		return types.FillResult{}, errors.Newf(errors.ErrCodeInvalidPrice,
			"mark price %.4f must be positive", markPrice)
	}

	return types.FillResult{
		Price:     markPrice,
		Timestamp: now,
	}, nil
}
