package types

import (
	"github.com/go-playground/validator/v10"

	"github.com/kepler-lab/kepler-trading/pkg/errors"
)

// RiskLimits is the immutable per-run risk configuration consulted by the
// risk gate. It is supplied at startup and read-only afterwards; there is
// no ambient global settings object.
type RiskLimits struct {
	// MaxPositionSizeUSD caps the notional of a single position.
	MaxPositionSizeUSD float64 `json:"max_position_size_usd" yaml:"max_position_size_usd" validate:"required,gt=0"`
	// MaxLeverage caps decision leverage. The schema ceiling is 20x.
	MaxLeverage float64 `json:"max_leverage" yaml:"max_leverage" validate:"required,gt=0,lte=20"`
	// DailyLossLimitUSD bounds worst-case realized loss per UTC day.
	DailyLossLimitUSD float64 `json:"daily_loss_limit_usd" yaml:"daily_loss_limit_usd" validate:"gte=0"`
	// MaxPortfolioExposureUSD caps the sum of open position notionals.
	MaxPortfolioExposureUSD float64 `json:"max_portfolio_exposure_usd" yaml:"max_portfolio_exposure_usd" validate:"required,gt=0"`
}

// Validate validates the RiskLimits struct.
func (r *RiskLimits) Validate() error {
	validate := validator.New()
	if err := validate.Struct(r); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid risk limits", err)
	}

	return nil
}
