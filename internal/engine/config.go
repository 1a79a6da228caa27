package engine

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/kepler-lab/kepler-trading/internal/ledger/fee"
	"github.com/kepler-lab/kepler-trading/internal/types"
	"github.com/kepler-lab/kepler-trading/pkg/errors"
)

const secondsPerYear = 365 * 24 * 3600

// Config drives a paper trading engine instance.
type Config struct {
	StartingCapitalUSD float64          `yaml:"starting_capital_usd" validate:"gt=0"`
	TradableAssets     []string         `yaml:"tradable_assets" validate:"min=1,dive,required"`
	Interval           time.Duration    `yaml:"interval" validate:"gt=0"`
	FeeModel           fee.Model        `yaml:"fee_model" validate:"oneof=taker zero"`
	TakerFeeRate       float64          `yaml:"taker_fee_rate" validate:"gte=0,lt=1"`
	Limits             types.RiskLimits `yaml:"risk_limits"`
	AuditPath          string           `yaml:"audit_path"`
}

// UnmarshalYAML decodes the interval from a duration string such as
// "180s" or "3m". Absent keys leave the receiver untouched, which is
// how LoadConfig layers a file over the defaults.
func (c *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type rawConfig struct {
		StartingCapitalUSD *float64          `yaml:"starting_capital_usd"`
		TradableAssets     []string          `yaml:"tradable_assets"`
		Interval           *string           `yaml:"interval"`
		FeeModel           *fee.Model        `yaml:"fee_model"`
		TakerFeeRate       *float64          `yaml:"taker_fee_rate"`
		Limits             *types.RiskLimits `yaml:"risk_limits"`
		AuditPath          *string           `yaml:"audit_path"`
	}

	var raw rawConfig
	if err := unmarshal(&raw); err != nil {
		return err
	}

	if raw.StartingCapitalUSD != nil {
		c.StartingCapitalUSD = *raw.StartingCapitalUSD
	}
	if raw.TradableAssets != nil {
		c.TradableAssets = raw.TradableAssets
	}
	if raw.Interval != nil {
		interval, err := time.ParseDuration(*raw.Interval)
		if err != nil {
			return errors.Wrapf(errors.ErrCodeInvalidConfiguration,
				err, "invalid interval %q", *raw.Interval)
		}
		c.Interval = interval
	}
	if raw.FeeModel != nil {
		c.FeeModel = *raw.FeeModel
	}
	if raw.TakerFeeRate != nil {
		c.TakerFeeRate = *raw.TakerFeeRate
	}
	if raw.Limits != nil {
		c.Limits = *raw.Limits
	}
	if raw.AuditPath != nil {
		c.AuditPath = *raw.AuditPath
	}

	return nil
}

// DefaultConfig returns the stock paper trading setup: 1000 USD of
// capital, the three majors, a 3 minute cycle and conservative limits.
func DefaultConfig() Config {
	return Config{
		StartingCapitalUSD: 1000,
		TradableAssets:     []string{"BTC", "ETH", "SOL"},
		Interval:           180 * time.Second,
		FeeModel:           fee.ModelTaker,
		TakerFeeRate:       fee.DefaultTakerRate,
		Limits: types.RiskLimits{
			MaxPositionSizeUSD:      50,
			MaxLeverage:             5,
			DailyLossLimitUSD:       20,
			MaxPortfolioExposureUSD: 150,
		},
		AuditPath: "",
	}
}

// Validate checks the config with struct tags plus the limits' own rules.
func (c Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration,
			"invalid engine config", err)
	}

	return c.Limits.Validate()
}

// Annualization returns the number of cycles per year, used to scale
// the Sharpe ratio.
func (c Config) Annualization() float64 {
	return secondsPerYear / c.Interval.Seconds()
}

// LoadConfig reads a YAML config file over the defaults, so a partial
// file only overrides what it names.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()

	content, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(errors.ErrCodeConfigReadFailed,
			err, "failed to read config %s", path)
	}

	if err := yaml.Unmarshal(content, &config); err != nil {
		return Config{}, errors.Wrapf(errors.ErrCodeInvalidConfiguration,
			err, "failed to parse config %s", path)
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}
