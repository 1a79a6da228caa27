package decision

import (
	"math"
	"strings"

	"github.com/moznion/go-optional"

	"github.com/kepler-lab/kepler-trading/internal/types"
	"github.com/kepler-lab/kepler-trading/pkg/errors"
)

const (
	// maxNotionalUSD is the structural sanity ceiling on position size.
	// The account-level cap in RiskLimits is enforced later by the risk gate.
	maxNotionalUSD = 1_000_000
	// maxLeverage is the schema ceiling on leverage. Account-level caps
	// may be tighter; those belong to the risk gate, not the validator.
	maxLeverage = 20.0
	// minJustificationLen is a sanity floor against empty or garbage
	// justifications.
	minJustificationLen = 10
)

// Validator checks raw payloads against the decision schema and the
// configured tradable asset universe. It is pure: same payload in, same
// outcome out, no I/O and no retries.
type Validator struct {
	// canonical maps the normalized (uppercase) form of each tradable
	// asset to itself; lookups are case-insensitive.
	canonical map[string]string
}

// NewValidator creates a Validator for the given tradable assets.
func NewValidator(tradableAssets []string) (*Validator, error) {
	canonical := make(map[string]string, len(tradableAssets))

	for _, asset := range tradableAssets {
		normalized := strings.ToUpper(strings.TrimSpace(asset))
		if normalized == "" {
			continue
		}

		canonical[normalized] = normalized
	}

	if len(canonical) == 0 {
		return nil, errors.New(errors.ErrCodeNoTradableAssets, "no tradable assets configured")
	}

	return &Validator{canonical: canonical}, nil
}

// Validate converts a raw payload into a TradeDecision or fails with a
// FieldError naming the offending field and reason. Checks run in a fixed
// order and short-circuit on the first failure:
//
//	asset, signal, notional, leverage, confidence, exit plan, justification.
//
// An entering decision with a wholly absent exit plan is accepted; the
// caller is expected to log that condition.
func (v *Validator) Validate(payload RawPayload) (types.TradeDecision, error) {
	asset, err := v.validateAsset(payload.Asset)
	if err != nil {
		return types.TradeDecision{}, err
	}

	signal, err := validateSignal(payload.Signal)
	if err != nil {
		return types.TradeDecision{}, err
	}

	notional, err := validateNotional(payload.NotionalUSD, signal)
	if err != nil {
		return types.TradeDecision{}, err
	}

	leverage, err := validateLeverage(payload.Leverage)
	if err != nil {
		return types.TradeDecision{}, err
	}

	confidence, err := validateConfidence(payload.Confidence)
	if err != nil {
		return types.TradeDecision{}, err
	}

	exitPlan, err := validateExitPlan(payload.ExitPlan, signal)
	if err != nil {
		return types.TradeDecision{}, err
	}

	justification, err := validateJustification(payload.Justification)
	if err != nil {
		return types.TradeDecision{}, err
	}

	return types.TradeDecision{
		Asset:         asset,
		Signal:        signal,
		NotionalUSD:   notional,
		Leverage:      leverage,
		Confidence:    confidence,
		ExitPlan:      exitPlan,
		Justification: justification,
	}, nil
}

func (v *Validator) validateAsset(raw *string) (string, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return "", errors.NewFieldError("asset", errors.ErrCodeMissingField, "asset is required")
	}

	normalized := strings.ToUpper(strings.TrimSpace(*raw))

	canonical, ok := v.canonical[normalized]
	if !ok {
		return "", errors.NewFieldErrorf("asset", errors.ErrCodeUnknownAsset,
			"asset %s is not a configured tradable asset", normalized)
	}

	return canonical, nil
}

func validateSignal(raw *string) (types.TradeSignal, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return "", errors.NewFieldError("signal", errors.ErrCodeMissingField, "signal is required")
	}

	signal, ok := types.ParseSignal(*raw)
	if !ok {
		return "", errors.NewFieldErrorf("signal", errors.ErrCodeInvalidSignal,
			"unrecognized signal %q", *raw)
	}

	return signal, nil
}

func validateNotional(raw *float64, signal types.TradeSignal) (float64, error) {
	if raw == nil {
		return 0, errors.NewFieldError("notional_usd", errors.ErrCodeMissingField, "notional_usd is required")
	}

	notional := *raw
	if math.IsNaN(notional) || math.IsInf(notional, 0) {
		return 0, errors.NewFieldError("notional_usd", errors.ErrCodeNonFiniteNumber, "notional_usd must be finite")
	}

	if notional < 0 || notional >= maxNotionalUSD {
		return 0, errors.NewFieldErrorf("notional_usd", errors.ErrCodeNotionalOutOfRange,
			"notional_usd %.2f outside [0, %d)", notional, maxNotionalUSD)
	}

	// A zero-notional entry carries no exposure; reject it instead of
	// applying a no-op open.
	if notional == 0 && signal.IsEntry() {
		return 0, errors.NewFieldError("notional_usd", errors.ErrCodeZeroNotional,
			"entering signal requires a positive notional")
	}

	return notional, nil
}

func validateLeverage(raw *float64) (float64, error) {
	if raw == nil {
		return 0, errors.NewFieldError("leverage", errors.ErrCodeMissingField, "leverage is required")
	}

	leverage := *raw
	if math.IsNaN(leverage) || math.IsInf(leverage, 0) {
		return 0, errors.NewFieldError("leverage", errors.ErrCodeNonFiniteNumber, "leverage must be finite")
	}

	if leverage <= 0 || leverage > maxLeverage {
		return 0, errors.NewFieldErrorf("leverage", errors.ErrCodeLeverageOutOfRange,
			"leverage %.2f outside (0, %.0f]", leverage, maxLeverage)
	}

	return leverage, nil
}

func validateConfidence(raw *float64) (float64, error) {
	if raw == nil {
		return 0, errors.NewFieldError("confidence", errors.ErrCodeMissingField, "confidence is required")
	}

	confidence := *raw
	if math.IsNaN(confidence) || math.IsInf(confidence, 0) {
		return 0, errors.NewFieldError("confidence", errors.ErrCodeNonFiniteNumber, "confidence must be finite")
	}

	if confidence < 0 || confidence > 1 {
		return 0, errors.NewFieldErrorf("confidence", errors.ErrCodeConfidenceOutOfRange,
			"confidence %.2f outside [0, 1]", confidence)
	}

	return confidence, nil
}

// validateExitPlan checks the optional exit plan of entering signals.
// Plans attached to hold/close decisions carry no meaning and are dropped.
func validateExitPlan(raw *RawExitPlan, signal types.TradeSignal) (optional.Option[types.ExitPlan], error) {
	if raw == nil || !signal.IsEntry() {
		return optional.None[types.ExitPlan](), nil
	}

	if err := validatePlanPrice("exit_plan.profit_target", raw.ProfitTarget); err != nil {
		return optional.None[types.ExitPlan](), err
	}

	if err := validatePlanPrice("exit_plan.stop_loss", raw.StopLoss); err != nil {
		return optional.None[types.ExitPlan](), err
	}

	// Relational sanity: when both prices are given, the stop must sit on
	// the losing side of the target for the chosen direction.
	if raw.ProfitTarget != nil && raw.StopLoss != nil {
		target, stop := *raw.ProfitTarget, *raw.StopLoss

		if signal == types.SignalEnterLong && stop >= target {
			return optional.None[types.ExitPlan](), errors.NewFieldErrorf("exit_plan", errors.ErrCodeInvalidExitPlan,
				"stop loss %.2f is not below profit target %.2f for a long entry", stop, target)
		}

		if signal == types.SignalEnterShort && stop <= target {
			return optional.None[types.ExitPlan](), errors.NewFieldErrorf("exit_plan", errors.ErrCodeInvalidExitPlan,
				"stop loss %.2f is not above profit target %.2f for a short entry", stop, target)
		}
	}

	plan := types.ExitPlan{
		ProfitTarget:          optional.FromNillable(raw.ProfitTarget),
		StopLoss:              optional.FromNillable(raw.StopLoss),
		InvalidationCondition: optional.FromNillable(raw.InvalidationCondition),
	}

	return optional.Some(plan), nil
}

func validatePlanPrice(field string, raw *float64) error {
	if raw == nil {
		return nil
	}

	price := *raw
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return errors.NewFieldErrorf(field, errors.ErrCodeInvalidExitPlan,
			"%s must be a positive finite price", field)
	}

	return nil
}

func validateJustification(raw *string) (string, error) {
	if raw == nil {
		return "", errors.NewFieldError("justification", errors.ErrCodeMissingField, "justification is required")
	}

	justification := strings.TrimSpace(*raw)
	if len(justification) < minJustificationLen {
		return "", errors.NewFieldErrorf("justification", errors.ErrCodeJustificationTooShort,
			"justification must be at least %d characters after trimming", minJustificationLen)
	}

	return justification, nil
}
