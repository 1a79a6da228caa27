// Package engine orchestrates one trading cycle: extract the decision
// from the model's raw response, validate it, run the risk gate, execute
// through the adapter and apply the fill to the ledger. No mutation
// starts before the gate approves, so a rejected cycle leaves the
// account exactly as it found it.
package engine

import (
	"context"
	"time"

	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/kepler-lab/kepler-trading/internal/account"
	"github.com/kepler-lab/kepler-trading/internal/decision"
	"github.com/kepler-lab/kepler-trading/internal/ledger"
	"github.com/kepler-lab/kepler-trading/internal/ledger/fee"
	"github.com/kepler-lab/kepler-trading/internal/logger"
	"github.com/kepler-lab/kepler-trading/internal/risk"
	"github.com/kepler-lab/kepler-trading/internal/types"
	"github.com/kepler-lab/kepler-trading/pkg/errors"
)

// Stage identifies how far a cycle progressed before completing or
// being rejected.
type Stage string

const (
	// StagePrice is the intake precondition: the cycle's own price
	// observation must be usable before anything runs.
	StagePrice    Stage = "price"
	StageExtract  Stage = "extract"
	StageValidate Stage = "validate"
	StageRisk     Stage = "risk"
	StageExecute  Stage = "execute"
	StageApply    Stage = "apply"
)

// CycleResult is the immutable record of one processed cycle.
type CycleResult struct {
	Asset     string
	Timestamp time.Time
	// RawResponse is the unmodified model output the cycle was fed, kept
	// so every rejection can be analyzed against the text that caused it.
	RawResponse string
	// Stage is the last stage the cycle reached. Applied tells whether
	// it completed there or was rejected.
	Stage        Stage
	Applied      bool
	Decision     optional.Option[types.TradeDecision]
	Position     optional.Option[types.Position]
	RejectCode   errors.ErrorCode
	RejectReason string
	Account      types.AccountInfo
}

// ExecutionAdapter turns an approved decision into a fill. markPrice is
// the latest observed price for the asset; paper adapters fill at it,
// live adapters may ignore it.
type ExecutionAdapter interface {
	PlaceOrder(ctx context.Context, asset string, side types.PositionSide,
		notionalUSD, leverage, markPrice float64, now time.Time) (types.FillResult, error)
	CloseOrder(ctx context.Context, asset string, markPrice float64,
		now time.Time) (types.FillResult, error)
}

// Recorder receives every cycle result. Recording failures never fail
// the cycle.
type Recorder interface {
	Record(result CycleResult) error
}

// Engine runs the per-cycle pipeline over a single paper account.
type Engine struct {
	config    Config
	validator *decision.Validator
	gate      *risk.Gate
	ledger    *ledger.Ledger
	account   *account.Account
	execution ExecutionAdapter
	recorder  Recorder
	log       *logger.Logger
	// Latest observed price per asset, fed by ProcessCycle calls.
	prices map[string]float64
}

// NewEngine wires an engine from config. recorder may be nil to disable
// the audit trail.
func NewEngine(
	config Config,
	execution ExecutionAdapter,
	recorder Recorder,
	log *logger.Logger,
) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if execution == nil {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration,
			"engine requires an execution adapter")
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	validator, err := decision.NewValidator(config.TradableAssets)
	if err != nil {
		return nil, err
	}

	gate, err := risk.NewGate(config.Limits, log)
	if err != nil {
		return nil, err
	}

	positionLedger := ledger.NewLedger(
		fee.GetFeeHandler(config.FeeModel, config.TakerFeeRate), log)

	acct, err := account.NewAccount(
		config.StartingCapitalUSD, config.Annualization(), positionLedger, log)
	if err != nil {
		return nil, err
	}

	return &Engine{
		config:    config,
		validator: validator,
		gate:      gate,
		ledger:    positionLedger,
		account:   acct,
		execution: execution,
		recorder:  recorder,
		log:       log,
		prices:    make(map[string]float64),
	}, nil
}

// Account returns the engine's account aggregator.
func (e *Engine) Account() *account.Account {
	return e.account
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config {
	return e.config
}

// ProcessCycle runs one full cycle for the asset: the raw model
// response is parsed and validated, the resulting decision is gated,
// executed and applied, and the refreshed account summary is attached
// to the returned result. The pipeline stops at the first failure and
// the result records the stage and reason.
func (e *Engine) ProcessCycle(
	ctx context.Context,
	asset string,
	rawResponse string,
	price float64,
	now time.Time,
) CycleResult {
	result := CycleResult{
		Asset:       asset,
		Timestamp:   now,
		RawResponse: rawResponse,
		Stage:       StagePrice,
		Decision:    optional.None[types.TradeDecision](),
		Position:    optional.None[types.Position](),
	}

	if price <= 0 {
		return e.finish(e.reject(result, errors.Newf(errors.ErrCodeInvalidPrice,
			"cycle price %.4f for %s must be positive", price, asset)), now)
	}

	e.prices[asset] = price
	e.ledger.MarkAll(e.prices)

	payload, err := decision.ExtractPayload(rawResponse)
	if err != nil {
		result.Stage = StageExtract

		return e.finish(e.reject(result, err), now)
	}

	tradeDecision, err := e.validator.Validate(payload)
	if err != nil {
		result.Stage = StageValidate

		return e.finish(e.reject(result, err), now)
	}

	result.Decision = optional.Some(tradeDecision)
	result.Stage = StageRisk

	// The model may answer for a different tradable asset than the one
	// prompted; the decision's asset wins, at its latest known price.
	decisionPrice := e.prices[tradeDecision.Asset]
	if decisionPrice <= 0 {
		return e.finish(e.reject(result, errors.Newf(errors.ErrCodeMissingAssetPrice,
			"no observed price for %s", tradeDecision.Asset)), now)
	}

	if err := e.gate.Evaluate(tradeDecision, e.account, decisionPrice, now); err != nil {
		return e.finish(e.reject(result, err), now)
	}

	if tradeDecision.Signal.IsEntry() && tradeDecision.ExitPlan.IsNone() {
		e.log.Warn("entry approved without exit plan",
			zap.String("asset", tradeDecision.Asset),
			zap.String("signal", string(tradeDecision.Signal)),
		)
	}

	result = e.apply(ctx, result, tradeDecision, decisionPrice, now)

	return e.finish(result, now)
}

// apply executes the approved decision and records the fill in the
// ledger.
func (e *Engine) apply(
	ctx context.Context,
	result CycleResult,
	tradeDecision types.TradeDecision,
	decisionPrice float64,
	now time.Time,
) CycleResult {
	switch tradeDecision.Signal {
	case types.SignalHold:
		result.Stage = StageApply
		result.Applied = true

		return result

	case types.SignalClose:
		result.Stage = StageExecute

		fill, err := e.execution.CloseOrder(ctx, tradeDecision.Asset, decisionPrice, now)
		if err != nil {
			return e.reject(result, err)
		}

		result.Stage = StageApply

		position, err := e.ledger.Close(tradeDecision.Asset, fill)
		if err != nil {
			return e.reject(result, err)
		}

		result.Position = optional.Some(position)
		result.Applied = true

		return result
	}

	side, ok := tradeDecision.Side()
	if !ok {
		return e.reject(result, errors.Newf(errors.ErrCodeInvalidSignal,
			"signal %s has no position side", tradeDecision.Signal))
	}

	result.Stage = StageExecute

	fill, err := e.execution.PlaceOrder(ctx, tradeDecision.Asset, side,
		tradeDecision.NotionalUSD, tradeDecision.Leverage, decisionPrice, now)
	if err != nil {
		return e.reject(result, err)
	}

	result.Stage = StageApply

	position, err := e.ledger.Open(tradeDecision.Asset, side,
		tradeDecision.NotionalUSD, tradeDecision.Leverage, tradeDecision.ExitPlan, fill)
	if err != nil {
		return e.reject(result, err)
	}

	result.Position = optional.Some(position)
	result.Applied = true

	return result
}

// reject stamps the result with the failure and logs it.
func (e *Engine) reject(result CycleResult, err error) CycleResult {
	result.Applied = false
	result.RejectCode = errors.ReasonOf(err)
	result.RejectReason = err.Error()

	e.log.Info("cycle rejected",
		zap.String("asset", result.Asset),
		zap.String("stage", string(result.Stage)),
		zap.Error(err),
	)

	return result
}

// finish records equity, attaches the account summary and hands the
// result to the recorder.
func (e *Engine) finish(result CycleResult, now time.Time) CycleResult {
	e.account.RecordEquity(now)

	info, err := e.account.Snapshot(e.prices)
	if err != nil {
		e.log.Error("account snapshot failed", zap.Error(err))
	} else {
		result.Account = info
	}

	if e.recorder != nil {
		if err := e.recorder.Record(result); err != nil {
			e.log.Warn("audit record failed", zap.Error(err))
		}
	}

	return result
}
