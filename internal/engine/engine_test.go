package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/kepler-lab/kepler-trading/internal/logger"
	"github.com/kepler-lab/kepler-trading/internal/types"
	"github.com/kepler-lab/kepler-trading/pkg/errors"
)

// captureRecorder stores every recorded result in memory.
type captureRecorder struct {
	results []CycleResult
	fail    bool
}

func (r *captureRecorder) Record(result CycleResult) error {
	if r.fail {
		return errors.New(errors.ErrCodeAuditWriteFailed, "forced failure")
	}

	r.results = append(r.results, result)

	return nil
}

type EngineTestSuite struct {
	suite.Suite
	engine   *Engine
	recorder *captureRecorder
	ctx      context.Context
	now      time.Time
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}

func (suite *EngineTestSuite) SetupTest() {
	suite.recorder = &captureRecorder{}

	engine, err := NewEngine(DefaultConfig(), NewPaperExecution(), suite.recorder,
		logger.NewNopLogger())
	suite.Require().NoError(err)

	suite.engine = engine
	suite.ctx = context.Background()
	suite.now = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
}

const entryResponse = `Market structure looks constructive here.

` + "```json" + `
{
  "asset": "BTC",
  "signal": "enter_long",
  "notional_usd": 40,
  "leverage": 2,
  "confidence": 0.8,
  "exit_plan": {
    "profit_target": 66000,
    "stop_loss": 57000,
    "invalidation_condition": "daily close below the range low"
  },
  "justification": "breakout above weekly resistance with rising volume"
}
` + "```" + `

Watching the range low for invalidation.`

const holdResponse = `{"asset":"BTC","signal":"hold","notional_usd":0,"leverage":1,` +
	`"confidence":0.5,"justification":"no edge at current levels"}`

const closeResponse = `{"asset":"BTC","signal":"close","notional_usd":0,"leverage":1,` +
	`"confidence":0.9,"justification":"target reached, taking profit"}`

func (suite *EngineTestSuite) TestEntryCycleApplied() {
	result := suite.engine.ProcessCycle(suite.ctx, "BTC", entryResponse, 60000, suite.now)

	suite.Equal(StageApply, result.Stage)
	suite.True(result.Applied)
	suite.Empty(result.RejectReason)

	decision, err := result.Decision.Take()
	suite.Require().NoError(err)
	suite.Equal(types.SignalEnterLong, decision.Signal)

	position, err := result.Position.Take()
	suite.Require().NoError(err)
	suite.Equal(types.PositionSideLong, position.Side)
	suite.Equal(60000.0, position.EntryPrice)
	suite.True(position.ExitPlan.IsSome())

	suite.Equal(1000.0, result.Account.Balance)
	suite.Equal(1, result.Account.NumPositions)
	suite.Equal(40.0, result.Account.Exposure)
	suite.Equal(20.0, result.Account.MarginUsed)

	suite.Require().Len(suite.recorder.results, 1)
	suite.True(suite.recorder.results[0].Applied)
}

func (suite *EngineTestSuite) TestHoldCycle() {
	result := suite.engine.ProcessCycle(suite.ctx, "BTC", holdResponse, 60000, suite.now)

	suite.Equal(StageApply, result.Stage)
	suite.True(result.Applied)
	suite.True(result.Position.IsNone())
	suite.Equal(0, result.Account.NumPositions)
}

func (suite *EngineTestSuite) TestFullLifecycle() {
	entry := suite.engine.ProcessCycle(suite.ctx, "BTC", entryResponse, 60000, suite.now)
	suite.Require().True(entry.Applied)

	closed := suite.engine.ProcessCycle(suite.ctx, "BTC", closeResponse, 61000,
		suite.now.Add(3*time.Minute))
	suite.Require().True(closed.Applied)

	position, err := closed.Position.Take()
	suite.Require().NoError(err)
	suite.Equal(types.PositionStatusClosed, position.Status)

	// 40 USD at 2x over +1.6667%: gross 1.3333, fee 0.008, net 1.3253.
	suite.InDelta(1.3253, position.RealizedPnL.TakeOr(0), 0.0001)
	suite.InDelta(1001.3253, closed.Account.Balance, 0.0001)
	suite.InDelta(1001.3253, closed.Account.Equity, 0.0001)
	suite.Equal(0, closed.Account.NumPositions)
}

func (suite *EngineTestSuite) TestGarbageResponseRejectedAtExtract() {
	result := suite.engine.ProcessCycle(suite.ctx, "BTC",
		"I cannot decide right now, markets are too volatile.", 60000, suite.now)

	suite.Equal(StageExtract, result.Stage)
	suite.False(result.Applied)
	suite.Equal(errors.ErrCodeNoObjectFound, result.RejectCode)
	suite.True(result.Decision.IsNone())
	suite.Equal(1000.0, result.Account.Balance)

	// The offending text travels with the result for later analysis.
	suite.Equal("I cannot decide right now, markets are too volatile.", result.RawResponse)
	suite.Require().Len(suite.recorder.results, 1)
	suite.Equal(result.RawResponse, suite.recorder.results[0].RawResponse)
}

func (suite *EngineTestSuite) TestInvalidFieldRejectedAtValidate() {
	response := `{"asset":"BTC","signal":"enter_long","notional_usd":40,"leverage":25,` +
		`"confidence":0.8,"justification":"leverage far beyond the schema cap"}`

	result := suite.engine.ProcessCycle(suite.ctx, "BTC", response, 60000, suite.now)

	suite.Equal(StageValidate, result.Stage)
	suite.False(result.Applied)
	suite.Equal(errors.ErrCodeLeverageOutOfRange, result.RejectCode)
}

func (suite *EngineTestSuite) TestOversizedEntryRejectedAtRisk() {
	response := `{"asset":"BTC","signal":"enter_long","notional_usd":500,"leverage":2,` +
		`"confidence":0.9,"justification":"very confident in this breakout"}`

	result := suite.engine.ProcessCycle(suite.ctx, "BTC", response, 60000, suite.now)

	suite.Equal(StageRisk, result.Stage)
	suite.False(result.Applied)
	suite.Equal(errors.ErrCodePositionSizeExceeded, result.RejectCode)
	suite.True(result.Decision.IsSome())
	suite.Equal(0, result.Account.NumPositions)
}

func (suite *EngineTestSuite) TestDuplicateEntryRejected() {
	first := suite.engine.ProcessCycle(suite.ctx, "BTC", entryResponse, 60000, suite.now)
	suite.Require().True(first.Applied)

	second := suite.engine.ProcessCycle(suite.ctx, "BTC", entryResponse, 60500,
		suite.now.Add(3*time.Minute))
	suite.Equal(StageRisk, second.Stage)
	suite.Equal(errors.ErrCodeDuplicatePosition, second.RejectCode)
	suite.Equal(1, second.Account.NumPositions)
}

func (suite *EngineTestSuite) TestCloseWithoutPositionRejected() {
	result := suite.engine.ProcessCycle(suite.ctx, "BTC", closeResponse, 60000, suite.now)

	suite.Equal(StageRisk, result.Stage)
	suite.Equal(errors.ErrCodeNoPositionToClose, result.RejectCode)
}

// A bad price observation fails before extraction even runs, and the
// result says so rather than blaming a later stage.
func (suite *EngineTestSuite) TestInvalidCyclePriceRejected() {
	result := suite.engine.ProcessCycle(suite.ctx, "BTC", entryResponse, 0, suite.now)

	suite.False(result.Applied)
	suite.Equal(StagePrice, result.Stage)
	suite.Equal(errors.ErrCodeInvalidPrice, result.RejectCode)
	suite.Equal(entryResponse, result.RawResponse)
}

// The model may answer for another tradable asset; the cycle follows the
// decision but needs a price observation for that asset first.
func (suite *EngineTestSuite) TestDecisionForUnpricedAssetRejected() {
	response := `{"asset":"ETH","signal":"enter_long","notional_usd":40,"leverage":2,` +
		`"confidence":0.8,"justification":"rotation into ETH looks imminent"}`

	result := suite.engine.ProcessCycle(suite.ctx, "BTC", response, 60000, suite.now)

	suite.Equal(StageRisk, result.Stage)
	suite.Equal(errors.ErrCodeMissingAssetPrice, result.RejectCode)
}

func (suite *EngineTestSuite) TestDecisionForOtherPricedAssetApplied() {
	hold := suite.engine.ProcessCycle(suite.ctx, "ETH", holdResponse, 2000, suite.now)
	suite.Require().True(hold.Applied)

	response := `{"asset":"ETH","signal":"enter_long","notional_usd":40,"leverage":2,` +
		`"confidence":0.8,"justification":"rotation into ETH looks imminent"}`

	result := suite.engine.ProcessCycle(suite.ctx, "BTC", response, 60000,
		suite.now.Add(3*time.Minute))
	suite.Require().True(result.Applied)

	position, err := result.Position.Take()
	suite.Require().NoError(err)
	suite.Equal("ETH", position.Asset)
	suite.Equal(2000.0, position.EntryPrice)
}

func (suite *EngineTestSuite) TestMarksRefreshEachCycle() {
	entry := suite.engine.ProcessCycle(suite.ctx, "BTC", entryResponse, 60000, suite.now)
	suite.Require().True(entry.Applied)

	hold := suite.engine.ProcessCycle(suite.ctx, "BTC", holdResponse, 61000,
		suite.now.Add(3*time.Minute))

	// 40 at 2x over +1.6667% marks 1.3333 unrealized.
	suite.InDelta(1.3333, hold.Account.UnrealizedPnL, 0.0001)
	suite.InDelta(1001.3333, hold.Account.Equity, 0.0001)
	suite.Equal(1000.0, hold.Account.Balance)
}

func (suite *EngineTestSuite) TestRecorderFailureDoesNotFailCycle() {
	suite.recorder.fail = true

	result := suite.engine.ProcessCycle(suite.ctx, "BTC", entryResponse, 60000, suite.now)
	suite.True(result.Applied)
}

func (suite *EngineTestSuite) TestEveryCycleRecordsEquity() {
	suite.engine.ProcessCycle(suite.ctx, "BTC", "garbage", 60000, suite.now)
	suite.engine.ProcessCycle(suite.ctx, "BTC", holdResponse, 60000, suite.now.Add(3*time.Minute))

	suite.Len(suite.engine.Account().History(), 2)
}

func (suite *EngineTestSuite) TestNewEngineValidation() {
	config := DefaultConfig()
	config.StartingCapitalUSD = -5

	_, err := NewEngine(config, NewPaperExecution(), nil, nil)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))

	_, err = NewEngine(DefaultConfig(), nil, nil, nil)
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}
