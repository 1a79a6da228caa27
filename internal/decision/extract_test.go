package decision

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/kepler-lab/kepler-trading/pkg/errors"
)

type ExtractTestSuite struct {
	suite.Suite
}

func TestExtractSuite(t *testing.T) {
	suite.Run(t, new(ExtractTestSuite))
}

const bareObject = `{
	"asset": "BTC",
	"signal": "enter_long",
	"notional_usd": 50,
	"leverage": 2,
	"confidence": 0.8,
	"exit_plan": {"profit_target": 111000, "stop_loss": 106361, "invalidation_condition": "4H RSI breaks below 40"},
	"justification": "RSI oversold bounce expected"
}`

func (suite *ExtractTestSuite) TestExtractBareObject() {
	payload, err := ExtractPayload(bareObject)
	suite.NoError(err)
	suite.NotNil(payload.Asset)
	suite.Equal("BTC", *payload.Asset)
	suite.NotNil(payload.NotionalUSD)
	suite.Equal(50.0, *payload.NotionalUSD)
	suite.NotNil(payload.ExitPlan)
	suite.NotNil(payload.ExitPlan.ProfitTarget)
	suite.Equal(111000.0, *payload.ExitPlan.ProfitTarget)
}

func (suite *ExtractTestSuite) TestExtractFencedBlock() {
	raw := "Here is my decision:\n```json\n" + bareObject + "\n```\nLet me know if you need more."

	payload, err := ExtractPayload(raw)
	suite.NoError(err)
	suite.NotNil(payload.Signal)
	suite.Equal("enter_long", *payload.Signal)
}

func (suite *ExtractTestSuite) TestExtractFencedBlockWithoutLanguageTag() {
	raw := "Decision below.\n```\n" + bareObject + "\n```\n"

	payload, err := ExtractPayload(raw)
	suite.NoError(err)
	suite.NotNil(payload.Asset)
	suite.Equal("BTC", *payload.Asset)
}

func (suite *ExtractTestSuite) TestExtractBraceMatching() {
	raw := "After reviewing the indicators I decided: " + bareObject + " -- end of analysis."

	payload, err := ExtractPayload(raw)
	suite.NoError(err)
	suite.NotNil(payload.Justification)
	suite.Equal("RSI oversold bounce expected", *payload.Justification)
}

func (suite *ExtractTestSuite) TestExtractFirstCandidateWins() {
	// Two top-level candidates in prose: the first balanced span is used,
	// deterministically.
	raw := `First thought: {"asset": "ETH", "signal": "hold"} but also {"asset": "BTC", "signal": "close"}`

	payload, err := ExtractPayload(raw)
	suite.NoError(err)
	suite.NotNil(payload.Asset)
	suite.Equal("ETH", *payload.Asset)
}

func (suite *ExtractTestSuite) TestExtractBracesInsideStrings() {
	raw := `Note: {"asset": "SOL", "signal": "hold", "justification": "support zone {key} holding above trendline"}`

	payload, err := ExtractPayload(raw)
	suite.NoError(err)
	suite.NotNil(payload.Justification)
	suite.Equal("support zone {key} holding above trendline", *payload.Justification)
}

func (suite *ExtractTestSuite) TestExtractFailures() {
	tests := []struct {
		name     string
		raw      string
		wantCode errors.ErrorCode
	}{
		{
			name:     "empty text",
			raw:      "",
			wantCode: errors.ErrCodeEmptyResponse,
		},
		{
			name:     "whitespace only",
			raw:      "   \n\t  ",
			wantCode: errors.ErrCodeEmptyResponse,
		},
		{
			name:     "no object at all",
			raw:      "This is not JSON at all!",
			wantCode: errors.ErrCodeNoObjectFound,
		},
		{
			name:     "unterminated object",
			raw:      `leading text {"asset": "BTC", "signal":`,
			wantCode: errors.ErrCodeNoObjectFound,
		},
		{
			name:     "balanced but invalid JSON",
			raw:      `analysis {asset: BTC, signal: hold} done`,
			wantCode: errors.ErrCodeMalformedPayload,
		},
		{
			name:     "array instead of object",
			raw:      `["enter_long", "hold"]`,
			wantCode: errors.ErrCodeNoObjectFound,
		},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			_, err := ExtractPayload(tc.raw)
			suite.Error(err)
			suite.Equal(tc.wantCode, errors.GetCode(err))
		})
	}
}

// A wrong-typed field on an otherwise valid object is reported against
// the field that carried it, not as an anonymous decode failure.
func (suite *ExtractTestSuite) TestExtractTypeMismatch() {
	raw := `{"asset": "BTC", "signal": "hold", "notional_usd": "fifty"}`

	_, err := ExtractPayload(raw)
	suite.Require().Error(err)
	suite.Equal("notional_usd", errors.FieldOf(err))
	suite.Equal(errors.ErrCodeMalformedPayload, errors.ReasonOf(err))
}

func (suite *ExtractTestSuite) TestExtractNestedTypeMismatch() {
	raw := `{"asset": "BTC", "signal": "enter_long", "exit_plan": {"stop_loss": "tight"}}`

	_, err := ExtractPayload(raw)
	suite.Require().Error(err)
	suite.Equal("exit_plan.stop_loss", errors.FieldOf(err))
	suite.Equal(errors.ErrCodeMalformedPayload, errors.ReasonOf(err))
}

// TestRoundTrip asserts that wrapping the same object in prose and a
// markdown fence changes nothing about the validated decision.
func (suite *ExtractTestSuite) TestRoundTrip() {
	validator, err := NewValidator([]string{"BTC", "ETH", "SOL"})
	suite.Require().NoError(err)

	direct, err := validator.Parse(bareObject)
	suite.Require().NoError(err)

	wrapped := "Sure! Based on the market data you shared, here is my decision:\n\n```json\n" +
		bareObject + "\n```\n\nLet me know if you need a deeper breakdown."

	viaProse, err := validator.Parse(wrapped)
	suite.Require().NoError(err)

	suite.Equal(direct, viaProse)
}

func (suite *ExtractTestSuite) TestPayloadSchema() {
	schema, err := PayloadSchema()
	suite.NoError(err)
	suite.Contains(schema, "enter_long")
	suite.Contains(schema, "notional_usd")
	suite.Contains(schema, "justification")
}
