package decision

import (
	"encoding/json"

	"github.com/invopop/jsonschema"

	"github.com/kepler-lab/kepler-trading/internal/types"
)

// Parse extracts the payload from raw model output and validates it in
// one step. Extraction and validation errors keep their own typed codes,
// so callers can still attribute a rejection to the right stage.
func (v *Validator) Parse(rawText string) (types.TradeDecision, error) {
	payload, err := ExtractPayload(rawText)
	if err != nil {
		return types.TradeDecision{}, err
	}

	return v.Validate(payload)
}

// payloadSchema documents the decision payload the validator expects.
// It exists only to drive schema generation for upstream prompt builders.
type payloadSchema struct {
	Asset       string  `json:"asset" jsonschema:"description=Symbol of a configured tradable asset"`
	Signal      string  `json:"signal" jsonschema:"enum=enter_long,enum=enter_short,enum=hold,enum=close"`
	NotionalUSD float64 `json:"notional_usd" jsonschema:"minimum=0,description=Position exposure in USD"`
	Leverage    float64 `json:"leverage" jsonschema:"maximum=20,description=Leverage multiplier scaling P&L"`
	Confidence  float64 `json:"confidence" jsonschema:"minimum=0,maximum=1"`
	ExitPlan    struct {
		ProfitTarget          float64 `json:"profit_target,omitempty" jsonschema:"description=Price target for taking profit"`
		StopLoss              float64 `json:"stop_loss,omitempty" jsonschema:"description=Stop loss price"`
		InvalidationCondition string  `json:"invalidation_condition,omitempty" jsonschema:"description=Condition that voids the trade thesis"`
	} `json:"exit_plan,omitempty"`
	Justification string `json:"justification" jsonschema:"minLength=10,description=Reasoning behind the decision"`
}

// PayloadSchema returns the JSON schema of the expected decision payload.
// Prompt builders embed it so the model knows the exact shape to emit.
func PayloadSchema() (string, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = true
	schema := r.Reflect(&payloadSchema{})

	jsonSchemaBytes, err := json.Marshal(schema)
	if err != nil {
		return "", err
	}

	return string(jsonSchemaBytes), nil
}
