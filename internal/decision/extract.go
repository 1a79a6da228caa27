// Package decision converts untrusted, semi-structured model output into
// validated trade decisions. Malformed output is an expected, frequent
// condition here, so every failure is a typed result value rather than a
// panic or a generic error.
package decision

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/kepler-lab/kepler-trading/pkg/errors"
)

// RawPayload is the decoded but not yet validated decision payload.
// Pointer fields distinguish absent fields from zero values; the
// validator needs that distinction to report missing fields precisely.
type RawPayload struct {
	Asset         *string      `json:"asset"`
	Signal        *string      `json:"signal"`
	NotionalUSD   *float64     `json:"notional_usd"`
	Leverage      *float64     `json:"leverage"`
	Confidence    *float64     `json:"confidence"`
	ExitPlan      *RawExitPlan `json:"exit_plan"`
	Justification *string      `json:"justification"`
}

// RawExitPlan is the unvalidated exit plan portion of a payload.
type RawExitPlan struct {
	ProfitTarget          *float64 `json:"profit_target"`
	StopLoss              *float64 `json:"stop_loss"`
	InvalidationCondition *string  `json:"invalidation_condition"`
}

// fencedBlockRe matches the first markdown code fence containing an object,
// with or without a language tag.
var fencedBlockRe = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(\\{.*?\\})\\s*```")

// ExtractPayload locates the single JSON object inside raw model output
// and decodes it. The policy, in order of preference:
//
//  1. The entire trimmed text parses as one JSON object.
//  2. The first fenced code block containing an object is used.
//  3. The first balanced {...} span found by brace matching is used.
//     When more than one candidate exists, the first one wins; the
//     choice is deterministic and covered by tests.
//
// Surrounding prose, markdown fences and trailing commentary are all
// tolerated. The raw text is never mutated or retried with different
// outcomes: extraction is pure and deterministic.
func ExtractPayload(rawText string) (RawPayload, error) {
	trimmed := strings.TrimSpace(rawText)
	if trimmed == "" {
		return RawPayload{}, errors.New(errors.ErrCodeEmptyResponse, "response text is empty")
	}

	// Policy (a): the whole text is one object.
	if strings.HasPrefix(trimmed, "{") && gjson.Valid(trimmed) {
		return decodeObject(trimmed)
	}

	// Policy (b): first fenced code block holding an object.
	if match := fencedBlockRe.FindStringSubmatch(trimmed); match != nil {
		candidate := strings.TrimSpace(match[1])
		if gjson.Valid(candidate) {
			return decodeObject(candidate)
		}
	}

	// Policy (c): first balanced brace span.
	candidate, found := firstBalancedObject(trimmed)
	if !found {
		return RawPayload{}, errors.New(errors.ErrCodeNoObjectFound, "no JSON object found in response")
	}

	if !gjson.Valid(candidate) {
		return RawPayload{}, errors.Newf(errors.ErrCodeMalformedPayload,
			"candidate object is not valid JSON: %.80s", candidate)
	}

	return decodeObject(candidate)
}

// decodeObject decodes a JSON object string into a RawPayload. The text
// is known to be syntactically valid JSON by the time this runs, so any
// failure here is a type mismatch on a recognized field, reported with
// the field's name.
func decodeObject(objectText string) (RawPayload, error) {
	if !gjson.Parse(objectText).IsObject() {
		return RawPayload{}, errors.New(errors.ErrCodeNoObjectFound, "extracted JSON is not an object")
	}

	var payload RawPayload
	if err := json.Unmarshal([]byte(objectText), &payload); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return RawPayload{}, errors.NewFieldErrorf(typeErr.Field, errors.ErrCodeMalformedPayload,
				"expected %s, got JSON %s", typeErr.Type, typeErr.Value)
		}

		return RawPayload{}, errors.Wrap(errors.ErrCodeMalformedPayload, "failed to decode payload", err)
	}

	return payload, nil
}

// firstBalancedObject scans for the first balanced {...} span, skipping
// braces inside JSON string literals.
func firstBalancedObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}

			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}

	return "", false
}
