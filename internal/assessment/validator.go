package assessment

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/i474232898/wildfire-risk-assessment/internal/common"
)

var validate = validator.New()

// flexNumber accepts a JSON number or a string holding one.
type flexNumber float64

func (n *flexNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%")), 64)
		if err != nil {
			return fmt.Errorf("not a number: %q", s)
		}
		*n = flexNumber(f)
		return nil
	}

	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*n = flexNumber(f)
	return nil
}

// rawPrediction mirrors the provider's response schema. Pointers distinguish a
// missing field from a zero value.
type rawPrediction struct {
	RiskLevel       *string     `json:"riskLevel" validate:"required"`
	Probability     *flexNumber `json:"probability" validate:"required"`
	Reasoning       *string     `json:"reasoning" validate:"required"`
	Recommendations []string    `json:"recommendations" validate:"required"`
	SpreadIndex     *flexNumber `json:"spreadIndex" validate:"required"`
}

// ParseResult decodes and normalizes raw provider output. Any malformed text,
// missing field, wrong type or unknown risk level is a schema failure.
func ParseResult(raw []byte) (PredictionResult, error) {
	body := unwrapCodeFence(raw)
	if len(body) == 0 {
		return PredictionResult{}, Failf(StageSchema, "empty response body")
	}

	var rp rawPrediction
	if err := json.Unmarshal(body, &rp); err != nil {
		return PredictionResult{}, &PredictionFailure{Stage: StageSchema, Err: err}
	}
	if err := validate.Struct(rp); err != nil {
		return PredictionResult{}, &PredictionFailure{Stage: StageSchema, Err: err}
	}

	level, ok := ParseRiskLevel(*rp.RiskLevel)
	if !ok {
		return PredictionResult{}, Failf(StageSchema, "unknown risk level %q", *rp.RiskLevel)
	}

	reasoning := strings.TrimSpace(*rp.Reasoning)
	if reasoning == "" {
		return PredictionResult{}, Failf(StageSchema, "reasoning is blank")
	}

	probability := float64(*rp.Probability)
	spread := float64(*rp.SpreadIndex)
	if math.IsNaN(probability) || math.IsInf(probability, 0) || math.IsNaN(spread) || math.IsInf(spread, 0) {
		return PredictionResult{}, Failf(StageSchema, "non-finite probability or spread index")
	}

	recs := make([]string, 0, len(rp.Recommendations))
	for _, r := range rp.Recommendations {
		if r = strings.TrimSpace(r); r != "" {
			recs = append(recs, r)
		}
	}

	return PredictionResult{
		RiskLevel:       level,
		Probability:     common.Clamp(probability, 0, 100),
		Reasoning:       reasoning,
		Recommendations: recs,
		SpreadIndex:     common.Clamp(spread, 0, 100),
	}, nil
}

// Validate turns a provider outcome into a displayable result. It never fails:
// a provider error or an unusable body yields FallbackResult. The returned
// error is the cause of a fallback, for logging only.
func Validate(raw []byte, providerErr error) (PredictionResult, Outcome, error) {
	if providerErr != nil {
		var pf *PredictionFailure
		if !errors.As(providerErr, &pf) {
			providerErr = &PredictionFailure{Stage: StageTransport, Err: providerErr}
		}
		return FallbackResult(), OutcomeFallback, providerErr
	}

	res, err := ParseResult(raw)
	if err != nil {
		return FallbackResult(), OutcomeFallback, err
	}
	return res, OutcomeSuccess, nil
}

// unwrapCodeFence strips a surrounding ``` or ```json fence.
func unwrapCodeFence(raw []byte) []byte {
	s := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(s, "```") {
		return []byte(s)
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = ""
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return []byte(strings.TrimSpace(s))
}
