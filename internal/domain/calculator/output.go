package calculator

import (
	"math"
	"time"
)

// Analysis is the optional recommendation attached to an output.
type Analysis struct {
	Recommendation string    `json:"recommendation"`
	RiskLevel      RiskLevel `json:"riskLevel,omitempty"`
}

// Output is the envelope a ComputeFunc returns. Result is always present.
type Output struct {
	Result    float64            `json:"result"`
	Breakdown map[string]float64 `json:"breakdown,omitempty"`
	Analysis  *Analysis          `json:"analysis,omitempty"`
}

// Request is one execution request.
type Request struct {
	ID    string         `json:"id"`
	Input map[string]any `json:"input"`
}

// Result is what Execute hands back to every caller. Failures are values;
// ErrorKind is empty exactly when OK is true.
type Result struct {
	OK          bool          `json:"ok"`
	Output      *Output       `json:"output,omitempty"`
	ErrorKind   ErrorKind     `json:"errorKind,omitempty"`
	Message     string        `json:"message,omitempty"`
	Field       string        `json:"field,omitempty"`
	Reason      Reason        `json:"reason,omitempty"`
	Cause       Cause         `json:"cause,omitempty"`
	ID          string        `json:"id"`
	ExecutionID string        `json:"executionId"`
	Duration    time.Duration `json:"-"`
}

// Err rebuilds an error from a failed Result, nil when OK.
func (r Result) Err() error {
	switch r.ErrorKind {
	case KindNone:
		return nil
	case KindNotFound:
		return ErrNotFound
	case KindValidation:
		return &ValidationError{Field: r.Field, Reason: r.Reason, Detail: r.Message}
	}
	return &ComputeError{ID: r.ID, Cause: r.Cause, Err: errorString(r.Message)}
}

type errorString string

func (e errorString) Error() string { return string(e) }

// checkOutput enforces the output contract and returns the canonical form.
func checkOutput(out Output) (Output, error) {
	if !finite(out.Result) {
		return Output{}, errorf(ErrMalformedOutput, "result %v is not a finite number", out.Result)
	}
	if len(out.Breakdown) > 0 {
		breakdown := make(map[string]float64, len(out.Breakdown))
		for k, v := range out.Breakdown {
			if !finite(v) {
				return Output{}, errorf(ErrMalformedOutput, "breakdown %q: %v is not a finite number", k, v)
			}
			breakdown[k] = v
		}
		out.Breakdown = breakdown
	} else {
		out.Breakdown = nil
	}
	if out.Analysis != nil {
		a := *out.Analysis
		if a.RiskLevel != "" {
			level, ok := ParseRiskLevel(string(a.RiskLevel))
			if !ok {
				return Output{}, errorf(ErrMalformedOutput, "risk level %q is not Low, Medium or High", a.RiskLevel)
			}
			a.RiskLevel = level
		}
		out.Analysis = &a
	}
	return out, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
