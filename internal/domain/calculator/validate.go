package calculator

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Input holds the validated, coerced values handed to a ComputeFunc.
// Numbers are float64, strings and enums are string, booleans are bool.
type Input struct {
	values map[string]any
}

// NewInput builds an Input directly, mostly for tests of compute functions.
func NewInput(values map[string]any) Input {
	return Input{values: values}
}

// Number returns the numeric value of name, or 0 when it is absent.
func (in Input) Number(name string) float64 {
	v, _ := in.values[name].(float64)
	return v
}

// String returns the string or enum value of name.
func (in Input) String(name string) string {
	v, _ := in.values[name].(string)
	return v
}

// Bool returns the boolean value of name.
func (in Input) Bool(name string) bool {
	v, _ := in.values[name].(bool)
	return v
}

// Has reports whether name was supplied or defaulted.
func (in Input) Has(name string) bool {
	_, ok := in.values[name]
	return ok
}

// Values returns a copy of every validated value.
func (in Input) Values() map[string]any {
	out := make(map[string]any, len(in.values))
	for k, v := range in.values {
		out[k] = v
	}
	return out
}

// Validate checks raw against schema and returns the coerced input.
// Fields not declared in schema are dropped. The first failing field, in
// schema order, is reported as a *ValidationError.
func Validate(schema []Field, raw map[string]any) (Input, error) {
	return compile(schema).validate(raw)
}

// validator is a schema with its patterns compiled once.
type validator struct {
	fields   []Field
	patterns map[string]*regexp.Regexp
}

func compile(schema []Field) *validator {
	v := &validator{fields: schema}
	for _, f := range schema {
		if f.Constraints == nil || f.Constraints.Pattern == "" {
			continue
		}
		re, err := regexp.Compile(f.Constraints.Pattern)
		if err != nil {
			// Normalize rejects bad patterns; an unnormalized schema just skips the check.
			continue
		}
		if v.patterns == nil {
			v.patterns = make(map[string]*regexp.Regexp)
		}
		v.patterns[f.Name] = re
	}
	return v
}

func (v *validator) validate(raw map[string]any) (Input, error) {
	values := make(map[string]any, len(v.fields))
	for _, f := range v.fields {
		rv, present := raw[f.Name]
		if !present || rv == nil {
			if f.Required {
				return Input{}, &ValidationError{Field: f.Name, Reason: ReasonMissing}
			}
			if f.Default != nil {
				dv, err := v.coerce(f, f.Default)
				if err != nil {
					return Input{}, err
				}
				values[f.Name] = dv
			}
			continue
		}

		cv, err := v.coerce(f, rv)
		if err != nil {
			return Input{}, err
		}
		values[f.Name] = cv
	}
	return Input{values: values}, nil
}

func (v *validator) coerce(f Field, rv any) (any, error) {
	switch f.Type {
	case TypeNumber:
		n, err := toNumber(f, rv)
		if err != nil {
			return nil, err
		}
		return n, checkBounds(f, n)
	case TypeString:
		s, ok := rv.(string)
		if !ok {
			return nil, mismatch(f, rv)
		}
		return s, v.checkFormat(f, s)
	case TypeBoolean:
		return toBool(f, rv)
	case TypeEnum:
		s, ok := rv.(string)
		if !ok {
			return nil, mismatch(f, rv)
		}
		s = strings.TrimSpace(s)
		if f.Constraints == nil || !slices.Contains(f.Constraints.Options, s) {
			return nil, &ValidationError{Field: f.Name, Reason: ReasonInvalidOption, Detail: fmt.Sprintf("%q is not an allowed option", s)}
		}
		return s, nil
	}
	return nil, &ValidationError{Field: f.Name, Reason: ReasonTypeMismatch, Detail: fmt.Sprintf("unsupported field type %q", f.Type)}
}

func toNumber(f Field, rv any) (float64, error) {
	var n float64
	switch x := rv.(type) {
	case float64:
		n = x
	case float32:
		n = float64(x)
	case int:
		n = float64(x)
	case int8:
		n = float64(x)
	case int16:
		n = float64(x)
	case int32:
		n = float64(x)
	case int64:
		n = float64(x)
	case uint:
		n = float64(x)
	case uint8:
		n = float64(x)
	case uint16:
		n = float64(x)
	case uint32:
		n = float64(x)
	case uint64:
		n = float64(x)
	case json.Number:
		parsed, err := strconv.ParseFloat(x.String(), 64)
		if err != nil && !isRangeErr(err) {
			return 0, mismatch(f, rv)
		}
		n = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil && !isRangeErr(err) {
			return 0, mismatch(f, rv)
		}
		n = parsed
	default:
		return 0, mismatch(f, rv)
	}

	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, &ValidationError{Field: f.Name, Reason: ReasonOutOfRange, Detail: "value must be a finite number"}
	}
	return n, nil
}

func isRangeErr(err error) bool {
	numErr, ok := err.(*strconv.NumError)
	return ok && numErr.Err == strconv.ErrRange
}

func checkBounds(f Field, n float64) error {
	if f.Constraints == nil {
		return nil
	}
	if f.Constraints.Min != nil && n < *f.Constraints.Min {
		return &ValidationError{Field: f.Name, Reason: ReasonOutOfRange, Detail: fmt.Sprintf("must be >= %g", *f.Constraints.Min)}
	}
	if f.Constraints.Max != nil && n > *f.Constraints.Max {
		return &ValidationError{Field: f.Name, Reason: ReasonOutOfRange, Detail: fmt.Sprintf("must be <= %g", *f.Constraints.Max)}
	}
	return nil
}

func (v *validator) checkFormat(f Field, s string) error {
	if f.Constraints == nil {
		return nil
	}
	if f.Constraints.MaxLength > 0 && utf8.RuneCountInString(s) > f.Constraints.MaxLength {
		return &ValidationError{Field: f.Name, Reason: ReasonInvalidFormat, Detail: fmt.Sprintf("longer than %d characters", f.Constraints.MaxLength)}
	}
	if re, ok := v.patterns[f.Name]; ok && !re.MatchString(s) {
		return &ValidationError{Field: f.Name, Reason: ReasonInvalidFormat, Detail: "does not match pattern"}
	}
	return nil
}

func toBool(f Field, rv any) (bool, error) {
	switch x := rv.(type) {
	case bool:
		return x, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
	}
	return false, mismatch(f, rv)
}

func mismatch(f Field, rv any) error {
	return &ValidationError{Field: f.Name, Reason: ReasonTypeMismatch, Detail: fmt.Sprintf("expected %s, got %T", f.Type, rv)}
}
