// Package calculator is the registry and dispatch engine behind the calculator
// catalog. Calculator modules register a Descriptor plus a ComputeFunc during
// bootstrap; once the Registry is sealed, the Resolver answers discovery
// queries and the Dispatcher runs computations behind a fault boundary.
package calculator

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"golang.org/x/text/cases"
)

// FieldType is the declared runtime type of an input field or output result.
type FieldType string

const (
	TypeNumber  FieldType = "number"
	TypeString  FieldType = "string"
	TypeBoolean FieldType = "boolean"
	TypeEnum    FieldType = "enum"
)

func (t FieldType) valid() bool {
	switch t {
	case TypeNumber, TypeString, TypeBoolean, TypeEnum:
		return true
	}
	return false
}

// RiskLevel grades the analysis attached to a calculator result.
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// ParseRiskLevel accepts the three levels case-insensitively.
func ParseRiskLevel(s string) (RiskLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return RiskLow, true
	case "medium":
		return RiskMedium, true
	case "high":
		return RiskHigh, true
	}
	return "", false
}

// Constraints narrows the accepted values of a field.
type Constraints struct {
	Min       *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max       *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Options   []string `json:"options,omitempty" yaml:"options,omitempty"`
	Pattern   string   `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	MaxLength int      `json:"maxLength,omitempty" yaml:"max_length,omitempty"`
}

// Field declares one input of a calculator.
type Field struct {
	Name        string       `json:"name" yaml:"name"`
	Label       string       `json:"label,omitempty" yaml:"label,omitempty"`
	Type        FieldType    `json:"type" yaml:"type"`
	Required    bool         `json:"required" yaml:"required"`
	Unit        string       `json:"unit,omitempty" yaml:"unit,omitempty"`
	Default     any          `json:"default,omitempty" yaml:"default,omitempty"`
	Constraints *Constraints `json:"constraints,omitempty" yaml:"constraints,omitempty"`
}

// OutputSchema describes the result envelope. Result must always be numeric.
type OutputSchema struct {
	Result   FieldType `json:"result" yaml:"result"`
	Unit     string    `json:"unit,omitempty" yaml:"unit,omitempty"`
	Analysis bool      `json:"analysis,omitempty" yaml:"analysis,omitempty"`
}

// Descriptor is the identity and contract metadata of one calculator.
type Descriptor struct {
	ID           string       `json:"id" yaml:"id"`
	Title        string       `json:"title" yaml:"title"`
	Description  string       `json:"description,omitempty" yaml:"description,omitempty"`
	Category     string       `json:"category" yaml:"category"`
	Subcategory  string       `json:"subcategory,omitempty" yaml:"subcategory,omitempty"`
	Tags         []string     `json:"tags,omitempty" yaml:"tags,omitempty"`
	InputSchema  []Field      `json:"inputSchema" yaml:"inputs"`
	OutputSchema OutputSchema `json:"outputSchema" yaml:"output"`
	Version      int          `json:"version" yaml:"version"`
}

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:[-_][a-z0-9]+)*$`)

// IsSlug reports whether id is an acceptable calculator id.
func IsSlug(id string) bool {
	return slugPattern.MatchString(id)
}

// Normalize checks the shape of raw and returns its canonical form.
// Normalizing an already normalized descriptor returns an equal value.
func Normalize(raw Descriptor) (Descriptor, error) {
	d := Descriptor{
		ID:           strings.TrimSpace(raw.ID),
		Title:        strings.TrimSpace(raw.Title),
		Description:  strings.TrimSpace(raw.Description),
		Category:     foldKey(raw.Category),
		Subcategory:  foldKey(raw.Subcategory),
		Tags:         normalizeTags(raw.Tags),
		OutputSchema: raw.OutputSchema,
		Version:      raw.Version,
	}

	if d.ID == "" {
		return Descriptor{}, malformed("", "id is required")
	}
	if !IsSlug(d.ID) {
		return Descriptor{}, malformed(d.ID, "id must contain only lowercase letters, digits, hyphens or underscores")
	}
	if d.Title == "" {
		return Descriptor{}, malformed(d.ID, "title is required")
	}
	if d.Category == "" {
		return Descriptor{}, malformed(d.ID, "category is required")
	}
	if d.Version < 0 {
		return Descriptor{}, malformed(d.ID, "version must not be negative")
	}
	if d.Version == 0 {
		d.Version = 1
	}

	d.OutputSchema.Unit = strings.TrimSpace(d.OutputSchema.Unit)
	if d.OutputSchema.Result != TypeNumber {
		return Descriptor{}, malformed(d.ID, "outputSchema.result must be declared as number")
	}

	fields, err := normalizeFields(d.ID, raw.InputSchema)
	if err != nil {
		return Descriptor{}, err
	}
	d.InputSchema = fields

	return d, nil
}

func normalizeFields(id string, raw []Field) ([]Field, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	seen := make(map[string]struct{}, len(raw))
	out := make([]Field, 0, len(raw))
	for i, f := range raw {
		f.Name = strings.TrimSpace(f.Name)
		if f.Name == "" {
			return nil, malformed(id, fmt.Sprintf("inputSchema[%d]: name is required", i))
		}
		if _, dup := seen[f.Name]; dup {
			return nil, malformed(id, fmt.Sprintf("inputSchema: duplicate field %q", f.Name))
		}
		seen[f.Name] = struct{}{}

		f.Type = FieldType(strings.ToLower(strings.TrimSpace(string(f.Type))))
		if !f.Type.valid() {
			return nil, malformed(id, fmt.Sprintf("field %q: unknown type %q", f.Name, f.Type))
		}

		f.Label = strings.TrimSpace(f.Label)
		if f.Label == "" {
			f.Label = f.Name
		}
		f.Unit = strings.TrimSpace(f.Unit)

		c, err := normalizeConstraints(id, f)
		if err != nil {
			return nil, err
		}
		f.Constraints = c
		if f.Default != nil {
			if _, err := compile([]Field{f}).coerce(f, f.Default); err != nil {
				return nil, malformed(id, fmt.Sprintf("field %q: invalid default: %v", f.Name, err))
			}
		}
		out = append(out, f)
	}
	return out, nil
}

func normalizeConstraints(id string, f Field) (*Constraints, error) {
	if f.Constraints == nil {
		if f.Type == TypeEnum {
			return nil, malformed(id, fmt.Sprintf("field %q: enum requires options", f.Name))
		}
		return nil, nil
	}

	c := *f.Constraints
	if c.Min != nil {
		v := *c.Min
		c.Min = &v
	}
	if c.Max != nil {
		v := *c.Max
		c.Max = &v
	}
	if c.Min != nil && c.Max != nil && *c.Min > *c.Max {
		return nil, malformed(id, fmt.Sprintf("field %q: min is greater than max", f.Name))
	}
	if c.MaxLength < 0 {
		return nil, malformed(id, fmt.Sprintf("field %q: maxLength must not be negative", f.Name))
	}
	if c.Pattern != "" {
		if _, err := regexp.Compile(c.Pattern); err != nil {
			return nil, malformed(id, fmt.Sprintf("field %q: invalid pattern: %v", f.Name, err))
		}
	}

	if len(c.Options) > 0 {
		opts := make([]string, 0, len(c.Options))
		for _, o := range c.Options {
			o = strings.TrimSpace(o)
			if o != "" && !slices.Contains(opts, o) {
				opts = append(opts, o)
			}
		}
		c.Options = opts
	}
	if len(c.Options) == 0 {
		c.Options = nil
		if f.Type == TypeEnum {
			return nil, malformed(id, fmt.Sprintf("field %q: enum requires options", f.Name))
		}
	}

	if c.Min == nil && c.Max == nil && c.Options == nil && c.Pattern == "" && c.MaxLength == 0 {
		return nil, nil
	}
	return &c, nil
}

func normalizeTags(raw []string) []string {
	if len(raw) == 0 {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		t = foldKey(t)
		if t != "" {
			out = append(out, t)
		}
	}
	slices.Sort(out)
	out = slices.Compact(out)
	if len(out) == 0 {
		return nil
	}
	return out
}

// foldKey trims and case-folds s for use as an index key.
func foldKey(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

func malformed(id, reason string) error {
	return &DescriptorError{ID: id, Reason: reason}
}

// clone returns a deep copy so the registry never shares slices with callers.
func (d Descriptor) clone() Descriptor {
	out := d
	out.Tags = slices.Clone(d.Tags)
	if d.InputSchema != nil {
		out.InputSchema = make([]Field, len(d.InputSchema))
		for i, f := range d.InputSchema {
			if f.Constraints != nil {
				c := *f.Constraints
				c.Options = slices.Clone(f.Constraints.Options)
				if c.Min != nil {
					v := *c.Min
					c.Min = &v
				}
				if c.Max != nil {
					v := *c.Max
					c.Max = &v
				}
				f.Constraints = &c
			}
			out.InputSchema[i] = f
		}
	}
	return out
}
