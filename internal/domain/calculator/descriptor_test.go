package calculator

import (
	"errors"
	"reflect"
	"testing"
)

func TestNormalize_Canonicalizes(t *testing.T) {
	t.Parallel()

	got, err := Normalize(Descriptor{
		ID:       "  bmi-calculator ",
		Title:    " BMI ",
		Category: " Health ",
		Tags:     []string{"Weight", "bmi", "weight", " "},
		InputSchema: []Field{
			{Name: "height", Type: "NUMBER", Required: true},
			{Name: "unit", Type: TypeEnum, Label: "Unit", Constraints: &Constraints{Options: []string{" metric", "imperial", "metric"}}},
		},
		OutputSchema: OutputSchema{Result: TypeNumber, Unit: " kg/m2 "},
	})
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}

	if got.ID != "bmi-calculator" || got.Title != "BMI" || got.Category != "health" {
		t.Fatalf("unexpected identity fields: %+v", got)
	}
	if !reflect.DeepEqual(got.Tags, []string{"bmi", "weight"}) {
		t.Fatalf("unexpected tags: %v", got.Tags)
	}
	if got.InputSchema[0].Type != TypeNumber || got.InputSchema[0].Label != "height" {
		t.Fatalf("unexpected field: %+v", got.InputSchema[0])
	}
	if !reflect.DeepEqual(got.InputSchema[1].Constraints.Options, []string{"metric", "imperial"}) {
		t.Fatalf("unexpected options: %v", got.InputSchema[1].Constraints.Options)
	}
	if got.OutputSchema.Unit != "kg/m2" || got.Version != 1 {
		t.Fatalf("unexpected output/version: %+v %d", got.OutputSchema, got.Version)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	t.Parallel()

	once, err := Normalize(roiDescriptor("roi-calculator"))
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	twice, err := Normalize(once)
	if err != nil {
		t.Fatalf("second Normalize returned error: %v", err)
	}
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("Normalize is not idempotent:\n%+v\n%+v", once, twice)
	}
}

func TestNormalize_Rejects(t *testing.T) {
	t.Parallel()

	base := func() Descriptor { return roiDescriptor("roi-calculator") }
	tests := []struct {
		name   string
		mutate func(*Descriptor)
	}{
		{"empty id", func(d *Descriptor) { d.ID = "" }},
		{"space in id", func(d *Descriptor) { d.ID = "roi calculator" }},
		{"trailing hyphen", func(d *Descriptor) { d.ID = "roi-" }},
		{"empty title", func(d *Descriptor) { d.Title = " " }},
		{"empty category", func(d *Descriptor) { d.Category = "" }},
		{"negative version", func(d *Descriptor) { d.Version = -1 }},
		{"missing result type", func(d *Descriptor) { d.OutputSchema.Result = "" }},
		{"unknown field type", func(d *Descriptor) { d.InputSchema[0].Type = "date" }},
		{"empty field name", func(d *Descriptor) { d.InputSchema[0].Name = "" }},
		{"duplicate field", func(d *Descriptor) { d.InputSchema[1].Name = "gain" }},
		{"enum without options", func(d *Descriptor) { d.InputSchema[0].Type = TypeEnum }},
		{"min above max", func(d *Descriptor) {
			d.InputSchema[0].Constraints = &Constraints{Min: ptr(10), Max: ptr(1)}
		}},
		{"bad pattern", func(d *Descriptor) {
			d.InputSchema[0].Type = TypeString
			d.InputSchema[0].Constraints = &Constraints{Pattern: "("}
		}},
		{"default of wrong type", func(d *Descriptor) { d.InputSchema[0].Default = "abc" }},
		{"default out of range", func(d *Descriptor) {
			d.InputSchema[1].Default = -5
			d.InputSchema[1].Constraints = &Constraints{Min: ptr(0)}
		}},
		{"default not an option", func(d *Descriptor) {
			d.InputSchema[0].Type = TypeEnum
			d.InputSchema[0].Constraints = &Constraints{Options: []string{"a", "b"}}
			d.InputSchema[0].Default = "c"
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			d := base()
			tc.mutate(&d)
			_, err := Normalize(d)
			if !errors.Is(err, ErrMalformedDescriptor) {
				t.Fatalf("expected ErrMalformedDescriptor, got %v", err)
			}
			var de *DescriptorError
			if !errors.As(err, &de) || de.Reason == "" {
				t.Fatalf("expected *DescriptorError with a reason, got %v", err)
			}
		})
	}
}

func TestNormalize_AcceptsValidDefaults(t *testing.T) {
	t.Parallel()

	d := roiDescriptor("roi-calculator")
	d.InputSchema[0].Default = 30
	d.InputSchema[1].Default = "12.5"
	d.InputSchema[1].Constraints = &Constraints{Min: ptr(0)}
	if _, err := Normalize(d); err != nil {
		t.Fatalf("Normalize() returned error: %v", err)
	}
}

func TestNormalize_EmptyTagsAndInputsAreLegal(t *testing.T) {
	t.Parallel()

	d, err := Normalize(Descriptor{
		ID:           "pi",
		Title:        "Pi",
		Category:     "math",
		OutputSchema: OutputSchema{Result: TypeNumber},
	})
	if err != nil {
		t.Fatalf("Normalize returned error: %v", err)
	}
	if d.Tags != nil || d.InputSchema != nil {
		t.Fatalf("expected nil tags and inputs, got %+v", d)
	}
}

func TestParseRiskLevel(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]RiskLevel{"low": RiskLow, "MEDIUM": RiskMedium, " High ": RiskHigh} {
		got, ok := ParseRiskLevel(in)
		if !ok || got != want {
			t.Fatalf("ParseRiskLevel(%q) = %q, %v", in, got, ok)
		}
	}
	if _, ok := ParseRiskLevel("severe"); ok {
		t.Fatal("expected severe to be rejected")
	}
}
