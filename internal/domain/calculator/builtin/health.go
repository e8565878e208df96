package builtin

import (
	"context"

	"github.com/matiasleandrokruk/calcatalog/internal/domain/calculator"
)

const (
	unitMetric   = "metric"
	unitImperial = "imperial"
)

func registerHealth(r calculator.Registrar) error {
	return registerAll(r, definition{
		descriptor: calculator.Descriptor{
			ID:          BMICalculator,
			Title:       "BMI Calculator",
			Description: "Body mass index from weight and height.",
			Category:    "health",
			Subcategory: "fitness",
			Tags:        []string{"bmi", "weight", "body"},
			InputSchema: []calculator.Field{
				number("weight", "Weight", "kg or lb", true, bound(1), bound(700)),
				number("height", "Height", "cm or in", true, bound(20), bound(300)),
				{
					Name: "units", Label: "Unit system", Type: calculator.TypeEnum, Default: unitMetric,
					Constraints: &calculator.Constraints{Options: []string{unitMetric, unitImperial}},
				},
			},
			OutputSchema: calculator.OutputSchema{Result: calculator.TypeNumber, Unit: "kg/m2", Analysis: true},
		},
		compute: computeBMI,
	})
}

func computeBMI(_ context.Context, in calculator.Input) (calculator.Output, error) {
	weight, height := in.Number("weight"), in.Number("height")

	var bmi float64
	if in.String("units") == unitImperial {
		bmi = 703 * weight / (height * height)
	} else {
		meters := height / 100
		bmi = weight / (meters * meters)
	}

	return calculator.Output{Result: bmi, Analysis: bmiAnalysis(bmi)}, nil
}

func bmiAnalysis(bmi float64) *calculator.Analysis {
	switch {
	case bmi < 18.5:
		return &calculator.Analysis{RiskLevel: calculator.RiskMedium, Recommendation: "Underweight; consider a nutrition review."}
	case bmi < 25:
		return &calculator.Analysis{RiskLevel: calculator.RiskLow, Recommendation: "Healthy weight range."}
	case bmi < 30:
		return &calculator.Analysis{RiskLevel: calculator.RiskMedium, Recommendation: "Overweight; regular activity is recommended."}
	default:
		return &calculator.Analysis{RiskLevel: calculator.RiskHigh, Recommendation: "Obese range; consult a healthcare provider."}
	}
}
