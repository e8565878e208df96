package builtin

import (
	"context"
	"fmt"

	"github.com/matiasleandrokruk/calcatalog/internal/domain/calculator"
)

func roiDescriptor(id, title string) calculator.Descriptor {
	return calculator.Descriptor{
		ID:          id,
		Title:       title,
		Description: "Return on investment as a ratio of net gain to cost.",
		Category:    "finance",
		Subcategory: "investment",
		Tags:        []string{"roi", "investment", "return"},
		InputSchema: []calculator.Field{
			number("gain", "Total gain", "USD", true, nil, nil),
			number("cost", "Total cost", "USD", true, bound(0), nil),
		},
		OutputSchema: calculator.OutputSchema{Result: calculator.TypeNumber, Unit: "ratio"},
	}
}

// The underscored slug ships alongside the hyphenated one; both are kept as
// independent ids.
func registerROI(r calculator.Registrar) error {
	return registerAll(r,
		definition{roiDescriptor(ROICalculator, "ROI Calculator"), computeROI},
		definition{roiDescriptor(ROICalculatorUnderscore, "ROI Calculator"), computeROI},
	)
}

func computeROI(_ context.Context, in calculator.Input) (calculator.Output, error) {
	gain, cost := in.Number("gain"), in.Number("cost")
	if cost == 0 {
		return calculator.Output{}, fmt.Errorf("cost: %w", ErrDivisionByZero)
	}
	return calculator.Output{
		Result:    (gain - cost) / cost,
		Breakdown: map[string]float64{"net_gain": gain - cost},
	}, nil
}
