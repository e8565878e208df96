package builtin

import (
	"context"
	"fmt"

	"github.com/matiasleandrokruk/calcatalog/internal/domain/calculator"
)

func registerMarketing(r calculator.Registrar) error {
	return registerAll(r, definition{
		descriptor: calculator.Descriptor{
			ID:          MarketingROICalculator,
			Title:       "Marketing ROI Calculator",
			Description: "Campaign return after gross margin, as a percentage of spend.",
			Category:    "marketing",
			Subcategory: "campaigns",
			Tags:        []string{"roi", "campaign", "advertising"},
			InputSchema: []calculator.Field{
				number("revenue", "Attributed revenue", "USD", true, bound(0), nil),
				number("marketing_spend", "Marketing spend", "USD", true, bound(0), nil),
				{
					Name: "gross_margin", Label: "Gross margin", Type: calculator.TypeNumber, Unit: "%",
					Default:     100.0,
					Constraints: &calculator.Constraints{Min: bound(0), Max: bound(100)},
				},
			},
			OutputSchema: calculator.OutputSchema{Result: calculator.TypeNumber, Unit: "%", Analysis: true},
		},
		compute: computeMarketingROI,
	})
}

func computeMarketingROI(_ context.Context, in calculator.Input) (calculator.Output, error) {
	spend := in.Number("marketing_spend")
	if spend == 0 {
		return calculator.Output{}, fmt.Errorf("marketing_spend: %w", ErrDivisionByZero)
	}
	profit := in.Number("revenue") * in.Number("gross_margin") / 100
	roi := (profit - spend) / spend * 100

	analysis := &calculator.Analysis{RiskLevel: calculator.RiskLow, Recommendation: "Campaign is profitable; consider scaling spend."}
	switch {
	case roi < 0:
		analysis = &calculator.Analysis{RiskLevel: calculator.RiskHigh, Recommendation: "Campaign loses money after margin; pause or retarget."}
	case roi < 100:
		analysis = &calculator.Analysis{RiskLevel: calculator.RiskMedium, Recommendation: "Campaign returns less than it costs twice over; optimize before scaling."}
	}

	return calculator.Output{
		Result:    roi,
		Breakdown: map[string]float64{"gross_profit": profit, "net_return": profit - spend},
		Analysis:  analysis,
	}, nil
}
