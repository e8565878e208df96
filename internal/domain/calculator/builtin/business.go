package builtin

import (
	"context"
	"errors"

	"github.com/matiasleandrokruk/calcatalog/internal/domain/calculator"
)

// ErrNoContributionMargin is returned when each unit sells at or below its variable cost.
var ErrNoContributionMargin = errors.New("price per unit must exceed variable cost per unit")

func registerBusiness(r calculator.Registrar) error {
	return registerAll(r, definition{
		descriptor: calculator.Descriptor{
			ID:          BreakEvenCalculator,
			Title:       "Break-Even Calculator",
			Description: "Units that must be sold to cover fixed costs.",
			Category:    "business",
			Subcategory: "planning",
			Tags:        []string{"break-even", "pricing", "margin"},
			InputSchema: []calculator.Field{
				number("fixed_costs", "Fixed costs", "USD", true, bound(0), nil),
				number("price_per_unit", "Price per unit", "USD", true, bound(0), nil),
				number("variable_cost_per_unit", "Variable cost per unit", "USD", true, bound(0), nil),
			},
			OutputSchema: calculator.OutputSchema{Result: calculator.TypeNumber, Unit: "units"},
		},
		compute: computeBreakEven,
	})
}

func computeBreakEven(_ context.Context, in calculator.Input) (calculator.Output, error) {
	price := in.Number("price_per_unit")
	margin := price - in.Number("variable_cost_per_unit")
	if margin <= 0 {
		return calculator.Output{}, ErrNoContributionMargin
	}
	units := in.Number("fixed_costs") / margin

	return calculator.Output{
		Result: units,
		Breakdown: map[string]float64{
			"contribution_margin": margin,
			"break_even_revenue":  units * price,
		},
	}, nil
}
