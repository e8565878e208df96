package builtin

import (
	"context"
	"fmt"
	"math"

	"github.com/matiasleandrokruk/calcatalog/internal/domain/calculator"
)

// Minimum debt yields lenders typically require, in percent, by property type.
var requiredDebtYield = map[string]float64{
	"multifamily": 8,
	"industrial":  9,
	"office":      10,
	"retail":      10,
	"hotel":       12,
}

func registerLending(r calculator.Registrar) error {
	return registerAll(r,
		definition{
			descriptor: calculator.Descriptor{
				ID:          LoanPaymentCalculator,
				Title:       "Loan Payment Calculator",
				Description: "Fixed monthly payment of a fully amortizing loan.",
				Category:    "finance",
				Subcategory: "loans",
				Tags:        []string{"loan", "mortgage", "amortization"},
				InputSchema: []calculator.Field{
					number("principal", "Loan amount", "USD", true, bound(0), nil),
					number("annual_rate", "Annual interest rate", "%", true, bound(0), bound(100)),
					number("years", "Term", "years", true, bound(1), bound(50)),
				},
				OutputSchema: calculator.OutputSchema{Result: calculator.TypeNumber, Unit: "USD/month"},
			},
			compute: computeLoanPayment,
		},
		definition{
			descriptor: calculator.Descriptor{
				ID:          DebtYieldRatio,
				Title:       "Debt Yield Ratio Calculator",
				Description: "Net operating income as a percentage of the loan amount, checked against the lender minimum for the property type.",
				Category:    "finance",
				Subcategory: "real-estate",
				Tags:        []string{"debt yield", "commercial real estate", "loan"},
				InputSchema: []calculator.Field{
					number("net_operating_income", "Net operating income", "USD/year", true, nil, nil),
					number("loan_amount", "Loan amount", "USD", true, bound(0), nil),
					{
						Name: "property_type", Label: "Property type", Type: calculator.TypeEnum, Required: true,
						Constraints: &calculator.Constraints{Options: []string{"multifamily", "industrial", "office", "retail", "hotel"}},
					},
				},
				OutputSchema: calculator.OutputSchema{Result: calculator.TypeNumber, Unit: "%", Analysis: true},
			},
			compute: computeDebtYield,
		},
	)
}

func computeLoanPayment(_ context.Context, in calculator.Input) (calculator.Output, error) {
	principal := in.Number("principal")
	n := math.Round(in.Number("years") * 12)
	rate := in.Number("annual_rate") / 100 / 12

	payment := principal / n
	if rate > 0 {
		growth := math.Pow(1+rate, n)
		payment = principal * rate * growth / (growth - 1)
	}
	total := payment * n

	return calculator.Output{
		Result: payment,
		Breakdown: map[string]float64{
			"payments":       n,
			"total_paid":     total,
			"total_interest": total - principal,
		},
	}, nil
}

func computeDebtYield(_ context.Context, in calculator.Input) (calculator.Output, error) {
	noi, loan := in.Number("net_operating_income"), in.Number("loan_amount")
	if loan == 0 {
		return calculator.Output{}, fmt.Errorf("loan_amount: %w", ErrDivisionByZero)
	}
	required := requiredDebtYield[in.String("property_type")]
	dy := noi / loan * 100

	analysis := &calculator.Analysis{RiskLevel: calculator.RiskLow, Recommendation: "Comfortably above the lender minimum."}
	switch {
	case dy < required:
		analysis = &calculator.Analysis{RiskLevel: calculator.RiskHigh, Recommendation: fmt.Sprintf("Below the %.0f%% minimum; reduce the loan amount.", required)}
	case dy < required+2:
		analysis = &calculator.Analysis{RiskLevel: calculator.RiskMedium, Recommendation: "Meets the minimum with little cushion."}
	}

	return calculator.Output{
		Result: dy,
		Breakdown: map[string]float64{
			"required_debt_yield": required,
			"max_loan_amount":     noi / (required / 100),
		},
		Analysis: analysis,
	}, nil
}
