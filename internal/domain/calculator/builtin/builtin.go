// Package builtin holds the calculators compiled into the binary. Each file
// contributes one calculator.Module; Modules lists them in load order.
package builtin

import (
	"errors"

	"github.com/matiasleandrokruk/calcatalog/internal/domain/calculator"
)

const (
	ROICalculator           = "roi-calculator"
	ROICalculatorUnderscore = "roi_calculator"
	MarketingROICalculator  = "marketing-roi-calculator"
	BMICalculator           = "bmi-calculator"
	LoanPaymentCalculator   = "loan-payment-calculator"
	DebtYieldRatio          = "debt-yield-ratio-calculator"
	BreakEvenCalculator     = "break-even-calculator"
)

// ErrDivisionByZero is returned when a formula's denominator collapses to zero
// after validation, e.g. a zero cost on ROI.
var ErrDivisionByZero = errors.New("division by zero")

// Modules returns the manifest of built-in modules in load order.
func Modules() []calculator.Module {
	return []calculator.Module{
		calculator.ModuleFunc{ModuleName: "roi", Fn: registerROI},
		calculator.ModuleFunc{ModuleName: "marketing", Fn: registerMarketing},
		calculator.ModuleFunc{ModuleName: "health", Fn: registerHealth},
		calculator.ModuleFunc{ModuleName: "lending", Fn: registerLending},
		calculator.ModuleFunc{ModuleName: "business", Fn: registerBusiness},
	}
}

func number(name, label, unit string, required bool, lo, hi *float64) calculator.Field {
	f := calculator.Field{Name: name, Label: label, Type: calculator.TypeNumber, Required: required, Unit: unit}
	if lo != nil || hi != nil {
		f.Constraints = &calculator.Constraints{Min: lo, Max: hi}
	}
	return f
}

func bound(v float64) *float64 { return &v }

// registerAll attempts every definition and joins the rejections.
func registerAll(r calculator.Registrar, defs ...definition) error {
	var errs []error
	for _, d := range defs {
		if _, err := r.Register(d.descriptor, d.compute); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type definition struct {
	descriptor calculator.Descriptor
	compute    calculator.ComputeFunc
}
