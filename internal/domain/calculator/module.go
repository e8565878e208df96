package calculator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Registrar is the write side a calculator module sees during bootstrap.
type Registrar interface {
	Register(d Descriptor, fn ComputeFunc) (string, error)
}

// Module is one unit of calculators loaded from the startup manifest.
type Module interface {
	Name() string
	Register(r Registrar) error
}

// ModuleFunc adapts a plain function into a Module.
type ModuleFunc struct {
	ModuleName string
	Fn         func(r Registrar) error
}

func (m ModuleFunc) Name() string               { return m.ModuleName }
func (m ModuleFunc) Register(r Registrar) error { return m.Fn(r) }

// Rejection records a registration that bootstrap skipped.
type Rejection struct {
	ID     string
	Module string
	Err    error
}

// BootstrapReport summarizes a bootstrap run.
type BootstrapReport struct {
	Registered []string
	Rejected   []Rejection
}

// recordingRegistrar forwards to the registry, collecting outcomes instead of
// letting one bad descriptor abort its module.
type recordingRegistrar struct {
	reg    *Registry
	module string
	report *BootstrapReport
	logger *slog.Logger
}

func (rr *recordingRegistrar) Register(d Descriptor, fn ComputeFunc) (string, error) {
	id, err := rr.reg.Register(d, fn)
	if err != nil {
		rr.report.Rejected = append(rr.report.Rejected, Rejection{ID: d.ID, Module: rr.module, Err: err})
		rr.logger.Warn("calculator registration skipped", "module", rr.module, "id", d.ID, "error", err)
		return "", err
	}
	rr.report.Registered = append(rr.report.Registered, id)
	return id, nil
}

// Bootstrap registers every module in the given order, then seals reg.
// Malformed and duplicate registrations are logged and reported; the catalog
// still starts with every valid calculator. A module that returns an error
// is reported under its name and the remaining modules still load.
func Bootstrap(ctx context.Context, reg *Registry, modules ...Module) BootstrapReport {
	var report BootstrapReport
	logger := reg.logger

	for _, m := range modules {
		if err := ctx.Err(); err != nil {
			report.Rejected = append(report.Rejected, Rejection{Module: m.Name(), Err: err})
			continue
		}
		rr := &recordingRegistrar{reg: reg, module: m.Name(), report: &report, logger: logger}
		if err := registerModule(m, rr); err != nil && !isRegistrationErr(err) {
			report.Rejected = append(report.Rejected, Rejection{Module: m.Name(), Err: err})
			logger.Error("calculator module failed", "module", m.Name(), "error", err)
		}
	}

	reg.Seal()
	logger.Info("calculator bootstrap complete",
		"modules", len(modules),
		"registered", len(report.Registered),
		"rejected", len(report.Rejected),
	)
	return report
}

func registerModule(m Module, r Registrar) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("module %s panicked: %v", m.Name(), p)
		}
	}()
	return m.Register(r)
}

// isRegistrationErr reports errors the recording registrar already recorded,
// so a module that propagates them is not reported twice.
func isRegistrationErr(err error) bool {
	return errors.Is(err, ErrMalformedDescriptor) ||
		errors.Is(err, ErrDuplicateID) ||
		errors.Is(err, ErrRegistryClosed)
}
