package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/matiasleandrokruk/calcatalog/internal/domain/calculator"
)

// ModuleName is the name scripted calculators are registered under.
const ModuleName = "script"

// Loader owns the calculators defined by one manifest file. It registers
// them at bootstrap and reconciles the registry with the file on Reload.
type Loader struct {
	path   string
	logger *slog.Logger

	mu    sync.Mutex
	owned map[string]struct{}
}

// NewLoader returns a loader for the manifest at path.
func NewLoader(path string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{path: path, logger: logger, owned: make(map[string]struct{})}
}

// Path returns the manifest path.
func (ld *Loader) Path() string { return ld.path }

// Owned returns the ids currently registered from the manifest, sorted.
func (ld *Loader) Owned() []string {
	ld.mu.Lock()
	defer ld.mu.Unlock()
	ids := make([]string, 0, len(ld.owned))
	for id := range ld.owned {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Module adapts the manifest into a bootstrap module. A manifest that cannot
// be read fails the module; a single bad script only rejects its calculator.
func (ld *Loader) Module() calculator.Module {
	return calculator.ModuleFunc{ModuleName: ModuleName, Fn: ld.register}
}

func (ld *Loader) register(r calculator.Registrar) error {
	specs, err := LoadManifest(ld.path)
	if err != nil {
		return err
	}

	ld.mu.Lock()
	defer ld.mu.Unlock()

	var errs []error
	for _, s := range specs {
		fn, err := s.ComputeFunc()
		if err != nil {
			ld.logger.Warn("scripted calculator skipped", "id", s.ID, "error", err)
			errs = append(errs, err)
			continue
		}
		id, err := r.Register(s.Descriptor, fn)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		ld.owned[id] = struct{}{}
	}
	return errors.Join(errs...)
}

// ComputeFunc compiles the entry's script into a compute function.
func (s Spec) ComputeFunc() (calculator.ComputeFunc, error) {
	p, err := compile(s.ID, s.Script)
	if err != nil {
		return nil, err
	}
	return p.compute, nil
}

// ReloadReport summarizes one reconciliation pass.
type ReloadReport struct {
	Reloaded []string          `json:"reloaded"`
	Removed  []string          `json:"removed"`
	Failed   map[string]string `json:"failed,omitempty"`
}

// Reloader is the registry surface Reload needs.
type Reloader interface {
	ReRegister(d calculator.Descriptor, fn calculator.ComputeFunc) error
	Unregister(id string) error
	GetByID(id string) (calculator.Descriptor, error)
}

// Reload re-reads the manifest and swaps every scripted calculator in reg.
// Calculators that disappeared from the manifest are unregistered. A manifest
// that no longer parses leaves the registry untouched. Ids owned by another
// module are never overwritten.
func (ld *Loader) Reload(ctx context.Context, reg Reloader) (ReloadReport, error) {
	var report ReloadReport
	if err := ctx.Err(); err != nil {
		return report, err
	}
	specs, err := LoadManifest(ld.path)
	if err != nil {
		return report, err
	}

	ld.mu.Lock()
	defer ld.mu.Unlock()

	seen := make(map[string]struct{}, len(specs))
	fail := func(id string, err error) {
		if report.Failed == nil {
			report.Failed = make(map[string]string)
		}
		report.Failed[id] = err.Error()
		ld.logger.Warn("scripted calculator reload failed", "id", id, "error", err)
	}

	for _, s := range specs {
		seen[s.ID] = struct{}{}
		if _, mine := ld.owned[s.ID]; !mine {
			if _, err := reg.GetByID(s.ID); err == nil {
				fail(s.ID, fmt.Errorf("%w: %q belongs to another module", calculator.ErrDuplicateID, s.ID))
				continue
			}
		}
		fn, err := s.ComputeFunc()
		if err != nil {
			fail(s.ID, err)
			continue
		}
		if err := reg.ReRegister(s.Descriptor, fn); err != nil {
			fail(s.ID, err)
			continue
		}
		ld.owned[s.ID] = struct{}{}
		report.Reloaded = append(report.Reloaded, s.ID)
	}

	for id := range ld.owned {
		if _, keep := seen[id]; keep {
			continue
		}
		if err := reg.Unregister(id); err != nil && !errors.Is(err, calculator.ErrNotFound) {
			fail(id, err)
			continue
		}
		delete(ld.owned, id)
		report.Removed = append(report.Removed, id)
	}

	slices.Sort(report.Reloaded)
	slices.Sort(report.Removed)
	ld.logger.Info("calculator manifest reloaded",
		"path", ld.path,
		"reloaded", len(report.Reloaded),
		"removed", len(report.Removed),
		"failed", len(report.Failed),
	)
	return report, nil
}
