package main

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/matiasleandrokruk/calcatalog/internal/domain/calculator"
	"github.com/matiasleandrokruk/calcatalog/internal/domain/calculator/builtin"
	"github.com/matiasleandrokruk/calcatalog/internal/domain/calculator/script"
	"github.com/matiasleandrokruk/calcatalog/internal/infra/config"
	"github.com/matiasleandrokruk/calcatalog/internal/infra/logging"
	"go.opentelemetry.io/otel/trace"
)

// catalog is a bootstrapped registry and its dispatcher.
type catalog struct {
	registry   *calculator.Registry
	dispatcher *calculator.Dispatcher
	loader     *script.Loader
	report     calculator.BootstrapReport
	logger     *slog.Logger
}

type catalogOptions struct {
	bus    calculator.Publisher
	tracer trace.Tracer
}

// buildCatalog registers the built-in modules and, when a manifest is
// configured, the scripted calculators it declares.
func buildCatalog(ctx context.Context, cfg config.Config, logger *slog.Logger, opts catalogOptions) *catalog {
	reg := calculator.NewRegistry(calculator.Options{
		Logger:       logger,
		Bus:          opts.bus,
		ValidatorTTL: cfg.ValidatorTTL,
	})

	modules := builtin.Modules()
	var loader *script.Loader
	if cfg.ManifestPath != "" {
		loader = script.NewLoader(cfg.ManifestPath, logger)
		modules = append(modules, loader.Module())
	}

	report := calculator.Bootstrap(ctx, reg, modules...)
	return &catalog{
		registry:   reg,
		dispatcher: calculator.NewDispatcher(reg, calculator.DispatcherOptions{
			Timeout: cfg.ExecutionTimeout,
			Logger:  logger,
			Bus:     opts.bus,
			Tracer:  opts.tracer,
		}),
		loader: loader,
		report: report,
		logger: logger,
	}
}

// reload re-reads the manifest. It reports errNoManifest when scripted
// calculators are not configured.
func (c *catalog) reload(ctx context.Context) (script.ReloadReport, error) {
	if c.loader == nil {
		return script.ReloadReport{}, errNoManifest
	}
	return c.loader.Reload(ctx, c.registry)
}

var errNoManifest = errors.New("no calculator manifest configured")

// loadCLI loads configuration and a quiet catalog for one-shot commands.
// Logs go to stderr so stdout carries only command output.
func loadCLI(ctx context.Context, stderr io.Writer) (*catalog, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, usageError{err}
	}
	level := cfg.LogLevel
	if level == "info" {
		level = "warn"
	}
	logger := logging.New(level, cfg.LogFormat, stderr)
	return buildCatalog(ctx, cfg, logger, catalogOptions{}), nil
}
