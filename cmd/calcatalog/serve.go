package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/matiasleandrokruk/calcatalog/internal/api"
	"github.com/matiasleandrokruk/calcatalog/internal/domain/journal"
	"github.com/matiasleandrokruk/calcatalog/internal/infra/config"
	"github.com/matiasleandrokruk/calcatalog/internal/infra/eventbus"
	"github.com/matiasleandrokruk/calcatalog/internal/infra/logging"
	"github.com/matiasleandrokruk/calcatalog/internal/infra/sqlite"
	"github.com/matiasleandrokruk/calcatalog/internal/infra/telemetry"
	"github.com/matiasleandrokruk/calcatalog/internal/infra/watcher"
	"github.com/matiasleandrokruk/calcatalog/internal/server"
	pkgauth "github.com/matiasleandrokruk/calcatalog/pkg/auth"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API.

Admin routes (/auth/token, /api/v1/admin/*) are mounted only when both
JWT_SECRET and CALCATALOG_ADMIN_PASSWORD_HASH are set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return usageError{err}
			}
			if cmd.Flags().Changed("host") {
				cfg.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if err := cfg.Validate(); err != nil {
				return usageError{err}
			}
			return serve(cmd.Context(), cfg, cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "listen host (overrides CALCATALOG_HOST)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides CALCATALOG_PORT)")
	return cmd
}

func serve(ctx context.Context, cfg config.Config, logOut io.Writer) error {
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, logOut)

	tp, err := telemetry.NewProvider(cfg.TraceStdout, logOut)
	if err != nil {
		return err
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}()

	bus := eventbus.New()
	defer bus.Close()

	cat := buildCatalog(ctx, cfg, logger, catalogOptions{bus: bus, tracer: tp.Tracer()})
	deps := api.Deps{
		Resolver: cat.registry,
		Executor: cat.dispatcher,
		Logger:   logger,
	}

	var closers []io.Closer
	if cfg.JournalPath != "" {
		db, err := sqlite.Open(ctx, cfg.JournalPath)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		closers = append(closers, db)
		svc := journal.NewService(db, logger)
		go svc.Run(ctx, bus)
		deps.Journal = svc
	}

	if cat.loader != nil {
		deps.Reload = cat.reload
		if cfg.WatchManifest {
			if err := watchManifest(ctx, cfg, cat, logger); err != nil {
				return err
			}
		}
	}

	if cfg.AdminEnabled() {
		issuer, err := pkgauth.NewIssuer(cfg.JWTSecret, cfg.JWTExpiry())
		if err != nil {
			return err
		}
		deps.Issuer = issuer
		deps.AdminPasswordHash = cfg.AdminPasswordHash
	}

	srvCfg := server.DefaultConfig()
	srvCfg.Host, srvCfg.Port = cfg.Host, cfg.Port
	srv := server.NewServer(api.NewRouter(deps), srvCfg, logger, closers...)
	return srv.Start(ctx)
}

func watchManifest(ctx context.Context, cfg config.Config, cat *catalog, logger *slog.Logger) error {
	w, err := watcher.New(watcher.Config{
		ManifestPath: cfg.ManifestPath,
		Debounce:     cfg.WatchDebounce,
		Logger:       logger,
	})
	if err != nil {
		return err
	}
	go func() {
		err := w.Run(ctx, func(ctx context.Context) error {
			_, err := cat.reload(ctx)
			return err
		})
		if err != nil {
			logger.Error("manifest watcher stopped", "error", err)
		}
	}()
	return nil
}
