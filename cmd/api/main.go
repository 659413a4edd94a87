package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-tasklist/internal/auth"
	"github.com/ovaphlow/pitchfork/service-tasklist/internal/config"
	"github.com/ovaphlow/pitchfork/service-tasklist/internal/router"
	"github.com/ovaphlow/pitchfork/service-tasklist/pkg/database"
	"github.com/ovaphlow/pitchfork/service-tasklist/pkg/telemetry"
	"github.com/ovaphlow/pitchfork/service-tasklist/pkg/utilities"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tasklist",
		Short:         "Task list REST API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd)
		},
	}
	config.Flags(root.PersistentFlags())

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (default)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd)
		},
	})
	root.AddCommand(newMigrateCmd())
	return root
}

// bootstrap loads config, builds the logger and opens the database.
func bootstrap(cmd *cobra.Command) (*config.Config, *zap.SugaredLogger, *sqlx.DB, func(), error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, nil, nil, nil, err
	}
	lg, err := utilities.Init(cfg.Log)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to init logger: %w", err)
	}
	sugar := lg.Sugar()

	db, err := database.Connect(cfg.Database)
	if err != nil {
		_ = lg.Sync()
		return nil, nil, nil, nil, fmt.Errorf("db connect: %w", err)
	}
	cleanup := func() {
		db.Close()
		_ = lg.Sync()
	}
	return cfg, sugar, db, cleanup, nil
}

func serve(cmd *cobra.Command) error {
	cfg, sugar, db, cleanup, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer cleanup()
	if err := cfg.ValidateJWT(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	sugar.Infow("starting tasklist", "addr", cfg.Server.Addr, "driver", cfg.Database.Driver)

	// graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Database.Migrate {
		applied, err := database.Migrate(ctx, db, cfg.Database.Driver)
		if err != nil {
			return err
		}
		sugar.Infow("migrations applied", "versions", applied)
	}

	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.Telemetry, sugar)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			sugar.Warnw("tracer shutdown failed", "err", err)
		}
	}()

	key, err := auth.NewSigningKey(cfg.JWT.Secret)
	if err != nil {
		return err
	}
	handler := router.RegisterRoutes(sugar, db, router.Options{
		SigningKey:  key,
		Issuer:      cfg.JWT.Issuer,
		AccessTTL:   cfg.JWT.AccessTTL,
		RefreshTTL:  cfg.JWT.RefreshTTL,
		IDNode:      cfg.ID.Node,
		CORSOrigins: cfg.Server.CORSOrigins,
	})
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	sugar.Info("service is running; press Ctrl+C to stop")

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	}

	sugar.Info("shutting down")

	doneCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnw("http server shutdown failed", "err", err)
	}
	sugar.Info("goodbye")
	return nil
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, sugar, db, cleanup, err := bootstrap(cmd)
				if err != nil {
					return err
				}
				defer cleanup()
				applied, err := database.Migrate(cmd.Context(), db, cfg.Database.Driver)
				if err != nil {
					return err
				}
				sugar.Infow("migrations applied", "versions", applied)
				return nil
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, sugar, db, cleanup, err := bootstrap(cmd)
				if err != nil {
					return err
				}
				defer cleanup()
				v, err := database.Rollback(cmd.Context(), db, cfg.Database.Driver)
				if err != nil {
					return err
				}
				sugar.Infow("migration rolled back", "version", v)
				return nil
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show applied and pending migrations",
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, _, db, cleanup, err := bootstrap(cmd)
				if err != nil {
					return err
				}
				defer cleanup()
				rows, err := database.Status(cmd.Context(), db, cfg.Database.Driver)
				if err != nil {
					return err
				}
				for _, s := range rows {
					state := "pending"
					if s.Applied {
						state = "applied"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%05d  %-8s %s\n", s.Version, state, s.Path)
				}
				return nil
			},
		},
	)
	return cmd
}
