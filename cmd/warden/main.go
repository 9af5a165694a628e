package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/uptrace/bun/migrate"
	"github.com/urfave/cli/v3"
	"github.com/wardenhq/warden/internal/database/migrations"
	"github.com/wardenhq/warden/internal/feed"
	"github.com/wardenhq/warden/internal/membership"
	"github.com/wardenhq/warden/internal/rest"
	"github.com/wardenhq/warden/internal/setup"
	syncer "github.com/wardenhq/warden/internal/sync"
	"go.uber.org/zap"
)

// Server timeouts.
const (
	ReadTimeout     = 5 * time.Second
	WriteTimeout    = 10 * time.Second
	ShutdownTimeout = 30 * time.Second
)

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	app := &cli.Command{
		Name:  "warden",
		Usage: "Role-driven game whitelist service",
		Commands: []*cli.Command{
			{
				Name:   "worker",
				Usage:  "Start the role-sync worker listening to the Discord gateway",
				Action: runWorker,
			},
			{
				Name:   "api",
				Usage:  "Start the REST API server",
				Action: runAPI,
			},
			{
				Name:  "db",
				Usage: "Database migration commands",
				Commands: []*cli.Command{
					{
						Name:   "migrate",
						Usage:  "Run pending migrations",
						Action: handleMigrate,
					},
					{
						Name:   "rollback",
						Usage:  "Rollback the last migration group",
						Action: handleRollback,
					},
					{
						Name:   "status",
						Usage:  "Show migration status",
						Action: handleStatus,
					},
				},
			},
		},
	}

	return app.Run(context.Background(), os.Args)
}

// runWorker connects the Discord gateway feed to the reconciler and the
// departure handler and blocks until interrupted.
func runWorker(ctx context.Context, _ *cli.Command) error {
	app, err := setup.InitializeApp(ctx)
	if err != nil {
		return err
	}
	defer app.Cleanup()

	policy := app.Policy()
	links := app.DB.Service().Link()
	ledger := app.DB.Service().Whitelist()

	reconciler := syncer.NewReconciler(
		links, ledger, app.Notifier, policy, app.DebounceWindow(), app.Logger)
	departure := syncer.NewDeparture(ledger, app.Notifier, app.Logger)

	gateway, err := feed.NewDiscordFeed(
		app.Config.Discord.Token, app.Config.Discord.GuildID, reconciler, departure, app.Logger)
	if err != nil {
		return err
	}

	if err := gateway.Open(ctx); err != nil {
		return err
	}

	app.Logger.Info("Role-sync worker started",
		zap.Uint64("guildID", app.Config.Discord.GuildID),
		zap.Int("managedRoles", len(policy.Rules)))

	waitForSignal()

	app.Logger.Info("Shutting down role-sync worker...")

	closeCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	gateway.Close(closeCtx)

	return nil
}

// runAPI starts the REST server and blocks until interrupted.
func runAPI(ctx context.Context, _ *cli.Command) error {
	app, err := setup.InitializeApp(ctx)
	if err != nil {
		return err
	}
	defer app.Cleanup()

	policy := app.Policy()
	links := app.DB.Service().Link()
	ledger := app.DB.Service().Whitelist()
	source := membership.NewDiscordSource(
		app.Config.Discord.Token, app.Config.Discord.GuildID, app.Logger)

	reconciler := syncer.NewReconciler(
		links, ledger, app.Notifier, policy, app.DebounceWindow(), app.Logger)
	revalidator := syncer.NewRevalidator(
		ledger, source, app.Notifier, policy, app.MembershipTimeout(), app.Logger)

	handler := rest.NewServer(app.DB, source, reconciler, revalidator, app.Notifier, app.Logger)

	srv := &http.Server{
		Addr:         app.Config.API.ListenAddr,
		Handler:      handler,
		ReadTimeout:  ReadTimeout,
		WriteTimeout: WriteTimeout,
	}

	go func() {
		app.Logger.Info("REST server started", zap.String("addr", srv.Addr))

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.Logger.Error("Failed to start server", zap.Error(err))
		}
	}()

	waitForSignal()

	app.Logger.Info("Shutting down REST server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error("Server forced to shutdown", zap.Error(err))
	}

	return nil
}

func handleMigrate(ctx context.Context, _ *cli.Command) error {
	return withMigrator(ctx, func(migrator *migrate.Migrator, logger *zap.Logger) error {
		if err := migrator.Lock(ctx); err != nil {
			return err
		}
		defer migrator.Unlock(ctx) //nolint:errcheck // -

		group, err := migrator.Migrate(ctx)
		if err != nil {
			return err
		}

		if group.IsZero() {
			logger.Info("No new migrations to run (database is up to date)")
			return nil
		}

		logger.Info("Successfully migrated", zap.String("group", group.String()))

		return nil
	})
}

func handleRollback(ctx context.Context, _ *cli.Command) error {
	return withMigrator(ctx, func(migrator *migrate.Migrator, logger *zap.Logger) error {
		if err := migrator.Lock(ctx); err != nil {
			return err
		}
		defer migrator.Unlock(ctx) //nolint:errcheck // -

		group, err := migrator.Rollback(ctx)
		if err != nil {
			return err
		}

		if group.IsZero() {
			logger.Info("No groups to roll back")
			return nil
		}

		logger.Info("Successfully rolled back", zap.String("group", group.String()))

		return nil
	})
}

func handleStatus(ctx context.Context, _ *cli.Command) error {
	return withMigrator(ctx, func(migrator *migrate.Migrator, logger *zap.Logger) error {
		ms, err := migrator.MigrationsWithStatus(ctx)
		if err != nil {
			return err
		}

		logger.Info("Migration status",
			zap.String("migrations", ms.String()),
			zap.String("unapplied", ms.Unapplied().String()),
			zap.String("last_group", ms.LastGroup().String()))

		return nil
	})
}

func withMigrator(ctx context.Context, fn func(*migrate.Migrator, *zap.Logger) error) error {
	app, err := setup.InitializeApp(ctx)
	if err != nil {
		return err
	}
	defer app.Cleanup()

	migrator := migrate.NewMigrator(app.DB.DB(), migrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		return err
	}

	return fn(migrator, app.Logger)
}

func waitForSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
}
