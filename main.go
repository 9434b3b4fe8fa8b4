// Package main is the entry point for the PocketBase extension with sync capabilities
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/jsvm"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/pocketbase/pocketbase/tools/hook"
	"github.com/spf13/cobra"

	"github.com/meridian/lifehub/pocketbase/bridge"
	"github.com/meridian/lifehub/pocketbase/google"
	"github.com/meridian/lifehub/pocketbase/logging"
	_ "github.com/meridian/lifehub/pocketbase/migrations"
	"github.com/meridian/lifehub/pocketbase/sync"
)

func main() {
	// Initialize unified logging format
	// Format: 2026-01-06T14:05:52Z [pocketbase] LEVEL message
	logging.Init("pocketbase")

	app := pocketbase.New()

	// ---------------------------------------------------------------
	// Optional plugin flags:
	// ---------------------------------------------------------------

	var hooksDir string
	app.RootCmd.PersistentFlags().StringVar(
		&hooksDir,
		"hooksDir",
		"",
		"the directory with the JS app hooks",
	)

	var hooksWatch bool
	app.RootCmd.PersistentFlags().BoolVar(
		&hooksWatch,
		"hooksWatch",
		true,
		"auto restart the app on pb_hooks file change",
	)

	var hooksPool int
	app.RootCmd.PersistentFlags().IntVar(
		&hooksPool,
		"hooksPool",
		15,
		"the total prewarm goja.Runtime instances for the JS app hooks execution",
	)

	var migrationsDir string
	app.RootCmd.PersistentFlags().StringVar(
		&migrationsDir,
		"migrationsDir",
		"",
		"the directory with the user defined migrations",
	)

	var automigrate bool
	app.RootCmd.PersistentFlags().BoolVar(
		&automigrate,
		"automigrate",
		true,
		"enable/disable auto migrations",
	)

	var publicDir string
	app.RootCmd.PersistentFlags().StringVar(
		&publicDir,
		"publicDir",
		defaultPublicDir(),
		"the directory to serve static files",
	)

	var indexFallback bool
	app.RootCmd.PersistentFlags().BoolVar(
		&indexFallback,
		"indexFallback",
		true,
		"fallback the request to index.html on missing static path",
	)

	// ---------------------------------------------------------------
	// Register plugins:
	// ---------------------------------------------------------------

	// load jsvm (hooks and migrations)
	jsvm.MustRegister(app, jsvm.Config{
		HooksDir:      hooksDir,
		HooksWatch:    hooksWatch,
		HooksPoolSize: hooksPool,
		MigrationsDir: migrationsDir,
	})

	// register the `migrate` command; collections are defined in Go
	// migrations imported above
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		TemplateLang: migratecmd.TemplateLangGo,
		Automigrate:  automigrate,
		Dir:          migrationsDir,
	})

	// ---------------------------------------------------------------
	// Custom commands:
	// ---------------------------------------------------------------

	// one-shot worker pass, for cron-driven or containerized deployments
	app.RootCmd.AddCommand(&cobra.Command{
		Use:   "sync-worker",
		Short: "Claim and process queued sync jobs, then exit",
		Run: func(_ *cobra.Command, _ []string) {
			if err := app.Bootstrap(); err != nil {
				slog.Error("Failed to bootstrap application", "error", err)
				os.Exit(1)
			}

			cfg, err := sync.LoadConfig()
			if err != nil {
				slog.Error("Invalid sync configuration", "error", err)
				os.Exit(1)
			}

			worker := sync.NewWorker(app, sync.DefaultSchema(), cfg)
			if err := worker.Run(context.Background()); err != nil {
				slog.Error("Worker pass failed", "error", err)
				os.Exit(1)
			}
		},
	})

	// one-shot producer pass: pull fresh provider data into the inbox and
	// enqueue the jobs a worker pass will drain
	app.RootCmd.AddCommand(&cobra.Command{
		Use:   "sync-stage",
		Short: "Fetch connected provider data into the sync inbox, then exit",
		Run: func(_ *cobra.Command, _ []string) {
			if err := app.Bootstrap(); err != nil {
				slog.Error("Failed to bootstrap application", "error", err)
				os.Exit(1)
			}

			staged, err := runStagingPass(context.Background(), app)
			if err != nil {
				slog.Error("Staging pass failed", "error", err)
				os.Exit(1)
			}
			slog.Info("Staging pass complete", "staged", staged)
		},
	})

	// ---------------------------------------------------------------
	// Register custom routes and services:
	// ---------------------------------------------------------------

	// Register sync service
	app.OnServe().Bind(&hook.Handler[*core.ServeEvent]{
		Func: func(e *core.ServeEvent) error {
			slog.Info("Initializing LifeHub sync service")
			if err := sync.InitializeSyncService(app, e); err != nil {
				return err
			}

			return e.Next()
		},
	})

	// Start scheduler after the app is fully initialized
	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		cfg, err := sync.LoadConfig()
		if err != nil {
			slog.Error("Invalid sync configuration", "error", err)
			os.Exit(1)
		}

		scheduler := sync.NewScheduler(app, sync.DefaultSchema(), cfg)
		if err := scheduler.Start(); err != nil {
			slog.Error("Failed to start sync scheduler", "error", err)
		}

		return e.Next()
	})

	// Register static file serving (with lowest priority)
	app.OnServe().Bind(&hook.Handler[*core.ServeEvent]{
		Func: func(e *core.ServeEvent) error {
			if !e.Router.HasRoute(http.MethodGet, "/{path...}") {
				e.Router.GET("/{path...}", apis.Static(os.DirFS(publicDir), indexFallback))
			}
			return e.Next()
		},
		Priority: 999,
	})

	if err := app.Start(); err != nil {
		slog.Error("Failed to start application", "error", err)
		os.Exit(1)
	}
}

// runStagingPass pulls fresh data from every configured connector into the
// inbox, one connected integration at a time. A connector failure for one
// user never blocks the others.
func runStagingPass(ctx context.Context, app core.App) (int, error) {
	schema := sync.DefaultSchema()
	total := 0

	if bridge.IsEnabled() {
		cfg, err := bridge.LoadConfig()
		if err != nil {
			return total, err
		}
		client, err := bridge.NewClient(cfg)
		if err != nil {
			return total, err
		}
		stager := bridge.NewStager(app, schema, client)

		records, err := connectedIntegrations(app, schema, bridge.Provider)
		if err != nil {
			return total, err
		}
		for _, record := range records {
			userID := record.GetString("user")
			since := record.GetDateTime("last_synced").Time()
			staged, err := stager.StageUser(ctx, userID, since)
			if err != nil {
				slog.Error("Bridge staging failed", "user", userID, "error", err)
				continue
			}
			total += staged
		}
	} else {
		slog.Debug("Device bridge not configured, skipping")
	}

	if google.IsEnabled() {
		service, err := google.NewCalendarClient(ctx)
		if err != nil {
			return total, err
		}
		stager := google.NewCalendarStager(app, schema, service)

		records, err := connectedIntegrations(app, schema, google.Provider)
		if err != nil {
			return total, err
		}
		// Refresh a rolling window around today; re-staged events converge
		// through the external-id mapping.
		from := time.Now().AddDate(0, 0, -7)
		to := time.Now().AddDate(0, 0, 30)
		for _, record := range records {
			userID := record.GetString("user")
			staged, err := stager.StageUser(ctx, userID, "", from, to)
			if err != nil {
				slog.Error("Calendar staging failed", "user", userID, "error", err)
				continue
			}
			total += staged
		}
	} else {
		slog.Debug("Google Calendar sync disabled, skipping")
	}

	return total, nil
}

// connectedIntegrations lists the connected, sync-enabled integrations for a
// provider.
func connectedIntegrations(app core.App, schema sync.Schema, provider string) ([]*core.Record, error) {
	return app.FindRecordsByFilter(
		schema.Integrations,
		"connected = true && sync_enabled = true && provider = {:provider}",
		"",
		0,
		0,
		dbx.Params{"provider": provider},
	)
}

// the default pb_public dir location is relative to the executable
func defaultPublicDir() string {
	if strings.HasPrefix(os.Args[0], os.TempDir()) {
		// most likely ran with go run
		return "./pb_public"
	}

	return filepath.Join(filepath.Dir(os.Args[0]), "pb_public")
}
