package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/emilythestrangee/lokniti/backend/internal/ai"
	"github.com/emilythestrangee/lokniti/backend/internal/config"
	"github.com/emilythestrangee/lokniti/backend/internal/database"
	"github.com/emilythestrangee/lokniti/backend/internal/logging"
	"github.com/emilythestrangee/lokniti/backend/internal/metrics"
	"github.com/emilythestrangee/lokniti/backend/internal/notify"
	"github.com/emilythestrangee/lokniti/backend/internal/server"
)

var (
	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:           "lokniti",
		Short:         "LokNiti community platform backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			cfg = loaded
			logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
			return nil
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE:  runServe,
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE:  runMigrate,
	}
)

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runMigrate(cmd *cobra.Command, args []string) error {
	db, err := database.New(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	return db.Migrate()
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("failed to close database")
		}
	}()
	if err := db.Migrate(); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var sms notify.SMSSender
	if cfg.SMS.Enabled {
		sms = notify.NewTwilioSender(cfg.SMS.AccountSID, cfg.SMS.AuthToken, cfg.SMS.FromNumber)
		logging.Info().Msg("sms alerts enabled")
	}
	notifier := notify.New(sms, cfg.SMS.Concurrency, m)

	var gen ai.Generator
	if cfg.AI.Enabled() {
		gen = ai.NewOpenAIClient(cfg.AI)
	} else {
		logging.Warn().Msg("no AI api key configured, AI routes will answer 503")
	}
	assistant := ai.NewService(gen, ai.BreakerSettings{
		FailureThreshold: cfg.AI.FailureThreshold,
		Cooldown:         cfg.AI.Cooldown,
	}, m)

	srv, err := server.New(server.Options{
		Config:   cfg,
		DB:       db,
		Notifier: notifier,
		AI:       assistant,
		Registry: reg,
		Metrics:  m,
	})
	if err != nil {
		return err
	}

	if err := srv.Run(ctx); err != nil {
		return err
	}

	// Let in-flight SMS batches finish before the process exits.
	notifier.Wait()
	logging.Info().Msg("server stopped")
	return nil
}
