package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prescripto/booking/api"
	"github.com/prescripto/booking/internal/bootstrap"
	"github.com/prescripto/booking/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	// A missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "booking",
		Short: "Clinic appointment booking service",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			return runServer(cmd.Context(), path)
		},
	}
	rootCmd.PersistentFlags().String("config", "", "path to config file (defaults to $CONFIG_PATH or config.yaml)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(reconcileCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(domain.Cause(err)).Msg("command failed")
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and gRPC health servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			return runServer(cmd.Context(), path)
		},
	}
}

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Remove calendar slots that no pending appointment holds",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			app, err := newApp(cmd.Context(), path, false)
			if err != nil {
				return err
			}
			defer app.Close()

			report, err := app.reconcile.Run(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
}

func runServer(ctx context.Context, configPath string) error {
	app, err := newApp(ctx, configPath, true)
	if err != nil {
		return err
	}
	defer app.Close()

	router := api.NewRouter(
		api.RouterConfig{JWTSecret: app.cfg.Auth.JWTSecret, SwaggerDir: app.cfg.HTTP.SwaggerDir, Log: app.log},
		api.NewAppointmentHandler(app.booking, app.lifecycle, app.doctors),
		api.NewDoctorHandler(app.doctors),
		api.NewAdminHandler(app.reconcile),
	)
	return bootstrap.Run(ctx, app.cfg, router, app.log)
}
