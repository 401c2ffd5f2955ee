package main

import (
	"context"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	awsadapter "github.com/yairfalse/billing-enforcer/internal/aws"
	"github.com/yairfalse/billing-enforcer/internal/config"
	"github.com/yairfalse/billing-enforcer/internal/telemetry"
)

// serveCmd runs the Lambda runtime loop
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the Lambda runtime API",
	Long: `Start the Lambda runtime loop. Configuration is read once from the
environment (and the optional TOML file named by ENFORCER_CONFIG) at cold start.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(envOr(config.EnvConfigFile, ""))
	if err != nil {
		return err
	}

	if err := telemetry.SetupLogging(cfg.Log.Level, false); err != nil {
		return err
	}

	tel, err := telemetry.NewProvider(ctx, cfg.OTEL)
	if err != nil {
		return err
	}

	clients, err := awsadapter.NewClients(ctx, "")
	if err != nil {
		return err
	}

	enf, err := buildEnforcer(cfg, clients, false)
	if err != nil {
		return err
	}

	log.Info().
		Str("event_bus", cfg.Events.BusName).
		Str("event_source", cfg.Events.Source).
		Bool("notifications", cfg.NotificationsEnabled()).
		Msg("billing enforcer starting")

	lambda.StartWithOptions(newHandler(enf, tel),
		lambda.WithContext(ctx),
		lambda.WithEnableSIGTERM(func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
			defer cancel()
			if err := tel.Shutdown(shutdownCtx); err != nil {
				log.Warn().Err(err).Msg("telemetry shutdown failed")
			}
		}),
	)
	return nil
}
