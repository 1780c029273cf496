package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/smart-image-moderation/internal/cli"
	"github.com/fpang/smart-image-moderation/internal/logging"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the API, Redis and Celery workers",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runHealth(cmd, args))
	},
}

func runHealth(cmd *cobra.Command, args []string) int {
	startup := logging.NewStartupLogger("health").
		CommitHash(commitHash).
		BuildTime(buildTime).
		Feature("json", jsonFlag)
	cfg, client, closeMetrics, err := setup(cmd, startup)
	if err != nil {
		return exitFailed
	}
	defer closeMetrics()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer cancel()

	report, err := client.Health(ctx)
	if err != nil {
		log.Error().Err(err).Str("api", client.BaseURL()).Msg("Health check failed")
		return exitFailed
	}

	if jsonFlag {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			log.Error().Err(err).Msg("Failed to write JSON report")
		}
	} else {
		cli.RenderHealth(os.Stdout, client.BaseURL(), report)
	}

	if !report.Healthy() {
		return exitFailed
	}
	return exitSucceeded
}
