package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/smart-image-moderation/internal/cli"
	"github.com/fpang/smart-image-moderation/internal/config"
	"github.com/fpang/smart-image-moderation/internal/logging"
	"github.com/fpang/smart-image-moderation/internal/moderation"
)

// CLI flags
var (
	configFlag   string
	apiURLFlag   string
	intervalFlag time.Duration
	timeoutFlag  time.Duration
	jsonFlag     bool
)

// rootCmd is the main Cobra command for the moderation client.
var rootCmd = &cobra.Command{
	Use:   "moderate",
	Short: "Submit images for moderation and follow the analysis",
	Long: `moderate uploads an image to the Smart Image Moderation API and follows the
analysis job until it finishes, printing NSFW, face, blur, quality and OCR
results.

Configuration is read from built-in defaults, then --config (YAML), then
MODERATION_* environment variables, then flags.

Examples:
  moderate upload ./photo.jpg
  moderate upload --pick
  moderate result 4f1c2a9e-1b2c-4d5e-8f90-123456789abc
  moderate result http://localhost:3000/result/4f1c2a9e-1b2c-4d5e-8f90-123456789abc
  moderate health --api-url http://moderation.internal:8000`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&apiURLFlag, "api-url", config.DefaultAPIURL, "Moderation API base URL (env "+config.EnvAPIURL+")")
	rootCmd.PersistentFlags().DurationVar(&intervalFlag, "interval", config.DefaultPollInterval, "Status poll interval (env "+config.EnvPollInterval+")")
	rootCmd.PersistentFlags().DurationVar(&timeoutFlag, "timeout", config.DefaultRequestTimeout, "Per-request timeout (env "+config.EnvRequestTimeout+")")
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "Print the final result as JSON on stdout")

	rootCmd.AddCommand(uploadCmd, resultCmd, healthCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfig loads file and environment settings, then applies any flags
// the user set explicitly.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("api-url") {
		cfg.APIURL = apiURLFlag
	}
	if flags.Changed("interval") {
		cfg.PollInterval = intervalFlag
	}
	if flags.Changed("timeout") {
		cfg.RequestTimeout = timeoutFlag
	}
	return cfg, nil
}

// setup resolves the configuration and builds the API client. On error it
// has already logged the cause.
func setup(cmd *cobra.Command, startup *logging.StartupLogger) (*config.Config, *moderation.Client, func(), error) {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return nil, nil, nil, err
	}
	client, closeMetrics, err := cli.InitModerationClient(cfg, startup)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize the moderation client")
		return nil, nil, nil, err
	}
	return cfg, client, closeMetrics, nil
}

// uiWriter is where progress goes. With --json, stdout is reserved for the
// final document.
func uiWriter() io.Writer {
	if jsonFlag {
		return os.Stderr
	}
	return os.Stdout
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("moderate %s (built %s)\n", commitHash, buildTime)
	},
}
