package cli

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/smart-image-moderation/internal/config"
	"github.com/fpang/smart-image-moderation/internal/logging"
	"github.com/fpang/smart-image-moderation/internal/metrics"
	"github.com/fpang/smart-image-moderation/internal/moderation"
)

// InitModerationClient validates cfg, opens the metrics sink and creates the
// API client. The returned func closes the metrics sink and is safe to call
// more than once.
func InitModerationClient(cfg *config.Config, startup *logging.StartupLogger) (*moderation.Client, func(), error) {
	began := time.Now()

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	closeMetrics := func() {}
	if cfg.MetricsFile != "" {
		closeFn, err := metrics.OpenFile(cfg.MetricsFile)
		if err != nil {
			return nil, nil, err
		}
		var closed bool
		closeMetrics = func() {
			if closed {
				return
			}
			closed = true
			if err := closeFn(); err != nil {
				log.Warn().Err(err).Str("path", cfg.MetricsFile).Msg("Failed to close metrics file")
			}
		}
	}

	client := moderation.NewClient(cfg.BaseURL(), cfg.RequestTimeout)

	startup.
		Endpoint("api", client.BaseURL()).
		Config("pollInterval", cfg.PollInterval.String()).
		Config("requestTimeout", cfg.RequestTimeout.String()).
		Feature("metrics", cfg.MetricsFile != "").
		InitDuration(time.Since(began)).
		Log()

	return client, closeMetrics, nil
}
