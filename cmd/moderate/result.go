package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/smart-image-moderation/internal/cli"
	"github.com/fpang/smart-image-moderation/internal/config"
	"github.com/fpang/smart-image-moderation/internal/jobs"
	"github.com/fpang/smart-image-moderation/internal/logging"
	"github.com/fpang/smart-image-moderation/internal/moderation"
	"github.com/fpang/smart-image-moderation/internal/poller"
)

// Exit codes for a tracked job.
const (
	exitSucceeded   = 0
	exitFailed      = 1
	exitInterrupted = 130
)

var resultCmd = &cobra.Command{
	Use:   "result <job-id | result-url>",
	Short: "Follow an existing analysis job",
	Long: `Poll an analysis job until it succeeds or fails. The job may be given as a bare
id or as a result page URL ending in /result/{job_id}.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runResult(cmd, args))
	},
}

func runResult(cmd *cobra.Command, args []string) int {
	job, err := jobs.ParseResultRoute(args[0])
	if err != nil {
		log.Error().Err(err).Str("arg", args[0]).Msg("Invalid job id")
		return exitFailed
	}

	startup := logging.NewStartupLogger("result").
		CommitHash(commitHash).
		BuildTime(buildTime).
		Feature("json", jsonFlag).
		Config("jobId", job.String())
	cfg, client, closeMetrics, err := setup(cmd, startup)
	if err != nil {
		return exitFailed
	}
	defer closeMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return newTracker(client, cfg).track(ctx, job)
}

// tracker follows one job and renders it. Progress goes to ui; with asJSON
// the final document goes to out.
type tracker struct {
	client   *moderation.Client
	interval time.Duration
	ui       io.Writer
	out      io.Writer
	asJSON   bool
}

func newTracker(client *moderation.Client, cfg *config.Config) tracker {
	return tracker{
		client:   client,
		interval: cfg.PollInterval,
		ui:       uiWriter(),
		out:      os.Stdout,
		asJSON:   jsonFlag,
	}
}

// track polls job until a terminal state or until ctx is cancelled,
// rendering status changes as they arrive. It returns the process exit code.
func (t tracker) track(ctx context.Context, job moderation.JobHandle) int {
	p := poller.New(t.client, poller.WithInterval(t.interval))
	defer p.Stop()

	if err := p.Start(ctx, job); err != nil {
		log.Error().Err(err).Str("jobId", job.String()).Msg("Cannot track job")
		return exitFailed
	}

	cli.RenderHeader(t.ui, job)
	began := time.Now()

	var shown poller.Snapshot
	for snap := range p.Updates() {
		if snap.StatusText != shown.StatusText || snap.State != shown.State {
			cli.RenderStatus(t.ui, snap)
		}
		shown = snap
	}

	final := p.Snapshot()
	if !final.State.Terminal() {
		log.Warn().Str("jobId", job.String()).Int("checks", p.Checks()).Msg("Stopped polling before the job finished")
		fmt.Fprintf(t.ui, "Stopped. Resume with: moderate result %s\n", job)
		return exitInterrupted
	}

	cli.RenderSnapshot(t.ui, final)
	fmt.Fprintf(t.ui, "Completed in %s (%d status checks)\n", cli.FormatDurationShort(time.Since(began)), p.Checks())

	if t.asJSON {
		if err := cli.WriteSnapshotJSON(t.out, final); err != nil {
			log.Error().Err(err).Msg("Failed to write JSON result")
		}
	}

	if final.State == poller.StateFailed {
		return exitFailed
	}
	return exitSucceeded
}
