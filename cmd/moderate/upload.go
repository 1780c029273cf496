package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/smart-image-moderation/internal/cli"
	"github.com/fpang/smart-image-moderation/internal/filehandler"
	"github.com/fpang/smart-image-moderation/internal/logging"
	"github.com/fpang/smart-image-moderation/internal/moderation"
	"github.com/fpang/smart-image-moderation/internal/uploadform"
)

var (
	pickFlag   bool
	noWaitFlag bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload [image]",
	Short: "Upload an image and wait for its analysis",
	Long: `Upload an image (JPEG, PNG or WebP) for analysis, then poll the job until it
succeeds or fails.

With no argument the image is chosen from a native file dialog (--pick) or
typed at a prompt. On an interactive terminal a failed upload offers a retry.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runUpload(cmd, args))
	},
}

func init() {
	uploadCmd.Flags().BoolVar(&pickFlag, "pick", false, "Choose the image with a native file dialog")
	uploadCmd.Flags().BoolVar(&noWaitFlag, "no-wait", false, "Print the job id and exit without polling")
}

func runUpload(cmd *cobra.Command, args []string) int {
	interactive := cli.IsInteractive(os.Stdin)

	startup := logging.NewStartupLogger("upload").
		CommitHash(commitHash).
		BuildTime(buildTime).
		Feature("picker", pickFlag).
		Feature("interactive", interactive).
		Feature("json", jsonFlag)
	cfg, client, closeMetrics, err := setup(cmd, startup)
	if err != nil {
		return exitFailed
	}
	defer closeMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ui := uiWriter()
	in := bufio.NewReader(os.Stdin)

	path, err := selectImagePath(args, in, ui, interactive)
	if err != nil {
		cli.ReportUploadError(err)
		return exitFailed
	}
	for {
		job, err := submitImage(ctx, client, path, ui)
		if err == nil {
			if noWaitFlag {
				fmt.Println(job)
				return exitSucceeded
			}
			return newTracker(client, cfg).track(ctx, job)
		}

		if !interactive || ctx.Err() != nil {
			cli.ReportUploadError(err)
			return exitFailed
		}

		var uploadErr *moderation.UploadError
		if errors.As(err, &uploadErr) {
			log.Debug().Err(err).Msg("Upload failed, offering retry")
			if !cli.PromptYesNo(in, ui, "Retry upload?") {
				cli.ReportUploadError(err)
				return exitFailed
			}
			continue
		}

		// Selection problem: ask for another file.
		fmt.Fprintln(ui, cli.UserMessage(err))
		if path = cli.PromptForImagePath(in, ui); path == "" {
			cli.ReportUploadError(err)
			return exitFailed
		}
		path = cli.ResolveImagePath(path)
	}
}

// errNoImage is returned when no path was given and none could be asked for.
var errNoImage = errors.New("no image given, pass a path, use --pick, or run interactively")

// selectImagePath picks the image from the argument, the file dialog or a
// prompt, in that order.
func selectImagePath(args []string, in *bufio.Reader, ui io.Writer, interactive bool) (string, error) {
	var path string
	switch {
	case len(args) == 1:
		path = args[0]
	case pickFlag:
		picked, err := cli.PickImage()
		if err != nil {
			return "", err
		}
		path = picked
	case interactive:
		path = cli.PromptForImagePath(in, ui)
	}

	if path == "" {
		return "", errNoImage
	}
	return cli.ResolveImagePath(path), nil
}

// submitImage drives one pass of the upload form: select, upload, and
// record the outcome. The image is re-read from disk on every call, so a
// retry always sends a fresh selection.
func submitImage(ctx context.Context, client *moderation.Client, path string, ui io.Writer) (moderation.JobHandle, error) {
	img, err := filehandler.LoadImage(path)
	if err != nil {
		return "", err
	}

	form := uploadform.Reduce(uploadform.Form{}, uploadform.FileSelected{
		Request: img.UploadRequest(),
		Preview: img.Describe(),
	})
	cli.RenderForm(ui, form)

	form = uploadform.Reduce(form, uploadform.UploadStarted{})
	if !form.Loading() {
		return "", fmt.Errorf("%s: nothing to upload", path)
	}
	cli.RenderForm(ui, form)

	job, err := client.Submit(ctx, *form.Request)
	if err != nil {
		form = uploadform.Reduce(form, uploadform.UploadFailed{Message: cli.UserMessage(err)})
		cli.RenderForm(ui, form)
		return "", err
	}

	form = uploadform.Reduce(form, uploadform.UploadSucceeded{Job: job})
	cli.RenderForm(ui, form)
	return form.Job, nil
}
