package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	statusadapter "github.com/openmri/mrc/internal/adapters/render/status"
	"github.com/openmri/mrc/internal/application"
	"github.com/openmri/mrc/internal/postproc"
)

func newRunCmd(app *app) *cobra.Command {
	var (
		repetitions int
		timeout     time.Duration
		raw         bool
	)

	cmd := &cobra.Command{
		Use:   "run <sequence>",
		Short: "Compile a sequence, run the acquisition, and show the results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			timeline, params, err := app.console.Compile(ctx, args[0])
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("repetitions") {
				params.Repetitions = repetitions
			}

			acquisition := application.NewAcquisitionService(app.newCard(), nil)
			if err := acquisition.Configure(ctx, timeline); err != nil {
				return err
			}

			var result application.RunResult
			runErr := runAcquisitionSpinner(ctx, cmd.ErrOrStderr(), func(ctx context.Context) error {
				var err error
				result, err = acquisition.Run(ctx, application.RunConfig{
					Repetitions:    params.Repetitions,
					Timeout:        timeout,
					TimeoutRetries: params.TimeoutRetries,
				})
				return err
			})

			// Repetitions captured before a failure are still worth showing.
			var summaries []postproc.ChannelSummary
			if !raw && len(result.Records) > 0 {
				record, err := postproc.Process(result.Records, app.console.ProcessOptions(params))
				if err != nil {
					return fmt.Errorf("post-process records: %w", err)
				}
				summaries, err = postproc.Summarize(record)
				if err != nil {
					return fmt.Errorf("summarize records: %w", err)
				}
			}

			rendered, err := app.renderRun(result, summaries, statusadapter.RenderOptions{})
			if err != nil {
				return fmt.Errorf("render run result: %w", err)
			}
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), rendered); err != nil {
				return err
			}

			return runErr
		},
	}

	cmd.Flags().IntVar(&repetitions, "repetitions", 0, "Override the stored repetition count")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Per-repetition completion timeout (default derives from the timeline)")
	cmd.Flags().BoolVar(&raw, "raw", false, "Skip post-processing and show only the raw run outcome")

	return cmd
}
