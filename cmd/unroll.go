package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	statusadapter "github.com/openmri/mrc/internal/adapters/render/status"
)

func newUnrollCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "unroll <sequence>",
		Short: "Compile a stored sequence into a replay timeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			timeline, _, err := app.console.Compile(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			rendered, err := app.renderTimeline(timeline, statusadapter.RenderOptions{})
			if err != nil {
				return fmt.Errorf("render timeline: %w", err)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return err
		},
	}
}
