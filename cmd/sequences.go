package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSequencesCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sequences",
		Short: "Manage stored pulse sequences",
	}

	cmd.AddCommand(newSequencesListCmd(app))

	return cmd
}

func newSequencesListCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored pulse sequences",
		RunE: func(cmd *cobra.Command, _ []string) error {
			names, err := app.console.ListSequences(cmd.Context())
			if err != nil {
				return err
			}

			if len(names) == 0 {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "No sequences stored.")
				return err
			}

			for _, name := range names {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), name); err != nil {
					return err
				}
			}

			return nil
		},
	}
}
