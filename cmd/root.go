package cmd

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "mrc",
		Short:         "Magnetic resonance console: compile sequences and run acquisitions",
		Long:          "mrc compiles stored pulse sequences into sample-accurate replay timelines, drives the measurement card through acquisition runs, and post-processes the captured data into reconstructable records.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	app, err := wireApp()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newSequencesCmd(app),
		newParamsCmd(app),
		newUnrollCmd(app),
		newRunCmd(app),
	)

	return rootCmd
}
