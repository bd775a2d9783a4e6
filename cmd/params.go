package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openmri/mrc/internal/domain"
)

func newParamsCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "params",
		Short: "Show and change experiment parameters",
	}

	cmd.AddCommand(
		newParamsShowCmd(app),
		newParamsSetCmd(app),
	)

	return cmd
}

func newParamsShowCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the current experiment parameters",
		RunE: func(cmd *cobra.Command, _ []string) error {
			params, err := app.console.Parameters(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "larmor frequency:  %.6g MHz\n", params.LarmorFrequency*1e-6)
			fmt.Fprintf(out, "b1 scaling:        %g\n", params.B1Scaling)
			fmt.Fprintf(out, "gradient offsets:  x=%g y=%g z=%g mV\n",
				params.GradientOffset.X, params.GradientOffset.Y, params.GradientOffset.Z)
			fmt.Fprintf(out, "decimation factor: %d\n", params.DecimationFactor)
			fmt.Fprintf(out, "repetitions:       %d\n", params.Repetitions)
			fmt.Fprintf(out, "timeout retries:   %d\n", params.TimeoutRetries)
			fmt.Fprintf(out, "accumulation:      %s\n", params.Accumulation)

			return nil
		},
	}
}

func newParamsSetCmd(app *app) *cobra.Command {
	var (
		larmor       float64
		b1           float64
		offsetX      float64
		offsetY      float64
		offsetZ      float64
		decimation   int
		repetitions  int
		retries      int
		accumulation string
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change experiment parameters",
		RunE: func(cmd *cobra.Command, _ []string) error {
			params, err := app.console.Parameters(cmd.Context())
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("larmor") {
				params.LarmorFrequency = larmor
			}
			if flags.Changed("b1-scaling") {
				params.B1Scaling = b1
			}
			if flags.Changed("offset-x") {
				params.GradientOffset.X = offsetX
			}
			if flags.Changed("offset-y") {
				params.GradientOffset.Y = offsetY
			}
			if flags.Changed("offset-z") {
				params.GradientOffset.Z = offsetZ
			}
			if flags.Changed("decimation") {
				params.DecimationFactor = decimation
			}
			if flags.Changed("repetitions") {
				params.Repetitions = repetitions
			}
			if flags.Changed("timeout-retries") {
				params.TimeoutRetries = retries
			}
			if flags.Changed("accumulation") {
				params.Accumulation = domain.AccumulationMode(accumulation)
			}

			if err := app.console.SaveParameters(cmd.Context(), params); err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), "Parameters saved.")
			return err
		},
	}

	cmd.Flags().Float64Var(&larmor, "larmor", 0, "RF carrier frequency in Hz")
	cmd.Flags().Float64Var(&b1, "b1-scaling", 0, "RF amplitude calibration factor")
	cmd.Flags().Float64Var(&offsetX, "offset-x", 0, "Gradient x offset in mV")
	cmd.Flags().Float64Var(&offsetY, "offset-y", 0, "Gradient y offset in mV")
	cmd.Flags().Float64Var(&offsetZ, "offset-z", 0, "Gradient z offset in mV")
	cmd.Flags().IntVar(&decimation, "decimation", 0, "Post-processing decimation factor")
	cmd.Flags().IntVar(&repetitions, "repetitions", 0, "Repetitions per run")
	cmd.Flags().IntVar(&retries, "timeout-retries", 0, "Retry budget for timed-out repetitions")
	cmd.Flags().StringVar(&accumulation, "accumulation", "", "Accumulation mode (stack or average)")

	return cmd
}
