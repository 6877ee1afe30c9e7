package main

import (
	"github.com/spf13/cobra"
)

func newRunCmd(c *cli) *cobra.Command {
	var input, output string
	var k int
	var noStore bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Prepare and profile in one pass",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			input = firstNonEmpty(input, c.cfg.InputPath)
			output = firstNonEmpty(output, c.cfg.OutputPath)
			if cmd.Flags().Changed("k") {
				c.cfg.FixedK = k
			}

			obs, err := c.readObservations(input)
			if err != nil {
				return err
			}
			run, err := c.service(nil).Run(cmd.Context(), obs)
			if err != nil {
				return err
			}
			return c.finish(cmd, run, output, !noStore)
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "long-form CSV (overrides input_path)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "profile CSV to write (overrides output_path)")
	cmd.Flags().IntVar(&k, "k", 0, "fixed cluster count; 0 selects k by elbow")
	cmd.Flags().BoolVar(&noStore, "no-store", false, "do not save the run to the database")
	return cmd
}
