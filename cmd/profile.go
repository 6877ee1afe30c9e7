package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/okian/playstyle/internal/adapters/tablefile"
	"github.com/okian/playstyle/internal/domain/model"
	"github.com/okian/playstyle/internal/report"
	"github.com/okian/playstyle/pkg/logger"
)

func newProfileCmd(c *cli) *cobra.Command {
	var checkpoint, output string
	var k int
	var noStore bool
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Cluster and project a checkpoint table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			checkpoint = firstNonEmpty(checkpoint, c.cfg.CheckpointPath)
			output = firstNonEmpty(output, c.cfg.OutputPath)
			if cmd.Flags().Changed("k") {
				c.cfg.FixedK = k
			}

			tbl, err := readFile(checkpoint, tablefile.ReadCheckpoint)
			if err != nil {
				return fmt.Errorf("read checkpoint %s: %w", checkpoint, err)
			}
			run, err := c.service(nil).Profile(ctx, tbl)
			if err != nil {
				return err
			}
			return c.finish(cmd, run, output, !noStore)
		},
	}
	cmd.Flags().StringVarP(&checkpoint, "checkpoint", "i", "", "checkpoint CSV (overrides checkpoint_path)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "profile CSV to write (overrides output_path)")
	cmd.Flags().IntVar(&k, "k", 0, "fixed cluster count; 0 selects k by elbow")
	cmd.Flags().BoolVar(&noStore, "no-store", false, "do not save the run to the database")
	return cmd
}

// finish writes the profile table, optionally stores the run and prints the
// cluster report.
func (c *cli) finish(cmd *cobra.Command, run *model.Run, output string, store bool) error {
	ctx := cmd.Context()
	if err := writeFile(output, func(w io.Writer) error {
		return tablefile.WriteProfiles(w, run.Schema, run.Profiles)
	}); err != nil {
		return fmt.Errorf("write profiles %s: %w", output, err)
	}
	c.log.Info(ctx, "profiles written", logger.String("path", output), logger.Int("rows", len(run.Profiles)))

	if store {
		s, err := c.openStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()
		if err := s.SaveRun(ctx, run); err != nil {
			return fmt.Errorf("save run: %w", err)
		}
		c.log.Info(ctx, "run stored", logger.String("run_id", run.ID.String()), logger.String("db", c.cfg.DBPath))
	}
	return report.PrintClusterTable(cmd.OutOrStdout(), run)
}
