package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/okian/playstyle/internal/adapters/tablefile"
	"github.com/okian/playstyle/internal/domain/model"
	"github.com/okian/playstyle/pkg/logger"
)

func newPrepareCmd(c *cli) *cobra.Command {
	var input, checkpoint string
	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Pivot the long-form export into the wide checkpoint table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			input = firstNonEmpty(input, c.cfg.InputPath)
			checkpoint = firstNonEmpty(checkpoint, c.cfg.CheckpointPath)

			obs, err := c.readObservations(input)
			if err != nil {
				return err
			}
			tbl, err := c.service(nil).Prepare(ctx, obs)
			if err != nil {
				return err
			}
			if err := writeFile(checkpoint, func(w io.Writer) error {
				return tablefile.WriteCheckpoint(w, tbl)
			}); err != nil {
				return fmt.Errorf("write checkpoint %s: %w", checkpoint, err)
			}
			c.log.Info(ctx, "checkpoint written",
				logger.String("path", checkpoint),
				logger.Int("rows", tbl.Len()),
				logger.Int("play_types", tbl.Schema.Len()),
			)
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "long-form CSV (overrides input_path)")
	cmd.Flags().StringVarP(&checkpoint, "checkpoint", "o", "", "checkpoint CSV to write (overrides checkpoint_path)")
	return cmd
}

func (c *cli) readObservations(path string) ([]model.Observation, error) {
	cols := c.columns()
	obs, err := readFile(path, func(r io.Reader) ([]model.Observation, error) {
		return tablefile.ReadObservations(r, cols)
	})
	if err != nil {
		return nil, fmt.Errorf("read observations %s: %w", path, err)
	}
	return obs, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
