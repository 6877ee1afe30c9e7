package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/okian/playstyle/internal/adapters/tablefile"
	"github.com/okian/playstyle/internal/synthleague"
	"github.com/okian/playstyle/pkg/logger"
)

func newSynthCmd(c *cli) *cobra.Command {
	var output string
	var players, seasons, firstSeason int
	var seed int64
	var sparseShare float64
	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Write a synthetic long-form play-type export",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			output = firstNonEmpty(output, c.cfg.InputPath)
			obs := synthleague.New(
				synthleague.WithPlayers(players),
				synthleague.WithSeasons(seasons),
				synthleague.WithFirstSeason(firstSeason),
				synthleague.WithSeed(seed),
				synthleague.WithSparseShare(sparseShare),
			).Generate()

			cols := c.columns()
			if err := writeFile(output, func(w io.Writer) error {
				return tablefile.WriteObservations(w, obs, cols)
			}); err != nil {
				return fmt.Errorf("write observations %s: %w", output, err)
			}
			c.log.Info(cmd.Context(), "synthetic league written",
				logger.String("path", output),
				logger.Int("observations", len(obs)),
			)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "CSV to write (overrides input_path)")
	cmd.Flags().IntVar(&players, "players", synthleague.DefaultPlayers, "number of players")
	cmd.Flags().IntVar(&seasons, "seasons", synthleague.DefaultSeasons, "seasons per player")
	cmd.Flags().IntVar(&firstSeason, "first-season", synthleague.DefaultFirstSeason, "starting year of the first season")
	cmd.Flags().Int64Var(&seed, "seed", synthleague.DefaultSeed, "random seed")
	cmd.Flags().Float64Var(&sparseShare, "sparse-share", synthleague.DefaultSparseShare, "share of low-minute players")
	return cmd
}
