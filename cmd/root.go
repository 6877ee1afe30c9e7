package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/okian/playstyle/internal/adapters/repository"
	"github.com/okian/playstyle/internal/adapters/tablefile"
	app "github.com/okian/playstyle/internal/app"
	"github.com/okian/playstyle/internal/config"
	"github.com/okian/playstyle/internal/domain/cluster"
	"github.com/okian/playstyle/internal/domain/sparse"
	"github.com/okian/playstyle/pkg/logger"
)

const outputFileMode = 0o644

// cli carries state shared by every command after PersistentPreRunE.
type cli struct {
	configPath string
	dbPath     string
	logLevel   string

	cfg *config.Config
	log logger.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "playstyle",
		Short:         "Cluster NBA players by offensive play-type usage",
		Long:          "Pivot long-form play-type frequencies, flag low-sample rows, choose k by elbow, cluster with k-means and project to two principal components.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
	}

	root.PersistentFlags().StringVar(&c.configPath, "config", "", "YAML config file (default $"+config.EnvConfig+")")
	root.PersistentFlags().StringVar(&c.dbPath, "db", "", "SQLite database for stored runs (overrides db_path)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "debug, info, warn or error (overrides log_level)")

	root.AddCommand(
		newPrepareCmd(c),
		newProfileCmd(c),
		newRunCmd(c),
		newServeCmd(c),
		newSynthCmd(c),
	)
	return root
}

// setup loads configuration (defaults -> file -> env -> flags) and the logger.
func (c *cli) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(cmd.Context(), c.configPath)
	if err != nil {
		return err
	}
	if c.dbPath != "" {
		cfg.DBPath = c.dbPath
	}
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}

	if err := logger.Init(logger.WithOutput(cmd.ErrOrStderr()), logger.WithJSON(cfg.LogJSON)); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(cmd.Context(), "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	c.cfg = cfg
	c.log = logger.Named("playstyle")
	return nil
}

func (c *cli) columns() tablefile.Columns {
	return tablefile.Columns{
		Player:     c.cfg.ColumnPlayer,
		Team:       c.cfg.ColumnTeam,
		Season:     c.cfg.ColumnSeason,
		PlayType:   c.cfg.ColumnPlayType,
		Frequency:  c.cfg.ColumnFrequency,
		Percentile: c.cfg.ColumnPercentile,
		Updated:    c.cfg.ColumnUpdated,
	}
}

func (c *cli) service(store repository.Store) *app.Service {
	opts := []app.Option{
		app.WithLogger(c.log.Named("pipeline")),
		app.WithSparsePolicy(sparse.NewPolicy(
			sparse.WithQuantile(c.cfg.SparseQuantile),
			sparse.WithSentinel(c.cfg.SparseSentinel),
		)),
		app.WithClusterConfig(cluster.NewConfig(
			cluster.WithCandidateRange(c.cfg.KMin, c.cfg.KMax),
			cluster.WithRestarts(c.cfg.Restarts),
			cluster.WithMaxIter(c.cfg.MaxIter),
			cluster.WithSeed(c.cfg.Seed),
			cluster.WithTolerance(c.cfg.Tolerance),
			cluster.WithWorkers(c.cfg.Workers),
		)),
		app.WithFixedK(c.cfg.FixedK),
	}
	if store != nil {
		opts = append(opts, app.WithStore(store))
	}
	return app.New(opts...)
}

func (c *cli) openStore(ctx context.Context) (*repository.SQLiteStore, error) {
	store, err := repository.Open(c.cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", c.cfg.DBPath, err)
	}
	c.log.Debug(ctx, "store opened", logger.String("path", c.cfg.DBPath))
	return store, nil
}

func readFile[T any](path string, read func(io.Reader) (T, error)) (T, error) {
	f, err := os.Open(path)
	if err != nil {
		var zero T
		return zero, err
	}
	defer func() { _ = f.Close() }()
	return read(f)
}

// writeFile renders into memory first so a failed write leaves no partial file.
func writeFile(path string, write func(io.Writer) error) error {
	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), outputFileMode)
}
