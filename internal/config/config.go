// Package config defines pipeline configuration structures and loading hooks.
//
// Conventions:
// - Keys are flat snake_case so YAML keys and PLAYSTYLE_* env vars map 1:1.
// - New() returns the defaults; Load layers file and env on top.
// - Validation errors wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"runtime"
	"strings"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogJSON switches log output to JSON lines.
	LogJSON bool `koanf:"log_json"`

	// Addr configures the HTTP listen address of the serve command, e.g. ":9080".
	Addr string `koanf:"addr"`
	// DBPath is the SQLite file holding persisted runs.
	DBPath string `koanf:"db_path"`

	// InputPath is the long-form play-type CSV.
	InputPath string `koanf:"input_path"`
	// CheckpointPath receives the pivoted table.
	CheckpointPath string `koanf:"checkpoint_path"`
	// OutputPath receives the clustered profile table.
	OutputPath string `koanf:"output_path"`

	// Long-form column names.
	ColumnPlayer     string `koanf:"column_player"`
	ColumnTeam       string `koanf:"column_team"`
	ColumnSeason     string `koanf:"column_season"`
	ColumnPlayType   string `koanf:"column_play_type"`
	ColumnFrequency  string `koanf:"column_frequency"`
	ColumnPercentile string `koanf:"column_percentile"`
	ColumnUpdated    string `koanf:"column_updated"`

	// SparseQuantile and SparseSentinel drive the low-sample policy.
	SparseQuantile float64 `koanf:"sparse_quantile"`
	SparseSentinel float64 `koanf:"sparse_sentinel"`

	// KMin and KMax bound the elbow sweep. FixedK > 0 skips the sweep.
	KMin   int `koanf:"k_min"`
	KMax   int `koanf:"k_max"`
	FixedK int `koanf:"fixed_k"`

	// Restarts, MaxIter, Seed and Tolerance control every k-means fit.
	Restarts  int     `koanf:"restarts"`
	MaxIter   int     `koanf:"max_iter"`
	Seed      int64   `koanf:"seed"`
	Tolerance float64 `koanf:"tolerance"`
	// Workers bounds concurrent restarts; it never changes results.
	Workers int `koanf:"workers"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		Addr:             ":9080",
		DBPath:           "playstyle.db",
		InputPath:        "AllSeasons_PlayTypeStats.csv",
		CheckpointPath:   "AllSeasons_FreqsForClus.csv",
		OutputPath:       "AllSeasons_ClusteredFreqs.csv",
		ColumnPlayer:     "PLAYER",
		ColumnTeam:       "TEAM",
		ColumnSeason:     "SEASON",
		ColumnPlayType:   "PlayType",
		ColumnFrequency:  "Freq%",
		ColumnPercentile: "Percentile",
		ColumnUpdated:    "UpdateDate",
		SparseQuantile:   0.20,
		SparseSentinel:   -20,
		KMin:             2,
		KMax:             11,
		Restarts:         100,
		MaxIter:          1000,
		Seed:             50,
		Tolerance:        1e-4,
		Workers:          runtime.NumCPU(),
	}
}

// Validate checks cross-field constraints that are independent of the data.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.SparseQuantile < 0 || c.SparseQuantile > 1:
		return fmt.Errorf("%w: sparse_quantile must be in [0,1]", ErrInvalidConfig)
	case c.SparseSentinel >= 0:
		return fmt.Errorf("%w: sparse_sentinel must be negative", ErrInvalidConfig)
	case c.KMin < 1 || c.KMax < c.KMin:
		return fmt.Errorf("%w: need 1 <= k_min <= k_max, got %d..%d", ErrInvalidConfig, c.KMin, c.KMax)
	case c.FixedK < 0:
		return fmt.Errorf("%w: fixed_k must not be negative", ErrInvalidConfig)
	case c.Restarts < 1:
		return fmt.Errorf("%w: restarts must be positive", ErrInvalidConfig)
	case c.MaxIter < 1:
		return fmt.Errorf("%w: max_iter must be positive", ErrInvalidConfig)
	case c.Tolerance < 0:
		return fmt.Errorf("%w: tolerance must not be negative", ErrInvalidConfig)
	}
	for name, col := range map[string]string{
		"column_player":    c.ColumnPlayer,
		"column_team":      c.ColumnTeam,
		"column_season":    c.ColumnSeason,
		"column_play_type": c.ColumnPlayType,
		"column_frequency": c.ColumnFrequency,
	} {
		if strings.TrimSpace(col) == "" {
			return fmt.Errorf("%w: %s must not be empty", ErrInvalidConfig, name)
		}
	}
	return nil
}
