package cluster

import (
	"fmt"
	"math"
	"runtime"
)

// Default clustering configuration constants.
const (
	DefaultKMin      = 2
	DefaultKMax      = 11
	DefaultRestarts  = 100
	DefaultMaxIter   = 1000
	DefaultSeed      = 50
	DefaultTolerance = 1e-4
)

// Config controls a k-means run. It is passed explicitly so runs are
// reproducible in isolation.
type Config struct {
	// KMin and KMax bound the candidate range of the cluster-count sweep, inclusive.
	KMin int
	KMax int
	// Restarts is the number of random initialisations per k; the lowest inertia wins.
	Restarts int
	// MaxIter caps Lloyd iterations per restart.
	MaxIter int
	// Seed makes restarts reproducible. Restart r is seeded with Seed+r.
	Seed int64
	// Tolerance is relative to the mean column variance of the data.
	Tolerance float64
	// Workers bounds how many restarts run concurrently. It does not affect results.
	Workers int
}

// Option applies a configuration option to a Config.
type Option func(*Config)

// WithCandidateRange sets the inclusive k range swept by SelectK.
func WithCandidateRange(kmin, kmax int) Option {
	return func(c *Config) {
		c.KMin = kmin
		c.KMax = kmax
	}
}

// WithRestarts sets the number of random initialisations.
func WithRestarts(n int) Option {
	return func(c *Config) {
		c.Restarts = n
	}
}

// WithMaxIter sets the iteration cap.
func WithMaxIter(n int) Option {
	return func(c *Config) {
		c.MaxIter = n
	}
}

// WithSeed sets the base random seed.
func WithSeed(seed int64) Option {
	return func(c *Config) {
		c.Seed = seed
	}
}

// WithTolerance sets the relative convergence tolerance.
func WithTolerance(tol float64) Option {
	return func(c *Config) {
		c.Tolerance = tol
	}
}

// WithWorkers sets restart concurrency. Values below 1 mean runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(c *Config) {
		c.Workers = n
	}
}

// NewConfig returns the default configuration with opts applied.
func NewConfig(opts ...Option) Config {
	c := Config{
		KMin:      DefaultKMin,
		KMax:      DefaultKMax,
		Restarts:  DefaultRestarts,
		MaxIter:   DefaultMaxIter,
		Seed:      DefaultSeed,
		Tolerance: DefaultTolerance,
		Workers:   runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Validate checks the configuration, independent of any data.
func (c Config) Validate() error {
	switch {
	case c.KMin < 1:
		return fmt.Errorf("%w: k_min %d < 1", ErrInvalidConfig, c.KMin)
	case c.KMax < c.KMin:
		return fmt.Errorf("%w: k_max %d < k_min %d", ErrInvalidConfig, c.KMax, c.KMin)
	case c.Restarts < 1:
		return fmt.Errorf("%w: restarts %d < 1", ErrInvalidConfig, c.Restarts)
	case c.MaxIter < 1:
		return fmt.Errorf("%w: max_iter %d < 1", ErrInvalidConfig, c.MaxIter)
	case c.Tolerance < 0 || math.IsNaN(c.Tolerance):
		return fmt.Errorf("%w: tolerance %v", ErrInvalidConfig, c.Tolerance)
	}
	return nil
}

func (c Config) workers() int {
	w := c.Workers
	if w < 1 {
		w = runtime.NumCPU()
	}
	if w > c.Restarts {
		w = c.Restarts
	}
	return w
}
