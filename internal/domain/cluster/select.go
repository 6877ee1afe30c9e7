package cluster

import (
	"context"
	"fmt"

	"github.com/okian/playstyle/internal/domain/elbow"
)

// Curve is the best inertia found for each candidate k.
type Curve struct {
	Ks      []int
	Inertia []float64
}

// Map returns the curve keyed by k.
func (c Curve) Map() map[int]float64 {
	m := make(map[int]float64, len(c.Ks))
	for i, k := range c.Ks {
		m[k] = c.Inertia[i]
	}
	return m
}

// Candidates returns the k values in [KMin, KMax] that are valid for a
// matrix of n rows, i.e. k < n.
func Candidates(cfg Config, n int) []int {
	var ks []int
	for k := cfg.KMin; k <= cfg.KMax && k < n; k++ {
		ks = append(ks, k)
	}
	return ks
}

// Sweep runs KMeans for every k in ks and records its inertia.
func Sweep(ctx context.Context, x [][]float64, ks []int, cfg Config) (Curve, error) {
	curve := Curve{Ks: make([]int, 0, len(ks)), Inertia: make([]float64, 0, len(ks))}
	for _, k := range ks {
		res, err := KMeans(ctx, x, k, cfg)
		if err != nil {
			return Curve{}, err
		}
		curve.Ks = append(curve.Ks, k)
		curve.Inertia = append(curve.Inertia, res.Inertia)
	}
	return curve, nil
}

// SelectK sweeps the configured candidate range and returns the k at the
// elbow of the inertia curve, together with the curve itself. Candidates
// that are not below the row count are skipped; a curve without an elbow
// is an error, never a default.
func SelectK(ctx context.Context, x [][]float64, cfg Config) (int, Curve, error) {
	if err := cfg.Validate(); err != nil {
		return 0, Curve{}, err
	}
	if err := checkMatrix(x); err != nil {
		return 0, Curve{}, err
	}

	ks := Candidates(cfg, len(x))
	if len(ks) < 3 {
		return 0, Curve{}, fmt.Errorf("select k over [%d,%d] with %d rows: %w",
			cfg.KMin, cfg.KMax, len(x), elbow.ErrTooFewPoints)
	}

	curve, err := Sweep(ctx, x, ks, cfg)
	if err != nil {
		return 0, Curve{}, err
	}
	k, err := elbow.Locate(curve.Ks, curve.Inertia)
	if err != nil {
		return 0, curve, fmt.Errorf("select k: %w", err)
	}
	return k, curve, nil
}
