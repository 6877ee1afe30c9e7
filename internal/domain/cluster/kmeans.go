// Package cluster implements seeded, multi-restart k-means and the
// elbow-based cluster-count sweep built on it.
//
// Labels are arbitrary integers in [0,k). They carry no ordering and are not
// stable across changes to the data or configuration.
package cluster

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Result is the best restart found for one k.
type Result struct {
	K          int
	Labels     []int
	Centroids  [][]float64
	Inertia    float64 // within-cluster sum of squared distances
	Iterations int
	Restart    int // index of the winning restart
}

// KMeans partitions x into k clusters, keeping the restart with the lowest
// inertia. Ties go to the lowest restart index, so the result does not
// depend on cfg.Workers.
func KMeans(ctx context.Context, x [][]float64, k int, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := checkMatrix(x); err != nil {
		return nil, err
	}
	if k < 1 || k >= len(x) {
		return nil, fmt.Errorf("%w: k=%d must be in [1, %d)", ErrInvalidConfig, k, len(x))
	}

	tol := cfg.Tolerance * meanColumnVariance(x)
	results := make([]*Result, cfg.Restarts)

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < cfg.workers(); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := range jobs {
				rng := rand.New(rand.NewSource(cfg.Seed + int64(r))) //nolint:gosec // deterministic seed for reproducible clustering
				res := lloyd(x, k, rng, cfg.MaxIter, tol)
				res.Restart = r
				results[r] = res
			}
		}()
	}

feed:
	for r := 0; r < cfg.Restarts; r++ {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- r:
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("kmeans k=%d: %w", k, err)
	}

	best := results[0]
	for _, res := range results[1:] {
		if res.Inertia < best.Inertia {
			best = res
		}
	}
	return best, nil
}

// lloyd runs one randomly initialised k-means to convergence or maxIter.
func lloyd(x [][]float64, k int, rng *rand.Rand, maxIter int, tol float64) *Result {
	n, d := len(x), len(x[0])

	// k distinct rows as initial centres
	centroids := make([][]float64, k)
	for c, i := range rng.Perm(n)[:k] {
		centroids[c] = append([]float64(nil), x[i]...)
	}

	labels := make([]int, n)
	for i := range labels {
		labels[i] = -1
	}
	dists := make([]float64, n)
	sums := make([][]float64, k)
	for c := range sums {
		sums[c] = make([]float64, d)
	}
	counts := make([]int, k)

	iters := 0
	for iters < maxIter {
		iters++
		if !assign(x, centroids, labels, dists) {
			break
		}
		if update(x, labels, dists, centroids, sums, counts) <= tol {
			break
		}
	}
	assign(x, centroids, labels, dists)

	return &Result{
		K:          k,
		Labels:     labels,
		Centroids:  centroids,
		Inertia:    floats.Sum(dists),
		Iterations: iters,
	}
}

// assign labels each row with its nearest centre, recording the squared
// distance. Reports whether any label changed.
func assign(x, centroids [][]float64, labels []int, dists []float64) bool {
	changed := false
	for i, row := range x {
		best, bestDist := 0, math.Inf(1)
		for c, centre := range centroids {
			if dd := sqDist(row, centre); dd < bestDist {
				best, bestDist = c, dd
			}
		}
		if labels[i] != best {
			labels[i] = best
			changed = true
		}
		dists[i] = bestDist
	}
	return changed
}

// update moves every centre to the mean of its members and returns the
// total squared centre shift. An empty cluster takes over the row that is
// farthest from its own centre.
func update(x [][]float64, labels []int, dists []float64, centroids, sums [][]float64, counts []int) float64 {
	for c := range sums {
		floats.Scale(0, sums[c])
		counts[c] = 0
	}
	for i, row := range x {
		floats.Add(sums[labels[i]], row)
		counts[labels[i]]++
	}

	taken := make(map[int]bool)
	shift := 0.0
	for c := range centroids {
		var next []float64
		if counts[c] == 0 {
			far := farthest(dists, taken)
			taken[far] = true
			next = append([]float64(nil), x[far]...)
		} else {
			next = append([]float64(nil), sums[c]...)
			floats.Scale(1/float64(counts[c]), next)
		}
		shift += sqDist(centroids[c], next)
		centroids[c] = next
	}
	return shift
}

func farthest(dists []float64, taken map[int]bool) int {
	best, bestDist := 0, math.Inf(-1)
	for i, dd := range dists {
		if !taken[i] && dd > bestDist {
			best, bestDist = i, dd
		}
	}
	return best
}

func sqDist(a, b []float64) float64 {
	var s float64
	for j := range a {
		diff := a[j] - b[j]
		s += diff * diff
	}
	return s
}

func meanColumnVariance(x [][]float64) float64 {
	d := len(x[0])
	col := make([]float64, len(x))
	total := 0.0
	for j := 0; j < d; j++ {
		for i := range x {
			col[i] = x[i][j]
		}
		total += stat.PopVariance(col, nil)
	}
	return total / float64(d)
}

func checkMatrix(x [][]float64) error {
	if len(x) == 0 {
		return ErrEmptyMatrix
	}
	d := len(x[0])
	if d == 0 {
		return fmt.Errorf("%w: no feature columns", ErrInvalidMatrix)
	}
	for i, row := range x {
		if len(row) != d {
			return fmt.Errorf("%w: row %d has %d columns, want %d", ErrInvalidMatrix, i, len(row), d)
		}
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: non-finite value in row %d", ErrInvalidMatrix, i)
			}
		}
	}
	return nil
}
