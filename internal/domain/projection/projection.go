// Package projection reduces a feature matrix to its two principal
// components for plotting.
package projection

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Components is the number of output dimensions.
const Components = 2

// Sentinel error kinds for this package.
var (
	ErrEmptyMatrix    = errors.New("empty feature matrix")
	ErrInvalidMatrix  = errors.New("invalid feature matrix")
	ErrTooFewRows     = errors.New("too few rows to project")
	ErrTooFewFeatures = errors.New("too few feature columns to project")
	ErrDecomposition  = errors.New("principal component decomposition failed")
)

// Result holds the projected coordinates and diagnostics.
type Result struct {
	// Coordinates has one entry per input row, in input order.
	Coordinates [][Components]float64
	// ExplainedVariance is the share of total variance carried by each component.
	ExplainedVariance [Components]float64
	// Loadings are the unit direction vectors, one per component.
	Loadings [Components][]float64
}

// Project centres x and projects it onto its two directions of maximal
// variance. Component signs are fixed so that the largest-magnitude loading
// of each direction is positive, which keeps coordinates stable across runs.
func Project(x [][]float64) (*Result, error) {
	n := len(x)
	if n == 0 {
		return nil, ErrEmptyMatrix
	}
	d := len(x[0])
	if n < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewRows, n)
	}
	if d < Components {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewFeatures, d)
	}

	data := make([]float64, 0, n*d)
	for i, row := range x {
		if len(row) != d {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrInvalidMatrix, i, len(row), d)
		}
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: non-finite value in row %d", ErrInvalidMatrix, i)
			}
		}
		data = append(data, row...)
	}
	a := mat.NewDense(n, d, data)

	var pc stat.PC
	if ok := pc.PrincipalComponents(a, nil); !ok {
		return nil, ErrDecomposition
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	vars := pc.VarsTo(nil)

	centred := mat.NewDense(n, d, nil)
	for j := 0; j < d; j++ {
		col := mat.Col(nil, j, a)
		mean := stat.Mean(col, nil)
		floats.AddConst(-mean, col)
		centred.SetCol(j, col)
	}

	res := &Result{Coordinates: make([][Components]float64, n)}
	total := floats.Sum(vars)
	for c := 0; c < Components; c++ {
		loading := mat.Col(nil, c, &vecs)
		if loading[floats.MaxIdx(absAll(loading))] < 0 {
			floats.Scale(-1, loading)
		}
		res.Loadings[c] = loading

		scores := mat.NewVecDense(n, nil)
		scores.MulVec(centred, mat.NewVecDense(d, loading))
		for i := 0; i < n; i++ {
			res.Coordinates[i][c] = scores.AtVec(i)
		}
		if total > 0 && c < len(vars) {
			res.ExplainedVariance[c] = vars[c] / total
		}
	}
	return res, nil
}

func absAll(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = math.Abs(x)
	}
	return out
}
