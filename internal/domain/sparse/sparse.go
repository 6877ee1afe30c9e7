// Package sparse pushes low-sample observations into their own region of
// feature space so they do not distort cluster geometry.
package sparse

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/okian/playstyle/internal/domain/model"
)

// Default policy constants.
const (
	DefaultQuantile = 0.20
	DefaultSentinel = -20.0
)

// Sentinel error kinds for this package.
var (
	ErrEmptyTable    = errors.New("empty table")
	ErrInvalidPolicy = errors.New("invalid sparse policy")
)

// Option applies a configuration option to the Policy.
type Option func(*Policy)

// WithQuantile sets the SummedFrequency quantile below which rows are flagged.
func WithQuantile(q float64) Option {
	return func(p *Policy) {
		p.quantile = q
	}
}

// WithSentinel sets the value written into flagged zero cells.
func WithSentinel(v float64) Option {
	return func(p *Policy) {
		p.sentinel = v
	}
}

// Policy flags rows whose SummedFrequency falls strictly below a batch-wide
// quantile and rewrites their exact-zero cells to a negative sentinel.
type Policy struct {
	quantile float64
	sentinel float64
}

// NewPolicy creates a Policy with defaults, then applies opts.
func NewPolicy(opts ...Option) *Policy {
	p := &Policy{quantile: DefaultQuantile, sentinel: DefaultSentinel}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Quantile returns the configured quantile.
func (p *Policy) Quantile() float64 { return p.quantile }

// Sentinel returns the configured sentinel.
func (p *Policy) Sentinel() float64 { return p.sentinel }

// Validate checks the policy parameters.
func (p *Policy) Validate() error {
	if math.IsNaN(p.quantile) || p.quantile < 0 || p.quantile > 1 {
		return fmt.Errorf("%w: quantile %v outside [0,1]", ErrInvalidPolicy, p.quantile)
	}
	if math.IsNaN(p.sentinel) || math.IsInf(p.sentinel, 0) || p.sentinel >= 0 {
		return fmt.Errorf("%w: sentinel %v must be finite and negative", ErrInvalidPolicy, p.sentinel)
	}
	return nil
}

// Report summarises one application of the policy.
type Report struct {
	Threshold      float64 // SummedFrequency quantile of the batch
	FlaggedRows    int
	RewrittenCells int
}

// Apply returns a sparsified copy of t. The input table is not modified.
// SummedFrequency is carried over, not recomputed, so applying the policy to
// its own output flags the same rows and changes nothing.
func (p *Policy) Apply(t *model.Table) (*model.Table, Report, error) {
	if err := p.Validate(); err != nil {
		return nil, Report{}, err
	}
	if t == nil || t.Len() == 0 {
		return nil, Report{}, ErrEmptyTable
	}

	sums := make([]float64, t.Len())
	for i, r := range t.Records {
		sums[i] = r.SummedFrequency
	}
	rep := Report{Threshold: Quantile(sums, p.quantile)}

	out := t.Clone()
	for i := range out.Records {
		rec := &out.Records[i]
		if !(rec.SummedFrequency < rep.Threshold) {
			continue
		}
		rep.FlaggedRows++
		for j, v := range rec.Frequencies {
			if v == 0 {
				rec.Frequencies[j] = p.sentinel
				rep.RewrittenCells++
			}
		}
	}
	return out, rep, nil
}

// Quantile returns the q-th quantile of values using linear interpolation
// between closest ranks: h = (n-1)q, Q = x[floor(h)] + (h-floor(h))(x[floor(h)+1]-x[floor(h)]).
// values is not modified. Returns NaN for an empty slice.
func Quantile(values []float64, q float64) float64 {
	n := len(values)
	if n == 0 {
		return math.NaN()
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	h := float64(n-1) * q
	lo := int(math.Floor(h))
	if lo >= n-1 {
		return sorted[n-1]
	}
	if lo < 0 {
		return sorted[0]
	}
	frac := h - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}
