// Package service runs the profiling pipeline and implements the read
// dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/okian/playstyle/internal/adapters/repository"
	"github.com/okian/playstyle/internal/domain/cluster"
	"github.com/okian/playstyle/internal/domain/model"
	"github.com/okian/playstyle/internal/domain/pivot"
	"github.com/okian/playstyle/internal/domain/projection"
	"github.com/okian/playstyle/internal/domain/sparse"
	"github.com/okian/playstyle/pkg/logger"
	"github.com/okian/playstyle/pkg/metrics"
)

// Stage names used in logs and metrics.
const (
	StagePivot      = "pivot"
	StageSparse     = "sparse"
	StageSelectK    = "select_k"
	StageKMeans     = "kmeans"
	StageProjection = "projection"
	StageSave       = "save"
)

// Service turns long-form observations into clustered, projected profiles.
// It is safe for concurrent use; runs share no mutable state.
type Service struct {
	policy  *sparse.Policy
	cluster cluster.Config
	fixedK  int
	store   repository.Store
	now     func() time.Time
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSparsePolicy sets the sparse-observation policy.
func WithSparsePolicy(p *sparse.Policy) Option {
	return func(s *Service) {
		if p != nil {
			s.policy = p
		}
	}
}

// WithClusterConfig sets the k-means and candidate-range configuration.
func WithClusterConfig(cfg cluster.Config) Option {
	return func(s *Service) {
		s.cluster = cfg
	}
}

// WithFixedK skips the elbow search and clusters with k. Zero restores the search.
func WithFixedK(k int) Option {
	return func(s *Service) {
		s.fixedK = k
	}
}

// WithStore persists every successful Run and serves reads from it.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithClock replaces time.Now for run timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a Service with the reference pipeline parameters.
func New(opts ...Option) *Service {
	s := &Service{
		policy:  sparse.NewPolicy(),
		cluster: cluster.NewConfig(),
		now:     time.Now,
		logger:  logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Prepare pivots observations into the wide table. It is the checkpoint
// between acquisition and profiling.
func (s *Service) Prepare(ctx context.Context, obs []model.Observation) (*model.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	metrics.UpdateInputObservations(len(obs))

	start := time.Now()
	t, err := pivot.Pivot(obs)
	metrics.ObserveStage(StagePivot, time.Since(start))
	if err != nil {
		metrics.RecordError(StagePivot, "invalid_input")
		return nil, fmt.Errorf("%s: %w", StagePivot, err)
	}

	metrics.UpdateBatchShape(t.Len(), t.Schema.Len())
	s.logger.Info(ctx, "observations pivoted",
		logger.Int("observations", len(obs)),
		logger.Int("rows", t.Len()),
		logger.Int("play_types", t.Schema.Len()),
		logger.Duration("took", time.Since(start)),
	)
	return t, nil
}

// Profile sparsifies, clusters and projects a prepared table. The input
// table is not modified.
func (s *Service) Profile(ctx context.Context, t *model.Table) (*model.Run, error) {
	run, err := s.profile(ctx, t)
	recordRun(err)
	return run, err
}

// Run executes Prepare and Profile, then stores the run when a store is
// configured. Nothing is stored if any stage fails.
func (s *Service) Run(ctx context.Context, obs []model.Observation) (*model.Run, error) {
	run, err := s.run(ctx, obs)
	recordRun(err)
	return run, err
}

func (s *Service) run(ctx context.Context, obs []model.Observation) (*model.Run, error) {
	t, err := s.Prepare(ctx, obs)
	if err != nil {
		return nil, err
	}
	run, err := s.profile(ctx, t)
	if err != nil {
		return nil, err
	}
	if s.store == nil {
		return run, nil
	}

	start := time.Now()
	err = s.store.SaveRun(ctx, run)
	metrics.ObserveStage(StageSave, time.Since(start))
	if err != nil {
		metrics.RecordError(StageSave, "store")
		return nil, fmt.Errorf("%s: %w", StageSave, err)
	}
	return run, nil
}

func (s *Service) profile(ctx context.Context, t *model.Table) (*model.Run, error) {
	if s.fixedK < 0 {
		return nil, fmt.Errorf("%w: fixed k %d", ErrInvalidFixedK, s.fixedK)
	}
	run := &model.Run{ID: uuid.New(), CreatedAt: s.now().UTC()}
	log := s.logger.With(logger.String("run_id", run.ID.String()))

	// sparse
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	sparsified, rep, err := s.policy.Apply(t)
	metrics.ObserveStage(StageSparse, time.Since(start))
	if err != nil {
		metrics.RecordError(StageSparse, "invalid_input")
		return nil, fmt.Errorf("%s: %w", StageSparse, err)
	}
	metrics.UpdateSparse(rep.Threshold, rep.FlaggedRows)
	log.Info(ctx, "sparse policy applied",
		logger.Float64("threshold", rep.Threshold),
		logger.Int("flagged_rows", rep.FlaggedRows),
		logger.Int("rewritten_cells", rep.RewrittenCells),
	)
	run.Schema = sparsified.Schema
	run.SparseThreshold = rep.Threshold
	run.FlaggedRows = rep.FlaggedRows
	x := sparsified.Matrix()

	// select k
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	k := s.fixedK
	if k == 0 {
		start = time.Now()
		var curve cluster.Curve
		k, curve, err = cluster.SelectK(ctx, x, s.cluster)
		metrics.ObserveStage(StageSelectK, time.Since(start))
		for range curve.Ks {
			metrics.RecordKMeansRun()
		}
		if err != nil {
			metrics.RecordError(StageSelectK, "failed")
			return nil, fmt.Errorf("%s: %w", StageSelectK, err)
		}
		run.Inertia = curve.Map()
		metrics.UpdateInertiaCurve(run.Inertia)
		log.Info(ctx, "cluster count selected",
			logger.Int("k", k),
			logger.Any("candidates", curve.Ks),
			logger.Duration("took", time.Since(start)),
		)
	} else {
		log.Info(ctx, "cluster count fixed", logger.Int("k", k))
	}
	run.SelectedK = k
	metrics.UpdateSelectedK(k)

	// kmeans
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start = time.Now()
	res, err := cluster.KMeans(ctx, x, k, s.cluster)
	metrics.ObserveStage(StageKMeans, time.Since(start))
	metrics.RecordKMeansRun()
	if err != nil {
		metrics.RecordError(StageKMeans, "failed")
		return nil, fmt.Errorf("%s: %w", StageKMeans, err)
	}
	log.Debug(ctx, "clusters fitted",
		logger.Int("k", k),
		logger.Float64("inertia", res.Inertia),
		logger.Int("iterations", res.Iterations),
		logger.Int("restart", res.Restart),
	)

	// projection
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start = time.Now()
	proj, err := projection.Project(x)
	metrics.ObserveStage(StageProjection, time.Since(start))
	if err != nil {
		metrics.RecordError(StageProjection, "failed")
		return nil, fmt.Errorf("%s: %w", StageProjection, err)
	}
	run.ExplainedVariance = proj.ExplainedVariance
	metrics.UpdateExplainedVariance(proj.ExplainedVariance)
	log.Info(ctx, "projection explained variance",
		logger.Float64("pc1", proj.ExplainedVariance[0]),
		logger.Float64("pc2", proj.ExplainedVariance[1]),
	)

	// stages keep row order, so labels and coordinates merge by position
	run.Profiles = make([]model.Profile, sparsified.Len())
	for i, rec := range sparsified.Records {
		run.Profiles[i] = model.Profile{
			Record:  rec,
			Cluster: strconv.Itoa(res.Labels[i]),
			PC1:     proj.Coordinates[i][0],
			PC2:     proj.Coordinates[i][1],
		}
	}
	return run, nil
}

// LatestRun returns the most recent stored run.
func (s *Service) LatestRun(ctx context.Context) (*model.Run, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	return s.store.LatestRun(ctx)
}

// Profiles lists profiles of the latest stored run, together with that run.
// The run is resolved once, so its schema always labels the returned rows.
func (s *Service) Profiles(ctx context.Context, f repository.Filter) (*model.Run, []model.Profile, error) {
	run, err := s.LatestRun(ctx)
	if err != nil {
		return nil, nil, err
	}
	profiles, err := s.store.Profiles(ctx, run.ID, f)
	if err != nil {
		return nil, nil, err
	}
	return run, profiles, nil
}

// FindProfile returns one profile of the latest stored run, together with
// that run.
func (s *Service) FindProfile(ctx context.Context, key string) (*model.Run, model.Profile, error) {
	run, err := s.LatestRun(ctx)
	if err != nil {
		return nil, model.Profile{}, err
	}
	p, err := s.store.Profile(ctx, run.ID, key)
	if err != nil {
		return nil, model.Profile{}, err
	}
	return run, p, nil
}

// ClusterSizes returns label counts of the latest stored run.
func (s *Service) ClusterSizes(ctx context.Context) ([]repository.ClusterSize, error) {
	run, err := s.LatestRun(ctx)
	if err != nil {
		return nil, err
	}
	return s.store.ClusterSizes(ctx, run.ID)
}

func recordRun(err error) {
	if err != nil {
		metrics.RecordRun("error")
		return
	}
	metrics.RecordRun("ok")
}
