// Package repository persists pipeline runs and serves their profiles.
package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/okian/playstyle/internal/domain/model"
)

// Filter narrows a profile listing. Empty fields match everything.
type Filter struct {
	Seasons []string // any of these seasons
	Cluster string
}

// ClusterSize is the row count of one cluster label.
type ClusterSize struct {
	Cluster string
	Size    int
}

// Store provides read/write access to stored runs.
type Store interface {
	// SaveRun stores a run with all of its profiles. Saving the same run ID
	// again replaces it.
	SaveRun(ctx context.Context, run *model.Run) error

	// LatestRun returns the most recently created run without its profiles.
	// Returns ErrNotFound when nothing has been stored.
	LatestRun(ctx context.Context) (*model.Run, error)

	// Run returns the run metadata for id without its profiles.
	Run(ctx context.Context, id uuid.UUID) (*model.Run, error)

	// Profiles lists a run's profiles in pipeline row order.
	Profiles(ctx context.Context, runID uuid.UUID, f Filter) ([]model.Profile, error)

	// Profile returns one profile by composite key.
	Profile(ctx context.Context, runID uuid.UUID, key string) (model.Profile, error)

	// ClusterSizes returns row counts per label, ordered by label.
	ClusterSizes(ctx context.Context, runID uuid.UUID) ([]ClusterSize, error)
}
