package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/okian/playstyle/internal/domain/model"
)

// RunsHandler serves run metadata.
type RunsHandler struct {
	deps Dependencies
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(deps Dependencies) *RunsHandler {
	return &RunsHandler{deps: deps}
}

type runResponse struct {
	ID                string             `json:"id"`
	CreatedAt         string             `json:"created_at"`
	PlayTypes         []string           `json:"play_types"`
	SelectedK         int                `json:"selected_k"`
	Inertia           map[string]float64 `json:"inertia,omitempty"`
	ExplainedVariance [2]float64         `json:"explained_variance"`
	SparseThreshold   float64            `json:"sparse_threshold"`
	FlaggedRows       int                `json:"flagged_rows"`
}

func newRunResponse(run *model.Run) runResponse {
	resp := runResponse{
		ID:                run.ID.String(),
		CreatedAt:         run.CreatedAt.UTC().Format(time.RFC3339),
		PlayTypes:         run.Schema.PlayTypes,
		SelectedK:         run.SelectedK,
		ExplainedVariance: run.ExplainedVariance,
		SparseThreshold:   run.SparseThreshold,
		FlaggedRows:       run.FlaggedRows,
	}
	if len(run.Inertia) > 0 {
		resp.Inertia = make(map[string]float64, len(run.Inertia))
		for k, v := range run.Inertia {
			resp.Inertia[strconv.Itoa(k)] = v
		}
	}
	return resp
}

// HandleLatest handles GET /runs/latest.
func (h *RunsHandler) HandleLatest(w http.ResponseWriter, r *http.Request) {
	run, err := h.deps.LatestRun(r.Context())
	if err != nil {
		writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newRunResponse(run))
}
