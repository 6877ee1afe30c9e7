package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/playstyle/internal/adapters/repository"
	"github.com/okian/playstyle/internal/domain/model"
)

// ProfilesHandler serves clustered player profiles.
type ProfilesHandler struct {
	deps Dependencies
}

// NewProfilesHandler creates a new profiles handler.
func NewProfilesHandler(deps Dependencies) *ProfilesHandler {
	return &ProfilesHandler{deps: deps}
}

type profileResponse struct {
	Key             string             `json:"key"`
	Player          string             `json:"player"`
	Team            string             `json:"team"`
	Season          string             `json:"season"`
	Frequencies     map[string]float64 `json:"frequencies"`
	Percentiles     map[string]float64 `json:"percentiles"` // only play types with a reported percentile
	SummedFrequency float64            `json:"summed_frequency"`
	Cluster         string             `json:"cluster"`
	PC1             float64            `json:"pc1"`
	PC2             float64            `json:"pc2"`
}

type profilesResponse struct {
	RunID    string            `json:"run_id"`
	Count    int               `json:"count"`
	Profiles []profileResponse `json:"profiles"`
}

func newProfileResponse(schema model.Schema, p model.Profile) profileResponse {
	freqs := make(map[string]float64, schema.Len())
	pcts := make(map[string]float64, len(p.Percentiles))
	for i, pt := range schema.PlayTypes {
		if i < len(p.Frequencies) {
			freqs[pt] = p.Frequencies[i]
		}
		if v, ok := p.Percentiles[pt]; ok {
			pcts[pt] = v
		}
	}
	return profileResponse{
		Key:             p.Key,
		Player:          p.Player,
		Team:            p.Team,
		Season:          p.Season,
		Frequencies:     freqs,
		Percentiles:     pcts,
		SummedFrequency: p.SummedFrequency,
		Cluster:         p.Cluster,
		PC1:             p.PC1,
		PC2:             p.PC2,
	}
}

// HandleList handles GET /profiles?season=&cluster= requests. season may
// repeat to select several seasons.
func (h *ProfilesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := repository.Filter{Cluster: strings.TrimSpace(q.Get("cluster"))}
	for _, season := range q["season"] {
		if season = strings.TrimSpace(season); season != "" {
			f.Seasons = append(f.Seasons, season)
		}
	}
	if f.Cluster != "" {
		if n, err := strconv.Atoi(f.Cluster); err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid_cluster",
				fmt.Errorf("%w: cluster must be a non-negative integer", ErrBadRequest))
			return
		}
	}

	run, profiles, err := h.deps.Profiles(r.Context(), f)
	if err != nil {
		writeLookupError(w, err)
		return
	}

	resp := profilesResponse{
		RunID:    run.ID.String(),
		Count:    len(profiles),
		Profiles: make([]profileResponse, len(profiles)),
	}
	for i, p := range profiles {
		resp.Profiles[i] = newProfileResponse(run.Schema, p)
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleGet handles GET /profiles/{key}, where key is the URL-escaped
// "player - team - season" composite.
func (h *ProfilesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.PathValue("key"))
	if key == "" {
		writeError(w, http.StatusBadRequest, "missing_key", fmt.Errorf("%w: missing profile key", ErrBadRequest))
		return
	}

	run, p, err := h.deps.FindProfile(r.Context(), key)
	if err != nil {
		writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newProfileResponse(run.Schema, p))
}
