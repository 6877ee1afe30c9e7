package api

import (
	"net/http"
)

// ClustersHandler serves per-cluster row counts.
type ClustersHandler struct {
	deps Dependencies
}

// NewClustersHandler creates a new clusters handler.
func NewClustersHandler(deps Dependencies) *ClustersHandler {
	return &ClustersHandler{deps: deps}
}

type clusterResponse struct {
	Cluster string  `json:"cluster"`
	Size    int     `json:"size"`
	Share   float64 `json:"share"`
}

type clustersResponse struct {
	Total    int               `json:"total"`
	Clusters []clusterResponse `json:"clusters"`
}

// HandleList handles GET /clusters.
func (h *ClustersHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	sizes, err := h.deps.ClusterSizes(r.Context())
	if err != nil {
		writeLookupError(w, err)
		return
	}

	resp := clustersResponse{Clusters: make([]clusterResponse, len(sizes))}
	for _, s := range sizes {
		resp.Total += s.Size
	}
	for i, s := range sizes {
		c := clusterResponse{Cluster: s.Cluster, Size: s.Size}
		if resp.Total > 0 {
			c.Share = float64(s.Size) / float64(resp.Total)
		}
		resp.Clusters[i] = c
	}
	writeJSON(w, http.StatusOK, resp)
}
