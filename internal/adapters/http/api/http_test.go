package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
	"time"

	"github.com/google/uuid"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/playstyle/internal/adapters/http/api"
	"github.com/okian/playstyle/internal/adapters/repository"
	"github.com/okian/playstyle/internal/domain/model"
)

// Mock implementations for testing
type mockDependencies struct {
	run        *model.Run
	readRun    *model.Run // run returned with profile reads; run when nil
	runErr     error
	profiles   []model.Profile
	sizes      []repository.ClusterSize
	lastFilter repository.Filter
}

func (m *mockDependencies) LatestRun(context.Context) (*model.Run, error) {
	if m.runErr != nil {
		return nil, m.runErr
	}
	return m.run, nil
}

func (m *mockDependencies) profileRun() *model.Run {
	if m.readRun != nil {
		return m.readRun
	}
	return m.run
}

func (m *mockDependencies) Profiles(_ context.Context, f repository.Filter) (*model.Run, []model.Profile, error) {
	m.lastFilter = f
	if m.runErr != nil {
		return nil, nil, m.runErr
	}
	var out []model.Profile
	for _, p := range m.profiles {
		if (len(f.Seasons) == 0 || slices.Contains(f.Seasons, p.Season)) && (f.Cluster == "" || p.Cluster == f.Cluster) {
			out = append(out, p)
		}
	}
	return m.profileRun(), out, nil
}

func (m *mockDependencies) FindProfile(_ context.Context, key string) (*model.Run, model.Profile, error) {
	if m.runErr != nil {
		return nil, model.Profile{}, m.runErr
	}
	for _, p := range m.profiles {
		if p.Key == key {
			return m.profileRun(), p, nil
		}
	}
	return nil, model.Profile{}, fmt.Errorf("%w: %s", repository.ErrNotFound, key)
}

func (m *mockDependencies) ClusterSizes(context.Context) ([]repository.ClusterSize, error) {
	if m.runErr != nil {
		return nil, m.runErr
	}
	return m.sizes, nil
}

func withPercentiles(r model.Record, pcts map[string]float64) model.Record {
	r.Percentiles = pcts
	return r
}

func newMockDependencies() *mockDependencies {
	rec := func(player, season string, freqs ...float64) model.Record {
		return model.Record{Key: model.Key(player, "BOS", season), Player: player, Team: "BOS", Season: season, Frequencies: freqs}
	}
	return &mockDependencies{
		run: &model.Run{
			ID:                uuid.MustParse("6f1c1d2e-8a4b-4c3d-9e5f-0a1b2c3d4e5f"),
			CreatedAt:         time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC),
			Schema:            model.Schema{PlayTypes: []string{"Isolation", "Cut"}},
			SelectedK:         2,
			Inertia:           map[int]float64{2: 10, 3: 8, 4: 7},
			ExplainedVariance: [2]float64{0.8, 0.15},
		},
		profiles: []model.Profile{
			{Record: withPercentiles(rec("A", "2022-23", 30, 2), map[string]float64{"Isolation": 81.5}), Cluster: "0", PC1: 1},
			{Record: rec("B", "2022-23", 1, 40), Cluster: "1", PC1: -1},
			{Record: rec("C", "2021-22", 2, 35), Cluster: "1", PC1: -0.5},
		},
		sizes: []repository.ClusterSize{{Cluster: "0", Size: 1}, {Cluster: "1", Size: 3}},
	}
}

func serve(mux *http.ServeMux, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decode(w *httptest.ResponseRecorder, v any) {
	So(json.Unmarshal(w.Body.Bytes(), v), ShouldBeNil)
}

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		deps := newMockDependencies()
		mux := http.NewServeMux()
		api.NewServer(deps).Register(mux)

		Convey("Then the health endpoint reports ok", func() {
			w := serve(mux, http.MethodGet, "/healthz")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldStartWith, "application/json")
			var body map[string]string
			decode(w, &body)
			So(body["status"], ShouldEqual, "ok")
		})

		Convey("Then the metrics endpoint serves the custom registry", func() {
			_ = serve(mux, http.MethodGet, "/healthz")
			w := serve(mux, http.MethodGet, "/metrics")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "playstyle_pipeline_input_observations")
			So(w.Body.String(), ShouldContainSubstring, "playstyle_http_requests_total")
		})

		Convey("Then write methods are not allowed", func() {
			w := serve(mux, http.MethodPost, "/profiles")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})

		Convey("Then unknown paths are not found", func() {
			w := serve(mux, http.MethodGet, "/unknown")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestRunsHandler(t *testing.T) {
	Convey("Given a stored run", t, func() {
		deps := newMockDependencies()
		mux := http.NewServeMux()
		api.NewServer(deps).Register(mux)

		Convey("When fetching the latest run", func() {
			w := serve(mux, http.MethodGet, "/runs/latest")

			Convey("Then its metadata is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var body struct {
					ID                string             `json:"id"`
					CreatedAt         string             `json:"created_at"`
					PlayTypes         []string           `json:"play_types"`
					SelectedK         int                `json:"selected_k"`
					Inertia           map[string]float64 `json:"inertia"`
					ExplainedVariance []float64          `json:"explained_variance"`
				}
				decode(w, &body)
				So(body.ID, ShouldEqual, "6f1c1d2e-8a4b-4c3d-9e5f-0a1b2c3d4e5f")
				So(body.CreatedAt, ShouldEqual, "2023-06-01T12:00:00Z")
				So(body.PlayTypes, ShouldResemble, []string{"Isolation", "Cut"})
				So(body.SelectedK, ShouldEqual, 2)
				So(body.Inertia, ShouldResemble, map[string]float64{"2": 10, "3": 8, "4": 7})
				So(body.ExplainedVariance, ShouldResemble, []float64{0.8, 0.15})
			})
		})

		Convey("When nothing has been stored", func() {
			deps.runErr = fmt.Errorf("%w: no runs stored", repository.ErrNotFound)
			w := serve(mux, http.MethodGet, "/runs/latest")

			Convey("Then it returns 404", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
				var body map[string]string
				decode(w, &body)
				So(body["code"], ShouldEqual, "not_found")
			})
		})

		Convey("When the store fails", func() {
			deps.runErr = errors.New("disk I/O error")
			w := serve(mux, http.MethodGet, "/runs/latest")

			Convey("Then it returns 500", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
			})
		})
	})
}

type profileBody struct {
	Key         string             `json:"key"`
	Player      string             `json:"player"`
	Frequencies map[string]float64 `json:"frequencies"`
	Percentiles map[string]float64 `json:"percentiles"`
	Cluster     string             `json:"cluster"`
	PC1         float64            `json:"pc1"`
}

func TestProfilesHandler(t *testing.T) {
	Convey("Given stored profiles", t, func() {
		deps := newMockDependencies()
		mux := http.NewServeMux()
		api.NewServer(deps).Register(mux)

		Convey("When listing all profiles", func() {
			w := serve(mux, http.MethodGet, "/profiles")

			Convey("Then every profile is returned with named frequencies", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var body struct {
					RunID    string        `json:"run_id"`
					Count    int           `json:"count"`
					Profiles []profileBody `json:"profiles"`
				}
				decode(w, &body)
				So(body.Count, ShouldEqual, 3)
				So(body.RunID, ShouldEqual, deps.run.ID.String())
				So(body.Profiles[0].Frequencies, ShouldResemble, map[string]float64{"Isolation": 30, "Cut": 2})
			})

			Convey("Then only reported percentiles are listed", func() {
				var body struct {
					Profiles []profileBody `json:"profiles"`
				}
				decode(w, &body)
				So(body.Profiles[0].Percentiles, ShouldResemble, map[string]float64{"Isolation": 81.5})
				So(body.Profiles[1].Percentiles, ShouldBeEmpty)
			})
		})

		Convey("When the rows come from a newer run than the last metadata read", func() {
			newer := *deps.run
			newer.ID = uuid.MustParse("0b7e2c4d-1f3a-4e5b-8c6d-7a8b9c0d1e2f")
			newer.Schema = model.Schema{PlayTypes: []string{"Post Up", "Handoff"}}
			deps.readRun = &newer
			w := serve(mux, http.MethodGet, "/profiles")

			Convey("Then the rows are labelled with the run they were read from", func() {
				var body struct {
					RunID    string        `json:"run_id"`
					Profiles []profileBody `json:"profiles"`
				}
				decode(w, &body)
				So(body.RunID, ShouldEqual, newer.ID.String())
				So(body.Profiles[0].Frequencies, ShouldResemble, map[string]float64{"Post Up": 30, "Handoff": 2})
			})
		})

		Convey("When filtering by season and cluster", func() {
			w := serve(mux, http.MethodGet, "/profiles?season=2022-23&cluster=1")

			Convey("Then the filter reaches the dependencies", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.lastFilter, ShouldResemble, repository.Filter{Seasons: []string{"2022-23"}, Cluster: "1"})
				var body struct {
					Profiles []profileBody `json:"profiles"`
				}
				decode(w, &body)
				So(body.Profiles, ShouldHaveLength, 1)
				So(body.Profiles[0].Player, ShouldEqual, "B")
			})
		})

		Convey("When several seasons are requested", func() {
			w := serve(mux, http.MethodGet, "/profiles?season=2022-23&season=2021-22&cluster=1")

			Convey("Then every requested season is matched", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.lastFilter.Seasons, ShouldResemble, []string{"2022-23", "2021-22"})
				var body struct {
					Count int `json:"count"`
				}
				decode(w, &body)
				So(body.Count, ShouldEqual, 2)
			})
		})

		Convey("When the cluster filter is not a label", func() {
			w := serve(mux, http.MethodGet, "/profiles?cluster=big")

			Convey("Then it returns 400", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When fetching one profile by escaped key", func() {
			w := serve(mux, http.MethodGet, "/profiles/C%20-%20BOS%20-%202021-22")

			Convey("Then that profile is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var body profileBody
				decode(w, &body)
				So(body.Key, ShouldEqual, "C - BOS - 2021-22")
				So(body.Cluster, ShouldEqual, "1")
				So(body.PC1, ShouldEqual, -0.5)
			})
		})

		Convey("When fetching a profile whose run has a different schema", func() {
			newer := *deps.run
			newer.Schema = model.Schema{PlayTypes: []string{"Post Up", "Handoff"}}
			deps.readRun = &newer
			w := serve(mux, http.MethodGet, "/profiles/A%20-%20BOS%20-%202022-23")

			Convey("Then its own run's play types name the frequencies", func() {
				var body profileBody
				decode(w, &body)
				So(body.Frequencies, ShouldResemble, map[string]float64{"Post Up": 30, "Handoff": 2})
			})
		})

		Convey("When fetching an unknown key", func() {
			w := serve(mux, http.MethodGet, "/profiles/Nobody")

			Convey("Then it returns 404", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestClustersHandler(t *testing.T) {
	Convey("Given cluster sizes", t, func() {
		deps := newMockDependencies()
		mux := http.NewServeMux()
		api.NewServer(deps).Register(mux)

		Convey("When listing clusters", func() {
			w := serve(mux, http.MethodGet, "/clusters")

			Convey("Then sizes and shares are returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var body struct {
					Total    int `json:"total"`
					Clusters []struct {
						Cluster string  `json:"cluster"`
						Size    int     `json:"size"`
						Share   float64 `json:"share"`
					} `json:"clusters"`
				}
				decode(w, &body)
				So(body.Total, ShouldEqual, 4)
				So(body.Clusters, ShouldHaveLength, 2)
				So(body.Clusters[1].Share, ShouldEqual, 0.75)
			})
		})

		Convey("When there is no run", func() {
			deps.runErr = repository.ErrNotFound
			w := serve(mux, http.MethodGet, "/clusters")

			Convey("Then it returns 404", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}
