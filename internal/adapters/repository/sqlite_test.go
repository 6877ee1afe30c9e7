package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/playstyle/internal/domain/model"
)

func openMemStore() *SQLiteStore {
	s, err := Open(":memory:")
	So(err, ShouldBeNil)
	Reset(func() { _ = s.Close() })
	return s
}

func profile(player, team, season, cluster string, freqs ...float64) model.Profile {
	sum := 0.0
	for _, f := range freqs {
		sum += f
	}
	return model.Profile{
		Record: model.Record{
			Key:             model.Key(player, team, season),
			Player:          player,
			Team:            team,
			Season:          season,
			Frequencies:     freqs,
			SummedFrequency: sum,
		},
		Cluster: cluster,
		PC1:     float64(len(player)),
		PC2:     -float64(len(team)),
	}
}

func sampleRun(created time.Time) *model.Run {
	zed := profile("Zed", "BOS", "2022-23", "0", 30, 10, 5)
	zed.Percentiles = map[string]float64{"Isolation": 88.1, "Cut": 12.5}
	return &model.Run{
		ID:                uuid.New(),
		CreatedAt:         created,
		Schema:            model.Schema{PlayTypes: []string{"Isolation", "Spot Up", "Cut"}},
		SelectedK:         3,
		Inertia:           map[int]float64{2: 900, 3: 300, 4: 250},
		ExplainedVariance: [2]float64{0.61, 0.22},
		SparseThreshold:   12.5,
		FlaggedRows:       1,
		Profiles: []model.Profile{
			zed,
			profile("Amy", "LAL", "2022-23", "1", 5, 40, 2),
			profile("Bo", "BOS", "2021-22", "1", 4, 38, 3),
			profile("Cy", "MIA", "2022-23", "10", -20, 9, -20),
		},
	}
}

func TestSQLiteStore_SaveAndLoad(t *testing.T) {
	Convey("Given an empty store", t, func() {
		ctx := context.Background()
		s := openMemStore()

		Convey("Then the latest run is not found", func() {
			_, err := s.LatestRun(ctx)
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})

		Convey("When a run is saved", func() {
			created := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
			run := sampleRun(created)
			So(s.SaveRun(ctx, run), ShouldBeNil)

			Convey("Then its metadata round-trips without profiles", func() {
				got, err := s.Run(ctx, run.ID)
				So(err, ShouldBeNil)
				So(got.ID, ShouldEqual, run.ID)
				So(got.CreatedAt.Equal(created), ShouldBeTrue)
				So(got.Schema, ShouldResemble, run.Schema)
				So(got.SelectedK, ShouldEqual, 3)
				So(got.Inertia, ShouldResemble, run.Inertia)
				So(got.ExplainedVariance, ShouldResemble, run.ExplainedVariance)
				So(got.SparseThreshold, ShouldEqual, 12.5)
				So(got.FlaggedRows, ShouldEqual, 1)
				So(got.Profiles, ShouldBeNil)
			})

			Convey("Then profiles come back in row order with frequencies", func() {
				got, err := s.Profiles(ctx, run.ID, Filter{})
				So(err, ShouldBeNil)
				So(got, ShouldResemble, run.Profiles)
			})

			Convey("Then percentiles come back only where they were reported", func() {
				got, err := s.Profiles(ctx, run.ID, Filter{})
				So(err, ShouldBeNil)
				So(got[0].Percentiles, ShouldResemble, map[string]float64{"Isolation": 88.1, "Cut": 12.5})
				_, ok := got[0].Percentiles["Spot Up"]
				So(ok, ShouldBeFalse)
				So(got[1].Percentiles, ShouldBeNil)
			})

			Convey("Then filters narrow the listing", func() {
				got, err := s.Profiles(ctx, run.ID, Filter{Seasons: []string{"2022-23"}, Cluster: "1"})
				So(err, ShouldBeNil)
				So(got, ShouldHaveLength, 1)
				So(got[0].Player, ShouldEqual, "Amy")
				So(got[0].Frequencies, ShouldResemble, []float64{5, 40, 2})

				none, err := s.Profiles(ctx, run.ID, Filter{Cluster: "7"})
				So(err, ShouldBeNil)
				So(none, ShouldBeEmpty)
			})

			Convey("Then several seasons can be selected at once", func() {
				got, err := s.Profiles(ctx, run.ID, Filter{Seasons: []string{"2021-22", "2022-23"}, Cluster: "1"})
				So(err, ShouldBeNil)
				So(got, ShouldHaveLength, 2)
				So(got[0].Player, ShouldEqual, "Amy")
				So(got[1].Player, ShouldEqual, "Bo")

				older, err := s.Profiles(ctx, run.ID, Filter{Seasons: []string{"2021-22", "2019-20"}})
				So(err, ShouldBeNil)
				So(older, ShouldHaveLength, 1)
				So(older[0].Season, ShouldEqual, "2021-22")
			})

			Convey("Then a single profile is found by key", func() {
				got, err := s.Profile(ctx, run.ID, "Cy - MIA - 2022-23")
				So(err, ShouldBeNil)
				So(got, ShouldResemble, run.Profiles[3])

				_, err = s.Profile(ctx, run.ID, "Nobody - X - 2022-23")
				So(errors.Is(err, ErrNotFound), ShouldBeTrue)
			})

			Convey("Then cluster sizes are ordered by label", func() {
				got, err := s.ClusterSizes(ctx, run.ID)
				So(err, ShouldBeNil)
				So(got, ShouldResemble, []ClusterSize{{"0", 1}, {"1", 2}, {"10", 1}})
			})

			Convey("And a newer run is saved", func() {
				newer := sampleRun(created.Add(time.Hour))
				newer.Inertia = nil
				newer.Profiles = newer.Profiles[:1]
				So(s.SaveRun(ctx, newer), ShouldBeNil)

				Convey("Then it becomes the latest", func() {
					got, err := s.LatestRun(ctx)
					So(err, ShouldBeNil)
					So(got.ID, ShouldEqual, newer.ID)
					So(got.Inertia, ShouldBeNil)
				})

				Convey("Then the older run is untouched", func() {
					got, err := s.Profiles(ctx, run.ID, Filter{})
					So(err, ShouldBeNil)
					So(got, ShouldHaveLength, 4)
				})
			})

			Convey("And the same run is saved again with fewer profiles", func() {
				run.Profiles = run.Profiles[1:2]
				run.SelectedK = 2
				So(s.SaveRun(ctx, run), ShouldBeNil)

				Convey("Then the stored run is replaced", func() {
					got, err := s.Run(ctx, run.ID)
					So(err, ShouldBeNil)
					So(got.SelectedK, ShouldEqual, 2)

					profiles, err := s.Profiles(ctx, run.ID, Filter{})
					So(err, ShouldBeNil)
					So(profiles, ShouldResemble, run.Profiles)
				})
			})
		})

		Convey("Then lookups on an unknown run are not found", func() {
			id := uuid.New()
			_, err := s.Run(ctx, id)
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
			_, err = s.Profiles(ctx, id, Filter{})
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
			_, err = s.ClusterSizes(ctx, id)
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestSQLiteStore_SaveInvalid(t *testing.T) {
	Convey("Given a store", t, func() {
		ctx := context.Background()
		s := openMemStore()

		Convey("Then malformed runs are rejected", func() {
			So(errors.Is(s.SaveRun(ctx, nil), ErrInvalid), ShouldBeTrue)

			noID := sampleRun(time.Now())
			noID.ID = uuid.Nil
			So(errors.Is(s.SaveRun(ctx, noID), ErrInvalid), ShouldBeTrue)

			ragged := sampleRun(time.Now())
			ragged.Profiles[0].Frequencies = []float64{1}
			So(errors.Is(s.SaveRun(ctx, ragged), ErrInvalid), ShouldBeTrue)

			stray := sampleRun(time.Now())
			stray.Profiles[1].Percentiles = map[string]float64{"Post Up": 50}
			So(errors.Is(s.SaveRun(ctx, stray), ErrInvalid), ShouldBeTrue)
		})

		Convey("Then nothing is stored after a rejected run", func() {
			_ = s.SaveRun(ctx, nil)
			_, err := s.LatestRun(ctx)
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})
	})
}
