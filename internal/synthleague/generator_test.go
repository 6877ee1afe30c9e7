package synthleague

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/playstyle/internal/domain/model"
)

func TestGenerate(t *testing.T) {
	Convey("Given the default generator", t, func() {
		obs := New().Generate()

		Convey("Then it is deterministic", func() {
			So(New().Generate(), ShouldResemble, obs)
		})

		Convey("Then every observation is well formed", func() {
			So(obs, ShouldNotBeEmpty)
			seen := make(map[[2]string]bool)
			for _, o := range obs {
				So(o.Frequency, ShouldBeGreaterThanOrEqualTo, omitBelow)
				So(o.Percentile, ShouldBeBetweenOrEqual, 0, percentileMax)
				So(PlayTypes, ShouldContain, o.PlayType)
				cell := [2]string{o.Key(), o.PlayType}
				So(seen[cell], ShouldBeFalse)
				seen[cell] = true
			}
		})

		Convey("Then some player-seasons omit play types", func() {
			perKey := make(map[string]int)
			for _, o := range obs {
				perKey[o.Key()]++
			}
			partial := 0
			for _, n := range perKey {
				if n < len(PlayTypes) {
					partial++
				}
			}
			So(partial, ShouldBeGreaterThan, 0)
			So(len(perKey), ShouldBeLessThanOrEqualTo, DefaultPlayers*DefaultSeasons)
		})
	})

	Convey("Given a small league with no sparse players", t, func() {
		obs := New(WithPlayers(4), WithSeasons(3), WithFirstSeason(2020), WithSparseShare(0), WithSeed(1)).Generate()

		Convey("Then every player appears in every season", func() {
			keys := make(map[string]bool)
			for _, o := range obs {
				keys[o.Key()] = true
			}
			So(keys, ShouldHaveLength, 12)
			So(keys[model.Key("Player 004", obs[len(obs)-1].Team, "2022-23")], ShouldBeTrue)
		})
	})

	Convey("Given different seeds", t, func() {
		a := New(WithSeed(1)).Generate()
		b := New(WithSeed(2)).Generate()

		Convey("Then the leagues differ", func() {
			So(a, ShouldNotResemble, b)
		})
	})
}

func TestSeasonLabel(t *testing.T) {
	Convey("Season labels span two years", t, func() {
		So(SeasonLabel(2022), ShouldEqual, "2022-23")
		So(SeasonLabel(1999), ShouldEqual, "1999-00")
	})
}
