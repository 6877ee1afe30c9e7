package elbow_test

import (
	"errors"
	"math"
	"testing"

	"github.com/okian/playstyle/internal/domain/elbow"
	. "github.com/smartystreets/goconvey/convey"
)

func ks(from, to int) []int {
	out := make([]int, 0, to-from+1)
	for k := from; k <= to; k++ {
		out = append(out, k)
	}
	return out
}

func TestLocate(t *testing.T) {
	Convey("Given a typical inertia curve for k = 2..11", t, func() {
		sse := []float64{1000, 400, 200, 150, 120, 100, 90, 85, 82, 80}

		Convey("Then the elbow is at the point of diminishing returns", func() {
			k, err := elbow.Locate(ks(2, 11), sse)
			So(err, ShouldBeNil)
			So(k, ShouldEqual, 4)
		})
	})

	Convey("Given a curve with a sharp knee", t, func() {
		sse := []float64{900, 850, 800, 100, 90, 80}

		Convey("Then the knee is selected", func() {
			k, err := elbow.Locate(ks(2, 7), sse)
			So(err, ShouldBeNil)
			So(k, ShouldEqual, 5)
		})
	})

	Convey("Given curves without an elbow", t, func() {
		cases := []struct {
			name string
			sse  []float64
		}{
			{"flat", []float64{5, 5, 5, 5}},
			{"straight line", []float64{11, 10, 9, 8, 7, 6}},
			{"increasing", []float64{1, 2, 4, 8}},
			{"concave", []float64{100, 99, 97, 90, 50, 0}},
		}
		for _, tc := range cases {
			_, err := elbow.Locate(ks(2, 1+len(tc.sse)), tc.sse)
			Convey("Then a "+tc.name+" curve reports ErrNoElbow", func() {
				So(errors.Is(err, elbow.ErrNoElbow), ShouldBeTrue)
			})
		}
	})

	Convey("Given too few points", t, func() {
		_, err := elbow.Locate([]int{2, 3}, []float64{10, 1})

		Convey("Then locating fails", func() {
			So(errors.Is(err, elbow.ErrTooFewPoints), ShouldBeTrue)
		})
	})

	Convey("Given malformed curves", t, func() {
		Convey("Then mismatched lengths are rejected", func() {
			_, err := elbow.Locate([]int{2, 3, 4}, []float64{3, 2})
			So(errors.Is(err, elbow.ErrInvalidCurve), ShouldBeTrue)
		})

		Convey("Then non-finite values are rejected", func() {
			_, err := elbow.Locate([]int{2, 3, 4}, []float64{3, math.NaN(), 1})
			So(errors.Is(err, elbow.ErrInvalidCurve), ShouldBeTrue)
		})

		Convey("Then unordered x values are rejected", func() {
			_, err := elbow.Locate([]int{2, 4, 3}, []float64{3, 2, 1})
			So(errors.Is(err, elbow.ErrInvalidCurve), ShouldBeTrue)
		})
	})
}
