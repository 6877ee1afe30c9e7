// Package synthleague generates deterministic long-form play-type data for
// demos and tests: a league of players drawn from a few usage archetypes.
package synthleague

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/okian/playstyle/internal/domain/model"
)

// PlayTypes are the columns of the public play-type tables.
var PlayTypes = []string{
	"Transition", "Isolation", "Pick & Roll Ball Handler", "Pick & Roll Roll Man",
	"Post Up", "Spot Up", "Handoff", "Cut", "Off Screen", "Putbacks", "Misc",
}

// Archetype is a usage profile in percent of possessions, aligned with PlayTypes.
type Archetype struct {
	Name  string
	Usage []float64
}

// Archetypes are the built-in usage profiles.
var Archetypes = []Archetype{
	{Name: "primary handler", Usage: []float64{14, 18, 42, 0, 2, 12, 4, 1, 2, 0, 5}},
	{Name: "roll big", Usage: []float64{8, 0, 0, 30, 14, 4, 2, 24, 0, 14, 4}},
	{Name: "movement shooter", Usage: []float64{16, 2, 3, 0, 0, 38, 12, 6, 20, 0, 3}},
	{Name: "post scorer", Usage: []float64{10, 10, 4, 8, 40, 12, 2, 8, 0, 4, 2}},
}

// Defaults.
const (
	DefaultPlayers     = 80
	DefaultSeasons     = 2
	DefaultFirstSeason = 2021
	DefaultSeed        = 50
	DefaultSparseShare = 0.15
	DefaultUpdatedAt   = "2023-06-01"
)

const (
	jitter        = 0.15 // relative, per cell
	sparseScale   = 0.1  // low-minute players keep this share of usage
	sparseKeep    = 0.35 // and report only this share of play types
	omitBelow     = 0.5  // cells under this percent are not published
	percentileMax = 100.0
)

var teams = []string{"ATL", "BOS", "CHI", "DAL", "DEN", "LAL", "MIA", "MIL", "NYK", "PHX"}

// Generator builds a synthetic league.
type Generator struct {
	players     int
	seasons     int
	firstSeason int
	seed        int64
	sparseShare float64
	archetypes  []Archetype
}

// Option applies a configuration option to the Generator.
type Option func(*Generator)

// WithPlayers sets the number of players.
func WithPlayers(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.players = n
		}
	}
}

// WithSeasons sets how many consecutive seasons each player appears in.
func WithSeasons(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.seasons = n
		}
	}
}

// WithFirstSeason sets the starting year of the first season label.
func WithFirstSeason(year int) Option {
	return func(g *Generator) {
		if year > 0 {
			g.firstSeason = year
		}
	}
}

// WithSeed sets the random seed.
func WithSeed(seed int64) Option {
	return func(g *Generator) {
		g.seed = seed
	}
}

// WithSparseShare sets the share of low-minute players, in [0, 1].
func WithSparseShare(share float64) Option {
	return func(g *Generator) {
		if share >= 0 && share <= 1 {
			g.sparseShare = share
		}
	}
}

// WithArchetypes replaces the built-in archetypes. Usage slices must be
// aligned with PlayTypes.
func WithArchetypes(a ...Archetype) Option {
	return func(g *Generator) {
		if len(a) > 0 {
			g.archetypes = a
		}
	}
}

// New creates a Generator with defaults, then applies opts.
func New(opts ...Option) *Generator {
	g := &Generator{
		players:     DefaultPlayers,
		seasons:     DefaultSeasons,
		firstSeason: DefaultFirstSeason,
		seed:        DefaultSeed,
		sparseShare: DefaultSparseShare,
		archetypes:  Archetypes,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns the league in long form, player by player and season by
// season. Output is a pure function of the options.
func (g *Generator) Generate() []model.Observation {
	rng := rand.New(rand.NewSource(g.seed)) //nolint:gosec // deterministic seed for reproducible fixtures

	var out []model.Observation
	for p := 0; p < g.players; p++ {
		arch := g.archetypes[p%len(g.archetypes)]
		player := fmt.Sprintf("Player %03d", p+1)
		team := teams[rng.Intn(len(teams))]
		sparse := rng.Float64() < g.sparseShare

		for s := 0; s < g.seasons; s++ {
			season := SeasonLabel(g.firstSeason + s)
			for j, pt := range PlayTypes {
				if j >= len(arch.Usage) {
					break
				}
				freq := arch.Usage[j] * (1 + jitter*(2*rng.Float64()-1))
				pctl := rng.Float64() * percentileMax
				if sparse {
					freq *= sparseScale
					if rng.Float64() > sparseKeep {
						continue
					}
				}
				freq = round1(freq)
				if freq < omitBelow {
					continue
				}
				out = append(out, model.Observation{
					Player:     player,
					Team:       team,
					Season:     season,
					PlayType:   pt,
					Frequency:  freq,
					Percentile: round1(pctl),
					UpdatedAt:  DefaultUpdatedAt,
				})
			}
		}
	}
	return out
}

// SeasonLabel formats a season starting in year, e.g. 2022 -> "2022-23".
func SeasonLabel(year int) string {
	return fmt.Sprintf("%d-%02d", year, (year+1)%100)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
