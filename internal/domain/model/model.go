// Package model contains domain models passed between pipeline stages.
package model

import (
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
)

// KeySeparator joins player, team and season into a composite key.
const KeySeparator = " - "

// Observation is one long-form row: a player's usage of a single play type
// for one team and season.
type Observation struct {
	Player     string
	Team       string
	Season     string  // season label such as "2022-23", never compared numerically
	PlayType   string  // e.g. "Isolation", "Spot Up"
	Frequency  float64 // percent of possessions
	Percentile float64 // efficiency percentile, 0-100; NaN when not reported
	UpdatedAt  string  // as delivered by the acquisition step
}

// Key returns the composite key of the player-team-season the observation belongs to.
func (o Observation) Key() string {
	return Key(o.Player, o.Team, o.Season)
}

// Key builds the composite key for a player-team-season.
func Key(player, team, season string) string {
	return player + KeySeparator + team + KeySeparator + season
}

// Schema is the ordered set of play-type columns discovered in one batch.
type Schema struct {
	PlayTypes []string
}

// Len returns the number of play-type columns.
func (s Schema) Len() int { return len(s.PlayTypes) }

// Index returns the column position of a play type, or -1.
func (s Schema) Index(playType string) int {
	return slices.Index(s.PlayTypes, playType)
}

// Record is the wide-form row for one player-team-season.
type Record struct {
	Key             string
	Player          string
	Team            string
	Season          string
	Frequencies     []float64 // aligned with Schema.PlayTypes
	SummedFrequency float64   // completeness signal, computed at pivot time
	// Percentiles holds the efficiency percentile by play type. Play types
	// the player never ran have no entry; nil when none were reported.
	// Not a clustering feature.
	Percentiles map[string]float64
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	r.Frequencies = slices.Clone(r.Frequencies)
	r.Percentiles = maps.Clone(r.Percentiles)
	return r
}

// Table is a wide-form batch. Row order is significant: downstream stages
// merge their outputs back onto records by position.
type Table struct {
	Schema  Schema
	Records []Record
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Records) }

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	out := &Table{
		Schema:  Schema{PlayTypes: slices.Clone(t.Schema.PlayTypes)},
		Records: make([]Record, len(t.Records)),
	}
	for i, r := range t.Records {
		out.Records[i] = r.Clone()
	}
	return out
}

// Matrix returns the play-type frequencies as a row-major feature matrix.
// The rows alias the records' slices.
func (t *Table) Matrix() [][]float64 {
	m := make([][]float64, len(t.Records))
	for i := range t.Records {
		m[i] = t.Records[i].Frequencies
	}
	return m
}

// Profile is a record after clustering and projection.
type Profile struct {
	Record
	Cluster string // label only; carries no ordering across runs
	PC1     float64
	PC2     float64
}

// Run holds everything one pipeline execution produced.
type Run struct {
	ID                uuid.UUID
	CreatedAt         time.Time
	Schema            Schema
	SelectedK         int
	Inertia           map[int]float64 // candidate k -> best inertia; empty when k was fixed
	ExplainedVariance [2]float64
	SparseThreshold   float64
	FlaggedRows       int
	Profiles          []Profile
}
