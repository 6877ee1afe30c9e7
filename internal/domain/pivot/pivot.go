// Package pivot reshapes long-form play-type observations into one wide
// record per player-team-season.
package pivot

import (
	"math"
	"strings"

	"github.com/okian/playstyle/internal/domain/model"
)

type triple struct {
	player, team, season string
}

type cell struct {
	key      string
	playType string
}

type entry struct {
	frequency  float64
	percentile float64
	row        int
}

type owner struct {
	triple
	row int
}

// Pivot builds the wide-form table.
//
// Play-type columns are the distinct play types in the input, in order of
// first appearance. Rows follow the first appearance of each
// player-team-season. A missing (key, play type) cell is 0; a repeated one
// is an error, as is any blank identifying field. Finite percentiles are
// carried by play type alongside the frequencies.
func Pivot(obs []model.Observation) (*model.Table, error) {
	if len(obs) == 0 {
		return nil, ErrEmptyInput
	}

	var schema model.Schema
	var order []triple
	seenPT := make(map[string]struct{})
	owners := make(map[string]owner, len(obs))
	index := make(map[cell]entry, len(obs))

	for i, o := range obs {
		t := triple{player: o.Player, team: o.Team, season: o.Season}
		key := model.Key(t.player, t.team, t.season)

		if blank(o.Player) || blank(o.Team) || blank(o.Season) || blank(o.PlayType) {
			return nil, &KeyError{Kind: ErrMalformedKey, Key: key, PlayType: o.PlayType, Row: i}
		}
		if math.IsNaN(o.Frequency) || math.IsInf(o.Frequency, 0) || o.Frequency < 0 {
			return nil, &KeyError{Kind: ErrMalformedKey, Key: key, PlayType: o.PlayType, Row: i}
		}

		if first, ok := owners[key]; !ok {
			owners[key] = owner{triple: t, row: i}
			order = append(order, t)
		} else if first.triple != t {
			return nil, &KeyError{Kind: ErrKeyCollision, Key: key, Row: i, FirstRow: first.row}
		}

		if _, ok := seenPT[o.PlayType]; !ok {
			seenPT[o.PlayType] = struct{}{}
			schema.PlayTypes = append(schema.PlayTypes, o.PlayType)
		}

		c := cell{key: key, playType: o.PlayType}
		if prev, dup := index[c]; dup {
			return nil, &KeyError{Kind: ErrDuplicateObservation, Key: key, PlayType: o.PlayType, Row: i, FirstRow: prev.row}
		}
		index[c] = entry{frequency: o.Frequency, percentile: o.Percentile, row: i}
	}

	table := &model.Table{
		Schema:  schema,
		Records: make([]model.Record, 0, len(order)),
	}
	for _, t := range order {
		key := model.Key(t.player, t.team, t.season)
		rec := model.Record{
			Key:         key,
			Player:      t.player,
			Team:        t.team,
			Season:      t.season,
			Frequencies: make([]float64, schema.Len()),
		}
		for j, pt := range schema.PlayTypes {
			// absent cells stay 0
			e, ok := index[cell{key: key, playType: pt}]
			if !ok {
				continue
			}
			rec.Frequencies[j] = e.frequency
			rec.SummedFrequency += e.frequency
			if !math.IsNaN(e.percentile) && !math.IsInf(e.percentile, 0) {
				if rec.Percentiles == nil {
					rec.Percentiles = make(map[string]float64)
				}
				rec.Percentiles[pt] = e.percentile
			}
		}
		table.Records = append(table.Records, rec)
	}
	return table, nil
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
