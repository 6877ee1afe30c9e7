// Package tablefile reads and writes the pipeline's CSV tables: the
// long-form play-type export, the pivoted checkpoint and the clustered
// profile table.
package tablefile

import (
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/okian/playstyle/internal/domain/model"
)

// Fixed column names of the checkpoint and profile tables.
const (
	ColKey        = "UniqueID"
	ColPlayer     = "PLAYER"
	ColTeam       = "TEAM"
	ColSeason     = "SEASON"
	ColSummedFreq = "SummedFreq"
	ColCluster    = "Cluster"
	ColPC1        = "PC1"
	ColPC2        = "PC2"

	// PercentilePrefix names the optional per-play-type percentile columns
	// that follow SummedFreq, e.g. "Percentile Isolation".
	PercentilePrefix = "Percentile "
)

// Sentinel error kinds for this package.
var (
	ErrRead          = errors.New("read table")
	ErrWrite         = errors.New("write table")
	ErrMissingColumn = errors.New("missing column")
	ErrMalformedRow  = errors.New("malformed row")
)

// Columns names the long-form input columns. Percentile and Updated are
// optional; leave them empty or absent from the file.
type Columns struct {
	Player     string
	Team       string
	Season     string
	PlayType   string
	Frequency  string
	Percentile string
	Updated    string
}

// DefaultColumns matches the play-type export headers.
func DefaultColumns() Columns {
	return Columns{
		Player:     "PLAYER",
		Team:       "TEAM",
		Season:     "SEASON",
		PlayType:   "PlayType",
		Frequency:  "Freq%",
		Percentile: "Percentile",
		Updated:    "UpdateDate",
	}
}

// ReadObservations parses the long-form CSV. Every cell is read as text and
// numeric columns are converted afterwards, so identity columns such as
// "2022-23" are never reinterpreted. Unparseable frequencies become NaN and
// are rejected by the pivot; a missing or blank percentile is NaN.
func ReadObservations(r io.Reader, cols Columns) ([]model.Observation, error) {
	df, err := readFrame(r)
	if err != nil {
		return nil, err
	}
	if err := requireColumns(df, cols.Player, cols.Team, cols.Season, cols.PlayType, cols.Frequency); err != nil {
		return nil, err
	}

	n := df.Nrow()
	players := df.Col(cols.Player).Records()
	teams := df.Col(cols.Team).Records()
	seasons := df.Col(cols.Season).Records()
	playTypes := df.Col(cols.PlayType).Records()
	freqs := df.Col(cols.Frequency).Float()

	var percentiles []float64
	if has(df, cols.Percentile) {
		percentiles = df.Col(cols.Percentile).Float()
	} else {
		percentiles = make([]float64, n)
		for i := range percentiles {
			percentiles[i] = math.NaN()
		}
	}
	updated := make([]string, n)
	if has(df, cols.Updated) {
		updated = df.Col(cols.Updated).Records()
	}

	out := make([]model.Observation, n)
	for i := 0; i < n; i++ {
		out[i] = model.Observation{
			Player:     players[i],
			Team:       teams[i],
			Season:     seasons[i],
			PlayType:   playTypes[i],
			Frequency:  freqs[i],
			Percentile: percentiles[i],
			UpdatedAt:  updated[i],
		}
	}
	return out, nil
}

// WriteObservations writes the long-form CSV with the given column names.
// Optional columns with an empty name are left out.
func WriteObservations(w io.Writer, obs []model.Observation, cols Columns) error {
	n := len(obs)
	players := make([]string, n)
	teams := make([]string, n)
	seasons := make([]string, n)
	playTypes := make([]string, n)
	freqs := make([]float64, n)
	percentiles := make([]float64, n)
	updated := make([]string, n)
	for i, o := range obs {
		players[i], teams[i], seasons[i], playTypes[i] = o.Player, o.Team, o.Season, o.PlayType
		freqs[i], percentiles[i], updated[i] = o.Frequency, o.Percentile, o.UpdatedAt
	}

	ss := []series.Series{
		series.New(players, series.String, cols.Player),
		series.New(teams, series.String, cols.Team),
		series.New(seasons, series.String, cols.Season),
		series.New(playTypes, series.String, cols.PlayType),
		floatSeries(freqs, cols.Frequency),
	}
	if cols.Percentile != "" {
		ss = append(ss, floatSeries(percentiles, cols.Percentile))
	}
	if cols.Updated != "" {
		ss = append(ss, series.New(updated, series.String, cols.Updated))
	}
	return writeFrame(w, ss)
}

// WriteCheckpoint writes the pivoted table:
// UniqueID, PLAYER, TEAM, SEASON, <play types...>, SummedFreq, followed by
// one "Percentile <play type>" column per play type when any row carries
// percentiles. Floats are written at full precision.
func WriteCheckpoint(w io.Writer, t *model.Table) error {
	return writeFrame(w, recordColumns(t.Schema, t.Records))
}

// ReadCheckpoint parses a table written by WriteCheckpoint. The schema is
// the columns between SEASON and SummedFreq, in file order. Percentile
// columns, when present, must cover the schema in the same order; blank
// cells mean no percentile was reported.
func ReadCheckpoint(r io.Reader) (*model.Table, error) {
	df, err := readFrame(r)
	if err != nil {
		return nil, err
	}
	names := df.Names()
	head := []string{ColKey, ColPlayer, ColTeam, ColSeason}
	sumAt := slices.Index(names, ColSummedFreq)
	if sumAt < len(head) || !slices.Equal(names[:len(head)], head) {
		return nil, fmt.Errorf("%w: checkpoint header must be %v, <play types>, %s; got %v",
			ErrMissingColumn, head, ColSummedFreq, names)
	}

	schema := model.Schema{PlayTypes: slices.Clone(names[len(head):sumAt])}
	tail := names[sumAt+1:]
	if len(tail) > 0 && !slices.Equal(tail, percentileNames(schema)) {
		return nil, fmt.Errorf("%w: columns after %s must be %v; got %v",
			ErrMissingColumn, ColSummedFreq, percentileNames(schema), tail)
	}
	var pcts [][]float64
	for _, name := range tail {
		pcts = append(pcts, df.Col(name).Float())
	}

	keys := df.Col(ColKey).Records()
	players := df.Col(ColPlayer).Records()
	teams := df.Col(ColTeam).Records()
	seasons := df.Col(ColSeason).Records()
	sums := df.Col(ColSummedFreq).Float()
	cols := make([][]float64, schema.Len())
	for j, pt := range schema.PlayTypes {
		cols[j] = df.Col(pt).Float()
	}

	t := &model.Table{Schema: schema, Records: make([]model.Record, df.Nrow())}
	seen := make(map[string]int, df.Nrow())
	for i := range t.Records {
		if want := model.Key(players[i], teams[i], seasons[i]); keys[i] != want {
			return nil, fmt.Errorf("%w: row %d key %q does not match %q", ErrMalformedRow, i, keys[i], want)
		}
		if prev, dup := seen[keys[i]]; dup {
			return nil, fmt.Errorf("%w: key %q repeated at rows %d and %d", ErrMalformedRow, keys[i], prev, i)
		}
		seen[keys[i]] = i

		freqs := make([]float64, schema.Len())
		for j := range cols {
			freqs[j] = cols[j][i]
		}
		var percentiles map[string]float64
		for j := range pcts {
			if math.IsNaN(pcts[j][i]) {
				continue
			}
			if percentiles == nil {
				percentiles = make(map[string]float64)
			}
			percentiles[schema.PlayTypes[j]] = pcts[j][i]
		}
		t.Records[i] = model.Record{
			Key:             keys[i],
			Player:          players[i],
			Team:            teams[i],
			Season:          seasons[i],
			Frequencies:     freqs,
			SummedFrequency: sums[i],
			Percentiles:     percentiles,
		}
	}
	return t, nil
}

// WriteProfiles writes the clustered table: the checkpoint columns with
// post-sparsification frequencies, then Cluster, PC1, PC2.
func WriteProfiles(w io.Writer, schema model.Schema, profiles []model.Profile) error {
	records := make([]model.Record, len(profiles))
	clusters := make([]string, len(profiles))
	pc1 := make([]float64, len(profiles))
	pc2 := make([]float64, len(profiles))
	for i, p := range profiles {
		records[i] = p.Record
		clusters[i] = p.Cluster
		pc1[i] = p.PC1
		pc2[i] = p.PC2
	}

	cols := recordColumns(schema, records)
	cols = append(cols,
		series.New(clusters, series.String, ColCluster),
		floatSeries(pc1, ColPC1),
		floatSeries(pc2, ColPC2),
	)
	return writeFrame(w, cols)
}

func recordColumns(schema model.Schema, records []model.Record) []series.Series {
	n := len(records)
	keys := make([]string, n)
	players := make([]string, n)
	teams := make([]string, n)
	seasons := make([]string, n)
	sums := make([]float64, n)
	freqs := make([][]float64, schema.Len())
	pcts := make([][]float64, schema.Len())
	for j := range freqs {
		freqs[j] = make([]float64, n)
		pcts[j] = make([]float64, n)
	}
	withPercentiles := false
	for i, r := range records {
		keys[i], players[i], teams[i], seasons[i] = r.Key, r.Player, r.Team, r.Season
		sums[i] = r.SummedFrequency
		withPercentiles = withPercentiles || len(r.Percentiles) > 0
		for j, pt := range schema.PlayTypes {
			freqs[j][i] = r.Frequencies[j]
			if v, ok := r.Percentiles[pt]; ok {
				pcts[j][i] = v
			} else {
				pcts[j][i] = math.NaN()
			}
		}
	}

	cols := []series.Series{
		series.New(keys, series.String, ColKey),
		series.New(players, series.String, ColPlayer),
		series.New(teams, series.String, ColTeam),
		series.New(seasons, series.String, ColSeason),
	}
	for j, pt := range schema.PlayTypes {
		cols = append(cols, floatSeries(freqs[j], pt))
	}
	cols = append(cols, floatSeries(sums, ColSummedFreq))
	if withPercentiles {
		for j, name := range percentileNames(schema) {
			cols = append(cols, floatSeries(pcts[j], name))
		}
	}
	return cols
}

func percentileNames(schema model.Schema) []string {
	names := make([]string, schema.Len())
	for j, pt := range schema.PlayTypes {
		names[j] = PercentilePrefix + pt
	}
	return names
}

// floatSeries formats values as the shortest text that parses back to the
// same float64; gota's own float writer keeps six decimals. NaN is blank.
func floatSeries(values []float64, name string) series.Series {
	text := make([]string, len(values))
	for i, v := range values {
		if !math.IsNaN(v) {
			text[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
	}
	return series.New(text, series.String, name)
}

func readFrame(r io.Reader) (dataframe.DataFrame, error) {
	df := dataframe.ReadCSV(r, dataframe.DetectTypes(false), dataframe.HasHeader(true))
	if df.Err != nil {
		return df, fmt.Errorf("%w: %w", ErrRead, df.Err)
	}
	return df, nil
}

func writeFrame(w io.Writer, cols []series.Series) error {
	seen := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		if _, dup := seen[c.Name]; dup {
			return fmt.Errorf("%w: duplicate column %q", ErrWrite, c.Name)
		}
		seen[c.Name] = struct{}{}
	}
	// dataframe.New renames duplicates silently, hence the check above
	df := dataframe.New(cols...)
	if df.Err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, df.Err)
	}
	if err := df.WriteCSV(w); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return nil
}

func requireColumns(df dataframe.DataFrame, names ...string) error {
	for _, name := range names {
		if !has(df, name) {
			return fmt.Errorf("%w: %q", ErrMissingColumn, name)
		}
	}
	return nil
}

func has(df dataframe.DataFrame, name string) bool {
	return name != "" && slices.Contains(df.Names(), name)
}
