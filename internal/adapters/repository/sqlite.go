package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/okian/playstyle/internal/domain/model"
)

//go:embed schema.sql
var schemaSQL string

const (
	defaultBusyTimeout = 5 * time.Second
	defaultJournalMode = "WAL"
)

// SQLiteStore is a Store backed by a single SQLite database file.
type SQLiteStore struct {
	conn        *sql.DB
	busyTimeout time.Duration
	journalMode string
}

var _ Store = (*SQLiteStore)(nil)

// Open opens (or creates) the SQLite database at path and applies the schema.
// ":memory:" gives a private in-memory database.
func Open(path string, opts ...Option) (*SQLiteStore, error) {
	s := &SQLiteStore{busyTimeout: defaultBusyTimeout, journalMode: defaultJournalMode}
	for _, opt := range opts {
		opt(s)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(%s)&_pragma=busy_timeout(%d)",
		path, s.journalMode, s.busyTimeout.Milliseconds())
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// one connection: writers serialise anyway and ":memory:" is per connection
	conn.SetMaxOpenConns(1)
	if _, err := conn.Exec(schemaSQL); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	s.conn = conn
	return s, nil
}

// Close closes the underlying connection.
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

// SaveRun implements Store.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *model.Run) error {
	if err := checkRun(run); err != nil {
		return err
	}
	id := run.ID.String()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"profile_freqs", "profiles", "run_inertia", "run_play_types"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE run_id = ?", id); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs(id, created_at, selected_k, sparse_threshold, flagged_rows, explained_pc1, explained_pc2)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, run.CreatedAt.UnixNano(), run.SelectedK, run.SparseThreshold, run.FlaggedRows,
		run.ExplainedVariance[0], run.ExplainedVariance[1],
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for pos, pt := range run.Schema.PlayTypes {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO run_play_types(run_id, position, play_type) VALUES (?, ?, ?)", id, pos, pt); err != nil {
			return fmt.Errorf("insert play type %q: %w", pt, err)
		}
	}
	for k, v := range run.Inertia {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO run_inertia(run_id, k, inertia) VALUES (?, ?, ?)", id, k, v); err != nil {
			return fmt.Errorf("insert inertia k=%d: %w", k, err)
		}
	}

	profStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO profiles(run_id, row_index, key, player, team, season, summed_freq, cluster, pc1, pc2)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer func() { _ = profStmt.Close() }()

	freqStmt, err := tx.PrepareContext(ctx,
		"INSERT INTO profile_freqs(run_id, key, position, frequency, percentile) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer func() { _ = freqStmt.Close() }()

	for i, p := range run.Profiles {
		if _, err := profStmt.ExecContext(ctx, id, i, p.Key, p.Player, p.Team, p.Season,
			p.SummedFrequency, p.Cluster, p.PC1, p.PC2); err != nil {
			return fmt.Errorf("insert profile %q: %w", p.Key, err)
		}
		for pos, f := range p.Frequencies {
			var pct any
			if v, ok := p.Percentiles[run.Schema.PlayTypes[pos]]; ok {
				pct = v
			}
			if _, err := freqStmt.ExecContext(ctx, id, p.Key, pos, f, pct); err != nil {
				return fmt.Errorf("insert frequencies for %q: %w", p.Key, err)
			}
		}
	}
	return tx.Commit()
}

// LatestRun implements Store.
func (s *SQLiteStore) LatestRun(ctx context.Context) (*model.Run, error) {
	var id string
	err := s.conn.QueryRowContext(ctx,
		"SELECT id FROM runs ORDER BY created_at DESC, rowid DESC LIMIT 1").Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no runs stored", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	runID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("stored run id %q: %w", id, err)
	}
	return s.Run(ctx, runID)
}

// Run implements Store.
func (s *SQLiteStore) Run(ctx context.Context, id uuid.UUID) (*model.Run, error) {
	run := &model.Run{ID: id}
	var created int64
	err := s.conn.QueryRowContext(ctx, `
		SELECT created_at, selected_k, sparse_threshold, flagged_rows, explained_pc1, explained_pc2
		FROM runs WHERE id = ?`, id.String()).
		Scan(&created, &run.SelectedK, &run.SparseThreshold, &run.FlaggedRows,
			&run.ExplainedVariance[0], &run.ExplainedVariance[1])
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: run %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	run.CreatedAt = time.Unix(0, created).UTC()

	if run.Schema.PlayTypes, err = s.playTypes(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.conn.QueryContext(ctx, "SELECT k, inertia FROM run_inertia WHERE run_id = ? ORDER BY k", id.String())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var k int
		var v float64
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		if run.Inertia == nil {
			run.Inertia = make(map[int]float64)
		}
		run.Inertia[k] = v
	}
	return run, rows.Err()
}

// Profiles implements Store.
func (s *SQLiteStore) Profiles(ctx context.Context, runID uuid.UUID, f Filter) ([]model.Profile, error) {
	var where []string
	var args []any
	if len(f.Seasons) > 0 {
		where = append(where, "p.season IN (?"+strings.Repeat(", ?", len(f.Seasons)-1)+")")
		for _, season := range f.Seasons {
			args = append(args, season)
		}
	}
	if f.Cluster != "" {
		where = append(where, "p.cluster = ?")
		args = append(args, f.Cluster)
	}
	return s.profiles(ctx, runID, where, args)
}

// Profile implements Store.
func (s *SQLiteStore) Profile(ctx context.Context, runID uuid.UUID, key string) (model.Profile, error) {
	out, err := s.profiles(ctx, runID, []string{"p.key = ?"}, []any{key})
	if err != nil {
		return model.Profile{}, err
	}
	if len(out) == 0 {
		return model.Profile{}, fmt.Errorf("%w: profile %q in run %s", ErrNotFound, key, runID)
	}
	return out[0], nil
}

// ClusterSizes implements Store.
func (s *SQLiteStore) ClusterSizes(ctx context.Context, runID uuid.UUID) ([]ClusterSize, error) {
	if err := s.requireRun(ctx, runID); err != nil {
		return nil, err
	}
	// numeric labels sort by length first so "10" follows "9"
	rows, err := s.conn.QueryContext(ctx, `
		SELECT cluster, COUNT(1) FROM profiles WHERE run_id = ?
		GROUP BY cluster ORDER BY length(cluster), cluster`, runID.String())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []ClusterSize
	for rows.Next() {
		var c ClusterSize
		if err := rows.Scan(&c.Cluster, &c.Size); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) profiles(ctx context.Context, runID uuid.UUID, where []string, args []any) ([]model.Profile, error) {
	schema, err := s.playTypes(ctx, runID)
	if err != nil {
		return nil, err
	}
	if len(schema) == 0 {
		if err := s.requireRun(ctx, runID); err != nil {
			return nil, err
		}
	}

	cond := "p.run_id = ?"
	if len(where) > 0 {
		cond += " AND " + strings.Join(where, " AND ")
	}
	args = append([]any{runID.String()}, args...)

	rows, err := s.conn.QueryContext(ctx, `
		SELECT p.key, p.player, p.team, p.season, p.summed_freq, p.cluster, p.pc1, p.pc2
		FROM profiles p WHERE `+cond+` ORDER BY p.row_index`, args...)
	if err != nil {
		return nil, err
	}
	var out []model.Profile
	index := make(map[string]int)
	for rows.Next() {
		p := model.Profile{Record: model.Record{Frequencies: make([]float64, len(schema))}}
		if err := rows.Scan(&p.Key, &p.Player, &p.Team, &p.Season, &p.SummedFrequency,
			&p.Cluster, &p.PC1, &p.PC2); err != nil {
			_ = rows.Close()
			return nil, err
		}
		index[p.Key] = len(out)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()
	if len(out) == 0 {
		return out, nil
	}

	freqs, err := s.conn.QueryContext(ctx, `
		SELECT p.key, f.position, f.frequency, f.percentile
		FROM profile_freqs f JOIN profiles p ON p.run_id = f.run_id AND p.key = f.key
		WHERE `+cond, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = freqs.Close() }()
	for freqs.Next() {
		var key string
		var pos int
		var v float64
		var pct sql.NullFloat64
		if err := freqs.Scan(&key, &pos, &v, &pct); err != nil {
			return nil, err
		}
		i, ok := index[key]
		if !ok || pos < 0 || pos >= len(schema) {
			return nil, fmt.Errorf("stored frequency %q[%d] has no profile column", key, pos)
		}
		out[i].Frequencies[pos] = v
		if pct.Valid {
			if out[i].Percentiles == nil {
				out[i].Percentiles = make(map[string]float64)
			}
			out[i].Percentiles[schema[pos]] = pct.Float64
		}
	}
	return out, freqs.Err()
}

func (s *SQLiteStore) playTypes(ctx context.Context, runID uuid.UUID) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx,
		"SELECT play_type FROM run_play_types WHERE run_id = ? ORDER BY position", runID.String())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var pt string
		if err := rows.Scan(&pt); err != nil {
			return nil, err
		}
		out = append(out, pt)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) requireRun(ctx context.Context, runID uuid.UUID) error {
	var count int
	if err := s.conn.QueryRowContext(ctx, "SELECT COUNT(1) FROM runs WHERE id = ?", runID.String()).Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("%w: run %s", ErrNotFound, runID)
	}
	return nil
}

func checkRun(run *model.Run) error {
	switch {
	case run == nil:
		return fmt.Errorf("%w: nil run", ErrInvalid)
	case run.ID == uuid.Nil:
		return fmt.Errorf("%w: missing id", ErrInvalid)
	}
	for _, p := range run.Profiles {
		if len(p.Frequencies) != run.Schema.Len() {
			return fmt.Errorf("%w: profile %q has %d frequencies for %d play types",
				ErrInvalid, p.Key, len(p.Frequencies), run.Schema.Len())
		}
		for pt, v := range p.Percentiles {
			if run.Schema.Index(pt) < 0 {
				return fmt.Errorf("%w: profile %q has a percentile for unknown play type %q", ErrInvalid, p.Key, pt)
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: profile %q percentile for %q is not finite", ErrInvalid, p.Key, pt)
			}
		}
	}
	return nil
}
