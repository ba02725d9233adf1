package statsdb

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Run reads the metadata row of runID
func (s *DB) Run(ctx context.Context, runID string) (RunInfo, error) {
	var (
		r        RunInfo
		started  string
		finished sql.NullString
		seed     int64
		ticks    int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT run_id, started_at, seed, shuffle, spawn_interval, entrances, targets, finished_at, ticks
		 FROM runs WHERE run_id = ?`, runID,
	).Scan(&r.RunID, &started, &seed, &r.Shuffle, &r.SpawnInterval, &r.Entrances, &r.Targets, &finished, &ticks)
	if err != nil {
		return RunInfo{}, fmt.Errorf("run %s: %w", runID, err)
	}
	r.Seed = uint64(seed)
	r.Ticks = uint64(ticks)
	if r.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return RunInfo{}, fmt.Errorf("run %s started_at: %w", runID, err)
	}
	if finished.Valid {
		if r.FinishedAt, err = time.Parse(time.RFC3339Nano, finished.String); err != nil {
			return RunInfo{}, fmt.Errorf("run %s finished_at: %w", runID, err)
		}
	}
	return r, nil
}

// Samples returns runID's samples in tick order
func (s *DB) Samples(ctx context.Context, runID string) ([]Sample, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tick, agents, carriers, infected, fraction FROM samples WHERE run_id = ? ORDER BY tick`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Sample
	for rows.Next() {
		sm := Sample{RunID: runID}
		var tick int64
		if err := rows.Scan(&tick, &sm.Agents, &sm.Carriers, &sm.Infected, &sm.Fraction); err != nil {
			return nil, err
		}
		sm.Tick = uint64(tick)
		out = append(out, sm)
	}
	return out, rows.Err()
}

// EventCounts returns runID's per-kind event totals recorded at finish
func (s *DB) EventCounts(ctx context.Context, runID string) (map[string]uint64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT kind, count FROM run_events WHERE run_id = ?`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]uint64)
	for rows.Next() {
		var (
			kind string
			n    int64
		)
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		out[kind] = uint64(n)
	}
	return out, rows.Err()
}
