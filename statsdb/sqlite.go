// Package statsdb keeps a SQLite history of coordinator counters per run
package statsdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/lixenwraith/outbreak/core"
)

const (
	queueCapacity = 4096
	commitEvery   = 500
	commitMaxWait = time.Second
)

// ErrClosed is returned by Sync after Close
var ErrClosed = errors.New("statsdb closed")

// DB owns a single writer goroutine; producers never block on SQLite
type DB struct {
	db     *sql.DB
	stmts  statements
	logger *zap.Logger

	// mu orders sends on ch against Close closing it
	mu     sync.RWMutex
	closed bool
	ch     chan req
	wg     sync.WaitGroup
	once   sync.Once

	dropped atomic.Uint64
	failed  atomic.Uint64
}

type statements struct {
	insertRun    *sql.Stmt
	insertSample *sql.Stmt
	updateRun    *sql.Stmt
	upsertEvent  *sql.Stmt
}

type reqKind int

const (
	reqRun reqKind = iota + 1
	reqSample
	reqFinish
	reqSync
)

type req struct {
	kind   reqKind
	run    RunInfo
	sample Sample
	finish finishRow
	done   chan struct{}
}

// RunInfo is the metadata row of one coordinator run
type RunInfo struct {
	RunID         string
	StartedAt     time.Time
	Seed          uint64
	Shuffle       string
	SpawnInterval float64
	Entrances     int
	Targets       int
	FinishedAt    time.Time // zero while running
	Ticks         uint64
}

// Sample is one counters row
type Sample struct {
	RunID string
	core.Counters
}

type finishRow struct {
	RunID  string
	At     time.Time
	Ticks  uint64
	Events map[string]uint64
}

// QueueStats reports writer backlog and lost rows
type QueueStats struct {
	QueueDepth    int
	QueueCapacity int
	Dropped       uint64 // refused because the queue was full
	Failed        uint64 // lost to a rolled-back batch
}

func Open(path string, logger *zap.Logger) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragmas: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("schema: %w", err)
	}
	stmts, err := prepareStatements(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("prepare: %w", err)
	}

	s := &DB{
		db:     db,
		stmts:  stmts,
		logger: logger.Named("statsdb"),
		ch:     make(chan req, queueCapacity),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			seed INTEGER NOT NULL,
			shuffle TEXT NOT NULL,
			spawn_interval REAL NOT NULL,
			entrances INTEGER NOT NULL,
			targets INTEGER NOT NULL,
			finished_at TEXT,
			ticks INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS samples (
			run_id TEXT NOT NULL REFERENCES runs(run_id),
			tick INTEGER NOT NULL,
			agents INTEGER NOT NULL,
			carriers INTEGER NOT NULL,
			infected INTEGER NOT NULL,
			fraction REAL NOT NULL,
			PRIMARY KEY (run_id, tick)
		);`,
		`CREATE TABLE IF NOT EXISTS run_events (
			run_id TEXT NOT NULL REFERENCES runs(run_id),
			kind TEXT NOT NULL,
			count INTEGER NOT NULL,
			PRIMARY KEY (run_id, kind)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func prepareStatements(db *sql.DB) (statements, error) {
	var (
		st  statements
		err error
	)
	prepare := func(dst **sql.Stmt, query string) {
		if err != nil {
			return
		}
		*dst, err = db.Prepare(query)
	}
	prepare(&st.insertRun, `INSERT OR REPLACE INTO runs(run_id,started_at,seed,shuffle,spawn_interval,entrances,targets) VALUES(?,?,?,?,?,?,?)`)
	prepare(&st.insertSample, `INSERT OR REPLACE INTO samples(run_id,tick,agents,carriers,infected,fraction) VALUES(?,?,?,?,?,?)`)
	prepare(&st.updateRun, `UPDATE runs SET finished_at=?, ticks=? WHERE run_id=?`)
	prepare(&st.upsertEvent, `INSERT OR REPLACE INTO run_events(run_id,kind,count) VALUES(?,?,?)`)
	if err != nil {
		st.close()
		return statements{}, err
	}
	return st, nil
}

func (st statements) close() {
	for _, p := range []*sql.Stmt{st.insertRun, st.insertSample, st.updateRun, st.upsertEvent} {
		if p != nil {
			_ = p.Close()
		}
	}
}

// Close drains queued rows, commits and closes the database
func (s *DB) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()

		s.wg.Wait()
		s.stmts.close()
		err = s.db.Close()
	})
	return err
}

// StartRun records run metadata; it must precede samples of the run
func (s *DB) StartRun(r RunInfo) {
	s.enqueue(req{kind: reqRun, run: r})
}

// WriteSample queues one counters row, dropping it when the writer falls behind
func (s *DB) WriteSample(runID string, c core.Counters) {
	s.enqueue(req{kind: reqSample, sample: Sample{RunID: runID, Counters: c}})
}

// FinishRun stamps the run with its end time, tick count and event totals
func (s *DB) FinishRun(runID string, ticks uint64, events map[string]uint64) {
	s.enqueue(req{kind: reqFinish, finish: finishRow{RunID: runID, At: time.Now().UTC(), Ticks: ticks, Events: events}})
}

// Sync blocks until everything queued before it is committed
func (s *DB) Sync(ctx context.Context) error {
	done := make(chan struct{})
	if err := s.send(ctx, req{kind: reqSync, done: done}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// send blocks until the writer accepts r; the read lock keeps Close from closing ch mid-send
func (s *DB) send(ctx context.Context, r req) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	select {
	case s.ch <- r:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *DB) Stats() QueueStats {
	return QueueStats{
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
		Dropped:       s.dropped.Load(),
		Failed:        s.failed.Load(),
	}
}

func (s *DB) enqueue(r req) {
	if s == nil {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- r:
	default:
		// The journal remains the complete record
		if n := s.dropped.Add(1); n == 1 || n%1000 == 0 {
			s.logger.Warn("stats queue full, dropping rows", zap.Uint64("dropped", n))
		}
	}
}

func (s *DB) loop() {
	ctx := context.Background()

	st := s.stmts

	var (
		tx         *sql.Tx
		opCount    int
		lastCommit = time.Now()
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			s.logger.Warn("begin tx failed", zap.Error(err))
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.failed.Add(uint64(opCount))
			s.logger.Warn("commit failed", zap.Error(err))
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func(err error) {
		// The failing op plus everything uncommitted before it
		lost := s.failed.Add(uint64(opCount + 1))
		s.logger.Warn("write failed, rolling back batch", zap.Error(err), zap.Uint64("failed_total", lost))
		if tx != nil {
			_ = tx.Rollback()
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		if r.kind == reqSync {
			commit()
			close(r.done)
			continue
		}

		begin()
		if tx == nil {
			continue
		}

		var err error
		switch r.kind {
		case reqRun:
			_, err = tx.Stmt(st.insertRun).Exec(
				r.run.RunID,
				r.run.StartedAt.UTC().Format(time.RFC3339Nano),
				int64(r.run.Seed),
				r.run.Shuffle,
				r.run.SpawnInterval,
				r.run.Entrances,
				r.run.Targets,
			)
		case reqSample:
			c := r.sample.Counters
			_, err = tx.Stmt(st.insertSample).Exec(r.sample.RunID, int64(c.Tick), c.Agents, c.Carriers, c.Infected, c.Fraction)
		case reqFinish:
			f := r.finish
			_, err = tx.Stmt(st.updateRun).Exec(f.At.Format(time.RFC3339Nano), int64(f.Ticks), f.RunID)
			for kind, n := range f.Events {
				if err != nil {
					break
				}
				_, err = tx.Stmt(st.upsertEvent).Exec(f.RunID, kind, int64(n))
			}
		}
		if err != nil {
			rollback(err)
			continue
		}
		opCount++
		// Run rows commit alone so a bad sample cannot take the parent row down with it
		if r.kind != reqSample || opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}
	commit()
}
