package journal

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/lixenwraith/outbreak/coordinator"
)

const filePrefix = "events"

// Entry is one journal line
type Entry struct {
	RunID string    `json:"run_id"`
	At    time.Time `json:"at"`
	coordinator.Event
}

// Journal is a coordinator.EventSink writing every event to disk
// Write failures are logged and counted, never returned to the tick
type Journal struct {
	runID  string
	w      *Writer
	logger *zap.Logger

	written atomic.Uint64
	failed  atomic.Uint64
}

func New(dir, runID string, logger *zap.Logger) *Journal {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Journal{
		runID:  runID,
		w:      NewWriter(dir, filePrefix),
		logger: logger.Named("journal"),
	}
}

// HandleEvent implements coordinator.EventSink
func (j *Journal) HandleEvent(ev coordinator.Event) {
	err := j.w.Append(Entry{RunID: j.runID, Event: ev})
	if err != nil {
		// Log the first failure and every hundredth after it
		if n := j.failed.Add(1); n == 1 || n%100 == 0 {
			j.logger.Warn("journal write failed", zap.Error(err), zap.Uint64("failures", n))
		}
		return
	}
	j.written.Add(1)
}

// Written returns the number of entries persisted
func (j *Journal) Written() uint64 { return j.written.Load() }

// Failed returns the number of entries dropped on write errors
func (j *Journal) Failed() uint64 { return j.failed.Load() }

func (j *Journal) Close() error { return j.w.Close() }

// ReadAll decodes every entry of one journal file
// A segment left open by a crashed run ends mid-frame; its complete lines are returned without error
func ReadAll(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer dec.Close()

	var out []Entry
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return out, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		out = append(out, e)
	}
	if err := sc.Err(); err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return out, fmt.Errorf("read %s: %w", path, err)
	}
	return out, nil
}

// ReadDir decodes every journal file in dir in hour order
func ReadDir(dir string) ([]Entry, error) {
	paths, err := filepath.Glob(filepath.Join(dir, filePrefix+"-*"+fileSuffix))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	var out []Entry
	for _, p := range paths {
		entries, err := ReadAll(p)
		if err != nil {
			return out, err
		}
		out = append(out, entries...)
	}
	return out, nil
}
