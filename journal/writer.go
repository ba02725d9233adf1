// Package journal records coordinator events as zstd-compressed JSONL, one file per hour
package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

const (
	hourLayout = "2006-01-02-15"
	fileSuffix = ".jsonl.zst"
)

// segment is the open file of one hour
// Every append ends with a zstd block flush so a process exit loses at most the line in flight
type segment struct {
	hour string
	path string
	f    *os.File
	enc  *zstd.Encoder
	buf  *bufio.Writer
}

func openSegment(path, hour string) (*segment, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &segment{hour: hour, path: path, f: f, enc: enc, buf: bufio.NewWriterSize(enc, 16*1024)}, nil
}

func (s *segment) append(line []byte) error {
	if _, err := s.buf.Write(line); err != nil {
		return err
	}
	if err := s.buf.WriteByte('\n'); err != nil {
		return err
	}
	if err := s.buf.Flush(); err != nil {
		return err
	}
	return s.enc.Flush()
}

func (s *segment) close() error {
	flushErr := s.buf.Flush()
	encErr := s.enc.Close()
	fileErr := s.f.Close()
	for _, err := range []error{flushErr, encErr, fileErr} {
		if err != nil {
			return fmt.Errorf("close %s: %w", s.path, err)
		}
	}
	return nil
}

// Writer appends entries to <dir>/<prefix>-<UTC hour>.jsonl.zst, opening a new segment each hour
type Writer struct {
	dir    string
	prefix string
	now    func() time.Time

	mu  sync.Mutex
	cur *segment
}

func NewWriter(dir, prefix string) *Writer {
	return &Writer{dir: dir, prefix: prefix, now: time.Now}
}

// Append writes e as one line; e.At is stamped from the writer clock when zero
func (w *Writer) Append(e Entry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now().UTC()
	if e.At.IsZero() {
		e.At = now
	}
	line, err := json.Marshal(e)
	if err != nil {
		return err
	}

	hour := now.Format(hourLayout)
	if w.cur == nil || w.cur.hour != hour {
		if err := w.closeLocked(); err != nil {
			return err
		}
		seg, err := openSegment(w.pathForHour(hour), hour)
		if err != nil {
			return err
		}
		w.cur = seg
	}
	return w.cur.append(line)
}

// Path returns the segment currently written to, empty before the first Append
func (w *Writer) Path() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cur == nil {
		return ""
	}
	return w.cur.path
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *Writer) closeLocked() error {
	if w.cur == nil {
		return nil
	}
	err := w.cur.close()
	w.cur = nil
	return err
}

func (w *Writer) pathForHour(hour string) string {
	return filepath.Join(w.dir, w.prefix+"-"+hour+fileSuffix)
}
