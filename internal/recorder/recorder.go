// Package recorder logs per-tick control data to a CSV file for offline
// PID tuning analysis.
package recorder

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

const flushEvery = 100

var header = []string{
	"timestamp",
	"error_x", "error_y",
	"output_x", "output_y",
	"pos_x", "pos_y",
	"kp", "ki", "kd",
}

// Recorder buffers tick samples and writes them as CSV rows, flushing
// periodically so a crash loses at most one batch.
type Recorder struct {
	mu    sync.Mutex
	f     *os.File
	w     *csv.Writer
	count int
	start time.Time
	path  string
}

// New creates the log directory if needed and opens a timestamped session
// file, e.g. logs/pid_debug_20260831_143052.csv.
func New(dir, session string) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir %s: %w", dir, err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.csv", session, time.Now().Format("20060102_150405")))
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create session file: %w", err)
	}

	r := &Recorder{
		f:     f,
		w:     csv.NewWriter(f),
		start: time.Now(),
		path:  path,
	}
	if err := r.w.Write(header); err != nil {
		f.Close()
		return nil, err
	}
	log.Printf("[recorder] session file: %s", path)
	return r, nil
}

// Path returns the session file path.
func (r *Recorder) Path() string {
	return r.path
}

// Log appends one tick sample. Safe for concurrent use.
func (r *Recorder) Log(errX, errY, outX, outY int, posX, posY, kp, ki, kd float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		return
	}

	row := []string{
		strconv.FormatFloat(time.Since(r.start).Seconds(), 'f', 3, 64),
		strconv.Itoa(errX), strconv.Itoa(errY),
		strconv.Itoa(outX), strconv.Itoa(outY),
		strconv.FormatFloat(posX, 'f', 1, 64), strconv.FormatFloat(posY, 'f', 1, 64),
		strconv.FormatFloat(kp, 'f', 3, 64), strconv.FormatFloat(ki, 'f', 3, 64), strconv.FormatFloat(kd, 'f', 3, 64),
	}
	if err := r.w.Write(row); err != nil {
		log.Printf("[recorder] write failed: %v", err)
		return
	}

	r.count++
	if r.count%flushEvery == 0 {
		r.w.Flush()
	}
}

// Close flushes pending rows and closes the file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.f == nil {
		return nil
	}
	r.w.Flush()
	err := r.f.Close()
	r.f = nil
	log.Printf("[recorder] session closed (%d samples)", r.count)
	return err
}
