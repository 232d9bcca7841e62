// Package report writes batch results and per-volume diagnostics: the
// FileName,OptimalThreshold CSV, one CSV per trace table and score-curve
// plots.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// ResultsHeader is the header row of the batch results file.
var ResultsHeader = []string{"FileName", "OptimalThreshold"}

// ResultsWriter appends one row per processed volume. It is safe for
// concurrent use.
type ResultsWriter struct {
	mu     sync.Mutex
	w      *csv.Writer
	closer io.Closer
	rows   int
}

// NewResultsWriter writes the header to w and returns a writer for the rows.
func NewResultsWriter(w io.Writer) (*ResultsWriter, error) {
	r := &ResultsWriter{w: csv.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		r.closer = c
	}
	if err := r.w.Write(ResultsHeader); err != nil {
		return nil, err
	}
	r.w.Flush()
	return r, r.w.Error()
}

// CreateResultsFile creates (or truncates) path, making parent directories.
func CreateResultsFile(path string) (*ResultsWriter, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create results directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create results file: %w", err)
	}
	r, err := NewResultsWriter(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

// Write appends a row and flushes it.
func (r *ResultsWriter) Write(fileName string, threshold float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.w.Write([]string{fileName, strconv.FormatFloat(threshold, 'g', -1, 64)}); err != nil {
		return err
	}
	r.w.Flush()
	if err := r.w.Error(); err != nil {
		return err
	}
	r.rows++
	return nil
}

// Rows is the number of data rows written so far.
func (r *ResultsWriter) Rows() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows
}

// Close flushes and closes the underlying writer when it is closable.
func (r *ResultsWriter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.w.Flush()
	err := r.w.Error()
	if r.closer != nil {
		if cerr := r.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
