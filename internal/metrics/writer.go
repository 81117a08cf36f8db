// Package metrics records scalar training curves to CSV files, one file per
// run, in the result tree that mirrors the checkpoint tree.
package metrics

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Writer appends tagged scalar values to a CSV file with a
// tag,value,step header. It mirrors the usual scalar-summary shape so the
// curves load directly into a dataframe.
type Writer struct {
	file *csv.Writer
	f    *os.File
}

// NewWriter creates (or truncates) the CSV file at path, creating parent
// directories as needed, and writes the header row.
func NewWriter(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("metrics: failed to create result directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("metrics: failed to create file: %w", err)
	}

	w := &Writer{file: csv.NewWriter(f), f: f}
	if err := w.file.Write([]string{"tag", "value", "step"}); err != nil {
		f.Close()
		return nil, fmt.Errorf("metrics: failed to write header: %w", err)
	}
	return w, nil
}

// AddScalar appends one tagged value at the given step.
func (w *Writer) AddScalar(tag string, value float64, step int) error {
	record := []string{
		tag,
		strconv.FormatFloat(value, 'g', -1, 64),
		strconv.Itoa(step),
	}
	if err := w.file.Write(record); err != nil {
		return fmt.Errorf("metrics: failed to write scalar %q: %w", tag, err)
	}
	// Flush per record; runs are long and a crash should not lose curves.
	w.file.Flush()
	return w.file.Error()
}

// Close flushes and closes the underlying file.
func (w *Writer) Close() error {
	w.file.Flush()
	if err := w.file.Error(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}

// MirrorPath maps a checkpoint directory to its result directory by
// replacing the first "model" path element with "result". The element may be
// anywhere in the path, including the very front, which is what the default
// output root produces. A path without a model element gets a result
// directory alongside it.
func MirrorPath(modelDir string) string {
	sep := string(filepath.Separator)
	parts := strings.Split(modelDir, sep)
	for i, part := range parts {
		if part == "model" {
			parts[i] = "result"
			return strings.Join(parts, sep)
		}
	}
	return filepath.Join(modelDir, "result")
}
