package exporter

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"cnpulse/internal/record"
)

// SnapshotWriter writes canonical records into per-type CSV files under
// <baseDir>/<snapshotDate>/. Files open lazily on the first record of each
// type and stay open until Close, which must be called exactly once at the
// end of a run, including on error paths, to avoid truncated files.
//
// Concurrency: not safe for concurrent use; the pipeline owns one writer
// and feeds it from a single goroutine.
type SnapshotWriter struct {
	dir     string
	logger  *slog.Logger
	outputs map[string]*output
	closed  bool
}

type output struct {
	file   *os.File
	writer *csv.Writer
	header []string
}

// NewSnapshotWriter returns a writer rooted at baseDir/snapshotDate.
// The directory is created on the first write.
func NewSnapshotWriter(baseDir, snapshotDate string, logger *slog.Logger) *SnapshotWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotWriter{
		dir:     filepath.Join(baseDir, snapshotDate),
		logger:  logger,
		outputs: make(map[string]*output),
	}
}

// Write appends one record to its routed output file. The first record of
// a target fixes that file's header as the record's schema field order;
// subsequent records only persist declared columns.
func (w *SnapshotWriter) Write(rec record.Record) error {
	if w.closed {
		return fmt.Errorf("snapshot writer already closed")
	}

	target := rec.Target()
	out, ok := w.outputs[target]
	if !ok {
		var err error
		out, err = w.open(target, record.Schema(rec.Type))
		if err != nil {
			return err
		}
		w.outputs[target] = out
	}

	row := make([]string, len(out.header))
	for i, col := range out.header {
		row[i] = cell(rec.Fields[col])
	}
	if err := out.writer.Write(row); err != nil {
		return fmt.Errorf("failed to write record to %s: %w", target, err)
	}
	return nil
}

// Count returns how many output files are open.
func (w *SnapshotWriter) Count() int {
	return len(w.outputs)
}

// Dir returns the dated snapshot directory.
func (w *SnapshotWriter) Dir() string {
	return w.dir
}

// Close flushes and closes every open output. Safe to call when nothing
// was written; returns the first error encountered but closes everything.
func (w *SnapshotWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	var firstErr error
	for target, out := range w.outputs {
		out.writer.Flush()
		if err := out.writer.Error(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to flush %s: %w", target, err)
		}
		if err := out.file.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close %s: %w", target, err)
		}
	}

	w.logger.Info("snapshot outputs closed",
		slog.String("dir", w.dir),
		slog.Int("files", len(w.outputs)))
	return firstErr
}

func (w *SnapshotWriter) open(target string, header []string) (*output, error) {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	path := filepath.Join(w.dir, target)
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", target, err)
	}

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to write header for %s: %w", target, err)
	}

	w.logger.Info("opened snapshot output",
		slog.String("file", target),
		slog.Int("columns", len(header)))

	return &output{file: file, writer: writer, header: header}, nil
}

// cell renders a field value for CSV output. Nil becomes an empty cell;
// integral floats drop the trailing ".0" so share counts stay readable.
func cell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", val)
	}
}
