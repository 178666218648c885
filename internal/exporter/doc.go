// Package exporter writes snapshot output files.
//
// SnapshotWriter emits one CSV file per record type under a dated
// directory, opening each file lazily on the first record of its type.
// The column header is exactly the key order of that first record; later
// records are written by keyed lookup, so extra keys are dropped and
// missing keys become empty cells. The writer never validates that later
// records share the first record's key set — an intentional, documented
// fragility inherited from the snapshot format.
//
// WorkbookWriter optionally mirrors a finished snapshot directory into a
// single XLSX workbook with one sheet per record type.
//
// Example usage:
//
//	w := exporter.NewSnapshotWriter(cfg.SnapshotsDir, "2026-08-28", logger)
//	for _, rec := range records {
//		if err := w.Write(rec); err != nil { ... }
//	}
//	err := w.Close()
package exporter
