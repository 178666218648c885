package exporter

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"
)

// WorkbookWriter mirrors a finished snapshot directory into one XLSX
// workbook, one sheet per CSV file. Sheet names are the CSV base names
// truncated to the 31-character Excel limit.
type WorkbookWriter struct {
	logger *slog.Logger
}

// NewWorkbookWriter creates a workbook writer.
func NewWorkbookWriter(logger *slog.Logger) *WorkbookWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkbookWriter{logger: logger}
}

// Mirror reads every CSV in snapshotDir and writes snapshot.xlsx next to
// them. Run it after SnapshotWriter.Close so all files are flushed.
func (w *WorkbookWriter) Mirror(snapshotDir string) error {
	entries, err := os.ReadDir(snapshotDir)
	if err != nil {
		return fmt.Errorf("failed to read snapshot directory: %w", err)
	}

	var csvFiles []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".csv") {
			csvFiles = append(csvFiles, entry.Name())
		}
	}
	if len(csvFiles) == 0 {
		w.logger.Info("no CSV files to mirror", slog.String("dir", snapshotDir))
		return nil
	}
	sort.Strings(csvFiles)

	book := excelize.NewFile()
	defer book.Close()

	for i, name := range csvFiles {
		sheet := sheetName(name)
		if i == 0 {
			if err := book.SetSheetName("Sheet1", sheet); err != nil {
				return fmt.Errorf("failed to rename sheet: %w", err)
			}
		} else {
			if _, err := book.NewSheet(sheet); err != nil {
				return fmt.Errorf("failed to add sheet %s: %w", sheet, err)
			}
		}
		if err := w.copyCSV(book, sheet, filepath.Join(snapshotDir, name)); err != nil {
			return err
		}
	}

	target := filepath.Join(snapshotDir, "snapshot.xlsx")
	if err := book.SaveAs(target); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}

	w.logger.Info("snapshot workbook written",
		slog.String("file", target),
		slog.Int("sheets", len(csvFiles)))
	return nil
}

func (w *WorkbookWriter) copyCSV(book *excelize.File, sheet, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	for i, row := range rows {
		cellRef, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("failed to build cell reference: %w", err)
		}
		values := make([]any, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := book.SetSheetRow(sheet, cellRef, &values); err != nil {
			return fmt.Errorf("failed to write row %d of %s: %w", i+1, sheet, err)
		}
	}
	return nil
}

func sheetName(csvName string) string {
	name := strings.TrimSuffix(csvName, ".csv")
	if len(name) > 31 {
		name = name[:31]
	}
	return name
}
